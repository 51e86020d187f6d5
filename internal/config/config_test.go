package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gyeh/icuscore/internal/severity"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFromFile_Valid(t *testing.T) {
	path := writeProfile(t, `
partitions: [train]
aliases:
  "Body Temp": temperature
  "Urine (mL)": urine_output
coefficients:
  oasis: [-6.0, 0.12]
  SAPS2: [-7.7, 0.07, 1.0]
`)
	c := Config{Partitions: DefaultPartitions}
	if err := c.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if len(c.Partitions) != 1 || c.Partitions[0] != "train" {
		t.Errorf("partitions: %v", c.Partitions)
	}
	if name, ok := c.AliasMap().Resolve("Body Temp"); !ok || name != severity.VarTemperature {
		t.Errorf("profile alias: got %q, %v", name, ok)
	}
	coefs, ok := c.ProfileCoefficients(severity.SAPS2)
	if !ok || len(coefs) != 3 {
		t.Errorf("SAPS2 coefficients: %v, %v", coefs, ok)
	}
	if _, ok := c.ProfileCoefficients(severity.OASIS); !ok {
		t.Error("OASIS coefficients missing")
	}
}

func TestLoadFromFile_KeepsDefaultPartitions(t *testing.T) {
	path := writeProfile(t, "aliases: {}\n")
	c := Config{Partitions: DefaultPartitions}
	if err := c.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if len(c.Partitions) != 2 {
		t.Errorf("expected default partitions, got %v", c.Partitions)
	}
}

func TestLoadFromFile_UnknownAliasTarget(t *testing.T) {
	path := writeProfile(t, "aliases:\n  foo: not_a_variable\n")
	var c Config
	if err := c.LoadFromFile(path); err == nil {
		t.Fatal("expected error for unknown alias target")
	}
}

func TestLoadFromFile_BadCoefficients(t *testing.T) {
	cases := map[string]string{
		"unknown system": "coefficients:\n  apache: [1, 2]\n",
		"wrong arity":    "coefficients:\n  oasis: [1, 2, 3]\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			var c Config
			if err := c.LoadFromFile(writeProfile(t, content)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	var c Config
	if err := c.LoadFromFile("/nonexistent/profile.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("ICUSCORE_DSN", "postgres://x")
	t.Setenv("ICUSCORE_LOG_FORMAT", "json")
	t.Setenv("ICUSCORE_WORKERS", "3")

	c, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if c.DSN != "postgres://x" || c.LogFormat != "json" || c.Workers != 3 {
		t.Errorf("unexpected config: %+v", c)
	}
	if c.LogLevel != "info" {
		t.Errorf("default log level: got %q", c.LogLevel)
	}
}

func TestFromEnv_BadWorkers(t *testing.T) {
	t.Setenv("ICUSCORE_WORKERS", "-2")
	if _, err := FromEnv(); err == nil {
		t.Fatal("expected error for negative workers")
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	cases := []struct {
		name    string
		cfg     Config
		check   func(*Config) error
		wantErr bool
	}{
		{"missing system", Config{}, (*Config).Validate, true},
		{"unknown system", Config{System: "apache"}, (*Config).Validate, true},
		{"bad log format", Config{System: "oasis", LogFormat: "xml"}, (*Config).Validate, true},
		{"ok", Config{System: "SAPS2"}, (*Config).Validate, false},
		{"score missing data", Config{System: "oasis", OutDir: dir, Partitions: DefaultPartitions}, (*Config).ValidateScore, true},
		{"score missing data dir", Config{System: "oasis", DataRoot: filepath.Join(dir, "nope"), OutDir: dir, Partitions: DefaultPartitions}, (*Config).ValidateScore, true},
		{"score ok", Config{System: "oasis", DataRoot: dir, OutDir: dir, Partitions: DefaultPartitions}, (*Config).ValidateScore, false},
		{"score no partitions", Config{System: "oasis", DataRoot: dir, OutDir: dir}, (*Config).ValidateScore, true},
		{"tune missing listfile", Config{System: "oasis", ScoresDir: dir, CoefsDir: dir}, (*Config).ValidateTune, true},
		{"dsn missing", Config{System: "oasis"}, (*Config).ValidateWithDSN, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.check(&tc.cfg)
			if (err != nil) != tc.wantErr {
				t.Errorf("got err=%v, wantErr=%v", err, tc.wantErr)
			}
		})
	}
}
