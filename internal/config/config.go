package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/gyeh/icuscore/internal/normalize"
	"github.com/gyeh/icuscore/internal/severity"
)

// DefaultPartitions are the dataset splits scored when no profile overrides them.
var DefaultPartitions = []string{"test", "train"}

// Config holds all runtime configuration for an icuscore run.
type Config struct {
	System      string
	DataRoot    string
	OutDir      string
	Partitions  []string `yaml:"partitions"`
	Workers     int
	WithRisk    bool
	CoefsPath   string // tuner output whose trial mean feeds the risk transform
	ScoresDir   string
	ListFile    string
	CoefsDir    string
	Trials      int
	DSN         string
	LogFormat   string // "text" or "json"
	LogLevel    string
	ProfilePath string
	Addr        string
	Explain     bool

	// From the YAML profile.
	Aliases      map[string]string    `yaml:"aliases"`
	Coefficients map[string][]float64 `yaml:"coefficients"`
}

// yamlConfig is the on-disk YAML profile.
type yamlConfig struct {
	Partitions   []string             `yaml:"partitions"`
	Aliases      map[string]string    `yaml:"aliases"`
	Coefficients map[string][]float64 `yaml:"coefficients"`
}

// FromEnv returns a Config seeded from ICUSCORE_* environment variables. Flags
// override these values.
func FromEnv() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ICUSCORE")
	v.AutomaticEnv()

	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("WORKERS", runtime.NumCPU())
	v.SetDefault("ADDR", ":8080")

	for _, key := range []string{"DSN", "LOG_FORMAT", "LOG_LEVEL", "WORKERS", "ADDR"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	workers := v.GetInt("WORKERS")
	if workers <= 0 {
		return nil, fmt.Errorf("ICUSCORE_WORKERS must be positive, got %q", v.GetString("WORKERS"))
	}
	return &Config{
		DSN:        v.GetString("DSN"),
		LogFormat:  v.GetString("LOG_FORMAT"),
		LogLevel:   v.GetString("LOG_LEVEL"),
		Workers:    workers,
		Addr:       v.GetString("ADDR"),
		Partitions: append([]string(nil), DefaultPartitions...),
	}, nil
}

// LoadFromFile reads a YAML profile and merges its values into Config.
func (c *Config) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	if len(yc.Partitions) > 0 {
		c.Partitions = yc.Partitions
	}
	c.Aliases = yc.Aliases
	c.Coefficients = yc.Coefficients
	if err := c.validateAliases(); err != nil {
		return err
	}
	return c.validateCoefficients()
}

// knownVariables is every canonical column any system reads, plus the time column.
func knownVariables() map[string]bool {
	known := map[string]bool{severity.VarHours: true}
	for _, s := range severity.AllSystems {
		d, err := s.Definition()
		if err != nil {
			continue
		}
		for _, v := range d.Inputs() {
			known[v] = true
		}
	}
	return known
}

// validateAliases checks that every profile alias points at a canonical variable.
func (c *Config) validateAliases() error {
	known := knownVariables()
	for header, target := range c.Aliases {
		if !known[normalize.NormalizeName(target)] {
			return fmt.Errorf("alias %q: unknown variable %q in config", header, target)
		}
	}
	return nil
}

func (c *Config) validateCoefficients() error {
	for name, coefs := range c.Coefficients {
		sys, err := severity.ParseSystem(name)
		if err != nil {
			return fmt.Errorf("coefficients: %w", err)
		}
		d, err := sys.Definition()
		if err != nil {
			return err
		}
		if _, err := d.Risk(0, coefs); err != nil {
			return fmt.Errorf("coefficients for %s: %w", sys, err)
		}
	}
	return nil
}

// ScoreSystem parses the configured score system.
func (c *Config) ScoreSystem() (severity.System, error) {
	return severity.ParseSystem(c.System)
}

// AliasMap returns the built-in aliases extended by the profile's.
func (c *Config) AliasMap() normalize.Aliases {
	return normalize.DefaultAliases().With(c.Aliases)
}

// ProfileCoefficients returns the profile's default coefficients for sys, if any.
func (c *Config) ProfileCoefficients(sys severity.System) (severity.Coefficients, bool) {
	for name, coefs := range c.Coefficients {
		if s, err := severity.ParseSystem(name); err == nil && s == sys {
			return severity.Coefficients(coefs), true
		}
	}
	return nil, false
}

// Validate checks the fields every command needs.
func (c *Config) Validate() error {
	if c.System == "" {
		return fmt.Errorf("--system is required")
	}
	if _, err := c.ScoreSystem(); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("--log-format must be text or json, got %q", c.LogFormat)
	}
	if c.Workers < 0 {
		return fmt.Errorf("--workers must not be negative")
	}
	return nil
}

// ValidateScore checks the fields of a batch scoring run.
func (c *Config) ValidateScore() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.DataRoot == "" {
		return fmt.Errorf("--data is required")
	}
	if err := dirExists(c.DataRoot); err != nil {
		return fmt.Errorf("data root not accessible: %w", err)
	}
	if c.OutDir == "" {
		return fmt.Errorf("--out is required")
	}
	if len(c.Partitions) == 0 {
		return fmt.Errorf("at least one partition is required")
	}
	if c.CoefsPath != "" {
		if _, err := os.Stat(c.CoefsPath); err != nil {
			return fmt.Errorf("coefficients file not accessible: %w", err)
		}
	}
	return nil
}

// ValidateTune checks the fields of a tuning run.
func (c *Config) ValidateTune() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.ScoresDir == "" {
		return fmt.Errorf("--scores is required")
	}
	if err := dirExists(c.ScoresDir); err != nil {
		return fmt.Errorf("scores dir not accessible: %w", err)
	}
	if c.ListFile == "" {
		return fmt.Errorf("--listfile is required")
	}
	if _, err := os.Stat(c.ListFile); err != nil {
		return fmt.Errorf("listfile not accessible: %w", err)
	}
	if c.CoefsDir == "" {
		return fmt.Errorf("--coefs is required")
	}
	if c.Trials < 0 {
		return fmt.Errorf("--trials must not be negative")
	}
	return nil
}

// ValidateWithDSN checks that a database is configured.
func (c *Config) ValidateWithDSN() error {
	if c.DSN == "" {
		return fmt.Errorf("--dsn or ICUSCORE_DSN is required")
	}
	return nil
}

func dirExists(path string) error {
	st, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !st.IsDir() {
		return fmt.Errorf("%s is not a directory", path)
	}
	return nil
}
