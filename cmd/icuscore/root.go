package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gyeh/icuscore/internal/config"
	"github.com/gyeh/icuscore/internal/db"
	"github.com/gyeh/icuscore/internal/exitcode"
	"github.com/gyeh/icuscore/internal/logging"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "icuscore",
	Short: "ICU severity scoring (OASIS, SAPS II) and risk calibration",
	Long: "Scores first-day ICU timeseries with OASIS or SAPS II, converts scores to " +
		"in-hospital mortality risk and re-fits the risk coefficients on labeled stays.",
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.DSN, "dsn", "", "Postgres connection string (or set ICUSCORE_DSN)")
	pf.StringVar(&cfg.LogFormat, "log-format", "text", "Log format: text or json (or set ICUSCORE_LOG_FORMAT)")
	pf.StringVar(&cfg.LogLevel, "log-level", "info", "Log level (or set ICUSCORE_LOG_LEVEL)")
	pf.IntVar(&cfg.Workers, "workers", 0, "Parallel stays or trials (or set ICUSCORE_WORKERS; default NumCPU)")
	pf.StringVar(&cfg.ProfilePath, "profile", "", "YAML profile with aliases, partitions and coefficients")
	pf.StringVar(&cfg.System, "system", "", "Score system: oasis or saps2")
}

// loadConfig fills flags left unset from ICUSCORE_* variables, then merges the profile.
func loadConfig(cmd *cobra.Command, args []string) error {
	env, err := config.FromEnv()
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if !flags.Changed("dsn") {
		cfg.DSN = env.DSN
	}
	if !flags.Changed("log-format") {
		cfg.LogFormat = env.LogFormat
	}
	if !flags.Changed("log-level") {
		cfg.LogLevel = env.LogLevel
	}
	if !flags.Changed("workers") {
		cfg.Workers = env.Workers
	}
	if cfg.Addr == "" {
		cfg.Addr = env.Addr
	}
	flagPartitions := cfg.Partitions
	if len(cfg.Partitions) == 0 {
		cfg.Partitions = env.Partitions
	}
	if cfg.ProfilePath != "" {
		if err := cfg.LoadFromFile(cfg.ProfilePath); err != nil {
			return err
		}
	}
	if flags.Changed("partitions") {
		cfg.Partitions = flagPartitions
	}
	return nil
}

func setupLog() zerolog.Logger {
	return logging.Setup(cfg.LogFormat, cfg.LogLevel)
}

// openStore connects to cfg.DSN or exits with DBConnError.
func openStore(ctx context.Context, log zerolog.Logger) (*db.Store, func()) {
	pool, err := db.NewPool(ctx, cfg.DSN, int32(cfg.Workers))
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	return db.NewStore(pool, log), pool.Close
}
