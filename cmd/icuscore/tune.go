package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/icuscore/internal/exitcode"
	"github.com/gyeh/icuscore/internal/tune"
)

var tuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Re-fit risk coefficients on repeated stratified splits of the training scores",
	RunE:  runTune,
}

func init() {
	f := tuneCmd.Flags()
	f.StringVar(&cfg.ScoresDir, "scores", "", "Directory holding train_<system>_scores.csv (required)")
	f.StringVar(&cfg.ListFile, "listfile", "", "Labels file with stay,y_true columns (required)")
	f.StringVar(&cfg.CoefsDir, "coefs", "", "Directory for <system>.csv (required)")
	f.IntVar(&cfg.Trials, "trials", 10, "Number of resampling trials")
	_ = tuneCmd.MarkFlagRequired("scores")
	_ = tuneCmd.MarkFlagRequired("listfile")
	_ = tuneCmd.MarkFlagRequired("coefs")
	rootCmd.AddCommand(tuneCmd)
}

func runTune(cmd *cobra.Command, args []string) error {
	log := setupLog()
	ctx := context.Background()

	if err := cfg.ValidateTune(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	var store tune.CoefficientStore
	if cfg.DSN != "" {
		s, closeFn := openStore(ctx, log)
		defer closeFn()
		store = s
	}

	summary, err := tune.Run(ctx, log, &cfg, store)
	if err != nil {
		log.Error().Err(err).Msg("tuning failed")
		if errors.Is(err, tune.ErrStratification) || errors.Is(err, tune.ErrNoSamples) {
			os.Exit(exitcode.ValidationError)
		}
		os.Exit(exitcode.TuneError)
	}

	for _, s := range summary.Stats {
		fmt.Printf("%s  mean %.6f  std %.6f\n", s.Name, s.Mean, s.StdDev)
	}
	fmt.Printf("Tuning complete: %d/%d trials → %s (%.1fs)\n",
		summary.RowsWritten, len(summary.Trials), summary.OutputPath, summary.Duration.Seconds())
	if len(summary.Failed()) > 0 {
		os.Exit(exitcode.PartialSuccess)
	}
	return nil
}
