package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/icuscore/internal/batch"
	"github.com/gyeh/icuscore/internal/exitcode"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score every stay of each partition and write <partition>_<system>_scores.csv",
	RunE:  runScore,
}

func init() {
	f := scoreCmd.Flags()
	f.StringVar(&cfg.DataRoot, "data", "", "Dataset root holding one directory per partition (required)")
	f.StringVar(&cfg.OutDir, "out", "", "Directory for score files (required)")
	f.BoolVar(&cfg.WithRisk, "with-risk", false, "Add a risk column computed from the resolved coefficients")
	f.StringVar(&cfg.CoefsPath, "coefs", "", "Coefficient table from `tune`; its trial mean is used for risk")
	f.StringSliceVar(&cfg.Partitions, "partitions", nil, "Partitions to score (default test,train or the profile's)")
	_ = scoreCmd.MarkFlagRequired("data")
	_ = scoreCmd.MarkFlagRequired("out")
	rootCmd.AddCommand(scoreCmd)
}

func runScore(cmd *cobra.Command, args []string) error {
	log := setupLog()
	ctx := context.Background()

	if err := cfg.ValidateScore(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	var sink batch.ScoreSink
	if cfg.DSN != "" {
		store, closeFn := openStore(ctx, log)
		defer closeFn()
		sink = store
	}

	summary, err := batch.Run(ctx, log, &cfg, sink)
	if err != nil {
		var pe *batch.PipelineError
		if errors.As(err, &pe) {
			log.Error().Err(pe.Err).Str("phase", pe.Phase).Msg("scoring failed")
			switch pe.Phase {
			case batch.PhasePreflight:
				os.Exit(exitcode.ValidationError)
			case batch.PhasePersist:
				os.Exit(exitcode.PersistError)
			default:
				os.Exit(exitcode.ScoreError)
			}
		}
		log.Error().Err(err).Msg("scoring failed")
		os.Exit(exitcode.ScoreError)
	}

	for _, p := range summary.Partitions {
		fmt.Printf("%-8s %5d scored  %4d window missing  %4d failed  → %s\n",
			p.Partition, p.StaysScored, p.WindowMissing, len(p.Errors), p.OutputPath)
	}
	fmt.Printf("Scoring complete: %d stays (%.1fs)\n", summary.Scored(), summary.DurationTotal.Seconds())
	if failed := summary.Failed(); len(failed) > 0 {
		for _, e := range failed {
			fmt.Fprintf(os.Stderr, "  failed: %s\n", e.Error())
		}
		os.Exit(exitcode.PartialSuccess)
	}
	return nil
}
