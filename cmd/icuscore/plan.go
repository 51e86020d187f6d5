package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gyeh/icuscore/internal/batch"
	"github.com/gyeh/icuscore/internal/exitcode"
	"github.com/gyeh/icuscore/internal/severity"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Dry-run validation and variable coverage (no writes)",
	RunE:  runPlan,
}

func init() {
	f := planCmd.Flags()
	f.StringVar(&cfg.DataRoot, "data", "", "Dataset root holding one directory per partition (required)")
	f.StringSliceVar(&cfg.Partitions, "partitions", nil, "Partitions to inspect (default test,train or the profile's)")
	f.BoolVar(&cfg.Explain, "explain", false, "Print each stay's per-variable points")
	_ = planCmd.MarkFlagRequired("data")
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	log := setupLog()

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	report, err := batch.Plan(context.Background(), log, &cfg)
	if err != nil {
		log.Error().Err(err).Msg("plan failed")
		os.Exit(exitcode.ValidationError)
	}

	fmt.Println("=== icuscore plan ===")
	fmt.Printf("System:     %s\n", report.System)
	fmt.Printf("Data root:  %s\n", cfg.DataRoot)
	for _, p := range report.Partitions {
		fmt.Println()
		fmt.Printf("Partition %s: %d stays, %d without window data, %d unreadable\n",
			p.Name, p.Stays, p.WindowMissing, p.Unreadable)
		scored := p.Stays - p.Unreadable
		for _, v := range report.Variables {
			pct := 0.0
			if scored > 0 {
				pct = 100 * float64(p.Scored[v]) / float64(scored)
			}
			fmt.Printf("  %-36s %6d stays scored (%.1f%%)\n", v, p.Scored[v], pct)
		}
		for _, s := range p.Scores {
			fmt.Printf("  %s total=%d", s.Stay, s.Result.Total)
			for _, v := range s.Result.Variables {
				switch {
				case v.Masked:
					fmt.Printf(" %s=0(masked)", v.Variable)
				case v.Points == severity.Absent:
					fmt.Printf(" %s=-", v.Variable)
				default:
					fmt.Printf(" %s=%d", v.Variable, v.Points)
				}
			}
			fmt.Println()
		}
	}
	return nil
}
