package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/gyeh/icuscore/internal/exitcode"
	"github.com/gyeh/icuscore/internal/severity"
	"github.com/gyeh/icuscore/internal/tune"
)

var (
	riskFromDB       bool
	riskCoefficients []float64
)

var riskCmd = &cobra.Command{
	Use:   "risk SCORE [SCORE...]",
	Short: "Convert total scores into mortality probabilities",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRisk,
}

func init() {
	f := riskCmd.Flags()
	f.StringVar(&cfg.CoefsPath, "coefs", "", "Coefficient table from `tune`; its trial mean is used")
	f.Float64SliceVar(&riskCoefficients, "coefficients", nil, "Explicit coefficients b0,b1[,b2]")
	f.BoolVar(&riskFromDB, "from-db", false, "Use the mean of the latest stored tuning run")
	rootCmd.AddCommand(riskCmd)
}

func runRisk(cmd *cobra.Command, args []string) error {
	log := setupLog()
	ctx := context.Background()

	if err := cfg.Validate(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}
	sys, _ := cfg.ScoreSystem()
	def, err := sys.Definition()
	if err != nil {
		log.Error().Err(err).Msg("unknown system")
		os.Exit(exitcode.UsageError)
	}

	var coefs severity.Coefficients
	source := "flag"
	switch {
	case len(riskCoefficients) > 0:
		coefs = riskCoefficients
	case riskFromDB:
		if err := cfg.ValidateWithDSN(); err != nil {
			log.Error().Err(err).Msg("config validation failed")
			os.Exit(exitcode.UsageError)
		}
		store, closeFn := openStore(ctx, log)
		defer closeFn()
		sets, err := store.LatestCoefficients(ctx, sys.String())
		if err != nil {
			log.Error().Err(err).Msg("load coefficients failed")
			os.Exit(exitcode.ValidationError)
		}
		coefs, source = tune.Mean(sets), "database"
	default:
		coefs, source, err = tune.Resolve(&cfg, def)
		if err != nil {
			log.Error().Err(err).Msg("load coefficients failed")
			os.Exit(exitcode.ValidationError)
		}
	}
	log.Debug().Floats64("coefficients", coefs).Str("source", source).Msg("resolved coefficients")

	for _, arg := range args {
		score, err := strconv.ParseFloat(arg, 64)
		if err != nil || score < 0 {
			log.Error().Str("score", arg).Msg("score must be a non-negative number")
			os.Exit(exitcode.UsageError)
		}
		p, err := def.Risk(score, coefs)
		if err != nil {
			log.Error().Err(err).Msg("risk failed")
			os.Exit(exitcode.ValidationError)
		}
		fmt.Printf("%s\t%g\n", arg, p)
	}
	return nil
}
