package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gyeh/icuscore/internal/api"
	"github.com/gyeh/icuscore/internal/exitcode"
	"github.com/gyeh/icuscore/internal/severity"
	"github.com/gyeh/icuscore/internal/tune"
)

var corsOrigins []string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the scoring API over HTTP",
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&cfg.Addr, "addr", "", "Listen address (or set ICUSCORE_ADDR; default :8080)")
	f.StringSliceVar(&corsOrigins, "cors-origins", nil, "Allowed CORS origins (default http://localhost:3000)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := setupLog()

	// Per-system defaults: profile coefficients, else published.
	coefs := make(map[severity.System]severity.Coefficients, len(severity.AllSystems))
	for _, sys := range severity.AllSystems {
		def, err := sys.Definition()
		if err != nil {
			continue
		}
		c, src, err := tune.Resolve(&cfg, def)
		if err != nil {
			log.Error().Err(err).Str("system", sys.String()).Msg("load coefficients failed")
			os.Exit(exitcode.ValidationError)
		}
		log.Info().Str("system", sys.String()).Floats64("coefficients", c).Str("source", src).Msg("risk coefficients")
		coefs[sys] = c
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           api.NewRouter(api.NewHandler(log, cfg.AliasMap(), coefs), corsOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.Addr).Msg("listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server failed")
		os.Exit(exitcode.UsageError)
	}
	return nil
}
