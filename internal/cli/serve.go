package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/roach88/backstock/internal/apply"
	"github.com/roach88/backstock/internal/catalog"
	"github.com/roach88/backstock/internal/reconcile"
	"github.com/roach88/backstock/internal/reorder"
	"github.com/roach88/backstock/internal/server"
	"github.com/roach88/backstock/internal/store"
)

// accessTokenEnv names the Admin API token variable, loadable from a
// .env file alongside the config.
const accessTokenEnv = "SHOPIFY_ACCESS_TOKEN"

// NewServeCommand creates the serve command: run the reconciliation
// controller and the HTTP API until interrupted.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the reconciliation controller and HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *RootOptions) error {
	logger := newLogger(opts.Verbose)

	cfg, err := LoadConfig(opts.ConfigPath)
	if err != nil {
		return err
	}

	// Credentials live in the environment, optionally via .env.
	_ = godotenv.Load()
	token := os.Getenv(accessTokenEnv)
	if token == "" {
		return fmt.Errorf("%s is not set", accessTokenEnv)
	}

	st, err := store.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer st.Close()

	cat := catalog.NewClient(cfg.Shop, token, cfg.APIVersion, catalog.WithLogger(logger))
	reorderClient := reorder.NewClient(cat, reorder.WithLogger(logger))
	applier := apply.NewService(cfg.Shop, st, cat, reorderClient, apply.WithLogger(logger))
	controller := reconcile.New(applier, reconcile.WithLogger(logger))

	// Rebuild desired state from the store; implemented state starts
	// empty, so the first reconcile pass re-applies every enabled
	// collection against the catalog.
	seeded, err := st.LoadAll(ctx, cfg.Shop)
	if err != nil {
		return err
	}
	controller.Seed(seeded)
	logger.Info("desired state rebuilt from store", "collections", len(seeded))

	runCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go controller.Run(runCtx)
	controller.Reconcile()

	srv := server.New(controller, cfg.ListenAddr, logger)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-runCtx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
