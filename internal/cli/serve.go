package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"insureguard/risk-api/internal/config"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		addr       string
		claimsFile string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the risk scoring API",
		Long: `Start the HTTP API.

On startup the latest persisted model artifact is loaded, the claim corpus
is seeded (from --claims or the synthetic generator), and a model is trained
when none could be loaded and training.on_startup is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := root.load()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger, claimsFile)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")
	cmd.Flags().StringVar(&claimsFile, "claims", "", "JSON file of claims to load on startup")
	return cmd
}

// serve runs the API until ctx is cancelled, then shuts down gracefully.
func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger, claimsFile string) error {
	// Platforms such as Railway inject PORT; it wins over the config.
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Addr = ":" + port
	}

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Warn("closing resources", zap.Error(err))
		}
	}()

	claims, err := startupClaims(cfg, claimsFile)
	if err != nil {
		// The API works without a seed corpus.
		logger.Warn("seed claims not loaded", zap.String("file", claimsFile), zap.Error(err))
	}
	if err := a.bootstrap(ctx, claims); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      a.router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.String("addr", cfg.Server.Addr),
			zap.String("environment", cfg.Environment),
			zap.String("artifact_backend", cfg.Artifacts.Backend),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
		return err
	}
	logger.Info("server stopped")
	return nil
}
