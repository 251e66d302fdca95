package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"auth-service/app"
	"auth-service/internal/observability"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := observability.NewLogger()

			cfg, err := app.LoadConfig(app.LoadOptions{
				ConfigFile: configFile,
				Flags:      cmd.Flags(),
				LoadDotEnv: true,
			})
			if err != nil {
				observability.LogError(logger, "load_config_failed", err)
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg, logger)
		},
	}

	app.RegisterFlags(cmd.Flags())

	return cmd
}

func runServe(ctx context.Context, cfg app.Config, logger *observability.Logger) error {
	rt, err := app.Build(cfg, logger)
	if err != nil {
		observability.LogError(logger, "bootstrap_failed", err)
		return err
	}
	defer rt.Close()

	go rt.RunSweeper(ctx)

	server := newHTTPServer(cfg.Addr, rt.Handler)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server_start", map[string]any{"addr": cfg.Addr})
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.Error("server_failed", map[string]any{"error": err.Error()})
		return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	case <-ctx.Done():
	}

	logger.Info("server_shutdown", map[string]any{"timeout_ms": shutdownTimeout.Milliseconds()})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server_shutdown_failed", map[string]any{"error": err.Error()})
		return fmt.Errorf("shutdown: %w", err)
	}

	logger.Info("server_stopped", nil)
	return nil
}

func newHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
