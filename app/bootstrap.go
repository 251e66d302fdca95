package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"auth-service/internal/auth"
	"auth-service/internal/maintenance"
	"auth-service/internal/observability"
	"auth-service/internal/protected"
)

// Version is stamped at build time.
var Version = "dev"

type Runtime struct {
	Handler http.Handler
	Service *auth.Service
	Logger  *observability.Logger

	cleaner       *maintenance.Cleaner
	sweepInterval time.Duration
}

// Close flushes pending Sentry events. The stores are in memory, so there is
// nothing else to release.
func (r *Runtime) Close() error {
	observability.FlushSentry()
	return nil
}

// RunSweeper blocks, evicting expired state every SweepInterval, until ctx is
// done. It returns at once when the interval is zero.
func (r *Runtime) RunSweeper(ctx context.Context) {
	maintenance.Sweep(ctx, r.cleaner, r.Logger, r.sweepInterval)
}

func Build(cfg Config, logger *observability.Logger) (*Runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.NewLogger()
	}

	if err := observability.InitSentry(cfg.SentryDSN, cfg.Env, Version); err != nil {
		logger.Error("init_sentry_failed", map[string]any{"error": err.Error()})
	}

	hasher, err := auth.NewBcryptHasher(cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("init hasher: %w", err)
	}
	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{
		AccessSecret:  cfg.AccessSecret,
		RefreshSecret: cfg.RefreshSecret,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("init token issuer: %w", err)
	}

	metrics := observability.NewMetrics()

	accounts := auth.NewDirectory(nil)
	tokens := auth.NewRegistry(nil)
	metrics.TrackLiveRefreshTokens(tokens.Len)

	authService := auth.NewService(accounts, tokens, hasher, issuer).
		WithSecurityConfig(auth.LockoutPolicy{MaxAttempts: cfg.MaxAttempts, LockDuration: cfg.LockDuration}).
		WithRecorder(metrics)
	authHandler := auth.NewHandler(authService, cfg.SelfServiceRoles)

	if err := authService.BootstrapAdmin(cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return nil, fmt.Errorf("bootstrap admin: %w", err)
	}

	cleaner := maintenance.NewCleaner(accounts, tokens, metrics)
	cleanupHandler := maintenance.NewCleanupHandler(cleaner, logger, cfg.CronSecret)

	loginLimiter := auth.NewLoginRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", rootHandler)
	mux.HandleFunc("GET /health", healthHandler)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("POST /auth/register", authHandler.Register)
	mux.Handle("POST /auth/login", loginLimiter.Middleware(http.HandlerFunc(authHandler.Login)))
	mux.HandleFunc("POST /auth/refresh", authHandler.Refresh)
	mux.HandleFunc("POST /auth/logout", authHandler.Logout)
	mux.HandleFunc("GET /internal/maintenance/cleanup", cleanupHandler.Handle)
	mux.HandleFunc("POST /internal/maintenance/cleanup", cleanupHandler.Handle)
	protected.NewHandler().Routes(mux, authService)

	handler := observability.RequestLoggingMiddleware(logger, observability.RecoverMiddleware(logger, mux))

	return &Runtime{
		Handler:       handler,
		Service:       authService,
		Logger:        logger,
		cleaner:       cleaner,
		sweepInterval: cfg.SweepInterval,
	}, nil
}

func rootHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "API OK"})
}

func healthHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
