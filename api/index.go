package api

import (
	"encoding/json"
	"net/http"
	"sync"

	"auth-service/app"
	"auth-service/internal/observability"
)

var (
	initOnce   sync.Once
	apiRuntime *app.Runtime
	initErr    error
)

// Handler is the serverless entry point. The runtime is built on the first
// request and reused by the warm instance; its in-memory state does not
// survive a cold start.
func Handler(w http.ResponseWriter, r *http.Request) {
	initOnce.Do(func() {
		logger := observability.NewLogger()
		cfg, err := app.LoadConfig(app.LoadOptions{})
		if err != nil {
			observability.LogError(logger, "load_config_failed", err)
			initErr = err
			return
		}
		apiRuntime, initErr = app.Build(cfg, logger)
	})

	if initErr != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "application bootstrap failed"})
		return
	}

	apiRuntime.Handler.ServeHTTP(w, r)
}
