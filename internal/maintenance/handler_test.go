package maintenance

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auth-service/internal/observability"
)

func newTestCleanupHandler(t *testing.T, secret string) *CleanupHandler {
	t.Helper()
	accounts, tokens := seededStores(t)
	cleaner := NewCleaner(accounts, tokens, nil)
	cleaner.now = func() time.Time { return epoch.Add(5 * time.Minute) }
	return NewCleanupHandler(cleaner, observability.NewLoggerTo(&bytes.Buffer{}, slog.LevelInfo), secret)
}

func TestCleanupHandler(t *testing.T) {
	handler := newTestCleanupHandler(t, "cron-secret")

	tests := []struct {
		name   string
		method string
		auth   string
		status int
	}{
		{"missing header", http.MethodPost, "", http.StatusUnauthorized},
		{"wrong secret", http.MethodPost, "Bearer nope", http.StatusUnauthorized},
		{"wrong scheme", http.MethodPost, "Basic cron-secret", http.StatusUnauthorized},
		{"bad method", http.MethodDelete, "Bearer cron-secret", http.StatusMethodNotAllowed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/internal/maintenance/cleanup", nil)
			if tt.auth != "" {
				req.Header.Set("Authorization", tt.auth)
			}
			rec := httptest.NewRecorder()
			handler.Handle(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}

	t.Run("authorized run", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/internal/maintenance/cleanup", nil)
		req.Header.Set("Authorization", "Bearer cron-secret")
		rec := httptest.NewRecorder()
		handler.Handle(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)

		var body struct {
			Status string        `json:"status"`
			Result CleanupResult `json:"result"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "ok", body.Status)
		assert.Equal(t, CleanupResult{DeletedRefreshTokens: 1, ClearedLocks: 1}, body.Result)
	})
}

func TestCleanupHandler_HiddenWithoutSecret(t *testing.T) {
	handler := newTestCleanupHandler(t, "  ")

	req := httptest.NewRequest(http.MethodPost, "/internal/maintenance/cleanup", nil)
	req.Header.Set("Authorization", "Bearer ")
	rec := httptest.NewRecorder()
	handler.Handle(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
