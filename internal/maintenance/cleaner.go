package maintenance

import (
	"context"
	"time"

	"auth-service/internal/auth"
	"auth-service/internal/observability"
)

type CleanupResult struct {
	DeletedRefreshTokens int `json:"deleted_refresh_tokens"`
	ClearedLocks         int `json:"cleared_locks"`
}

// EvictionRecorder is satisfied by observability.Metrics.
type EvictionRecorder interface {
	Evicted(kind string, count int)
}

// Cleaner evicts state that lazy expiry would otherwise keep until the next
// read: expired refresh records and stale lock-until values.
type Cleaner struct {
	accounts *auth.Directory
	tokens   *auth.Registry
	recorder EvictionRecorder
	now      func() time.Time
}

func NewCleaner(accounts *auth.Directory, tokens *auth.Registry, recorder EvictionRecorder) *Cleaner {
	return &Cleaner{
		accounts: accounts,
		tokens:   tokens,
		recorder: recorder,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (c *Cleaner) Run() CleanupResult {
	now := c.now()
	result := CleanupResult{
		DeletedRefreshTokens: c.tokens.Sweep(now),
		ClearedLocks:         c.accounts.ClearExpiredLocks(now),
	}

	if c.recorder != nil {
		c.recorder.Evicted("refresh_token", result.DeletedRefreshTokens)
		c.recorder.Evicted("lock", result.ClearedLocks)
	}
	return result
}

// Sweep runs the cleaner every interval until ctx is done.
func Sweep(ctx context.Context, cleaner *Cleaner, logger *observability.Logger, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result := cleaner.Run()
			if result.DeletedRefreshTokens > 0 || result.ClearedLocks > 0 {
				logger.Info("auth_sweep_completed", map[string]any{
					"deleted_refresh_tokens": result.DeletedRefreshTokens,
					"cleared_locks":          result.ClearedLocks,
				})
			}
		}
	}
}
