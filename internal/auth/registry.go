package auth

import (
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// Registry owns the live refresh-token records, keyed by token id. The signed
// token string itself is never stored.
type Registry struct {
	records *xsync.MapOf[string, RefreshTokenRecord]
	now     Clock
}

func NewRegistry(clock Clock) *Registry {
	if clock == nil {
		clock = systemClock
	}
	return &Registry{
		records: xsync.NewMapOf[string, RefreshTokenRecord](),
		now:     clock,
	}
}

func (r *Registry) Store(tokenID, accountID string, expiresAt time.Time) {
	r.records.Store(tokenID, RefreshTokenRecord{
		TokenID:   tokenID,
		AccountID: accountID,
		ExpiresAt: expiresAt.UTC(),
	})
}

// Validate reports whether tokenID is live and owned by accountID. An expired
// record is evicted by the check itself.
func (r *Registry) Validate(tokenID, accountID string) bool {
	now := r.now()
	valid := false
	r.records.Compute(tokenID, func(record RefreshTokenRecord, loaded bool) (RefreshTokenRecord, bool) {
		if !loaded {
			return record, true
		}
		if record.expired(now) {
			return record, true
		}
		valid = record.AccountID == accountID
		return record, false
	})
	return valid
}

// Revoke is idempotent; revoking an unknown id is not an error.
func (r *Registry) Revoke(tokenID string) {
	r.records.Delete(tokenID)
}

// Rotate consumes oldID and stores its replacement. Consumption is a single
// Compute on oldID, so of several concurrent rotations of the same token only
// one observes the live record; the rest get false and store nothing. The old
// record is gone before the new one exists, so there is never a moment with
// two live records for one session.
func (r *Registry) Rotate(oldID, accountID, newID string, newExpiresAt time.Time) bool {
	now := r.now()
	consumed := false
	r.records.Compute(oldID, func(record RefreshTokenRecord, loaded bool) (RefreshTokenRecord, bool) {
		if !loaded {
			return record, true
		}
		if record.expired(now) {
			return record, true
		}
		if record.AccountID != accountID {
			return record, false
		}
		consumed = true
		return record, true
	})
	if !consumed {
		return false
	}

	r.Store(newID, accountID, newExpiresAt)
	return true
}

// Sweep deletes every record expired at now and returns how many went.
func (r *Registry) Sweep(now time.Time) int {
	evicted := 0
	r.records.Range(func(tokenID string, record RefreshTokenRecord) bool {
		if !record.expired(now) {
			return true
		}
		r.records.Compute(tokenID, func(current RefreshTokenRecord, loaded bool) (RefreshTokenRecord, bool) {
			if !loaded {
				return current, true
			}
			if current.expired(now) {
				evicted++
				return current, true
			}
			return current, false
		})
		return true
	})
	return evicted
}

func (r *Registry) Len() int {
	return r.records.Size()
}
