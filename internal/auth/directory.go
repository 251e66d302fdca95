package auth

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

// Clock returns the current time. Tests substitute a controllable one.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}

// Directory owns every Account. Records are held by value and only copies
// leave the directory; all mutation goes through per-key Compute calls so
// concurrent logins against one account cannot lose an update.
type Directory struct {
	byID    *xsync.MapOf[string, Account]
	byEmail *xsync.MapOf[string, string]
	now     Clock
}

func NewDirectory(clock Clock) *Directory {
	if clock == nil {
		clock = systemClock
	}
	return &Directory{
		byID:    xsync.NewMapOf[string, Account](),
		byEmail: xsync.NewMapOf[string, string](),
		now:     clock,
	}
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create indexes a new account under its normalized email. The account record
// is stored while the email slot is held, so anyone who can see the email can
// also load the account.
func (d *Directory) Create(email, passwordHash string, roles []string) (Account, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return Account{}, validationError("email is required")
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Account{}, fmt.Errorf("generate account id: %w", err)
	}

	account := Account{
		ID:           id.String(),
		Email:        email,
		PasswordHash: passwordHash,
		Roles:        slices.Clone(roles),
		CreatedAt:    d.now(),
	}

	duplicate := false
	d.byEmail.Compute(email, func(existingID string, loaded bool) (string, bool) {
		if loaded {
			duplicate = true
			return existingID, false
		}
		d.byID.Store(account.ID, account)
		return account.ID, false
	})
	if duplicate {
		return Account{}, ErrDuplicateEmail
	}

	return account.clone(), nil
}

func (d *Directory) GetByEmail(email string) (Account, error) {
	id, ok := d.byEmail.Load(NormalizeEmail(email))
	if !ok {
		return Account{}, ErrNotFound
	}
	return d.GetByID(id)
}

func (d *Directory) GetByID(id string) (Account, error) {
	account, ok := d.byID.Load(id)
	if !ok {
		return Account{}, ErrNotFound
	}
	return account.clone(), nil
}

// RecordFailedAttempt applies one failure under policy and returns the lock
// expiry when this failure tripped the lock. Unknown ids are ignored.
func (d *Directory) RecordFailedAttempt(id string, policy LockoutPolicy) *time.Time {
	now := d.now()
	var tripped *time.Time
	d.byID.Compute(id, func(account Account, loaded bool) (Account, bool) {
		if !loaded {
			return account, true
		}
		before := account.LockedUntil
		account.FailedAttempts, account.LockedUntil = policy.RegisterFailure(account.FailedAttempts, account.LockedUntil, now)
		if account.LockedUntil != nil && account.LockedUntil != before {
			until := *account.LockedUntil
			tripped = &until
		}
		return account, false
	})
	return tripped
}

func (d *Directory) RecordSuccess(id string, policy LockoutPolicy) {
	d.byID.Compute(id, func(account Account, loaded bool) (Account, bool) {
		if !loaded {
			return account, true
		}
		account.FailedAttempts, account.LockedUntil = policy.RegisterSuccess()
		return account, false
	})
}

// IsLocked reports whether the account is inside a lock window. An expired
// lock is cleared on the way out, so no background sweep is needed for
// correctness.
func (d *Directory) IsLocked(id string) (bool, time.Time) {
	now := d.now()
	locked := false
	var until time.Time
	d.byID.Compute(id, func(account Account, loaded bool) (Account, bool) {
		if !loaded {
			return account, true
		}
		if account.LockedUntil == nil {
			return account, false
		}
		if Locked(account.LockedUntil, now) {
			locked = true
			until = *account.LockedUntil
			return account, false
		}
		account.LockedUntil = nil
		return account, false
	})
	return locked, until
}

// ClearExpiredLocks drops lock-until values that are already in the past and
// returns how many were cleared.
func (d *Directory) ClearExpiredLocks(now time.Time) int {
	cleared := 0
	d.byID.Range(func(id string, account Account) bool {
		if account.LockedUntil == nil || Locked(account.LockedUntil, now) {
			return true
		}
		d.byID.Compute(id, func(current Account, loaded bool) (Account, bool) {
			if !loaded {
				return current, true
			}
			if current.LockedUntil != nil && !Locked(current.LockedUntil, now) {
				current.LockedUntil = nil
				cleared++
			}
			return current, false
		})
		return true
	})
	return cleared
}

func (d *Directory) Len() int {
	return d.byID.Size()
}
