package auth

import (
	"fmt"
	"time"
)

const (
	defaultMaxAttempts  = 5
	defaultLockDuration = 15 * time.Minute
)

// LockoutPolicy decides how failed password attempts turn into a timed lock.
// It holds no state; Directory applies it inside its per-account update.
type LockoutPolicy struct {
	MaxAttempts  int
	LockDuration time.Duration
}

func DefaultLockoutPolicy() LockoutPolicy {
	return LockoutPolicy{MaxAttempts: defaultMaxAttempts, LockDuration: defaultLockDuration}
}

func (p LockoutPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("lockout max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.LockDuration < 0 {
		return fmt.Errorf("lockout duration must not be negative, got %s", p.LockDuration)
	}
	return nil
}

// RegisterFailure returns the counter and lock that follow one more wrong
// password. Reaching the threshold locks until now+LockDuration and restarts
// the count at zero, so the window after an unlock starts fresh.
func (p LockoutPolicy) RegisterFailure(failedAttempts int, lockedUntil *time.Time, now time.Time) (int, *time.Time) {
	failedAttempts++
	if failedAttempts >= p.MaxAttempts {
		until := now.Add(p.LockDuration)
		return 0, &until
	}
	return failedAttempts, lockedUntil
}

// RegisterSuccess clears the counter and any lock.
func (p LockoutPolicy) RegisterSuccess() (int, *time.Time) {
	return 0, nil
}

// Locked reports whether lockedUntil is still ahead of now.
func Locked(lockedUntil *time.Time, now time.Time) bool {
	return lockedUntil != nil && now.Before(*lockedUntil)
}
