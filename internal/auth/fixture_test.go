package auth_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"auth-service/internal/auth"
)

const (
	testAccessSecret  = "access-secret-for-tests"
	testRefreshSecret = "refresh-secret-for-tests"
	testPassword      = "Pass@123"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	clock    *fakeClock
	accounts *auth.Directory
	tokens   *auth.Registry
	issuer   *auth.TokenIssuer
	hasher   *auth.BcryptHasher
	service  *auth.Service
	policy   auth.LockoutPolicy
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := newFakeClock()
	hasher, err := auth.NewBcryptHasher(bcrypt.MinCost)
	require.NoError(t, err)

	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{
		AccessSecret:  testAccessSecret,
		RefreshSecret: testRefreshSecret,
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
	}, clock.Now)
	require.NoError(t, err)

	policy := auth.LockoutPolicy{MaxAttempts: 5, LockDuration: 15 * time.Minute}
	accounts := auth.NewDirectory(clock.Now)
	tokens := auth.NewRegistry(clock.Now)

	return &fixture{
		clock:    clock,
		accounts: accounts,
		tokens:   tokens,
		issuer:   issuer,
		hasher:   hasher,
		service:  auth.NewService(accounts, tokens, hasher, issuer).WithSecurityConfig(policy),
		policy:   policy,
	}
}

func (f *fixture) register(t *testing.T, email string) auth.Identity {
	t.Helper()
	identity, err := f.service.Register(email, testPassword, nil)
	require.NoError(t, err)
	return identity
}

func (f *fixture) login(t *testing.T, email string) auth.Tokens {
	t.Helper()
	tokens, err := f.service.Login(email, testPassword)
	require.NoError(t, err)
	return tokens
}
