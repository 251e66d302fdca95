package auth_test

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"auth-service/internal/auth"
)

func newTestIssuer(t *testing.T, clock *fakeClock) *auth.TokenIssuer {
	t.Helper()
	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{
		AccessSecret:  testAccessSecret,
		RefreshSecret: testRefreshSecret,
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    time.Hour,
	}, clock.Now)
	require.NoError(t, err)
	return issuer
}

func TestNewTokenIssuer_Secrets(t *testing.T) {
	_, err := auth.NewTokenIssuer(auth.TokenConfig{AccessSecret: "a"}, nil)
	assert.Error(t, err)

	_, err = auth.NewTokenIssuer(auth.TokenConfig{AccessSecret: "same", RefreshSecret: "same"}, nil)
	assert.Error(t, err)

	issuer, err := auth.NewTokenIssuer(auth.TokenConfig{AccessSecret: "a", RefreshSecret: "b"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 15*time.Minute, issuer.AccessTTL())
}

func TestTokenIssuer_AccessRoundTrip(t *testing.T) {
	clock := newFakeClock()
	issuer := newTestIssuer(t, clock)
	account := auth.Account{ID: "acc-1", Roles: []string{"user", "admin"}}

	token, err := issuer.SignAccess(account)
	require.NoError(t, err)

	claims, err := issuer.VerifyAccess(token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.Subject)
	assert.Equal(t, []string{"user", "admin"}, claims.Roles)
	assert.Equal(t, clock.Now().Add(15*time.Minute).Unix(), claims.ExpiresAt.Unix())
}

func TestTokenIssuer_RefreshRoundTrip(t *testing.T) {
	clock := newFakeClock()
	issuer := newTestIssuer(t, clock)

	token, expiresAt, err := issuer.SignRefresh(auth.Account{ID: "acc-1"}, "tid-1")
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(time.Hour).Truncate(time.Second), expiresAt)

	claims, err := issuer.VerifyRefresh(token)
	require.NoError(t, err)
	assert.Equal(t, "acc-1", claims.Subject)
	assert.Equal(t, "tid-1", claims.TokenID)
	assert.True(t, claims.ExpiresAt.Time.Equal(expiresAt))
}

func TestTokenIssuer_ClassesAreSeparate(t *testing.T) {
	issuer := newTestIssuer(t, newFakeClock())
	account := auth.Account{ID: "acc-1", Roles: []string{"user"}}

	access, err := issuer.SignAccess(account)
	require.NoError(t, err)
	refresh, _, err := issuer.SignRefresh(account, "tid-1")
	require.NoError(t, err)

	_, err = issuer.VerifyRefresh(access)
	assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredToken)

	_, err = issuer.VerifyAccess(refresh)
	assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredToken)
}

func TestTokenIssuer_TypClaimIsEnforced(t *testing.T) {
	issuer := newTestIssuer(t, newFakeClock())

	// Correct key, wrong typ.
	claims := auth.AccessClaims{
		Type: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acc-1",
			ExpiresAt: jwt.NewNumericDate(newFakeClock().Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testAccessSecret))
	require.NoError(t, err)

	_, err = issuer.VerifyAccess(token)
	assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredToken)
}

func TestTokenIssuer_Expiry(t *testing.T) {
	clock := newFakeClock()
	issuer := newTestIssuer(t, clock)
	account := auth.Account{ID: "acc-1"}

	access, err := issuer.SignAccess(account)
	require.NoError(t, err)
	refresh, _, err := issuer.SignRefresh(account, "tid-1")
	require.NoError(t, err)

	clock.Advance(15*time.Minute + time.Second)
	_, err = issuer.VerifyAccess(access)
	assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredToken)
	_, err = issuer.VerifyRefresh(refresh)
	assert.NoError(t, err)

	clock.Advance(time.Hour)
	_, err = issuer.VerifyRefresh(refresh)
	assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredToken)
}

func TestTokenIssuer_RejectsMalformed(t *testing.T) {
	issuer := newTestIssuer(t, newFakeClock())
	access, err := issuer.SignAccess(auth.Account{ID: "acc-1"})
	require.NoError(t, err)

	other, err := issuer.SignAccess(auth.Account{ID: "acc-2", Roles: []string{"admin"}})
	require.NoError(t, err)
	accessParts := strings.Split(access, ".")
	otherParts := strings.Split(other, ".")
	tampered := accessParts[0] + "." + otherParts[1] + "." + accessParts[2]

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.AccessClaims{
		Type: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acc-1",
			ExpiresAt: jwt.NewNumericDate(newFakeClock().Now().Add(time.Hour)),
		},
	}).SignedString([]byte("some-other-secret"))
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":     "",
		"garbage":   "not.a.jwt",
		"tampered":  tampered,
		"wrong key": forged,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := issuer.VerifyAccess(token)
			assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredToken)
		})
	}
}

func TestTokenIssuer_RejectsOtherAlgorithms(t *testing.T) {
	issuer := newTestIssuer(t, newFakeClock())

	claims := auth.AccessClaims{
		Type: "access",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "acc-1",
			ExpiresAt: jwt.NewNumericDate(newFakeClock().Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testAccessSecret))
	require.NoError(t, err)

	_, err = issuer.VerifyAccess(token)
	assert.ErrorIs(t, err, auth.ErrInvalidOrExpiredToken)
}
