package auth

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/samber/oops"
)

const (
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 7 * 24 * time.Hour

	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type AccessClaims struct {
	Roles []string `json:"roles"`
	Type  string   `json:"typ"`
	jwt.RegisteredClaims
}

type RefreshClaims struct {
	TokenID string `json:"tid"`
	Type    string `json:"typ"`
	jwt.RegisteredClaims
}

type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenIssuer signs the two token classes with separate HS256 keys. Each class
// also carries its own typ claim, so a token is rejected by the other class's
// verifier even if both keys were misconfigured to be equal.
type TokenIssuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           Clock
}

func NewTokenIssuer(cfg TokenConfig, clock Clock) (*TokenIssuer, error) {
	if cfg.AccessSecret == "" || cfg.RefreshSecret == "" {
		return nil, oops.Code("AUTH_INVALID_SECRETS").Errorf("access and refresh secrets are required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, oops.Code("AUTH_INVALID_SECRETS").Errorf("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = defaultAccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = defaultRefreshTTL
	}
	if clock == nil {
		clock = systemClock
	}

	return &TokenIssuer{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           clock,
	}, nil
}

func (i *TokenIssuer) AccessTTL() time.Duration {
	return i.accessTTL
}

func (i *TokenIssuer) SignAccess(account Account) (string, error) {
	now := i.now()
	claims := AccessClaims{
		Roles: slices.Clone(account.Roles),
		Type:  tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
		},
	}

	encoded, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.accessSecret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return encoded, nil
}

// SignRefresh returns the signed token and the expiry encoded in it, which the
// caller stores alongside the registry record.
func (i *TokenIssuer) SignRefresh(account Account, tokenID string) (string, time.Time, error) {
	now := i.now()
	// exp is serialized at second precision; truncate so the registry agrees
	// with what a verifier will read back.
	expiresAt := now.Add(i.refreshTTL).Truncate(time.Second)
	claims := RefreshClaims{
		TokenID: tokenID,
		Type:    tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	encoded, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.refreshSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign refresh token: %w", err)
	}
	return encoded, expiresAt, nil
}

// VerifyAccess collapses every failure into ErrInvalidOrExpiredToken.
func (i *TokenIssuer) VerifyAccess(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := i.parse(tokenStr, claims, i.accessSecret); err != nil {
		return nil, ErrInvalidOrExpiredToken
	}
	if claims.Type != tokenTypeAccess || claims.Subject == "" {
		return nil, ErrInvalidOrExpiredToken
	}
	return claims, nil
}

func (i *TokenIssuer) VerifyRefresh(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := i.parse(tokenStr, claims, i.refreshSecret); err != nil {
		return nil, ErrInvalidOrExpiredToken
	}
	if claims.Type != tokenTypeRefresh || claims.Subject == "" || claims.TokenID == "" {
		return nil, ErrInvalidOrExpiredToken
	}
	return claims, nil
}

func (i *TokenIssuer) parse(tokenStr string, claims jwt.Claims, secret []byte) error {
	if tokenStr == "" {
		return errors.New("empty token")
	}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("token is not valid")
	}
	return nil
}
