package auth

import (
	"slices"
	"time"
)

type Account struct {
	ID             string
	Email          string
	PasswordHash   string
	Roles          []string
	CreatedAt      time.Time
	FailedAttempts int
	LockedUntil    *time.Time
}

// clone returns a copy that shares no memory with the stored record.
func (a Account) clone() Account {
	a.Roles = slices.Clone(a.Roles)
	if a.LockedUntil != nil {
		until := *a.LockedUntil
		a.LockedUntil = &until
	}
	return a
}

func (a Account) HasRole(role string) bool {
	return slices.Contains(a.Roles, role)
}

type RefreshTokenRecord struct {
	TokenID   string
	AccountID string
	ExpiresAt time.Time
}

func (r RefreshTokenRecord) expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Identity is the public view of a registered account.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Principal is the caller resolved from a bearer access token.
type Principal struct {
	AccountID string   `json:"id"`
	Roles     []string `json:"roles"`
}

func (p Principal) HasRole(role string) bool {
	return slices.Contains(p.Roles, role)
}
