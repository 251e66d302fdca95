package auth

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const tokenTypeBearer = "Bearer"

// Outcome labels reported to a Recorder.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeLocked   = "locked"
	OutcomeRejected = "rejected"
)

// Recorder receives one call per finished operation.
type Recorder interface {
	Registration(outcome string)
	Login(outcome string)
	Refresh(outcome string)
	Logout()
}

type noopRecorder struct{}

func (noopRecorder) Registration(string) {}
func (noopRecorder) Login(string)        {}
func (noopRecorder) Refresh(string)      {}
func (noopRecorder) Logout()             {}

// Service composes the directory, hasher, issuer and registry into the
// register/login/refresh/logout operations.
type Service struct {
	accounts     *Directory
	tokens       *Registry
	hasher       PasswordHasher
	issuer       *TokenIssuer
	policy       LockoutPolicy
	recorder     Recorder
	defaultRoles []string

	dummyOnce   sync.Once
	dummyDigest string
}

func NewService(accounts *Directory, tokens *Registry, hasher PasswordHasher, issuer *TokenIssuer) *Service {
	return &Service{
		accounts:     accounts,
		tokens:       tokens,
		hasher:       hasher,
		issuer:       issuer,
		policy:       DefaultLockoutPolicy(),
		recorder:     noopRecorder{},
		defaultRoles: []string{"user"},
	}
}

// WithSecurityConfig replaces the lockout policy. An invalid policy is ignored.
func (s *Service) WithSecurityConfig(policy LockoutPolicy) *Service {
	if policy.Validate() == nil {
		s.policy = policy
	}
	return s
}

func (s *Service) WithRecorder(recorder Recorder) *Service {
	if recorder != nil {
		s.recorder = recorder
	}
	return s
}

func (s *Service) Register(email, password string, roles []string) (Identity, error) {
	identity, err := s.register(email, password, roles)
	if err != nil {
		s.recorder.Registration(OutcomeRejected)
		return Identity{}, err
	}
	s.recorder.Registration(OutcomeSuccess)
	return identity, nil
}

func (s *Service) register(email, password string, roles []string) (Identity, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return Identity{}, validationError("email is required")
	}
	if password == "" {
		return Identity{}, validationError("password is required")
	}
	roles = dedupe(roles)
	if len(roles) == 0 {
		roles = slices.Clone(s.defaultRoles)
	}

	if _, err := s.accounts.GetByEmail(email); err == nil {
		return Identity{}, ErrDuplicateEmail
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return Identity{}, err
	}

	// Create re-checks under the email slot; a concurrent registration that
	// won the race surfaces here as ErrDuplicateEmail.
	account, err := s.accounts.Create(email, digest, roles)
	if err != nil {
		return Identity{}, err
	}

	return Identity{ID: account.ID, Email: account.Email}, nil
}

// Login never distinguishes an unknown email from a wrong password.
func (s *Service) Login(email, password string) (Tokens, error) {
	tokens, err := s.login(email, password)
	switch {
	case err == nil:
		s.recorder.Login(OutcomeSuccess)
	case errors.Is(err, ErrAccountLocked):
		s.recorder.Login(OutcomeLocked)
	default:
		s.recorder.Login(OutcomeFailure)
	}
	return tokens, err
}

func (s *Service) login(email, password string) (Tokens, error) {
	account, err := s.accounts.GetByEmail(email)
	if err != nil {
		// Spend the same bcrypt time as a real mismatch.
		s.hasher.Verify(password, s.dummy())
		return Tokens{}, ErrInvalidCredentials
	}

	if locked, until := s.accounts.IsLocked(account.ID); locked {
		return Tokens{}, lockedError(until)
	}

	if !s.hasher.Verify(password, account.PasswordHash) {
		s.accounts.RecordFailedAttempt(account.ID, s.policy)
		return Tokens{}, ErrInvalidCredentials
	}

	s.accounts.RecordSuccess(account.ID, s.policy)

	return s.issueTokens(account)
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// single use: it is consumed by the rotation, so a replay fails with
// ErrRefreshRevokedOrExpired.
func (s *Service) Refresh(refreshToken string) (Tokens, error) {
	tokens, err := s.refresh(refreshToken)
	switch {
	case err == nil:
		s.recorder.Refresh(OutcomeSuccess)
	case errors.Is(err, ErrRefreshRevokedOrExpired):
		s.recorder.Refresh(OutcomeRejected)
	default:
		s.recorder.Refresh(OutcomeFailure)
	}
	return tokens, err
}

func (s *Service) refresh(refreshToken string) (Tokens, error) {
	claims, err := s.issuer.VerifyRefresh(strings.TrimSpace(refreshToken))
	if err != nil {
		return Tokens{}, ErrInvalidRefreshToken
	}

	accountID := claims.Subject
	if !s.tokens.Validate(claims.TokenID, accountID) {
		return Tokens{}, ErrRefreshRevokedOrExpired
	}

	account, err := s.accounts.GetByID(accountID)
	if err != nil {
		return Tokens{}, ErrInvalidRefreshToken
	}

	access, err := s.issuer.SignAccess(account)
	if err != nil {
		return Tokens{}, err
	}
	newID, err := newTokenID()
	if err != nil {
		return Tokens{}, err
	}
	refresh, expiresAt, err := s.issuer.SignRefresh(account, newID)
	if err != nil {
		return Tokens{}, err
	}

	if !s.tokens.Rotate(claims.TokenID, account.ID, newID, expiresAt) {
		return Tokens{}, ErrRefreshRevokedOrExpired
	}

	return s.bearer(access, refresh), nil
}

// Logout revokes the registry record of a verifiable refresh token. Anything
// else, garbage included, is accepted silently.
func (s *Service) Logout(refreshToken string) {
	s.recorder.Logout()

	claims, err := s.issuer.VerifyRefresh(strings.TrimSpace(refreshToken))
	if err != nil {
		return
	}
	s.tokens.Revoke(claims.TokenID)
}

// Authenticate resolves a bearer access token to its principal.
func (s *Service) Authenticate(accessToken string) (Principal, error) {
	claims, err := s.issuer.VerifyAccess(strings.TrimSpace(accessToken))
	if err != nil {
		return Principal{}, ErrUnauthenticated
	}
	return Principal{AccountID: claims.Subject, Roles: slices.Clone(claims.Roles)}, nil
}

// Authorize passes when the principal holds role.
func Authorize(principal Principal, role string) error {
	if !principal.HasRole(role) {
		return ErrForbidden
	}
	return nil
}

// BootstrapAdmin creates the admin account once. An existing account with the
// same email is left untouched.
func (s *Service) BootstrapAdmin(email, password string) error {
	email = NormalizeEmail(email)
	password = strings.TrimSpace(password)

	if email == "" && password == "" {
		return nil
	}
	if email == "" || password == "" {
		return fmt.Errorf("ADMIN_EMAIL and ADMIN_PASSWORD are required together")
	}

	_, err := s.register(email, password, []string{"admin", "user"})
	if err != nil && !errors.Is(err, ErrDuplicateEmail) {
		return fmt.Errorf("create admin account: %w", err)
	}
	return nil
}

func (s *Service) issueTokens(account Account) (Tokens, error) {
	access, err := s.issuer.SignAccess(account)
	if err != nil {
		return Tokens{}, err
	}

	tokenID, err := newTokenID()
	if err != nil {
		return Tokens{}, err
	}
	refresh, expiresAt, err := s.issuer.SignRefresh(account, tokenID)
	if err != nil {
		return Tokens{}, err
	}
	s.tokens.Store(tokenID, account.ID, expiresAt)

	return s.bearer(access, refresh), nil
}

func (s *Service) bearer(access, refresh string) Tokens {
	return Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tokenTypeBearer,
		ExpiresIn:    int64(s.issuer.AccessTTL().Seconds()),
	}
}

func (s *Service) dummy() string {
	s.dummyOnce.Do(func() {
		digest, err := s.hasher.Hash("timing-equalizer-not-a-password")
		if err == nil {
			s.dummyDigest = digest
		}
	})
	return s.dummyDigest
}

func newTokenID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate refresh token id: %w", err)
	}
	return id.String(), nil
}

func dedupe(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, role := range roles {
		role = strings.TrimSpace(role)
		if role == "" || slices.Contains(out, role) {
			continue
		}
		out = append(out, role)
	}
	return out
}
