package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const (
	maxJSONBodyBytes  = 1 << 20
	minPasswordLength = 8
	// bcrypt only reads the first 72 bytes.
	maxPasswordLength = 72
	passwordSpecials  = "@$!%*?&"
)

type Handler struct {
	service          *Service
	selfServiceRoles []string
}

// NewHandler builds the HTTP adapter. selfServiceRoles lists the roles a
// caller may request for itself at registration.
func NewHandler(service *Service, selfServiceRoles []string) *Handler {
	if len(selfServiceRoles) == 0 {
		selfServiceRoles = []string{"user"}
	}
	return &Handler{service: service, selfServiceRoles: slices.Clone(selfServiceRoles)}
}

type registerRequest struct {
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Roles    []string `json:"roles,omitempty"`
}

func (r registerRequest) Validate(allowedRoles []string) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&r.Password,
			validation.Required,
			validation.Length(minPasswordLength, maxPasswordLength),
			validation.By(passwordStrength),
		),
		validation.Field(&r.Roles, validation.By(rolesWithin(allowedRoles))),
	)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (r refreshRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.RefreshToken, validation.Required),
	)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	body.Email = strings.TrimSpace(body.Email)
	if err := body.Validate(h.selfServiceRoles); err != nil {
		writeError(w, http.StatusBadRequest, KindValidationFailed, err.Error())
		return
	}

	identity, err := h.service.Register(body.Email, body.Password, body.Roles)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, identity)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	body.Email = strings.TrimSpace(body.Email)
	if err := body.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, KindValidationFailed, err.Error())
		return
	}

	tokens, err := h.service.Login(body.Email, body.Password)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	body.RefreshToken = strings.TrimSpace(body.RefreshToken)
	if err := body.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, KindValidationFailed, err.Error())
		return
	}

	tokens, err := h.service.Refresh(body.RefreshToken)
	if err != nil {
		WriteServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var body refreshRequest
	if !decodeJSON(w, r, &body) {
		return
	}

	body.RefreshToken = strings.TrimSpace(body.RefreshToken)
	if err := body.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, KindValidationFailed, err.Error())
		return
	}

	h.service.Logout(body.RefreshToken)
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// WriteServiceError maps a Service error onto a status code. Anything outside
// the error taxonomy is reported to Sentry and answered with a bare 500.
func WriteServiceError(w http.ResponseWriter, err error) {
	var authErr *Error
	if !errors.As(err, &authErr) {
		sentry.CaptureException(err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if authErr.Kind == KindAccountLocked && !authErr.RetryAt.IsZero() {
		retryAfter := int(time.Until(authErr.RetryAt).Seconds())
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}

	writeError(w, StatusFor(authErr.Kind), authErr.Kind, authErr.Message)
}

func StatusFor(kind Kind) int {
	switch kind {
	case KindValidationFailed:
		return http.StatusBadRequest
	case KindDuplicateEmail:
		return http.StatusConflict
	case KindAccountLocked:
		return http.StatusLocked
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidCredentials, KindInvalidOrExpiredToken, KindRefreshRevokedOrExpired, KindUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func passwordStrength(value any) error {
	password, _ := value.(string)
	if password == "" {
		return nil
	}

	var lower, upper, digit, special bool
	for _, c := range password {
		switch {
		case c >= 'a' && c <= 'z':
			lower = true
		case c >= 'A' && c <= 'Z':
			upper = true
		case c >= '0' && c <= '9':
			digit = true
		case strings.ContainsRune(passwordSpecials, c):
			special = true
		default:
			return errors.New("may only contain letters, digits and " + passwordSpecials)
		}
	}
	if !lower || !upper || !digit || !special {
		return errors.New("must include an uppercase letter, a lowercase letter, a number and one of " + passwordSpecials)
	}
	return nil
}

func rolesWithin(allowed []string) validation.RuleFunc {
	return func(value any) error {
		roles, _ := value.([]string)
		for _, role := range roles {
			if !slices.Contains(allowed, strings.TrimSpace(role)) {
				return errors.New("role " + strconv.Quote(role) + " cannot be self-assigned")
			}
		}
		return nil
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, KindValidationFailed, "invalid json body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, kind Kind, message string) {
	writeJSON(w, status, map[string]string{"error": message, "kind": string(kind)})
}
