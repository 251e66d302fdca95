package auth

import (
	"context"
	"net/http"
	"strings"
)

type principalKey struct{}

// Middleware rejects requests without a valid bearer access token and stores
// the resolved Principal in the request context.
func Middleware(service *Service, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		if header == "" {
			writeError(w, http.StatusUnauthorized, KindUnauthenticated, "missing authorization header")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], tokenTypeBearer) {
			writeError(w, http.StatusUnauthorized, KindUnauthenticated, "invalid authorization header")
			return
		}

		principal, err := service.Authenticate(parts[1])
		if err != nil {
			writeError(w, http.StatusUnauthorized, KindUnauthenticated, "invalid or expired token")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
	})
}

// RequireRole must run behind Middleware.
func RequireRole(role string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := PrincipalFromContext(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, KindUnauthenticated, ErrUnauthenticated.Message)
			return
		}
		if err := Authorize(principal, role); err != nil {
			writeError(w, http.StatusForbidden, KindForbidden, ErrForbidden.Message)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func WithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	principal, ok := ctx.Value(principalKey{}).(Principal)
	return principal, ok
}
