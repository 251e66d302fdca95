package protected

import (
	"encoding/json"
	"net/http"

	"auth-service/internal/auth"
)

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

// Routes registers the protected routes on mux behind the bearer middleware.
func (h *Handler) Routes(mux *http.ServeMux, service *auth.Service) {
	mux.Handle("GET /protected/me", auth.Middleware(service, http.HandlerFunc(h.Me)))
	mux.Handle("GET /protected/admin", auth.Middleware(service, auth.RequireRole("admin", http.HandlerFunc(h.Admin))))
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		auth.WriteServiceError(w, auth.ErrUnauthenticated)
		return
	}

	writeJSON(w, http.StatusOK, principal)
}

func (h *Handler) Admin(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"secret": "only admins see this"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
