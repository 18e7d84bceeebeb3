package auth

import (
	"errors"
	"net/http"

	"genienews/internal/core"
)

const realm = `Basic realm="genienews admin", charset="UTF-8"`

// Middleware guards admin routes with HTTP basic auth
type Middleware struct {
	service *Service
	logger  *core.Logger
}

// NewMiddleware creates new authentication middleware
func NewMiddleware(service *Service, logger *core.Logger) *Middleware {
	return &Middleware{
		service: service,
		logger:  logger,
	}
}

// RequireAdmin rejects requests without valid admin credentials
func (m *Middleware) RequireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Authorization")

		if !m.service.Enabled() {
			m.notPermittedResponse(w, r)
			return
		}

		user, password, ok := r.BasicAuth()
		if !ok {
			m.authenticationRequiredResponse(w, r)
			return
		}

		if err := m.service.Authenticate(user, password); err != nil {
			switch {
			case errors.Is(err, ErrInvalidCredentials):
				m.logger.Warn("Rejected admin credentials", "user", user, "path", r.URL.Path)
				m.invalidCredentialsResponse(w, r)
			default:
				m.logger.Error("Admin authentication error", "error", err)
				m.serverErrorResponse(w, r)
			}
			return
		}

		next.ServeHTTP(w, r)
	}
}

// Response helpers
func (m *Middleware) authenticationRequiredResponse(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", realm)
	core.WriteErrorResponse(w, http.StatusUnauthorized, core.NewUnauthorizedError("Authentication required", nil))
}

func (m *Middleware) invalidCredentialsResponse(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", realm)
	core.WriteErrorResponse(w, http.StatusUnauthorized, core.NewUnauthorizedError("Invalid credentials", nil))
}

func (m *Middleware) notPermittedResponse(w http.ResponseWriter, r *http.Request) {
	core.WriteErrorResponse(w, http.StatusForbidden, core.NewForbiddenError("Admin endpoints are disabled", nil))
}

func (m *Middleware) serverErrorResponse(w http.ResponseWriter, r *http.Request) {
	core.WriteErrorResponse(w, http.StatusInternalServerError, core.NewInternalError("Internal server error", nil))
}
