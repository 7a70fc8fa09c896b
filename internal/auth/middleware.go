package auth

import (
	"log/slog"
	"net/http"
	"time"

	loggerpkg "OpenMCP-Stellar/pkg/logger"
)

// MiddlewareConfig configures Middleware.
type MiddlewareConfig struct {
	// RequiredPermissions maps an HTTP method to the permissions it needs; "*" is the fallback.
	RequiredPermissions map[string][]string
	// AuditEvent names the audit record of a served request.
	AuditEvent string
}

func (s *Service) auditLogger() *slog.Logger {
	if s != nil && s.audit != nil {
		return s.audit
	}
	return loggerpkg.Audit()
}

// Middleware authenticates and authorizes requests before next runs.
func (s *Service) Middleware(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.Mode() == ModeDisabled {
				next.ServeHTTP(w, r)
				return
			}
			subject, err := s.AuthenticateRequest(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="stellarmcp"`)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				s.auditLogger().Warn("access_denied",
					"path", r.URL.Path,
					"method", r.Method,
					"status", http.StatusUnauthorized,
					"error", err.Error(),
				)
				return
			}
			perms := cfg.RequiredPermissions[r.Method]
			if len(perms) == 0 {
				perms = cfg.RequiredPermissions["*"]
			}
			if err := subject.Authorize(perms...); err != nil {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				s.auditLogger().Warn("permission_denied",
					"path", r.URL.Path,
					"method", r.Method,
					"status", http.StatusForbidden,
					"error", err.Error(),
					"subject", subject.Name,
				)
				return
			}
			start := time.Now()
			aw := &auditWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(aw, r.WithContext(WithSubject(r.Context(), subject)))
			event := cfg.AuditEvent
			if event == "" {
				event = r.URL.Path
			}
			s.auditLogger().Info("api_request",
				"event", event,
				"method", r.Method,
				"path", r.URL.Path,
				"status", aw.status,
				"duration_ms", time.Since(start).Milliseconds(),
				"subject", subject.Name,
			)
		})
	}
}

// auditWriter captures the response status.
type auditWriter struct {
	http.ResponseWriter
	status int
}

func (w *auditWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
