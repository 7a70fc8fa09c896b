package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"OpenMCP-Stellar/internal/auth"
	"OpenMCP-Stellar/internal/idempotency"
	"OpenMCP-Stellar/internal/observability/metrics"
	"OpenMCP-Stellar/internal/tools"
	"OpenMCP-Stellar/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Server exposes the tool registry over HTTP.
type Server struct {
	addr     string
	registry *tools.Registry
	auth     *auth.Service
	idem     idempotency.Store
	idemTTL  time.Duration
	log      *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithAuth enables bearer token authentication.
func WithAuth(svc *auth.Service) Option { return func(s *Server) { s.auth = svc } }

// WithIdempotency replays POST responses by Idempotency-Key.
func WithIdempotency(store idempotency.Store, ttl time.Duration) Option {
	return func(s *Server) {
		s.idem = store
		s.idemTTL = ttl
	}
}

// NewServer creates a Server listening on addr.
func NewServer(addr string, registry *tools.Registry, opts ...Option) *Server {
	s := &Server{addr: addr, registry: registry, idemTTL: 24 * time.Hour, log: logger.Named("api")}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	guard := s.auth.Middleware(auth.MiddlewareConfig{
		RequiredPermissions: map[string][]string{
			http.MethodGet:  {auth.PermToolsRead},
			http.MethodPost: {auth.PermToolsCall},
		},
		AuditEvent: "tool_api",
	})
	replay := idempotency.Middleware(s.idem, s.idemTTL)

	mux := http.NewServeMux()
	mux.Handle("GET /api/v1/tools", instrument("list_tools", guard(http.HandlerFunc(s.handleListTools))))
	mux.Handle("POST /api/v1/tools/{name}", instrument("call_tool", guard(replay(http.HandlerFunc(s.handleCallTool)))))
	mux.Handle("GET /healthz", instrument("healthz", http.HandlerFunc(handleHealth)))
	mux.Handle("GET /metrics", metrics.Handler())
	return mux
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, s.Handler()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.Info("HTTP API listening", "addr", s.addr)

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.registry.List()})
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		http.Error(w, "read request body failed", http.StatusBadRequest)
		return
	}
	if len(body) > maxBodyBytes {
		http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	status := http.StatusOK
	if !s.registry.Has(name) {
		status = http.StatusNotFound
	}
	result := s.registry.Call(r.Context(), name, body)
	s.log.Debug("tool called", "tool", name, "action", result.Action, "success", result.Success,
		"subject", auth.SubjectName(r.Context()))
	writeJSON(w, status, result)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// instrument records request counts and latency under name.
func instrument(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		metrics.ObserveHTTPRequest(name, r.Method, sw.status, time.Since(start))
	})
}

// withContext rejects requests once ctx is done.
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
