package idempotency

import (
	"bytes"
	"context"
	stdErrors "errors"
	"log/slog"
	"net/http"
	"time"

	"OpenMCP-Stellar/pkg/logger"
)

// Header carries the client supplied key.
const Header = "Idempotency-Key"

// ReplayHeader is set on replayed responses.
const ReplayHeader = "Idempotent-Replayed"

type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *recorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(p []byte) (int, error) {
	r.body.Write(p)
	return r.ResponseWriter.Write(p)
}

// Middleware replays the stored response of POST requests that repeat an
// Idempotency-Key. Requests without the header pass through. Only 2xx
// responses are stored.
func Middleware(store Store, ttl time.Duration) func(http.Handler) http.Handler {
	log := logger.Named("idempotency")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(Header)
			if store == nil || r.Method != http.MethodPost || key == "" {
				next.ServeHTTP(w, r)
				return
			}
			key = r.URL.Path + "|" + key

			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			stored, err := store.Lookup(ctx, key)
			switch {
			case stdErrors.Is(err, ErrInProgress):
				http.Error(w, "duplicate request currently processing", http.StatusConflict)
				return
			case err != nil:
				log.Error("idempotency lookup failed", slog.String("key", key), slog.Any("error", err))
				http.Error(w, "idempotency store failure", http.StatusInternalServerError)
				return
			case stored != nil:
				if stored.ContentType != "" {
					w.Header().Set("Content-Type", stored.ContentType)
				}
				w.Header().Set(ReplayHeader, "true")
				w.WriteHeader(stored.Status)
				_, _ = w.Write(stored.Body)
				return
			}

			reserved, err := store.Reserve(ctx, key, ttl)
			if err != nil {
				log.Error("idempotency reservation failed", slog.String("key", key), slog.Any("error", err))
				http.Error(w, "idempotency reservation failure", http.StatusInternalServerError)
				return
			}
			if !reserved {
				http.Error(w, "duplicate request currently processing", http.StatusConflict)
				return
			}

			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			persistCtx, persistCancel := context.WithTimeout(context.WithoutCancel(r.Context()), 2*time.Second)
			defer persistCancel()
			if rec.status < 200 || rec.status > 299 {
				_ = store.Release(persistCtx, key)
				return
			}
			resp := Response{Status: rec.status, ContentType: rec.Header().Get("Content-Type"), Body: rec.body.Bytes()}
			if err := store.Save(persistCtx, key, resp, ttl); err != nil {
				log.Error("failed to persist idempotent response", slog.String("key", key), slog.Any("error", err))
				_ = store.Release(persistCtx, key)
			}
		})
	}
}
