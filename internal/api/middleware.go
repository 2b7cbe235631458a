package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/erazemk/oprema/internal/auth"
	"github.com/erazemk/oprema/internal/metrics"
)

type contextKey string

const (
	actorKey   contextKey = "actor"
	requestKey contextKey = "request"
)

// IdentityMiddleware puts the acting user id in the request context. It is
// defaultUserID unless secret is set and the request carries a valid bearer
// token, in which case the token's user wins.
func IdentityMiddleware(defaultUserID int64, secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := defaultUserID

			header := r.Header.Get("Authorization")
			if secret != "" && header != "" {
				if !strings.HasPrefix(header, "Bearer ") {
					jsonError(w, http.StatusUnauthorized, "missing or invalid authorization header")
					return
				}
				claims, err := auth.ValidateToken(secret, strings.TrimPrefix(header, "Bearer "))
				if err != nil {
					jsonError(w, http.StatusUnauthorized, "invalid token")
					return
				}
				actor = claims.UserID
			}

			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
		})
	}
}

// WithActor returns a context carrying the acting user id.
func WithActor(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, actorKey, userID)
}

// ActorID retrieves the acting user id from the context, or 0.
func ActorID(ctx context.Context) int64 {
	id, _ := ctx.Value(actorKey).(int64)
	return id
}

// requestInfo is shared between the logging middleware and the matched
// route.
type requestInfo struct {
	id      string
	pattern string
}

// RequestID returns the id assigned by LoggingMiddleware, or "".
func RequestID(ctx context.Context) string {
	if info, ok := ctx.Value(requestKey).(*requestInfo); ok {
		return info.id
	}
	return ""
}

// Routed records the matched route pattern for request logging and metrics.
// Wrap every route handler with it.
func Routed(h http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if info, ok := r.Context().Value(requestKey).(*requestInfo); ok {
			info.pattern = r.Pattern
		}
		h(w, r)
	})
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// LoggingMiddleware logs HTTP requests with method, path, status, duration
// and a request id, echoed as X-Request-ID, and feeds the request metrics.
func LoggingMiddleware(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			info := &requestInfo{id: uuid.NewString()}
			w.Header().Set("X-Request-ID", info.id)

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestKey, info)))

			elapsed := time.Since(start)
			m.ObserveRequest(info.pattern, r.Method, rec.status, elapsed)
			slog.Info("request",
				"method", r.Method,
				"path", r.URL.RequestURI(),
				"status", rec.status,
				"duration", elapsed.Round(time.Millisecond),
				"request_id", info.id,
			)
		})
	}
}
