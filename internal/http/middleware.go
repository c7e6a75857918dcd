package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"

	UserIDHeader = "X-User-ID"
	CartIDHeader = "X-Cart-ID"
)

// IdentityMiddleware trusts the user id forwarded by the auth proxy in front of the service.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if userID != "" {
			r = r.WithContext(WithUserID(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func getUserIDFromContext(ctx context.Context) string {
	if userID, ok := ctx.Value(userIDKey).(string); ok {
		return userID
	}
	return ""
}

// cartKey prefers the anonymous cart id so a guest cart survives until checkout.
func cartKey(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(CartIDHeader)); id != "" {
		return "anon:" + id
	}
	if userID := getUserIDFromContext(r.Context()); userID != "" {
		return "user:" + userID
	}
	return ""
}

type StatusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *StatusRecorder) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (w *StatusRecorder) Status() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

func LoggerMiddleware(logger zerolog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			recorder := &StatusRecorder{ResponseWriter: w}
			start := time.Now()

			next.ServeHTTP(recorder, r)

			status := recorder.Status()
			var ev *zerolog.Event
			if status >= http.StatusInternalServerError {
				ev = logger.Error()
			} else {
				ev = logger.Info()
			}
			ev.Str("request_id", middleware.GetReqID(r.Context())).
				Str("user_id", getUserIDFromContext(r.Context())).
				Str("method", r.Method).
				Str("url", r.URL.String()).
				Int("status", status).
				Dur("duration", time.Since(start)).
				Msg("request completed")
		})
	}
}
