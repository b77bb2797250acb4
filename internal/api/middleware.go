package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cheolwanpark/leadsignal/engine/internal/db"
)

// Logger is a simple request logging middleware.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		slog.Info("request", "method", r.Method, "path", r.URL.Path, "status", rw.statusCode, "duration", time.Since(start))
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// ContentType sets the response Content-Type to application/json.
func ContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

type contextKey string

const userContextKey contextKey = "user"

// IdentityContext resolves the bearer token in the Authorization header
// against the sessions table and injects the owning db.User into the
// request context. Deliberately shallow — no refresh, no OAuth, no
// Stripe — the HTTP surface this middleware guards is a thin shell around
// PollEngine/CampaignService/Scheduler, not a product auth system.
func IdentityContext(database *db.DB) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			var userID string
			var expiresAt time.Time
			err := database.QueryRow(`SELECT user_id, expires_at FROM sessions WHERE token = ?`, token).Scan(&userID, &expiresAt)
			if err != nil || expiresAt.Before(time.Now()) {
				next.ServeHTTP(w, r)
				return
			}

			user, err := database.GetUser(userID)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext extracts the authenticated db.User, if any.
func UserFromContext(r *http.Request) (*db.User, bool) {
	user, ok := r.Context().Value(userContextKey).(*db.User)
	return user, ok
}
