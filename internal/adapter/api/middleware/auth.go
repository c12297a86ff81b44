package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/V4T54L/customer-authz/internal/domain"
	"github.com/V4T54L/customer-authz/internal/pkg/token"
)

const AuthorizationHeader = "Authorization"

// Auth is a middleware factory that returns a new authentication middleware.
// It validates the bearer token and stores the caller's credentials in the
// request context.
func Auth(secret string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(AuthorizationHeader)
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || raw == "" {
				logger.Warn("bearer token missing from request", "remote_addr", r.RemoteAddr)
				http.Error(w, "Unauthorized: bearer token required", http.StatusUnauthorized)
				return
			}

			claims, err := token.Validate(raw, secret)
			if err != nil {
				logger.Warn("invalid bearer token", "remote_addr", r.RemoteAddr, "error", err)
				http.Error(w, "Unauthorized: invalid token", http.StatusUnauthorized)
				return
			}

			ctx := domain.WithCredentials(r.Context(), claims.Credentials())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
