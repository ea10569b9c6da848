package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	apperrors "github.com/yes-simulation/accounts/pkg/errors"
	"github.com/yes-simulation/accounts/pkg/httputil"
	"github.com/yes-simulation/accounts/pkg/logger"
)

type contextKeyType string

const usernameKey contextKeyType = "username"

// Claims are the access token fields the middleware needs downstream.
type Claims struct {
	Username string
}

// TokenValidator validates an access token and returns its claims.
type TokenValidator func(token string) (*Claims, error)

// Auth rejects requests without a valid "Bearer <access token>" header and
// stores the token's username in the request context.
func Auth(validate TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				httputil.WriteError(w, r, apperrors.Unauthorized("missing authorization header"), nil)
				return
			}

			scheme, token, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
				httputil.WriteError(w, r, apperrors.Unauthorized("invalid authorization header format"), nil)
				return
			}

			claims, err := validate(strings.TrimSpace(token))
			if err != nil {
				httputil.WriteError(w, r, apperrors.Unauthorized("Token is invalid or expired"), nil)
				return
			}

			ctx := context.WithValue(r.Context(), usernameKey, claims.Username)
			ctx = logger.WithUsername(ctx, claims.Username)
			if l := logger.FromContext(ctx); l != slog.Default() {
				ctx = logger.NewContext(ctx, l.With(slog.String("username", claims.Username)))
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UsernameFromContext returns the authenticated username, or "" when the
// request did not pass through Auth.
func UsernameFromContext(ctx context.Context) string {
	if u, ok := ctx.Value(usernameKey).(string); ok {
		return u
	}
	return ""
}
