package middleware

import (
	"log/slog"
	"net/http"

	"github.com/yes-simulation/accounts/pkg/logger"
)

// RequestLogger stores a request-scoped logger in the context, enriched with
// correlation_id, username, trace_id and span_id where available. Handlers
// retrieve it with logger.FromContext.
//
// Mount it after RequestLogging and Tracing so both IDs are already set.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if u := UsernameFromContext(ctx); u != "" && logger.UsernameFromContext(ctx) == "" {
				ctx = logger.WithUsername(ctx, u)
			}

			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
