package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yes-simulation/accounts/internal/auth"
	"github.com/yes-simulation/accounts/internal/service"
	"github.com/yes-simulation/accounts/pkg/health"
	"github.com/yes-simulation/accounts/pkg/httputil"
	"github.com/yes-simulation/accounts/pkg/middleware"
)

// RouterDeps holds everything NewRouter wires together.
type RouterDeps struct {
	AuthService *service.AuthService
	JWTManager  *auth.JWTManager
	Health      *health.Handler
	HTTPMetrics *middleware.HTTPMetrics
	Gatherer    prometheus.Gatherer
	CORS        middleware.CORSConfig
	Logger      *slog.Logger
}

// NewRouter creates a chi router with all accounts routes registered.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogging(deps.Logger))
	r.Use(middleware.Tracing())
	if deps.HTTPMetrics != nil {
		r.Use(deps.HTTPMetrics.Handler)
	}
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.CORS(deps.CORS))

	r.MethodNotAllowed(methodNotAllowed(r))

	// Health check endpoints
	r.Get("/health/live", deps.Health.LivenessHandler())
	r.Get("/health/ready", deps.Health.ReadinessHandler())
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	tokenValidator := func(token string) (*middleware.Claims, error) {
		claims, err := deps.JWTManager.ValidateAccess(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{Username: claims.Username}, nil
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.Logger)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/register/", authHandler.Register)
		r.Put("/login/", authHandler.Login)
		r.Post("/refresh_tokens/", authHandler.RefreshTokens)

		r.With(middleware.Auth(tokenValidator)).Get("/me/", authHandler.Me)
	})

	return r
}

var routableMethods = []string{
	http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
	http.MethodPatch, http.MethodDelete, http.MethodOptions,
}

// methodNotAllowed answers with the JSON 405 body and an Allow header listing
// the methods the path does accept.
func methodNotAllowed(routes chi.Routes) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var allowed []string
		for _, m := range routableMethods {
			if routes.Match(chi.NewRouteContext(), m, r.URL.Path) {
				allowed = append(allowed, m)
			}
		}
		if len(allowed) > 0 {
			w.Header().Set("Allow", strings.Join(allowed, ", "))
		}
		httputil.MethodNotAllowed(w, r)
	}
}
