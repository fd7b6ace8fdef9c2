package main

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/laundryhub/gateway/internal/auth"
	"github.com/laundryhub/gateway/internal/config"
	"github.com/laundryhub/gateway/internal/dashboard"
	"github.com/laundryhub/gateway/internal/logging"
	"github.com/laundryhub/gateway/internal/metrics"
	"github.com/laundryhub/gateway/internal/middleware"
)

// newRouter wires the gateway's HTTP surface. Specific routes are
// registered before prefix routes so /api/auth and /api/seller/dashboard
// win over the catch-all /api proxy.
func newRouter(
	cfg *config.Config,
	logger *logging.Logger,
	m *metrics.Metrics,
	authMW *middleware.AuthMiddleware,
	rateLimiter *middleware.RateLimiter,
	keyStore *auth.KeyStore,
	aggregator *dashboard.Aggregator,
	proxies *serviceProxies,
) *mux.Router {
	r := mux.NewRouter()

	tracing := middleware.NewTracingMiddleware(logger)
	cors := middleware.NewCORSMiddleware(cfg.CORS.AllowedOrigins)

	r.Use(tracing.Handler)
	r.Use(middleware.MetricsMiddleware("gateway", m))
	r.Use(cors.Handler)
	r.Use(rateLimiter.Handler)

	r.HandleFunc("/health", healthHandler(cfg, keyStore)).Methods(http.MethodGet)
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	// Public routes, proxied to the user service without authentication.
	r.PathPrefix("/api/auth").Handler(proxies.user)
	r.Path("/api/public-key").Handler(proxies.user)

	// Aggregated seller dashboard.
	r.Handle("/api/seller/dashboard", authMW.Require(dashboardHandler(aggregator, logger))).Methods(http.MethodGet)

	// Protected proxied routes.
	r.PathPrefix("/api").Handler(authMW.Require(proxies.user))
	r.PathPrefix("/graphql-payment").Handler(authMW.Require(proxies.payment))
	r.PathPrefix("/graphql-booking").Handler(authMW.Require(proxies.booking))

	// Store browsing works unauthenticated; claims are attached when a
	// valid token is present.
	r.PathPrefix("/graphql-store").Handler(authMW.Optional(proxies.store))

	r.NotFoundHandler = http.HandlerFunc(notFoundHandler)

	return r
}
