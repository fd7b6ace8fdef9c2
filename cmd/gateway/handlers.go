package main

import (
	"net/http"
	"time"

	"github.com/laundryhub/gateway/internal/auth"
	"github.com/laundryhub/gateway/internal/config"
	"github.com/laundryhub/gateway/internal/dashboard"
	"github.com/laundryhub/gateway/internal/errors"
	"github.com/laundryhub/gateway/internal/httputil"
	"github.com/laundryhub/gateway/internal/logging"
	"github.com/laundryhub/gateway/internal/middleware"
)

// availableRoutes is the static route list returned for unmatched paths.
var availableRoutes = []string{
	"/health",
	"/metrics",
	"/api/* (proxied to User Service)",
	"/api/seller/dashboard (aggregated)",
	"/graphql-store (proxied to Store Service)",
	"/graphql-booking (proxied to Booking Service)",
	"/graphql-payment (proxied to Payment Service)",
}

func healthHandler(cfg *config.Config, keyStore *auth.KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status":          "healthy",
			"service":         "api-gateway",
			"timestamp":       time.Now().Format(time.RFC3339),
			"publicKeyLoaded": keyStore.Loaded(),
			"services": map[string]string{
				"user-service":    cfg.Services.UserServiceURL,
				"payment-service": cfg.Services.PaymentServiceURL,
				"store-service":   cfg.Services.StoreServiceURL,
				"booking-service": cfg.Services.BookingServiceURL,
			},
		})
	}
}

func dashboardHandler(aggregator *dashboard.Aggregator, logger *logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := middleware.ClaimsFromContext(r.Context())
		if claims == nil {
			httputil.WriteError(w, errors.Unauthorized("No token provided"))
			return
		}

		summary, err := aggregator.SellerDashboard(r.Context(), claims.ID)
		if err != nil {
			logger.WithContext(r.Context()).WithError(err).Error("seller dashboard aggregation failed")
			httputil.WriteError(w, err)
			return
		}

		httputil.WriteJSON(w, http.StatusOK, summary)
	}
}

func notFoundHandler(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusNotFound, map[string]interface{}{
		"error":           "Route not found",
		"availableRoutes": availableRoutes,
	})
}
