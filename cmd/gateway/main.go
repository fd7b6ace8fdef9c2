package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/laundryhub/gateway/internal/auth"
	"github.com/laundryhub/gateway/internal/config"
	"github.com/laundryhub/gateway/internal/dashboard"
	"github.com/laundryhub/gateway/internal/httputil"
	"github.com/laundryhub/gateway/internal/logging"
	"github.com/laundryhub/gateway/internal/metrics"
	"github.com/laundryhub/gateway/internal/middleware"
	"github.com/laundryhub/gateway/internal/proxy"
)

func main() {
	configPath := os.Getenv("GATEWAY_CONFIG")
	if configPath == "" {
		configPath = "config/gateway.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New("api-gateway", cfg.Logging.Level, cfg.Logging.Format)
	m := metrics.New("gateway")

	keyStore := auth.NewKeyStore(cfg.Services.UserServiceURL, logger)

	// Fetch the verification key at startup. Failure is not fatal; the
	// key store retries lazily on the first verification that needs it.
	startupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := keyStore.Refresh(startupCtx); err != nil {
		logger.WithError(err).Warn("public key not available at startup, will retry lazily")
	}
	cancel()

	if cfg.Auth.AllowInsecureFallback {
		logger.Warn("insecure HS256 fallback verification is ENABLED; do not use in production")
	}

	verifier := auth.NewVerifier(keyStore, cfg.Auth, logger)
	authMW := middleware.NewAuthMiddleware(verifier, logger)

	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst, logger)
	rateLimiter.StartCleanup(10 * time.Minute)

	storeClient := httputil.NewServiceClient(httputil.ServiceClientConfig{
		Name:    "Store Service",
		BaseURL: cfg.Services.StoreServiceURL,
		Metrics: m,
	})
	bookingClient := httputil.NewServiceClient(httputil.ServiceClientConfig{
		Name:    "Booking Service",
		BaseURL: cfg.Services.BookingServiceURL,
		Metrics: m,
	})
	paymentClient := httputil.NewServiceClient(httputil.ServiceClientConfig{
		Name:    "Payment Service",
		BaseURL: cfg.Services.PaymentServiceURL,
		Metrics: m,
	})

	aggregator := dashboard.New(storeClient, bookingClient, paymentClient, logger)

	proxies, err := buildProxies(cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("failed to configure backend proxies")
	}

	router := newRouter(cfg, logger, m, authMW, rateLimiter, keyStore, aggregator, proxies)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.WithFields(map[string]interface{}{
			"addr":            addr,
			"user_service":    cfg.Services.UserServiceURL,
			"payment_service": cfg.Services.PaymentServiceURL,
			"store_service":   cfg.Services.StoreServiceURL,
			"booking_service": cfg.Services.BookingServiceURL,
			"key_loaded":      keyStore.Loaded(),
		}).Info("API gateway listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
}

// serviceProxies groups the reverse proxies for the four backends.
type serviceProxies struct {
	user    *proxy.Proxy
	payment *proxy.Proxy
	store   *proxy.Proxy
	booking *proxy.Proxy
}

func buildProxies(cfg *config.Config, logger *logging.Logger) (*serviceProxies, error) {
	user, err := proxy.New(proxy.Config{
		Name:      "User Service",
		TargetURL: cfg.Services.UserServiceURL,
	}, logger)
	if err != nil {
		return nil, err
	}

	payment, err := proxy.New(proxy.Config{
		Name:        "Payment Service",
		TargetURL:   cfg.Services.PaymentServiceURL,
		StripPrefix: "/graphql-payment",
		RewriteTo:   "/graphql",
	}, logger)
	if err != nil {
		return nil, err
	}

	store, err := proxy.New(proxy.Config{
		Name:        "Store Service",
		TargetURL:   cfg.Services.StoreServiceURL,
		StripPrefix: "/graphql-store",
		RewriteTo:   "/graphql",
	}, logger)
	if err != nil {
		return nil, err
	}

	booking, err := proxy.New(proxy.Config{
		Name:        "Booking Service",
		TargetURL:   cfg.Services.BookingServiceURL,
		StripPrefix: "/graphql-booking",
		RewriteTo:   "/graphql",
	}, logger)
	if err != nil {
		return nil, err
	}

	return &serviceProxies{user: user, payment: payment, store: store, booking: booking}, nil
}
