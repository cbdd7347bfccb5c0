package main

import (
	"context"
	"crypto/tls"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/surveyops/booking-sync/internal/api/router"
	"github.com/surveyops/booking-sync/internal/calendly"
	appconfig "github.com/surveyops/booking-sync/internal/config"
	"github.com/surveyops/booking-sync/internal/http/handlers"
	"github.com/surveyops/booking-sync/internal/observability/metrics"
	"github.com/surveyops/booking-sync/internal/reconcile"
	"github.com/surveyops/booking-sync/internal/salesforce"
	"github.com/surveyops/booking-sync/pkg/logging"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting booking-sync API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	// Booking service client
	bookings, err := calendly.New(calendly.Config{
		BaseURL:      cfg.CalendlyBaseURL,
		Token:        cfg.CalendlyToken,
		Organization: cfg.CalendlyOrganization,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("failed to build Calendly client", "error", err)
		os.Exit(1)
	}

	// Salesforce session cache: Redis when configured, in-process otherwise
	var tokenCache salesforce.TokenCache
	if cfg.RedisAddr != "" {
		opts := &redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		tokenCache = salesforce.NewRedisTokenCache(redis.NewClient(opts), cfg.SessionTTL, logger)
		logger.Info("using redis session cache", "addr", cfg.RedisAddr)
	} else {
		tokenCache = salesforce.NewMemoryTokenCache(cfg.SessionTTL)
	}

	crm, err := salesforce.New(salesforce.Config{
		LoginURL:     cfg.SalesforceLoginURL,
		ClientID:     cfg.SalesforceClientID,
		ClientSecret: cfg.SalesforceClientSecret,
		Username:     cfg.SalesforceUsername,
		Password:     cfg.SalesforcePassword,
		AuthFlow:     cfg.SalesforceAuthFlow,
		APIVersion:   cfg.SalesforceAPIVersion,
		Logger:       logger,
		TokenCache:   tokenCache,
	})
	if err != nil {
		logger.Error("failed to build Salesforce client", "error", err)
		os.Exit(1)
	}

	// Reconciliation engine
	reconcileMetrics := metrics.NewReconcileMetrics(nil)
	resolver := reconcile.NewLeadResolver(crm, reconcile.ResolverConfig{
		MaxAttempts: cfg.LeadLookupMaxAttempts,
		BaseDelay:   cfg.LeadLookupBaseDelay,
		Logger:      logger,
		Metrics:     reconcileMetrics,
	})
	engine := reconcile.NewEngine(reconcile.EngineConfig{
		Bookings:         bookings,
		CRM:              crm,
		Resolver:         resolver,
		Logger:           logger,
		Metrics:          reconcileMetrics,
		SweepWindow:      cfg.SweepWindow,
		SweepMaxInvitees: cfg.SweepMaxInvitees,
	})

	// Setup router
	routerCfg := &router.Config{
		Logger:             logger,
		WebhookHandler:     handlers.NewWebhookHandler(engine, logger),
		SweepHandler:       handlers.NewSweepHandler(engine, logger),
		SweepSecret:        cfg.SweepSecret,
		MetricsHandler:     promhttp.Handler(),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}
	r := router.New(routerCfg)

	// Create HTTP server. The webhook path can legitimately hold a request
	// for ~30s of lead-lookup backoff, so the write timeout sits well above
	// the retry budget.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
