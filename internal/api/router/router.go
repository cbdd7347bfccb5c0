package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/surveyops/booking-sync/internal/http/handlers"
	httpmiddleware "github.com/surveyops/booking-sync/internal/http/middleware"
	"github.com/surveyops/booking-sync/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	WebhookHandler     *handlers.WebhookHandler
	SweepHandler       *handlers.SweepHandler
	SweepSecret        string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhooks, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", handlers.Health)
		public.Post("/webhooks/calendly", cfg.WebhookHandler.Handle)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Operational endpoints behind the shared-secret check
	r.Group(func(jobs chi.Router) {
		jobs.Use(httpmiddleware.SweepAuth(cfg.SweepSecret))
		jobs.Post("/jobs/sweep", cfg.SweepHandler.Handle)
	})

	return r
}
