package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/prepview/interview-ai-platform/internal/http/handlers"
	httpmiddleware "github.com/prepview/interview-ai-platform/internal/http/middleware"
	"github.com/prepview/interview-ai-platform/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	SessionHandler *handlers.SessionHandler
	MetricsHandler http.Handler

	CORSAllowedOrigins []string

	// Requests per second per client IP; 0 disables rate limiting.
	RateLimitPerSecond float64
	RateLimitBurst     int
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
	if cfg.RateLimitPerSecond > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 10
		}
		r.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, burst))
	}

	r.Get("/health", cfg.SessionHandler.HealthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", cfg.SessionHandler.Create)
		r.Get("/", cfg.SessionHandler.List)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", cfg.SessionHandler.Get)
			r.Post("/start", cfg.SessionHandler.Start)
			r.Post("/responses", cfg.SessionHandler.SubmitResponse)
			r.Post("/clarify", cfg.SessionHandler.Clarify)
			r.Post("/difficulty", cfg.SessionHandler.AdaptDifficulty)
			r.Post("/pause", cfg.SessionHandler.Pause)
			r.Post("/resume", cfg.SessionHandler.Resume)
			r.Post("/end", cfg.SessionHandler.End)
			r.Get("/report", cfg.SessionHandler.GetReport)
			r.Post("/report", cfg.SessionHandler.RegenerateReport)
			r.Get("/usage", cfg.SessionHandler.GetUsage)
		})
	})

	return r
}
