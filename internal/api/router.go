package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/eldtechnologies/chatmsg/internal/api/middleware"
	"github.com/eldtechnologies/chatmsg/internal/apierror"
	"github.com/eldtechnologies/chatmsg/internal/config"
	"github.com/eldtechnologies/chatmsg/internal/handlers"
	"github.com/eldtechnologies/chatmsg/internal/pipeline"
	"github.com/eldtechnologies/chatmsg/internal/store"
)

// NewRouter creates and configures the HTTP router. redisStore may be nil, in
// which case rate limiting is disabled.
func NewRouter(logger zerolog.Logger, cfg *config.Config, msgStore store.MessageStore, redisStore *store.RedisStore, p *pipeline.Pipeline) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	// Security middleware (order matters!)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(cfg.MaxBodyBytes))
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.RealIP(middleware.NewIPList(cfg.TrustedProxies, logger)))
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// Rate limiting
	if client := redisStore.Client(); client != nil {
		limiter := middleware.NewRateLimiter(client, logger, middleware.RateLimiterConfig{
			Whitelist:        cfg.RateLimitWhitelist,
			AutoBlockEnabled: cfg.AutoBlockEnabled,
			CreateLimit:      cfg.CreateRateLimit,
			CreateWindow:     cfg.RateLimitWindow,
		})
		r.Use(limiter.Middleware)
	} else {
		logger.Warn().Msg("redis not configured, rate limiting disabled")
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", middleware.APIKeyHeader},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	h := handlers.NewHandler(p, msgStore, redisStore, logger)
	auth := middleware.NewAuthMiddleware(cfg.APIKey, cfg.APIKeyHash)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apierror.Write(w, http.StatusNotFound, apierror.CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apierror.Write(w, http.StatusMethodNotAllowed, apierror.CodeInvalidFormat, "method not allowed")
	})

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())

	// Public routes
	r.Get("/health", h.Health)
	r.Get("/api", h.Root)

	// Authenticated routes
	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAPIKey)

		r.Post("/api/messages", h.CreateMessage)
		r.Get("/api/messages/{session_id}", h.ListMessages)
	})

	return r
}
