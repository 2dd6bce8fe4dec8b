package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/middleware"
)

// RouterConfig wires the HTTP surface. Nil handlers leave their route out.
type RouterConfig struct {
	Handler     *Handler
	WebSocket   http.Handler
	Metrics     http.Handler
	RateLimit   func(http.Handler) http.Handler
	CORSOrigins []string
	Logger      *zap.Logger
}

// NewRouter builds the service router
func NewRouter(cfg RouterConfig) chi.Router {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimiddleware.Recoverer)

	// CORS configuration
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", cfg.Handler.HealthCheck)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}
	if cfg.WebSocket != nil {
		r.Method(http.MethodGet, "/ws", cfg.WebSocket)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(30 * time.Second))

		// Sports
		r.Get("/sports", cfg.Handler.ListSports)
		r.Post("/sports/{sport}/load", cfg.Handler.LoadSport)

		// Players
		r.Get("/players", cfg.Handler.GetPlayers)
		r.Group(func(r chi.Router) {
			if cfg.RateLimit != nil {
				r.Use(cfg.RateLimit)
			}
			r.Get("/players/search", cfg.Handler.SearchPlayers)
		})
		r.Get("/players/photos", cfg.Handler.GetPhotos)
		r.Post("/players/resolve", cfg.Handler.ResolvePlayers)
		r.Get("/players/{id}", cfg.Handler.GetPlayer)
	})

	return r
}
