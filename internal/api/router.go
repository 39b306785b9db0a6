package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/locolive/playback/internal/middleware"
)

// Router holds all handlers and creates the chi router
type Router struct {
	storyHandler   *StoryHandler
	viewerHandler  *ViewerHandler
	healthHandler  *HealthHandler
	metricsHandler http.Handler
	allowedOrigins []string
	logger         *zap.Logger
}

// NewRouter creates a new router
func NewRouter(
	storyHandler *StoryHandler,
	viewerHandler *ViewerHandler,
	healthHandler *HealthHandler,
	metricsHandler http.Handler,
	allowedOrigins []string,
	logger *zap.Logger,
) *Router {
	return &Router{
		storyHandler:   storyHandler,
		viewerHandler:  viewerHandler,
		healthHandler:  healthHandler,
		metricsHandler: metricsHandler,
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

// Setup configures and returns the chi router
func (rt *Router) Setup() *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RecoveryMiddleware(rt.logger))
	r.Use(middleware.LoggingMiddleware(rt.logger))
	r.Use(middleware.CORSMiddleware(rt.allowedOrigins))

	// Health endpoints (no viewer required)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", rt.healthHandler.Health)
		r.Get("/ready", rt.healthHandler.Ready)
		r.Get("/live", rt.healthHandler.Live)
	})
	if rt.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", rt.metricsHandler)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.ViewerMiddleware())

		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.Compress(5))
			r.Get("/stories", rt.storyHandler.ListStories)
			r.Get("/messages/{id}", rt.storyHandler.GetMessage)
		})

		r.Get("/viewer/ws", rt.viewerHandler.HandleWebSocket)
	})

	return r
}
