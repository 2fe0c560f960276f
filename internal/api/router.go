// Package api provides the callback server: OAuth2 login and callback,
// widget rendering and operational endpoints.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/traewellingwidget/traewellingwidget/internal/api/handler"
	"github.com/traewellingwidget/traewellingwidget/internal/api/middleware"
	"github.com/traewellingwidget/traewellingwidget/internal/auth"
	"github.com/traewellingwidget/traewellingwidget/internal/provider/resilience"
	"github.com/traewellingwidget/traewellingwidget/internal/widget"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	Manager  *auth.Manager
	Profiles handler.Profiles

	// WidgetDefaults are the parameters of widgets requested without query.
	WidgetDefaults widget.Params

	// Store is pinged by the readiness and status endpoints. Optional.
	Store handler.Pinger

	// Providers reports upstream health on the status endpoint. Optional.
	Providers *resilience.Registry

	// RequireTLS rejects requests forwarded as plain HTTP.
	RequireTLS bool
}

// NewRouter creates a new chi router with all routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "traewelling-widget"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)

	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.Store, cfg.Providers)
	authHandler := handler.NewAuthHandler(cfg.Manager, cfg.Profiles, cfg.Logger)
	widgetHandler := handler.NewWidgetHandler(cfg.Profiles, cfg.WidgetDefaults, cfg.Logger)

	loginLimit := middleware.RateLimit(middleware.LoginLimit, middleware.ByIP)
	opsLimit := middleware.RateLimit(middleware.OpsLimit, middleware.ByIP)

	// The redirect URI registered at the authorization server.
	r.With(loginLimit, middleware.NoStore).Get("/callback", authHandler.Callback)
	r.With(loginLimit, middleware.NoStore, middleware.Profile).Get("/login/{profile}", authHandler.Login)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(opsLimit).Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/profiles/{profile}", func(r chi.Router) {
			r.Use(middleware.Profile)
			r.Use(middleware.NoStore)
			r.Use(middleware.RateLimit(middleware.OpsLimit, middleware.ByProfile))
			r.Get("/auth", authHandler.Status)
			r.Delete("/auth", authHandler.Logout)
		})

		r.Route("/widgets/{profile}", func(r chi.Router) {
			r.Use(middleware.Profile)
			r.Use(middleware.RateLimit(middleware.WidgetLimit, middleware.ByProfile))
			r.Get("/", widgetHandler.Render)
		})
	})

	return r
}
