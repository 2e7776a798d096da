package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/ndewijer/portfolio-dashboard/internal/api/handlers"
	custommiddleware "github.com/ndewijer/portfolio-dashboard/internal/api/middleware"
	"github.com/ndewijer/portfolio-dashboard/internal/config"
	"github.com/ndewijer/portfolio-dashboard/internal/service"
)

// NewRouter creates and configures the HTTP router
func NewRouter(
	systemService *service.SystemService,
	sessionService *service.SessionService,
	tableService *service.TableService,
	panelService *service.PanelService,
	breakdownService *service.BreakdownService,
	cfg *config.Config,
	log zerolog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(custommiddleware.Logger(log))
	r.Use(middleware.Recoverer)

	// CORS middleware
	corsMiddleware := custommiddleware.NewCORS(cfg.CORS.AllowedOrigins)
	r.Use(corsMiddleware.Handler)

	// API routes
	r.Route("/api", func(r chi.Router) {
		// System namespace
		r.Route("/system", func(r chi.Router) {
			systemHandler := handlers.NewSystemHandler(systemService)
			r.Get("/health", systemHandler.Health)
			r.Get("/version", systemHandler.Version)
		})

		r.Route("/sessions", func(r chi.Router) {
			sessionHandler := handlers.NewSessionHandler(sessionService)
			tableHandler := handlers.NewTableHandler(tableService)
			panelHandler := handlers.NewPanelHandler(panelService)
			breakdownHandler := handlers.NewBreakdownHandler(breakdownService)

			r.Post("/", sessionHandler.CreateSession)

			r.Route("/{uuid}", func(r chi.Router) {
				r.Use(custommiddleware.ValidateUUIDMiddleware)
				r.Get("/", sessionHandler.Session)
				r.Delete("/", sessionHandler.DeleteSession)
				r.Put("/currency", sessionHandler.UpdateCurrency)
				r.Put("/pan", sessionHandler.UpdatePan)
				r.Put("/credentials", sessionHandler.UpdateCredentials)
				r.Get("/pans", sessionHandler.Pans)

				r.Get("/panels/{panel}", panelHandler.Panel)

				r.Route("/tables/{table}", func(r chi.Router) {
					r.Get("/", tableHandler.Table)
					r.Put("/dimensions", tableHandler.UpdateDimensions)
					r.Post("/toggle", tableHandler.Toggle)
					r.Post("/refresh", tableHandler.Refresh)
					r.Get("/export", tableHandler.Export)
				})

				r.Route("/breakdown", func(r chi.Router) {
					r.Get("/", breakdownHandler.Breakdown)
					r.Post("/drill", breakdownHandler.Drill)
					r.Post("/back", breakdownHandler.Back)
				})
			})
		})
	})

	return r
}
