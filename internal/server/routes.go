package server

import (
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"clientlookup/internal/cache"
	"clientlookup/internal/config"
	"clientlookup/internal/diagnostics"
	"clientlookup/internal/handlers"
	"clientlookup/internal/handlers/api"
)

// RegisterRoutes registers all application routes.
func (s *Server) RegisterRoutes(mgr *cache.Manager, schema *config.Schema) {
	diag := diagnostics.DefaultOptions()
	diag.ExpectedRecords = s.Cfg.ExpectedRecordCount

	// Initialize handlers
	clientHandler := handlers.NewClientHandler(mgr, schema, s.Cfg)
	probeHandler := handlers.NewProbeHandler(mgr)
	apiClientHandler := api.NewClientHandler(mgr, schema, s.Cfg)
	apiCacheHandler := api.NewCacheHandler(mgr, diag)

	// Probes and metrics
	s.App.Get("/healthz", probeHandler.Liveness)
	s.App.Get("/readyz", probeHandler.Readiness)
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Frontend routes
	s.App.Get("/", clientHandler.Index)
	s.App.Get("/client", clientHandler.Client)
	s.App.Get("/suggest", clientHandler.Suggest)

	// JSON API
	apiGroup := s.App.Group("/api")
	apiGroup.Get("/clients/:id", apiClientHandler.Get)
	apiGroup.Get("/suggest", apiClientHandler.Suggest)
	apiGroup.Get("/cache/stats", apiCacheHandler.Stats)
	apiGroup.Get("/cache/diagnostics", apiCacheHandler.Diagnostics)
	apiGroup.Post("/cache/warm", apiCacheHandler.Warm)
	apiGroup.Delete("/cache", apiCacheHandler.Clear)
}
