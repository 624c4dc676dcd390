package handlers

import (
	"github.com/gofiber/fiber/v3"

	"clientlookup/internal/cache"
)

// ProbeHandler handles Kubernetes health probe endpoints.
type ProbeHandler struct {
	cache *cache.Manager
}

// NewProbeHandler creates a new probe handler.
func NewProbeHandler(c *cache.Manager) *ProbeHandler {
	return &ProbeHandler{cache: c}
}

// Liveness handles the /healthz endpoint for Kubernetes liveness probes.
// Returns 200 OK if the application is running.
func (h *ProbeHandler) Liveness(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "ok",
	})
}

// Readiness handles the /readyz endpoint for Kubernetes readiness probes.
// Returns 200 OK once a dataset is loaded.
func (h *ProbeHandler) Readiness(c fiber.Ctx) error {
	snap := h.cache.Snapshot()
	if !snap.Active {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "error",
			"error":  "dataset not loaded",
		})
	}

	return c.JSON(fiber.Map{
		"status":  "ok",
		"records": snap.Stats.RecordCount,
	})
}
