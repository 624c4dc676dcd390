package api

import (
	"time"

	"github.com/gofiber/fiber/v3"

	"clientlookup/internal/cache"
	"clientlookup/internal/diagnostics"
	"clientlookup/internal/models"
)

// CacheHandler exposes cache maintenance via JSON API.
type CacheHandler struct {
	cache *cache.Manager
	diag  diagnostics.Options
}

// NewCacheHandler creates a new API cache handler.
func NewCacheHandler(c *cache.Manager, diag diagnostics.Options) *CacheHandler {
	return &CacheHandler{cache: c, diag: diag}
}

// Stats reports the cache without touching the source.
func (h *CacheHandler) Stats(c fiber.Ctx) error {
	return jsonSuccess(c, models.NewCacheStats(h.cache.Snapshot()))
}

// Diagnostics reports derived performance metrics and recommendations.
func (h *CacheHandler) Diagnostics(c fiber.Ctx) error {
	return jsonSuccess(c, diagnostics.Diagnose(h.cache.Snapshot(), h.diag))
}

// Warm loads the dataset now instead of on the first lookup.
func (h *CacheHandler) Warm(c fiber.Ctx) error {
	start := time.Now()
	res, err := h.cache.Warm(c.Context(), "")
	if err != nil {
		return jsonFailure(c, err)
	}
	return jsonSuccess(c, models.NewWarmResponse(res, time.Since(start)))
}

// Clear empties the cache and reports what was released.
func (h *CacheHandler) Clear(c fiber.Ctx) error {
	return jsonSuccess(c, models.NewClearResponse(h.cache.Invalidate()))
}
