package api

import (
	"github.com/gofiber/fiber/v3"

	"clientlookup/internal/cache"
	"clientlookup/internal/config"
	"clientlookup/internal/dataset"
	"clientlookup/internal/metrics"
	"clientlookup/internal/models"
	"clientlookup/internal/validation"
)

// maxSuggestLimit caps the limit query parameter.
const maxSuggestLimit = 50

// ClientHandler serves client lookups via JSON API.
type ClientHandler struct {
	cache  *cache.Manager
	schema *config.Schema
	cfg    *config.Config
}

// NewClientHandler creates a new API client handler.
func NewClientHandler(c *cache.Manager, schema *config.Schema, cfg *config.Config) *ClientHandler {
	return &ClientHandler{cache: c, schema: schema, cfg: cfg}
}

// Get returns the client summary and obligations for an identification number.
// A miss is a 200 response with found=false.
func (h *ClientHandler) Get(c fiber.Ctx) error {
	key := validation.NormalizeKey(c.Params("id"))
	if valid, msg := validation.ValidateKey(key); !valid {
		return jsonError(c, fiber.StatusBadRequest, dataset.KindInvalidArgument, msg)
	}

	res, err := h.cache.FindByKey(c.Context(), "", key)
	if err != nil {
		metrics.RecordLookup(metrics.KindKey, metrics.OutcomeError)
		return jsonFailure(c, err)
	}

	lookup := models.BuildClientLookup(res, h.schema)
	if lookup.Found {
		metrics.RecordLookup(metrics.KindKey, metrics.OutcomeFound)
	} else {
		metrics.RecordLookup(metrics.KindKey, metrics.OutcomeNotFound)
	}
	return jsonSuccess(c, lookup)
}

// Suggest returns identification numbers starting with the q parameter.
func (h *ClientHandler) Suggest(c fiber.Ctx) error {
	query := validation.NormalizeFragment(c.Query("q", ""))
	limit := validation.ParseLimit(c.Query("limit", ""), h.cfg.SuggestLimit, maxSuggestLimit)

	found, active := h.cache.FindByPrefix(query, limit)
	resp := models.SuggestResponse{
		Query:       query,
		Active:      active,
		Suggestions: models.BuildSuggestions(found, h.schema),
	}

	if len(found) > 0 {
		metrics.RecordLookup(metrics.KindPrefix, metrics.OutcomeFound)
	} else {
		metrics.RecordLookup(metrics.KindPrefix, metrics.OutcomeNotFound)
	}
	return jsonSuccess(c, resp)
}
