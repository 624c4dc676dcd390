package handlers

import (
	"github.com/gofiber/fiber/v3"

	"clientlookup/internal/cache"
	"clientlookup/internal/config"
	"clientlookup/internal/dataset"
	"clientlookup/internal/metrics"
	"clientlookup/internal/models"
	"clientlookup/internal/validation"
)

// ClientHandler renders the client search pages.
type ClientHandler struct {
	cache  *cache.Manager
	schema *config.Schema
	cfg    *config.Config
}

// NewClientHandler creates a new client page handler.
func NewClientHandler(c *cache.Manager, schema *config.Schema, cfg *config.Config) *ClientHandler {
	return &ClientHandler{cache: c, schema: schema, cfg: cfg}
}

// Index renders the search page.
func (h *ClientHandler) Index(c fiber.Ctx) error {
	return c.Render("index", MergeBranding(fiber.Map{
		"Cache": models.NewCacheStats(h.cache.Snapshot()),
	}, h.cfg))
}

// Client renders the lookup result for the id query parameter.
func (h *ClientHandler) Client(c fiber.Ctx) error {
	key := validation.NormalizeKey(c.Query("id", ""))
	if key == "" {
		return c.Redirect().To("/")
	}

	htmx := c.Get("HX-Request") == "true"
	if valid, msg := validation.ValidateKey(key); !valid {
		if htmx {
			return htmxError(c, msg)
		}
		return c.Status(fiber.StatusBadRequest).Render("error", MergeBranding(fiber.Map{
			"Title":   "Invalid identification",
			"Message": msg,
		}, h.cfg))
	}

	res, err := h.cache.FindByKey(c.Context(), "", key)
	if err != nil {
		metrics.RecordLookup(metrics.KindKey, metrics.OutcomeError)
		msg := "The client base is unavailable right now (" + dataset.KindOf(err) + "). Please try again shortly."
		if htmx {
			return htmxError(c, msg)
		}
		return c.Status(fiber.StatusServiceUnavailable).Render("error", MergeBranding(fiber.Map{
			"Title":   "Lookup failed",
			"Message": msg,
		}, h.cfg))
	}

	lookup := models.BuildClientLookup(res, h.schema)
	if lookup.Found {
		metrics.RecordLookup(metrics.KindKey, metrics.OutcomeFound)
	} else {
		metrics.RecordLookup(metrics.KindKey, metrics.OutcomeNotFound)
	}

	if htmx {
		return c.Render("partials/client", fiber.Map{"Lookup": lookup}, "")
	}
	return c.Render("client", MergeBranding(fiber.Map{
		"Lookup": lookup,
		"Query":  key,
	}, h.cfg))
}

// Suggest renders the suggestion dropdown for the search box.
func (h *ClientHandler) Suggest(c fiber.Ctx) error {
	query := validation.NormalizeFragment(c.Query("q", ""))
	if query == "" {
		return c.SendString("")
	}

	found, active := h.cache.FindByPrefix(query, h.cfg.SuggestLimit)
	if len(found) > 0 {
		metrics.RecordLookup(metrics.KindPrefix, metrics.OutcomeFound)
	} else {
		metrics.RecordLookup(metrics.KindPrefix, metrics.OutcomeNotFound)
	}

	return c.Render("partials/suggestions", fiber.Map{
		"Suggestions": models.BuildSuggestions(found, h.schema),
		"Query":       query,
		"Active":      active,
	}, "")
}
