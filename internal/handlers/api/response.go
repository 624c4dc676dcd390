package api

import (
	"github.com/gofiber/fiber/v3"

	"clientlookup/internal/dataset"
)

// jsonSuccess returns a 200 response with data wrapped in the standard envelope.
func jsonSuccess(c fiber.Ctx, data any) error {
	return c.JSON(fiber.Map{
		"status": "ok",
		"data":   data,
	})
}

// jsonError returns an error response with the given HTTP status code.
func jsonError(c fiber.Ctx, status int, kind, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"status": "error",
		"kind":   kind,
		"error":  message,
	})
}

// jsonFailure maps a core error to its HTTP status and envelope.
func jsonFailure(c fiber.Ctx, err error) error {
	kind := dataset.KindOf(err)
	return jsonError(c, StatusFor(kind), kind, err.Error())
}

// StatusFor returns the HTTP status used for an error kind.
func StatusFor(kind string) int {
	switch kind {
	case dataset.KindSourceUnavailable:
		return fiber.StatusServiceUnavailable
	case dataset.KindEmptyDataset, dataset.KindSchemaMismatch, dataset.KindUnsorted:
		return fiber.StatusBadGateway
	case dataset.KindInvalidArgument:
		return fiber.StatusBadRequest
	case dataset.KindNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}
