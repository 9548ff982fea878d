package handlers

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"shopfront/internal/domain"
	applog "shopfront/internal/log"
	"shopfront/internal/validate"
)

const friendlyError = "Something went wrong. Please try again."

// fail maps a store error to its HTTP status. Unexpected errors are logged
// and never shown to the client.
func fail(c *fiber.Ctx, action string, err error) error {
	var status int
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, domain.ErrConstraintViolation):
		status = fiber.StatusConflict
	case errors.Is(err, domain.ErrReference):
		status = fiber.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrValidation):
		status = fiber.StatusBadRequest
	default:
		applog.Error(c, action+".fail", err, nil)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": friendlyError})
	}

	body := fiber.Map{"error": err.Error()}
	var de *domain.Error
	if errors.As(err, &de) {
		body["kind"] = de.Kind.Error()
		if de.Field != "" {
			body["field"] = de.Field
		}
	}
	if status == fiber.StatusBadRequest {
		applog.Security(c, "validation.fail", map[string]any{"action": action, "field": body["field"]})
	}
	return c.Status(status).JSON(body)
}

// idParam validates a path id; a malformed id can never exist.
func idParam(c *fiber.Ctx, name string) (string, bool) {
	id, ok := validate.ID(c.Params(name))
	if !ok {
		applog.Security(c, "validation.fail", map[string]any{"field": name})
	}
	return id, ok
}

func notFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

// pageParams reads ?page=&page_size=; bad values fall back to defaults.
func pageParams(c *fiber.Ctx) (page, size int) {
	page, _ = strconv.Atoi(c.Query("page"))
	size, _ = strconv.Atoi(c.Query("page_size"))
	return page, size
}

func removedBody(removed map[string]int64) fiber.Map {
	var total int64
	for _, n := range removed {
		total += n
	}
	return fiber.Map{"deleted": removed, "total": total}
}
