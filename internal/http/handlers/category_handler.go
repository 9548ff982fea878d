package handlers

import (
	"github.com/gofiber/fiber/v2"

	"shopfront/internal/domain"
	applog "shopfront/internal/log"
	"shopfront/internal/services"
	"shopfront/internal/validate"
)

type CategoryHandler struct {
	Catalog *services.CatalogService
}

// GET /categories?q=
func (h *CategoryHandler) List(c *fiber.Ctx) error {
	q := ""
	if raw := c.Query("q"); raw != "" {
		var ok bool
		if q, ok = validate.Q(raw); !ok {
			applog.Security(c, "validation.fail", map[string]any{"field": "q"})
			return badRequest(c, "enter a valid keyword")
		}
	}
	page, size := pageParams(c)
	cats, err := h.Catalog.ListCategories(c.UserContext(), q, page, size)
	if err != nil {
		return fail(c, "categories.list", err)
	}
	return c.JSON(fiber.Map{"categories": cats})
}

// GET /categories/:id
func (h *CategoryHandler) Get(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return notFound(c)
	}
	cat, err := h.Catalog.GetCategory(c.UserContext(), id)
	if err != nil {
		return fail(c, "categories.get", err)
	}
	return c.JSON(cat)
}

// POST /categories
func (h *CategoryHandler) Create(c *fiber.Ctx) error {
	var in domain.Category
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "malformed body")
	}
	cat, err := h.Catalog.CreateCategory(c.UserContext(), domain.Category{Name: in.Name, Description: in.Description})
	if err != nil {
		return fail(c, "categories.create", err)
	}
	applog.Audit(c, "categories.create", map[string]any{"category_id": cat.ID, "name": cat.Name})
	return c.Status(fiber.StatusCreated).JSON(cat)
}

// PATCH /categories/:id
func (h *CategoryHandler) Update(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return notFound(c)
	}
	var p domain.CategoryPatch
	if err := c.BodyParser(&p); err != nil {
		return badRequest(c, "malformed body")
	}
	cat, err := h.Catalog.UpdateCategory(c.UserContext(), id, p)
	if err != nil {
		return fail(c, "categories.update", err)
	}
	applog.Audit(c, "categories.update", map[string]any{"category_id": id})
	return c.JSON(cat)
}

// DELETE /categories/:id
func (h *CategoryHandler) Delete(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return notFound(c)
	}
	removed, err := h.Catalog.DeleteCategory(c.UserContext(), id)
	if err != nil {
		return fail(c, "categories.delete", err)
	}
	applog.Audit(c, "categories.delete", map[string]any{"category_id": id, "removed": removed})
	return c.JSON(removedBody(removed))
}

// GET /categories/:id/products
func (h *CategoryHandler) Products(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return notFound(c)
	}
	page, size := pageParams(c)
	products, err := h.Catalog.ListProductsByCategory(c.UserContext(), id, page, size)
	if err != nil {
		return fail(c, "categories.products", err)
	}
	return c.JSON(fiber.Map{"category_id": id, "products": products})
}
