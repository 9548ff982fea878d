package handlers

import (
	"errors"
	"io"
	"path"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"shopfront/internal/domain"
	applog "shopfront/internal/log"
	"shopfront/internal/media"
	"shopfront/internal/services"
	"shopfront/internal/validate"
)

type ProductHandler struct {
	Catalog   *services.CatalogService
	Orders    *services.OrderService
	MaxUpload int
}

type productView struct {
	domain.Product
	ImageURL string `json:"image_url,omitempty"`
}

func (h *ProductHandler) view(p domain.Product) productView {
	return productView{Product: p, ImageURL: h.Catalog.ImageURL(p)}
}

type productIn struct {
	CategoryID  string           `json:"category_id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price"`
}

// GET /products?category_id=&q=&order=
func (h *ProductHandler) List(c *fiber.Ctx) error {
	f := domain.ProductFilter{OrderBy: c.Query("order")}
	if raw := c.Query("category_id"); raw != "" {
		id, ok := validate.ID(raw)
		if !ok {
			applog.Security(c, "validation.fail", map[string]any{"field": "category_id"})
			return badRequest(c, "invalid category")
		}
		f.CategoryID = id
	}
	if raw := c.Query("q"); raw != "" {
		q, ok := validate.Q(raw)
		if !ok {
			applog.Security(c, "validation.fail", map[string]any{"field": "q"})
			return badRequest(c, "enter a valid keyword")
		}
		f.NameContains = q
	}
	page, size := pageParams(c)
	products, err := h.Catalog.ListProducts(c.UserContext(), f, page, size)
	if err != nil {
		return fail(c, "products.list", err)
	}
	out := make([]productView, 0, len(products))
	for _, p := range products {
		out = append(out, h.view(p))
	}
	return c.JSON(fiber.Map{"products": out, "count": len(out)})
}

// GET /products/:id
func (h *ProductHandler) Detail(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return notFound(c)
	}
	p, err := h.Catalog.GetProduct(c.UserContext(), id)
	if err != nil {
		return fail(c, "products.get", err)
	}
	return c.JSON(h.view(p))
}

// POST /products
func (h *ProductHandler) Create(c *fiber.Ctx) error {
	var in productIn
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "malformed body")
	}
	if in.Price == nil {
		return fail(c, "products.create", domain.Invalid("product", "price", "required"))
	}
	p, err := h.Catalog.CreateProduct(c.UserContext(), domain.Product{
		CategoryID:  in.CategoryID,
		Name:        in.Name,
		Description: in.Description,
		Price:       *in.Price,
	})
	if err != nil {
		return fail(c, "products.create", err)
	}
	applog.Audit(c, "products.create", map[string]any{"product_id": p.ID, "price": p.Price.StringFixed(2)})
	return c.Status(fiber.StatusCreated).JSON(h.view(p))
}

// PATCH /products/:id
func (h *ProductHandler) Update(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return notFound(c)
	}
	var patch domain.ProductPatch
	if err := c.BodyParser(&patch); err != nil {
		return badRequest(c, "malformed body")
	}
	// The image reference only changes through an upload.
	patch.Image = nil
	p, err := h.Catalog.UpdateProduct(c.UserContext(), id, patch)
	if err != nil {
		return fail(c, "products.update", err)
	}
	applog.Audit(c, "products.update", map[string]any{"product_id": id})
	return c.JSON(h.view(p))
}

// DELETE /products/:id
func (h *ProductHandler) Delete(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return notFound(c)
	}
	removed, err := h.Catalog.DeleteProduct(c.UserContext(), id)
	if err != nil {
		return fail(c, "products.delete", err)
	}
	applog.Audit(c, "products.delete", map[string]any{"product_id": id, "removed": removed})
	return c.JSON(removedBody(removed))
}

// GET /products/:id/order-items
func (h *ProductHandler) OrderItems(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return notFound(c)
	}
	if _, err := h.Catalog.GetProduct(c.UserContext(), id); err != nil {
		return fail(c, "products.items", err)
	}
	items, err := h.Orders.ListItems(c.UserContext(), domain.OrderItemFilter{ProductID: id})
	if err != nil {
		return fail(c, "products.items", err)
	}
	return c.JSON(fiber.Map{"product_id": id, "items": items})
}

// POST /products/:id/image (multipart field "image")
func (h *ProductHandler) UploadImage(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return notFound(c)
	}
	fh, err := c.FormFile("image")
	if err != nil {
		return badRequest(c, "missing image file")
	}
	if h.MaxUpload > 0 && fh.Size > int64(h.MaxUpload) {
		applog.Security(c, "upload.too_large", map[string]any{"product_id": id, "size": fh.Size})
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "image too large"})
	}
	f, err := fh.Open()
	if err != nil {
		return fail(c, "products.image", err)
	}
	defer f.Close()

	p, err := h.Catalog.SetProductImage(c.UserContext(), id, path.Base(fh.Filename), f)
	if err != nil {
		return fail(c, "products.image", err)
	}
	applog.Audit(c, "products.image", map[string]any{"product_id": id, "key": p.Image})
	return c.JSON(h.view(p))
}

// GET /media/* serves stored assets; traversal attempts are refused.
func (h *ProductHandler) Media(c *fiber.Ctx) error {
	raw := c.Params("*")
	key, err := media.CleanKey(raw)
	if err != nil {
		applog.Security(c, "media.traversal.block", map[string]any{"path": raw})
		return c.SendStatus(fiber.StatusNotFound)
	}
	if h.Catalog.Media == nil {
		return c.SendStatus(fiber.StatusNotFound)
	}
	rc, err := h.Catalog.Media.Open(c.UserContext(), key)
	if errors.Is(err, media.ErrNotFound) {
		return c.SendStatus(fiber.StatusNotFound)
	}
	if err != nil {
		applog.Error(c, "media.open.fail", err, map[string]any{"key": key})
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	defer rc.Close()
	if ct, err := media.ImageType(key); err == nil {
		c.Set(fiber.HeaderContentType, ct)
	}
	data, err := io.ReadAll(rc)
	if err != nil {
		applog.Error(c, "media.read.fail", err, map[string]any{"key": key})
		return c.SendStatus(fiber.StatusInternalServerError)
	}
	return c.Send(data)
}

