package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"shopfront/internal/domain"
	applog "shopfront/internal/log"
	"shopfront/internal/services"
)

type OrderHandler struct {
	Orders *services.OrderService
}

type lineIn struct {
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity"`
}

type placeIn struct {
	UserID     string          `json:"user_id"`
	TotalPrice decimal.Decimal `json:"total_price"`
	Items      []lineIn        `json:"items"`
}

// POST /orders places an order with its lines in one step. A line without a
// quantity counts as one unit.
func (h *OrderHandler) Place(c *fiber.Ctx) error {
	var in placeIn
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "malformed body")
	}
	lines := make([]services.Line, 0, len(in.Items))
	for _, it := range in.Items {
		qty := domain.DefaultQuantity
		if it.Quantity != nil {
			qty = *it.Quantity
		}
		lines = append(lines, services.Line{ProductID: it.ProductID, Quantity: qty})
	}
	view, err := h.Orders.Place(c.UserContext(), in.UserID, in.TotalPrice, lines)
	if err != nil {
		return fail(c, "orders.place", err)
	}
	applog.Audit(c, "orders.place", map[string]any{
		"order_id":       view.ID,
		"target_user_id": view.UserID,
		"lines":          len(view.Items),
		"total_price":    view.TotalPrice.StringFixed(2),
	})
	return c.Status(fiber.StatusCreated).JSON(view)
}

// GET /orders/:id
func (h *OrderHandler) Detail(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return notFound(c)
	}
	view, err := h.Orders.Detail(c.UserContext(), id)
	if err != nil {
		return fail(c, "orders.get", err)
	}
	return c.JSON(view)
}

// PATCH /orders/:id
func (h *OrderHandler) Update(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return notFound(c)
	}
	var p domain.OrderPatch
	if err := c.BodyParser(&p); err != nil {
		return badRequest(c, "malformed body")
	}
	o, err := h.Orders.UpdateOrder(c.UserContext(), id, p)
	if err != nil {
		return fail(c, "orders.update", err)
	}
	applog.Audit(c, "orders.update", map[string]any{"order_id": id})
	return c.JSON(o)
}

// DELETE /orders/:id
func (h *OrderHandler) Delete(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return notFound(c)
	}
	removed, err := h.Orders.DeleteOrder(c.UserContext(), id)
	if err != nil {
		return fail(c, "orders.delete", err)
	}
	applog.Audit(c, "orders.delete", map[string]any{"order_id": id, "removed": removed})
	return c.JSON(removedBody(removed))
}

// GET /orders/:id/items
func (h *OrderHandler) Items(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return notFound(c)
	}
	if _, err := h.Orders.GetOrder(c.UserContext(), id); err != nil {
		return fail(c, "orders.items", err)
	}
	items, err := h.Orders.ListItems(c.UserContext(), domain.OrderItemFilter{OrderID: id})
	if err != nil {
		return fail(c, "orders.items", err)
	}
	return c.JSON(fiber.Map{"order_id": id, "items": items})
}

// POST /order-items
func (h *OrderHandler) AddItem(c *fiber.Ctx) error {
	var in struct {
		OrderID   string `json:"order_id"`
		ProductID string `json:"product_id"`
		Quantity  *int   `json:"quantity"`
	}
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "malformed body")
	}
	it := domain.NewOrderItem(in.OrderID, in.ProductID)
	if in.Quantity != nil {
		it.Quantity = *in.Quantity
	}
	it, err := h.Orders.AddItem(c.UserContext(), it)
	if err != nil {
		return fail(c, "order_items.create", err)
	}
	applog.Audit(c, "order_items.create", map[string]any{"order_item_id": it.ID, "order_id": it.OrderID})
	return c.Status(fiber.StatusCreated).JSON(it)
}

// GET /order-items/:id
func (h *OrderHandler) GetItem(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return notFound(c)
	}
	it, err := h.Orders.GetItem(c.UserContext(), id)
	if err != nil {
		return fail(c, "order_items.get", err)
	}
	label, err := h.Orders.ItemLabel(c.UserContext(), it)
	if err != nil {
		return fail(c, "order_items.get", err)
	}
	return c.JSON(services.ItemView{OrderItem: it, Label: label})
}

// PATCH /order-items/:id
func (h *OrderHandler) UpdateItem(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return notFound(c)
	}
	var p domain.OrderItemPatch
	if err := c.BodyParser(&p); err != nil {
		return badRequest(c, "malformed body")
	}
	it, err := h.Orders.UpdateItem(c.UserContext(), id, p)
	if err != nil {
		return fail(c, "order_items.update", err)
	}
	applog.Audit(c, "order_items.update", map[string]any{"order_item_id": id})
	return c.JSON(it)
}

// DELETE /order-items/:id
func (h *OrderHandler) DeleteItem(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return notFound(c)
	}
	removed, err := h.Orders.DeleteItem(c.UserContext(), id)
	if err != nil {
		return fail(c, "order_items.delete", err)
	}
	applog.Audit(c, "order_items.delete", map[string]any{"order_item_id": id})
	return c.JSON(removedBody(removed))
}
