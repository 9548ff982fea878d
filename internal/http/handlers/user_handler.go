package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"shopfront/internal/domain"
	applog "shopfront/internal/log"
	"shopfront/internal/services"
)

type UserHandler struct {
	Accounts *services.AccountService
	Orders   *services.OrderService
}

type userIn struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	IsStaff  bool   `json:"is_staff"`
}

type profileView struct {
	domain.UserProfile
	Label string `json:"label"`
}

func (h *UserHandler) labelled(c *fiber.Ctx, p domain.UserProfile) (profileView, error) {
	label, err := h.Accounts.ProfileLabel(c.UserContext(), p)
	if err != nil {
		return profileView{}, err
	}
	return profileView{UserProfile: p, Label: label}, nil
}

// GET /users?staff=1
func (h *UserHandler) List(c *fiber.Ctx) error {
	users, err := h.Accounts.ListUsers(c.UserContext(), c.QueryBool("staff"))
	if err != nil {
		return fail(c, "users.list", err)
	}
	return c.JSON(fiber.Map{"users": users})
}

// POST /users
func (h *UserHandler) Create(c *fiber.Ctx) error {
	var in userIn
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "malformed body")
	}
	u, err := h.Accounts.Register(c.UserContext(), in.Username, in.Email, in.Password, in.IsStaff)
	if err != nil {
		return fail(c, "users.create", err)
	}
	applog.Audit(c, "users.create", map[string]any{"target_user_id": u.ID, "is_staff": u.IsStaff})
	return c.Status(fiber.StatusCreated).JSON(u)
}

// GET /users/:id
func (h *UserHandler) Get(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return notFound(c)
	}
	u, err := h.Accounts.GetUser(c.UserContext(), id)
	if err != nil {
		return fail(c, "users.get", err)
	}
	return c.JSON(u)
}

// PATCH /users/:id
func (h *UserHandler) Update(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return notFound(c)
	}
	var p domain.UserPatch
	if err := c.BodyParser(&p); err != nil {
		return badRequest(c, "malformed body")
	}
	u, err := h.Accounts.UpdateUser(c.UserContext(), id, p)
	if err != nil {
		return fail(c, "users.update", err)
	}
	applog.Audit(c, "users.update", map[string]any{"target_user_id": id})
	return c.JSON(u)
}

// DELETE /users/:id removes the user, their profile, orders and order lines.
func (h *UserHandler) Delete(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return notFound(c)
	}
	if me, _ := c.Locals("user_id").(string); me == id {
		applog.Security(c, "users.delete.self", nil)
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "cannot delete the signed-in account"})
	}
	removed, err := h.Accounts.DeleteUser(c.UserContext(), id)
	if err != nil {
		return fail(c, "users.delete", err)
	}
	applog.Audit(c, "users.delete", map[string]any{"target_user_id": id, "removed": removed})
	return c.JSON(removedBody(removed))
}

// GET /users/:id/orders
func (h *UserHandler) OrderHistory(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return notFound(c)
	}
	if _, err := h.Accounts.GetUser(c.UserContext(), id); err != nil {
		return fail(c, "users.orders", err)
	}
	page, size := pageParams(c)
	orders, err := h.Orders.History(c.UserContext(), id, page, size)
	if err != nil {
		return fail(c, "users.orders", err)
	}
	return c.JSON(fiber.Map{"user_id": id, "orders": orders})
}

// GET /users/:id/profile
func (h *UserHandler) Profile(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return notFound(c)
	}
	p, err := h.Accounts.ProfileOf(c.UserContext(), id)
	if err != nil {
		return fail(c, "profiles.get", err)
	}
	v, err := h.labelled(c, p)
	if err != nil {
		return fail(c, "profiles.get", err)
	}
	return c.JSON(v)
}

// PUT /users/:id/profile creates the profile on first save.
func (h *UserHandler) SaveProfile(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return notFound(c)
	}
	var p domain.ProfilePatch
	if err := c.BodyParser(&p); err != nil {
		return badRequest(c, "malformed body")
	}
	prof, err := h.Accounts.SaveProfile(c.UserContext(), id, p)
	if err != nil {
		return fail(c, "profiles.save", err)
	}
	applog.Audit(c, "profiles.save", map[string]any{"target_user_id": id, "profile_id": prof.ID})
	v, err := h.labelled(c, prof)
	if err != nil {
		return fail(c, "profiles.save", err)
	}
	return c.JSON(v)
}

// POST /profiles
func (h *UserHandler) CreateProfile(c *fiber.Ctx) error {
	var in domain.UserProfile
	if err := c.BodyParser(&in); err != nil {
		return badRequest(c, "malformed body")
	}
	in.ID = ""
	p, err := h.Accounts.CreateProfile(c.UserContext(), in)
	if err != nil {
		return fail(c, "profiles.create", err)
	}
	applog.Audit(c, "profiles.create", map[string]any{"profile_id": p.ID, "target_user_id": p.UserID})
	return c.Status(fiber.StatusCreated).JSON(p)
}

// GET /profiles/:id
func (h *UserHandler) GetProfile(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return notFound(c)
	}
	p, err := h.Accounts.GetProfile(c.UserContext(), id)
	if err != nil {
		return fail(c, "profiles.get", err)
	}
	v, err := h.labelled(c, p)
	if errors.Is(err, domain.ErrNotFound) {
		// The owner vanished between the two reads.
		return notFound(c)
	}
	if err != nil {
		return fail(c, "profiles.get", err)
	}
	return c.JSON(v)
}

// PATCH /profiles/:id
func (h *UserHandler) UpdateProfile(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return notFound(c)
	}
	var patch domain.ProfilePatch
	if err := c.BodyParser(&patch); err != nil {
		return badRequest(c, "malformed body")
	}
	p, err := h.Accounts.UpdateProfile(c.UserContext(), id, patch)
	if err != nil {
		return fail(c, "profiles.update", err)
	}
	applog.Audit(c, "profiles.update", map[string]any{"profile_id": id})
	return c.JSON(p)
}

// DELETE /profiles/:id
func (h *UserHandler) DeleteProfile(c *fiber.Ctx) error {
	id, ok := idParam(c, "id")
	if !ok {
		return notFound(c)
	}
	removed, err := h.Accounts.DeleteProfile(c.UserContext(), id)
	if err != nil {
		return fail(c, "profiles.delete", err)
	}
	applog.Audit(c, "profiles.delete", map[string]any{"profile_id": id})
	return c.JSON(removedBody(removed))
}
