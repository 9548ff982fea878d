package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/basicauth"

	applog "shopfront/internal/log"
	"shopfront/internal/services"
)

// RequireStaff guards the admin API with HTTP basic auth against staff
// accounts. On success the user is available as Locals("user").
func RequireStaff(accounts *services.AccountService) fiber.Handler {
	return basicauth.New(basicauth.Config{
		Realm: "shopfront admin",
		Authorizer: func(username, password string) bool {
			_, err := accounts.StaffLogin(context.Background(), username, password)
			return err == nil
		},
		Unauthorized: func(c *fiber.Ctx) error {
			applog.Security(c, "access.denied.admin", nil)
			c.Set(fiber.HeaderWWWAuthenticate, `basic realm="shopfront admin"`)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "staff credentials required"})
		},
	})
}

// attachUser loads the authenticated staff user into Locals for handlers and
// log lines.
func attachUser(accounts *services.AccountService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		name, _ := c.Locals("username").(string)
		if name == "" {
			return c.Next()
		}
		if u, err := accounts.Users.ByUsername(c.UserContext(), name); err == nil {
			c.Locals("user", &u)
			c.Locals("user_id", u.ID)
		}
		return c.Next()
	}
}
