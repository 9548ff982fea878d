package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"

	applog "shopfront/internal/log"
	"shopfront/internal/metrics"
)

// AppOptions tunes the HTTP surface. Zero values give production defaults.
type AppOptions struct {
	AccessLog bool
	// RateLimit is requests per minute per client IP; negative disables it.
	RateLimit int
}

// NewApp builds the admin API with every route registered.
func NewApp(d *Deps, opts AppOptions) *fiber.App {
	bodyLimit := 1 << 20 // 1 MiB
	if d.ProductHandler.MaxUpload+(64<<10) > bodyLimit {
		bodyLimit = d.ProductHandler.MaxUpload + (64 << 10)
	}
	app := fiber.New(fiber.Config{
		AppName:   "shopfront",
		BodyLimit: bodyLimit,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) && fe.Code < fiber.StatusInternalServerError {
				return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
			}
			// Log and show a friendly message
			applog.Error(c, "server.error", err, nil)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": friendlyError})
		},
	})

	// ---------- Middlewares ----------
	app.Use(recover.New())
	app.Use(requestid.New())
	if opts.AccessLog {
		app.Use(logger.New())
	}
	app.Use(helmet.New())
	app.Use(metrics.Middleware())
	if opts.RateLimit >= 0 {
		perMin := opts.RateLimit
		if perMin == 0 {
			perMin = 120
		}
		app.Use(limiter.New(limiter.Config{
			Max:        perMin,
			Expiration: time.Minute,
			Next: func(c *fiber.Ctx) bool {
				p := c.Path()
				return p == "/healthz" || p == "/metrics" || strings.HasPrefix(p, "/media/")
			},
			LimitReached: func(c *fiber.Ctx) error {
				applog.Security(c, "rate.limit.hit", nil)
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limit exceeded, retry soon"})
			},
		}))
	}

	// ---------- Public ----------
	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"ok": true}) })
	app.Get("/metrics", metrics.Handler())
	app.Get("/media/*", d.ProductHandler.Media)

	// ---------- Admin API (staff only) ----------
	api := app.Group("/api/v1", RequireStaff(d.Accounts), attachUser(d.Accounts))

	api.Get("/categories", d.CategoryHandler.List)
	api.Post("/categories", d.CategoryHandler.Create)
	api.Get("/categories/:id", d.CategoryHandler.Get)
	api.Patch("/categories/:id", d.CategoryHandler.Update)
	api.Delete("/categories/:id", d.CategoryHandler.Delete)
	api.Get("/categories/:id/products", d.CategoryHandler.Products)

	api.Get("/products", d.ProductHandler.List)
	api.Post("/products", d.ProductHandler.Create)
	api.Get("/products/:id", d.ProductHandler.Detail)
	api.Patch("/products/:id", d.ProductHandler.Update)
	api.Delete("/products/:id", d.ProductHandler.Delete)
	api.Post("/products/:id/image", d.ProductHandler.UploadImage)
	api.Get("/products/:id/order-items", d.ProductHandler.OrderItems)

	api.Get("/users", d.UserHandler.List)
	api.Post("/users", d.UserHandler.Create)
	api.Get("/users/:id", d.UserHandler.Get)
	api.Patch("/users/:id", d.UserHandler.Update)
	api.Delete("/users/:id", d.UserHandler.Delete)
	api.Get("/users/:id/orders", d.UserHandler.OrderHistory)
	api.Get("/users/:id/profile", d.UserHandler.Profile)
	api.Put("/users/:id/profile", d.UserHandler.SaveProfile)

	api.Post("/profiles", d.UserHandler.CreateProfile)
	api.Get("/profiles/:id", d.UserHandler.GetProfile)
	api.Patch("/profiles/:id", d.UserHandler.UpdateProfile)
	api.Delete("/profiles/:id", d.UserHandler.DeleteProfile)

	api.Post("/orders", d.OrderHandler.Place)
	api.Get("/orders/:id", d.OrderHandler.Detail)
	api.Patch("/orders/:id", d.OrderHandler.Update)
	api.Delete("/orders/:id", d.OrderHandler.Delete)
	api.Get("/orders/:id/items", d.OrderHandler.Items)

	api.Post("/order-items", d.OrderHandler.AddItem)
	api.Get("/order-items/:id", d.OrderHandler.GetItem)
	api.Patch("/order-items/:id", d.OrderHandler.UpdateItem)
	api.Delete("/order-items/:id", d.OrderHandler.DeleteItem)

	// 404
	app.Use(func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not found"})
	})
	return app
}
