package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/dossier-messaging-api/internal/config"
	"github.com/noah-isme/dossier-messaging-api/internal/handler"
	"github.com/noah-isme/dossier-messaging-api/internal/middleware"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	ThreadHandler       *handler.ThreadHandler
	NotificationHandler *handler.NotificationHandler
	DirectoryHandler    *handler.DirectoryHandler
	SeedHandler         *handler.SeedHandler
	// MessageGuards run before a message is posted, typically the rate limiter.
	MessageGuards []fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg))

	messaging := api.Group("/messaging", middleware.Identity())
	if deps.DirectoryHandler != nil {
		deps.DirectoryHandler.Register(messaging)
	}
	if deps.ThreadHandler != nil {
		deps.ThreadHandler.Register(messaging, deps.MessageGuards...)
	}
	if deps.NotificationHandler != nil {
		deps.NotificationHandler.Register(messaging)
	}

	if deps.SeedHandler != nil {
		deps.SeedHandler.Register(api.Group("/tools"))
	}
}
