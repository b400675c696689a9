package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/dossier-messaging-api/internal/utils"
)

// UserIDHeader carries the acting user. Authentication happens upstream of this API.
const UserIDHeader = "X-User-ID"

// Identity binds the acting user id from the request header to the fiber context.
// Requests without the header reach handlers unauthenticated.
func Identity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if userID := strings.TrimSpace(c.Get(UserIDHeader)); userID != "" {
			c.Locals("user_id", userID)
		}
		return c.Next()
	}
}

// RequireIdentity rejects requests that carry no acting user.
func RequireIdentity() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if UserID(c) == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "missing "+UserIDHeader+" header")
		}
		return c.Next()
	}
}

// UserID returns the acting user bound by Identity, or an empty string.
func UserID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if value, ok := c.Locals("user_id").(string); ok {
		return value
	}
	return ""
}
