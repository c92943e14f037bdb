package middleware

import (
	"crypto/subtle"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// RayID assigns every request a unique id, stored in Locals under "ray_id"
// and echoed in the X-Ray-Id response header. Inbound ids are trusted so a
// caller's tracing id survives the hop.
func RayID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		rid := c.Get("X-Ray-Id")
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Locals("ray_id", rid)
		c.Set("X-Ray-Id", rid)
		return c.Next()
	}
}

// Auth validates the X-Api-Key header against the configured key. An empty
// configured key disables authentication.
func Auth(apiKey string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if apiKey == "" {
			return c.Next()
		}
		provided := c.Get("X-Api-Key")
		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "invalid api key",
			})
		}
		return c.Next()
	}
}
