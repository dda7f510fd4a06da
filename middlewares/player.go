package middlewares

import (
	"strings"

	"casino/helpers"

	"github.com/gofiber/fiber/v2"
)

// PlayerAuth trusts the identity already verified upstream and exposes it as
// the "player_key" local.
func PlayerAuth(c *fiber.Ctx) error {
	key := strings.TrimSpace(c.Get("X-Player-Key"))
	if key == "" || len(key) > 64 {
		return helpers.JSONStatus(c, fiber.StatusUnauthorized, "PLAYER_KEY_REQUIRED")
	}
	c.Locals("player_key", key)
	return c.Next()
}

func PlayerKey(c *fiber.Ctx) string {
	key, _ := c.Locals("player_key").(string)
	return key
}
