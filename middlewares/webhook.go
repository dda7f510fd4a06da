package middlewares

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"

	"casino/helpers"

	"github.com/gofiber/fiber/v2"
)

// WebhookAuth checks X-Signature, a hex HMAC-SHA256 of the raw body.
func WebhookAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return helpers.JSONStatus(c, fiber.StatusServiceUnavailable, "WEBHOOK_DISABLED")
		}
		h := hmac.New(sha256.New, []byte(secret))
		h.Write(c.Body())
		expected := hex.EncodeToString(h.Sum(nil))

		if !hmac.Equal([]byte(c.Get("X-Signature")), []byte(expected)) {
			return helpers.JSONStatus(c, fiber.StatusUnauthorized, "INVALID_SIGNATURE")
		}
		return c.Next()
	}
}
