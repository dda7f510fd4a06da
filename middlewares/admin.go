package middlewares

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"

	"casino/helpers"

	"github.com/gofiber/fiber/v2"
)

const signatureMaxSkew = 5 * time.Minute

// Sign is the signature admin clients must send: hex HMAC-SHA256 keyed by the
// shared secret over timestamp, method, path and body.
func Sign(secret, timestamp, method, path string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(timestamp + "\n" + method + "\n" + path + "\n"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func AdminAuth(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if secret == "" {
			return helpers.JSONStatus(c, fiber.StatusServiceUnavailable, "ADMIN_DISABLED")
		}

		actor := c.Get("X-Admin-Id")
		ts := c.Get("X-Admin-Timestamp")
		sig := c.Get("X-Admin-Signature")
		if actor == "" || ts == "" || sig == "" {
			return helpers.JSONStatus(c, fiber.StatusUnauthorized, "ADMIN_SIGNATURE_REQUIRED")
		}

		unix, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return helpers.JSONStatus(c, fiber.StatusUnauthorized, "INVALID_TIMESTAMP")
		}
		if skew := time.Since(time.Unix(unix, 0)); skew > signatureMaxSkew || skew < -signatureMaxSkew {
			return helpers.JSONStatus(c, fiber.StatusUnauthorized, "SIGNATURE_EXPIRED")
		}

		expected := Sign(secret, ts, c.Method(), c.Path(), c.Body())
		if !hmac.Equal([]byte(sig), []byte(expected)) {
			return helpers.JSONStatus(c, fiber.StatusUnauthorized, "INVALID_SIGNATURE")
		}

		c.Locals("admin", actor)
		return c.Next()
	}
}

func Admin(c *fiber.Ctx) string {
	actor, _ := c.Locals("admin").(string)
	return actor
}
