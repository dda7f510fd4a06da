package helpers

import (
	"errors"

	"casino/apperrors"
	"casino/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func JSONSuccess(c *fiber.Ctx, message string, data any) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func JSONError(c *fiber.Ctx, message string) error {
	return JSONStatus(c, fiber.StatusBadRequest, message)
}

func JSONStatus(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
		"data":    nil,
	})
}

// JSONFail renders a service error. The message is the stable error code;
// infrastructure details are logged, never returned.
func JSONFail(c *fiber.Ctx, err error) error {
	var app *apperrors.Error
	kind := apperrors.KindOf(err)
	if kind == apperrors.KindInfrastructure {
		logger.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return JSONStatus(c, fiber.StatusInternalServerError, "INTERNAL_ERROR")
	}

	body := fiber.Map{
		"success": false,
		"message": apperrors.CodeOf(err),
		"data":    nil,
	}
	if errors.As(err, &app) && app.Message != "" {
		body["error"] = app.Message
	}
	return c.Status(StatusOf(kind)).JSON(body)
}

func StatusOf(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindValidation:
		return fiber.StatusBadRequest
	case apperrors.KindInsufficientFunds:
		return fiber.StatusPaymentRequired
	case apperrors.KindNotFound:
		return fiber.StatusNotFound
	case apperrors.KindConflict:
		return fiber.StatusConflict
	case apperrors.KindForbidden:
		return fiber.StatusForbidden
	}
	return fiber.StatusInternalServerError
}
