package webhook

import (
	"casino/helpers"
	"casino/services/payment"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type Handler struct {
	Payments *payment.Service
}

type DepositNotification struct {
	Reference string          `json:"reference"`
	PlayerKey string          `json:"playerKey"`
	Method    string          `json:"method"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
}

// Deposit acknowledges every delivery it has already applied so providers
// stop retrying.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req DepositNotification
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}
	if req.Status != "" && req.Status != "paid" && req.Status != "completed" {
		return helpers.JSONSuccess(c, "Ignored", fiber.Map{"reference": req.Reference, "status": req.Status})
	}

	res, err := h.Payments.ApplyDeposit(c.UserContext(), payment.Deposit{
		Provider:  c.Params("provider"),
		Reference: req.Reference,
		PlayerKey: req.PlayerKey,
		Method:    req.Method,
		Amount:    req.Amount,
		Payload:   append([]byte(nil), c.Body()...),
	})
	if err != nil {
		return helpers.JSONFail(c, err)
	}
	if res.Replayed {
		return helpers.JSONSuccess(c, "Already processed", res)
	}
	return helpers.JSONSuccess(c, "Deposit credited", res)
}
