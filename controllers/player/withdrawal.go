package player

import (
	"casino/helpers"
	"casino/middlewares"
	"casino/services/withdrawal"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type WithdrawalRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method"`
	Destination string          `json:"destination"`
	IsUrgent    bool            `json:"isUrgent"`
}

func (h *Handler) RequestWithdrawal(c *fiber.Ctx) error {
	var req WithdrawalRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}
	w, err := h.Withdrawals.Request(c.UserContext(), withdrawal.Request{
		PlayerKey:   middlewares.PlayerKey(c),
		Amount:      req.Amount,
		Method:      req.Method,
		Destination: req.Destination,
		Urgent:      req.IsUrgent,
	})
	if err != nil {
		return helpers.JSONFail(c, err)
	}
	return helpers.JSONSuccess(c, "Withdrawal requested", w)
}

func (h *Handler) ListWithdrawals(c *fiber.Ctx) error {
	rows, total, err := h.Withdrawals.List(c.UserContext(), withdrawal.Filter{
		PlayerKey: middlewares.PlayerKey(c),
		Status:    c.Query("status"),
		Limit:     c.QueryInt("limit", 20),
		Offset:    c.QueryInt("offset", 0),
	})
	if err != nil {
		return helpers.JSONFail(c, err)
	}
	return helpers.JSONSuccess(c, "Withdrawals retrieved", fiber.Map{"items": rows, "total": total})
}
