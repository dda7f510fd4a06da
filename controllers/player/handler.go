package player

import (
	"time"

	"casino/helpers"
	"casino/middlewares"
	"casino/services/fairness"
	"casino/services/ledger"
	"casino/services/round"
	"casino/services/withdrawal"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type Handler struct {
	Rounds      *round.Engine
	Fairness    *fairness.Auditor
	Withdrawals *withdrawal.Service
	Ledger      *ledger.Service
}

type StartRoundRequest struct {
	BetAmount  decimal.Decimal `json:"betAmount"`
	WalletType string          `json:"walletType"`
}

type RoundRequest struct {
	RoundID string `json:"roundId"`
}

func (h *Handler) StartRound(c *fiber.Ctx) error {
	var req StartRoundRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}
	v, err := h.Rounds.Start(c.UserContext(), round.StartRequest{
		PlayerKey: middlewares.PlayerKey(c),
		Wallet:    req.WalletType,
		Bet:       req.BetAmount,
	})
	if err != nil {
		return helpers.JSONFail(c, err)
	}
	return helpers.JSONSuccess(c, "Round started", v)
}

func (h *Handler) roundAction(c *fiber.Ctx, message string, fn func(playerKey, roundID string) (*round.View, error)) error {
	var req RoundRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}
	if req.RoundID == "" {
		return helpers.JSONError(c, "ROUND_ID_REQUIRED")
	}
	v, err := fn(middlewares.PlayerKey(c), req.RoundID)
	if err != nil {
		return helpers.JSONFail(c, err)
	}
	if v.Message != "" {
		message = v.Message
	}
	return helpers.JSONSuccess(c, message, v)
}

func (h *Handler) Hit(c *fiber.Ctx) error {
	return h.roundAction(c, "Card dealt", func(key, id string) (*round.View, error) {
		return h.Rounds.Hit(c.UserContext(), key, id)
	})
}

func (h *Handler) Double(c *fiber.Ctx) error {
	return h.roundAction(c, "Bet doubled", func(key, id string) (*round.View, error) {
		return h.Rounds.Double(c.UserContext(), key, id)
	})
}

func (h *Handler) Settle(c *fiber.Ctx) error {
	return h.roundAction(c, "Round settled", func(key, id string) (*round.View, error) {
		return h.Rounds.Settle(c.UserContext(), key, id)
	})
}

func (h *Handler) GetRound(c *fiber.Ctx) error {
	v, err := h.Rounds.Get(c.UserContext(), middlewares.PlayerKey(c), c.Params("id"))
	if err != nil {
		return helpers.JSONFail(c, err)
	}
	return helpers.JSONSuccess(c, "Round retrieved", v)
}

func (h *Handler) FairnessReport(c *fiber.Ctx) error {
	rep, err := h.Fairness.Report(c.UserContext(), time.Now())
	if err != nil {
		return helpers.JSONFail(c, err)
	}
	return helpers.JSONSuccess(c, "Fairness report", rep)
}

func (h *Handler) VerifyRound(c *fiber.Ctx) error {
	proof, err := h.Fairness.VerifyRound(c.UserContext(), c.Params("id"))
	if err != nil {
		return helpers.JSONFail(c, err)
	}
	return helpers.JSONSuccess(c, "Round verified", proof)
}

func (h *Handler) Balance(c *fiber.Ctx) error {
	b, err := h.Ledger.EnsurePlayer(c.UserContext(), middlewares.PlayerKey(c))
	if err != nil {
		return helpers.JSONFail(c, err)
	}
	return helpers.JSONSuccess(c, "Balance retrieved successfully", b)
}

func (h *Handler) Transactions(c *fiber.Ctx) error {
	rows, err := h.Ledger.History(c.UserContext(), middlewares.PlayerKey(c), c.QueryInt("limit", 50))
	if err != nil {
		return helpers.JSONFail(c, err)
	}
	return helpers.JSONSuccess(c, "Transactions retrieved", rows)
}
