package admin

import (
	"time"

	"casino/helpers"
	"casino/middlewares"
	"casino/services/batch"
	"casino/services/ledger"
	"casino/services/risk"
	"casino/services/settings"
	"casino/services/withdrawal"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	Withdrawals *withdrawal.Service
	Batches     *batch.Scheduler
	Settings    *settings.Store
	Ledger      *ledger.Service
	Risk        *risk.Monitor
}

type StatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

func (h *Handler) ListWithdrawals(c *fiber.Ctx) error {
	f := withdrawal.Filter{
		Status:    c.Query("status"),
		PlayerKey: c.Query("player"),
		Mode:      c.Query("mode"),
		Limit:     c.QueryInt("limit", 50),
		Offset:    c.QueryInt("offset", 0),
	}
	if id := c.QueryInt("batch", 0); id > 0 {
		batchID := uint(id)
		f.BatchID = &batchID
	}
	rows, total, err := h.Withdrawals.List(c.UserContext(), f)
	if err != nil {
		return helpers.JSONFail(c, err)
	}
	return helpers.JSONSuccess(c, "Withdrawals retrieved", fiber.Map{"items": rows, "total": total})
}

func (h *Handler) GetWithdrawal(c *fiber.Ctx) error {
	w, err := h.Withdrawals.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return helpers.JSONFail(c, err)
	}
	return helpers.JSONSuccess(c, "Withdrawal retrieved", w)
}

func (h *Handler) TransitionWithdrawal(c *fiber.Ctx) error {
	var req StatusRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}
	w, err := h.Withdrawals.Transition(c.UserContext(), c.Params("id"), req.Status, req.Note, middlewares.Admin(c))
	if err != nil {
		return helpers.JSONFail(c, err)
	}
	return helpers.JSONSuccess(c, "Withdrawal "+w.Status, w)
}

func (h *Handler) OverrideWithdrawal(c *fiber.Ctx) error {
	var req StatusRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}
	if req.Note == "" {
		return helpers.JSONError(c, "NOTE_REQUIRED")
	}
	w, err := h.Withdrawals.Override(c.UserContext(), c.Params("id"), req.Status, req.Note, middlewares.Admin(c))
	if err != nil {
		return helpers.JSONFail(c, err)
	}
	return helpers.JSONSuccess(c, "Withdrawal overridden to "+w.Status, w)
}

func (h *Handler) ForceBatch(c *fiber.Ctx) error {
	b, err := h.Batches.ForceBatch(c.UserContext(), time.Now())
	if err != nil {
		return helpers.JSONFail(c, err)
	}
	return helpers.JSONSuccess(c, "Batch processed", b)
}

func (h *Handler) ProcessBatch(c *fiber.Ctx) error {
	b, err := h.Batches.ProcessByPublicID(c.UserContext(), c.Params("id"))
	if err != nil {
		return helpers.JSONFail(c, err)
	}
	return helpers.JSONSuccess(c, "Batch processed", b)
}

func (h *Handler) ListBatches(c *fiber.Ctx) error {
	rows, err := h.Batches.List(c.UserContext(), c.Query("status"), c.QueryInt("limit", 50))
	if err != nil {
		return helpers.JSONFail(c, err)
	}
	return helpers.JSONSuccess(c, "Batches retrieved", rows)
}

func (h *Handler) GetBatch(c *fiber.Ctx) error {
	b, err := h.Batches.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return helpers.JSONFail(c, err)
	}
	return helpers.JSONSuccess(c, "Batch retrieved", b)
}
