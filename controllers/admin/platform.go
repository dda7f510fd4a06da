package admin

import (
	"encoding/json"
	"time"

	"casino/helpers"

	"github.com/gofiber/fiber/v2"
)

func (h *Handler) GetSettings(c *fiber.Ctx) error {
	snap, err := h.Settings.Snapshot(c.UserContext())
	if err != nil {
		return helpers.JSONFail(c, err)
	}
	return helpers.JSONSuccess(c, "Settings retrieved", snap)
}

func (h *Handler) PutSetting(c *fiber.Ctx) error {
	body := c.Body()
	if !json.Valid(body) {
		return helpers.JSONError(c, "INVALID_JSON")
	}
	key := c.Params("key")
	if err := h.Settings.Put(c.UserContext(), key, json.RawMessage(append([]byte(nil), body...))); err != nil {
		return helpers.JSONFail(c, err)
	}
	return helpers.JSONSuccess(c, "Setting updated", fiber.Map{"key": key})
}

type PlayerStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

func (h *Handler) SetPlayerStatus(c *fiber.Ctx) error {
	var req PlayerStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}
	p, err := h.Ledger.SetStatus(c.UserContext(), c.Params("key"), req.Status, req.Note)
	if err != nil {
		return helpers.JSONFail(c, err)
	}
	return helpers.JSONSuccess(c, "Player status updated", p)
}

type TrustedRequest struct {
	Trusted bool `json:"trusted"`
}

func (h *Handler) SetPlayerTrusted(c *fiber.Ctx) error {
	var req TrustedRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}
	p, err := h.Ledger.SetTrusted(c.UserContext(), c.Params("key"), req.Trusted)
	if err != nil {
		return helpers.JSONFail(c, err)
	}
	return helpers.JSONSuccess(c, "Player trust updated", p)
}

func (h *Handler) RiskEvents(c *fiber.Ctx) error {
	rows, err := h.Risk.Events(c.UserContext(), c.Query("player"), c.QueryInt("limit", 100))
	if err != nil {
		return helpers.JSONFail(c, err)
	}
	return helpers.JSONSuccess(c, "Risk events retrieved", rows)
}

// RunSweep triggers one risk sweep by name outside its schedule.
func (h *Handler) RunSweep(c *fiber.Ctx) error {
	ctx := c.UserContext()
	switch c.Params("name") {
	case "velocity":
		res, err := h.Risk.VelocitySweep(ctx, time.Now())
		if err != nil {
			return helpers.JSONFail(c, err)
		}
		return helpers.JSONSuccess(c, "Velocity sweep done", res)
	case "win-cap":
		res, err := h.Risk.WinCapSweep(ctx, time.Now())
		if err != nil {
			return helpers.JSONFail(c, err)
		}
		return helpers.JSONSuccess(c, "Win cap sweep done", res)
	}
	return helpers.JSONStatus(c, fiber.StatusNotFound, "UNKNOWN_SWEEP")
}
