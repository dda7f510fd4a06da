package routes

import (
	"casino/controllers/admin"
	"casino/controllers/player"
	"casino/controllers/webhook"
	"casino/middlewares"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Player  *player.Handler
	Admin   *admin.Handler
	Webhook *webhook.Handler

	AdminSecret   string
	WebhookSecret string
}

func Setup(app *fiber.App, h Handlers) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// player
	roundroutes := app.Group("/round", middlewares.PlayerAuth)
	roundroutes.Post("/start", h.Player.StartRound)
	roundroutes.Post("/hit", h.Player.Hit)
	roundroutes.Post("/double", h.Player.Double)
	roundroutes.Post("/settle", h.Player.Settle)
	roundroutes.Get("/:id", h.Player.GetRound)

	app.Get("/fairness", h.Player.FairnessReport)
	app.Get("/fairness/rounds/:id", h.Player.VerifyRound)

	app.Get("/balance", middlewares.PlayerAuth, h.Player.Balance)
	app.Get("/transactions", middlewares.PlayerAuth, h.Player.Transactions)
	app.Post("/withdrawals", middlewares.PlayerAuth, h.Player.RequestWithdrawal)
	app.Get("/withdrawals", middlewares.PlayerAuth, h.Player.ListWithdrawals)

	// admin
	adminroutes := app.Group("/admin", middlewares.AdminAuth(h.AdminSecret))
	adminroutes.Get("/withdrawals", h.Admin.ListWithdrawals)
	adminroutes.Get("/withdrawals/:id", h.Admin.GetWithdrawal)
	adminroutes.Post("/withdrawals/:id/status", h.Admin.TransitionWithdrawal)
	adminroutes.Post("/withdrawals/:id/override", h.Admin.OverrideWithdrawal)
	adminroutes.Get("/batches", h.Admin.ListBatches)
	adminroutes.Post("/batches/force", h.Admin.ForceBatch)
	adminroutes.Get("/batches/:id", h.Admin.GetBatch)
	adminroutes.Post("/batches/:id/process", h.Admin.ProcessBatch)
	adminroutes.Get("/settings", h.Admin.GetSettings)
	adminroutes.Put("/settings/:key", h.Admin.PutSetting)
	adminroutes.Post("/players/:key/status", h.Admin.SetPlayerStatus)
	adminroutes.Post("/players/:key/trusted", h.Admin.SetPlayerTrusted)
	adminroutes.Get("/risk-events", h.Admin.RiskEvents)
	adminroutes.Post("/risk/sweeps/:name", h.Admin.RunSweep)

	// providers
	app.Post("/webhooks/payments/:provider", middlewares.WebhookAuth(h.WebhookSecret), h.Webhook.Deposit)
}
