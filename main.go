package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"casino/config"
	"casino/controllers/admin"
	"casino/controllers/player"
	"casino/controllers/webhook"
	"casino/database"
	"casino/helpers"
	"casino/jobs"
	"casino/logger"
	"casino/routes"
	"casino/services/batch"
	"casino/services/fairness"
	"casino/services/ledger"
	"casino/services/payment"
	"casino/services/risk"
	"casino/services/round"
	"casino/services/settings"
	"casino/services/withdrawal"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintln(os.Stderr, "load .env:", err)
		os.Exit(1)
	}

	cfg := config.Load()
	logger.Init(logger.Config{Level: cfg.LogLevel, File: cfg.LogFile})
	defer logger.Sync()

	if err := database.Connect(cfg); err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	db := database.DB

	store := settings.NewStore(db, cfg.SettingsTTL)
	snap, err := store.Snapshot(context.Background())
	if err != nil {
		logger.Fatal("load settings failed", zap.Error(err))
	}

	ledgerSvc := ledger.New(db).WithDemoGrant(snap.Payouts.DemoInitialBalance)
	withdrawals := withdrawal.New(db, ledgerSvc, store)
	batches := batch.NewScheduler(db, store)
	monitor := risk.NewMonitor(db, store)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return helpers.JSONStatus(c, e.Code, e.Message)
			}
			return helpers.JSONFail(c, err)
		},
	})
	app.Use(recover.New())
	routes.Setup(app, routes.Handlers{
		Player: &player.Handler{
			Rounds:      round.NewEngine(db, ledgerSvc, store),
			Fairness:    fairness.NewAuditor(db, store),
			Withdrawals: withdrawals,
			Ledger:      ledgerSvc,
		},
		Admin: &admin.Handler{
			Withdrawals: withdrawals,
			Batches:     batches,
			Settings:    store,
			Ledger:      ledgerSvc,
			Risk:        monitor,
		},
		Webhook:       &webhook.Handler{Payments: payment.New(db, ledgerSvc, store)},
		AdminSecret:   cfg.AdminSecret,
		WebhookSecret: cfg.WebhookSecret,
	})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	jobs.Start(ctx, &wg, jobs.Deps{
		Batch:         batches,
		Risk:          monitor,
		BatchEvery:    cfg.BatchEvery,
		VelocityEvery: cfg.VelocityEvery,
		WinCapEvery:   cfg.WinCapEvery,
		Timeout:       cfg.JobTimeout,
	})

	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	logger.Info("server running", zap.String("addr", addr))

	go func() {
		if err := app.Listen(addr); err != nil {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logger.Info("gracefully shutting down")
	cancel()
	if err := app.Shutdown(); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}
	wg.Wait()
	logger.Info("server exited cleanly")
}
