// Package risk screens recent play for abuse. Sweeps only append RiskEvents
// and may demote a player's status; balances are never touched here.
package risk

import (
	"context"
	"fmt"
	"time"

	"casino/apperrors"
	"casino/logger"
	"casino/models"
	"casino/services/settings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Monitor struct {
	db       *gorm.DB
	settings settings.Provider
	record   func(tx *gorm.DB, ev Event) (bool, error)
}

func NewMonitor(db *gorm.DB, p settings.Provider) *Monitor {
	return &Monitor{db: db, settings: p, record: Record}
}

type SweepResult struct {
	Checked int `json:"checked"`
	Flagged int `json:"flagged"`
	Failed  int `json:"failed"`
}

type activity struct {
	PlayerID  uint
	PlayerKey string
	Count     int64
}

// VelocitySweep flags players who started more than the configured number
// of rounds inside the trailing window.
func (m *Monitor) VelocitySweep(ctx context.Context, now time.Time) (SweepResult, error) {
	snap, err := m.settings.Snapshot(ctx)
	if err != nil {
		return SweepResult{}, apperrors.Infra(err, "load settings")
	}
	cfg := snap.AntiFraud
	if !cfg.VelocityEnabled || cfg.VelocityWindowSeconds <= 0 {
		return SweepResult{}, nil
	}

	now = now.UTC()
	var rows []activity
	err = m.db.WithContext(ctx).Model(&models.GameRound{}).
		Select("player_id, player_key, COUNT(*) AS count").
		Where("created_at >= ?", now.Add(-cfg.VelocityWindow())).
		Group("player_id, player_key").
		Having("COUNT(*) > ?", cfg.VelocityThreshold).
		Scan(&rows).Error
	if err != nil {
		return SweepResult{}, apperrors.Infra(err, "count player activity")
	}

	bucket := now.Unix() / int64(cfg.VelocityWindowSeconds)
	var out SweepResult
	for _, row := range rows {
		out.Checked++
		ev := Event{
			PlayerID:  row.PlayerID,
			PlayerKey: row.PlayerKey,
			Type:      models.RiskVelocity,
			Severity:  models.SeverityMedium,
			Payload: map[string]any{
				"windowSeconds": cfg.VelocityWindowSeconds,
				"threshold":     cfg.VelocityThreshold,
				"count":         row.Count,
			},
			DedupKey: fmt.Sprintf("velocity:%s:%d", row.PlayerKey, bucket),
		}
		created, err := m.record(m.db.WithContext(ctx), ev)
		if err != nil {
			out.Failed++
			logger.Error("velocity flag failed", zap.String("player", row.PlayerKey), zap.Error(err))
			continue
		}
		if created {
			out.Flagged++
		}
	}
	logger.Info("velocity sweep done", zap.Int("checked", out.Checked), zap.Int("flagged", out.Flagged), zap.Int("failed", out.Failed))
	return out, nil
}

type profitRow struct {
	PlayerID  uint
	PlayerKey string
	Won       decimal.Decimal
	Wagered   decimal.Decimal
}

// WinCapSweep flags players whose net real-wallet profit over the last day
// exceeds the cap and escalates their status.
func (m *Monitor) WinCapSweep(ctx context.Context, now time.Time) (SweepResult, error) {
	snap, err := m.settings.Snapshot(ctx)
	if err != nil {
		return SweepResult{}, apperrors.Infra(err, "load settings")
	}
	cfg := snap.AntiFraud
	if !cfg.WinCapEnabled || !cfg.DailyWinCap.IsPositive() {
		return SweepResult{}, nil
	}
	escalateTo := cfg.EscalateTo
	if !models.ValidPlayerStatus(escalateTo) {
		escalateTo = models.PlayerLimited
	}

	now = now.UTC()
	var rows []profitRow
	err = m.db.WithContext(ctx).Model(&models.GameRound{}).
		Select("player_id, player_key, COALESCE(SUM(win_amount), 0) AS won, COALESCE(SUM(final_bet), 0) AS wagered").
		Where("status = ? AND wallet = ? AND finished_at >= ?", models.RoundFinished, models.WalletReal, now.Add(-24*time.Hour)).
		Group("player_id, player_key").
		Scan(&rows).Error
	if err != nil {
		return SweepResult{}, apperrors.Infra(err, "sum player profit")
	}

	day := now.Format("2006-01-02")
	var out SweepResult
	for _, row := range rows {
		out.Checked++
		profit := row.Won.Sub(row.Wagered)
		if !profit.GreaterThan(cfg.DailyWinCap) {
			continue
		}
		created, err := m.flagWinCap(ctx, row, profit, cfg.DailyWinCap, escalateTo, day)
		if err != nil {
			out.Failed++
			logger.Error("win cap flag failed", zap.String("player", row.PlayerKey), zap.Error(err))
			continue
		}
		if created {
			out.Flagged++
		}
	}
	logger.Info("win cap sweep done", zap.Int("checked", out.Checked), zap.Int("flagged", out.Flagged), zap.Int("failed", out.Failed))
	return out, nil
}

func (m *Monitor) flagWinCap(ctx context.Context, row profitRow, profit, limit decimal.Decimal, escalateTo, day string) (bool, error) {
	var created bool
	err := m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = m.record(tx, Event{
			PlayerID:  row.PlayerID,
			PlayerKey: row.PlayerKey,
			Type:      models.RiskDailyWinCap,
			Severity:  models.SeverityHigh,
			Payload: map[string]any{
				"profit":     profit.String(),
				"cap":        limit.String(),
				"escalateTo": escalateTo,
			},
			DedupKey: fmt.Sprintf("daily_win_cap:%s:%s", row.PlayerKey, day),
		})
		if err != nil {
			return err
		}
		res := tx.Model(&models.Player{}).
			Where("id = ? AND is_trusted = ? AND status NOT IN ?", row.PlayerID, false,
				[]string{models.PlayerSuspended, models.PlayerBanned, models.PlayerLimited}).
			Updates(map[string]any{"status": escalateTo, "status_note": "daily win cap exceeded"})
		if res.Error != nil {
			return apperrors.Infra(res.Error, "escalate player")
		}
		if res.RowsAffected > 0 {
			logger.Warn("player escalated", zap.String("player", row.PlayerKey), zap.String("status", escalateTo))
		}
		return nil
	})
	return created, err
}

func (m *Monitor) Events(ctx context.Context, playerKey string, limit int) ([]models.RiskEvent, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	q := m.db.WithContext(ctx).Order("id DESC").Limit(limit)
	if playerKey != "" {
		q = q.Where("player_key = ?", playerKey)
	}
	var rows []models.RiskEvent
	if err := q.Find(&rows).Error; err != nil {
		return nil, apperrors.Infra(err, "list risk events")
	}
	return rows, nil
}
