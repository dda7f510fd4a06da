// Package batch groups approved withdrawals into daily payout batches.
package batch

import (
	"context"
	"errors"
	"time"

	"casino/apperrors"
	"casino/logger"
	"casino/metrics"
	"casino/models"
	"casino/services/settings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultHour = 12

type Scheduler struct {
	db       *gorm.DB
	settings settings.Provider
}

func NewScheduler(db *gorm.DB, p settings.Provider) *Scheduler {
	return &Scheduler{db: db, settings: p}
}

// NextTrigger is the first hour:00 UTC strictly after now.
func NextTrigger(now time.Time, hour int) time.Time {
	if hour < 0 || hour > 23 {
		hour = defaultHour
	}
	now = now.UTC()
	t := time.Date(now.Year(), now.Month(), now.Day(), hour, 0, 0, 0, time.UTC)
	if !t.After(now) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// EnsureScheduled makes sure the next daily batch exists. It reports
// whether this call created it.
func (s *Scheduler) EnsureScheduled(ctx context.Context, now time.Time) (*models.WithdrawalBatch, bool, error) {
	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, false, apperrors.Infra(err, "load settings")
	}
	at := NextTrigger(now, snap.Batch.HourUTC)

	db := s.db.WithContext(ctx)
	b := models.WithdrawalBatch{
		PublicID:    uuid.NewString(),
		ScheduledAt: at,
		Status:      models.BatchScheduled,
		TotalNet:    decimal.Zero,
	}
	res := db.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "scheduled_at"}}, DoNothing: true}).Create(&b)
	if res.Error != nil {
		return nil, false, apperrors.Infra(res.Error, "schedule batch")
	}
	if res.RowsAffected > 0 {
		logger.Info("withdrawal batch scheduled", zap.String("batch_id", b.PublicID), zap.Time("scheduled_at", at))
		return &b, true, nil
	}

	var existing models.WithdrawalBatch
	if err := db.Where("scheduled_at = ?", at).First(&existing).Error; err != nil {
		return nil, false, apperrors.Infra(err, "load scheduled batch")
	}
	return &existing, false, nil
}

type RunResult struct {
	Due       int `json:"due"`
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// RunDue processes every batch whose time has come. Batches left in
// processing by an interrupted run are picked up again.
func (s *Scheduler) RunDue(ctx context.Context, now time.Time) (RunResult, error) {
	var due []models.WithdrawalBatch
	err := s.db.WithContext(ctx).
		Where("status IN ? AND scheduled_at <= ?", []string{models.BatchScheduled, models.BatchProcessing}, now.UTC()).
		Order("scheduled_at ASC").Find(&due).Error
	if err != nil {
		return RunResult{}, apperrors.Infra(err, "load due batches")
	}

	out := RunResult{Due: len(due)}
	for _, b := range due {
		if _, err := s.Process(ctx, b.ID); err != nil {
			out.Failed++
			logger.Error("process batch failed", zap.String("batch_id", b.PublicID), zap.Error(err))
			continue
		}
		out.Processed++
	}
	return out, nil
}

// Process claims the batch, assigns every approved unassigned batch-mode
// withdrawal with one conditional update and marks the batch processed.
// Processing an already processed batch returns it unchanged.
func (s *Scheduler) Process(ctx context.Context, id uint) (*models.WithdrawalBatch, error) {
	db := s.db.WithContext(ctx)

	b, err := s.load(db, id)
	if err != nil {
		return nil, err
	}
	if b.Status == models.BatchProcessed {
		return b, nil
	}

	if b.Status == models.BatchScheduled {
		res := db.Model(&models.WithdrawalBatch{}).
			Where("id = ? AND status = ?", id, models.BatchScheduled).
			Update("status", models.BatchProcessing)
		if res.Error != nil {
			return nil, apperrors.Infra(res.Error, "claim batch")
		}
		if res.RowsAffected == 0 {
			if b, err = s.load(db, id); err != nil || b.Status == models.BatchProcessed {
				return b, err
			}
		}
	}

	var assigned int64
	err = db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Withdrawal{}).
			Where("status = ? AND batch_id IS NULL AND processing_mode = ?", models.WithdrawalApproved, models.ModeBatch).
			Updates(map[string]any{
				"batch_id":        id,
				"processing_mode": models.ModeBatched,
				"status":          models.WithdrawalProcessing,
			})
		if res.Error != nil {
			return apperrors.Infra(res.Error, "assign withdrawals")
		}
		assigned = res.RowsAffected

		var totals struct {
			Members int64
			Total   decimal.Decimal
		}
		if err := tx.Model(&models.Withdrawal{}).
			Select("COUNT(*) AS members, COALESCE(SUM(net_amount), 0) AS total").
			Where("batch_id = ?", id).Scan(&totals).Error; err != nil {
			return apperrors.Infra(err, "sum batch")
		}

		now := time.Now().UTC()
		res = tx.Model(&models.WithdrawalBatch{}).
			Where("id = ? AND status = ?", id, models.BatchProcessing).
			Updates(map[string]any{
				"status":       models.BatchProcessed,
				"member_count": totals.Members,
				"total_net":    totals.Total,
				"processed_at": now,
			})
		if res.Error != nil {
			return apperrors.Infra(res.Error, "finish batch")
		}
		if res.RowsAffected == 0 {
			return apperrors.Conflict("BATCH_ALREADY_PROCESSED", "batch was processed concurrently")
		}
		return nil
	})
	if apperrors.CodeOf(err) == "BATCH_ALREADY_PROCESSED" {
		return s.load(db, id)
	}
	if err != nil {
		return nil, apperrors.Infra(err, "process batch")
	}

	metrics.RecordBatchMembers(int(assigned))
	b, err = s.load(db, id)
	if err != nil {
		return nil, err
	}
	logger.Info("withdrawal batch processed",
		zap.String("batch_id", b.PublicID),
		zap.Int("members", b.MemberCount),
		zap.String("total_net", b.TotalNet.String()),
	)
	return b, nil
}

// ForceBatch opens a batch for now and processes it immediately.
func (s *Scheduler) ForceBatch(ctx context.Context, now time.Time) (*models.WithdrawalBatch, error) {
	b := models.WithdrawalBatch{
		PublicID:    uuid.NewString(),
		ScheduledAt: now.UTC(),
		Status:      models.BatchScheduled,
		TotalNet:    decimal.Zero,
	}
	if err := s.db.WithContext(ctx).Create(&b).Error; err != nil {
		return nil, apperrors.Infra(err, "create forced batch")
	}
	return s.Process(ctx, b.ID)
}

func (s *Scheduler) load(db *gorm.DB, id uint) (*models.WithdrawalBatch, error) {
	var b models.WithdrawalBatch
	if err := db.First(&b, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("BATCH_NOT_FOUND", "batch not found")
		}
		return nil, apperrors.Infra(err, "load batch")
	}
	return &b, nil
}

// Get returns the batch with its members.
func (s *Scheduler) Get(ctx context.Context, publicID string) (*models.WithdrawalBatch, error) {
	var b models.WithdrawalBatch
	err := s.db.WithContext(ctx).Preload("Withdrawals", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).Where("public_id = ?", publicID).First(&b).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("BATCH_NOT_FOUND", "batch not found")
		}
		return nil, apperrors.Infra(err, "load batch")
	}
	return &b, nil
}

// ProcessByPublicID resolves a public batch id and processes it.
func (s *Scheduler) ProcessByPublicID(ctx context.Context, publicID string) (*models.WithdrawalBatch, error) {
	var b models.WithdrawalBatch
	if err := s.db.WithContext(ctx).Where("public_id = ?", publicID).First(&b).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("BATCH_NOT_FOUND", "batch not found")
		}
		return nil, apperrors.Infra(err, "load batch")
	}
	return s.Process(ctx, b.ID)
}

func (s *Scheduler) List(ctx context.Context, status string, limit int) ([]models.WithdrawalBatch, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Order("scheduled_at DESC").Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var rows []models.WithdrawalBatch
	if err := q.Find(&rows).Error; err != nil {
		return nil, apperrors.Infra(err, "list batches")
	}
	return rows, nil
}
