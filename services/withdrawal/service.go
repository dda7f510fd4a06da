// Package withdrawal turns payout requests into fee-adjusted withdrawal
// records and drives them through review, batching and settlement.
package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"casino/apperrors"
	"casino/logger"
	"casino/metrics"
	"casino/models"
	"casino/services/ledger"
	"casino/services/settings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const urgentPriority = 10

type Service struct {
	db       *gorm.DB
	ledger   *ledger.Service
	settings settings.Provider
	now      func() time.Time
}

func New(db *gorm.DB, l *ledger.Service, p settings.Provider) *Service {
	return &Service{
		db:       db,
		ledger:   l,
		settings: p,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type Request struct {
	PlayerKey   string
	Amount      decimal.Decimal
	Method      string
	Destination string
	Urgent      bool
}

func (s *Service) Request(ctx context.Context, req Request) (*models.Withdrawal, error) {
	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, apperrors.Infra(err, "load settings")
	}

	req.PlayerKey = strings.TrimSpace(req.PlayerKey)
	req.Method = strings.ToLower(strings.TrimSpace(req.Method))
	req.Destination = strings.TrimSpace(req.Destination)

	fee, ok := snap.Commission.Withdraw[req.Method]
	if !ok || fee.Disabled {
		return nil, apperrors.Validation("UNSUPPORTED_METHOD", "withdrawal method is not supported: "+req.Method)
	}
	if !req.Amount.IsPositive() {
		return nil, apperrors.Validation("INVALID_AMOUNT", "amount must be greater than zero")
	}
	if req.Destination == "" {
		return nil, apperrors.Validation("DESTINATION_REQUIRED", "destination is required")
	}
	if lim, ok := snap.Payouts.CryptoThresholds[req.Method]; ok {
		if lim.Min.IsPositive() && req.Amount.LessThan(lim.Min) {
			return nil, apperrors.Validation("AMOUNT_BELOW_MINIMUM", "minimum withdrawal is "+lim.Min.String())
		}
		if lim.Max.IsPositive() && req.Amount.GreaterThan(lim.Max) {
			return nil, apperrors.Validation("AMOUNT_ABOVE_MAXIMUM", "maximum withdrawal is "+lim.Max.String())
		}
	}
	if req.Urgent && !snap.Payouts.UrgentAllowed {
		return nil, apperrors.Validation("URGENT_NOT_ALLOWED", "urgent withdrawals are disabled")
	}

	fees := ComputeFees(req.Amount, fee, snap.Payouts.UrgentFeePercent, req.Urgent)
	if !fees.Net.IsPositive() {
		return nil, apperrors.Validation("NET_AMOUNT_NOT_POSITIVE", "amount does not cover the fees")
	}

	w := models.Withdrawal{
		PublicID:       uuid.NewString(),
		PlayerKey:      req.PlayerKey,
		Method:         req.Method,
		Amount:         req.Amount,
		PlatformFee:    fees.Platform,
		ProviderFee:    fees.Provider,
		NetAmount:      fees.Net,
		Destination:    req.Destination,
		Status:         models.WithdrawalPending,
		ProcessingMode: models.ModeBatch,
		IsUrgent:       req.Urgent,
		KYCRequired:    thresholdReached(req.Amount, snap.Payouts.KYCThreshold),
	}
	if req.Urgent {
		w.ProcessingMode = models.ModeUrgent
		w.Priority = urgentPriority
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		player, err := s.ledger.RequirePlayableTx(tx, req.PlayerKey)
		if err != nil {
			return err
		}
		w.PlayerID = player.ID
		w.RequiresReview = player.Status == models.PlayerLimited ||
			(!player.IsTrusted && thresholdReached(req.Amount, snap.Payouts.ManualReviewThreshold))

		if _, err := s.ledger.DebitTx(tx, ledger.Entry{
			PlayerKey: req.PlayerKey,
			Wallet:    models.WalletReal,
			Amount:    req.Amount,
			Reason:    ledger.ReasonWithdraw,
			RefID:     "withdrawal:" + w.PublicID + ":debit",
		}); err != nil {
			return err
		}
		if err := tx.Create(&w).Error; err != nil {
			return apperrors.Infra(err, "create withdrawal")
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.Infra(err, "request withdrawal")
	}

	metrics.RecordWithdrawal(w.Method, w.ProcessingMode)
	logger.Info("withdrawal requested",
		zap.String("withdrawal_id", w.PublicID),
		zap.String("player", w.PlayerKey),
		zap.String("method", w.Method),
		zap.String("amount", w.Amount.String()),
		zap.String("mode", w.ProcessingMode),
		zap.Bool("requires_review", w.RequiresReview),
	)
	return &w, nil
}

func thresholdReached(amount, threshold decimal.Decimal) bool {
	return threshold.IsPositive() && amount.GreaterThanOrEqual(threshold)
}

// Transition moves a withdrawal along the allowed set. Rejected and failed
// withdrawals are refunded in the same transaction.
func (s *Service) Transition(ctx context.Context, publicID, to, note, actor string) (*models.Withdrawal, error) {
	return s.move(ctx, publicID, to, note, actor, false)
}

// Override forces any status, including backwards moves. Money only moves when
// the withdrawal crosses between held and refunded states: leaving rejected or
// failed debits the gross amount again, entering them refunds it.
func (s *Service) Override(ctx context.Context, publicID, to, note, actor string) (*models.Withdrawal, error) {
	return s.move(ctx, publicID, to, note, actor, true)
}

func (s *Service) move(ctx context.Context, publicID, to, note, actor string, force bool) (*models.Withdrawal, error) {
	to = strings.ToLower(strings.TrimSpace(to))
	if !validStatus(to) {
		return nil, apperrors.Validation("INVALID_STATUS", "unknown withdrawal status: "+to)
	}

	var w models.Withdrawal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("public_id = ?", publicID).First(&w).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("WITHDRAWAL_NOT_FOUND", "withdrawal not found")
			}
			return apperrors.Infra(err, "lock withdrawal")
		}
		from := w.Status
		if !force && !CanTransition(from, to) {
			return apperrors.Validation("INVALID_TRANSITION", fmt.Sprintf("cannot move withdrawal from %s to %s", from, to))
		}

		now := s.now()
		verb := "transition"
		if force {
			verb = "override"
		}
		entry := fmt.Sprintf("[%s] %s %s %s->%s", now.Format(time.RFC3339), actor, verb, from, to)
		if note = strings.TrimSpace(note); note != "" {
			entry += ": " + note
		}
		if w.Note != "" {
			entry = w.Note + "\n" + entry
		}

		updates := map[string]any{
			"status":      to,
			"note":        entry,
			"reviewed_by": actor,
		}
		if to == models.WithdrawalPaid || refunds(to) {
			updates["processed_at"] = now
		}
		res := tx.Model(&models.Withdrawal{}).Where("id = ? AND status = ?", w.ID, from).Updates(updates)
		if res.Error != nil {
			return apperrors.Infra(res.Error, "update withdrawal")
		}
		if res.RowsAffected == 0 {
			return apperrors.Conflict("WITHDRAWAL_CHANGED", "withdrawal status changed concurrently")
		}

		if err := s.settleHold(tx, &w, from, to); err != nil {
			return err
		}
		return tx.Where("id = ?", w.ID).First(&w).Error
	})
	if err != nil {
		return nil, apperrors.Infra(err, "move withdrawal")
	}

	logger.Info("withdrawal status changed",
		zap.String("withdrawal_id", w.PublicID),
		zap.String("status", w.Status),
		zap.String("actor", actor),
		zap.Bool("override", force),
	)
	return &w, nil
}

// settleHold keeps the wallet in line with the status: the gross amount is
// held while the withdrawal is live and returned while it is rejected or
// failed. Every reopen starts a new cycle so refs stay unique.
func (s *Service) settleHold(tx *gorm.DB, w *models.Withdrawal, from, to string) error {
	if refunds(from) == refunds(to) {
		return nil
	}
	prefix := "withdrawal:" + w.PublicID + ":reopen:"
	var reopens int64
	if err := tx.Model(&models.Transaction{}).Where("ref_id LIKE ?", prefix+"%").Count(&reopens).Error; err != nil {
		return apperrors.Infra(err, "count withdrawal reopens")
	}

	if refunds(to) {
		ref := "withdrawal:" + w.PublicID + ":refund"
		if reopens > 0 {
			ref = fmt.Sprintf("%s:%d", ref, reopens)
		}
		_, err := s.ledger.CreditTx(tx, ledger.Entry{
			PlayerKey: w.PlayerKey,
			Wallet:    models.WalletReal,
			Amount:    w.Amount,
			Reason:    ledger.ReasonRefund,
			RefID:     ref,
		})
		return err
	}
	_, err := s.ledger.DebitTx(tx, ledger.Entry{
		PlayerKey: w.PlayerKey,
		Wallet:    models.WalletReal,
		Amount:    w.Amount,
		Reason:    ledger.ReasonWithdraw,
		RefID:     fmt.Sprintf("%s%d", prefix, reopens+1),
	})
	return err
}

func (s *Service) Get(ctx context.Context, publicID string) (*models.Withdrawal, error) {
	var w models.Withdrawal
	if err := s.db.WithContext(ctx).Where("public_id = ?", publicID).First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("WITHDRAWAL_NOT_FOUND", "withdrawal not found")
		}
		return nil, apperrors.Infra(err, "load withdrawal")
	}
	return &w, nil
}

type Filter struct {
	Status    string
	PlayerKey string
	Mode      string
	BatchID   *uint
	Limit     int
	Offset    int
}

// List returns one page ordered by priority, oldest first, plus the total
// number of matches.
func (s *Service) List(ctx context.Context, f Filter) ([]models.Withdrawal, int64, error) {
	q := s.db.WithContext(ctx).Model(&models.Withdrawal{})
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.PlayerKey != "" {
		q = q.Where("player_key = ?", f.PlayerKey)
	}
	if f.Mode != "" {
		q = q.Where("processing_mode = ?", f.Mode)
	}
	if f.BatchID != nil {
		q = q.Where("batch_id = ?", *f.BatchID)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, apperrors.Infra(err, "count withdrawals")
	}

	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	var rows []models.Withdrawal
	if err := q.Order("priority DESC, id ASC").Limit(f.Limit).Offset(f.Offset).Find(&rows).Error; err != nil {
		return nil, 0, apperrors.Infra(err, "list withdrawals")
	}
	return rows, total, nil
}
