// Package payment applies provider deposit notifications to the ledger.
// Delivery is at-least-once; (provider, reference) is the dedup boundary.
package payment

import (
	"context"
	"encoding/json"
	"strings"

	"casino/apperrors"
	"casino/logger"
	"casino/models"
	"casino/services/ledger"
	"casino/services/settings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db       *gorm.DB
	ledger   *ledger.Service
	settings settings.Provider
}

func New(db *gorm.DB, l *ledger.Service, p settings.Provider) *Service {
	return &Service{db: db, ledger: l, settings: p}
}

type Deposit struct {
	Provider  string
	Reference string
	PlayerKey string
	Method    string
	Amount    decimal.Decimal
	Payload   json.RawMessage
}

type Result struct {
	Reference string           `json:"reference"`
	Credited  decimal.Decimal  `json:"credited"`
	Fee       decimal.Decimal  `json:"fee"`
	Replayed  bool             `json:"replayed"`
	Balances  *ledger.Balances `json:"balances,omitempty"`
}

// ApplyDeposit records the notification and credits the real wallet, net of
// the configured deposit commission. A replay succeeds without crediting.
func (s *Service) ApplyDeposit(ctx context.Context, d Deposit) (*Result, error) {
	d.Provider = strings.ToLower(strings.TrimSpace(d.Provider))
	d.Reference = strings.TrimSpace(d.Reference)
	d.PlayerKey = strings.TrimSpace(d.PlayerKey)
	d.Method = strings.ToLower(strings.TrimSpace(d.Method))
	if d.Method == "" {
		d.Method = d.Provider
	}
	if d.Provider == "" || d.Reference == "" {
		return nil, apperrors.Validation("REFERENCE_REQUIRED", "provider and reference are required")
	}
	if d.PlayerKey == "" {
		return nil, apperrors.Validation("PLAYER_REQUIRED", "player key is required")
	}
	if !d.Amount.IsPositive() {
		return nil, apperrors.Validation("INVALID_AMOUNT", "amount must be greater than zero")
	}

	snap, err := s.settings.Snapshot(ctx)
	if err != nil {
		return nil, apperrors.Infra(err, "load settings")
	}
	fee := d.Amount.Mul(snap.Commission.Deposit[d.Method]).Round(2)
	credited := d.Amount.Sub(fee)
	if !credited.IsPositive() {
		return nil, apperrors.Validation("NET_AMOUNT_NOT_POSITIVE", "deposit does not cover the commission")
	}

	payload := datatypes.JSON(d.Payload)
	if len(payload) == 0 {
		payload = datatypes.JSON("{}")
	}
	out := &Result{Reference: d.Reference, Credited: credited, Fee: fee}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ev := models.PaymentEvent{
			Provider:  d.Provider,
			Reference: d.Reference,
			PlayerKey: d.PlayerKey,
			Method:    d.Method,
			Amount:    d.Amount,
			Fee:       fee,
			Credited:  credited,
			Payload:   payload,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider"}, {Name: "reference"}},
			DoNothing: true,
		}).Create(&ev)
		if res.Error != nil {
			return apperrors.Infra(res.Error, "record payment event")
		}
		if res.RowsAffected == 0 {
			out.Replayed = true
			return nil
		}

		b, err := s.ledger.CreditTx(tx, ledger.Entry{
			PlayerKey: d.PlayerKey,
			Wallet:    models.WalletReal,
			Amount:    credited,
			Reason:    ledger.ReasonDeposit,
			RefID:     "payment:" + d.Provider + ":" + d.Reference,
		})
		if err != nil {
			return err
		}
		out.Balances = &b
		return nil
	})
	if err != nil {
		return nil, apperrors.Infra(err, "apply deposit")
	}

	if out.Replayed {
		logger.Info("payment replay ignored", zap.String("provider", d.Provider), zap.String("reference", d.Reference))
	} else {
		logger.Info("deposit credited",
			zap.String("provider", d.Provider),
			zap.String("reference", d.Reference),
			zap.String("player", d.PlayerKey),
			zap.String("credited", credited.String()),
		)
	}
	return out, nil
}
