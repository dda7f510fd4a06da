// Package ledger is the only writer of player balances. Every mutation locks
// the player row, appends exactly one Transaction and updates the counter in
// the same database transaction.
package ledger

import (
	"context"
	"errors"
	"strings"

	"casino/apperrors"
	"casino/metrics"
	"casino/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	ReasonBet        = "bet"
	ReasonDouble     = "double"
	ReasonPayout     = "payout"
	ReasonWithdraw   = "withdraw"
	ReasonRefund     = "withdraw_refund"
	ReasonDeposit    = "deposit"
	ReasonDemoGrant  = "demo_grant"
	ReasonAdjustment = "adjustment"
)

type Service struct {
	db        *gorm.DB
	demoGrant decimal.Decimal
}

func New(db *gorm.DB) *Service {
	return &Service{db: db, demoGrant: decimal.Zero}
}

// WithDemoGrant credits new players' demo wallet with amount on creation.
func (s *Service) WithDemoGrant(amount decimal.Decimal) *Service {
	s.demoGrant = amount
	return s
}

type Entry struct {
	PlayerKey string
	Wallet    string
	Amount    decimal.Decimal
	Reason    string
	RefID     string
}

type Balances struct {
	PlayerID  uint            `json:"-"`
	PlayerKey string          `json:"player_key"`
	Real      decimal.Decimal `json:"real"`
	Demo      decimal.Decimal `json:"demo"`
	Status    string          `json:"status"`
	RefID     string          `json:"ref_id,omitempty"`
	Replayed  bool            `json:"replayed,omitempty"`
}

func balancesOf(p *models.Player) Balances {
	return Balances{
		PlayerID:  p.ID,
		PlayerKey: p.PlayerKey,
		Real:      p.RealBalance,
		Demo:      p.DemoBalance,
		Status:    p.Status,
	}
}

func (s *Service) Credit(ctx context.Context, e Entry) (Balances, error) {
	return s.inTx(ctx, func(tx *gorm.DB) (Balances, error) { return s.CreditTx(tx, e) })
}

func (s *Service) Debit(ctx context.Context, e Entry) (Balances, error) {
	return s.inTx(ctx, func(tx *gorm.DB) (Balances, error) { return s.DebitTx(tx, e) })
}

// CreditTx applies a credit inside the caller's transaction.
func (s *Service) CreditTx(tx *gorm.DB, e Entry) (Balances, error) {
	return s.apply(tx, e, 1)
}

// DebitTx applies a debit inside the caller's transaction.
func (s *Service) DebitTx(tx *gorm.DB, e Entry) (Balances, error) {
	return s.apply(tx, e, -1)
}

func (s *Service) inTx(ctx context.Context, fn func(tx *gorm.DB) (Balances, error)) (Balances, error) {
	var out Balances
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = fn(tx)
		return err
	})
	if err != nil {
		return Balances{}, apperrors.Infra(err, "ledger transaction")
	}
	return out, nil
}

func (e *Entry) normalize() error {
	e.PlayerKey = strings.TrimSpace(e.PlayerKey)
	if e.PlayerKey == "" {
		return apperrors.Validation("PLAYER_REQUIRED", "player key is required")
	}
	if !models.ValidWallet(e.Wallet) {
		return apperrors.Validation("INVALID_WALLET", "wallet must be real or demo")
	}
	if !e.Amount.IsPositive() {
		return apperrors.Validation("INVALID_AMOUNT", "amount must be greater than zero")
	}
	if e.Reason == "" {
		e.Reason = ReasonAdjustment
	}
	if e.RefID == "" {
		e.RefID = uuid.NewString()
	}
	return nil
}

func (s *Service) apply(tx *gorm.DB, e Entry, sign int) (Balances, error) {
	if err := e.normalize(); err != nil {
		return Balances{}, err
	}
	direction := "credit"
	if sign < 0 {
		direction = "debit"
	}

	player, err := s.LockPlayerTx(tx, e.PlayerKey)
	if err != nil {
		return Balances{}, err
	}

	var existing models.Transaction
	found := tx.Where("ref_id = ?", e.RefID).Limit(1).Find(&existing)
	if found.Error != nil {
		return Balances{}, apperrors.Infra(found.Error, "lookup transaction ref")
	}
	if found.RowsAffected > 0 {
		if existing.PlayerID != player.ID {
			return Balances{}, apperrors.Conflict("REF_ID_CONFLICT", "reference id belongs to another player")
		}
		metrics.RecordLedger(e.Wallet, direction, "replayed")
		return replay(player, e.RefID), nil
	}

	delta := e.Amount
	if sign < 0 {
		delta = delta.Neg()
	}
	before := player.BalanceOf(e.Wallet)
	after := before.Add(delta)
	if after.IsNegative() {
		metrics.RecordLedger(e.Wallet, direction, "insufficient")
		if e.Wallet == models.WalletDemo {
			return Balances{}, apperrors.InsufficientFunds("DEMO_BALANCE_NEGATIVE", "demo balance would become negative")
		}
		return Balances{}, apperrors.InsufficientFunds("INSUFFICIENT_FUNDS", "insufficient balance")
	}

	row := models.Transaction{
		PlayerID:      player.ID,
		PlayerKey:     player.PlayerKey,
		Wallet:        e.Wallet,
		Amount:        delta,
		BalanceBefore: before,
		BalanceAfter:  after,
		Reason:        e.Reason,
		RefID:         e.RefID,
	}
	res := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "ref_id"}}, DoNothing: true}).Create(&row)
	if res.Error != nil {
		return Balances{}, apperrors.Infra(res.Error, "insert transaction")
	}
	if res.RowsAffected == 0 {
		// another transaction committed the same reference first
		metrics.RecordLedger(e.Wallet, direction, "replayed")
		return replay(player, e.RefID), nil
	}

	column := "real_balance"
	if e.Wallet == models.WalletDemo {
		column = "demo_balance"
		player.DemoBalance = after
	} else {
		player.RealBalance = after
	}
	if err := tx.Model(&models.Player{}).Where("id = ?", player.ID).Update(column, after).Error; err != nil {
		return Balances{}, apperrors.Infra(err, "update balance")
	}

	metrics.RecordLedger(e.Wallet, direction, "applied")
	out := balancesOf(player)
	out.RefID = e.RefID
	return out, nil
}

func replay(p *models.Player, ref string) Balances {
	out := balancesOf(p)
	out.RefID = ref
	out.Replayed = true
	return out
}

// LockPlayerTx creates the player if needed and locks its row for the rest
// of tx.
func (s *Service) LockPlayerTx(tx *gorm.DB, key string) (*models.Player, error) {
	if key == "" {
		return nil, apperrors.Validation("PLAYER_REQUIRED", "player key is required")
	}
	if err := s.ensurePlayerTx(tx, key); err != nil {
		return nil, err
	}
	var player models.Player
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("player_key = ?", key).First(&player).Error; err != nil {
		return nil, apperrors.Infra(err, "lock player")
	}
	return &player, nil
}

func (s *Service) ensurePlayerTx(tx *gorm.DB, key string) error {
	player := models.Player{
		PlayerKey:   key,
		RealBalance: decimal.Zero,
		DemoBalance: s.demoGrant,
		Status:      models.PlayerActive,
	}
	res := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "player_key"}}, DoNothing: true}).Create(&player)
	if res.Error != nil {
		return apperrors.Infra(res.Error, "create player")
	}
	if res.RowsAffected == 0 || !s.demoGrant.IsPositive() {
		return nil
	}
	grant := models.Transaction{
		PlayerID:      player.ID,
		PlayerKey:     key,
		Wallet:        models.WalletDemo,
		Amount:        s.demoGrant,
		BalanceBefore: decimal.Zero,
		BalanceAfter:  s.demoGrant,
		Reason:        ReasonDemoGrant,
		RefID:         "demo-grant:" + key,
	}
	if err := tx.Create(&grant).Error; err != nil {
		return apperrors.Infra(err, "record demo grant")
	}
	return nil
}

// RequirePlayableTx locks the player and rejects suspended or banned ones.
func (s *Service) RequirePlayableTx(tx *gorm.DB, key string) (*models.Player, error) {
	player, err := s.LockPlayerTx(tx, key)
	if err != nil {
		return nil, err
	}
	if player.Blocked() {
		return nil, apperrors.Forbidden("PLAYER_BLOCKED", "player is "+player.Status)
	}
	return player, nil
}

func (s *Service) EnsurePlayer(ctx context.Context, key string) (Balances, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return Balances{}, apperrors.Validation("PLAYER_REQUIRED", "player key is required")
	}
	return s.inTx(ctx, func(tx *gorm.DB) (Balances, error) {
		p, err := s.LockPlayerTx(tx, key)
		if err != nil {
			return Balances{}, err
		}
		return balancesOf(p), nil
	})
}

// BalancesTx reads balances without locking.
func (s *Service) BalancesTx(tx *gorm.DB, key string) (Balances, error) {
	var player models.Player
	if err := tx.Where("player_key = ?", key).First(&player).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Balances{}, apperrors.NotFound("PLAYER_NOT_FOUND", "player not found")
		}
		return Balances{}, apperrors.Infra(err, "load balances")
	}
	return balancesOf(&player), nil
}

func (s *Service) Balance(ctx context.Context, key string) (Balances, error) {
	return s.BalancesTx(s.db.WithContext(ctx), key)
}

func (s *Service) History(ctx context.Context, key string, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	var rows []models.Transaction
	if err := s.db.WithContext(ctx).Where("player_key = ?", key).
		Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, apperrors.Infra(err, "load history")
	}
	return rows, nil
}
