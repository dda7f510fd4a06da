package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	WalletReal = "real"
	WalletDemo = "demo"
)

const (
	PlayerActive    = "active"
	PlayerSuspended = "suspended"
	PlayerLimited   = "limited"
	PlayerVerified  = "verified"
	PlayerBanned    = "banned"
)

type Player struct {
	gorm.Model

	PlayerKey   string          `gorm:"uniqueIndex;size:64" json:"player_key"`
	RealBalance decimal.Decimal `gorm:"type:numeric(20,2)" json:"real_balance"`
	DemoBalance decimal.Decimal `gorm:"type:numeric(20,2)" json:"demo_balance"`
	Status      string          `gorm:"size:16;index" json:"status"`
	StatusNote  string          `gorm:"size:255" json:"status_note"`
	IsTrusted   bool            `json:"is_trusted"`

	Transactions []Transaction `gorm:"foreignKey:PlayerID" json:"-"`
}

// Blocked players may not wager or withdraw.
func (p *Player) Blocked() bool {
	return p.Status == PlayerSuspended || p.Status == PlayerBanned
}

func (p *Player) BalanceOf(wallet string) decimal.Decimal {
	if wallet == WalletDemo {
		return p.DemoBalance
	}
	return p.RealBalance
}

func ValidWallet(wallet string) bool {
	return wallet == WalletReal || wallet == WalletDemo
}

func ValidPlayerStatus(status string) bool {
	switch status {
	case PlayerActive, PlayerSuspended, PlayerLimited, PlayerVerified, PlayerBanned:
		return true
	}
	return false
}

// Transaction is one immutable balance mutation. RefID is the idempotency key.
type Transaction struct {
	ID            uint            `gorm:"primarykey" json:"id"`
	PlayerID      uint            `gorm:"index" json:"player_id"`
	PlayerKey     string          `gorm:"size:64;index" json:"player_key"`
	Wallet        string          `gorm:"size:8" json:"wallet"`
	Amount        decimal.Decimal `gorm:"type:numeric(20,2)" json:"amount"`
	BalanceBefore decimal.Decimal `gorm:"type:numeric(20,2)" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"type:numeric(20,2)" json:"balance_after"`
	Reason        string          `gorm:"size:32;index" json:"reason"`
	RefID         string          `gorm:"size:128;uniqueIndex" json:"ref_id"`
	CreatedAt     time.Time       `gorm:"index" json:"created_at"`
}
