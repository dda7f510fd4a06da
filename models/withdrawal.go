package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	WithdrawalPending    = "pending"
	WithdrawalApproved   = "approved"
	WithdrawalRejected   = "rejected"
	WithdrawalProcessing = "processing"
	WithdrawalPaid       = "paid"
	WithdrawalFailed     = "failed"
)

const (
	ModeUrgent  = "urgent"
	ModeBatch   = "batch"
	ModeBatched = "batched"
)

const (
	BatchScheduled  = "scheduled"
	BatchProcessing = "processing"
	BatchProcessed  = "processed"
)

type Withdrawal struct {
	gorm.Model

	PublicID  string `gorm:"size:36;uniqueIndex" json:"id"`
	PlayerID  uint   `gorm:"index" json:"player_id"`
	PlayerKey string `gorm:"size:64;index" json:"player_key"`
	Method    string `gorm:"size:32;index" json:"method"`

	Amount      decimal.Decimal `gorm:"type:numeric(20,2)" json:"amount"`
	PlatformFee decimal.Decimal `gorm:"type:numeric(20,2)" json:"platform_fee"`
	ProviderFee decimal.Decimal `gorm:"type:numeric(20,2)" json:"provider_fee"`
	NetAmount   decimal.Decimal `gorm:"type:numeric(20,2)" json:"net_amount"`
	Destination string          `gorm:"size:255" json:"destination"`

	Status         string `gorm:"size:16;index" json:"status"`
	ProcessingMode string `gorm:"size:16;index" json:"processing_mode"`
	Priority       int    `json:"priority"`
	IsUrgent       bool   `json:"is_urgent"`
	KYCRequired    bool   `json:"kyc_required"`
	RequiresReview bool   `json:"requires_review"`

	BatchID     *uint      `gorm:"index" json:"batch_id"`
	ReviewedBy  string     `gorm:"size:64" json:"reviewed_by"`
	Note        string     `gorm:"type:text" json:"note"`
	ProcessedAt *time.Time `json:"processed_at"`
}

func (w *Withdrawal) Terminal() bool {
	return w.Status == WithdrawalPaid || w.Status == WithdrawalRejected || w.Status == WithdrawalFailed
}

type WithdrawalBatch struct {
	gorm.Model

	PublicID    string          `gorm:"size:36;uniqueIndex" json:"id"`
	ScheduledAt time.Time       `gorm:"uniqueIndex" json:"scheduled_at"`
	Status      string          `gorm:"size:16;index" json:"status"`
	MemberCount int             `json:"member_count"`
	TotalNet    decimal.Decimal `gorm:"type:numeric(20,2)" json:"total_net"`
	ProcessedAt *time.Time      `json:"processed_at"`

	Withdrawals []Withdrawal `gorm:"foreignKey:BatchID" json:"withdrawals,omitempty"`
}
