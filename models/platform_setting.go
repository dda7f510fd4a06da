package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type PlatformSetting struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	Key       string         `gorm:"column:setting_key;size:64;uniqueIndex" json:"key"`
	Value     datatypes.JSON `json:"value"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// PaymentEvent records a provider notification once per (provider, reference).
type PaymentEvent struct {
	ID        uint            `gorm:"primarykey" json:"id"`
	Provider  string          `gorm:"size:32;uniqueIndex:idx_payment_provider_ref" json:"provider"`
	Reference string          `gorm:"size:128;uniqueIndex:idx_payment_provider_ref" json:"reference"`
	PlayerKey string          `gorm:"size:64;index" json:"player_key"`
	Method    string          `gorm:"size:32" json:"method"`
	Amount    decimal.Decimal `gorm:"type:numeric(20,2)" json:"amount"`
	Fee       decimal.Decimal `gorm:"type:numeric(20,2)" json:"fee"`
	Credited  decimal.Decimal `gorm:"type:numeric(20,2)" json:"credited"`
	Payload   datatypes.JSON  `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
