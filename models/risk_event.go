package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

const (
	RiskHouseBias   = "house_bias"
	RiskVelocity    = "velocity"
	RiskDailyWinCap = "daily_win_cap"
)

// RiskEvent is append-only. DedupKey, when set, keeps repeated sweeps from
// recording the same finding twice.
type RiskEvent struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	PlayerID  uint           `gorm:"index" json:"player_id"`
	PlayerKey string         `gorm:"size:64;index" json:"player_key"`
	EventType string         `gorm:"size:32;index" json:"event_type"`
	Severity  string         `gorm:"size:8" json:"severity"`
	Payload   datatypes.JSON `json:"payload"`
	DedupKey  *string        `gorm:"size:160;uniqueIndex" json:"-"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
}
