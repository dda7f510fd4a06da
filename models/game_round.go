package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoundPending  = "pending"
	RoundFinished = "finished"
)

const (
	ResultWin       = "win"
	ResultLose      = "lose"
	ResultPush      = "push"
	ResultBlackjack = "blackjack"
	ResultBust      = "bust"
)

type Card struct {
	Rank   string `json:"rank"`
	Suit   string `json:"suit"`
	Hidden bool   `json:"hidden,omitempty"`
}

func (c Card) String() string {
	if c.Hidden {
		return "??"
	}
	return c.Rank + c.Suit
}

type RoundAction struct {
	Action string    `json:"action"`
	Cards  []Card    `json:"cards,omitempty"`
	Note   string    `json:"note,omitempty"`
	At     time.Time `json:"at"`
}

// GameRound is mutable while pending and frozen once finished.
type GameRound struct {
	gorm.Model

	RoundID   string `gorm:"size:36;uniqueIndex" json:"round_id"`
	PlayerID  uint   `gorm:"index" json:"player_id"`
	PlayerKey string `gorm:"size:64;index" json:"player_key"`
	Wallet    string `gorm:"size:8;index" json:"wallet"`

	BaseBet  decimal.Decimal `gorm:"type:numeric(20,2)" json:"base_bet"`
	FinalBet decimal.Decimal `gorm:"type:numeric(20,2)" json:"final_bet"`
	Doubled  bool            `json:"doubled"`

	Seed     string `gorm:"size:64" json:"-"`
	SeedHash string `gorm:"size:64" json:"seed_hash"`

	PlayerCards datatypes.JSONSlice[Card]        `json:"player_cards"`
	DealerCards datatypes.JSONSlice[Card]        `json:"dealer_cards"`
	Cursor      int                              `json:"cursor"`
	Actions     datatypes.JSONSlice[RoundAction] `json:"actions"`

	Status      string          `gorm:"size:16;index" json:"status"`
	Result      string          `gorm:"size:16;index" json:"result"`
	TrueResult  string          `gorm:"size:16" json:"true_result"`
	BiasApplied bool            `json:"bias_applied"`
	WinAmount   decimal.Decimal `gorm:"type:numeric(20,2)" json:"win_amount"`
	FinishedAt  *time.Time      `gorm:"index" json:"finished_at"`
}

func (r *GameRound) Finished() bool {
	return r.Status == RoundFinished
}

// HouseOverride biases settlement for a single player.
type HouseOverride struct {
	gorm.Model

	PlayerKey   string  `gorm:"size:64;uniqueIndex" json:"player_key"`
	Mode        string  `gorm:"size:16" json:"mode"`
	Probability float64 `json:"probability"`
	Enabled     bool    `json:"enabled"`
	Note        string  `gorm:"size:255" json:"note"`
}
