// Package settings exposes platform configuration as an immutable snapshot.
// Components ask a Provider for the current snapshot at the start of each
// operation instead of reading shared mutable state.
package settings

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	KeyPayouts      = "payouts"
	KeyHouse        = "house"
	KeyCommission   = "commission"
	KeyAntiFraud    = "antiFraud"
	KeyTransparency = "transparency"
	KeyBatch        = "batch"
)

func KnownKey(key string) bool {
	switch key {
	case KeyPayouts, KeyHouse, KeyCommission, KeyAntiFraud, KeyTransparency, KeyBatch:
		return true
	}
	return false
}

type Limits struct {
	Min decimal.Decimal `json:"min"`
	Max decimal.Decimal `json:"max"`
}

type Payouts struct {
	BlackjackMultiplier decimal.Decimal `json:"blackjackMultiplier"`
	WinMultiplier       decimal.Decimal `json:"winMultiplier"`
	PushReturn          decimal.Decimal `json:"pushReturn"`

	MinBet decimal.Decimal `json:"minBet"`
	MaxBet decimal.Decimal `json:"maxBet"`

	UrgentAllowed         bool              `json:"urgentAllowed"`
	UrgentFeePercent      decimal.Decimal   `json:"urgentFeePercent"`
	KYCThreshold          decimal.Decimal   `json:"kycThreshold"`
	ManualReviewThreshold decimal.Decimal   `json:"manualReviewThreshold"`
	CryptoThresholds      map[string]Limits `json:"cryptoThresholds"`

	DemoInitialBalance decimal.Decimal `json:"demoInitialBalance"`
}

const (
	BiasNone        = "none"
	BiasFavorHouse  = "favor_house"
	BiasFavorPlayer = "favor_player"
)

type House struct {
	Mode        string  `json:"mode"`
	Probability float64 `json:"probability"`
}

type MethodFee struct {
	PlatformPercent decimal.Decimal `json:"platformPercent"`
	ProviderPercent decimal.Decimal `json:"providerPercent"`
	Disabled        bool            `json:"disabled"`
}

type Commission struct {
	Deposit  map[string]decimal.Decimal `json:"deposit"`
	Withdraw map[string]MethodFee       `json:"withdraw"`
}

type AntiFraud struct {
	VelocityEnabled       bool `json:"velocityEnabled"`
	VelocityWindowSeconds int  `json:"velocityWindowSeconds"`
	VelocityThreshold     int  `json:"velocityThreshold"`

	WinCapEnabled bool            `json:"winCapEnabled"`
	DailyWinCap   decimal.Decimal `json:"dailyWinCap"`
	EscalateTo    string          `json:"escalateTo"`
}

func (a AntiFraud) VelocityWindow() time.Duration {
	return time.Duration(a.VelocityWindowSeconds) * time.Second
}

type Transparency struct {
	RecentRounds int `json:"recentRounds"`
}

type Batch struct {
	HourUTC int `json:"hourUtc"`
}

type Snapshot struct {
	Payouts      Payouts      `json:"payouts"`
	House        House        `json:"house"`
	Commission   Commission   `json:"commission"`
	AntiFraud    AntiFraud    `json:"antiFraud"`
	Transparency Transparency `json:"transparency"`
	Batch        Batch        `json:"batch"`
	LoadedAt     time.Time    `json:"loadedAt"`
}

func Defaults() *Snapshot {
	return &Snapshot{
		Payouts: Payouts{
			BlackjackMultiplier:   decimal.RequireFromString("2.5"),
			WinMultiplier:         decimal.NewFromInt(2),
			PushReturn:            decimal.NewFromInt(1),
			UrgentAllowed:         true,
			UrgentFeePercent:      decimal.RequireFromString("0.02"),
			KYCThreshold:          decimal.NewFromInt(5000),
			ManualReviewThreshold: decimal.NewFromInt(1000),
			CryptoThresholds: map[string]Limits{
				"usdt": {Min: decimal.NewFromInt(10)},
				"ton":  {Min: decimal.NewFromInt(5)},
			},
			DemoInitialBalance: decimal.NewFromInt(1000),
		},
		House: House{Mode: BiasNone},
		Commission: Commission{
			Deposit: map[string]decimal.Decimal{
				"usdt": decimal.Zero,
				"ton":  decimal.Zero,
				"card": decimal.RequireFromString("0.03"),
			},
			Withdraw: map[string]MethodFee{
				"usdt": {PlatformPercent: decimal.RequireFromString("0.02"), ProviderPercent: decimal.RequireFromString("0.01")},
				"ton":  {PlatformPercent: decimal.RequireFromString("0.02"), ProviderPercent: decimal.RequireFromString("0.005")},
				"card": {PlatformPercent: decimal.RequireFromString("0.03"), ProviderPercent: decimal.RequireFromString("0.02")},
			},
		},
		AntiFraud: AntiFraud{
			VelocityEnabled:       true,
			VelocityWindowSeconds: 60,
			VelocityThreshold:     30,
			WinCapEnabled:         true,
			DailyWinCap:           decimal.NewFromInt(10000),
			EscalateTo:            "limited",
		},
		Transparency: Transparency{RecentRounds: 100},
		Batch:        Batch{HourUTC: 12},
	}
}

type Provider interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// Static serves one fixed snapshot.
type Static struct {
	snap *Snapshot
}

func NewStatic(s *Snapshot) *Static { return &Static{snap: s} }

func (s *Static) Snapshot(context.Context) (*Snapshot, error) { return s.snap, nil }
