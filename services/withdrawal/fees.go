package withdrawal

import (
	"casino/services/settings"

	"github.com/shopspring/decimal"
)

type Fees struct {
	Platform decimal.Decimal `json:"platformFee"`
	Provider decimal.Decimal `json:"providerFee"`
	Net      decimal.Decimal `json:"netAmount"`
}

// ComputeFees splits amount into platform fee, provider fee and net payout.
// The urgent surcharge is charged as extra platform fee.
func ComputeFees(amount decimal.Decimal, fee settings.MethodFee, urgentPercent decimal.Decimal, urgent bool) Fees {
	platform := amount.Mul(fee.PlatformPercent)
	if urgent {
		platform = platform.Add(amount.Mul(urgentPercent))
	}
	f := Fees{
		Platform: platform.Round(2),
		Provider: amount.Mul(fee.ProviderPercent).Round(2),
	}
	f.Net = amount.Sub(f.Platform).Sub(f.Provider)
	return f
}
