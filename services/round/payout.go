package round

import (
	"casino/models"
	"casino/services/settings"

	"github.com/shopspring/decimal"
)

// Payout is the total returned to the player for result on bet, stake
// included.
func Payout(result string, bet decimal.Decimal, p settings.Payouts) decimal.Decimal {
	var m decimal.Decimal
	switch result {
	case models.ResultBlackjack:
		m = p.BlackjackMultiplier
	case models.ResultWin:
		m = p.WinMultiplier
	case models.ResultPush:
		m = p.PushReturn
	default:
		return decimal.Zero
	}
	return bet.Mul(m).Round(2)
}

func message(result string) string {
	switch result {
	case models.ResultBlackjack:
		return "Blackjack!"
	case models.ResultWin:
		return "You win"
	case models.ResultPush:
		return "Push, bet returned"
	case models.ResultBust:
		return "Bust"
	case models.ResultLose:
		return "Dealer wins"
	}
	return ""
}
