package round

import (
	"casino/models"
	"casino/services/ledger"

	"github.com/shopspring/decimal"
)

type View struct {
	RoundID     string          `json:"roundId"`
	Status      string          `json:"status"`
	Wallet      string          `json:"walletType"`
	BaseBet     decimal.Decimal `json:"baseBet"`
	FinalBet    decimal.Decimal `json:"finalBet"`
	Doubled     bool            `json:"doubled"`
	PlayerCards []models.Card   `json:"playerCards"`
	DealerCards []models.Card   `json:"dealerCards"`
	PlayerScore int             `json:"playerScore"`
	DealerScore int             `json:"dealerScore"`

	Result    string          `json:"result,omitempty"`
	WinAmount decimal.Decimal `json:"winAmount"`
	Message   string          `json:"message,omitempty"`

	SeedHash string `json:"seedHash"`
	Seed     string `json:"seed,omitempty"`

	Balances *ledger.Balances `json:"balances,omitempty"`
}

// NewView renders r for its owner. While pending the dealer hole card and any
// later dealer cards stay face down and the seed stays secret.
func NewView(r *models.GameRound, balances *ledger.Balances) *View {
	v := &View{
		RoundID:     r.RoundID,
		Status:      r.Status,
		Wallet:      r.Wallet,
		BaseBet:     r.BaseBet,
		FinalBet:    r.FinalBet,
		Doubled:     r.Doubled,
		PlayerCards: append([]models.Card(nil), r.PlayerCards...),
		PlayerScore: Total(r.PlayerCards),
		WinAmount:   r.WinAmount,
		SeedHash:    r.SeedHash,
		Balances:    balances,
	}

	if r.Finished() {
		v.DealerCards = append([]models.Card(nil), r.DealerCards...)
		v.Result = r.Result
		v.Message = message(r.Result)
		v.Seed = r.Seed
	} else {
		for i, c := range r.DealerCards {
			if i > 0 {
				c = models.Card{Hidden: true}
			}
			v.DealerCards = append(v.DealerCards, c)
		}
	}
	v.DealerScore = Total(v.DealerCards)
	return v
}
