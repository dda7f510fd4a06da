// Package fairness publishes return-to-player statistics over settled
// real-wallet rounds and lets anyone re-derive a finished round from its seed.
package fairness

import (
	"context"
	"errors"
	"time"

	"casino/apperrors"
	"casino/models"
	"casino/services/round"
	"casino/services/settings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var hundred = decimal.NewFromInt(100)

type Outcomes struct {
	Win       int64 `json:"win"`
	Lose      int64 `json:"lose"`
	Push      int64 `json:"push"`
	Blackjack int64 `json:"blackjack"`
	Bust      int64 `json:"bust"`
}

type Window struct {
	Rounds           int64            `json:"rounds"`
	Wagered          decimal.Decimal  `json:"wagered"`
	Returned         decimal.Decimal  `json:"returned"`
	Outcomes         Outcomes         `json:"outcomes"`
	RTPPercent       *decimal.Decimal `json:"rtpPercent"`
	HouseEdgePercent *decimal.Decimal `json:"houseEdgePercent"`
	SampleSize       int              `json:"sampleSize,omitempty"`
}

type PublicSettings struct {
	BlackjackMultiplier decimal.Decimal `json:"blackjackMultiplier"`
	WinMultiplier       decimal.Decimal `json:"winMultiplier"`
	PushReturn          decimal.Decimal `json:"pushReturn"`
	DealerStandsOn      int             `json:"dealerStandsOn"`
	DeckSize            int             `json:"deckSize"`
	RecentRounds        int             `json:"recentRounds"`
}

type Report struct {
	Lifetime    Window         `json:"lifetime"`
	Last24h     Window         `json:"last24h"`
	Recent      Window         `json:"recent"`
	Settings    PublicSettings `json:"settings"`
	GeneratedAt time.Time      `json:"generatedAt"`
}

type Auditor struct {
	db       *gorm.DB
	settings settings.Provider
}

func NewAuditor(db *gorm.DB, p settings.Provider) *Auditor {
	return &Auditor{db: db, settings: p}
}

type aggregate struct {
	Result   string
	Rounds   int64
	Wagered  decimal.Decimal
	Returned decimal.Decimal
}

func (a *Auditor) Report(ctx context.Context, now time.Time) (*Report, error) {
	snap, err := a.settings.Snapshot(ctx)
	if err != nil {
		return nil, apperrors.Infra(err, "load settings")
	}
	n := snap.Transparency.RecentRounds
	if n <= 0 {
		n = 100
	}

	db := a.db.WithContext(ctx)
	settled := func() *gorm.DB {
		return db.Model(&models.GameRound{}).
			Where("status = ? AND wallet = ?", models.RoundFinished, models.WalletReal)
	}

	lifetime, err := summarize(settled())
	if err != nil {
		return nil, err
	}
	last24h, err := summarize(settled().Where("finished_at >= ?", now.UTC().Add(-24*time.Hour)))
	if err != nil {
		return nil, err
	}
	sub := settled().Select("result, final_bet, win_amount").Order("finished_at DESC, id DESC").Limit(n)
	recent, err := summarize(db.Table("(?) AS recent", sub))
	if err != nil {
		return nil, err
	}
	recent.SampleSize = n
	if recent.Rounds < int64(n) {
		recent.SampleSize = int(recent.Rounds)
	}

	return &Report{
		Lifetime: lifetime,
		Last24h:  last24h,
		Recent:   recent,
		Settings: PublicSettings{
			BlackjackMultiplier: snap.Payouts.BlackjackMultiplier,
			WinMultiplier:       snap.Payouts.WinMultiplier,
			PushReturn:          snap.Payouts.PushReturn,
			DealerStandsOn:      17,
			DeckSize:            round.DeckSize,
			RecentRounds:        n,
		},
		GeneratedAt: now.UTC(),
	}, nil
}

func summarize(q *gorm.DB) (Window, error) {
	var rows []aggregate
	err := q.Select("result, COUNT(*) AS rounds, COALESCE(SUM(final_bet), 0) AS wagered, COALESCE(SUM(win_amount), 0) AS returned").
		Group("result").Scan(&rows).Error
	if err != nil {
		return Window{}, apperrors.Infra(err, "aggregate rounds")
	}

	w := Window{Wagered: decimal.Zero, Returned: decimal.Zero}
	for _, r := range rows {
		w.Rounds += r.Rounds
		w.Wagered = w.Wagered.Add(r.Wagered)
		w.Returned = w.Returned.Add(r.Returned)
		switch r.Result {
		case models.ResultWin:
			w.Outcomes.Win += r.Rounds
		case models.ResultLose:
			w.Outcomes.Lose += r.Rounds
		case models.ResultPush:
			w.Outcomes.Push += r.Rounds
		case models.ResultBlackjack:
			w.Outcomes.Blackjack += r.Rounds
		case models.ResultBust:
			w.Outcomes.Bust += r.Rounds
		}
	}
	if w.Wagered.IsPositive() {
		rtp := w.Returned.Div(w.Wagered).Mul(hundred).Round(2)
		edge := hundred.Sub(rtp)
		w.RTPPercent = &rtp
		w.HouseEdgePercent = &edge
	}
	return w, nil
}

// Verification is the public proof of one finished round.
type Verification struct {
	RoundID        string        `json:"roundId"`
	Seed           string        `json:"seed"`
	SeedHash       string        `json:"seedHash"`
	CommitmentOK   bool          `json:"commitmentOk"`
	CardsOK        bool          `json:"cardsOk"`
	PlayerCards    []models.Card `json:"playerCards"`
	DealerCards    []models.Card `json:"dealerCards"`
	ExpectedPlayer []models.Card `json:"expectedPlayer"`
	ExpectedDealer []models.Card `json:"expectedDealer"`
	Result         string        `json:"result"`
}

// VerifyRound re-derives the deck of a finished round and checks that the
// stored hands are the cards the deal order would have produced.
func (a *Auditor) VerifyRound(ctx context.Context, roundID string) (*Verification, error) {
	var r models.GameRound
	if err := a.db.WithContext(ctx).Where("round_id = ?", roundID).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("ROUND_NOT_FOUND", "round not found")
		}
		return nil, apperrors.Infra(err, "load round")
	}
	if !r.Finished() {
		return nil, apperrors.Conflict("ROUND_NOT_FINISHED", "seed is revealed after settlement")
	}

	player, dealer := Replay(round.Deal(r.Seed), len(r.PlayerCards), len(r.DealerCards))
	return &Verification{
		RoundID:        r.RoundID,
		Seed:           r.Seed,
		SeedHash:       r.SeedHash,
		CommitmentOK:   round.Verify(r.Seed, r.SeedHash),
		CardsOK:        sameCards(player, r.PlayerCards) && sameCards(dealer, r.DealerCards),
		PlayerCards:    r.PlayerCards,
		DealerCards:    r.DealerCards,
		ExpectedPlayer: player,
		ExpectedDealer: dealer,
		Result:         r.Result,
	}, nil
}

// Replay rebuilds hands of the given sizes: two cards each from the top of
// the deck, then the player's draws, then the dealer's.
func Replay(deck []models.Card, playerN, dealerN int) (player, dealer []models.Card) {
	if playerN < 2 || dealerN < 2 || playerN+dealerN > len(deck) {
		return nil, nil
	}
	player = append(player, deck[0], deck[1])
	dealer = append(dealer, deck[2], deck[3])
	cursor := 4
	player = append(player, deck[cursor:cursor+playerN-2]...)
	cursor += playerN - 2
	dealer = append(dealer, deck[cursor:cursor+dealerN-2]...)
	return player, dealer
}

func sameCards(a, b []models.Card) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Rank != b[i].Rank || a[i].Suit != b[i].Suit {
			return false
		}
	}
	return true
}
