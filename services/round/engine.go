package round

import (
	"context"
	"errors"
	"strings"
	"time"

	"casino/apperrors"
	"casino/logger"
	"casino/metrics"
	"casino/models"
	"casino/services/ledger"
	"casino/services/risk"
	"casino/services/settings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Engine runs blackjack rounds: pending until settled, then frozen.
type Engine struct {
	db       *gorm.DB
	ledger   *ledger.Service
	settings settings.Provider

	seeder func() (string, error)
	roll   func() float64
	now    func() time.Time
}

func NewEngine(db *gorm.DB, l *ledger.Service, p settings.Provider) *Engine {
	return &Engine{
		db:       db,
		ledger:   l,
		settings: p,
		seeder:   NewSeed,
		roll:     cryptoRoll,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithSeeder replaces the seed source; tests use it to pick a known deck.
func (e *Engine) WithSeeder(fn func() (string, error)) *Engine {
	e.seeder = fn
	return e
}

// WithRoller replaces the bias roll source.
func (e *Engine) WithRoller(fn func() float64) *Engine {
	e.roll = fn
	return e
}

type StartRequest struct {
	PlayerKey string
	Wallet    string
	Bet       decimal.Decimal
}

func (e *Engine) Start(ctx context.Context, req StartRequest) (*View, error) {
	snap, err := e.settings.Snapshot(ctx)
	if err != nil {
		return nil, apperrors.Infra(err, "load settings")
	}

	req.PlayerKey = strings.TrimSpace(req.PlayerKey)
	req.Wallet = strings.ToLower(strings.TrimSpace(req.Wallet))
	if req.Wallet == "" {
		req.Wallet = models.WalletReal
	}
	if !models.ValidWallet(req.Wallet) {
		return nil, apperrors.Validation("INVALID_WALLET", "wallet must be real or demo")
	}
	if !req.Bet.IsPositive() {
		return nil, apperrors.Validation("INVALID_BET", "bet amount must be greater than zero")
	}
	if p := snap.Payouts; p.MinBet.IsPositive() && req.Bet.LessThan(p.MinBet) {
		return nil, apperrors.Validation("BET_BELOW_MINIMUM", "minimum bet is "+p.MinBet.String())
	}
	if p := snap.Payouts; p.MaxBet.IsPositive() && req.Bet.GreaterThan(p.MaxBet) {
		return nil, apperrors.Validation("BET_ABOVE_MAXIMUM", "maximum bet is "+p.MaxBet.String())
	}

	seed, err := e.seeder()
	if err != nil {
		return nil, apperrors.Infra(err, "generate seed")
	}
	deck := Deal(seed)
	now := e.now()

	r := models.GameRound{
		RoundID:     uuid.NewString(),
		PlayerKey:   req.PlayerKey,
		Wallet:      req.Wallet,
		BaseBet:     req.Bet,
		FinalBet:    req.Bet,
		Seed:        seed,
		SeedHash:    Commit(seed),
		PlayerCards: datatypes.JSONSlice[models.Card]{deck[0], deck[1]},
		DealerCards: datatypes.JSONSlice[models.Card]{deck[2], deck[3]},
		Cursor:      4,
		Status:      models.RoundPending,
		WinAmount:   decimal.Zero,
	}
	r.Actions = append(r.Actions, models.RoundAction{
		Action: "deal",
		Cards:  []models.Card{deck[0], deck[1], deck[2]},
		At:     now,
	})

	var balances ledger.Balances
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		player, err := e.ledger.RequirePlayableTx(tx, req.PlayerKey)
		if err != nil {
			return err
		}
		r.PlayerID = player.ID
		if err := tx.Create(&r).Error; err != nil {
			return apperrors.Infra(err, "create round")
		}
		balances, err = e.ledger.DebitTx(tx, ledger.Entry{
			PlayerKey: req.PlayerKey,
			Wallet:    req.Wallet,
			Amount:    req.Bet,
			Reason:    ledger.ReasonBet,
			RefID:     "round:" + r.RoundID + ":bet",
		})
		return err
	})
	if err != nil {
		return nil, apperrors.Infra(err, "start round")
	}

	metrics.RecordRoundStarted(r.Wallet)
	logger.Debug("round started", zap.String("round_id", r.RoundID), zap.String("player", r.PlayerKey))
	return NewView(&r, &balances), nil
}

func (e *Engine) Hit(ctx context.Context, playerKey, roundID string) (*View, error) {
	return e.act(ctx, playerKey, roundID, func(tx *gorm.DB, r *models.GameRound, snap *settings.Snapshot) error {
		if r.Finished() {
			return apperrors.Conflict("ROUND_FINISHED", "round is already finished")
		}
		card, err := drawNext(r)
		if err != nil {
			return err
		}
		r.PlayerCards = append(r.PlayerCards, card)
		r.Actions = append(r.Actions, models.RoundAction{Action: "hit", Cards: []models.Card{card}, At: e.now()})

		if Total(r.PlayerCards) > 21 {
			return e.settleTx(tx, r, snap)
		}
		return e.saveHand(tx, r)
	})
}

// Double doubles the stake, deals exactly one card and settles.
func (e *Engine) Double(ctx context.Context, playerKey, roundID string) (*View, error) {
	return e.act(ctx, playerKey, roundID, func(tx *gorm.DB, r *models.GameRound, snap *settings.Snapshot) error {
		if r.Finished() {
			return apperrors.Conflict("ROUND_FINISHED", "round is already finished")
		}
		if r.Doubled || len(r.PlayerCards) != 2 {
			return apperrors.Validation("DOUBLE_NOT_ALLOWED", "double is only allowed on the first two cards")
		}
		if _, err := e.ledger.DebitTx(tx, ledger.Entry{
			PlayerKey: r.PlayerKey,
			Wallet:    r.Wallet,
			Amount:    r.BaseBet,
			Reason:    ledger.ReasonDouble,
			RefID:     "round:" + r.RoundID + ":double",
		}); err != nil {
			return err
		}
		card, err := drawNext(r)
		if err != nil {
			return err
		}
		r.Doubled = true
		r.FinalBet = r.BaseBet.Add(r.BaseBet)
		r.PlayerCards = append(r.PlayerCards, card)
		r.Actions = append(r.Actions, models.RoundAction{Action: "double", Cards: []models.Card{card}, At: e.now()})
		return e.settleTx(tx, r, snap)
	})
}

// Settle finishes a pending round. A finished round is returned unchanged.
func (e *Engine) Settle(ctx context.Context, playerKey, roundID string) (*View, error) {
	return e.act(ctx, playerKey, roundID, func(tx *gorm.DB, r *models.GameRound, snap *settings.Snapshot) error {
		if r.Finished() {
			return nil
		}
		r.Actions = append(r.Actions, models.RoundAction{Action: "stand", At: e.now()})
		return e.settleTx(tx, r, snap)
	})
}

func (e *Engine) Get(ctx context.Context, playerKey, roundID string) (*View, error) {
	var r models.GameRound
	if err := e.db.WithContext(ctx).Where("round_id = ? AND player_key = ?", roundID, playerKey).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("ROUND_NOT_FOUND", "round not found")
		}
		return nil, apperrors.Infra(err, "load round")
	}
	return NewView(&r, nil), nil
}

func (e *Engine) act(ctx context.Context, playerKey, roundID string, fn func(tx *gorm.DB, r *models.GameRound, snap *settings.Snapshot) error) (*View, error) {
	snap, err := e.settings.Snapshot(ctx)
	if err != nil {
		return nil, apperrors.Infra(err, "load settings")
	}

	var (
		r        models.GameRound
		balances ledger.Balances
	)
	err = e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("round_id = ? AND player_key = ?", roundID, playerKey).First(&r).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.NotFound("ROUND_NOT_FOUND", "round not found")
			}
			return apperrors.Infra(err, "lock round")
		}
		if err := fn(tx, &r, snap); err != nil {
			return err
		}
		balances, err = e.ledger.BalancesTx(tx, playerKey)
		return err
	})
	if err != nil {
		return nil, apperrors.Infra(err, "round action")
	}
	return NewView(&r, &balances), nil
}

func drawNext(r *models.GameRound) (models.Card, error) {
	deck := Deal(r.Seed)
	if r.Cursor >= len(deck) {
		return models.Card{}, apperrors.Conflict("DECK_EXHAUSTED", "no cards left in the deck")
	}
	card := deck[r.Cursor]
	r.Cursor++
	return card, nil
}

func (e *Engine) saveHand(tx *gorm.DB, r *models.GameRound) error {
	res := tx.Model(&models.GameRound{}).
		Where("id = ? AND status = ?", r.ID, models.RoundPending).
		Updates(map[string]any{
			"player_cards": r.PlayerCards,
			"cursor":       r.Cursor,
			"actions":      r.Actions,
		})
	if res.Error != nil {
		return apperrors.Infra(res.Error, "save round")
	}
	if res.RowsAffected == 0 {
		return apperrors.Conflict("ROUND_FINISHED", "round is already finished")
	}
	return nil
}

// settleTx reveals the hole card, plays the dealer, applies any bias and pays
// out. The pending->finished claim and the payout credit share tx, so a
// repeated settle can never pay twice.
func (e *Engine) settleTx(tx *gorm.DB, r *models.GameRound, snap *settings.Snapshot) error {
	deck := Deal(r.Seed)

	if Total(r.PlayerCards) <= 21 {
		before := len(r.DealerCards)
		r.DealerCards, r.Cursor = PlayDealer(r.DealerCards, deck, r.Cursor)
		if drawn := r.DealerCards[before:]; len(drawn) > 0 {
			r.Actions = append(r.Actions, models.RoundAction{Action: "dealer_draw", Cards: append([]models.Card(nil), drawn...), At: e.now()})
		}
	}

	trueResult := Outcome(r.PlayerCards, r.DealerCards)
	mode, probability, err := e.biasFor(tx, r.PlayerKey, snap)
	if err != nil {
		return err
	}
	result, flipped := trueResult, false
	if biasActive(mode, probability) {
		result, flipped = DecideBias(trueResult, mode, probability, e.roll())
	}

	win := Payout(result, r.FinalBet, snap.Payouts)
	now := e.now()
	r.Actions = append(r.Actions, models.RoundAction{Action: "settle", Note: result, At: now})

	res := tx.Model(&models.GameRound{}).
		Where("id = ? AND status = ?", r.ID, models.RoundPending).
		Updates(map[string]any{
			"player_cards": r.PlayerCards,
			"dealer_cards": r.DealerCards,
			"cursor":       r.Cursor,
			"actions":      r.Actions,
			"doubled":      r.Doubled,
			"final_bet":    r.FinalBet,
			"status":       models.RoundFinished,
			"result":       result,
			"true_result":  trueResult,
			"bias_applied": flipped,
			"win_amount":   win,
			"finished_at":  now,
		})
	if res.Error != nil {
		return apperrors.Infra(res.Error, "finish round")
	}
	if res.RowsAffected == 0 {
		return apperrors.Conflict("ROUND_ALREADY_SETTLED", "round was settled concurrently")
	}

	if win.IsPositive() {
		if _, err := e.ledger.CreditTx(tx, ledger.Entry{
			PlayerKey: r.PlayerKey,
			Wallet:    r.Wallet,
			Amount:    win,
			Reason:    ledger.ReasonPayout,
			RefID:     "round:" + r.RoundID + ":payout",
		}); err != nil {
			return err
		}
	}

	if flipped {
		if _, err := risk.Record(tx, risk.Event{
			PlayerID:  r.PlayerID,
			PlayerKey: r.PlayerKey,
			Type:      models.RiskHouseBias,
			Severity:  models.SeverityLow,
			Payload: map[string]any{
				"roundId":     r.RoundID,
				"mode":        mode,
				"probability": probability,
				"original":    trueResult,
				"adjusted":    result,
			},
			DedupKey: "house_bias:" + r.RoundID,
		}); err != nil {
			return err
		}
		metrics.RecordBiasFlip(mode)
	}

	r.Status = models.RoundFinished
	r.Result = result
	r.TrueResult = trueResult
	r.BiasApplied = flipped
	r.WinAmount = win
	r.FinishedAt = &now
	metrics.RecordRoundSettled(r.Wallet, result)
	return nil
}

// biasFor prefers an enabled per-player override over the house default.
func (e *Engine) biasFor(tx *gorm.DB, playerKey string, snap *settings.Snapshot) (string, float64, error) {
	var o models.HouseOverride
	res := tx.Where("player_key = ? AND enabled = ?", playerKey, true).Limit(1).Find(&o)
	if res.Error != nil {
		return "", 0, apperrors.Infra(res.Error, "load house override")
	}
	if res.RowsAffected > 0 {
		return o.Mode, o.Probability, nil
	}
	return snap.House.Mode, snap.House.Probability, nil
}
