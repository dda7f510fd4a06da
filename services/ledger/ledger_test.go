package ledger

import (
	"context"
	"fmt"
	"testing"

	"casino/apperrors"
	"casino/models"
	"casino/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newService(t *testing.T) (*Service, *gorm.DB) {
	db := testutil.NewDB(t)
	return New(db), db
}

func countRefs(t *testing.T, db *gorm.DB, ref string) int64 {
	var n int64
	require.NoError(t, db.Model(&models.Transaction{}).Where("ref_id = ?", ref).Count(&n).Error)
	return n
}

func TestCreditCreatesPlayerLazily(t *testing.T) {
	svc, db := newService(t)

	bal, err := svc.Credit(context.Background(), Entry{PlayerKey: "p1", Wallet: models.WalletReal, Amount: dec("100"), Reason: ReasonDeposit})
	require.NoError(t, err)
	assert.True(t, bal.Real.Equal(dec("100")))
	assert.True(t, bal.Demo.IsZero())
	assert.Equal(t, models.PlayerActive, bal.Status)
	assert.NotEmpty(t, bal.RefID)

	var tx models.Transaction
	require.NoError(t, db.Where("ref_id = ?", bal.RefID).First(&tx).Error)
	assert.True(t, tx.Amount.Equal(dec("100")))
	assert.True(t, tx.BalanceBefore.IsZero())
	assert.True(t, tx.BalanceAfter.Equal(dec("100")))
}

func TestDebitReplayIsApplyingOnce(t *testing.T) {
	ctx := context.Background()
	svc, db := newService(t)

	_, err := svc.Credit(ctx, Entry{PlayerKey: "p1", Wallet: models.WalletReal, Amount: dec("100")})
	require.NoError(t, err)

	entry := Entry{PlayerKey: "p1", Wallet: models.WalletReal, Amount: dec("30"), Reason: ReasonBet, RefID: "bet-1"}
	first, err := svc.Debit(ctx, entry)
	require.NoError(t, err)
	assert.True(t, first.Real.Equal(dec("70")))
	assert.False(t, first.Replayed)

	second, err := svc.Debit(ctx, entry)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.True(t, second.Real.Equal(dec("70")))

	assert.Equal(t, int64(1), countRefs(t, db, "bet-1"))

	var tx models.Transaction
	require.NoError(t, db.Where("ref_id = ?", "bet-1").First(&tx).Error)
	assert.True(t, tx.Amount.Equal(dec("-30")))
}

func TestReplayAfterBalanceDrainedStillSucceeds(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.Credit(ctx, Entry{PlayerKey: "p1", Wallet: models.WalletReal, Amount: dec("50")})
	require.NoError(t, err)
	_, err = svc.Debit(ctx, Entry{PlayerKey: "p1", Wallet: models.WalletReal, Amount: dec("50"), RefID: "drain"})
	require.NoError(t, err)

	again, err := svc.Debit(ctx, Entry{PlayerKey: "p1", Wallet: models.WalletReal, Amount: dec("50"), RefID: "drain"})
	require.NoError(t, err)
	assert.True(t, again.Replayed)
	assert.True(t, again.Real.IsZero())
}

func TestDebitInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	svc, db := newService(t)

	_, err := svc.Credit(ctx, Entry{PlayerKey: "p1", Wallet: models.WalletReal, Amount: dec("10")})
	require.NoError(t, err)

	_, err = svc.Debit(ctx, Entry{PlayerKey: "p1", Wallet: models.WalletReal, Amount: dec("10.01"), RefID: "too-much"})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindInsufficientFunds))
	assert.Equal(t, "INSUFFICIENT_FUNDS", apperrors.CodeOf(err))
	assert.Equal(t, int64(0), countRefs(t, db, "too-much"))

	bal, err := svc.Balance(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, bal.Real.Equal(dec("10")))
}

func TestDemoWalletNegative(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	svc.WithDemoGrant(dec("1000"))

	bal, err := svc.EnsurePlayer(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, bal.Demo.Equal(dec("1000")))

	_, err = svc.Debit(ctx, Entry{PlayerKey: "p1", Wallet: models.WalletDemo, Amount: dec("1000.50")})
	assert.Equal(t, "DEMO_BALANCE_NEGATIVE", apperrors.CodeOf(err))

	bal, err = svc.Debit(ctx, Entry{PlayerKey: "p1", Wallet: models.WalletDemo, Amount: dec("400")})
	require.NoError(t, err)
	assert.True(t, bal.Demo.Equal(dec("600")))
	assert.True(t, bal.Real.IsZero())

	history, err := svc.History(ctx, "p1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, ReasonDemoGrant, history[1].Reason)
}

func TestEntryValidation(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	cases := []struct {
		name  string
		entry Entry
		code  string
	}{
		{"zero amount", Entry{PlayerKey: "p1", Wallet: models.WalletReal, Amount: decimal.Zero}, "INVALID_AMOUNT"},
		{"negative amount", Entry{PlayerKey: "p1", Wallet: models.WalletReal, Amount: dec("-5")}, "INVALID_AMOUNT"},
		{"bad wallet", Entry{PlayerKey: "p1", Wallet: "bonus", Amount: dec("5")}, "INVALID_WALLET"},
		{"no player", Entry{Wallet: models.WalletReal, Amount: dec("5")}, "PLAYER_REQUIRED"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Credit(ctx, tc.entry)
			assert.True(t, apperrors.Is(err, apperrors.KindValidation))
			assert.Equal(t, tc.code, apperrors.CodeOf(err))
		})
	}
}

func TestRefOwnedByAnotherPlayer(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.Credit(ctx, Entry{PlayerKey: "p1", Wallet: models.WalletReal, Amount: dec("5"), RefID: "shared"})
	require.NoError(t, err)
	_, err = svc.Credit(ctx, Entry{PlayerKey: "p2", Wallet: models.WalletReal, Amount: dec("5"), RefID: "shared"})
	assert.Equal(t, "REF_ID_CONFLICT", apperrors.CodeOf(err))
}

func TestRequirePlayableRejectsBlocked(t *testing.T) {
	ctx := context.Background()
	svc, db := newService(t)

	_, err := svc.EnsurePlayer(ctx, "p1")
	require.NoError(t, err)
	_, err = svc.SetStatus(ctx, "p1", models.PlayerSuspended, "chargeback")
	require.NoError(t, err)

	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := svc.RequirePlayableTx(tx, "p1")
		return err
	})
	assert.True(t, apperrors.Is(err, apperrors.KindForbidden))

	_, err = svc.SetStatus(ctx, "p1", "vip", "")
	assert.Equal(t, "INVALID_STATUS", apperrors.CodeOf(err))

	p, err := svc.SetTrusted(ctx, "p1", true)
	require.NoError(t, err)
	assert.True(t, p.IsTrusted)
}

func TestAdminUpdatesNeedExistingPlayer(t *testing.T) {
	ctx := context.Background()
	svc, db := newService(t)

	_, err := svc.SetStatus(ctx, "typo-player", models.PlayerBanned, "")
	assert.Equal(t, "PLAYER_NOT_FOUND", apperrors.CodeOf(err))
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))

	_, err = svc.SetTrusted(ctx, "typo-player", true)
	assert.Equal(t, "PLAYER_NOT_FOUND", apperrors.CodeOf(err))

	var n int64
	require.NoError(t, db.Model(&models.Player{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestConcurrentDebitsSerialize(t *testing.T) {
	ctx := context.Background()
	svc, db := newService(t)

	_, err := svc.Credit(ctx, Entry{PlayerKey: "p1", Wallet: models.WalletReal, Amount: dec("100"), RefID: "fund"})
	require.NoError(t, err)

	var g errgroup.Group
	results := make([]error, 20)
	for i := range results {
		g.Go(func() error {
			_, results[i] = svc.Debit(ctx, Entry{
				PlayerKey: "p1",
				Wallet:    models.WalletReal,
				Amount:    dec("10"),
				Reason:    ReasonBet,
				RefID:     fmt.Sprintf("bet-%d", i),
			})
			return nil
		})
	}
	require.NoError(t, g.Wait())

	applied := 0
	for _, err := range results {
		if err == nil {
			applied++
			continue
		}
		assert.Equal(t, "INSUFFICIENT_FUNDS", apperrors.CodeOf(err))
	}
	assert.Equal(t, 10, applied)

	bal, err := svc.Balance(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, bal.Real.IsZero(), bal.Real.String())

	var n int64
	require.NoError(t, db.Model(&models.Transaction{}).Where("reason = ?", ReasonBet).Count(&n).Error)
	assert.Equal(t, int64(10), n)
}

func TestConcurrentDebitsSameRefApplyOnce(t *testing.T) {
	ctx := context.Background()
	svc, db := newService(t)

	_, err := svc.Credit(ctx, Entry{PlayerKey: "p1", Wallet: models.WalletReal, Amount: dec("100"), RefID: "fund"})
	require.NoError(t, err)

	var g errgroup.Group
	for i := 0; i < 20; i++ {
		g.Go(func() error {
			_, err := svc.Debit(ctx, Entry{PlayerKey: "p1", Wallet: models.WalletReal, Amount: dec("10"), Reason: ReasonBet, RefID: "bet-shared"})
			return err
		})
	}
	require.NoError(t, g.Wait())

	bal, err := svc.Balance(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, bal.Real.Equal(dec("90")), bal.Real.String())
	assert.Equal(t, int64(1), countRefs(t, db, "bet-shared"))
}
