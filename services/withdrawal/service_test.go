package withdrawal

import (
	"context"
	"strings"
	"testing"

	"casino/apperrors"
	"casino/models"
	"casino/services/ledger"
	"casino/services/settings"
	"casino/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestComputeFees(t *testing.T) {
	fee := settings.MethodFee{PlatformPercent: d("0.02"), ProviderPercent: d("0.01")}

	f := ComputeFees(d("500"), fee, d("0.02"), false)
	assert.True(t, d("10").Equal(f.Platform))
	assert.True(t, d("5").Equal(f.Provider))
	assert.True(t, d("485").Equal(f.Net))

	f = ComputeFees(d("500"), fee, d("0.02"), true)
	assert.True(t, d("20").Equal(f.Platform))
	assert.True(t, d("5").Equal(f.Provider))
	assert.True(t, d("475").Equal(f.Net))

	f = ComputeFees(d("33.33"), fee, decimal.Zero, false)
	assert.Equal(t, "0.67", f.Platform.StringFixed(2))
	assert.Equal(t, "0.33", f.Provider.StringFixed(2))
	assert.Equal(t, "32.33", f.Net.StringFixed(2))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(models.WithdrawalPending, models.WithdrawalApproved))
	assert.True(t, CanTransition(models.WithdrawalApproved, models.WithdrawalPaid))
	assert.True(t, CanTransition(models.WithdrawalProcessing, models.WithdrawalFailed))
	assert.False(t, CanTransition(models.WithdrawalPending, models.WithdrawalPaid))
	assert.False(t, CanTransition(models.WithdrawalPaid, models.WithdrawalPending))
	assert.False(t, CanTransition(models.WithdrawalRejected, models.WithdrawalApproved))
}

type fixture struct {
	db     *gorm.DB
	ledger *ledger.Service
	svc    *Service
}

func newFixture(t *testing.T, fn func(s *settings.Snapshot)) *fixture {
	db := testutil.NewDB(t)
	l := ledger.New(db)
	return &fixture{db: db, ledger: l, svc: New(db, l, testutil.Settings(fn))}
}

func (f *fixture) fund(t *testing.T, key, amount string) {
	t.Helper()
	_, err := f.ledger.Credit(context.Background(), ledger.Entry{
		PlayerKey: key, Wallet: models.WalletReal, Amount: d(amount), Reason: ledger.ReasonDeposit,
	})
	require.NoError(t, err)
}

func (f *fixture) real(t *testing.T, key string) decimal.Decimal {
	t.Helper()
	b, err := f.ledger.Balance(context.Background(), key)
	require.NoError(t, err)
	return b.Real
}

func usdt(key, amount string) Request {
	return Request{PlayerKey: key, Amount: d(amount), Method: "USDT", Destination: "UQ-wallet"}
}

func TestRequestDebitsAndCreatesPending(t *testing.T) {
	f := newFixture(t, nil)
	f.fund(t, "p1", "800")

	w, err := f.svc.Request(context.Background(), usdt("p1", "500"))
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalPending, w.Status)
	assert.Equal(t, models.ModeBatch, w.ProcessingMode)
	assert.Equal(t, "usdt", w.Method)
	assert.Zero(t, w.Priority)
	assert.True(t, d("485").Equal(w.NetAmount))
	assert.False(t, w.RequiresReview)
	assert.False(t, w.KYCRequired)
	assert.True(t, d("300").Equal(f.real(t, "p1")))

	var tx models.Transaction
	require.NoError(t, f.db.Where("ref_id = ?", "withdrawal:"+w.PublicID+":debit").First(&tx).Error)
	assert.True(t, d("-500").Equal(tx.Amount))
	assert.Equal(t, ledger.ReasonWithdraw, tx.Reason)
}

func TestRequestUrgent(t *testing.T) {
	f := newFixture(t, nil)
	f.fund(t, "p1", "500")

	req := usdt("p1", "500")
	req.Urgent = true
	w, err := f.svc.Request(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, models.ModeUrgent, w.ProcessingMode)
	assert.Equal(t, 10, w.Priority)
	assert.True(t, w.IsUrgent)
	assert.True(t, d("20").Equal(w.PlatformFee))
	assert.True(t, d("475").Equal(w.NetAmount))
}

func TestRequestInsufficientFundsCreatesNothing(t *testing.T) {
	f := newFixture(t, nil)
	f.fund(t, "p1", "100")

	_, err := f.svc.Request(context.Background(), usdt("p1", "500"))
	assert.True(t, apperrors.Is(err, apperrors.KindInsufficientFunds))

	var n int64
	require.NoError(t, f.db.Model(&models.Withdrawal{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.True(t, d("100").Equal(f.real(t, "p1")))
}

func TestRequestValidation(t *testing.T) {
	f := newFixture(t, func(s *settings.Snapshot) {
		s.Payouts.UrgentAllowed = false
		s.Commission.Withdraw["card"] = settings.MethodFee{PlatformPercent: d("0.6"), ProviderPercent: d("0.5")}
		s.Commission.Withdraw["wire"] = settings.MethodFee{Disabled: true}
	})
	f.fund(t, "p1", "1000")

	urgent := usdt("p1", "50")
	urgent.Urgent = true
	noDest := usdt("p1", "50")
	noDest.Destination = " "

	cases := []struct {
		req  Request
		code string
	}{
		{Request{PlayerKey: "p1", Amount: d("50"), Method: "paypal", Destination: "x"}, "UNSUPPORTED_METHOD"},
		{Request{PlayerKey: "p1", Amount: d("50"), Method: "wire", Destination: "x"}, "UNSUPPORTED_METHOD"},
		{usdt("p1", "0"), "INVALID_AMOUNT"},
		{noDest, "DESTINATION_REQUIRED"},
		{usdt("p1", "5"), "AMOUNT_BELOW_MINIMUM"},
		{urgent, "URGENT_NOT_ALLOWED"},
		{Request{PlayerKey: "p1", Amount: d("50"), Method: "card", Destination: "4111"}, "NET_AMOUNT_NOT_POSITIVE"},
	}
	for _, tc := range cases {
		_, err := f.svc.Request(context.Background(), tc.req)
		require.Error(t, err, tc.code)
		assert.Equal(t, tc.code, apperrors.CodeOf(err))
		assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	}
	assert.True(t, d("1000").Equal(f.real(t, "p1")))
}

func TestRequestReviewFlags(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	for _, key := range []string{"plain", "trusted", "limited"} {
		f.fund(t, key, "10000")
	}
	_, err := f.ledger.SetTrusted(ctx, "trusted", true)
	require.NoError(t, err)
	_, err = f.ledger.SetStatus(ctx, "limited", models.PlayerLimited, "win cap")
	require.NoError(t, err)

	w, err := f.svc.Request(ctx, usdt("plain", "1000"))
	require.NoError(t, err)
	assert.True(t, w.RequiresReview)

	w, err = f.svc.Request(ctx, usdt("trusted", "5000"))
	require.NoError(t, err)
	assert.False(t, w.RequiresReview)
	assert.True(t, w.KYCRequired)

	w, err = f.svc.Request(ctx, usdt("limited", "20"))
	require.NoError(t, err)
	assert.True(t, w.RequiresReview)
}

func TestRequestBlockedPlayer(t *testing.T) {
	f := newFixture(t, nil)
	f.fund(t, "p1", "1000")
	_, err := f.ledger.SetStatus(context.Background(), "p1", models.PlayerBanned, "fraud")
	require.NoError(t, err)

	_, err = f.svc.Request(context.Background(), usdt("p1", "100"))
	assert.Equal(t, "PLAYER_BLOCKED", apperrors.CodeOf(err))
}

func TestTransitions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.fund(t, "p1", "1000")

	w, err := f.svc.Request(ctx, usdt("p1", "500"))
	require.NoError(t, err)

	_, err = f.svc.Transition(ctx, w.PublicID, models.WithdrawalPaid, "", "admin")
	assert.Equal(t, "INVALID_TRANSITION", apperrors.CodeOf(err))

	w, err = f.svc.Transition(ctx, w.PublicID, models.WithdrawalApproved, "looks fine", "admin")
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalApproved, w.Status)
	assert.Equal(t, "admin", w.ReviewedBy)

	w, err = f.svc.Transition(ctx, w.PublicID, models.WithdrawalPaid, "tx 0xabc", "admin")
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalPaid, w.Status)
	assert.NotNil(t, w.ProcessedAt)
	assert.Len(t, strings.Split(w.Note, "\n"), 2)
	assert.Contains(t, w.Note, "approved->paid: tx 0xabc")

	_, err = f.svc.Transition(ctx, w.PublicID, models.WithdrawalFailed, "", "admin")
	assert.Equal(t, "INVALID_TRANSITION", apperrors.CodeOf(err))
	assert.True(t, d("500").Equal(f.real(t, "p1")))

	_, err = f.svc.Transition(ctx, "missing", models.WithdrawalApproved, "", "admin")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
	_, err = f.svc.Transition(ctx, w.PublicID, "lost", "", "admin")
	assert.Equal(t, "INVALID_STATUS", apperrors.CodeOf(err))
}

func TestRejectRefundsOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.fund(t, "p1", "1000")

	w, err := f.svc.Request(ctx, usdt("p1", "400"))
	require.NoError(t, err)
	assert.True(t, d("600").Equal(f.real(t, "p1")))

	_, err = f.svc.Transition(ctx, w.PublicID, models.WithdrawalRejected, "kyc missing", "admin")
	require.NoError(t, err)
	assert.True(t, d("1000").Equal(f.real(t, "p1")))

	_, err = f.svc.Transition(ctx, w.PublicID, models.WithdrawalRejected, "", "admin")
	assert.Error(t, err)
	assert.True(t, d("1000").Equal(f.real(t, "p1")))
}

func TestFailedAfterApprovalRefunds(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.fund(t, "p1", "1000")

	w, err := f.svc.Request(ctx, usdt("p1", "400"))
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, w.PublicID, models.WithdrawalApproved, "", "admin")
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, w.PublicID, models.WithdrawalFailed, "provider down", "admin")
	require.NoError(t, err)
	assert.True(t, d("1000").Equal(f.real(t, "p1")))
}

func TestOverrideMovesBackwardsWithoutMoney(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.fund(t, "p1", "1000")

	w, err := f.svc.Request(ctx, usdt("p1", "400"))
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, w.PublicID, models.WithdrawalApproved, "", "admin")
	require.NoError(t, err)

	w, err = f.svc.Override(ctx, w.PublicID, models.WithdrawalPending, "reopen", "root")
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalPending, w.Status)
	assert.Contains(t, w.Note, "root override approved->pending: reopen")
	assert.True(t, d("600").Equal(f.real(t, "p1")))
}

func TestOverrideOutOfRejectedDebitsAgain(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.fund(t, "p1", "1000")

	w, err := f.svc.Request(ctx, usdt("p1", "400"))
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, w.PublicID, models.WithdrawalRejected, "", "admin")
	require.NoError(t, err)
	assert.True(t, d("1000").Equal(f.real(t, "p1")))

	_, err = f.svc.Override(ctx, w.PublicID, models.WithdrawalApproved, "mistake", "root")
	require.NoError(t, err)
	assert.True(t, d("600").Equal(f.real(t, "p1")))

	w, err = f.svc.Transition(ctx, w.PublicID, models.WithdrawalPaid, "", "admin")
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalPaid, w.Status)
	assert.True(t, d("600").Equal(f.real(t, "p1")))

	var n int64
	require.NoError(t, f.db.Model(&models.Transaction{}).
		Where("ref_id = ?", "withdrawal:"+w.PublicID+":reopen:1").Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestOverrideReopenNeedsFunds(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.fund(t, "p1", "1000")

	w, err := f.svc.Request(ctx, usdt("p1", "400"))
	require.NoError(t, err)
	_, err = f.svc.Transition(ctx, w.PublicID, models.WithdrawalRejected, "", "admin")
	require.NoError(t, err)
	_, err = f.ledger.Debit(ctx, ledger.Entry{PlayerKey: "p1", Wallet: models.WalletReal, Amount: d("700"), Reason: ledger.ReasonBet})
	require.NoError(t, err)

	_, err = f.svc.Override(ctx, w.PublicID, models.WithdrawalApproved, "mistake", "root")
	assert.Equal(t, "INSUFFICIENT_FUNDS", apperrors.CodeOf(err))

	got, err := f.svc.Get(ctx, w.PublicID)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalRejected, got.Status)
	assert.True(t, d("300").Equal(f.real(t, "p1")))
}

func TestOverrideCyclesRefundEachTime(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.fund(t, "p1", "1000")

	w, err := f.svc.Request(ctx, usdt("p1", "400"))
	require.NoError(t, err)
	_, err = f.svc.Override(ctx, w.PublicID, models.WithdrawalRejected, "dup", "root")
	require.NoError(t, err)
	assert.True(t, d("1000").Equal(f.real(t, "p1")))

	_, err = f.svc.Override(ctx, w.PublicID, models.WithdrawalApproved, "not a dup", "root")
	require.NoError(t, err)
	assert.True(t, d("600").Equal(f.real(t, "p1")))

	_, err = f.svc.Transition(ctx, w.PublicID, models.WithdrawalFailed, "chain error", "admin")
	require.NoError(t, err)
	assert.True(t, d("1000").Equal(f.real(t, "p1")))

	_, err = f.svc.Override(ctx, w.PublicID, models.WithdrawalRejected, "", "root")
	require.NoError(t, err)
	assert.True(t, d("1000").Equal(f.real(t, "p1")), "rejected and failed both hold the refund")
}

func TestConcurrentRejectRefundsOnce(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.fund(t, "p1", "1000")

	w, err := f.svc.Request(ctx, usdt("p1", "400"))
	require.NoError(t, err)

	var g errgroup.Group
	errs := make([]error, 5)
	for i := range errs {
		g.Go(func() error {
			_, errs[i] = f.svc.Transition(ctx, w.PublicID, models.WithdrawalRejected, "", "admin")
			return nil
		})
	}
	require.NoError(t, g.Wait())

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.Equal(t, "INVALID_TRANSITION", apperrors.CodeOf(err))
	}
	assert.Equal(t, 1, ok)
	assert.True(t, d("1000").Equal(f.real(t, "p1")))
}

func TestList(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.fund(t, "p1", "1000")
	f.fund(t, "p2", "1000")

	_, err := f.svc.Request(ctx, usdt("p1", "100"))
	require.NoError(t, err)
	urgent := usdt("p2", "100")
	urgent.Urgent = true
	u, err := f.svc.Request(ctx, urgent)
	require.NoError(t, err)
	_, err = f.svc.Request(ctx, usdt("p2", "50"))
	require.NoError(t, err)

	rows, total, err := f.svc.List(ctx, Filter{})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Equal(t, u.PublicID, rows[0].PublicID)

	rows, total, err = f.svc.List(ctx, Filter{PlayerKey: "p2", Mode: models.ModeBatch})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, rows, 1)
	assert.True(t, d("50").Equal(rows[0].Amount))

	rows, _, err = f.svc.List(ctx, Filter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	got, err := f.svc.Get(ctx, u.PublicID)
	require.NoError(t, err)
	assert.True(t, got.IsUrgent)
}
