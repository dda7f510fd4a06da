package risk

import (
	"context"
	"errors"
	"testing"
	"time"

	"casino/models"
	"casino/services/settings"
	"casino/testutil"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var now = time.Date(2026, 6, 1, 15, 30, 0, 0, time.UTC)

func player(t *testing.T, db *gorm.DB, key string, trusted bool) *models.Player {
	t.Helper()
	p := models.Player{
		PlayerKey:   key,
		RealBalance: decimal.Zero,
		DemoBalance: decimal.Zero,
		Status:      models.PlayerActive,
		IsTrusted:   trusted,
	}
	require.NoError(t, db.Create(&p).Error)
	return &p
}

func rounds(t *testing.T, db *gorm.DB, p *models.Player, n int, at time.Time, bet, win int64) {
	t.Helper()
	for i := 0; i < n; i++ {
		finished := at
		r := models.GameRound{
			Model:      gorm.Model{CreatedAt: at},
			RoundID:    uuid.NewString(),
			PlayerID:   p.ID,
			PlayerKey:  p.PlayerKey,
			Wallet:     models.WalletReal,
			BaseBet:    decimal.NewFromInt(bet),
			FinalBet:   decimal.NewFromInt(bet),
			Status:     models.RoundFinished,
			Result:     models.ResultWin,
			WinAmount:  decimal.NewFromInt(win),
			FinishedAt: &finished,
		}
		require.NoError(t, db.Create(&r).Error)
	}
}

func velocitySettings(s *settings.Snapshot) {
	s.AntiFraud.VelocityThreshold = 10
	s.AntiFraud.VelocityWindowSeconds = 600
}

func TestVelocitySweepFlagsAboveThreshold(t *testing.T) {
	db := testutil.NewDB(t)
	m := NewMonitor(db, testutil.Settings(velocitySettings))

	a, b, c, old := player(t, db, "a", false), player(t, db, "b", false), player(t, db, "c", false), player(t, db, "old", false)
	rounds(t, db, a, 11, now.Add(-time.Minute), 1, 0)
	rounds(t, db, b, 10, now.Add(-time.Minute), 1, 0)
	rounds(t, db, c, 15, now.Add(-5*time.Minute), 1, 0)
	rounds(t, db, old, 20, now.Add(-time.Hour), 1, 0)

	res, err := m.VelocitySweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Checked: 2, Flagged: 2}, res)

	events, err := m.Events(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	byPlayer := map[string]string{}
	for _, ev := range events {
		assert.Equal(t, models.RiskVelocity, ev.EventType)
		assert.Equal(t, models.SeverityMedium, ev.Severity)
		byPlayer[ev.PlayerKey] = string(ev.Payload)
	}
	assert.Contains(t, byPlayer["a"], `"count":11`)
	assert.Contains(t, byPlayer["c"], `"count":15`)
	assert.Contains(t, byPlayer["c"], `"threshold":10`)

	res, err = m.VelocitySweep(context.Background(), now.Add(time.Second))
	require.NoError(t, err)
	assert.Zero(t, res.Flagged)
	events, err = m.Events(context.Background(), "", 0)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestVelocitySweepDisabled(t *testing.T) {
	db := testutil.NewDB(t)
	m := NewMonitor(db, testutil.Settings(func(s *settings.Snapshot) {
		velocitySettings(s)
		s.AntiFraud.VelocityEnabled = false
	}))
	rounds(t, db, player(t, db, "a", false), 30, now, 1, 0)

	res, err := m.VelocitySweep(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, res)
}

func TestVelocitySweepIsolatesFailures(t *testing.T) {
	db := testutil.NewDB(t)
	m := NewMonitor(db, testutil.Settings(velocitySettings))
	m.record = func(tx *gorm.DB, ev Event) (bool, error) {
		if ev.PlayerKey == "a" {
			return false, errors.New("disk full")
		}
		return Record(tx, ev)
	}
	rounds(t, db, player(t, db, "a", false), 12, now, 1, 0)
	rounds(t, db, player(t, db, "b", false), 12, now, 1, 0)

	res, err := m.VelocitySweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Checked: 2, Flagged: 1, Failed: 1}, res)

	events, err := m.Events(context.Background(), "b", 10)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestWinCapSweepEscalates(t *testing.T) {
	db := testutil.NewDB(t)
	m := NewMonitor(db, testutil.Settings(nil))
	ctx := context.Background()

	winner := player(t, db, "winner", false)
	trusted := player(t, db, "trusted", true)
	modest := player(t, db, "modest", false)
	lucky := player(t, db, "lucky-yesterday", false)
	rounds(t, db, winner, 3, now.Add(-time.Hour), 1000, 5000)
	rounds(t, db, trusted, 3, now.Add(-time.Hour), 1000, 5000)
	rounds(t, db, modest, 3, now.Add(-time.Hour), 1000, 2000)
	rounds(t, db, lucky, 3, now.Add(-30*time.Hour), 1000, 5000)

	res, err := m.WinCapSweep(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Checked: 3, Flagged: 2}, res)

	var got models.Player
	require.NoError(t, db.First(&got, winner.ID).Error)
	assert.Equal(t, models.PlayerLimited, got.Status)
	require.NoError(t, db.First(&got, trusted.ID).Error)
	assert.Equal(t, models.PlayerActive, got.Status)
	require.NoError(t, db.First(&got, modest.ID).Error)
	assert.Equal(t, models.PlayerActive, got.Status)

	events, err := m.Events(ctx, "winner", 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, models.SeverityHigh, events[0].Severity)
	assert.Contains(t, string(events[0].Payload), `"profit":"12000"`)

	res, err = m.WinCapSweep(ctx, now.Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, res.Flagged)
}

func TestWinCapSweepIgnoresDemoAndDisabled(t *testing.T) {
	db := testutil.NewDB(t)
	p := player(t, db, "demo", false)
	rounds(t, db, p, 1, now, 10, 20000)
	require.NoError(t, db.Model(&models.GameRound{}).Where("player_id = ?", p.ID).Update("wallet", models.WalletDemo).Error)

	res, err := NewMonitor(db, testutil.Settings(nil)).WinCapSweep(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, res.Checked)

	off := NewMonitor(db, testutil.Settings(func(s *settings.Snapshot) { s.AntiFraud.WinCapEnabled = false }))
	res, err = off.WinCapSweep(context.Background(), now)
	require.NoError(t, err)
	assert.Zero(t, res)
}

func TestRecordDedup(t *testing.T) {
	db := testutil.NewDB(t)
	ev := Event{PlayerKey: "a", Type: models.RiskHouseBias, Severity: models.SeverityLow, DedupKey: "k"}

	created, err := Record(db, ev)
	require.NoError(t, err)
	assert.True(t, created)
	created, err = Record(db, ev)
	require.NoError(t, err)
	assert.False(t, created)

	ev.DedupKey = ""
	for i := 0; i < 2; i++ {
		created, err = Record(db, ev)
		require.NoError(t, err)
		assert.True(t, created)
	}
	var n int64
	require.NoError(t, db.Model(&models.RiskEvent{}).Count(&n).Error)
	assert.EqualValues(t, 3, n)
}
