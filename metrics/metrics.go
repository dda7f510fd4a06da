package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ledgerOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_mutations_total",
			Help: "Ledger mutations by wallet, direction and outcome",
		},
		[]string{"wallet", "direction", "outcome"},
	)

	roundsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rounds_started_total",
			Help: "Rounds started by wallet",
		},
		[]string{"wallet"},
	)

	roundsSettled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rounds_settled_total",
			Help: "Rounds settled by wallet and result",
		},
		[]string{"wallet", "result"},
	)

	biasFlips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "round_bias_flips_total",
			Help: "Settlements whose outcome was changed by a house bias",
		},
		[]string{"mode"},
	)

	withdrawalsRequested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "withdrawals_requested_total",
			Help: "Withdrawal requests by method and processing mode",
		},
		[]string{"method", "mode"},
	)

	batchMembers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "withdrawal_batch_members_total",
			Help: "Withdrawals assigned to payout batches",
		},
	)

	riskEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_events_total",
			Help: "Risk events recorded by type",
		},
		[]string{"type"},
	)

	jobRuns = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_run_duration_seconds",
			Help:    "Background job duration by job and result",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"job", "result"},
	)
)

func RecordLedger(wallet, direction, outcome string) {
	ledgerOps.WithLabelValues(wallet, direction, outcome).Inc()
}

func RecordRoundStarted(wallet string) { roundsStarted.WithLabelValues(wallet).Inc() }

func RecordRoundSettled(wallet, result string) {
	roundsSettled.WithLabelValues(wallet, result).Inc()
}

func RecordBiasFlip(mode string) { biasFlips.WithLabelValues(mode).Inc() }

func RecordWithdrawal(method, mode string) {
	withdrawalsRequested.WithLabelValues(method, mode).Inc()
}

func RecordBatchMembers(n int) { batchMembers.Add(float64(n)) }

func RecordRiskEvent(eventType string) { riskEvents.WithLabelValues(eventType).Inc() }

// RecordJob observes one background run; result is "success" or "fail".
func RecordJob(job string, err error, seconds float64) {
	res := "success"
	if err != nil {
		res = "fail"
	}
	jobRuns.WithLabelValues(job, res).Observe(seconds)
}
