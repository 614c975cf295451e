package service

import "github.com/prometheus/client_golang/prometheus"

var (
	roundsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rounds_total",
			Help: "Rounds finished, by outcome",
		},
		[]string{"outcome"},
	)
	reconcileActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_actions_total",
			Help: "Recovery strategies run by the reconciliation policy",
		},
		[]string{"strategy", "result"},
	)
	payoutsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payout_amount_total",
			Help: "Sum of winnings credited to sessions",
		},
	)
	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Connected sessions",
		},
	)
)

func init() {
	prometheus.MustRegister(roundsTotal)
	prometheus.MustRegister(reconcileActions)
	prometheus.MustRegister(payoutsTotal)
	prometheus.MustRegister(activeSessions)
}
