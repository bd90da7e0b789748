package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttemptsTotal tracks full-login attempts by outcome
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeup_auth_attempts_total",
			Help: "Total number of full-login attempts",
		},
		[]string{"outcome"},
	)

	// SessionRestoresTotal tracks authentications satisfied from a saved session
	SessionRestoresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tradeup_session_restores_total",
			Help: "Total number of authentications served from a persisted session",
		},
	)

	// LedgerCount mirrors the persisted volume counters
	LedgerCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tradeup_ledger_count",
			Help: "Current authentication attempt count per window",
		},
		[]string{"window"},
	)

	// PacingDelay tracks the human-paced delays applied before actions
	PacingDelay = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tradeup_pacing_delay_seconds",
			Help:    "Pacing delay applied before an externally observable action",
			Buckets: []float64{1, 5, 15, 30, 45, 60, 90, 120},
		},
		[]string{"operation"},
	)

	// CoordinatorConnected is 1 while the coordinator channel is open
	CoordinatorConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tradeup_coordinator_connected",
			Help: "Whether the game coordinator channel is connected",
		},
	)

	// TradeUpsTotal tracks trade-up executions by outcome
	TradeUpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tradeup_tradeups_total",
			Help: "Total number of trade-up executions",
		},
		[]string{"outcome"},
	)
)
