// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the trading engine.
type Metrics struct {
	// Quote metrics
	QuotesTotal *prometheus.CounterVec // side, result

	// Trade metrics
	TradesTotal     *prometheus.CounterVec // side, result
	TradeVolume     *prometheus.CounterVec // side
	TradeDuration   prometheus.Histogram
	FeesCollected   prometheus.Counter
	LedgerConflicts prometheus.Counter

	// Graduation metrics
	GraduationSignals  prometheus.Counter
	GraduationsTotal   *prometheus.CounterVec // result
	HoldersSnapshotted prometheus.Counter
	PendingGraduations prometheus.Gauge

	// Payout metrics
	PayoutsCreated   prometheus.Counter
	PayoutRetries    prometheus.Counter
	PayoutsAbandoned prometheus.Counter

	// Notify metrics
	StreamClients prometheus.Gauge

	// API metrics
	HTTPRequestDuration *prometheus.HistogramVec // route
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "curve_engine"
	}

	return &Metrics{
		QuotesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quote",
			Name:      "requests_total",
			Help:      "Total number of quote requests by side and result",
		}, []string{"side", "result"}),

		TradesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "trades_total",
			Help:      "Total number of trade executions by side and result",
		}, []string{"side", "result"}),
		TradeVolume: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "trade_volume_reserve",
			Help:      "Cumulative gross trade volume in reserve units",
		}, []string{"side"}),
		TradeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "trade_duration_seconds",
			Help:      "Trade execution latency including the ledger commit",
			Buckets:   prometheus.DefBuckets,
		}),
		FeesCollected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "fees_collected_reserve",
			Help:      "Cumulative trading fees in reserve units",
		}),
		LedgerConflicts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "ledger_conflicts_total",
			Help:      "Total number of optimistic-concurrency conflicts on commit",
		}),

		GraduationSignals: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graduation",
			Name:      "signals_total",
			Help:      "Total number of post-trade eligibility signals",
		}),
		GraduationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graduation",
			Name:      "graduations_total",
			Help:      "Total number of graduation attempts by result",
		}, []string{"result"}),
		HoldersSnapshotted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "graduation",
			Name:      "holders_snapshotted_total",
			Help:      "Total number of holder balances captured in snapshots",
		}),
		PendingGraduations: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "graduation",
			Name:      "pending_events",
			Help:      "Graduation events awaiting downstream completion",
		}),

		PayoutsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payout",
			Name:      "created_total",
			Help:      "Total number of fee payout rows created",
		}),
		PayoutRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payout",
			Name:      "retries_total",
			Help:      "Total number of payout delivery retries",
		}),
		PayoutsAbandoned: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payout",
			Name:      "abandoned_total",
			Help:      "Total number of payouts abandoned after max attempts",
		}),

		StreamClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "stream_clients",
			Help:      "Currently connected websocket stream clients",
		}),

		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
