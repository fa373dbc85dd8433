// Package metrics defines the Prometheus series the scan engine and
// dashboard expose. Grounded on chidi150c-coinbase/metrics.go's
// registered-package-var style; the teacher carries
// prometheus/client_golang in go.mod but never imports it anywhere,
// so this port is the first to actually wire the dependency in.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// ScanCyclesTotal counts every completed ScanEngine tick.
	ScanCyclesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "marketscan_scan_cycles_total",
		Help: "Total scan cycles completed",
	})

	// ScanCycleDuration observes how long one scan tick's pipeline run took.
	ScanCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "marketscan_scan_cycle_duration_seconds",
		Help:    "Duration of a single scan cycle's pipeline run",
		Buckets: prometheus.DefBuckets,
	})

	// SignalsGeneratedTotal counts FinalSignals emitted, by strategy.
	SignalsGeneratedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "marketscan_signals_generated_total",
		Help: "Final signals emitted, by strategy",
	}, []string{"strategy"})

	// SignalsSuppressedTotal counts NewsSentimentGate suppressions, by reason.
	SignalsSuppressedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "marketscan_signals_suppressed_total",
		Help: "Candidates suppressed by the news sentiment gate, by reason",
	}, []string{"reason"})

	// TradesClosedTotal counts ExitMonitor closes, by exit reason.
	TradesClosedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "marketscan_trades_closed_total",
		Help: "Trades closed by the exit monitor, by reason",
	}, []string{"reason"})

	// ActiveTradeCount gauges how many trades are currently open.
	ActiveTradeCount = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "marketscan_active_trade_count",
		Help: "Currently open trades",
	})

	// CircuitBreakerActive gauges whether the daily kill switch is tripped.
	CircuitBreakerActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "marketscan_circuit_breaker_active",
		Help: "1 if the circuit breaker is currently tripped",
	})

	// ConsecutiveScanErrors gauges the ScanEngine's current error streak.
	ConsecutiveScanErrors = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "marketscan_consecutive_scan_errors",
		Help: "Consecutive scan cycle failures since the last success",
	})
)

// Register adds every series to the given registerer. Panics on
// duplicate registration, matching prometheus.MustRegister's contract.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		ScanCyclesTotal, ScanCycleDuration, SignalsGeneratedTotal,
		SignalsSuppressedTotal, TradesClosedTotal, ActiveTradeCount,
		CircuitBreakerActive, ConsecutiveScanErrors,
	)
}
