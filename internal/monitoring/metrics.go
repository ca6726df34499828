package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Market data metrics
	barsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalbot_bars_total",
			Help: "Total number of closed bars processed",
		},
		[]string{"symbol", "timeframe"},
	)

	queueDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "signalbot_queue_dropped_total",
			Help: "Bar events dropped because the queue was full",
		},
	)

	currentPrice = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "signalbot_current_price",
			Help: "Last closed bar price per symbol",
		},
		[]string{"symbol"},
	)

	// Strategy metrics
	signalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalbot_signals_total",
			Help: "Signals produced per strategy and direction",
		},
		[]string{"strategy", "signal"},
	)

	// Position metrics
	positionsOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "signalbot_positions_open",
			Help: "Number of currently open positions",
		},
	)

	tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalbot_trades_total",
			Help: "Closed positions per symbol and exit reason",
		},
		[]string{"symbol", "reason"},
	)

	// Error metrics
	errorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signalbot_errors_total",
			Help: "Total number of errors by type",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(barsTotal)
	prometheus.MustRegister(queueDroppedTotal)
	prometheus.MustRegister(currentPrice)
	prometheus.MustRegister(signalsTotal)
	prometheus.MustRegister(positionsOpen)
	prometheus.MustRegister(tradesTotal)
	prometheus.MustRegister(errorsTotal)
}

// RecordBar counts a processed closed bar and updates the price gauge.
func RecordBar(symbol, timeframe string, close float64) {
	barsTotal.WithLabelValues(symbol, timeframe).Inc()
	currentPrice.WithLabelValues(symbol).Set(close)
}

// RecordQueueDrop counts a bar event dropped under backpressure.
func RecordQueueDrop() {
	queueDroppedTotal.Inc()
}

// RecordSignal counts a produced signal.
func RecordSignal(strategy, signal string) {
	signalsTotal.WithLabelValues(strategy, signal).Inc()
}

// SetOpenPositions updates the open position gauge.
func SetOpenPositions(n int) {
	positionsOpen.Set(float64(n))
}

// RecordTrade counts a closed position.
func RecordTrade(symbol, reason string) {
	tradesTotal.WithLabelValues(symbol, reason).Inc()
}

// RecordError counts an error by type.
func RecordError(errorType string) {
	errorsTotal.WithLabelValues(errorType).Inc()
}
