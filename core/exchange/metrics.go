package exchange

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Message outcomes reported by exchange_messages_total.
const (
	OutcomeCompleted = "completed"
	OutcomeExpired   = "expired"
	OutcomeRejected  = "rejected"
	OutcomeOrphaned  = "orphaned"
)

// Metrics holds the Prometheus metrics of an exchange.
type Metrics struct {
	Messages  *prometheus.CounterVec
	InFlight  prometheus.Gauge
	RoundTrip *prometheus.HistogramVec
}

// NewMetrics creates the exchange metrics and registers them on reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Messages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exchange_messages_total",
				Help: "Total number of messages sent through the exchange",
			},
			[]string{"direction", "outcome"}, // outcome: completed, expired, rejected, orphaned
		),
		InFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "exchange_in_flight",
				Help: "Number of messages waiting for a response",
			},
		),
		RoundTrip: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "exchange_round_trip_seconds",
				Help:    "Time from sending a message to receiving its response",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"direction"},
		),
	}
}

func (m *Metrics) observe(dir Direction, outcome string) {
	if m == nil {
		return
	}
	m.Messages.WithLabelValues(dir.String(), outcome).Inc()
}

func (m *Metrics) roundTrip(dir Direction, d time.Duration) {
	if m == nil {
		return
	}
	m.RoundTrip.WithLabelValues(dir.String()).Observe(d.Seconds())
}

func (m *Metrics) inFlight(delta float64) {
	if m == nil {
		return
	}
	m.InFlight.Add(delta)
}
