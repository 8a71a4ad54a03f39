// Package metrics exposes prometheus collectors for settlement operations.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

type Settlement struct {
	total    *prometheus.CounterVec
	duration *prometheus.HistogramVec
	volume   *prometheus.CounterVec
}

// NewSettlement registers the settlement collectors on reg. A nil registerer
// yields a recorder that drops every observation.
func NewSettlement(reg prometheus.Registerer) *Settlement {
	if reg == nil {
		return &Settlement{}
	}
	total := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plaxrec",
		Name:      "settlement_total",
		Help:      "Settlement operations by outcome.",
	}, []string{"operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "plaxrec",
		Name:      "settlement_duration_seconds",
		Help:      "Settlement operation latency in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	volume := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "plaxrec",
		Name:      "settlement_volume",
		Help:      "Value moved by committed settlements, per asset.",
	}, []string{"operation", "asset"})
	reg.MustRegister(total, duration, volume)
	return &Settlement{total: total, duration: duration, volume: volume}
}

func (m *Settlement) Observe(operation, outcome string, elapsed time.Duration) {
	if m == nil || m.total == nil {
		return
	}
	op := normalizeLabel(operation)
	m.total.WithLabelValues(op, normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// AddVolume records a committed amount. Non-positive amounts are ignored.
func (m *Settlement) AddVolume(operation, asset string, amount decimal.Decimal) {
	if m == nil || m.volume == nil || !amount.IsPositive() {
		return
	}
	m.volume.WithLabelValues(normalizeLabel(operation), normalizeLabel(asset)).Add(amount.InexactFloat64())
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
