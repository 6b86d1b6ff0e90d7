package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outbox dispatch outcomes.
const (
	OutboxPublished    = "published"
	OutboxRetried      = "retried"
	OutboxDeadLettered = "dead_lettered"
)

// OutboxMetrics follows rows from the outbox table to Pub/Sub.
type OutboxMetrics struct {
	events   *prometheus.CounterVec
	lag      prometheus.Histogram
	dlqDepth *prometheus.GaugeVec
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_outbox_events_total",
		Help: "Outbox rows handled by the publisher, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	lag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "fulfillment_outbox_publish_lag_seconds",
		Help:    "Time between an outbox row being written and being published.",
		Buckets: []float64{0.1, 0.5, 1, 5, 30, 120, 600},
	})
	dlqDepth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fulfillment_outbox_dlq_rows",
		Help: "Rows currently in the outbox dead letter table, by reason.",
	}, []string{"reason"})
	reg.MustRegister(events, lag, dlqDepth)
	return &OutboxMetrics{events: events, lag: lag, dlqDepth: dlqDepth}
}

func (m *OutboxMetrics) IncEvent(eventType, outcome string) {
	if m == nil || m.events == nil {
		return
	}
	m.events.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

// ObserveLag records how long a row waited before it was published.
func (m *OutboxMetrics) ObserveLag(createdAt, publishedAt time.Time) {
	if m == nil || m.lag == nil || createdAt.IsZero() {
		return
	}
	m.lag.Observe(publishedAt.Sub(createdAt).Seconds())
}

func (m *OutboxMetrics) SetDLQDepth(reason string, rows int64) {
	if m == nil || m.dlqDepth == nil {
		return
	}
	m.dlqDepth.WithLabelValues(normalizeLabel(reason)).Set(float64(rows))
}
