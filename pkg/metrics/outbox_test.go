package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestOutboxMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewOutboxMetrics(reg)

	m.IncEvent("pick_list_created", OutboxPublished)
	m.IncEvent("pick_list_created", OutboxPublished)
	m.IncEvent("batch_processed", OutboxDeadLettered)
	now := time.Now()
	m.ObserveLag(now.Add(-2*time.Second), now)
	m.ObserveLag(time.Time{}, now)

	require.Equal(t, 2.0, testutil.ToFloat64(m.events.WithLabelValues("pick_list_created", OutboxPublished)))
	require.Equal(t, 1.0, testutil.ToFloat64(m.events.WithLabelValues("batch_processed", OutboxDeadLettered)))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	lag := findMetricFamily(mfs, "fulfillment_outbox_publish_lag_seconds")
	require.NotNil(t, lag)
	require.Equal(t, uint64(1), lag.GetMetric()[0].GetHistogram().GetSampleCount())

	m.SetDLQDepth("max_attempts", 4)
	m.SetDLQDepth("max_attempts", 1)
	require.Equal(t, 1.0, testutil.ToFloat64(m.dlqDepth.WithLabelValues("max_attempts")))
}

func TestOutboxMetricsNilSafe(t *testing.T) {
	var m *OutboxMetrics
	m.IncEvent("x", OutboxRetried)
	m.ObserveLag(time.Now(), time.Now())
	m.SetDLQDepth("non_retryable", 3)
}
