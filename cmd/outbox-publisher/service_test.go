package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/metrics"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/registry"
)

func pickListEvent(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventPickListCreated,
		AggregateType: enums.AggregatePickList,
		AggregateID:   uuid.New(),
		Payload:       envelopePayload(t),
		AttemptCount:  attempts,
		CreatedAt:     time.Now().Add(-time.Second),
	}
}

func resolvedFor(topic string) *registry.ResolvedEvent {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: topic, AggregateType: enums.AggregatePickList},
		Payload:    &payloads.PickListCreatedEvent{},
	}
}

func TestProcessBatchContinuesAfterTransientFailure(t *testing.T) {
	first, second := pickListEvent(t, 0), pickListEvent(t, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{first, second}}
	pub := &fakePublisher{results: []publishResult{
		fakePublishResult{err: errors.New("transient")},
		fakePublishResult{},
	}}
	h := newHarness(t, repo, pub, &fakeRegistry{resolved: resolvedFor("fulfillment-events")}, nil)

	processed, err := h.service.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, processed)
	require.Equal(t, []uuid.UUID{first.ID}, repo.failed)
	require.Equal(t, []uuid.UUID{second.ID}, repo.published)
	require.Empty(t, h.dlq.entries)

	require.Equal(t, 1.0, h.counter(enums.EventPickListCreated, metrics.OutboxPublished))
	require.Equal(t, 1.0, h.counter(enums.EventPickListCreated, metrics.OutboxRetried))
	require.Equal(t, "fulfillment-events", pub.topics[0])
}

func TestProcessBatchReportsEmptyBatch(t *testing.T) {
	h := newHarness(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{}, nil)

	processed, err := h.service.processBatch(context.Background())
	require.NoError(t, err)
	require.False(t, processed)
}

func TestProcessBatchDeadLettersUndecodableRow(t *testing.T) {
	event := pickListEvent(t, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	reg := &fakeRegistry{err: registry.NewNonRetryableError(errors.New("invalid payload"))}
	h := newHarness(t, repo, &fakePublisher{}, reg, nil)

	processed, err := h.service.processBatch(context.Background())
	require.NoError(t, err)
	require.True(t, processed)

	require.Len(t, h.dlq.entries, 1)
	entry := h.dlq.entries[0]
	require.Equal(t, event.ID, entry.EventID)
	require.JSONEq(t, string(event.Payload), string(entry.Payload))
	require.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)
	require.Equal(t, "invalid payload", *entry.ErrorMessage)
	require.Equal(t, []uuid.UUID{event.ID}, repo.terminal)
	require.Equal(t, 1.0, h.counter(enums.EventPickListCreated, metrics.OutboxDeadLettered))
}

func TestProcessBatchDeadLettersAfterMaxAttempts(t *testing.T) {
	event := pickListEvent(t, 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("deadline exceeded")}}}
	h := newHarness(t, repo, pub, &fakeRegistry{resolved: resolvedFor("fulfillment-events")}, &config.OutboxConfig{
		BatchSize:   1,
		MaxAttempts: 2,
	})

	_, err := h.service.processBatch(context.Background())
	require.NoError(t, err)

	require.Len(t, h.dlq.entries, 1)
	require.Equal(t, enums.OutboxDLQReasonMaxAttempts, h.dlq.entries[0].ErrorReason)
	require.Contains(t, *h.dlq.entries[0].ErrorMessage, "deadline exceeded")
	require.Empty(t, repo.failed)
	require.Equal(t, []uuid.UUID{event.ID}, repo.terminal)
}

func TestProcessBatchDeadLettersMissingPublisher(t *testing.T) {
	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventPickListCompleted,
		AggregateType: enums.AggregatePickList,
		AggregateID:   uuid.New(),
		Payload:       envelopePayload(t),
	}
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	h := newHarness(t, repo, nil, &fakeRegistry{resolved: resolvedFor("unconfigured-topic")}, nil)
	h.service.publisherFactory = func(string) publisher { return nil }

	_, err := h.service.processBatch(context.Background())
	require.NoError(t, err)
	require.Empty(t, repo.published)
	require.Len(t, h.dlq.entries, 1)
	require.Equal(t, enums.OutboxDLQReasonNonRetryable, h.dlq.entries[0].ErrorReason)
}

func TestProcessBatchRollsBackOnBookkeepingError(t *testing.T) {
	repo := &fakeRepo{
		events:     []models.OutboxEvent{pickListEvent(t, 0)},
		publishErr: errors.New("connection reset"),
	}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	h := newHarness(t, repo, pub, &fakeRegistry{resolved: resolvedFor("fulfillment-events")}, nil)

	processed, err := h.service.processBatch(context.Background())
	require.True(t, processed)
	require.ErrorContains(t, err, "connection reset")
}

func TestReportDLQDepthIsThrottled(t *testing.T) {
	h := newHarness(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{}, nil)
	h.dlq.entries = []models.OutboxDLQ{{ErrorReason: enums.OutboxDLQReasonMaxAttempts}}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h.service.now = func() time.Time { return now }

	h.service.reportDLQDepth(context.Background())
	h.service.reportDLQDepth(context.Background())
	require.Equal(t, 1, h.dlq.depthCalls)
	require.Equal(t, 1.0, dlqGauge(t, h.registry, "max_attempts"))

	now = now.Add(dlqDepthInterval)
	h.dlq.depthErr = errors.New("db gone")
	h.service.reportDLQDepth(context.Background())
	h.dlq.depthErr = nil
	h.service.reportDLQDepth(context.Background())
	require.Equal(t, 3, h.dlq.depthCalls, "a failed refresh is retried on the next idle tick")
}

func dlqGauge(t *testing.T, reg *prometheus.Registry, reason string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != "fulfillment_outbox_dlq_rows" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "reason" && l.GetValue() == reason {
					return m.GetGauge().GetValue()
				}
			}
		}
	}
	t.Fatalf("no dlq gauge for %s", reason)
	return 0
}

func TestRunStopsWhenDatabaseUnavailable(t *testing.T) {
	h := newHarness(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{}, nil)
	h.service.db = &fakeDB{pingErr: errors.New("refused")}

	err := h.service.Run(context.Background())
	require.ErrorContains(t, err, "database not ready")
}

func TestRunReturnsOnCancel(t *testing.T) {
	h := newHarness(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, h.service.Run(ctx), context.Canceled)
}

func TestNewServiceRequiresCollaborators(t *testing.T) {
	_, err := NewService(ServiceParams{Config: &config.Config{}, Logger: testLogger()})
	require.Error(t, err)
}

type harness struct {
	t        *testing.T
	service  *Service
	dlq      *fakeDLQRepo
	registry *prometheus.Registry
}

func (h *harness) counter(eventType enums.OutboxEventType, outcome string) float64 {
	h.t.Helper()
	mfs, err := h.registry.Gather()
	require.NoError(h.t, err)
	for _, mf := range mfs {
		if mf.GetName() != "fulfillment_outbox_events_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["event_type"] == string(eventType) && labels["outcome"] == outcome {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func newHarness(t *testing.T, repo outboxRepository, pub publisher, resolver registryResolver, outboxCfg *config.OutboxConfig) *harness {
	t.Helper()
	cfg := config.OutboxConfig{BatchSize: 2, PollIntervalMS: 10, MaxAttempts: 5}
	if outboxCfg != nil {
		cfg = *outboxCfg
	}
	dlq := &fakeDLQRepo{}
	reg := prometheus.NewRegistry()
	service, err := NewService(ServiceParams{
		Config:           &config.Config{Outbox: cfg},
		Logger:           testLogger(),
		DB:               &fakeDB{},
		PubSub:           &fakePubSubClient{},
		Repository:       repo,
		Registry:         resolver,
		PublisherFactory: func(topic string) publisher { return recordTopic(pub, topic) },
		DLQRepository:    dlq,
		Metrics:          metrics.NewOutboxMetrics(reg),
	})
	require.NoError(t, err)
	return &harness{t: t, service: service, dlq: dlq, registry: reg}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard})
}

func envelopePayload(tb testing.TB) json.RawMessage {
	tb.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	})
	require.NoError(tb, err)
	return payload
}

type fakeRepo struct {
	events     []models.OutboxEvent
	published  []uuid.UUID
	failed     []uuid.UUID
	terminal   []uuid.UUID
	publishErr error
}

func (f *fakeRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct{ pingErr error }

func (f *fakeDB) Ping(context.Context) error { return f.pingErr }

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct{}

func (f *fakePubSubClient) Ping(context.Context) error { return nil }

func (f *fakePubSubClient) Publisher(string) *gcppubsub.Publisher { return nil }

type fakePublisher struct {
	results []publishResult
	topics  []string
}

func recordTopic(pub publisher, topic string) publisher {
	if fp, ok := pub.(*fakePublisher); ok && fp != nil {
		fp.topics = append(fp.topics, topic)
		return fp
	}
	return pub
}

func (f *fakePublisher) Publish(context.Context, *gcppubsub.Message) publishResult {
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct{ err error }

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "server-id", f.err
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.resolved == nil {
		return nil, f.err
	}
	resolved := *f.resolved
	resolved.Envelope = outbox.PayloadEnvelope{EventID: event.ID.String(), OccurredAt: time.Now()}
	return &resolved, nil
}

type fakeDLQRepo struct {
	entries    []models.OutboxDLQ
	depthCalls int
	depthErr   error
}

func (f *fakeDLQRepo) InsertTx(_ *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeDLQRepo) Depth(context.Context) (map[enums.OutboxDLQErrorReason]int64, error) {
	f.depthCalls++
	if f.depthErr != nil {
		return nil, f.depthErr
	}
	depth := map[enums.OutboxDLQErrorReason]int64{}
	for _, e := range f.entries {
		depth[e.ErrorReason]++
	}
	return depth, nil
}
