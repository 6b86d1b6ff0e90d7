package worker

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/fulfillment-backend/internal/analytics/router"
	"github.com/angelmondragon/fulfillment-backend/internal/analytics/types"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
)

const consumerName = "analytics"

type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope) error
}

type HandlerFunc func(ctx context.Context, envelope types.Envelope) error

func (fn HandlerFunc) Handle(ctx context.Context, envelope types.Envelope) error {
	return fn(ctx, envelope)
}

// processor is the part of idempotency.Manager the worker uses.
type processor interface {
	ProcessOnce(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error)
}

// Service feeds fulfillment events from the analytics subscription into a
// Handler, once per event id.
type Service struct {
	subscription *gcppubsub.Subscriber
	handler      Handler
	once         processor
	logg         *logger.Logger
}

func NewService(subscription *gcppubsub.Subscriber, handler Handler, once processor, logg *logger.Logger) (*Service, error) {
	switch {
	case subscription == nil:
		return nil, errors.New("analytics subscription is required")
	case handler == nil:
		return nil, errors.New("analytics handler is required")
	case once == nil:
		return nil, errors.New("idempotency manager is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}
	return &Service{subscription: subscription, handler: handler, once: once, logg: logg}, nil
}

type verdict int

const (
	ack verdict = iota
	nack
)

func (s *Service) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		if s.process(ctx, msg.ID, msg.Attributes, msg.Data) == nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// process acks anything that can never succeed (bad envelopes, untracked
// event types) and nacks transient failures so Pub/Sub redelivers.
func (s *Service) process(ctx context.Context, messageID string, attrs map[string]string, data []byte) verdict {
	ctx = s.logg.WithField(ctx, "message_id", messageID)

	env, err := decodeEnvelope(attrs, data)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "analytics.envelope_rejected")
		return ack
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":     env.EventID,
		"event_type":   env.EventType,
		"aggregate_id": env.AggregateID,
	})
	eventID, err := uuid.Parse(env.EventID)
	if err != nil {
		s.logg.Warn(ctx, "analytics.event_id_invalid")
		return ack
	}

	handled, err := s.once.ProcessOnce(ctx, consumerName, eventID, func(ctx context.Context) error {
		return s.handler.Handle(ctx, *env)
	})
	switch {
	case errors.Is(err, router.ErrUnsupportedEventType):
		s.logg.Debug(ctx, "analytics.event_untracked")
		return ack
	case errors.Is(err, router.ErrMalformedPayload):
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "analytics.payload_rejected")
		return ack
	case err != nil:
		s.logg.Error(ctx, "analytics.event_failed", err)
		return nack
	case !handled:
		s.logg.Info(ctx, "analytics.event_duplicate")
	default:
		s.logg.Info(ctx, "analytics.event_handled")
	}
	return ack
}

// decodeEnvelope combines the stored outbox envelope with the routing
// attributes the publisher sets. Envelope fields win over attributes.
func decodeEnvelope(attrs map[string]string, data []byte) (*types.Envelope, error) {
	var stored outbox.PayloadEnvelope
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("decode payload envelope: %w", err)
	}
	attr := func(key string) string { return strings.TrimSpace(attrs[key]) }

	eventType, err := enums.ParseOutboxEventType(attr("event_type"))
	if err != nil {
		return nil, fmt.Errorf("event_type: %w", err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(attr("aggregate_type"))
	if err != nil {
		return nil, fmt.Errorf("aggregate_type: %w", err)
	}
	aggregateID := attr("aggregate_id")
	if aggregateID == "" {
		return nil, errors.New("aggregate_id missing")
	}

	eventID := cmp.Or(strings.TrimSpace(stored.EventID), attr("event_id"))
	if eventID == "" {
		return nil, errors.New("event_id missing")
	}

	occurredAt := stored.OccurredAt
	if occurredAt.IsZero() {
		occurredAt, _ = time.Parse(time.RFC3339Nano, attr("created_at"))
	}

	return &types.Envelope{
		EventID:       eventID,
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    occurredAt.UTC(),
		Payload:       stored.Data,
	}, nil
}
