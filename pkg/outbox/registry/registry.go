// Package registry maps outbox event types to their Pub/Sub topic and typed
// payload.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/payloads"
)

type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks a row that will fail the same way on every attempt.
// The publisher dead-letters it instead of retrying.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func permanent(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

func payloadOf[T any]() func() any {
	return func() any { return new(T) }
}

func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	fulfillment := strings.TrimSpace(cfg.FulfillmentTopic)
	notification := strings.TrimSpace(cfg.NotificationTopic)
	switch {
	case fulfillment == "":
		return nil, errors.New("fulfillment topic is required")
	case notification == "":
		return nil, errors.New("notification topic is required")
	}

	r := &EventRegistry{entries: map[enums.OutboxEventType]EventDescriptor{}}
	r.register(enums.EventBatchProcessed, enums.AggregateBatch, fulfillment, payloadOf[payloads.BatchProcessedEvent]())
	r.register(enums.EventPickListCreated, enums.AggregatePickList, fulfillment, payloadOf[payloads.PickListCreatedEvent]())
	r.register(enums.EventPickListCompleted, enums.AggregatePickList, fulfillment, payloadOf[payloads.PickListCompletedEvent]())
	r.register(enums.EventPickListCancelled, enums.AggregatePickList, fulfillment, payloadOf[payloads.PickListCancelledEvent]())
	r.register(enums.EventNotificationRequested, enums.AggregateNotification, notification, payloadOf[payloads.NotificationRequestedEvent]())
	return r, nil
}

func (r *EventRegistry) register(eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string, factory func() any) {
	r.entries[eventType] = EventDescriptor{
		EventType:      eventType,
		AggregateType:  aggregate,
		Topic:          topic,
		PayloadFactory: factory,
	}
}

// Topics lists each topic once, sorted.
func (r *EventRegistry) Topics() []string {
	topics := make([]string, 0, len(r.entries))
	for _, desc := range r.entries {
		topics = append(topics, desc.Topic)
	}
	slices.Sort(topics)
	return slices.Compact(topics)
}

// Resolve checks the row against its descriptor and decodes the typed
// payload. Every failure is a NonRetryableError.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, permanent("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, permanent("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, permanent("missing aggregate_id")
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(event.Payload, &envelope); err != nil {
		return nil, permanent("decode envelope: %w", err)
	}
	payload := desc.PayloadFactory()
	if err := envelope.DecodeData(payload); err != nil {
		return nil, permanent("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
