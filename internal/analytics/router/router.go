package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/angelmondragon/fulfillment-backend/internal/analytics/types"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

var (
	// ErrUnsupportedEventType means analytics does not track the event.
	ErrUnsupportedEventType = errors.New("unsupported analytics event type")
	// ErrMalformedPayload means redelivery can never succeed.
	ErrMalformedPayload = errors.New("malformed analytics payload")
)

// Writer delivers BigQuery rows produced by the handlers.
type Writer interface {
	InsertBatchOrders(ctx context.Context, rows []types.BatchOrderRow) error
	InsertPickListCompletion(ctx context.Context, row types.PickListCompletionRow) error
}

type route func(ctx context.Context, envelope types.Envelope) error

// typed decodes the envelope payload into T before calling handle.
func typed[T any](handle func(context.Context, types.Envelope, *T) error) route {
	return func(ctx context.Context, envelope types.Envelope) error {
		if len(envelope.Payload) == 0 {
			return fmt.Errorf("%w: empty %s payload", ErrMalformedPayload, envelope.EventType)
		}
		var payload T
		if err := json.Unmarshal(envelope.Payload, &payload); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformedPayload, envelope.EventType, err)
		}
		return handle(ctx, envelope, &payload)
	}
}

// handlers turns fulfillment events into analytics rows.
type handlers struct {
	writer Writer
	logg   *logger.Logger
}

// Router dispatches envelopes by event type.
type Router struct {
	routes map[enums.OutboxEventType]route
}

func NewRouter(writer Writer, logg *logger.Logger) (*Router, error) {
	if writer == nil {
		return nil, errors.New("writer is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	h := handlers{writer: writer, logg: logg}
	return &Router{routes: map[enums.OutboxEventType]route{
		enums.EventBatchProcessed:    typed(h.batchProcessed),
		enums.EventPickListCompleted: typed(h.pickListCompleted),
	}}, nil
}

func (r *Router) Handle(ctx context.Context, envelope types.Envelope) error {
	handle, ok := r.routes[envelope.EventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedEventType, envelope.EventType)
	}
	return handle(ctx, envelope)
}
