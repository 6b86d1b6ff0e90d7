package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	pubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/payloads"
)

const notificationConsumer = "notification-inbox"

var errMalformed = errors.New("malformed notification message")

type repository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// processor is the part of idempotency.Manager the consumer uses.
type processor interface {
	ProcessOnce(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error)
}

// Consumer turns notification_requested events into inbox rows.
type Consumer struct {
	repo         repository
	subscription *pubsub.Subscriber
	idempotency  processor
	logg         *logger.Logger
}

func NewConsumer(repo repository, subscription *pubsub.Subscriber, manager processor, logg *logger.Logger) (*Consumer, error) {
	switch {
	case repo == nil:
		return nil, errors.New("notifications repository required")
	case subscription == nil:
		return nil, errors.New("notification subscription required")
	case manager == nil:
		return nil, errors.New("idempotency manager required")
	case logg == nil:
		return nil, errors.New("logger required")
	}
	return &Consumer{repo: repo, subscription: subscription, idempotency: manager, logg: logg}, nil
}

// Run receives until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if c.handle(ctx, msg.ID, msg.Attributes, msg.Data) {
			msg.Ack()
			return
		}
		msg.Nack()
	})
}

// handle reports whether to ack. Only failures a redelivery could fix are
// nacked; anything malformed or permanently rejected is acked and logged.
func (c *Consumer) handle(ctx context.Context, messageID string, attrs map[string]string, data []byte) bool {
	eventType := attrs["event_type"]
	ctx = c.logg.WithFields(ctx, map[string]any{"message_id": messageID, "event_type": eventType})
	if eventType != string(enums.EventNotificationRequested) {
		c.logg.Debug(ctx, "notification.event_skipped")
		return true
	}

	eventID, payload, err := decodeNotification(data)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "notification.payload_rejected")
		return true
	}
	ctx = c.logg.WithFields(ctx, map[string]any{"event_id": eventID.String(), "role": payload.Role})

	created, err := c.idempotency.ProcessOnce(ctx, notificationConsumer, eventID, func(ctx context.Context) error {
		return c.repo.Create(ctx, toModel(payload))
	})
	switch {
	case err != nil && pkgerrors.Retryable(err):
		c.logg.Error(ctx, "notification.store_failed", err)
		return false
	case err != nil:
		c.logg.Warn(c.logg.WithField(ctx, "error", err.Error()), "notification.dropped")
	case created:
		c.logg.Info(ctx, "notification.stored")
	default:
		c.logg.Debug(ctx, "notification.duplicate")
	}
	return true
}

func decodeNotification(data []byte) (uuid.UUID, payloads.NotificationRequestedEvent, error) {
	var (
		envelope outbox.PayloadEnvelope
		payload  payloads.NotificationRequestedEvent
	)
	if err := json.Unmarshal(data, &envelope); err != nil {
		return uuid.Nil, payload, fmt.Errorf("%w: envelope: %v", errMalformed, err)
	}
	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		return uuid.Nil, payload, fmt.Errorf("%w: event id: %v", errMalformed, err)
	}
	if err := envelope.DecodeData(&payload); err != nil {
		return uuid.Nil, payload, fmt.Errorf("%w: payload: %v", errMalformed, err)
	}
	payload.Role = strings.TrimSpace(payload.Role)
	if payload.Role == "" || !payload.Type.IsValid() {
		return uuid.Nil, payload, fmt.Errorf("%w: role and type are required", errMalformed)
	}
	return eventID, payload, nil
}

// toModel falls back to the notification type when the title is blank.
func toModel(payload payloads.NotificationRequestedEvent) *models.Notification {
	n := &models.Notification{
		Role:    payload.Role,
		Type:    payload.Type,
		Title:   strings.TrimSpace(payload.Title),
		Message: strings.TrimSpace(payload.Message),
		Link:    payload.Link,
	}
	if n.Title == "" {
		n.Title = string(payload.Type)
	}
	if len(payload.Data) > 0 {
		if raw, err := json.Marshal(payload.Data); err == nil {
			n.Payload = raw
		}
	}
	return n
}
