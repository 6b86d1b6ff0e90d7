package notifications

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/payloads"
)

// Emitter queues outbox events inside a caller-owned transaction.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Message is what a role should be told.
type Message struct {
	Type    enums.NotificationType
	Title   string
	Message string
	Link    *string
	Data    map[string]any
	// DedupeID, when set, keeps at most one request per id in the outbox.
	DedupeID uuid.UUID
}

// Notifier turns NotifyUsers calls into notification_requested outbox events;
// delivery happens asynchronously in the notification worker.
type Notifier struct {
	db      *gorm.DB
	emitter Emitter
	logg    *logger.Logger
}

func NewNotifier(db *gorm.DB, emitter Emitter, logg *logger.Logger) (*Notifier, error) {
	if db == nil {
		return nil, errors.New("db required")
	}
	if emitter == nil {
		return nil, errors.New("outbox emitter required")
	}
	return &Notifier{db: db, emitter: emitter, logg: logg}, nil
}

// NotifyUsers queues the message in its own transaction.
func (n *Notifier) NotifyUsers(ctx context.Context, role string, msg Message) error {
	return n.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return n.NotifyUsersTx(ctx, tx, role, msg)
	})
}

// NotifyUsersTx queues the message alongside the caller's writes.
func (n *Notifier) NotifyUsersTx(ctx context.Context, tx *gorm.DB, role string, msg Message) error {
	role = strings.TrimSpace(role)
	if role == "" {
		return errors.New("role required")
	}
	if msg.Type == "" {
		msg.Type = enums.NotificationTypeSystem
	}
	if !msg.Type.IsValid() {
		return errors.New("invalid notification type " + string(msg.Type))
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateNotification,
		AggregateID:   msg.DedupeID,
		Data: payloads.NotificationRequestedEvent{
			Role:    role,
			Type:    msg.Type,
			Title:   msg.Title,
			Message: msg.Message,
			Link:    msg.Link,
			Data:    msg.Data,
		},
	}
	if msg.DedupeID != uuid.Nil {
		return n.emitter.EmitIfNotExists(ctx, tx, event)
	}
	event.AggregateID = uuid.New()
	if err := n.emitter.Emit(ctx, tx, event); err != nil {
		return err
	}
	if n.logg != nil {
		n.logg.Info(n.logg.WithFields(ctx, map[string]any{"role": role, "type": msg.Type}), "notifications.requested")
	}
	return nil
}
