// Package idempotency makes Pub/Sub consumers effectively-once. Delivery is
// at-least-once, so each consumer records the event ids it has finished.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/fulfillment-backend/pkg/redis"
)

const defaultLease = 5 * time.Minute

// ErrInFlight means another delivery of the same event is being handled
// right now. Callers should nack and let the redelivery find the done marker.
var ErrInFlight = errors.New("event is being processed by another delivery")

type Manager struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	lease time.Duration
}

// NewManager keeps done markers for ttl (zero keeps them forever). An
// in-flight claim expires after a short lease so a crashed consumer does not
// block the event.
func NewManager(store redis.IdempotencyStore, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl, lease: defaultLease}, nil
}

// ProcessOnce runs fn unless consumer already finished eventID. It reports
// whether fn ran and succeeded. When fn fails nothing is recorded, so the
// redelivery runs it again.
func (m *Manager) ProcessOnce(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error) {
	done, claim, err := m.keys(consumer, eventID)
	if err != nil {
		return false, err
	}

	switch _, err := m.store.Get(ctx, done); {
	case err == nil:
		return false, nil
	case !errors.Is(err, redis.Nil):
		return false, fmt.Errorf("read done marker: %w", err)
	}

	claimed, err := m.store.SetNX(ctx, claim, "1", m.lease)
	if err != nil {
		return false, fmt.Errorf("claim event: %w", err)
	}
	if !claimed {
		return false, ErrInFlight
	}

	if err := fn(ctx); err != nil {
		if delErr := m.store.Del(ctx, claim); delErr != nil {
			return false, fmt.Errorf("%w (releasing claim: %v)", err, delErr)
		}
		return false, err
	}

	if _, err := m.store.SetNX(ctx, done, "1", m.ttl); err != nil {
		return true, fmt.Errorf("write done marker: %w", err)
	}
	return true, m.store.Del(ctx, claim)
}

func (m *Manager) keys(consumer string, eventID uuid.UUID) (done, claim string, err error) {
	if consumer == "" {
		return "", "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", "", errors.New("event id is required")
	}
	id := eventID.String()
	return m.store.IdempotencyKey("evt:done:"+consumer, id), m.store.IdempotencyKey("evt:claim:"+consumer, id), nil
}
