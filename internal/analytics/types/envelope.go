package types

import (
	"encoding/json"
	"time"

	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// Envelope is the decoded form of a fulfillment event read from Pub/Sub.
type Envelope struct {
	EventID       string                    `json:"event_id"`
	EventType     enums.OutboxEventType     `json:"event_type"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID   string                    `json:"aggregate_id"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	Payload       json.RawMessage           `json:"payload"`
}
