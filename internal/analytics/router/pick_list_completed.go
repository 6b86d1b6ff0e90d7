package router

import (
	"cmp"
	"context"

	"github.com/angelmondragon/fulfillment-backend/internal/analytics/types"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/payloads"
)

// pickListCompleted records one row per completed list. Older events lack
// completedAt, so the envelope time stands in.
func (h handlers) pickListCompleted(ctx context.Context, envelope types.Envelope, event *payloads.PickListCompletedEvent) error {
	completedAt := event.CompletedAt
	if completedAt.IsZero() {
		completedAt = envelope.OccurredAt
	}
	return h.writer.InsertPickListCompletion(ctx, types.PickListCompletionRow{
		EventID:        envelope.EventID,
		PickListID:     event.PickListID.String(),
		Code:           event.Code,
		CompletedBy:    cmp.Or(event.CompletedBy, "unknown"),
		CompletedAt:    completedAt.UTC(),
		PickedQuantity: int64(event.PickedQuantity),
	})
}
