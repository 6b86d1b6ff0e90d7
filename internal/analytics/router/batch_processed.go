package router

import (
	"context"

	"cloud.google.com/go/bigquery"

	"github.com/angelmondragon/fulfillment-backend/internal/analytics/types"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/payloads"
)

func (h handlers) batchProcessed(ctx context.Context, envelope types.Envelope, event *payloads.BatchProcessedEvent) error {
	if len(event.Orders) == 0 {
		h.logg.Debug(ctx, "analytics.batch_without_orders")
		return nil
	}
	return h.writer.InsertBatchOrders(ctx, batchOrderRows(envelope, event))
}

func batchOrderRows(envelope types.Envelope, event *payloads.BatchProcessedEvent) []types.BatchOrderRow {
	var pickListID bigquery.NullString
	if event.PickListID != nil {
		pickListID = nullString(event.PickListID.String())
	}

	rows := make([]types.BatchOrderRow, 0, len(event.Orders))
	for _, order := range event.Orders {
		rows = append(rows, types.BatchOrderRow{
			EventID:       envelope.EventID,
			BatchID:       event.BatchID.String(),
			OccurredAt:    envelope.OccurredAt,
			Actor:         nullString(event.Actor),
			OrderID:       order.OrderID.String(),
			OrderNumber:   nullString(order.OrderNumber),
			Success:       order.Success,
			InvoiceNumber: nullString(order.InvoiceNumber),
			LabelNumber:   nullString(order.LabelNumber),
			FailedStep:    nullString(order.FailedStep),
			Error:         nullString(order.Error),
			PickListID:    pickListID,
		})
	}
	return rows
}

func nullString(value string) bigquery.NullString {
	if value == "" {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: value, Valid: true}
}
