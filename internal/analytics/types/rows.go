package types

import (
	"time"

	"cloud.google.com/go/bigquery"
)

// BatchOrderRow mirrors the batch_order_results BigQuery schema. One row per
// order per batch run.
type BatchOrderRow struct {
	EventID       string              `bigquery:"event_id"`
	BatchID       string              `bigquery:"batch_id"`
	OccurredAt    time.Time           `bigquery:"occurred_at"`
	Actor         bigquery.NullString `bigquery:"actor"`
	OrderID       string              `bigquery:"order_id"`
	OrderNumber   bigquery.NullString `bigquery:"order_number"`
	Success       bool                `bigquery:"success"`
	InvoiceNumber bigquery.NullString `bigquery:"invoice_number"`
	LabelNumber   bigquery.NullString `bigquery:"label_number"`
	FailedStep    bigquery.NullString `bigquery:"failed_step"`
	Error         bigquery.NullString `bigquery:"error"`
	PickListID    bigquery.NullString `bigquery:"pick_list_id"`
}

// PickListCompletionRow mirrors the pick_list_completions BigQuery schema.
type PickListCompletionRow struct {
	EventID        string    `bigquery:"event_id"`
	PickListID     string    `bigquery:"pick_list_id"`
	Code           string    `bigquery:"code"`
	CompletedBy    string    `bigquery:"completed_by"`
	CompletedAt    time.Time `bigquery:"completed_at"`
	PickedQuantity int64     `bigquery:"picked_quantity"`
}

// InsertID dedupes retried inserts of the same order outcome.
func (r BatchOrderRow) InsertID() string { return r.EventID + ":" + r.OrderID }

func (r PickListCompletionRow) InsertID() string { return r.EventID }
