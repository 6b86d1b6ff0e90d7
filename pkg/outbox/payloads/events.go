package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// BatchProcessedEvent summarizes one batch run.
type BatchProcessedEvent struct {
	BatchID        uuid.UUID           `json:"batchId"`
	Actor          string              `json:"actor"`
	Total          int                 `json:"total"`
	Success        int                 `json:"success"`
	Failed         int                 `json:"failed"`
	InvoicesIssued int                 `json:"invoicesIssued"`
	LabelsCreated  int                 `json:"labelsCreated"`
	PickListID     *uuid.UUID          `json:"pickListId,omitempty"`
	Orders         []BatchOrderOutcome `json:"orders"`
}

// BatchOrderOutcome is the per-order result carried by BatchProcessedEvent.
type BatchOrderOutcome struct {
	OrderID       uuid.UUID `json:"orderId"`
	OrderNumber   string    `json:"orderNumber,omitempty"`
	Success       bool      `json:"success"`
	InvoiceNumber string    `json:"invoiceNumber,omitempty"`
	LabelNumber   string    `json:"labelNumber,omitempty"`
	FailedStep    string    `json:"failedStep,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// PickListCreatedEvent is emitted in the same transaction that inserts the list.
type PickListCreatedEvent struct {
	PickListID    uuid.UUID  `json:"pickListId"`
	Code          string     `json:"code"`
	BatchID       *uuid.UUID `json:"batchId,omitempty"`
	TotalItems    int        `json:"totalItems"`
	TotalQuantity int        `json:"totalQuantity"`
	LabelCount    int        `json:"labelCount"`
}

// PickListCompletedEvent is emitted when every non-parent item has been picked.
type PickListCompletedEvent struct {
	PickListID     uuid.UUID `json:"pickListId"`
	Code           string    `json:"code"`
	CompletedBy    string    `json:"completedBy"`
	CompletedAt    time.Time `json:"completedAt"`
	PickedQuantity int       `json:"pickedQuantity"`
}

// PickListCancelledEvent is emitted when a list is cancelled and its labels released.
type PickListCancelledEvent struct {
	PickListID     uuid.UUID `json:"pickListId"`
	Code           string    `json:"code"`
	CancelledBy    string    `json:"cancelledBy"`
	CancelledAt    time.Time `json:"cancelledAt"`
	ReleasedLabels int       `json:"releasedLabels"`
}

// NotificationRequestedEvent asks the notification worker to alert every user holding Role.
type NotificationRequestedEvent struct {
	Role    string                 `json:"role"`
	Type    enums.NotificationType `json:"type"`
	Title   string                 `json:"title"`
	Message string                 `json:"message"`
	Link    *string                `json:"link,omitempty"`
	Data    map[string]any         `json:"data,omitempty"`
}
