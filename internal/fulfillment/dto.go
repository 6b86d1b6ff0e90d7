package fulfillment

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// BatchInput is one POST /batch/process request after defaults are applied.
type BatchInput struct {
	OrderIDs       []uuid.UUID
	LabelOptions   map[string]any
	CreatePickList bool
	// AutoPrintPickList is accepted for compatibility; printing is not wired.
	AutoPrintPickList bool
	Actor             string
}

// OrderResult is the outcome of one order in a batch.
type OrderResult struct {
	OrderID       uuid.UUID `json:"orderId"`
	OrderNumber   string    `json:"orderNumber,omitempty"`
	Success       bool      `json:"success"`
	InvoiceNumber string    `json:"invoiceNumber,omitempty"`
	InvoiceIssued bool      `json:"invoiceIssued"`
	LabelNumber   string    `json:"labelNumber,omitempty"`
	LabelCreated  bool      `json:"labelCreated"`
	FailedStep    string    `json:"failedStep,omitempty"`
	Error         string    `json:"error,omitempty"`
}

// BatchError is a failed order as listed in the batch response.
type BatchError struct {
	OrderID     uuid.UUID `json:"orderId"`
	OrderNumber string    `json:"orderNumber,omitempty"`
	Step        string    `json:"step,omitempty"`
	Message     string    `json:"message"`
}

type Stats struct {
	Total          int `json:"total"`
	Success        int `json:"success"`
	Failed         int `json:"failed"`
	InvoicesIssued int `json:"invoicesIssued"`
	LabelsCreated  int `json:"labelsCreated"`
}

// PickListSummary describes the list created at the end of a batch.
type PickListSummary struct {
	ID            uuid.UUID `json:"id"`
	Code          string    `json:"code"`
	TotalItems    int       `json:"totalItems"`
	TotalQuantity int       `json:"totalQuantity"`
}

// BatchResult is returned with HTTP 200 whatever the per-order outcomes.
type BatchResult struct {
	Success       bool             `json:"success"`
	Message       string           `json:"message"`
	Stats         Stats            `json:"stats"`
	Results       []OrderResult    `json:"results"`
	Errors        []BatchError     `json:"errors"`
	BatchID       uuid.UUID        `json:"batchId"`
	PickList      *PickListSummary `json:"pickList,omitempty"`
	PickListError string           `json:"pickListError,omitempty"`
}

// ProcessingErrorDTO is a persisted step failure.
type ProcessingErrorDTO struct {
	ID        uuid.UUID                 `json:"id"`
	OrderID   uuid.UUID                 `json:"orderId"`
	BatchID   uuid.UUID                 `json:"batchId"`
	Type      enums.ProcessingErrorType `json:"type"`
	Message   string                    `json:"message"`
	CreatedAt time.Time                 `json:"createdAt"`
}

func toProcessingErrorDTO(row models.ProcessingError) ProcessingErrorDTO {
	return ProcessingErrorDTO{
		ID:        row.ID,
		OrderID:   row.OrderID,
		BatchID:   row.BatchID,
		Type:      row.Type,
		Message:   row.Message,
		CreatedAt: row.CreatedAt,
	}
}

func stepName(t enums.ProcessingErrorType) string {
	switch t {
	case enums.ProcessingErrorInvoice:
		return "invoice"
	case enums.ProcessingErrorLabel:
		return "label"
	}
	return ""
}
