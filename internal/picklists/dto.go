package picklists

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// Progress summarizes the non-parent items of a list.
type Progress struct {
	TotalItems      int     `json:"totalItems"`
	CompletedItems  int     `json:"completedItems"`
	TotalQuantity   int     `json:"totalQuantity"`
	PickedQuantity  int     `json:"pickedQuantity"`
	PercentComplete float64 `json:"percentComplete"`
}

// ComputeProgress derives progress from item rows; parent rows are ignored.
func ComputeProgress(items []models.PickListItem) Progress {
	var p Progress
	for _, item := range items {
		if item.IsParent {
			continue
		}
		p.TotalItems++
		p.TotalQuantity += item.RequiredQty
		p.PickedQuantity += item.PickedQty
		if item.IsComplete {
			p.CompletedItems++
		}
	}
	if p.TotalQuantity > 0 {
		p.PercentComplete = math.Round(float64(p.PickedQuantity)/float64(p.TotalQuantity)*10000) / 100
	}
	return p
}

func applyAggregates(list *models.PickList, items []models.PickListItem) Progress {
	p := ComputeProgress(items)
	list.TotalItems = p.TotalItems
	list.TotalQuantity = p.TotalQuantity
	list.PickedQuantity = p.PickedQuantity
	return p
}

func allPicked(items []models.PickListItem) bool {
	found := false
	for _, item := range items {
		if item.IsParent {
			continue
		}
		found = true
		if !item.IsComplete {
			return false
		}
	}
	return found
}

// ScanInput picks by barcode or SKU.
type ScanInput struct {
	Code     string
	Quantity int
	Actor    string
}

// PickItemInput picks a specific item row.
type PickItemInput struct {
	ItemID   uuid.UUID
	Quantity int
	Actor    string
}

// UpdateInput carries the editable metadata; nil fields are left untouched.
type UpdateInput struct {
	Name       *string
	AssignedTo *string
	Notes      *string
	Actor      string
}

// PickResult is returned by Scan and PickItem.
type PickResult struct {
	ItemCompleted   bool     `json:"itemCompleted"`
	ListCompleted   bool     `json:"listCompleted"`
	AppliedQuantity int      `json:"appliedQuantity"`
	Item            ItemDTO  `json:"item"`
	Progress        Progress `json:"progress"`
}

// IncompleteItem is listed in the details of a rejected Complete.
type IncompleteItem struct {
	ItemID    uuid.UUID `json:"itemId"`
	SKU       string    `json:"sku"`
	Title     string    `json:"title"`
	Remaining int       `json:"remaining"`
}

// SummaryDTO is the list-level view of a pick list.
type SummaryDTO struct {
	ID             uuid.UUID            `json:"id"`
	Code           string               `json:"code"`
	Name           string               `json:"name"`
	BatchID        *uuid.UUID           `json:"batchId,omitempty"`
	Status         enums.PickListStatus `json:"status"`
	CreatedBy      string               `json:"createdBy"`
	AssignedTo     *string              `json:"assignedTo,omitempty"`
	Notes          *string              `json:"notes,omitempty"`
	TotalItems     int                  `json:"totalItems"`
	TotalQuantity  int                  `json:"totalQuantity"`
	PickedQuantity int                  `json:"pickedQuantity"`
	StartedBy      *string              `json:"startedBy,omitempty"`
	StartedAt      *time.Time           `json:"startedAt,omitempty"`
	CompletedBy    *string              `json:"completedBy,omitempty"`
	CompletedAt    *time.Time           `json:"completedAt,omitempty"`
	CancelledAt    *time.Time           `json:"cancelledAt,omitempty"`
	DocumentPath   *string              `json:"documentPath,omitempty"`
	CreatedAt      time.Time            `json:"createdAt"`
	UpdatedAt      time.Time            `json:"updatedAt"`
}

// ItemDTO is one pick row.
type ItemDTO struct {
	ID              uuid.UUID  `json:"id"`
	ProductID       *uuid.UUID `json:"productId,omitempty"`
	ParentProductID *uuid.UUID `json:"parentProductId,omitempty"`
	SKU             string     `json:"sku"`
	Barcode         *string    `json:"barcode,omitempty"`
	Title           string     `json:"title"`
	VariantTitle    string     `json:"variantTitle,omitempty"`
	Location        string     `json:"location"`
	RequiredQty     int        `json:"requiredQty"`
	PickedQty       int        `json:"pickedQty"`
	Remaining       int        `json:"remaining"`
	IsParent        bool       `json:"isParent"`
	IsComplete      bool       `json:"isComplete"`
	PickedAt        *time.Time `json:"pickedAt,omitempty"`
	PickedBy        *string    `json:"pickedBy,omitempty"`
}

// LabelDTO is a source label with a summary of its order.
type LabelDTO struct {
	ID           uuid.UUID         `json:"id"`
	LabelNumber  string            `json:"labelNumber"`
	Carrier      string            `json:"carrier"`
	Status       enums.LabelStatus `json:"status"`
	OrderID      uuid.UUID         `json:"orderId"`
	OrderNumber  string            `json:"orderNumber,omitempty"`
	CustomerName string            `json:"customerName,omitempty"`
}

// LogDTO is one audit entry.
type LogDTO struct {
	ID        uuid.UUID           `json:"id"`
	ItemID    *uuid.UUID          `json:"itemId,omitempty"`
	Action    enums.PickLogAction `json:"action"`
	SKU       *string             `json:"sku,omitempty"`
	Barcode   *string             `json:"barcode,omitempty"`
	Quantity  int                 `json:"quantity"`
	Actor     string              `json:"actor"`
	Message   string              `json:"message"`
	CreatedAt time.Time           `json:"createdAt"`
}

// Detail is a list with its items, source labels and progress.
type Detail struct {
	PickList SummaryDTO `json:"pickList"`
	Items    []ItemDTO  `json:"items"`
	Labels   []LabelDTO `json:"labels"`
	Progress Progress   `json:"progress"`
}

// ListParams filters the pick list index.
type ListParams struct {
	Status *enums.PickListStatus
	Limit  int
	Cursor string
}

// ListResult is one page of pick lists.
type ListResult struct {
	Items  []SummaryDTO `json:"items"`
	Cursor string       `json:"cursor"`
}

func toSummaryDTO(list *models.PickList) SummaryDTO {
	return SummaryDTO{
		ID:             list.ID,
		Code:           list.Code,
		Name:           list.Name,
		BatchID:        list.BatchID,
		Status:         list.Status,
		CreatedBy:      list.CreatedBy,
		AssignedTo:     list.AssignedTo,
		Notes:          list.Notes,
		TotalItems:     list.TotalItems,
		TotalQuantity:  list.TotalQuantity,
		PickedQuantity: list.PickedQuantity,
		StartedBy:      list.StartedBy,
		StartedAt:      list.StartedAt,
		CompletedBy:    list.CompletedBy,
		CompletedAt:    list.CompletedAt,
		CancelledAt:    list.CancelledAt,
		DocumentPath:   list.DocumentPath,
		CreatedAt:      list.CreatedAt,
		UpdatedAt:      list.UpdatedAt,
	}
}

func toItemDTO(item models.PickListItem) ItemDTO {
	return ItemDTO{
		ID:              item.ID,
		ProductID:       item.ProductID,
		ParentProductID: item.ParentProductID,
		SKU:             item.SKU,
		Barcode:         item.Barcode,
		Title:           item.Title,
		VariantTitle:    item.VariantTitle,
		Location:        item.Location,
		RequiredQty:     item.RequiredQty,
		PickedQty:       item.PickedQty,
		Remaining:       item.Remaining(),
		IsParent:        item.IsParent,
		IsComplete:      item.IsComplete,
		PickedAt:        item.PickedAt,
		PickedBy:        item.PickedBy,
	}
}

func toDetail(list *models.PickList) Detail {
	items := make([]ItemDTO, 0, len(list.Items))
	for _, item := range list.Items {
		items = append(items, toItemDTO(item))
	}
	labels := make([]LabelDTO, 0, len(list.Labels))
	for _, join := range list.Labels {
		if join.Label == nil {
			continue
		}
		view := LabelDTO{
			ID:          join.Label.ID,
			LabelNumber: join.Label.LabelNumber,
			Carrier:     join.Label.Carrier,
			Status:      join.Label.Status,
			OrderID:     join.Label.OrderID,
		}
		if order := join.Label.Order; order != nil {
			view.OrderNumber = order.OrderNumber
			view.CustomerName = order.CustomerName
		}
		labels = append(labels, view)
	}
	return Detail{
		PickList: toSummaryDTO(list),
		Items:    items,
		Labels:   labels,
		Progress: ComputeProgress(list.Items),
	}
}

func toLogDTO(entry models.PickLog) LogDTO {
	return LogDTO{
		ID:        entry.ID,
		ItemID:    entry.ItemID,
		Action:    entry.Action,
		SKU:       entry.SKU,
		Barcode:   entry.Barcode,
		Quantity:  entry.Quantity,
		Actor:     entry.Actor,
		Message:   entry.Message,
		CreatedAt: entry.CreatedAt,
	}
}
