package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// PickList is a warehouse picking document built from shipping labels.
// Aggregate counters cover non-parent items only and are always recomputed
// from item rows.
type PickList struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	Code           string               `gorm:"column:code;not null;uniqueIndex"`
	Name           string               `gorm:"column:name;not null"`
	BatchID        *uuid.UUID           `gorm:"column:batch_id;type:uuid"`
	CreatedBy      string               `gorm:"column:created_by;not null"`
	AssignedTo     *string              `gorm:"column:assigned_to"`
	Notes          *string              `gorm:"column:notes"`
	Status         enums.PickListStatus `gorm:"column:status;type:pick_list_status;not null"`
	TotalItems     int                  `gorm:"column:total_items;not null;default:0"`
	TotalQuantity  int                  `gorm:"column:total_quantity;not null;default:0"`
	PickedQuantity int                  `gorm:"column:picked_quantity;not null;default:0"`
	StartedBy      *string              `gorm:"column:started_by"`
	StartedAt      *time.Time           `gorm:"column:started_at"`
	CompletedBy    *string              `gorm:"column:completed_by"`
	CompletedAt    *time.Time           `gorm:"column:completed_at"`
	CancelledAt    *time.Time           `gorm:"column:cancelled_at"`
	DocumentPath   *string              `gorm:"column:document_path"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`

	Items  []PickListItem  `gorm:"foreignKey:PickListID"`
	Labels []PickListLabel `gorm:"foreignKey:PickListID"`
}

func (p *PickList) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// PickListItem is one row to pick. Parent rows describe a composite product
// and are never picked themselves.
type PickListItem struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	PickListID      uuid.UUID  `gorm:"column:pick_list_id;type:uuid;not null;index"`
	ProductID       *uuid.UUID `gorm:"column:product_id;type:uuid"`
	ParentProductID *uuid.UUID `gorm:"column:parent_product_id;type:uuid"`
	SKU             string     `gorm:"column:sku;not null"`
	Barcode         *string    `gorm:"column:barcode"`
	Title           string     `gorm:"column:title;not null"`
	VariantTitle    string     `gorm:"column:variant_title;not null;default:''"`
	Location        string     `gorm:"column:location;not null;default:''"`
	RequiredQty     int        `gorm:"column:required_qty;not null"`
	PickedQty       int        `gorm:"column:picked_qty;not null;default:0"`
	StockDeducted   int        `gorm:"column:stock_deducted;not null;default:0"`
	IsParent        bool       `gorm:"column:is_parent;not null;default:false"`
	IsComplete      bool       `gorm:"column:is_complete;not null;default:false"`
	PickedAt        *time.Time `gorm:"column:picked_at"`
	PickedBy        *string    `gorm:"column:picked_by"`
	Position        int        `gorm:"column:position;not null;default:0"`
	CreatedAt       time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *PickListItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}

// Remaining is the quantity still to pick.
func (i PickListItem) Remaining() int {
	if i.PickedQty >= i.RequiredQty {
		return 0
	}
	return i.RequiredQty - i.PickedQty
}

// PickListLabel joins a label to the single pick list that consumed it.
type PickListLabel struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	PickListID uuid.UUID `gorm:"column:pick_list_id;type:uuid;not null;index"`
	LabelID    uuid.UUID `gorm:"column:label_id;type:uuid;not null;uniqueIndex"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`

	Label *ShippingLabel `gorm:"foreignKey:LabelID"`
}

func (l *PickListLabel) BeforeCreate(*gorm.DB) error {
	assignID(&l.ID)
	return nil
}

// PickLog is the append-only audit trail of a pick list. Rows outlive the list.
type PickLog struct {
	ID         uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	PickListID uuid.UUID           `gorm:"column:pick_list_id;type:uuid;not null;index"`
	ItemID     *uuid.UUID          `gorm:"column:item_id;type:uuid"`
	Action     enums.PickLogAction `gorm:"column:action;type:pick_log_action;not null"`
	SKU        *string             `gorm:"column:sku"`
	Barcode    *string             `gorm:"column:barcode"`
	Quantity   int                 `gorm:"column:quantity;not null;default:0"`
	Actor      string              `gorm:"column:actor;not null"`
	Message    string              `gorm:"column:message;not null;default:''"`
	CreatedAt  time.Time           `gorm:"column:created_at;autoCreateTime"`
}

func (l *PickLog) BeforeCreate(*gorm.DB) error {
	assignID(&l.ID)
	return nil
}
