package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// ShippingLabel is the carrier AWB attached to an order. StatusText keeps the
// carrier wording; Status is its translation.
type ShippingLabel struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderID      uuid.UUID         `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	LabelNumber  string            `gorm:"column:label_number;not null;default:''"`
	Carrier      string            `gorm:"column:carrier;not null"`
	StatusText   string            `gorm:"column:status_text;not null;default:''"`
	Status       enums.LabelStatus `gorm:"column:status;type:label_status;not null"`
	ErrorMessage *string           `gorm:"column:error_message"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`

	Order *Order `gorm:"foreignKey:OrderID"`
}

func (l *ShippingLabel) BeforeCreate(*gorm.DB) error {
	assignID(&l.ID)
	return nil
}

// ShippingLabelStatusHistory records each carrier status a label went through.
type ShippingLabelStatusHistory struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	LabelID    uuid.UUID         `gorm:"column:label_id;type:uuid;not null;index"`
	StatusText string            `gorm:"column:status_text;not null"`
	Status     enums.LabelStatus `gorm:"column:status;type:label_status;not null"`
	CreatedAt  time.Time         `gorm:"column:created_at;autoCreateTime"`
}

func (ShippingLabelStatusHistory) TableName() string {
	return "shipping_label_status_history"
}

func (h *ShippingLabelStatusHistory) BeforeCreate(*gorm.DB) error {
	assignID(&h.ID)
	return nil
}
