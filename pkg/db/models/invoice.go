package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// Invoice is the fiscal document issued for an order. One per order.
type Invoice struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID      uuid.UUID           `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	Series       string              `gorm:"column:series;not null"`
	Number       string              `gorm:"column:number;not null;default:''"`
	Status       enums.InvoiceStatus `gorm:"column:status;type:invoice_status;not null"`
	ErrorMessage *string             `gorm:"column:error_message"`
	IssuedAt     *time.Time          `gorm:"column:issued_at"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *Invoice) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}
