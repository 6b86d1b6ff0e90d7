package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order is the immutable sales record a batch operates on.
type Order struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber  string          `gorm:"column:order_number;not null;uniqueIndex"`
	Channel      string          `gorm:"column:channel;not null"`
	CustomerName string          `gorm:"column:customer_name;not null"`
	TotalAmount  decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2);not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`

	LineItems     []OrderLineItem `gorm:"foreignKey:OrderID"`
	Invoice       *Invoice        `gorm:"foreignKey:OrderID"`
	ShippingLabel *ShippingLabel  `gorm:"foreignKey:OrderID"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}
