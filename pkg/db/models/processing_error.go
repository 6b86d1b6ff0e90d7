package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

// ProcessingError is an append-only record of a failed batch step.
type ProcessingError struct {
	ID        uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	OrderID   uuid.UUID                 `gorm:"column:order_id;type:uuid;not null;index"`
	BatchID   uuid.UUID                 `gorm:"column:batch_id;type:uuid;not null;index"`
	Type      enums.ProcessingErrorType `gorm:"column:type;type:processing_error_type;not null"`
	Message   string                    `gorm:"column:message;not null"`
	CreatedAt time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

func (e *ProcessingError) BeforeCreate(*gorm.DB) error {
	assignID(&e.ID)
	return nil
}
