package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ActivityLog is the generic append-only audit sink.
type ActivityLog struct {
	ID         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	EntityType string          `gorm:"column:entity_type;not null"`
	EntityID   uuid.UUID       `gorm:"column:entity_id;type:uuid;not null;index"`
	Action     string          `gorm:"column:action;not null"`
	Actor      string          `gorm:"column:actor;not null"`
	Message    string          `gorm:"column:message;not null;default:''"`
	Metadata   json.RawMessage `gorm:"column:metadata;type:jsonb"`
	CreatedAt  time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (a *ActivityLog) BeforeCreate(*gorm.DB) error {
	assignID(&a.ID)
	return nil
}
