// Package activity is the append-only audit sink used by batch processing and
// pick-list transitions.
package activity

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/pagination"
)

const (
	EntityOrder    = "order"
	EntityPickList = "pick_list"

	// SystemActor is recorded when no user triggered the change.
	SystemActor = "system"
)

// Entry is one audit record.
type Entry struct {
	EntityType string
	EntityID   uuid.UUID
	Action     string
	Actor      string
	Message    string
	Metadata   map[string]any
}

// Logger persists activity entries.
type Logger struct {
	db *gorm.DB
}

func NewLogger(db *gorm.DB) *Logger {
	return &Logger{db: db}
}

func (l *Logger) WithTx(tx *gorm.DB) *Logger {
	if tx == nil {
		return l
	}
	return &Logger{db: tx}
}

// LogActivity appends entry. Metadata that cannot be encoded is dropped, not fatal.
func (l *Logger) LogActivity(ctx context.Context, entry Entry) error {
	if l == nil || l.db == nil {
		return errors.New("activity logger not configured")
	}
	if entry.EntityID == uuid.Nil {
		return errors.New("entity id required")
	}
	if strings.TrimSpace(entry.Action) == "" {
		return errors.New("action required")
	}

	row := models.ActivityLog{
		EntityType: entry.EntityType,
		EntityID:   entry.EntityID,
		Action:     entry.Action,
		Actor:      entry.Actor,
		Message:    entry.Message,
	}
	if row.Actor == "" {
		row.Actor = SystemActor
	}
	if len(entry.Metadata) > 0 {
		if raw, err := json.Marshal(entry.Metadata); err == nil {
			row.Metadata = raw
		}
	}
	return l.db.WithContext(ctx).Create(&row).Error
}

// List returns entries for one entity, newest first.
func (l *Logger) List(ctx context.Context, entityType string, entityID uuid.UUID, limit int) ([]models.ActivityLog, error) {
	var rows []models.ActivityLog
	err := l.db.WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Order("created_at DESC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&rows).Error
	return rows, err
}
