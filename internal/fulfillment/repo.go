package fulfillment

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
)

// Repository covers the order-side writes of a batch.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	OrdersByID(ctx context.Context, ids []uuid.UUID) ([]models.Order, error)
	SaveInvoice(ctx context.Context, invoice *models.Invoice) error
	ReplaceLabel(ctx context.Context, previous *uuid.UUID, label *models.ShippingLabel) error
	LabelAttached(ctx context.Context, labelID uuid.UUID) (bool, error)
	CreateProcessingError(ctx context.Context, row *models.ProcessingError) error
	ProcessingErrors(ctx context.Context, batchID uuid.UUID) ([]models.ProcessingError, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) OrdersByID(ctx context.Context, ids []uuid.UUID) ([]models.Order, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var orders []models.Order
	err := r.db.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Invoice").
		Preload("ShippingLabel").
		Where("id IN ?", ids).
		Find(&orders).Error
	return orders, err
}

// SaveInvoice inserts the invoice or overwrites the order's previous one.
func (r *repository) SaveInvoice(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"series", "number", "status", "error_message", "issued_at", "updated_at"}),
		}).
		Create(invoice).Error
}

// ReplaceLabel removes the withdrawn label (history and pick list join
// included) and stores the new one with its first status entry.
func (r *repository) ReplaceLabel(ctx context.Context, previous *uuid.UUID, label *models.ShippingLabel) error {
	db := r.db.WithContext(ctx)
	if previous != nil {
		if err := db.Where("label_id = ?", *previous).Delete(&models.ShippingLabelStatusHistory{}).Error; err != nil {
			return err
		}
		if err := db.Where("label_id = ?", *previous).Delete(&models.PickListLabel{}).Error; err != nil {
			return err
		}
		if err := db.Where("id = ?", *previous).Delete(&models.ShippingLabel{}).Error; err != nil {
			return err
		}
	}
	if err := db.Omit(clause.Associations).Create(label).Error; err != nil {
		return err
	}
	return db.Create(&models.ShippingLabelStatusHistory{
		LabelID:    label.ID,
		StatusText: label.StatusText,
		Status:     label.Status,
	}).Error
}

func (r *repository) LabelAttached(ctx context.Context, labelID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.PickListLabel{}).
		Where("label_id = ?", labelID).
		Count(&count).Error
	return count > 0, err
}

func (r *repository) CreateProcessingError(ctx context.Context, row *models.ProcessingError) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *repository) ProcessingErrors(ctx context.Context, batchID uuid.UUID) ([]models.ProcessingError, error) {
	var rows []models.ProcessingError
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
