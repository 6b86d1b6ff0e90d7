package picklists

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	"github.com/angelmondragon/fulfillment-backend/pkg/pagination"
)

// Repository is the persistence surface for pick lists, their items, label
// joins and audit logs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreatePickList(ctx context.Context, list *models.PickList) error
	CreateItems(ctx context.Context, items []models.PickListItem) error
	AttachLabels(ctx context.Context, pickListID uuid.UUID, labelIDs []uuid.UUID) error
	ReleaseLabels(ctx context.Context, pickListID uuid.UUID) (int64, error)
	AttachedLabelIDs(ctx context.Context, labelIDs []uuid.UUID) ([]uuid.UUID, error)

	FindByID(ctx context.Context, id uuid.UUID) (*models.PickList, error)
	FindDetail(ctx context.Context, id uuid.UUID) (*models.PickList, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.PickList, error)
	List(ctx context.Context, params listParams) ([]models.PickList, *pagination.Cursor, error)
	ListStale(ctx context.Context, status enums.PickListStatus, updatedBefore time.Time, limit int) ([]models.PickList, error)
	UpdateList(ctx context.Context, id uuid.UUID, updates map[string]any) error
	Delete(ctx context.Context, id uuid.UUID) error

	ListItems(ctx context.Context, pickListID uuid.UUID) ([]models.PickListItem, error)
	LockItem(ctx context.Context, pickListID, itemID uuid.UUID) (*models.PickListItem, error)
	SaveItem(ctx context.Context, item *models.PickListItem) error

	CreateLog(ctx context.Context, entry *models.PickLog) error
	ListLogs(ctx context.Context, pickListID uuid.UUID, limit int) ([]models.PickLog, error)

	LabelsWithOrders(ctx context.Context, labelIDs []uuid.UUID) ([]models.ShippingLabel, error)
	ProductsFor(ctx context.Context, ids []uuid.UUID, skus []string) ([]models.CatalogProduct, error)
}

type listParams struct {
	Status *enums.PickListStatus
	Limit  int
	Cursor *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a pick list repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreatePickList(ctx context.Context, list *models.PickList) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(list).Error
}

func (r *repository) CreateItems(ctx context.Context, items []models.PickListItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) AttachLabels(ctx context.Context, pickListID uuid.UUID, labelIDs []uuid.UUID) error {
	if len(labelIDs) == 0 {
		return nil
	}
	joins := make([]models.PickListLabel, 0, len(labelIDs))
	for _, id := range labelIDs {
		joins = append(joins, models.PickListLabel{PickListID: pickListID, LabelID: id})
	}
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(&joins).Error
}

func (r *repository) ReleaseLabels(ctx context.Context, pickListID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("pick_list_id = ?", pickListID).
		Delete(&models.PickListLabel{})
	return res.RowsAffected, res.Error
}

func (r *repository) AttachedLabelIDs(ctx context.Context, labelIDs []uuid.UUID) ([]uuid.UUID, error) {
	if len(labelIDs) == 0 {
		return nil, nil
	}
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&models.PickListLabel{}).
		Where("label_id IN ?", labelIDs).
		Pluck("label_id", &ids).Error
	return ids, err
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PickList, error) {
	var list models.PickList
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
		First(&list).Error
	if err != nil {
		return nil, err
	}
	return &list, nil
}

func (r *repository) FindDetail(ctx context.Context, id uuid.UUID) (*models.PickList, error) {
	var list models.PickList
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Labels.Label.Order").
		Where("id = ?", id).
		First(&list).Error
	if err != nil {
		return nil, err
	}
	return &list, nil
}

func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.PickList, error) {
	var list models.PickList
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&list).Error
	if err != nil {
		return nil, err
	}
	return &list, nil
}

func (r *repository) List(ctx context.Context, params listParams) ([]models.PickList, *pagination.Cursor, error) {
	q := r.db.WithContext(ctx).Model(&models.PickList{})
	if params.Status != nil {
		q = q.Where("status = ?", *params.Status)
	}

	var lists []models.PickList
	if err := q.Scopes(pagination.Scope(params.Cursor, params.Limit)).Find(&lists).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(lists, params.Limit, func(l models.PickList) pagination.Cursor {
		return pagination.Cursor{CreatedAt: l.CreatedAt, ID: l.ID}
	})
	return page, next, nil
}

func (r *repository) ListStale(ctx context.Context, status enums.PickListStatus, updatedBefore time.Time, limit int) ([]models.PickList, error) {
	var lists []models.PickList
	err := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", status, updatedBefore).
		Order("updated_at ASC").
		Limit(limit).
		Find(&lists).Error
	return lists, err
}

func (r *repository) UpdateList(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.PickList{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// Delete removes the list, its items and label joins. Pick logs are kept.
func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("pick_list_id = ?", id).Delete(&models.PickListLabel{}).Error; err != nil {
		return err
	}
	if err := db.Where("pick_list_id = ?", id).Delete(&models.PickListItem{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", id).Delete(&models.PickList{}).Error
}

func (r *repository) ListItems(ctx context.Context, pickListID uuid.UUID) ([]models.PickListItem, error) {
	var items []models.PickListItem
	err := r.db.WithContext(ctx).
		Where("pick_list_id = ?", pickListID).
		Order("position ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) LockItem(ctx context.Context, pickListID, itemID uuid.UUID) (*models.PickListItem, error) {
	var item models.PickListItem
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND pick_list_id = ?", itemID, pickListID).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) SaveItem(ctx context.Context, item *models.PickListItem) error {
	return r.db.WithContext(ctx).
		Model(&models.PickListItem{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{
			"picked_qty":     item.PickedQty,
			"stock_deducted": item.StockDeducted,
			"is_complete":    item.IsComplete,
			"picked_at":      item.PickedAt,
			"picked_by":      item.PickedBy,
		}).Error
}

func (r *repository) CreateLog(ctx context.Context, entry *models.PickLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListLogs(ctx context.Context, pickListID uuid.UUID, limit int) ([]models.PickLog, error) {
	var logs []models.PickLog
	err := r.db.WithContext(ctx).
		Where("pick_list_id = ?", pickListID).
		Order("created_at DESC, id DESC").
		Limit(pagination.NormalizeLimit(limit)).
		Find(&logs).Error
	return logs, err
}

func (r *repository) LabelsWithOrders(ctx context.Context, labelIDs []uuid.UUID) ([]models.ShippingLabel, error) {
	if len(labelIDs) == 0 {
		return nil, nil
	}
	var labels []models.ShippingLabel
	err := r.db.WithContext(ctx).
		Preload("Order.LineItems", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Where("id IN ?", labelIDs).
		Find(&labels).Error
	return labels, err
}

func (r *repository) ProductsFor(ctx context.Context, ids []uuid.UUID, skus []string) ([]models.CatalogProduct, error) {
	if len(ids) == 0 && len(skus) == 0 {
		return nil, nil
	}
	q := r.db.WithContext(ctx).
		Preload("Recipe", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Recipe.Component")
	switch {
	case len(ids) > 0 && len(skus) > 0:
		q = q.Where("id IN ? OR sku IN ?", ids, skus)
	case len(ids) > 0:
		q = q.Where("id IN ?", ids)
	default:
		q = q.Where("sku IN ?", skus)
	}
	var products []models.CatalogProduct
	err := q.Find(&products).Error
	return products, err
}
