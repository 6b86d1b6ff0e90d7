package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/pagination"
)

// Repository stores notifications addressed to a staff role. Every read and
// update is scoped to one role.
type Repository interface {
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error)
	MarkRead(ctx context.Context, role string, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error)
	MarkAllRead(ctx context.Context, role string, now time.Time) (int64, error)
	DeleteReadBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type listNotificationsParams struct {
	Role       string
	Limit      int
	Cursor     *pagination.Cursor
	UnreadOnly bool
}

// notificationMarkResult separates "already read" (Found, not Updated) from
// "no such notification for this role".
type notificationMarkResult struct {
	Updated bool
	Found   bool
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func forRole(role string) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB { return q.Where("role = ?", role) }
}

func unread(q *gorm.DB) *gorm.DB { return q.Where("read_at IS NULL") }

func (r *gormRepository) inbox(ctx context.Context, role string) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Notification{}).Scopes(forRole(role))
}

func (r *gormRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *gormRepository) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error) {
	q := r.inbox(ctx, params.Role)
	if params.UnreadOnly {
		q = q.Scopes(unread)
	}
	var rows []models.Notification
	if err := q.Scopes(pagination.Scope(params.Cursor, params.Limit)).Find(&rows).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(rows, params.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{CreatedAt: n.CreatedAt, ID: n.ID}
	})
	return page, next, nil
}

func (r *gormRepository) MarkRead(ctx context.Context, role string, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
	res := r.inbox(ctx, role).Scopes(unread).Where("id = ?", notificationID).UpdateColumn("read_at", now)
	if res.Error != nil {
		return notificationMarkResult{}, res.Error
	}
	if res.RowsAffected > 0 {
		return notificationMarkResult{Updated: true, Found: true}, nil
	}

	var count int64
	if err := r.inbox(ctx, role).Where("id = ?", notificationID).Count(&count).Error; err != nil {
		return notificationMarkResult{}, err
	}
	return notificationMarkResult{Found: count > 0}, nil
}

func (r *gormRepository) MarkAllRead(ctx context.Context, role string, now time.Time) (int64, error) {
	res := r.inbox(ctx, role).Scopes(unread).UpdateColumn("read_at", now)
	return res.RowsAffected, res.Error
}

// DeleteReadBefore runs on tx when given. Unread notifications are never
// deleted, however old.
func (r *gormRepository) DeleteReadBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	res := tx.WithContext(ctx).
		Where("read_at IS NOT NULL AND read_at < ?", cutoff).
		Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
