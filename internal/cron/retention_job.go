package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

const (
	outboxRetentionDays       = 30
	outboxMinAttempts         = 5
	notificationRetentionDays = 30
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxSweeper interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type notificationSweeper interface {
	DeleteReadBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Repository  outboxSweeper
	Retention   int
	MinAttempts int
}

// NewOutboxRetentionJob deletes published outbox rows, and rows that ran out
// of publish attempts, once they are older than the retention window.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	minAttempts := params.MinAttempts
	if minAttempts <= 0 {
		minAttempts = outboxMinAttempts
	}
	repo := params.Repository
	return newRetentionJob(retentionJobParams{
		name:      "outbox-retention",
		logg:      params.Logger,
		db:        params.DB,
		retention: params.Retention,
		fallback:  outboxRetentionDays,
		fields:    map[string]any{"min_attempts": minAttempts},
		sweep: func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
			return repo.DeletePublishedBefore(ctx, tx, cutoff, minAttempts)
		},
	})
}

type NotificationRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository notificationSweeper
	Retention  int
}

// NewNotificationRetentionJob deletes notifications that were read before the
// retention window.
func NewNotificationRetentionJob(params NotificationRetentionJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	return newRetentionJob(retentionJobParams{
		name:      "notification-retention",
		logg:      params.Logger,
		db:        params.DB,
		retention: params.Retention,
		fallback:  notificationRetentionDays,
		sweep:     params.Repository.DeleteReadBefore,
	})
}

type sweepFunc func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)

type retentionJobParams struct {
	name      string
	logg      *logger.Logger
	db        txRunner
	retention int
	fallback  int
	fields    map[string]any
	sweep     sweepFunc
}

type retentionJob struct {
	name      string
	logg      *logger.Logger
	db        txRunner
	retention int
	fields    map[string]any
	sweep     sweepFunc
	now       func() time.Time
}

func newRetentionJob(p retentionJobParams) (*retentionJob, error) {
	if p.logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if p.db == nil {
		return nil, fmt.Errorf("db runner required")
	}
	retention := p.retention
	if retention <= 0 {
		retention = p.fallback
	}
	return &retentionJob{
		name:      p.name,
		logg:      p.logg,
		db:        p.db,
		retention: retention,
		fields:    p.fields,
		sweep:     p.sweep,
		now:       time.Now,
	}, nil
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.sweep(ctx, tx, cutoff)
		if err != nil {
			return err
		}
		deleted = rows
		return nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}

	fields := map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	}
	for k, v := range j.fields {
		fields[k] = v
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), "cron.retention.swept")
	return nil
}
