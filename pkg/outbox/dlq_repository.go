package outbox

import (
	"context"
	"errors"
	"unicode/utf8"

	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

const maxDLQErrorLen = 1024

// DLQRepository stores outbox rows the publisher gave up on.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// InsertTx must run in the same transaction that marks the source row
// terminal, otherwise a crash between the two loses or duplicates the row.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if entry.ErrorMessage != nil {
		msg := truncateUTF8(*entry.ErrorMessage, maxDLQErrorLen)
		entry.ErrorMessage = &msg
	}
	return tx.Create(&entry).Error
}

// Depth counts dead-lettered rows per reason. Reasons with no rows are
// reported as zero so gauges drop back after a replay.
func (r *DLQRepository) Depth(ctx context.Context) (map[enums.OutboxDLQErrorReason]int64, error) {
	var rows []struct {
		Reason enums.OutboxDLQErrorReason `gorm:"column:error_reason"`
		Count  int64                      `gorm:"column:count"`
	}
	err := r.db.WithContext(ctx).
		Model(&models.OutboxDLQ{}).
		Select("error_reason, COUNT(*) AS count").
		Group("error_reason").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	depth := make(map[enums.OutboxDLQErrorReason]int64, len(enums.OutboxDLQErrorReasons()))
	for _, reason := range enums.OutboxDLQErrorReasons() {
		depth[reason] = 0
	}
	for _, row := range rows {
		depth[row.Reason] = row.Count
	}
	return depth, nil
}

func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	s = s[:limit]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
