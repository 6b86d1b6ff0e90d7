package picklists

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

func TestRepositoryLabelJoins(t *testing.T) {
	db := dbtest.Open(t, &models.PickList{}, &models.PickListLabel{})
	repo := NewRepository(db)
	ctx := context.Background()

	list := &models.PickList{Code: "PL-1", Name: "PL-1", CreatedBy: "ops", Status: enums.PickListStatusPending}
	require.NoError(t, repo.CreatePickList(ctx, list))

	labels := []uuid.UUID{uuid.New(), uuid.New()}
	require.NoError(t, repo.AttachLabels(ctx, list.ID, labels))

	attached, err := repo.AttachedLabelIDs(ctx, append([]uuid.UUID{uuid.New()}, labels...))
	require.NoError(t, err)
	require.ElementsMatch(t, labels, attached)

	err = repo.AttachLabels(ctx, uuid.New(), labels[:1])
	require.Error(t, err)
	require.True(t, isLabelCollision(err))

	released, err := repo.ReleaseLabels(ctx, list.ID)
	require.NoError(t, err)
	require.EqualValues(t, 2, released)

	attached, err = repo.AttachedLabelIDs(ctx, labels)
	require.NoError(t, err)
	require.Empty(t, attached)
}

func TestRepositoryCodeCollision(t *testing.T) {
	db := dbtest.Open(t, &models.PickList{})
	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.CreatePickList(ctx, &models.PickList{Code: "PL-1", Name: "a", CreatedBy: "ops", Status: enums.PickListStatusPending}))
	err := repo.CreatePickList(ctx, &models.PickList{Code: "PL-1", Name: "b", CreatedBy: "ops", Status: enums.PickListStatusPending})
	require.Error(t, err)
	require.True(t, isCodeCollision(err))
	require.False(t, isLabelCollision(err))
}

func TestRepositoryListStale(t *testing.T) {
	db := dbtest.Open(t, &models.PickList{})
	repo := NewRepository(db)
	ctx := context.Background()

	old := &models.PickList{Code: "PL-OLD", Name: "old", CreatedBy: "ops", Status: enums.PickListStatusInProgress}
	fresh := &models.PickList{Code: "PL-NEW", Name: "new", CreatedBy: "ops", Status: enums.PickListStatusInProgress}
	pending := &models.PickList{Code: "PL-PEN", Name: "pending", CreatedBy: "ops", Status: enums.PickListStatusPending}
	for _, l := range []*models.PickList{old, fresh, pending} {
		require.NoError(t, repo.CreatePickList(ctx, l))
	}
	cutoff := time.Now().Add(-time.Hour)
	require.NoError(t, db.Model(&models.PickList{}).
		Where("id IN ?", []uuid.UUID{old.ID, pending.ID}).
		UpdateColumn("updated_at", cutoff.Add(-time.Hour)).Error)

	stale, err := repo.ListStale(ctx, enums.PickListStatusInProgress, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	require.Equal(t, old.ID, stale[0].ID)
}
