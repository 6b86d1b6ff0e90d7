package router

import (
	"context"

	"github.com/angelmondragon/fulfillment-backend/internal/analytics/types"
)

type fakeWriter struct {
	batchRows    []types.BatchOrderRow
	pickListRows []types.PickListCompletionRow
	err          error
}

func (f *fakeWriter) InsertBatchOrders(_ context.Context, rows []types.BatchOrderRow) error {
	f.batchRows = append(f.batchRows, rows...)
	return f.err
}

func (f *fakeWriter) InsertPickListCompletion(_ context.Context, row types.PickListCompletionRow) error {
	f.pickListRows = append(f.pickListRows, row)
	return f.err
}
