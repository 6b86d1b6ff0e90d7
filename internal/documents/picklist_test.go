package documents

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
)

type stubUploader struct {
	uploadFn func(ctx context.Context, object, contentType string, data []byte) error
}

func (s stubUploader) Upload(ctx context.Context, object, contentType string, data []byte) error {
	return s.uploadFn(ctx, object, contentType, data)
}

func sampleList() *models.PickList {
	parent := uuid.New()
	barcode := "5940000000011"
	return &models.PickList{
		Code:          "PL-20260301-0001",
		Name:          "Morning batch",
		Status:        enums.PickListStatusPending,
		TotalItems:    2,
		TotalQuantity: 25,
		Items: []models.PickListItem{
			{SKU: "KIT-1", Title: "Gift kit", RequiredQty: 5, IsParent: true},
			{SKU: "X", Barcode: &barcode, Title: "Mug", Location: "A-01", RequiredQty: 10, ParentProductID: &parent},
			{SKU: "Y", Title: "Spoon", Location: "A-02", RequiredQty: 15, ParentProductID: &parent},
		},
	}
}

func TestRenderPickListWritesRows(t *testing.T) {
	data, err := RenderPickList(sampleList())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Contains(t, rows[0][0], "PL-20260301-0001")
	require.Equal(t, "Location", rows[3][0])
	require.Equal(t, "KIT-1", rows[4][1])
	require.Equal(t, "  - Mug", rows[5][3])
	require.Equal(t, "5940000000011", rows[5][2])
	require.Equal(t, "15", rows[6][5])
}

func TestRenderPickListRequiresList(t *testing.T) {
	_, err := RenderPickList(nil)
	require.Error(t, err)
}

func TestArchiverUploadsUnderPrefix(t *testing.T) {
	var gotObject, gotType string
	archiver, err := NewArchiver(stubUploader{uploadFn: func(_ context.Context, object, contentType string, data []byte) error {
		gotObject, gotType = object, contentType
		require.NotEmpty(t, data)
		return nil
	}}, "/picklists/")
	require.NoError(t, err)

	object, err := archiver.RenderDocument(context.Background(), sampleList())
	require.NoError(t, err)
	require.Equal(t, "picklists/PL-20260301-0001.xlsx", object)
	require.Equal(t, object, gotObject)
	require.Equal(t, XLSXContentType, gotType)
}

func TestArchiverPropagatesUploadError(t *testing.T) {
	archiver, err := NewArchiver(stubUploader{uploadFn: func(context.Context, string, string, []byte) error {
		return errors.New("bucket unavailable")
	}}, "docs")
	require.NoError(t, err)

	_, err = archiver.RenderDocument(context.Background(), sampleList())
	require.EqualError(t, err, "bucket unavailable")
}
