// Package documents renders printable pick-list workbooks and archives them in
// object storage.
package documents

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
)

const (
	sheetName       = "Pick list"
	XLSXContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var columns = []struct {
	header string
	width  float64
}{
	{"Location", 14},
	{"SKU", 18},
	{"Barcode", 18},
	{"Product", 40},
	{"Variant", 18},
	{"Required", 10},
	{"Picked", 10},
	{"Done", 8},
}

// RenderPickList builds the workbook for list. Items are written in the order
// given; component rows are indented under their parent.
func RenderPickList(list *models.PickList) ([]byte, error) {
	if list == nil {
		return nil, errors.New("pick list required")
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, err
	}

	titleStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}})
	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "#000000", Style: 1},
		},
	})
	parentStyle, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Italic: true}})

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s  %s", list.Code, list.Name))
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)
	_ = f.SetCellValue(sheetName, "A2", fmt.Sprintf("Status: %s", list.Status))
	_ = f.SetCellValue(sheetName, "D2", fmt.Sprintf("Generated %s", time.Now().UTC().Format(time.RFC3339)))
	if list.AssignedTo != nil {
		_ = f.SetCellValue(sheetName, "F2", "Assigned: "+*list.AssignedTo)
	}

	const headerRow = 4
	for i, col := range columns {
		name, _ := excelize.ColumnNumberToName(i + 1)
		cell := fmt.Sprintf("%s%d", name, headerRow)
		_ = f.SetCellValue(sheetName, cell, col.header)
		_ = f.SetCellStyle(sheetName, cell, cell, headerStyle)
		_ = f.SetColWidth(sheetName, name, name, col.width)
	}

	row := headerRow + 1
	for _, item := range list.Items {
		title := item.Title
		if item.ParentProductID != nil && !item.IsParent {
			title = "  - " + title
		}
		barcode := ""
		if item.Barcode != nil {
			barcode = *item.Barcode
		}
		done := ""
		if item.IsComplete {
			done = "x"
		}
		values := []any{item.Location, item.SKU, barcode, title, item.VariantTitle, item.RequiredQty, item.PickedQty, done}
		if item.IsParent {
			values[5], values[6], values[7] = "", "", ""
		}
		for i, v := range values {
			name, _ := excelize.ColumnNumberToName(i + 1)
			_ = f.SetCellValue(sheetName, fmt.Sprintf("%s%d", name, row), v)
		}
		if item.IsParent {
			_ = f.SetCellStyle(sheetName, fmt.Sprintf("A%d", row), fmt.Sprintf("H%d", row), parentStyle)
		}
		row++
	}

	_ = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row+1), "Totals")
	_ = f.SetCellValue(sheetName, fmt.Sprintf("D%d", row+1), fmt.Sprintf("%d items", list.TotalItems))
	_ = f.SetCellValue(sheetName, fmt.Sprintf("F%d", row+1), list.TotalQuantity)
	_ = f.SetCellValue(sheetName, fmt.Sprintf("G%d", row+1), list.PickedQuantity)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Uploader stores rendered bytes; satisfied by the GCS client.
type Uploader interface {
	Upload(ctx context.Context, objectName, contentType string, data []byte) error
}

// Archiver renders a list and uploads the workbook under prefix.
type Archiver struct {
	uploader Uploader
	prefix   string
}

func NewArchiver(uploader Uploader, prefix string) (*Archiver, error) {
	if uploader == nil {
		return nil, errors.New("uploader required")
	}
	return &Archiver{uploader: uploader, prefix: strings.Trim(prefix, "/")}, nil
}

// ObjectPath is where the workbook for list is stored.
func (a *Archiver) ObjectPath(list *models.PickList) string {
	return path.Join(a.prefix, list.Code+".xlsx")
}

// RenderDocument renders and uploads the workbook, returning the object path.
func (a *Archiver) RenderDocument(ctx context.Context, list *models.PickList) (string, error) {
	data, err := RenderPickList(list)
	if err != nil {
		return "", err
	}
	object := a.ObjectPath(list)
	if err := a.uploader.Upload(ctx, object, XLSXContentType, data); err != nil {
		return "", err
	}
	return object, nil
}
