package picklists

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

// SourceLine is one sold row after merging every order line with the same
// SKU and variant.
type SourceLine struct {
	ProductID    *uuid.UUID
	SKU          string
	Barcode      *string
	Title        string
	VariantTitle string
	Quantity     int
}

// ExpandedRow is a pick list row before it is persisted.
type ExpandedRow struct {
	ProductID       *uuid.UUID
	ParentProductID *uuid.UUID
	SKU             string
	Barcode         *string
	Title           string
	VariantTitle    string
	Location        string
	RequiredQty     int
	IsParent        bool
}

type lineKey struct {
	sku     string
	variant string
}

// MergeLines sums quantities of lines sharing (SKU, variant title). The first
// occurrence wins for descriptive fields; output keeps first-seen order.
func MergeLines(items []models.OrderLineItem) []SourceLine {
	index := make(map[lineKey]int, len(items))
	merged := make([]SourceLine, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			continue
		}
		key := lineKey{
			sku:     strings.TrimSpace(item.SKU),
			variant: strings.TrimSpace(item.VariantTitle),
		}
		if pos, ok := index[key]; ok {
			merged[pos].Quantity += item.Quantity
			if merged[pos].ProductID == nil && item.ProductID != nil {
				merged[pos].ProductID = item.ProductID
			}
			continue
		}
		index[key] = len(merged)
		merged = append(merged, SourceLine{
			ProductID:    item.ProductID,
			SKU:          key.sku,
			Barcode:      item.Barcode,
			Title:        item.Title,
			VariantTitle: key.variant,
			Quantity:     item.Quantity,
		})
	}
	return merged
}

// Expander resolves sold lines against the catalog and expands composite
// products one level deep.
type Expander struct {
	byID  map[uuid.UUID]*models.CatalogProduct
	bySKU map[string]*models.CatalogProduct
	logg  *logger.Logger
}

// NewExpander indexes products (recipes and their components preloaded) by id and SKU.
func NewExpander(products []models.CatalogProduct, logg *logger.Logger) *Expander {
	e := &Expander{
		byID:  make(map[uuid.UUID]*models.CatalogProduct, len(products)),
		bySKU: make(map[string]*models.CatalogProduct, len(products)),
		logg:  logg,
	}
	for i := range products {
		p := &products[i]
		e.byID[p.ID] = p
		if sku := strings.TrimSpace(p.SKU); sku != "" {
			e.bySKU[sku] = p
		}
	}
	return e
}

func (e *Expander) resolve(line SourceLine) *models.CatalogProduct {
	if line.ProductID != nil {
		if p, ok := e.byID[*line.ProductID]; ok {
			return p
		}
	}
	return e.bySKU[line.SKU]
}

// Expand turns one sold line into pick rows. A composite product yields its
// parent row followed by one row per recipe entry scaled by the sold quantity;
// anything else is returned as a single row.
func (e *Expander) Expand(ctx context.Context, line SourceLine) []ExpandedRow {
	product := e.resolve(line)
	if product == nil || !product.IsComposite || len(product.Recipe) == 0 {
		return []ExpandedRow{plainRow(line, product)}
	}

	rows := make([]ExpandedRow, 0, len(product.Recipe)+1)
	parentID := product.ID
	rows = append(rows, ExpandedRow{
		ProductID:    &parentID,
		SKU:          line.SKU,
		Barcode:      firstBarcode(line.Barcode, product.Barcode),
		Title:        line.Title,
		VariantTitle: line.VariantTitle,
		Location:     product.Location,
		RequiredQty:  line.Quantity,
		IsParent:     true,
	})

	for _, entry := range product.Recipe {
		component := entry.Component
		if component == nil {
			component = e.byID[entry.ComponentID]
		}
		if component == nil || entry.Quantity <= 0 {
			e.warn(ctx, "picklists.bom_component_missing", product, entry.ComponentID)
			continue
		}
		if component.IsComposite {
			e.warn(ctx, "picklists.bom_nested_composite", product, component.ID)
		}
		componentID := component.ID
		rows = append(rows, ExpandedRow{
			ProductID:       &componentID,
			ParentProductID: &parentID,
			SKU:             component.SKU,
			Barcode:         component.Barcode,
			Title:           component.Title,
			Location:        component.Location,
			RequiredQty:     entry.Quantity * line.Quantity,
		})
	}
	if len(rows) == 1 {
		// every recipe entry was unusable; pick the product itself
		return []ExpandedRow{plainRow(line, product)}
	}
	return rows
}

func (e *Expander) warn(ctx context.Context, msg string, product *models.CatalogProduct, componentID uuid.UUID) {
	if e.logg == nil {
		return
	}
	e.logg.Warn(e.logg.WithFields(ctx, map[string]any{
		"product_id":   product.ID.String(),
		"sku":          product.SKU,
		"component_id": componentID.String(),
	}), msg)
}

func plainRow(line SourceLine, product *models.CatalogProduct) ExpandedRow {
	row := ExpandedRow{
		ProductID:    line.ProductID,
		SKU:          line.SKU,
		Barcode:      line.Barcode,
		Title:        line.Title,
		VariantTitle: line.VariantTitle,
		RequiredQty:  line.Quantity,
	}
	if product != nil {
		id := product.ID
		row.ProductID = &id
		row.Location = product.Location
		row.Barcode = firstBarcode(line.Barcode, product.Barcode)
	}
	return row
}

func firstBarcode(values ...*string) *string {
	for _, v := range values {
		if v != nil && strings.TrimSpace(*v) != "" {
			trimmed := strings.TrimSpace(*v)
			return &trimmed
		}
	}
	return nil
}
