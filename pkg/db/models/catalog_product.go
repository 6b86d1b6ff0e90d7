package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CatalogProduct carries the on-hand stock for a SKU. Composite products have
// recipe rows listing their components.
type CatalogProduct struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	SKU         string    `gorm:"column:sku;not null;uniqueIndex"`
	Barcode     *string   `gorm:"column:barcode"`
	Title       string    `gorm:"column:title;not null"`
	Location    string    `gorm:"column:location;not null;default:''"`
	IsComposite bool      `gorm:"column:is_composite;not null;default:false"`
	StockQty    int       `gorm:"column:stock_qty;not null;default:0"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`

	Recipe []ProductRecipe `gorm:"foreignKey:ProductID"`
}

func (p *CatalogProduct) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// ProductRecipe is one component line of a composite product.
type ProductRecipe struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID   uuid.UUID `gorm:"column:product_id;type:uuid;not null;index"`
	ComponentID uuid.UUID `gorm:"column:component_id;type:uuid;not null"`
	Quantity    int       `gorm:"column:quantity;not null"`
	Position    int       `gorm:"column:position;not null;default:0"`

	Component *CatalogProduct `gorm:"foreignKey:ComponentID"`
}

func (r *ProductRecipe) BeforeCreate(*gorm.DB) error {
	assignID(&r.ID)
	return nil
}
