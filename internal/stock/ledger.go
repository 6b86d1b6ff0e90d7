// Package stock owns on-hand quantities of catalog products. Every mutation
// runs on the caller's transaction and locks the product row first.
package stock

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
)

// ErrProductNotFound means neither the product link nor the SKU resolved.
var ErrProductNotFound = errors.New("catalog product not found")

// Ref identifies a product by id, falling back to SKU when the id is absent.
type Ref struct {
	ProductID *uuid.UUID
	SKU       string
}

type Ledger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	if tx == nil {
		return l
	}
	return &Ledger{db: tx}
}

// Decrement removes up to qty units and returns how many were actually taken.
// Stock never goes below zero. An unresolvable product takes nothing.
func (l *Ledger) Decrement(ctx context.Context, ref Ref, qty int) (int, error) {
	if qty <= 0 {
		return 0, nil
	}
	product, err := l.lock(ctx, ref)
	if errors.Is(err, ErrProductNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	taken := qty
	if product.StockQty < taken {
		taken = product.StockQty
	}
	if taken == 0 {
		return 0, nil
	}
	if err := l.setQty(ctx, product.ID, product.StockQty-taken); err != nil {
		return 0, err
	}
	return taken, nil
}

// Restore returns qty units to stock.
func (l *Ledger) Restore(ctx context.Context, ref Ref, qty int) error {
	if qty <= 0 {
		return nil
	}
	product, err := l.lock(ctx, ref)
	if errors.Is(err, ErrProductNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return l.setQty(ctx, product.ID, product.StockQty+qty)
}

// Get reads a product without locking.
func (l *Ledger) Get(ctx context.Context, ref Ref) (*models.CatalogProduct, error) {
	return l.find(l.db.WithContext(ctx), ref)
}

func (l *Ledger) lock(ctx context.Context, ref Ref) (*models.CatalogProduct, error) {
	return l.find(l.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), ref)
}

func (l *Ledger) find(q *gorm.DB, ref Ref) (*models.CatalogProduct, error) {
	var product models.CatalogProduct
	var err error
	switch {
	case ref.ProductID != nil && *ref.ProductID != uuid.Nil:
		err = q.Where("id = ?", *ref.ProductID).First(&product).Error
	case strings.TrimSpace(ref.SKU) != "":
		err = q.Where("sku = ?", strings.TrimSpace(ref.SKU)).First(&product).Error
	default:
		return nil, ErrProductNotFound
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (l *Ledger) setQty(ctx context.Context, productID uuid.UUID, qty int) error {
	return l.db.WithContext(ctx).
		Model(&models.CatalogProduct{}).
		Where("id = ?", productID).
		Update("stock_qty", qty).Error
}
