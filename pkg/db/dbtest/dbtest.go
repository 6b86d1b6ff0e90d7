// Package dbtest opens isolated in-memory SQLite databases for repository and
// service tests.
package dbtest

import (
	"fmt"
	"strings"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
)

// AllModels lists every table the service owns, in dependency order.
func AllModels() []any {
	return []any{
		&models.Order{},
		&models.OrderLineItem{},
		&models.Invoice{},
		&models.ShippingLabel{},
		&models.ShippingLabelStatusHistory{},
		&models.ProcessingError{},
		&models.CatalogProduct{},
		&models.ProductRecipe{},
		&models.PickList{},
		&models.PickListItem{},
		&models.PickListLabel{},
		&models.PickLog{},
		&models.ActivityLog{},
		&models.Notification{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	}
}

// Open returns a fresh shared-cache memory database named after the test and
// migrated with the given models (all models when none are passed).
func Open(t *testing.T, tables ...any) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("failed to unwrap sqlite: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if len(tables) == 0 {
		tables = AllModels()
	}
	if err := conn.AutoMigrate(tables...); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}
	return conn
}
