package migrate_test

import (
	"context"
	"database/sql"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fulfillment-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	fsys := migrate.Migrations()
	matches, err := fs.Glob(fsys, "*_"+suffix+".sql")
	require.NoError(t, err)
	require.NotEmpty(t, matches, "no %s migration file found", suffix)

	data, err := fs.ReadFile(fsys, matches[0])
	require.NoError(t, err)
	return string(data)
}

func TestPickListMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "create_pick_lists")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS pick_lists",
		"code text NOT NULL UNIQUE",
		"CHECK (picked_qty <= required_qty)",
		"CHECK (stock_deducted >= 0 AND stock_deducted <= picked_qty)",
		"label_id uuid NOT NULL UNIQUE",
		"FOREIGN KEY (pick_list_id) REFERENCES pick_lists(id) ON DELETE CASCADE",
		"DROP TABLE IF EXISTS pick_lists",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}

	// pick logs survive the deletion of their list
	_, logs, ok := strings.Cut(content, "CREATE TABLE IF NOT EXISTS pick_logs")
	require.True(t, ok)
	logs, _, _ = strings.Cut(logs, ");")
	require.NotContains(t, logs, "REFERENCES")
}

func TestCatalogMigrationGuardsStock(t *testing.T) {
	content := readMigration(t, "create_catalog")
	require.Contains(t, content, "CHECK (stock_qty >= 0)")
	require.Contains(t, content, "CHECK (product_id <> component_id)")
}

func TestOrdersMigrationOneInvoiceAndLabelPerOrder(t *testing.T) {
	content := readMigration(t, "create_orders")
	require.Contains(t, content, "CREATE TABLE IF NOT EXISTS invoices (\n  id uuid PRIMARY KEY DEFAULT gen_random_uuid(),\n  order_id uuid NOT NULL UNIQUE")
	require.Contains(t, content, "CREATE TABLE IF NOT EXISTS shipping_labels (\n  id uuid PRIMARY KEY DEFAULT gen_random_uuid(),\n  order_id uuid NOT NULL UNIQUE")
	require.Contains(t, content, "REFERENCES shipping_labels(id) ON DELETE CASCADE")
}

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	require.NoError(t, migrate.Validate(migrate.Migrations()))
}

func TestCreateWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 5, 1, 12, 30, 0, 0, time.UTC)

	path, err := migrate.Create(dir, "Add Pick Notes!", now)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "20260501123000_add_pick_notes.sql"), path)
	require.NoError(t, migrate.Validate(os.DirFS(dir)))

	_, err = migrate.Create(dir, "add pick notes", now)
	require.Error(t, err, "same stamp and slug must not overwrite")

	_, err = migrate.Create(dir, "!!!", now)
	require.Error(t, err)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("001_init.sql", "-- +goose Up\n-- +goose Down\n")
	write("20260101000000_a.sql", "-- +goose Up\n")
	write("20260101000000_b.sql", "-- +goose Up\n-- +goose Down\n")
	write("notes.txt", "ignored")

	err := migrate.Validate(os.DirFS(dir))
	require.Error(t, err)
	msg := err.Error()
	require.Contains(t, msg, "001_init.sql")
	require.Contains(t, msg, `missing "-- +goose Down"`)
	require.Contains(t, msg, "already used")
	require.NotContains(t, msg, "notes.txt")
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	m, err := migrate.NewWithFS(&sql.DB{}, migrate.Migrations())
	require.NoError(t, err)
	require.Error(t, m.Run(context.Background(), migrate.Command("drop-everything")))

	_, err = migrate.New(nil)
	require.Error(t, err)
}
