package picklists

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/internal/activity"
	"github.com/angelmondragon/fulfillment-backend/internal/notifications"
	"github.com/angelmondragon/fulfillment-backend/internal/stock"
	dbpkg "github.com/angelmondragon/fulfillment-backend/pkg/db"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
)

var fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

type stubCodes struct {
	nextFn func(ctx context.Context, now time.Time) (string, error)
	seq    int
}

func (s *stubCodes) Next(ctx context.Context, now time.Time) (string, error) {
	if s.nextFn != nil {
		return s.nextFn(ctx, now)
	}
	s.seq++
	return FormatCode("PL", now, int64(s.seq)), nil
}

type stubNotifier struct {
	notifyFn func(ctx context.Context, role string, msg notifications.Message) error
	roles    []string
	messages []notifications.Message
}

func (s *stubNotifier) NotifyUsers(ctx context.Context, role string, msg notifications.Message) error {
	s.roles = append(s.roles, role)
	s.messages = append(s.messages, msg)
	if s.notifyFn != nil {
		return s.notifyFn(ctx, role, msg)
	}
	return nil
}

type stubRenderer struct {
	renderFn func(ctx context.Context, list *models.PickList) (string, error)
	calls    int
}

func (s *stubRenderer) RenderDocument(ctx context.Context, list *models.PickList) (string, error) {
	s.calls++
	if s.renderFn != nil {
		return s.renderFn(ctx, list)
	}
	return "picklists/" + list.Code + ".pdf", nil
}

type fixture struct {
	db       *gorm.DB
	codes    *stubCodes
	builder  *Builder
	svc      *Service
	notifier *stubNotifier
	docs     *stubRenderer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	client := dbpkg.FromGorm(db)
	emitter := outbox.NewService(outbox.NewRepository(db), nil)
	repo := NewRepository(db)

	realNotifier, err := notifications.NewNotifier(db, emitter, logg)
	require.NoError(t, err)

	f := &fixture{
		db:       db,
		codes:    &stubCodes{},
		notifier: &stubNotifier{},
		docs:     &stubRenderer{},
	}
	clock := func() time.Time { return fixedNow }

	f.builder, err = NewBuilder(BuilderParams{
		Tx:         client,
		Repo:       repo,
		Codes:      f.codes,
		Outbox:     emitter,
		Notifier:   realNotifier,
		Activity:   activity.NewLogger(db),
		Logger:     logg,
		PickerRole: "picker",
		Clock:      clock,
	})
	require.NoError(t, err)

	f.svc, err = NewService(ServiceParams{
		Tx:        client,
		Repo:      repo,
		Stock:     stock.NewLedger(db),
		Outbox:    emitter,
		Notifier:  f.notifier,
		Documents: f.docs,
		Activity:  activity.NewLogger(db),
		Logger:    logg,
		Config:    Config{AdminRole: "admin", RenderDocuments: true},
		Clock:     clock,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) product(t *testing.T, sku, location string, stockQty int) *models.CatalogProduct {
	t.Helper()
	barcode := "BC-" + sku
	p := &models.CatalogProduct{SKU: sku, Barcode: &barcode, Title: "Product " + sku, Location: location, StockQty: stockQty}
	require.NoError(t, f.db.Create(p).Error)
	return p
}

func (f *fixture) composite(t *testing.T, sku string, components map[*models.CatalogProduct]int) *models.CatalogProduct {
	t.Helper()
	p := &models.CatalogProduct{SKU: sku, Title: "Kit " + sku, Location: "A-00", IsComposite: true}
	require.NoError(t, f.db.Create(p).Error)
	pos := 0
	for component, qty := range components {
		require.NoError(t, f.db.Create(&models.ProductRecipe{
			ProductID:   p.ID,
			ComponentID: component.ID,
			Quantity:    qty,
			Position:    pos,
		}).Error)
		pos++
	}
	return p
}

type line struct {
	product *models.CatalogProduct
	qty     int
}

// labeledOrder stores an order with one line per entry and a label for it.
func (f *fixture) labeledOrder(t *testing.T, lines ...line) *models.ShippingLabel {
	t.Helper()
	order := &models.Order{
		OrderNumber:  fmt.Sprintf("ORD-%s", uuid.NewString()[:8]),
		Channel:      "web",
		CustomerName: "Ana Pop",
		TotalAmount:  decimal.NewFromInt(100),
	}
	require.NoError(t, f.db.Create(order).Error)
	for _, l := range lines {
		id := l.product.ID
		require.NoError(t, f.db.Create(&models.OrderLineItem{
			OrderID:   order.ID,
			ProductID: &id,
			SKU:       l.product.SKU,
			Title:     l.product.Title,
			Quantity:  l.qty,
			UnitPrice: decimal.NewFromInt(10),
		}).Error)
	}
	label := &models.ShippingLabel{
		OrderID:     order.ID,
		LabelNumber: "AWB-" + order.OrderNumber,
		Carrier:     "fan",
		Status:      enums.LabelStatusCreated,
	}
	require.NoError(t, f.db.Create(label).Error)
	return label
}

func (f *fixture) build(t *testing.T, labels ...*models.ShippingLabel) *models.PickList {
	t.Helper()
	ids := make([]uuid.UUID, 0, len(labels))
	for _, l := range labels {
		ids = append(ids, l.ID)
	}
	list, err := f.builder.Build(context.Background(), BuildInput{LabelIDs: ids, Actor: "ops"})
	require.NoError(t, err)
	return list
}

func (f *fixture) stockOf(t *testing.T, id uuid.UUID) int {
	t.Helper()
	var p models.CatalogProduct
	require.NoError(t, f.db.First(&p, "id = ?", id).Error)
	return p.StockQty
}

func (f *fixture) itemFor(t *testing.T, listID uuid.UUID, sku string) models.PickListItem {
	t.Helper()
	var item models.PickListItem
	require.NoError(t, f.db.Where("pick_list_id = ? AND sku = ? AND is_parent = ?", listID, sku, false).First(&item).Error)
	return item
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) models.PickList {
	t.Helper()
	var list models.PickList
	require.NoError(t, f.db.First(&list, "id = ?", id).Error)
	return list
}

func (f *fixture) logActions(t *testing.T, listID uuid.UUID) []enums.PickLogAction {
	t.Helper()
	var rows []models.PickLog
	require.NoError(t, f.db.Where("pick_list_id = ?", listID).Order("created_at ASC").Find(&rows).Error)
	out := make([]enums.PickLogAction, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Action)
	}
	return out
}

func (f *fixture) activityCounts(t *testing.T, listID uuid.UUID) map[string]int {
	t.Helper()
	var rows []models.ActivityLog
	require.NoError(t, f.db.Where("entity_type = ? AND entity_id = ?", activity.EntityPickList, listID).Find(&rows).Error)
	out := make(map[string]int, len(rows))
	for _, row := range rows {
		out[row.Action]++
	}
	return out
}

func (f *fixture) outboxTypes(t *testing.T) []enums.OutboxEventType {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, f.db.Order("created_at ASC").Find(&rows).Error)
	out := make([]enums.OutboxEventType, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.EventType)
	}
	return out
}
