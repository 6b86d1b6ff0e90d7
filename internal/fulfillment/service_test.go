package fulfillment

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/internal/activity"
	"github.com/angelmondragon/fulfillment-backend/internal/picklists"
	"github.com/angelmondragon/fulfillment-backend/pkg/carrier"
	dbpkg "github.com/angelmondragon/fulfillment-backend/pkg/db"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/invoicing"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/redis"
)

type stubInvoices struct {
	issueFn func(ctx context.Context, req invoicing.Request) (*invoicing.Result, error)
	calls   []invoicing.Request
}

func (s *stubInvoices) IssueInvoice(ctx context.Context, req invoicing.Request) (*invoicing.Result, error) {
	s.calls = append(s.calls, req)
	if s.issueFn != nil {
		return s.issueFn(ctx, req)
	}
	return &invoicing.Result{Success: true, InvoiceNumber: fmt.Sprintf("%04d", len(s.calls)), InvoiceSeries: req.Series}, nil
}

type stubLabels struct {
	createFn func(ctx context.Context, req carrier.Request) (*carrier.Result, error)
	calls    []carrier.Request
}

func (s *stubLabels) CreateShippingLabel(ctx context.Context, req carrier.Request) (*carrier.Result, error) {
	s.calls = append(s.calls, req)
	if s.createFn != nil {
		return s.createFn(ctx, req)
	}
	return &carrier.Result{
		Success:     true,
		LabelNumber: "AWB-" + req.OrderNumber,
		Carrier:     "fan",
		StatusText:  "created",
		Status:      enums.LabelStatusCreated,
	}, nil
}

type stubBuilder struct {
	buildFn func(ctx context.Context, input picklists.BuildInput) (*models.PickList, error)
	inputs  []picklists.BuildInput
}

func (s *stubBuilder) Build(ctx context.Context, input picklists.BuildInput) (*models.PickList, error) {
	s.inputs = append(s.inputs, input)
	if s.buildFn != nil {
		return s.buildFn(ctx, input)
	}
	return &models.PickList{ID: uuid.New(), Code: "PL-20260301-0001", TotalItems: len(input.LabelIDs), TotalQuantity: len(input.LabelIDs)}, nil
}

type memoryLocks struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemoryLocks() *memoryLocks {
	return &memoryLocks{values: map[string]string{}}
}

func (m *memoryLocks) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = fmt.Sprint(value)
	return true, nil
}

func (m *memoryLocks) ReleaseIfOwner(_ context.Context, key, owner string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.values[key] != owner {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func (m *memoryLocks) LockKey(parts ...string) string {
	return "ful:lock:" + strings.Join(parts, ":")
}

type harness struct {
	db       *gorm.DB
	svc      *Service
	invoices *stubInvoices
	labels   *stubLabels
	builder  *stubBuilder
	locks    *memoryLocks
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := dbtest.Open(t)
	h := &harness{
		db:       db,
		invoices: &stubInvoices{},
		labels:   &stubLabels{},
		builder:  &stubBuilder{},
		locks:    newMemoryLocks(),
	}
	svc, err := NewService(ServiceParams{
		Tx:       dbpkg.FromGorm(db),
		Repo:     NewRepository(db),
		Invoices: h.invoices,
		Labels:   h.labels,
		Builder:  h.builder,
		Outbox:   outbox.NewService(outbox.NewRepository(db), nil),
		Activity: activity.NewLogger(db),
		Locks:    h.locks,
		Logger:   logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		Settings: Settings{InvoiceSeries: "FCT", MaxBatchSize: 10},
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *harness) order(t *testing.T, number string) *models.Order {
	t.Helper()
	o := &models.Order{OrderNumber: number, Channel: "web", CustomerName: "Ana Pop", TotalAmount: decimal.NewFromInt(50)}
	require.NoError(t, h.db.Create(o).Error)
	require.NoError(t, h.db.Create(&models.OrderLineItem{
		OrderID: o.ID, SKU: "MUG", Title: "Mug", Quantity: 2, UnitPrice: decimal.NewFromInt(25),
	}).Error)
	return o
}

func (h *harness) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}

func TestProcessBatchIsolatesInvoiceFailure(t *testing.T) {
	h := newHarness(t)
	a := h.order(t, "A-1")
	b := h.order(t, "B-1")
	h.invoices.issueFn = func(_ context.Context, req invoicing.Request) (*invoicing.Result, error) {
		if req.OrderID == a.ID {
			return &invoicing.Result{Success: false, Error: "customer tax id invalid"}, nil
		}
		return &invoicing.Result{Success: true, InvoiceNumber: "0042", InvoiceSeries: "FCT"}, nil
	}

	res, err := h.svc.ProcessBatch(context.Background(), BatchInput{
		OrderIDs:       []uuid.UUID{a.ID, b.ID},
		CreatePickList: true,
		Actor:          "ops",
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, Stats{Total: 2, Success: 1, Failed: 1, InvoicesIssued: 1, LabelsCreated: 1}, res.Stats)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, a.ID, res.Errors[0].OrderID)
	assert.Equal(t, "invoice", res.Errors[0].Step)
	assert.Equal(t, "customer tax id invalid", res.Errors[0].Message)

	// the label step is skipped for the failed order
	require.Len(t, h.labels.calls, 1)
	assert.Equal(t, b.ID, h.labels.calls[0].OrderID)

	assert.EqualValues(t, 1, h.count(t, &models.ProcessingError{}, "batch_id = ? AND order_id = ? AND type = ?", res.BatchID, a.ID, enums.ProcessingErrorInvoice))
	assert.EqualValues(t, 1, h.count(t, &models.Invoice{}, "order_id = ? AND number = ?", b.ID, "0042"))
	assert.EqualValues(t, 2, h.count(t, &models.ActivityLog{}, "entity_type = ?", activity.EntityOrder))
	assert.EqualValues(t, 1, h.count(t, &models.OutboxEvent{}, "event_type = ?", enums.EventBatchProcessed))

	require.Len(t, h.builder.inputs, 1)
	assert.Len(t, h.builder.inputs[0].LabelIDs, 1)
	assert.Equal(t, res.BatchID, *h.builder.inputs[0].BatchID)
	require.NotNil(t, res.PickList)
	assert.Contains(t, res.Message, res.PickList.Code)
}

func TestProcessBatchRecoversPanics(t *testing.T) {
	h := newHarness(t)
	a := h.order(t, "A-1")
	b := h.order(t, "B-1")
	h.labels.createFn = func(_ context.Context, req carrier.Request) (*carrier.Result, error) {
		if req.OrderID == a.ID {
			panic("carrier sdk nil map")
		}
		return &carrier.Result{Success: true, LabelNumber: "AWB-B", Carrier: "fan", Status: enums.LabelStatusCreated}, nil
	}

	res, err := h.svc.ProcessBatch(context.Background(), BatchInput{OrderIDs: []uuid.UUID{a.ID, b.ID}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stats.Failed)
	assert.Equal(t, 1, res.Stats.Success)
	assert.Equal(t, "label", res.Results[0].FailedStep)
	assert.Contains(t, res.Results[0].Error, "carrier sdk nil map")
	assert.True(t, res.Results[0].InvoiceIssued)
	assert.EqualValues(t, 1, h.count(t, &models.ProcessingError{}, "order_id = ? AND type = ?", a.ID, enums.ProcessingErrorLabel))

	// no pick list requested
	assert.Empty(t, h.builder.inputs)
}

func TestProcessBatchSeriesLockConflict(t *testing.T) {
	h := newHarness(t)
	a := h.order(t, "A-1")

	held, err := redis.NewLock(h.locks, h.locks.LockKey("batch", "invoice-series", "FCT"), time.Minute)
	require.NoError(t, err)
	ok, err := held.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	_, err = h.svc.ProcessBatch(context.Background(), BatchInput{OrderIDs: []uuid.UUID{a.ID}})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	assert.Empty(t, h.invoices.calls)

	require.NoError(t, held.Release(context.Background()))
	_, err = h.svc.ProcessBatch(context.Background(), BatchInput{OrderIDs: []uuid.UUID{a.ID}})
	require.NoError(t, err)
	assert.Empty(t, h.locks.values)
}

func TestProcessBatchSkipsCompletedSteps(t *testing.T) {
	h := newHarness(t)
	done := h.order(t, "DONE-1")
	require.NoError(t, h.db.Create(&models.Invoice{OrderID: done.ID, Series: "FCT", Number: "0007", Status: enums.InvoiceStatusIssued}).Error)
	label := &models.ShippingLabel{OrderID: done.ID, LabelNumber: "AWB-7", Carrier: "fan", Status: enums.LabelStatusCreated}
	require.NoError(t, h.db.Create(label).Error)

	res, err := h.svc.ProcessBatch(context.Background(), BatchInput{OrderIDs: []uuid.UUID{done.ID}, CreatePickList: true})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "0007", res.Results[0].InvoiceNumber)
	assert.Equal(t, "AWB-7", res.Results[0].LabelNumber)
	assert.Empty(t, h.invoices.calls)
	assert.Empty(t, h.labels.calls)

	// an existing label that no list consumed still goes on the pick list
	require.Len(t, h.builder.inputs, 1)
	assert.Equal(t, []uuid.UUID{label.ID}, h.builder.inputs[0].LabelIDs)
}

func TestProcessBatchReplacesCancelledLabelAndReissuesInvoice(t *testing.T) {
	h := newHarness(t)
	o := h.order(t, "RE-1")
	require.NoError(t, h.db.Create(&models.Invoice{OrderID: o.ID, Series: "FCT", Number: "0001", Status: enums.InvoiceStatusCancelled}).Error)
	old := &models.ShippingLabel{OrderID: o.ID, LabelNumber: "AWB-OLD", Carrier: "fan", Status: enums.LabelStatusVoided}
	require.NoError(t, h.db.Create(old).Error)
	require.NoError(t, h.db.Create(&models.ShippingLabelStatusHistory{LabelID: old.ID, StatusText: "voided", Status: enums.LabelStatusVoided}).Error)

	res, err := h.svc.ProcessBatch(context.Background(), BatchInput{OrderIDs: []uuid.UUID{o.ID}})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.True(t, res.Results[0].InvoiceIssued)
	assert.True(t, res.Results[0].LabelCreated)

	var invoices []models.Invoice
	require.NoError(t, h.db.Where("order_id = ?", o.ID).Find(&invoices).Error)
	require.Len(t, invoices, 1)
	assert.Equal(t, enums.InvoiceStatusIssued, invoices[0].Status)
	assert.Equal(t, "0001", invoices[0].Number)

	assert.EqualValues(t, 0, h.count(t, &models.ShippingLabel{}, "id = ?", old.ID))
	assert.EqualValues(t, 0, h.count(t, &models.ShippingLabelStatusHistory{}, "label_id = ?", old.ID))
	assert.EqualValues(t, 1, h.count(t, &models.ShippingLabel{}, "order_id = ? AND label_number = ?", o.ID, "AWB-RE-1"))
}

func TestProcessBatchMissingOrderAndTransportError(t *testing.T) {
	h := newHarness(t)
	o := h.order(t, "T-1")
	missing := uuid.New()
	h.invoices.issueFn = func(context.Context, invoicing.Request) (*invoicing.Result, error) {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "execute invoice request")
	}

	res, err := h.svc.ProcessBatch(context.Background(), BatchInput{OrderIDs: []uuid.UUID{missing, o.ID, missing}})
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "order not found", res.Results[0].Error)
	assert.Equal(t, "execute invoice request", res.Results[1].Error)
	assert.Equal(t, 2, res.Stats.Failed)
	assert.EqualValues(t, 0, h.count(t, &models.ProcessingError{}, "order_id = ?", missing))
}

func TestProcessBatchReportsPickListFailure(t *testing.T) {
	h := newHarness(t)
	o := h.order(t, "P-1")
	h.builder.buildFn = func(context.Context, picklists.BuildInput) (*models.PickList, error) {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "shipping label already belongs to another pick list")
	}

	res, err := h.svc.ProcessBatch(context.Background(), BatchInput{OrderIDs: []uuid.UUID{o.ID}, CreatePickList: true})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Nil(t, res.PickList)
	assert.Contains(t, res.PickListError, "another pick list")
	assert.Contains(t, res.Message, "pick list not created")
}

func TestProcessBatchValidation(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.ProcessBatch(context.Background(), BatchInput{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	ids := make([]uuid.UUID, 11)
	for i := range ids {
		ids[i] = uuid.New()
	}
	_, err = h.svc.ProcessBatch(context.Background(), BatchInput{OrderIDs: ids})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestErrorsListsBatchRows(t *testing.T) {
	h := newHarness(t)
	o := h.order(t, "E-1")
	h.invoices.issueFn = func(context.Context, invoicing.Request) (*invoicing.Result, error) {
		return &invoicing.Result{Success: false, Error: "series closed"}, nil
	}
	res, err := h.svc.ProcessBatch(context.Background(), BatchInput{OrderIDs: []uuid.UUID{o.ID}})
	require.NoError(t, err)

	rows, err := h.svc.Errors(context.Background(), res.BatchID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.ProcessingErrorInvoice, rows[0].Type)
	assert.Equal(t, "series closed", rows[0].Message)

	_, err = h.svc.Errors(context.Background(), uuid.Nil)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestProcessBatchReissuesLabelWithCarrierError(t *testing.T) {
	h := newHarness(t)
	o := h.order(t, "ERR-1")
	require.NoError(t, h.db.Create(&models.Invoice{OrderID: o.ID, Series: "FCT", Number: "0009", Status: enums.InvoiceStatusIssued}).Error)
	msg := "carrier rejected address"
	broken := &models.ShippingLabel{OrderID: o.ID, LabelNumber: "AWB-OLD", Carrier: "fan", Status: enums.LabelStatusCreated, ErrorMessage: &msg}
	require.NoError(t, h.db.Create(broken).Error)

	res, err := h.svc.ProcessBatch(context.Background(), BatchInput{OrderIDs: []uuid.UUID{o.ID}, CreatePickList: true})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, h.labels.calls, 1)
	assert.Empty(t, h.invoices.calls)
	assert.True(t, res.Results[0].LabelCreated)
	assert.Equal(t, "AWB-ERR-1", res.Results[0].LabelNumber)

	assert.EqualValues(t, 0, h.count(t, &models.ShippingLabel{}, "id = ?", broken.ID))
	require.Len(t, h.builder.inputs, 1)
	require.Len(t, h.builder.inputs[0].LabelIDs, 1)
	assert.NotEqual(t, broken.ID, h.builder.inputs[0].LabelIDs[0])
}

// saveInvoiceFails lets the provider call succeed and the local insert fail.
type saveInvoiceFails struct {
	Repository
	err error
}

func (r saveInvoiceFails) SaveInvoice(context.Context, *models.Invoice) error { return r.err }

func TestProcessBatchKeepsInvoiceNumberWhenSaveFails(t *testing.T) {
	h := newHarness(t)
	o := h.order(t, "LOST-1")
	h.svc.repo = saveInvoiceFails{Repository: h.svc.repo, err: fmt.Errorf("database is locked")}
	h.invoices.issueFn = func(_ context.Context, req invoicing.Request) (*invoicing.Result, error) {
		return &invoicing.Result{Success: true, InvoiceNumber: "0002", InvoiceSeries: req.Series}, nil
	}

	res, err := h.svc.ProcessBatch(context.Background(), BatchInput{OrderIDs: []uuid.UUID{o.ID}, CreatePickList: true})
	require.NoError(t, err)
	require.False(t, res.Success)

	got := res.Results[0]
	assert.True(t, got.InvoiceIssued)
	assert.Equal(t, "0002", got.InvoiceNumber)
	assert.Equal(t, "invoice", got.FailedStep)
	assert.Contains(t, got.Error, "FCT 0002 was issued but not recorded")
	assert.Equal(t, 1, res.Stats.InvoicesIssued)
	assert.Empty(t, h.labels.calls)
	assert.Empty(t, h.builder.inputs)

	rows, err := h.svc.Errors(context.Background(), res.BatchID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.ProcessingErrorInvoice, rows[0].Type)
	assert.Contains(t, rows[0].Message, "0002")
	assert.Contains(t, rows[0].Message, "database is locked")
}
