// Package fulfillment runs batches of orders through invoicing and shipping
// label creation and hands the labeled orders to the pick list builder.
package fulfillment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/internal/activity"
	"github.com/angelmondragon/fulfillment-backend/internal/picklists"
	"github.com/angelmondragon/fulfillment-backend/pkg/besteffort"
	"github.com/angelmondragon/fulfillment-backend/pkg/carrier"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/invoicing"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/metrics"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/fulfillment-backend/pkg/redis"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// InvoiceIssuer is the invoicing collaborator. *invoicing.Client satisfies it.
type InvoiceIssuer interface {
	IssueInvoice(ctx context.Context, req invoicing.Request) (*invoicing.Result, error)
}

// LabelIssuer is the carrier collaborator. *carrier.Client satisfies it.
type LabelIssuer interface {
	CreateShippingLabel(ctx context.Context, req carrier.Request) (*carrier.Result, error)
}

type pickListBuilder interface {
	Build(ctx context.Context, input picklists.BuildInput) (*models.PickList, error)
}

type lockStore interface {
	redis.LockStore
	LockKey(parts ...string) string
}

// ServiceParams wires the batch orchestrator.
type ServiceParams struct {
	Tx       txRunner
	Repo     Repository
	Invoices InvoiceIssuer
	Labels   LabelIssuer
	Builder  pickListBuilder
	Outbox   outboxEmitter
	Activity *activity.Logger
	Locks    lockStore
	Metrics  *metrics.FulfillmentMetrics
	Logger   *logger.Logger
	Settings Settings
	Clock    func() time.Time
}

type Service struct {
	tx       txRunner
	repo     Repository
	invoices InvoiceIssuer
	labels   LabelIssuer
	builder  pickListBuilder
	outbox   outboxEmitter
	activity *activity.Logger
	locks    lockStore
	metrics  *metrics.FulfillmentMetrics
	logg     *logger.Logger
	settings Settings
	clock    func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("fulfillment repository required")
	}
	if params.Invoices == nil {
		return nil, fmt.Errorf("invoice issuer required")
	}
	if params.Labels == nil {
		return nil, fmt.Errorf("label issuer required")
	}
	if params.Builder == nil {
		return nil, fmt.Errorf("pick list builder required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock store required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		tx:       params.Tx,
		repo:     params.Repo,
		invoices: params.Invoices,
		labels:   params.Labels,
		builder:  params.Builder,
		outbox:   params.Outbox,
		activity: params.Activity,
		locks:    params.Locks,
		metrics:  params.Metrics,
		logg:     params.Logger,
		settings: params.Settings.withDefaults(),
		clock:    clock,
	}, nil
}

// ProcessBatch invoices and labels each order in turn, then builds a pick
// list from the labels that are ready. Per-order failures are collected in
// the result; only input, lock and database errors are returned.
func (s *Service) ProcessBatch(ctx context.Context, input BatchInput) (*BatchResult, error) {
	ids := uniqueIDs(input.OrderIDs)
	if len(ids) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one order id is required")
	}
	if s.settings.MaxBatchSize > 0 && len(ids) > s.settings.MaxBatchSize {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("batch exceeds the maximum of %d orders", s.settings.MaxBatchSize))
	}
	actor := strings.TrimSpace(input.Actor)
	if actor == "" {
		actor = activity.SystemActor
	}

	// a started batch runs to the end even if the client goes away
	ctx = context.WithoutCancel(ctx)
	batchID := uuid.New()
	ctx = s.logg.WithBatchID(ctx, batchID.String())

	lock, err := redis.NewLock(s.locks, s.locks.LockKey("batch", "invoice-series", s.settings.InvoiceSeries), s.settings.BatchLockTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build batch lock")
	}
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire batch lock")
	}
	if !acquired {
		return nil, pkgerrors.New(pkgerrors.CodeConflict,
			fmt.Sprintf("another batch is issuing invoices for series %s", s.settings.InvoiceSeries))
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			s.logg.Error(ctx, "fulfillment.batch_lock_release_failed", err)
		}
	}()

	orders, err := s.repo.OrdersByID(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load orders")
	}
	byID := make(map[uuid.UUID]*models.Order, len(orders))
	for i := range orders {
		byID[orders[i].ID] = &orders[i]
	}

	s.logg.Info(s.logg.WithField(ctx, "orders", len(ids)), "fulfillment.batch_started")

	result := &BatchResult{
		BatchID: batchID,
		Results: make([]OrderResult, 0, len(ids)),
		Errors:  []BatchError{},
	}
	var labelIDs []uuid.UUID
	for _, id := range ids {
		outcome, labelID := s.processOrder(ctx, batchID, id, byID[id], input, actor)
		result.Results = append(result.Results, outcome)
		if outcome.InvoiceIssued {
			result.Stats.InvoicesIssued++
		}
		if outcome.LabelCreated {
			result.Stats.LabelsCreated++
		}
		if outcome.Success {
			result.Stats.Success++
		} else {
			result.Stats.Failed++
			result.Errors = append(result.Errors, BatchError{
				OrderID:     outcome.OrderID,
				OrderNumber: outcome.OrderNumber,
				Step:        outcome.FailedStep,
				Message:     outcome.Error,
			})
		}
		if labelID != nil {
			labelIDs = append(labelIDs, *labelID)
		}
		s.metrics.IncBatchOrder(outcome.Success)
	}
	result.Stats.Total = len(ids)
	result.Success = result.Stats.Failed == 0

	if input.CreatePickList && len(labelIDs) > 0 {
		list, err := s.builder.Build(ctx, picklists.BuildInput{
			LabelIDs: labelIDs,
			BatchID:  &batchID,
			Actor:    actor,
		})
		if err != nil {
			result.PickListError = err.Error()
			if typed := pkgerrors.As(err); typed != nil {
				result.PickListError = typed.Message()
			}
			s.logg.Error(ctx, "fulfillment.picklist_failed", err)
		} else {
			result.PickList = &PickListSummary{
				ID:            list.ID,
				Code:          list.Code,
				TotalItems:    list.TotalItems,
				TotalQuantity: list.TotalQuantity,
			}
		}
	}
	result.Message = batchMessage(result)

	if err := s.emitProcessed(ctx, result, actor); err != nil {
		s.logg.Error(ctx, "fulfillment.batch_event_failed", err)
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"success":         result.Stats.Success,
		"failed":          result.Stats.Failed,
		"invoices_issued": result.Stats.InvoicesIssued,
		"labels_created":  result.Stats.LabelsCreated,
	}), "fulfillment.batch_finished")
	return result, nil
}

// Errors lists the step failures persisted for a batch.
func (s *Service) Errors(ctx context.Context, batchID uuid.UUID) ([]ProcessingErrorDTO, error) {
	if batchID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "batch id is required")
	}
	rows, err := s.repo.ProcessingErrors(ctx, batchID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list processing errors")
	}
	out := make([]ProcessingErrorDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toProcessingErrorDTO(row))
	}
	return out, nil
}

// processOrder never panics; labelID is set when the order ends with a label
// that no pick list has consumed yet.
func (s *Service) processOrder(ctx context.Context, batchID, id uuid.UUID, order *models.Order, input BatchInput, actor string) (res OrderResult, labelID *uuid.UUID) {
	res.OrderID = id
	if order == nil {
		res.Error = "order not found"
		return res, nil
	}
	res.OrderNumber = order.OrderNumber
	ctx = s.logg.WithOrderID(ctx, id.String())

	step := enums.ProcessingErrorInvoice
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic: %v", rec)
			s.logg.Error(ctx, "fulfillment.order_panic", err)
			res.Success = false
			labelID = nil
			s.fail(ctx, batchID, &res, step, err)
		}
		s.logActivity(ctx, batchID, order, res, actor)
	}()

	if NeedsInvoice(order) {
		number, err := s.issueInvoice(ctx, order)
		if number != "" {
			res.InvoiceNumber = number
			res.InvoiceIssued = true
		}
		if err != nil {
			s.fail(ctx, batchID, &res, step, err)
			return res, nil
		}
	} else if order.Invoice != nil {
		res.InvoiceNumber = order.Invoice.Number
	}

	step = enums.ProcessingErrorLabel
	if NeedsLabel(order) {
		label, err := s.createLabel(ctx, order, input.LabelOptions)
		if err != nil {
			s.fail(ctx, batchID, &res, step, err)
			return res, nil
		}
		res.LabelNumber = label.LabelNumber
		res.LabelCreated = true
		labelID = &label.ID
	} else {
		res.LabelNumber = order.ShippingLabel.LabelNumber
		attached, err := s.repo.LabelAttached(ctx, order.ShippingLabel.ID)
		if err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "fulfillment.label_attachment_lookup_failed")
		} else if !attached {
			existing := order.ShippingLabel.ID
			labelID = &existing
		}
	}

	res.Success = true
	return res, labelID
}

// unrecordedInvoiceError means the provider issued a number that could not be
// stored. The order must be reconciled by hand; reprocessing it would take a
// second number from the series.
type unrecordedInvoiceError struct {
	series, number string
	err            error
}

func (e *unrecordedInvoiceError) Error() string {
	return fmt.Sprintf("invoice %s %s was issued but not recorded, record it before reprocessing the order: %v", e.series, e.number, e.err)
}

func (e *unrecordedInvoiceError) Unwrap() error { return e.err }

// issueInvoice returns the provider's number whenever one was issued, also
// alongside an unrecordedInvoiceError.
func (s *Service) issueInvoice(ctx context.Context, order *models.Order) (string, error) {
	lines := make([]invoicing.Line, 0, len(order.LineItems))
	for _, item := range order.LineItems {
		lines = append(lines, invoicing.Line{
			SKU:       item.SKU,
			Title:     item.Title,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	reply, err := s.invoices.IssueInvoice(ctx, invoicing.Request{
		OrderID:      order.ID,
		OrderNumber:  order.OrderNumber,
		CustomerName: order.CustomerName,
		Series:       s.settings.InvoiceSeries,
		Total:        order.TotalAmount,
		Lines:        lines,
	})
	if err != nil {
		return "", err
	}
	if reply == nil || !reply.Success {
		return "", errors.New(rejection(reply, "invoice rejected"))
	}

	series := reply.InvoiceSeries
	if series == "" {
		series = s.settings.InvoiceSeries
	}
	issuedAt := s.clock().UTC()
	invoice := &models.Invoice{
		OrderID:  order.ID,
		Series:   series,
		Number:   reply.InvoiceNumber,
		Status:   enums.InvoiceStatusIssued,
		IssuedAt: &issuedAt,
	}
	s.metrics.IncInvoiceIssued()
	if err := s.repo.SaveInvoice(ctx, invoice); err != nil {
		s.logg.Error(s.logg.WithFields(ctx, map[string]any{"invoice_series": series, "invoice_number": reply.InvoiceNumber}), "fulfillment.invoice_unrecorded", err)
		return reply.InvoiceNumber, &unrecordedInvoiceError{series: series, number: reply.InvoiceNumber, err: err}
	}
	return reply.InvoiceNumber, nil
}

func (s *Service) createLabel(ctx context.Context, order *models.Order, options map[string]any) (*models.ShippingLabel, error) {
	parcels := 0
	if v, ok := options["parcels"].(float64); ok {
		parcels = int(v)
	}
	reply, err := s.labels.CreateShippingLabel(ctx, carrier.Request{
		OrderID:      order.ID,
		OrderNumber:  order.OrderNumber,
		CustomerName: order.CustomerName,
		Parcels:      parcels,
		Service:      s.settings.CarrierService,
		Options:      carrier.Options(options),
	})
	if err != nil {
		return nil, err
	}
	if reply == nil || !reply.Success {
		return nil, errors.New(labelRejection(reply))
	}

	status := reply.Status
	if status == "" {
		status = enums.ParseLabelStatus(reply.StatusText)
	}
	label := &models.ShippingLabel{
		OrderID:     order.ID,
		LabelNumber: reply.LabelNumber,
		Carrier:     reply.Carrier,
		StatusText:  reply.StatusText,
		Status:      status,
	}
	var previous *uuid.UUID
	if order.ShippingLabel != nil {
		id := order.ShippingLabel.ID
		previous = &id
	}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.repo.WithTx(tx).ReplaceLabel(ctx, previous, label)
	})
	if err != nil {
		return nil, fmt.Errorf("save label %s: %w", reply.LabelNumber, err)
	}
	s.metrics.IncLabelCreated()
	return label, nil
}

func (s *Service) fail(ctx context.Context, batchID uuid.UUID, res *OrderResult, step enums.ProcessingErrorType, err error) {
	res.Success = false
	res.FailedStep = stepName(step)
	res.Error = err.Error()
	var unrecorded *unrecordedInvoiceError
	if typed := pkgerrors.As(err); typed != nil && !errors.As(err, &unrecorded) {
		res.Error = typed.Message()
	}

	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"step":  res.FailedStep,
		"error": err.Error(),
	}), "fulfillment.order_failed")

	row := &models.ProcessingError{
		OrderID: res.OrderID,
		BatchID: batchID,
		Type:    step,
		Message: res.Error,
	}
	if err := s.repo.CreateProcessingError(ctx, row); err != nil {
		s.logg.Error(ctx, "fulfillment.processing_error_insert_failed", err)
	}
}

func (s *Service) logActivity(ctx context.Context, batchID uuid.UUID, order *models.Order, res OrderResult, actor string) {
	if s.activity == nil {
		return
	}
	message := fmt.Sprintf("Order %s processed in batch", order.OrderNumber)
	if !res.Success {
		message = fmt.Sprintf("Order %s failed at %s: %s", order.OrderNumber, res.FailedStep, res.Error)
	}
	_ = besteffort.Run(ctx, s.logg, "fulfillment.log_activity", func(ctx context.Context) error {
		return s.activity.LogActivity(ctx, activity.Entry{
			EntityType: activity.EntityOrder,
			EntityID:   order.ID,
			Action:     "batch_processed",
			Actor:      actor,
			Message:    message,
			Metadata: map[string]any{
				"batchId":       batchID.String(),
				"success":       res.Success,
				"invoiceNumber": res.InvoiceNumber,
				"labelNumber":   res.LabelNumber,
				"failedStep":    res.FailedStep,
			},
		})
	})
}

func (s *Service) emitProcessed(ctx context.Context, result *BatchResult, actor string) error {
	orders := make([]payloads.BatchOrderOutcome, 0, len(result.Results))
	for _, r := range result.Results {
		orders = append(orders, payloads.BatchOrderOutcome{
			OrderID:       r.OrderID,
			OrderNumber:   r.OrderNumber,
			Success:       r.Success,
			InvoiceNumber: r.InvoiceNumber,
			LabelNumber:   r.LabelNumber,
			FailedStep:    r.FailedStep,
			Error:         r.Error,
		})
	}
	event := payloads.BatchProcessedEvent{
		BatchID:        result.BatchID,
		Actor:          actor,
		Total:          result.Stats.Total,
		Success:        result.Stats.Success,
		Failed:         result.Stats.Failed,
		InvoicesIssued: result.Stats.InvoicesIssued,
		LabelsCreated:  result.Stats.LabelsCreated,
		Orders:         orders,
	}
	if result.PickList != nil {
		id := result.PickList.ID
		event.PickListID = &id
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventBatchProcessed,
			AggregateType: enums.AggregateBatch,
			AggregateID:   result.BatchID,
			Data:          event,
		})
	})
}

func batchMessage(result *BatchResult) string {
	msg := fmt.Sprintf("Processed %d orders: %d succeeded, %d failed",
		result.Stats.Total, result.Stats.Success, result.Stats.Failed)
	switch {
	case result.PickList != nil:
		msg += fmt.Sprintf("; pick list %s created", result.PickList.Code)
	case result.PickListError != "":
		msg += "; pick list not created: " + result.PickListError
	}
	return msg
}

func rejection(reply *invoicing.Result, fallback string) string {
	if reply != nil && strings.TrimSpace(reply.Error) != "" {
		return reply.Error
	}
	return fallback
}

func labelRejection(reply *carrier.Result) string {
	if reply != nil && strings.TrimSpace(reply.Error) != "" {
		return reply.Error
	}
	return "label rejected"
}

func uniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
