package picklists

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/internal/activity"
	"github.com/angelmondragon/fulfillment-backend/internal/notifications"
	"github.com/angelmondragon/fulfillment-backend/internal/stock"
	"github.com/angelmondragon/fulfillment-backend/pkg/besteffort"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/metrics"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/fulfillment-backend/pkg/pagination"
)

// activity_logs actions for pick list transitions. "created" is written by
// the Builder.
const (
	activityStarted   = "started"
	activityItemReset = "item_reset"
	activityCompleted = "completed"
	activityCancelled = "cancelled"
	activityDeleted   = "deleted"
	activityUpdated   = "updated"
)

const (
	scanOutcomeApplied  = "applied"
	scanOutcomeSurplus  = "surplus"
	scanOutcomeRejected = "rejected"
)

type documentRenderer interface {
	RenderDocument(ctx context.Context, list *models.PickList) (string, error)
}

type userNotifier interface {
	NotifyUsers(ctx context.Context, role string, msg notifications.Message) error
}

// Config holds the settings the state machine reads.
type Config struct {
	AdminRole       string
	RenderDocuments bool
}

// ServiceParams wires the pick list state machine.
type ServiceParams struct {
	Tx        txRunner
	Repo      Repository
	Stock     *stock.Ledger
	Outbox    outboxEmitter
	Notifier  userNotifier
	Documents documentRenderer
	Activity  *activity.Logger
	Metrics   *metrics.FulfillmentMetrics
	Logger    *logger.Logger
	Config    Config
	Clock     func() time.Time
}

// Service drives a pick list through PENDING, IN_PROGRESS, COMPLETED and
// CANCELLED. Every transition is one transaction that locks the list row
// first; side effects that leave the database run after commit.
type Service struct {
	tx        txRunner
	repo      Repository
	stock     *stock.Ledger
	outbox    outboxEmitter
	notifier  userNotifier
	documents documentRenderer
	activity  *activity.Logger
	metrics   *metrics.FulfillmentMetrics
	logg      *logger.Logger
	cfg       Config
	clock     func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("pick list repository required")
	}
	if params.Stock == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		tx:        params.Tx,
		repo:      params.Repo,
		stock:     params.Stock,
		outbox:    params.Outbox,
		notifier:  params.Notifier,
		documents: params.Documents,
		activity:  params.Activity,
		metrics:   params.Metrics,
		logg:      params.Logger,
		cfg:       params.Config,
		clock:     clock,
	}, nil
}

func (s *Service) now() time.Time {
	return s.clock().UTC()
}

// Get returns the list with items ordered for picking, source labels and progress.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Detail, error) {
	list, err := s.repo.FindDetail(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "load pick list")
	}
	detail := toDetail(list)
	return &detail, nil
}

// List pages through pick lists, newest first.
func (s *Service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	query := listParams{Status: params.Status, Limit: params.Limit}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}
	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pick lists")
	}
	items := make([]SummaryDTO, 0, len(rows))
	for i := range rows {
		items = append(items, toSummaryDTO(&rows[i]))
	}
	result := &ListResult{Items: items}
	if next != nil {
		result.Cursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

// Logs returns the most recent audit entries of a list.
func (s *Service) Logs(ctx context.Context, id uuid.UUID, limit int) ([]LogDTO, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		return nil, notFoundOr(err, "load pick list")
	}
	rows, err := s.repo.ListLogs(ctx, id, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pick logs")
	}
	out := make([]LogDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, toLogDTO(row))
	}
	return out, nil
}

// StaleInProgress lists IN_PROGRESS lists untouched since before cutoff.
func (s *Service) StaleInProgress(ctx context.Context, cutoff time.Time, limit int) ([]models.PickList, error) {
	return s.repo.ListStale(ctx, enums.PickListStatusInProgress, cutoff, pagination.NormalizeLimit(limit))
}

// Start claims a pending list for actor. Starting again as the same actor is a no-op.
func (s *Service) Start(ctx context.Context, id uuid.UUID, actor string) (*Detail, error) {
	actor = normalizeActor(actor)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		list, err := lockList(ctx, repo, id)
		if err != nil {
			return err
		}

		switch list.Status {
		case enums.PickListStatusCompleted, enums.PickListStatusCancelled:
			return stateConflict("pick list %s is %s and cannot be started", list.Code, list.Status)
		case enums.PickListStatusInProgress:
			holder := deref(list.StartedBy)
			if holder != "" && holder != actor {
				return stateConflict("pick list %s is already being picked by %s", list.Code, holder)
			}
			if holder != "" {
				return nil
			}
		}

		now := s.now()
		if err := repo.UpdateList(ctx, list.ID, map[string]any{
			"status":     enums.PickListStatusInProgress,
			"started_by": actor,
			"started_at": now,
		}); err != nil {
			return err
		}
		if err := writeLog(ctx, repo, list.ID, nil, enums.PickLogListStarted, 0, actor, "pick list started"); err != nil {
			return err
		}
		return s.recordActivity(ctx, tx, list, activityStarted, actor, "Pick list "+list.Code+" started", nil)
	})
	if err != nil {
		return nil, wrapTx(err, "start pick list")
	}
	s.metrics.IncTransition(string(enums.PickListActionStart))
	s.logg.Info(s.listCtx(ctx, id, actor), "picklists.started")
	return s.Get(ctx, id)
}

// Scan picks by barcode, falling back to SKU.
func (s *Service) Scan(ctx context.Context, id uuid.UUID, input ScanInput) (*PickResult, error) {
	code := strings.TrimSpace(input.Code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "barcode or sku required")
	}
	return s.pick(ctx, id, pickTarget{code: code}, input.Quantity, input.Actor, enums.PickLogItemScanned)
}

// PickItem picks a specific item row. Picking a complete item is recorded as
// a surplus attempt and rejected.
func (s *Service) PickItem(ctx context.Context, id uuid.UUID, input PickItemInput) (*PickResult, error) {
	if input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	itemID := input.ItemID
	return s.pick(ctx, id, pickTarget{itemID: &itemID}, input.Quantity, input.Actor, enums.PickLogItemPicked)
}

type pickTarget struct {
	itemID *uuid.UUID
	code   string
}

func (s *Service) pick(ctx context.Context, id uuid.UUID, target pickTarget, qty int, actor string, action enums.PickLogAction) (*PickResult, error) {
	if qty <= 0 {
		s.metrics.IncScan(scanOutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	actor = normalizeActor(actor)

	var (
		result        PickResult
		surplus       *models.PickListItem
		listCompleted bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		list, err := lockList(ctx, repo, id)
		if err != nil {
			return err
		}
		if list.Status.IsTerminal() {
			return stateConflict("pick list %s is %s", list.Code, list.Status)
		}

		items, err := repo.ListItems(ctx, list.ID)
		if err != nil {
			return err
		}
		candidate, err := findTarget(items, target)
		if err != nil {
			return err
		}
		item, err := repo.LockItem(ctx, list.ID, candidate.ID)
		if err != nil {
			return err
		}

		if item.IsComplete || item.Remaining() == 0 {
			if action != enums.PickLogItemPicked {
				return stateConflict("item %s is already complete", item.SKU)
			}
			surplus = item
			return writeItemLog(ctx, repo, list.ID, item, enums.PickLogSurplusAttempt, qty, actor,
				fmt.Sprintf("attempted to pick %d more of completed item %s", qty, item.SKU))
		}

		applied := min(qty, item.Remaining())
		now := s.now()
		item.PickedQty += applied
		item.IsComplete = item.PickedQty >= item.RequiredQty
		item.PickedAt = &now
		item.PickedBy = &actor

		taken, err := s.stock.WithTx(tx).Decrement(ctx, stock.Ref{ProductID: item.ProductID, SKU: item.SKU}, applied)
		if err != nil {
			return err
		}
		item.StockDeducted += taken

		if err := repo.SaveItem(ctx, item); err != nil {
			return err
		}
		message := fmt.Sprintf("picked %d of %s (%d/%d)", applied, item.SKU, item.PickedQty, item.RequiredQty)
		if err := writeItemLog(ctx, repo, list.ID, item, action, applied, actor, message); err != nil {
			return err
		}
		if err := s.recordActivity(ctx, tx, list, strings.ToLower(string(action)), actor, message, map[string]any{
			"itemId":   item.ID.String(),
			"sku":      item.SKU,
			"quantity": applied,
		}); err != nil {
			return err
		}

		replaceItem(items, *item)
		progress := applyAggregates(list, items)
		updates := aggregateUpdates(list)
		if allPicked(items) {
			listCompleted = true
			markCompleted(updates, actor, now)
			if err := writeLog(ctx, repo, list.ID, nil, enums.PickLogListCompleted, list.PickedQuantity, actor, "all items picked"); err != nil {
				return err
			}
			if err := s.recordActivity(ctx, tx, list, activityCompleted, actor, "Pick list "+list.Code+" completed, all items picked", nil); err != nil {
				return err
			}
			if err := s.emitCompleted(ctx, tx, list, actor, now); err != nil {
				return err
			}
		} else if list.Status == enums.PickListStatusPending {
			updates["status"] = enums.PickListStatusInProgress
			if list.StartedBy == nil {
				updates["started_by"] = actor
				updates["started_at"] = now
			}
		}
		if err := repo.UpdateList(ctx, list.ID, updates); err != nil {
			return err
		}

		result = PickResult{
			ItemCompleted:   item.IsComplete,
			ListCompleted:   listCompleted,
			AppliedQuantity: applied,
			Item:            toItemDTO(*item),
			Progress:        progress,
		}
		return nil
	})
	if err != nil {
		s.metrics.IncScan(scanOutcomeRejected)
		return nil, wrapTx(err, "pick item")
	}
	if surplus != nil {
		s.metrics.IncScan(scanOutcomeSurplus)
		return nil, stateConflict("item %s is already complete", surplus.SKU).
			WithDetails(map[string]any{"itemId": surplus.ID, "sku": surplus.SKU, "requested": qty})
	}

	s.metrics.IncScan(scanOutcomeApplied)
	if listCompleted {
		s.metrics.IncTransition(string(enums.PickListActionComplete))
		s.afterComplete(ctx, id, actor)
	}
	return &result, nil
}

// ResetItem zeroes an item and returns what it took from stock. Allowed
// unless the list is cancelled; a completed list is reopened.
func (s *Service) ResetItem(ctx context.Context, id, itemID uuid.UUID, actor string) (*Detail, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	actor = normalizeActor(actor)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		list, err := lockList(ctx, repo, id)
		if err != nil {
			return err
		}
		if list.Status == enums.PickListStatusCancelled {
			return stateConflict("pick list %s is cancelled", list.Code)
		}

		item, err := repo.LockItem(ctx, list.ID, itemID)
		if err != nil {
			return notFoundOr(err, "load pick list item")
		}
		if item.IsParent {
			return pkgerrors.New(pkgerrors.CodeValidation, "parent rows are not picked and cannot be reset")
		}

		previous, restored := item.PickedQty, item.StockDeducted
		if err := s.stock.WithTx(tx).Restore(ctx, stock.Ref{ProductID: item.ProductID, SKU: item.SKU}, restored); err != nil {
			return err
		}
		item.PickedQty = 0
		item.StockDeducted = 0
		item.IsComplete = false
		item.PickedAt = nil
		item.PickedBy = nil
		if err := repo.SaveItem(ctx, item); err != nil {
			return err
		}
		message := fmt.Sprintf("reset %s, %d returned to pick", item.SKU, previous)
		if err := writeItemLog(ctx, repo, list.ID, item, enums.PickLogItemReset, previous, actor, message); err != nil {
			return err
		}
		if err := s.recordActivity(ctx, tx, list, activityItemReset, actor, message, map[string]any{
			"itemId":        item.ID.String(),
			"sku":           item.SKU,
			"stockRestored": restored,
		}); err != nil {
			return err
		}

		items, err := repo.ListItems(ctx, list.ID)
		if err != nil {
			return err
		}
		applyAggregates(list, items)
		updates := aggregateUpdates(list)
		updates["status"] = enums.PickListStatusInProgress
		updates["completed_by"] = nil
		updates["completed_at"] = nil
		if list.StartedBy == nil {
			updates["started_by"] = actor
			updates["started_at"] = s.now()
		}
		return repo.UpdateList(ctx, list.ID, updates)
	})
	if err != nil {
		return nil, wrapTx(err, "reset pick list item")
	}
	s.metrics.IncTransition(string(enums.PickListActionResetItem))
	s.logg.Info(s.logg.WithField(s.listCtx(ctx, id, actor), "item_id", itemID.String()), "picklists.item_reset")
	return s.Get(ctx, id)
}

// Complete closes a list whose items are all picked. Completing an already
// completed list returns it unchanged.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, actor string) (*Detail, error) {
	actor = normalizeActor(actor)
	alreadyCompleted := false

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		list, err := lockList(ctx, repo, id)
		if err != nil {
			return err
		}
		switch list.Status {
		case enums.PickListStatusCompleted:
			alreadyCompleted = true
			return nil
		case enums.PickListStatusCancelled:
			return stateConflict("pick list %s is cancelled", list.Code)
		}

		items, err := repo.ListItems(ctx, list.ID)
		if err != nil {
			return err
		}
		if missing := incompleteItems(items); len(missing) > 0 {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("%d items are not fully picked", len(missing))).
				WithDetails(missing)
		}

		now := s.now()
		applyAggregates(list, items)
		updates := aggregateUpdates(list)
		markCompleted(updates, actor, now)
		if err := repo.UpdateList(ctx, list.ID, updates); err != nil {
			return err
		}
		if err := writeLog(ctx, repo, list.ID, nil, enums.PickLogListCompleted, list.PickedQuantity, actor, "pick list completed"); err != nil {
			return err
		}
		if err := s.recordActivity(ctx, tx, list, activityCompleted, actor, "Pick list "+list.Code+" completed", nil); err != nil {
			return err
		}
		return s.emitCompleted(ctx, tx, list, actor, now)
	})
	if err != nil {
		return nil, wrapTx(err, "complete pick list")
	}
	if !alreadyCompleted {
		s.metrics.IncTransition(string(enums.PickListActionComplete))
		s.afterComplete(ctx, id, actor)
	}
	return s.Get(ctx, id)
}

// Cancel stops a list and frees its labels for a future list. Picked stock
// stays deducted.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actor string) (*Detail, error) {
	actor = normalizeActor(actor)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		list, err := lockList(ctx, repo, id)
		if err != nil {
			return err
		}
		switch list.Status {
		case enums.PickListStatusCompleted:
			return stateConflict("pick list %s is completed and cannot be cancelled", list.Code)
		case enums.PickListStatusCancelled:
			return nil
		}

		released, err := repo.ReleaseLabels(ctx, list.ID)
		if err != nil {
			return err
		}
		now := s.now()
		if err := repo.UpdateList(ctx, list.ID, map[string]any{
			"status":       enums.PickListStatusCancelled,
			"cancelled_at": now,
		}); err != nil {
			return err
		}
		message := fmt.Sprintf("pick list cancelled, %d labels released", released)
		if err := writeLog(ctx, repo, list.ID, nil, enums.PickLogListCancelled, 0, actor, message); err != nil {
			return err
		}
		if err := s.recordActivity(ctx, tx, list, activityCancelled, actor, message, map[string]any{"releasedLabels": released}); err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPickListCancelled,
			AggregateType: enums.AggregatePickList,
			AggregateID:   list.ID,
			Data: payloads.PickListCancelledEvent{
				PickListID:     list.ID,
				Code:           list.Code,
				CancelledBy:    actor,
				CancelledAt:    now,
				ReleasedLabels: int(released),
			},
		})
	})
	if err != nil {
		return nil, wrapTx(err, "cancel pick list")
	}
	s.metrics.IncTransition(string(enums.PickListActionCancel))
	s.logg.Info(s.listCtx(ctx, id, actor), "picklists.cancelled")
	return s.Get(ctx, id)
}

// Delete removes a list that nobody is picking.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, actor string) error {
	actor = normalizeActor(actor)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		list, err := lockList(ctx, repo, id)
		if err != nil {
			return err
		}
		if list.Status == enums.PickListStatusInProgress {
			return stateConflict("pick list %s is in progress and cannot be deleted", list.Code)
		}
		if err := writeLog(ctx, repo, list.ID, nil, enums.PickLogListDeleted, 0, actor, "pick list "+list.Code+" deleted"); err != nil {
			return err
		}
		if err := s.recordActivity(ctx, tx, list, activityDeleted, actor, "Pick list "+list.Code+" deleted", map[string]any{
			"status": string(list.Status),
		}); err != nil {
			return err
		}
		return repo.Delete(ctx, list.ID)
	})
	if err != nil {
		return wrapTx(err, "delete pick list")
	}
	s.metrics.IncTransition("delete")
	s.logg.Info(s.listCtx(ctx, id, actor), "picklists.deleted")
	return nil
}

// Update edits name, assignee and notes. An empty assignee or note clears it.
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*Detail, error) {
	updates := map[string]any{}
	var changed []string
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be empty")
		}
		updates["name"] = name
		changed = append(changed, "name")
	}
	if input.AssignedTo != nil {
		updates["assigned_to"] = optionalString(*input.AssignedTo)
		changed = append(changed, "assignedTo")
	}
	if input.Notes != nil {
		updates["notes"] = optionalString(*input.Notes)
		changed = append(changed, "notes")
	}
	if len(updates) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "nothing to update")
	}
	actor := normalizeActor(input.Actor)

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		list, err := lockList(ctx, repo, id)
		if err != nil {
			return err
		}
		if err := repo.UpdateList(ctx, list.ID, updates); err != nil {
			return err
		}
		message := "updated " + strings.Join(changed, ", ")
		if err := writeLog(ctx, repo, list.ID, nil, enums.PickLogListUpdated, 0, actor, message); err != nil {
			return err
		}
		return s.recordActivity(ctx, tx, list, activityUpdated, actor, message, nil)
	})
	if err != nil {
		return nil, wrapTx(err, "update pick list")
	}
	return s.Get(ctx, id)
}

// recordActivity appends a pick list entry to the activity log inside tx.
func (s *Service) recordActivity(ctx context.Context, tx *gorm.DB, list *models.PickList, action, actor, message string, metadata map[string]any) error {
	if s.activity == nil {
		return nil
	}
	return s.activity.WithTx(tx).LogActivity(ctx, activity.Entry{
		EntityType: activity.EntityPickList,
		EntityID:   list.ID,
		Action:     action,
		Actor:      actor,
		Message:    message,
		Metadata:   metadata,
	})
}

func (s *Service) emitCompleted(ctx context.Context, tx *gorm.DB, list *models.PickList, actor string, at time.Time) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPickListCompleted,
		AggregateType: enums.AggregatePickList,
		AggregateID:   list.ID,
		Data: payloads.PickListCompletedEvent{
			PickListID:     list.ID,
			Code:           list.Code,
			CompletedBy:    actor,
			CompletedAt:    at,
			PickedQuantity: list.PickedQuantity,
		},
	})
}

// afterComplete renders the pick document and tells admins. Neither step
// can undo the completion.
func (s *Service) afterComplete(ctx context.Context, id uuid.UUID, actor string) {
	logCtx := s.listCtx(ctx, id, actor)
	list, err := s.repo.FindByID(ctx, id)
	if err != nil {
		s.logg.Error(logCtx, "picklists.reload_after_complete", err)
		return
	}
	s.logg.Info(logCtx, "picklists.completed")

	if s.cfg.RenderDocuments && s.documents != nil {
		_ = besteffort.Run(logCtx, s.logg, "picklists.render_document", func(ctx context.Context) error {
			object, err := s.documents.RenderDocument(ctx, list)
			if err != nil {
				return err
			}
			return s.repo.UpdateList(ctx, list.ID, map[string]any{"document_path": object})
		})
	}

	if s.notifier != nil && strings.TrimSpace(s.cfg.AdminRole) != "" {
		link := "/picklists/" + list.ID.String()
		_ = besteffort.Run(logCtx, s.logg, "picklists.notify_admin", func(ctx context.Context) error {
			return s.notifier.NotifyUsers(ctx, s.cfg.AdminRole, notifications.Message{
				Type:    enums.NotificationTypePickListCompleted,
				Title:   "Pick list " + list.Code + " completed",
				Message: fmt.Sprintf("%s picked %d units", actor, list.PickedQuantity),
				Link:    &link,
				Data:    map[string]any{"pickListId": list.ID.String(), "code": list.Code},
			})
		})
	}
}

func (s *Service) listCtx(ctx context.Context, id uuid.UUID, actor string) context.Context {
	return s.logg.WithFields(ctx, map[string]any{
		"pick_list_id": id.String(),
		"actor":        actor,
	})
}

func lockList(ctx context.Context, repo Repository, id uuid.UUID) (*models.PickList, error) {
	list, err := repo.LockByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "load pick list")
	}
	return list, nil
}

// findTarget resolves the row to pick. Codes match barcodes before SKUs and
// prefer the first row that still has something to pick.
func findTarget(items []models.PickListItem, target pickTarget) (*models.PickListItem, error) {
	if target.itemID != nil {
		for i := range items {
			if items[i].ID != *target.itemID {
				continue
			}
			if items[i].IsParent {
				return nil, pkgerrors.New(pkgerrors.CodeValidation, "parent rows are not picked; pick their components")
			}
			return &items[i], nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "item not found in pick list")
	}

	matchers := []func(models.PickListItem) bool{
		func(item models.PickListItem) bool {
			return item.Barcode != nil && strings.EqualFold(strings.TrimSpace(*item.Barcode), target.code)
		},
		func(item models.PickListItem) bool {
			return strings.EqualFold(item.SKU, target.code)
		},
	}
	for _, match := range matchers {
		var first *models.PickListItem
		for i := range items {
			if items[i].IsParent || !match(items[i]) {
				continue
			}
			if !items[i].IsComplete {
				return &items[i], nil
			}
			if first == nil {
				first = &items[i]
			}
		}
		if first != nil {
			return first, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("%q is not on this pick list", target.code))
}

func incompleteItems(items []models.PickListItem) []IncompleteItem {
	var out []IncompleteItem
	for _, item := range items {
		if item.IsParent || item.IsComplete {
			continue
		}
		out = append(out, IncompleteItem{
			ItemID:    item.ID,
			SKU:       item.SKU,
			Title:     item.Title,
			Remaining: item.Remaining(),
		})
	}
	return out
}

func replaceItem(items []models.PickListItem, updated models.PickListItem) {
	for i := range items {
		if items[i].ID == updated.ID {
			items[i] = updated
			return
		}
	}
}

func aggregateUpdates(list *models.PickList) map[string]any {
	return map[string]any{
		"total_items":     list.TotalItems,
		"total_quantity":  list.TotalQuantity,
		"picked_quantity": list.PickedQuantity,
	}
}

func markCompleted(updates map[string]any, actor string, at time.Time) {
	updates["status"] = enums.PickListStatusCompleted
	updates["completed_by"] = actor
	updates["completed_at"] = at
}

func writeLog(ctx context.Context, repo Repository, listID uuid.UUID, itemID *uuid.UUID, action enums.PickLogAction, qty int, actor, message string) error {
	return repo.CreateLog(ctx, &models.PickLog{
		PickListID: listID,
		ItemID:     itemID,
		Action:     action,
		Quantity:   qty,
		Actor:      actor,
		Message:    message,
	})
}

func writeItemLog(ctx context.Context, repo Repository, listID uuid.UUID, item *models.PickListItem, action enums.PickLogAction, qty int, actor, message string) error {
	itemID := item.ID
	sku := item.SKU
	return repo.CreateLog(ctx, &models.PickLog{
		PickListID: listID,
		ItemID:     &itemID,
		Action:     action,
		SKU:        &sku,
		Barcode:    item.Barcode,
		Quantity:   qty,
		Actor:      actor,
		Message:    message,
	})
}

func stateConflict(format string, args ...any) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf(format, args...))
}

func notFoundOr(err error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "pick list not found")
	}
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

// wrapTx keeps typed errors raised inside a transaction and wraps the rest.
func wrapTx(err error, action string) error {
	if typed := pkgerrors.As(err); typed != nil {
		return typed
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

func normalizeActor(actor string) string {
	actor = strings.TrimSpace(actor)
	if actor == "" {
		return activity.SystemActor
	}
	return actor
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
