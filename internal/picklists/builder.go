package picklists

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/fulfillment-backend/internal/activity"
	"github.com/angelmondragon/fulfillment-backend/internal/notifications"
	dbpkg "github.com/angelmondragon/fulfillment-backend/pkg/db"
	"github.com/angelmondragon/fulfillment-backend/pkg/db/models"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox"
	"github.com/angelmondragon/fulfillment-backend/pkg/outbox/payloads"
)

const maxCodeAttempts = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type txNotifier interface {
	NotifyUsersTx(ctx context.Context, tx *gorm.DB, role string, msg notifications.Message) error
}

// BuildInput names the labels whose orders make up a new pick list.
type BuildInput struct {
	LabelIDs []uuid.UUID
	BatchID  *uuid.UUID
	Name     string
	Actor    string
}

// BuilderParams wires the aggregator.
type BuilderParams struct {
	Tx         txRunner
	Repo       Repository
	Codes      CodeGenerator
	Outbox     outboxEmitter
	Notifier   txNotifier
	Activity   *activity.Logger
	Logger     *logger.Logger
	PickerRole string
	Clock      func() time.Time
}

// Builder aggregates labeled orders into a persisted pick list.
type Builder struct {
	tx         txRunner
	repo       Repository
	codes      CodeGenerator
	outbox     outboxEmitter
	notifier   txNotifier
	activity   *activity.Logger
	logg       *logger.Logger
	pickerRole string
	clock      func() time.Time
}

func NewBuilder(params BuilderParams) (*Builder, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("pick list repository required")
	}
	if params.Codes == nil {
		return nil, fmt.Errorf("code generator required")
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
	return &Builder{
		tx:         params.Tx,
		repo:       params.Repo,
		codes:      params.Codes,
		outbox:     params.Outbox,
		notifier:   params.Notifier,
		activity:   params.Activity,
		logg:       params.Logger,
		pickerRole: strings.TrimSpace(params.PickerRole),
		clock:      clock,
	}, nil
}

// Build fetches the labels with their orders, merges and expands the sold
// lines and stores the list, its items and the label joins in one transaction.
func (b *Builder) Build(ctx context.Context, input BuildInput) (*models.PickList, error) {
	labelIDs := uniqueIDs(input.LabelIDs)
	if len(labelIDs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one shipping label is required")
	}
	actor := strings.TrimSpace(input.Actor)
	if actor == "" {
		actor = activity.SystemActor
	}

	labels, err := b.repo.LabelsWithOrders(ctx, labelIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping labels")
	}
	if len(labels) != len(labelIDs) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipping label not found")
	}

	rows, err := b.expand(ctx, labels)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "labeled orders have no line items")
	}

	now := b.clock().UTC()
	var list *models.PickList
	for attempt := 1; ; attempt++ {
		code, err := b.codes.Next(ctx, now)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "generate pick list code")
		}
		list = newPickList(code, input, actor, rows)
		err = b.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return b.persist(ctx, tx, list, labelIDs, actor)
		})
		if err == nil {
			break
		}
		if isCodeCollision(err) && attempt < maxCodeAttempts {
			b.logg.Warn(b.logg.WithField(ctx, "code", code), "picklists.code_collision")
			continue
		}
		if isLabelCollision(err) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "shipping label already belongs to another pick list")
		}
		if typed := pkgerrors.As(err); typed != nil {
			return nil, typed
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create pick list")
	}

	logCtx := b.logg.WithFields(ctx, map[string]any{
		"pick_list_id": list.ID.String(),
		"code":         list.Code,
		"labels":       len(labelIDs),
		"items":        list.TotalItems,
	})
	b.logg.Info(logCtx, "picklists.created")
	return list, nil
}

func (b *Builder) expand(ctx context.Context, labels []models.ShippingLabel) ([]ExpandedRow, error) {
	var lineItems []models.OrderLineItem
	for _, label := range labels {
		if label.Order == nil {
			continue
		}
		lineItems = append(lineItems, label.Order.LineItems...)
	}
	lines := MergeLines(lineItems)

	ids := make([]uuid.UUID, 0, len(lines))
	skus := make([]string, 0, len(lines))
	for _, line := range lines {
		if line.ProductID != nil {
			ids = append(ids, *line.ProductID)
		}
		if line.SKU != "" {
			skus = append(skus, line.SKU)
		}
	}
	products, err := b.repo.ProductsFor(ctx, ids, skus)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load catalog products")
	}

	expander := NewExpander(products, b.logg)
	rows := make([]ExpandedRow, 0, len(lines))
	for _, line := range lines {
		rows = append(rows, expander.Expand(ctx, line)...)
	}
	SortRows(rows)
	return rows, nil
}

func (b *Builder) persist(ctx context.Context, tx *gorm.DB, list *models.PickList, labelIDs []uuid.UUID, actor string) error {
	repo := b.repo.WithTx(tx)

	attached, err := repo.AttachedLabelIDs(ctx, labelIDs)
	if err != nil {
		return err
	}
	if len(attached) > 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "shipping label already belongs to another pick list").
			WithDetails(map[string]any{"labelIds": attached})
	}

	items := list.Items
	if err := repo.CreatePickList(ctx, list); err != nil {
		return err
	}
	for i := range items {
		items[i].PickListID = list.ID
	}
	if err := repo.CreateItems(ctx, items); err != nil {
		return err
	}
	list.Items = items
	if err := repo.AttachLabels(ctx, list.ID, labelIDs); err != nil {
		return err
	}

	if err := b.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventPickListCreated,
		AggregateType: enums.AggregatePickList,
		AggregateID:   list.ID,
		Data: payloads.PickListCreatedEvent{
			PickListID:    list.ID,
			Code:          list.Code,
			BatchID:       list.BatchID,
			TotalItems:    list.TotalItems,
			TotalQuantity: list.TotalQuantity,
			LabelCount:    len(labelIDs),
		},
	}); err != nil {
		return err
	}

	if b.activity != nil {
		if err := b.activity.WithTx(tx).LogActivity(ctx, activity.Entry{
			EntityType: activity.EntityPickList,
			EntityID:   list.ID,
			Action:     "created",
			Actor:      actor,
			Message:    fmt.Sprintf("Pick list %s created from %d shipping labels", list.Code, len(labelIDs)),
			Metadata: map[string]any{
				"totalItems":    list.TotalItems,
				"totalQuantity": list.TotalQuantity,
			},
		}); err != nil {
			return err
		}
	}

	if b.notifier != nil && b.pickerRole != "" {
		link := "/picklists/" + list.ID.String()
		return b.notifier.NotifyUsersTx(ctx, tx, b.pickerRole, notifications.Message{
			Type:    enums.NotificationTypePickListCreated,
			Title:   "New pick list " + list.Code,
			Message: fmt.Sprintf("%d items, %d units to pick", list.TotalItems, list.TotalQuantity),
			Link:    &link,
			Data:    map[string]any{"pickListId": list.ID.String(), "code": list.Code},
		})
	}
	return nil
}

func newPickList(code string, input BuildInput, actor string, rows []ExpandedRow) *models.PickList {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = code
	}
	items := make([]models.PickListItem, 0, len(rows))
	for i, row := range rows {
		items = append(items, models.PickListItem{
			ProductID:       row.ProductID,
			ParentProductID: row.ParentProductID,
			SKU:             row.SKU,
			Barcode:         row.Barcode,
			Title:           row.Title,
			VariantTitle:    row.VariantTitle,
			Location:        row.Location,
			RequiredQty:     row.RequiredQty,
			IsParent:        row.IsParent,
			Position:        i,
		})
	}
	list := &models.PickList{
		Code:      code,
		Name:      name,
		BatchID:   input.BatchID,
		CreatedBy: actor,
		Status:    enums.PickListStatusPending,
		Items:     items,
	}
	applyAggregates(list, items)
	return list
}

// SortRows orders rows for a walk through the warehouse: location, then SKU.
// A parent row sorts ahead of rows sharing its location and SKU.
func SortRows(rows []ExpandedRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Location != b.Location {
			return a.Location < b.Location
		}
		if a.SKU != b.SKU {
			return a.SKU < b.SKU
		}
		return a.IsParent && !b.IsParent
	})
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

func isCodeCollision(err error) bool {
	return dbpkg.IsUniqueViolation(err, "pick_lists_code_key") ||
		dbpkg.IsUniqueViolation(err, "pick_lists.code")
}

func isLabelCollision(err error) bool {
	return dbpkg.IsUniqueViolation(err, "pick_list_labels_label_id_key") ||
		dbpkg.IsUniqueViolation(err, "pick_list_labels.label_id")
}
