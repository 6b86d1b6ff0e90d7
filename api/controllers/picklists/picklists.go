package picklists

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/fulfillment-backend/api/middleware"
	"github.com/angelmondragon/fulfillment-backend/api/responses"
	"github.com/angelmondragon/fulfillment-backend/api/validators"
	"github.com/angelmondragon/fulfillment-backend/internal/picklists"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

// Service is the pick list surface the controllers depend on.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*picklists.Detail, error)
	List(ctx context.Context, params picklists.ListParams) (*picklists.ListResult, error)
	Logs(ctx context.Context, id uuid.UUID, limit int) ([]picklists.LogDTO, error)
	Start(ctx context.Context, id uuid.UUID, actor string) (*picklists.Detail, error)
	Scan(ctx context.Context, id uuid.UUID, input picklists.ScanInput) (*picklists.PickResult, error)
	PickItem(ctx context.Context, id uuid.UUID, input picklists.PickItemInput) (*picklists.PickResult, error)
	ResetItem(ctx context.Context, id, itemID uuid.UUID, actor string) (*picklists.Detail, error)
	Complete(ctx context.Context, id uuid.UUID, actor string) (*picklists.Detail, error)
	Cancel(ctx context.Context, id uuid.UUID, actor string) (*picklists.Detail, error)
	Delete(ctx context.Context, id uuid.UUID, actor string) error
	Update(ctx context.Context, id uuid.UUID, input picklists.UpdateInput) (*picklists.Detail, error)
}

func List(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := validators.NewQuery(r)
		params := picklists.ListParams{
			Limit:  q.Int("limit", 0, 1, 100),
			Cursor: q.String("cursor"),
			Status: validators.Enum(q, "status", enums.ParsePickListStatus),
		}
		if err := q.Err(); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func Detail(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pickListID(w, r, logg)
		if !ok {
			return
		}
		detail, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

func Logs(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pickListID(w, r, logg)
		if !ok {
			return
		}
		q := validators.NewQuery(r)
		limit := q.Int("limit", 0, 1, 100)
		if err := q.Err(); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		logs, err := svc.Logs(r.Context(), id, limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": logs})
	}
}

// Patch dispatches a pick list action, or updates metadata when no action is given.
func Patch(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pickListID(w, r, logg)
		if !ok {
			return
		}
		var req patchRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithPickListID(ctx, id.String())
			if req.Action != "" {
				ctx = logg.WithField(ctx, "action", req.Action)
			}
		}
		actor := req.actor(middleware.ActorFromContext(ctx))

		result, err := dispatch(ctx, svc, id, req, actor)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func dispatch(ctx context.Context, svc Service, id uuid.UUID, req patchRequest, actor string) (any, error) {
	switch req.Action {
	case actionScan:
		code := req.code()
		if code == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "barcode or sku is required")
		}
		return svc.Scan(ctx, id, picklists.ScanInput{Code: code, Quantity: req.quantity(), Actor: actor})
	case actionPickItem:
		if req.ItemID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "itemId is required")
		}
		return svc.PickItem(ctx, id, picklists.PickItemInput{ItemID: *req.ItemID, Quantity: req.quantity(), Actor: actor})
	case actionResetItem:
		if req.ItemID == nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "itemId is required")
		}
		return svc.ResetItem(ctx, id, *req.ItemID, actor)
	case actionStart:
		return svc.Start(ctx, id, actor)
	case actionComplete:
		return svc.Complete(ctx, id, actor)
	case actionCancel:
		return svc.Cancel(ctx, id, actor)
	}
	return svc.Update(ctx, id, picklists.UpdateInput{
		Name:       req.Name,
		AssignedTo: req.AssignedTo,
		Notes:      req.Notes,
		Actor:      actor,
	})
}

func Delete(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pickListID(w, r, logg)
		if !ok {
			return
		}
		if err := svc.Delete(r.Context(), id, middleware.ActorFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"deleted": true})
	}
}

func pickListID(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "id")))
	if err != nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid pick list id"))
		return uuid.Nil, false
	}
	return id, true
}
