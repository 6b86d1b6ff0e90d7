package batch

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/fulfillment-backend/api/middleware"
	"github.com/angelmondragon/fulfillment-backend/api/responses"
	"github.com/angelmondragon/fulfillment-backend/api/validators"
	"github.com/angelmondragon/fulfillment-backend/internal/fulfillment"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
)

// Service is the batch surface the controllers depend on.
type Service interface {
	ProcessBatch(ctx context.Context, input fulfillment.BatchInput) (*fulfillment.BatchResult, error)
	Errors(ctx context.Context, batchID uuid.UUID) ([]fulfillment.ProcessingErrorDTO, error)
}

type processRequest struct {
	OrderIDs          []uuid.UUID    `json:"orderIds" validate:"required,min=1"`
	LabelOptions      map[string]any `json:"labelOptions"`
	CreatePickList    *bool          `json:"createPickList"`
	AutoPrintPickList *bool          `json:"autoPrintPickList"`
}

// Process runs invoice and label issuance for the requested orders. Per-order
// failures are part of the 200 response; only request-level problems (bad
// input, a batch already running for the series) produce an error status.
func Process(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req processRequest
		if err := validators.DecodeJSONBody(w, r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		createPickList, autoPrint := true, true
		if req.CreatePickList != nil {
			createPickList = *req.CreatePickList
		}
		if req.AutoPrintPickList != nil {
			autoPrint = *req.AutoPrintPickList
		}

		result, err := svc.ProcessBatch(r.Context(), fulfillment.BatchInput{
			OrderIDs:          req.OrderIDs,
			LabelOptions:      req.LabelOptions,
			CreatePickList:    createPickList,
			AutoPrintPickList: autoPrint,
			Actor:             middleware.ActorFromContext(r.Context()),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Errors lists the processing errors recorded for a batch.
func Errors(svc Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID, err := uuid.Parse(strings.TrimSpace(chi.URLParam(r, "batchId")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid batch id"))
			return
		}
		rows, err := svc.Errors(r.Context(), batchID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"batchId": batchID, "errors": rows})
	}
}
