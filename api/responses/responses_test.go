package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"github.com/angelmondragon/fulfillment-backend/pkg/types"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) types.APIError {
	t.Helper()
	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body.Error
}

func TestWriteSuccessWrapsData(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"code": "PL-20260301-0001"})

	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	require.JSONEq(t, `{"data":{"code":"PL-20260301-0001"}}`, w.Body.String())
}

func TestWriteErrorKeepsStateConflictDetails(t *testing.T) {
	w := httptest.NewRecorder()
	w.Header().Set(RequestIDHeader, "req-1")
	err := pkgerrors.New(pkgerrors.CodeStateConflict, "pick list has unpicked items").
		WithDetails(map[string]any{"pickListId": "abc", "incomplete": 2})

	WriteError(context.Background(), nil, w, err)

	require.Equal(t, http.StatusBadRequest, w.Code)
	apiErr := decodeError(t, w)
	require.Equal(t, string(pkgerrors.CodeStateConflict), apiErr.Code)
	require.Equal(t, "pick list has unpicked items", apiErr.Message)
	require.Equal(t, "req-1", apiErr.RequestID)
	require.NotNil(t, apiErr.Details)
}

func TestWriteErrorHidesInternalText(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	w := httptest.NewRecorder()

	WriteError(context.Background(), logg, w, errors.New("dial tcp 10.0.0.4:5432: refused"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	apiErr := decodeError(t, w)
	require.Equal(t, string(pkgerrors.CodeInternal), apiErr.Code)
	require.NotContains(t, apiErr.Message, "10.0.0.4")
	require.Nil(t, apiErr.Details)
	require.Contains(t, buf.String(), "request.failed")
}

func TestWriteErrorLogsClientErrorsAsWarnings(t *testing.T) {
	var buf bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &buf})
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds remaining").
		WithDetails(map[string]any{"sku": "MUG-1", "itemId": "i-1"})

	WriteError(context.Background(), logg, w, err)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, buf.String(), `"level":"warn"`)
	require.Contains(t, buf.String(), `"sku":"MUG-1"`)
	require.Contains(t, buf.String(), "request.rejected")
}

func TestWriteErrorDependencyUsesPublicMessage(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeDependency, "carrier timeout at 10.1.1.1").
		WithDetails(map[string]any{"step": "label"})

	WriteError(context.Background(), nil, w, err)

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	apiErr := decodeError(t, w)
	require.NotContains(t, apiErr.Message, "10.1.1.1")
	require.NotNil(t, apiErr.Details)
}
