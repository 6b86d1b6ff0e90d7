package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
)

type sampleBody struct {
	OrderIDs []string `json:"orderIds" validate:"required,min=1"`
	Barcode  string   `json:"barcode" validate:"omitempty,scancode"`
	Note     string   `json:"note" validate:"max=4"`
}

func decode(t *testing.T, body string) (sampleBody, *pkgerrors.Error) {
	t.Helper()
	var dest sampleBody
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	err := DecodeJSONBody(httptest.NewRecorder(), req, &dest)
	if err == nil {
		return dest, nil
	}
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	return dest, typed
}

func TestDecodeJSONBodyAcceptsValidObject(t *testing.T) {
	got, err := decode(t, `{"orderIds":["a"],"barcode":"5901234\n"}`)
	require.Nil(t, err)
	assert.Equal(t, []string{"a"}, got.OrderIDs)
}

func TestDecodeJSONBodyRejections(t *testing.T) {
	cases := map[string]struct {
		body    string
		message string
	}{
		"empty":         {``, "request body is empty"},
		"syntax":        {`{"orderIds":`, "invalid request body"},
		"malformed":     {`{"orderIds" 1}`, "malformed JSON"},
		"wrong type":    {`{"orderIds":"a"}`, "wrong JSON type"},
		"unknown field": {`{"orderIds":["a"],"extra":true}`, "unknown field"},
		"trailing":      {`{"orderIds":["a"]} {}`, "request body must hold a single JSON object"},
		"rules":         {`{"orderIds":[],"note":"too long"}`, "validation failed"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decode(t, tc.body)
			require.NotNil(t, err)
			assert.Equal(t, tc.message, err.Message())
		})
	}
}

func TestDecodeJSONBodyNamesFieldsByJSONTag(t *testing.T) {
	_, err := decode(t, `{"orderIds":[],"barcode":"59 01","note":"too long"}`)
	require.NotNil(t, err)
	assert.Equal(t, map[string]string{
		"orderIds": "needs at least 1 entries",
		"barcode":  "must be a printable code without inner spaces",
		"note":     "must be at most 4 characters",
	}, err.Details())
}

func TestDecodeJSONBodyEnforcesSizeLimit(t *testing.T) {
	big := `{"orderIds":["` + strings.Repeat("a", MaxBodyBytes) + `"]}`
	_, err := decode(t, big)
	require.NotNil(t, err)
	assert.Equal(t, "request body too large", err.Message())
}

func TestQueryCollectsEveryProblem(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=500&unreadOnly=maybe&status=bogus&cursor=%20c1%20", nil)
	q := NewQuery(req)

	assert.Equal(t, 25, q.Int("limit", 25, 1, 100))
	assert.False(t, q.Bool("unreadOnly"))
	assert.Equal(t, "c1", q.String("cursor"))
	assert.Nil(t, Enum(q, "status", func(s string) (string, error) {
		return "", assert.AnError
	}))
	assert.Nil(t, Enum(q, "missing", func(s string) (string, error) { return s, nil }))

	typed := pkgerrors.As(q.Err())
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be between 1 and 100", details["limit"])
	assert.Equal(t, "must be true or false", details["unreadOnly"])
	assert.Contains(t, details, "status")
}

func TestQueryWithoutProblemsHasNoError(t *testing.T) {
	q := NewQuery(httptest.NewRequest(http.MethodGet, "/?limit=10&unreadOnly=true", nil))
	assert.Equal(t, 10, q.Int("limit", 0, 1, 100))
	assert.True(t, q.Bool("unreadOnly"))
	assert.NoError(t, q.Err())
}
