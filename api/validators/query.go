package validators

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
)

// Query reads typed query parameters and collects every problem, so a client
// sees all bad parameters in one response.
type Query struct {
	values url.Values
	errs   map[string]string
}

func NewQuery(r *http.Request) *Query {
	return &Query{values: r.URL.Query()}
}

func (q *Query) String(key string) string {
	return strings.TrimSpace(q.values.Get(key))
}

// Int returns def when key is absent.
func (q *Query) Int(key string, def, lo, hi int) int {
	raw := q.String(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		q.fail(key, "must be a whole number")
		return def
	}
	if v < lo || v > hi {
		q.fail(key, fmt.Sprintf("must be between %d and %d", lo, hi))
		return def
	}
	return v
}

func (q *Query) Bool(key string) bool {
	raw := q.String(key)
	if raw == "" {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		q.fail(key, "must be true or false")
	}
	return v
}

// Enum runs parse on a present value and records its error under key.
func Enum[T any](q *Query, key string, parse func(string) (T, error)) *T {
	raw := q.String(key)
	if raw == "" {
		return nil
	}
	v, err := parse(raw)
	if err != nil {
		q.fail(key, err.Error())
		return nil
	}
	return &v
}

func (q *Query) fail(key, msg string) {
	if q.errs == nil {
		q.errs = map[string]string{}
	}
	q.errs[key] = msg
}

// Err is a VALIDATION error listing each rejected parameter, or nil.
func (q *Query) Err() error {
	if len(q.errs) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid query parameters").WithDetails(q.errs)
}
