package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	pkgredis "github.com/angelmondragon/fulfillment-backend/pkg/redis"
)

const batchRoute = "/api/v1/batch/process"

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", pkgredis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key], _ = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(f.data, key)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func newRequest(method, path, body, key string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req
}

func errorCode(t *testing.T, body io.Reader) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(body).Decode(&payload))
	return payload.Error.Code
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   time.Duration
		ok     bool
	}{
		{http.MethodPost, batchRoute, criticalIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/notifications/3f1c2b1e-9a7d-4c1e-8f00-2d6b5d1a9c10/read", defaultIdempotencyTTL, true},
		{http.MethodPost, "/api/v1/notifications/read-all", defaultIdempotencyTTL, true},
		{http.MethodPatch, "/api/v1/picklists/3f1c2b1e-9a7d-4c1e-8f00-2d6b5d1a9c10", 0, false},
		{http.MethodGet, batchRoute, 0, false},
		{http.MethodPost, "/api/v1/notifications/a/b/read", 0, false},
	}
	for _, tt := range tests {
		ttl, ok := routeTTL(tt.method, tt.path)
		require.Equal(t, tt.ok, ok, "%s %s", tt.method, tt.path)
		require.Equal(t, tt.want, ttl, "%s %s", tt.method, tt.path)
	}
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	called := false
	handler := Idempotency(newFakeStore(), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, newRequest(http.MethodPost, batchRoute, `{}`, ""))
	require.Equal(t, http.StatusBadRequest, resp.Code)
	require.False(t, called)
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		body, _ := io.ReadAll(r.Body)
		require.JSONEq(t, `{"orderIds":["a"]}`, string(body))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data":{"success":true}}`))
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, newRequest(http.MethodPost, batchRoute, `{"orderIds":["a"]}`, "abc"))
	require.Equal(t, http.StatusOK, first.Code)

	replay := httptest.NewRecorder()
	handler.ServeHTTP(replay, newRequest(http.MethodPost, batchRoute, `{"orderIds":["a"]}`, "abc"))
	require.Equal(t, http.StatusOK, replay.Code)
	require.Equal(t, "application/json", replay.Header().Get("Content-Type"))
	require.Equal(t, "true", replay.Header().Get("Idempotent-Replayed"))
	require.Equal(t, `{"data":{"success":true}}`, replay.Body.String())
	require.Equal(t, 1, calls)

	for key, ttl := range store.ttls {
		require.Equal(t, criticalIdempotencyTTL, ttl, key)
	}
}

func TestIdempotencyDetectsBodyChange(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, nil)(http.HandlerFunc(okHandler))

	handler.ServeHTTP(httptest.NewRecorder(), newRequest(http.MethodPost, batchRoute, `{"orderIds":["a"]}`, "xyz"))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, newRequest(http.MethodPost, batchRoute, `{"orderIds":["b"]}`, "xyz"))
	require.Equal(t, http.StatusConflict, resp.Code)
	require.Equal(t, string(pkgerrors.CodeIdempotency), errorCode(t, resp.Body))
}

func TestIdempotencyDoesNotStoreFailures(t *testing.T) {
	store := newFakeStore()
	status := http.StatusConflict
	calls := 0
	handler := Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, newRequest(http.MethodPost, batchRoute, `{}`, "retry"))
	require.Equal(t, http.StatusConflict, resp.Code)
	require.Empty(t, store.data)

	status = http.StatusOK
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, newRequest(http.MethodPost, batchRoute, `{}`, "retry"))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, 2, calls)
	require.Len(t, store.data, 1)
}

func TestIdempotencyRejectsInFlightDuplicate(t *testing.T) {
	store := newFakeStore()
	var inner *httptest.ResponseRecorder
	var handler http.Handler
	handler = Idempotency(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if inner == nil {
			inner = httptest.NewRecorder()
			handler.ServeHTTP(inner, newRequest(http.MethodPost, batchRoute, `{}`, "busy"))
		}
		w.WriteHeader(http.StatusOK)
	}))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, newRequest(http.MethodPost, batchRoute, `{}`, "busy"))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, http.StatusConflict, inner.Code)
	require.Equal(t, string(pkgerrors.CodeConflict), errorCode(t, inner.Body))
}

func TestIdempotencySkipsUnlistedRoutes(t *testing.T) {
	store := newFakeStore()
	handler := Idempotency(store, nil)(http.HandlerFunc(okHandler))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, newRequest(http.MethodPatch, "/api/v1/picklists/3f1c2b1e-9a7d-4c1e-8f00-2d6b5d1a9c10", `{"action":"scan"}`, ""))
	require.Equal(t, http.StatusOK, resp.Code)
	require.Empty(t, store.data)
}
