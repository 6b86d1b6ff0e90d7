package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/angelmondragon/fulfillment-backend/api/responses"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/fulfillment-backend/pkg/redis"
)

const (
	defaultIdempotencyTTL  = 24 * time.Hour
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	pendingIdempotencyTTL  = 15 * time.Minute

	idempotencyHeader = "Idempotency-Key"
)

// idempotentRoutes are path.Match patterns keyed by method.
var idempotentRoutes = map[string][]struct {
	pattern string
	ttl     time.Duration
}{
	http.MethodPost: {
		{"/api/v1/batch/process", criticalIdempotencyTTL},
		{"/api/v1/notifications/*/read", defaultIdempotencyTTL},
		{"/api/v1/notifications/read-all", defaultIdempotencyTTL},
	},
}

var errRequestInFlight = pkgerrors.New(pkgerrors.CodeConflict, "a request with this Idempotency-Key is still in progress")

// storedResponse is the redis value. Pending marks a key claimed by a request
// that has not finished yet.
type storedResponse struct {
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
	RequestHash string `json:"request_hash"`
	Pending     bool   `json:"pending,omitempty"`
}

// Idempotency replays the stored response for a repeated Idempotency-Key on
// idempotentRoutes. Only 2xx responses are kept, so a failed request can be
// retried under the same key.
func Idempotency(store pkgredis.IdempotencyStore, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, ok := routeTTL(r.Method, r.URL.Path)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			id := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if id == "" {
				responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			key := store.IdempotencyKey(requestScope(r), id)
			hash := hashBody(body)
			stored, err := claimKey(ctx, store, key, hash)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if stored != nil {
				stored.replay(w)
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			// The client may have gone away; the key still has to settle.
			ctx = context.WithoutCancel(ctx)
			if err := store.Del(ctx, key); err != nil {
				logError(ctx, logg, "idempotency.release_failed", err)
			}
			status := defaultStatus(capture.status)
			if status < 200 || status > 299 {
				return
			}
			payload, err := json.Marshal(storedResponse{
				Status:      status,
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
				RequestHash: hash,
			})
			if err == nil {
				_, err = store.SetNX(ctx, key, string(payload), ttl)
			}
			if err != nil {
				logError(ctx, logg, "idempotency.persist_failed", err)
			}
		})
	}
}

// claimKey marks key pending for this request. When a finished response is
// already stored for the same body it is returned for replay instead.
func claimKey(ctx context.Context, store pkgredis.IdempotencyStore, key, hash string) (*storedResponse, error) {
	raw, err := store.Get(ctx, key)
	switch {
	case errors.Is(err, pkgredis.Nil):
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency")
	default:
		var stored storedResponse
		if err := json.Unmarshal([]byte(raw), &stored); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
		}
		if stored.RequestHash != hash {
			return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body")
		}
		if stored.Pending {
			return nil, errRequestInFlight
		}
		return &stored, nil
	}

	pending, _ := json.Marshal(storedResponse{RequestHash: hash, Pending: true})
	claimed, err := store.SetNX(ctx, key, string(pending), pendingIdempotencyTTL)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key")
	}
	if !claimed {
		return nil, errRequestInFlight
	}
	return nil, nil
}

func (s *storedResponse) replay(w http.ResponseWriter) {
	if s.ContentType != "" {
		w.Header().Set("Content-Type", s.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

// requestScope keeps keys from colliding across users and endpoints.
func requestScope(r *http.Request) string {
	return UserIDFromContext(r.Context()) + "|" + r.Method + "|" + r.URL.Path
}

func hashBody(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

func defaultStatus(value int) int {
	if value == 0 {
		return http.StatusOK
	}
	return value
}

func routeTTL(method, urlPath string) (time.Duration, bool) {
	for _, route := range idempotentRoutes[method] {
		if ok, _ := path.Match(route.pattern, urlPath); ok {
			return route.ttl, true
		}
	}
	return 0, false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

func logError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg == nil || err == nil {
		return
	}
	logg.Error(ctx, msg, err)
}
