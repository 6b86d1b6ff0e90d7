// Package writer streams analytics rows into BigQuery.
package writer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/angelmondragon/fulfillment-backend/internal/analytics/types"
	pkgbigquery "github.com/angelmondragon/fulfillment-backend/pkg/bigquery"
)

const (
	defaultBatchSize      = 1
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second
)

// Config overrides the tables configured on the client when set.
type Config struct {
	BatchTable    string
	PickListTable string
	BatchSize     int
	RetryPolicy   RetryPolicy
}

type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = defaultInitialBackoff
	}
	if p.MaximumBackoff <= 0 {
		p.MaximumBackoff = defaultMaximumBackoff
	}
	p.MaximumBackoff = max(p.MaximumBackoff, p.InitialBackoff)
	return p
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// tableBuffer holds rows waiting for one streaming insert into table.
type tableBuffer struct {
	table string
	rows  []any
}

// BigQueryWriter buffers rows per table and flushes once batchSize rows are
// waiting. Handlers call it from concurrent Pub/Sub callbacks.
type BigQueryWriter struct {
	client    tableInserter
	batchSize int
	retry     RetryPolicy

	mu        sync.Mutex
	batches   tableBuffer
	pickLists tableBuffer
}

func New(client *pkgbigquery.Client, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	batchTable := firstNonBlank(cfg.BatchTable, client.BatchResultsTable())
	if batchTable == "" {
		return nil, errors.New("batch results table is required")
	}
	pickListTable := firstNonBlank(cfg.PickListTable, client.PickListTable())
	if pickListTable == "" {
		return nil, errors.New("pick list table is required")
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &BigQueryWriter{
		client:    client,
		batchSize: batchSize,
		retry:     cfg.RetryPolicy.withDefaults(),
		batches:   tableBuffer{table: batchTable},
		pickLists: tableBuffer{table: pickListTable},
	}, nil
}

func firstNonBlank(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// InsertBatchOrders buffers every order row of one batch run. The rows of a
// run are never split across inserts.
func (w *BigQueryWriter) InsertBatchOrders(ctx context.Context, rows []types.BatchOrderRow) error {
	if len(rows) == 0 {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, row := range rows {
		w.batches.rows = append(w.batches.rows, row)
	}
	return w.flushFull(ctx, &w.batches)
}

func (w *BigQueryWriter) InsertPickListCompletion(ctx context.Context, row types.PickListCompletionRow) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pickLists.rows = append(w.pickLists.rows, row)
	return w.flushFull(ctx, &w.pickLists)
}

// Flush writes whatever is buffered. It is called on shutdown.
func (w *BigQueryWriter) Flush(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.flush(ctx, &w.batches); err != nil {
		return err
	}
	return w.flush(ctx, &w.pickLists)
}

func (w *BigQueryWriter) flushFull(ctx context.Context, buf *tableBuffer) error {
	if len(buf.rows) < w.batchSize {
		return nil
	}
	return w.flush(ctx, buf)
}

// flush keeps the rows buffered when the insert fails so the next flush
// retries them.
func (w *BigQueryWriter) flush(ctx context.Context, buf *tableBuffer) error {
	if len(buf.rows) == 0 {
		return nil
	}
	if err := w.insertWithRetry(ctx, buf.table, buf.rows); err != nil {
		return err
	}
	buf.rows = buf.rows[:0]
	return nil
}

func (w *BigQueryWriter) insertWithRetry(ctx context.Context, table string, rows []any) error {
	backoff := w.retry.InitialBackoff
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := w.client.InsertRows(ctx, table, rows)
		if err == nil {
			return nil
		}
		if attempt >= w.retry.MaxAttempts || !isRetryableBigQueryError(err) {
			return fmt.Errorf("insert %d rows into %s after %d attempts: %w", len(rows), table, attempt, err)
		}

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		backoff = min(backoff*2, w.retry.MaximumBackoff)
	}
}

// isRetryableBigQueryError is true only when every underlying failure is
// transient. A single bad row makes the whole insert permanent.
func isRetryableBigQueryError(err error) bool {
	if err == nil {
		return false
	}

	var multi *cbigquery.MultiError
	if errors.As(err, &multi) && multi != nil {
		return allRetryable(*multi)
	}
	var rowErrs *cbigquery.PutMultiError
	if errors.As(err, &rowErrs) && rowErrs != nil {
		inner := make([]error, 0, len(*rowErrs))
		for _, rowErr := range *rowErrs {
			inner = append(inner, rowErr.Errors)
		}
		return allRetryable(inner)
	}
	var rowErr *cbigquery.RowInsertionError
	if errors.As(err, &rowErr) && rowErr != nil {
		return allRetryable(rowErr.Errors)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests, http.StatusRequestTimeout,
			http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	if st, ok := status.FromError(err); ok {
		switch st.Code() {
		case codes.Aborted, codes.DeadlineExceeded, codes.Internal,
			codes.ResourceExhausted, codes.Unavailable:
			return true
		}
	}
	return false
}

func allRetryable(errs []error) bool {
	if len(errs) == 0 {
		return false
	}
	for _, err := range errs {
		if !isRetryableBigQueryError(err) {
			return false
		}
	}
	return true
}
