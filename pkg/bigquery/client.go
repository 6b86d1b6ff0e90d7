// Package bigquery wraps the streaming-insert side of BigQuery used by the
// analytics worker.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/logger"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const metadataCheckTimeout = 10 * time.Second

var (
	errProjectIDRequired    = errors.New("gcp project id is required")
	errDatasetRequired      = errors.New("bigquery dataset is required")
	errTableNameRequired    = errors.New("bigquery table name is required")
	errClientNotInitialized = errors.New("bigquery client not initialized")
)

// InsertIDer is implemented by rows that carry a stable dedupe key. BigQuery
// drops repeated inserts with the same id for a short window, which makes
// retried Puts safe.
type InsertIDer interface {
	InsertID() string
}

// Client is bound to one dataset and a fixed set of tables checked at startup.
type Client struct {
	client  *bigquery.Client
	dataset *bigquery.Dataset
	tables  map[string]string
}

// NewClient connects and fails when the dataset or any configured table is
// missing, so a misconfigured worker never starts consuming.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	projectID := strings.TrimSpace(gcp.ProjectID)
	if projectID == "" {
		return nil, errProjectIDRequired
	}
	datasetID := strings.TrimSpace(cfg.Dataset)
	if datasetID == "" {
		return nil, errDatasetRequired
	}
	tables := configuredTables(cfg)
	if len(tables) == 0 {
		return nil, errTableNameRequired
	}

	bq, err := bigquery.NewClient(ctx, projectID, clientOptions(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{client: bq, dataset: bq.Dataset(datasetID), tables: tables}
	if err := c.checkMetadata(ctx); err != nil {
		_ = bq.Close()
		return nil, err
	}

	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{"project": projectID, "dataset": datasetID})
		logg.Info(ctx, "bigquery.ready")
	}
	return c, nil
}

func clientOptions(gcp config.GCPConfig) []option.ClientOption {
	switch {
	case strings.TrimSpace(gcp.CredentialsJSON) != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(gcp.CredentialsJSON))}
	case strings.TrimSpace(gcp.ApplicationCredentials) != "":
		return []option.ClientOption{option.WithCredentialsFile(gcp.ApplicationCredentials)}
	}
	return nil
}

// configuredTables maps role to table name, skipping blank entries.
func configuredTables(cfg config.BigQueryConfig) map[string]string {
	tables := map[string]string{}
	for role, name := range map[string]string{
		"batch_results": cfg.BatchResultsTable,
		"pick_list":     cfg.PickListTable,
	} {
		if name = strings.TrimSpace(name); name != "" {
			tables[role] = name
		}
	}
	return tables
}

func (c *Client) checkMetadata(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errClientNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, metadataCheckTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		return describeLookup("dataset", c.dataset.DatasetID, err)
	}
	for _, name := range c.tables {
		if _, err := c.dataset.Table(name).Metadata(ctx); err != nil {
			return describeLookup("table", name, err)
		}
	}
	return nil
}

func describeLookup(kind, name string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%s %q does not exist", kind, name)
	}
	return fmt.Errorf("checking %s %q: %w", kind, name, err)
}

func (c *Client) BatchResultsTable() string { return c.tables["batch_results"] }

func (c *Client) PickListTable() string { return c.tables["pick_list"] }

// InsertRows streams rows into table. Rows implementing InsertIDer are sent
// with their insert id.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.client == nil {
		return errClientNotInitialized
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errTableNameRequired
	}
	if len(rows) == 0 {
		return nil
	}
	return c.dataset.Table(table).Inserter().Put(ctx, withInsertIDs(rows))
}

func withInsertIDs(rows []any) []any {
	out := make([]any, len(rows))
	for i, row := range rows {
		if r, ok := row.(InsertIDer); ok && r.InsertID() != "" {
			out[i] = &bigquery.StructSaver{Struct: row, InsertID: r.InsertID()}
			continue
		}
		out[i] = row
	}
	return out
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
