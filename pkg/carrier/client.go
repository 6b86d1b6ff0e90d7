package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/fulfillment-backend/pkg/config"
	"github.com/angelmondragon/fulfillment-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fulfillment-backend/pkg/errors"
)

const (
	defaultTimeout              = 20 * time.Second
	responseBodyReadLimit int64 = 2048
)

var errBaseURLRequired = errors.New("carrier base url is required")

// Client requests shipping labels (AWBs) from the carrier gateway.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	defaultService string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the configured gateway base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = trimmed
		}
	}
}

func NewClient(cfg config.CarrierConfig, opts ...Option) (*Client, error) {
	baseURL := strings.TrimSpace(cfg.BaseURL)
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	client := &Client{
		httpClient:     &http.Client{Timeout: timeout},
		baseURL:        baseURL,
		apiKey:         strings.TrimSpace(cfg.APIKey),
		defaultService: strings.TrimSpace(cfg.DefaultService),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// Options are the caller-provided carrier knobs forwarded verbatim.
type Options map[string]any

// Request describes the shipment to label.
type Request struct {
	OrderID      uuid.UUID `json:"orderId"`
	OrderNumber  string    `json:"orderNumber"`
	CustomerName string    `json:"customerName"`
	Parcels      int       `json:"parcels"`
	Service      string    `json:"service,omitempty"`
	Options      Options   `json:"options,omitempty"`
}

// Result mirrors the gateway reply. Status is the translation of StatusText.
type Result struct {
	Success     bool              `json:"success"`
	LabelNumber string            `json:"labelNumber,omitempty"`
	Carrier     string            `json:"carrier,omitempty"`
	StatusText  string            `json:"status,omitempty"`
	Status      enums.LabelStatus `json:"-"`
	Error       string            `json:"error,omitempty"`
}

// CreateShippingLabel asks the carrier for a new label.
func (c *Client) CreateShippingLabel(ctx context.Context, req Request) (*Result, error) {
	if c == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "carrier client not configured")
	}
	if req.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	if req.Service == "" {
		if svc, ok := req.Options["service"].(string); ok && strings.TrimSpace(svc) != "" {
			req.Service = strings.TrimSpace(svc)
		} else {
			req.Service = c.defaultService
		}
	}
	if req.Parcels <= 0 {
		req.Parcels = 1
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "marshal label request")
	}

	url := fmt.Sprintf("%s/shipments", strings.TrimRight(c.baseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build label request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute label request")
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusBadRequest, http.StatusUnprocessableEntity:
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))), "label request failed")
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode label response")
	}
	if result.Success && strings.TrimSpace(result.LabelNumber) == "" {
		result.Success = false
		result.Error = "carrier returned an empty label number"
	}
	if !result.Success && result.Error == "" {
		result.Error = fmt.Sprintf("label rejected with status %d", resp.StatusCode)
	}
	if result.Success && result.StatusText == "" {
		result.StatusText = string(enums.LabelStatusCreated)
	}
	result.Status = enums.ParseLabelStatus(result.StatusText)
	return &result, nil
}
