package records

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ledgersmith/ledgersmith/pkg/engine"
	"github.com/rs/zerolog"
)

// tablePathPrefix is the record store's table API root.
const tablePathPrefix = "/api/now/table"

// defaultTimeout bounds a single table API call.
const defaultTimeout = 30 * time.Second

// Client talks to the record store's table API over HTTP. It implements
// engine.RecordClient: a non-2xx response is returned as a Response with
// a nil error so the execution loop can classify the rejection itself;
// only transport-level failures produce an error.
type Client struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
	logger     zerolog.Logger
}

// ClientConfig holds record store connection settings.
type ClientConfig struct {
	// BaseURL is the record store instance URL, e.g. https://example.service-now.com.
	BaseURL string

	// Username and Password authenticate via HTTP basic auth.
	Username string
	Password string

	// Timeout bounds a single request. Defaults to 30 seconds.
	Timeout time.Duration
}

// NewClient creates a table API client.
func NewClient(cfg ClientConfig, logger zerolog.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("record store base URL is required")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid record store base URL: %w", err)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		username:   cfg.Username,
		password:   cfg.Password,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "record-client").Logger(),
	}, nil
}

// ExecuteRequest performs one create/read/update/delete call against the
// table API.
func (c *Client) ExecuteRequest(ctx context.Context, req *engine.Request) (*engine.Response, error) {
	method := req.Verb.HTTPMethod()
	if method == "" {
		return nil, fmt.Errorf("unsupported verb: %s", req.Verb)
	}

	endpoint, err := c.endpoint(req)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if req.Verb.IsMutating() && !req.Verb.IsDestructive() {
		encoded, err := json.Marshal(req.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if c.username != "" {
		httpReq.SetBasicAuth(c.username, c.password)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	c.logger.Debug().
		Str("method", method).
		Str("collection", req.Collection).
		Str("record_id", req.RecordID).
		Msg("Executing table API request")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach record store: %w", err)
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	resp := &engine.Response{
		StatusCode: httpResp.StatusCode,
		Raw:        raw,
	}

	// The table API wraps result objects in a "result" envelope. Bodies
	// that do not decode (or are empty, as for deletes) are kept raw only.
	var envelope struct {
		Result map[string]any `json:"result"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &envelope); err == nil {
			resp.Result = envelope.Result
		}
	}

	c.logger.Debug().
		Int("status", resp.StatusCode).
		Str("collection", req.Collection).
		Msg("Table API request completed")

	return resp, nil
}

// endpoint builds the table API URL for a request.
func (c *Client) endpoint(req *engine.Request) (string, error) {
	if req.Collection == "" {
		return "", fmt.Errorf("collection is required")
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid record store base URL: %w", err)
	}

	u.Path = fmt.Sprintf("%s/%s", tablePathPrefix, url.PathEscape(req.Collection))
	if req.RecordID != "" {
		u.Path += "/" + url.PathEscape(req.RecordID)
	}

	return u.String(), nil
}
