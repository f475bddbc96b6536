package multibaas

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"mbsheets/internal/filter"
	"mbsheets/internal/model"
	"mbsheets/internal/query"
	"mbsheets/internal/retry"
)

var (
	_ query.Backend           = (*Client)(nil)
	_ query.SavedQueryBackend = (*Client)(nil)
)

const apiPrefix = "/api/v0"

// Config holds the connection settings for a deployment.
type Config struct {
	// Deployment is either a full base URL or a deployment ID.
	Deployment        string
	APIKey            string
	Timeout           time.Duration
	MaxRetries        int
	RetryBackoff      time.Duration
	RequestsPerSecond float64
	Burst             int
}

// Client runs custom and saved event queries against the MultiBaas REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	policy  retry.Policy
	logger  *zap.Logger
}

// NewClient creates a client. A nil logger disables logging.
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	base, err := BaseURL(cfg.Deployment)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
		policy: retry.Policy{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.RetryBackoff,
			Retryable:  isTransient,
		},
		logger: logger,
	}, nil
}

// BaseURL resolves a deployment setting to the API host.
func BaseURL(deployment string) (string, error) {
	deployment = strings.TrimSpace(deployment)
	if deployment == "" {
		return "", fmt.Errorf("multibaas deployment is required")
	}
	if strings.Contains(deployment, "://") {
		u, err := url.Parse(deployment)
		if err != nil || u.Host == "" {
			return "", fmt.Errorf("invalid deployment url: %s", deployment)
		}
		return strings.TrimRight(u.String(), "/"), nil
	}
	for _, r := range deployment {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
			return "", fmt.Errorf("invalid deployment id: %s", deployment)
		}
	}
	return "https://" + deployment + ".multibaas.com", nil
}

// FetchEvents runs one page of a custom event query.
func (c *Client) FetchEvents(ctx context.Context, page query.Spec) ([]model.ResultRow, error) {
	selects := make([]selectField, 0, len(page.Projections))
	for _, p := range page.Projections {
		selects = append(selects, selectField{
			Alias:      p.Alias,
			Type:       "input",
			InputIndex: p.ArgIndex,
			Aggregator: p.Aggregator,
		})
	}
	body := customQueryRequest{
		Events: []eventQuery{{
			EventName: page.EventSignature,
			Select:    selects,
			Filter:    filter.ToWire(page.Filter),
		}},
		GroupBy: page.GroupBy,
		OrderBy: page.OrderBy,
	}
	return c.rows(ctx, http.MethodPost, apiPrefix+"/queries", pageParams(page.Limit, page.Offset), body)
}

// FetchSavedQuery runs a query saved on the deployment.
func (c *Client) FetchSavedQuery(ctx context.Context, name string, limit, offset int) ([]model.ResultRow, error) {
	path := apiPrefix + "/queries/" + url.PathEscape(name) + "/results"
	return c.rows(ctx, http.MethodGet, path, pageParams(limit, offset), nil)
}

func pageParams(limit, offset int) url.Values {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	return params
}

func (c *Client) rows(ctx context.Context, method, path string, params url.Values, body interface{}) ([]model.ResultRow, error) {
	var result queryResult
	if err := c.call(ctx, method, path, params, body, &result); err != nil {
		return nil, err
	}
	rows := make([]model.ResultRow, 0, len(result.Rows))
	for _, row := range result.Rows {
		rows = append(rows, model.ResultRow(row))
	}
	return rows, nil
}

func (c *Client) call(ctx context.Context, method, path string, params url.Values, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var env envelope
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		var err error
		env, err = c.once(ctx, method, endpoint, payload)
		if err != nil && isTransient(err) {
			c.logger.Warn("multibaas request failed", zap.String("path", path), zap.Error(err))
		}
		return err
	})
	if err != nil {
		return err
	}

	if out == nil || len(env.Result) == 0 || string(env.Result) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(env.Result))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

func (c *Client) once(ctx context.Context, method, endpoint string, payload []byte) (envelope, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return envelope{}, err
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return envelope{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return envelope{}, &model.TransportError{Op: method + " " + req.URL.Path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return envelope{}, &model.TransportError{Op: method + " " + req.URL.Path, Err: err}
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	switch {
	case resp.StatusCode >= http.StatusInternalServerError:
		return envelope{}, &model.TransportError{
			Op:  method + " " + req.URL.Path,
			Err: fmt.Errorf("status %d: %s", resp.StatusCode, message(env, raw)),
		}
	case resp.StatusCode >= http.StatusBadRequest:
		return envelope{}, &model.QueryRejectedError{Status: resp.StatusCode, Message: message(env, raw)}
	case decodeErr != nil:
		return envelope{}, fmt.Errorf("decode response: %w", decodeErr)
	}
	return env, nil
}

func message(env envelope, raw []byte) string {
	if env.Message != "" {
		return env.Message
	}
	return strings.TrimSpace(string(raw))
}

func isTransient(err error) bool {
	var transport *model.TransportError
	return errors.As(err, &transport)
}
