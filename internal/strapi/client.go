package strapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tenacademy/onboarding-api/pkg/config"
)

// CallObserver records CMS call latency for instrumentation.
type CallObserver interface {
	ObserveCMSCall(operation string, err error, duration time.Duration)
}

// Client is a stateless adapter for one Strapi deployment. All operations
// are network calls; no state is retained between them.
type Client struct {
	apiRoot string
	token   string
	http    *http.Client
	logger  *zap.Logger
	metrics CallObserver
}

// Option customises client construction.
type Option func(*Client)

// WithLogger attaches a logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics attaches a call observer.
func WithMetrics(m CallObserver) Option {
	return func(c *Client) { c.metrics = m }
}

// WithHTTPClient overrides the transport, mainly for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// NewClient builds a client for the given stage.
func NewClient(stage config.StageConfig, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	c := &Client{
		apiRoot: stage.APIRoot,
		token:   stage.Token,
		http:    &http.Client{Timeout: timeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIRoot exposes the deployment root for diagnostics.
func (c *Client) APIRoot() string { return c.apiRoot }

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// execute posts a GraphQL document and decodes the data envelope into out.
// A non-empty errors array is surfaced as an error even on HTTP 200.
func (c *Client) execute(ctx context.Context, operation, query string, variables map[string]interface{}, out interface{}) error {
	return c.executeAs(ctx, operation, c.token, query, variables, out)
}

// executeAs runs a GraphQL document under an explicit bearer token. Used by
// the auth flow, where the caller's token is validated rather than the
// service token.
func (c *Client) executeAs(ctx context.Context, operation, token, query string, variables map[string]interface{}, out interface{}) error {
	start := time.Now()
	err := c.doGraphQL(ctx, token, query, variables, out)
	if c.metrics != nil {
		c.metrics.ObserveCMSCall(operation, err, time.Since(start))
	}
	if err != nil {
		c.logger.Warn("cms call failed",
			zap.String("operation", operation),
			zap.Error(err))
	}
	return err
}

func (c *Client) doGraphQL(ctx context.Context, token, query string, variables map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("encode graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiRoot+"/graphql", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("graphql transport: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read graphql response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("graphql returned status %d: %s", resp.StatusCode, truncate(raw, 256))
	}

	var envelope graphQLResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode graphql envelope: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode graphql data: %w", err)
		}
	}
	return nil
}

// doREST posts JSON to a Strapi REST endpoint and decodes the response.
func (c *Client) doREST(ctx context.Context, operation, path string, payload, out interface{}) error {
	start := time.Now()
	err := c.restCall(ctx, path, payload, out)
	if c.metrics != nil {
		c.metrics.ObserveCMSCall(operation, err, time.Since(start))
	}
	if err != nil {
		c.logger.Warn("cms rest call failed",
			zap.String("operation", operation),
			zap.String("path", path),
			zap.Error(err))
	}
	return err
}

func (c *Client) restCall(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode rest request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiRoot+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build rest request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rest transport: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read rest response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("rest returned status %d: %s", resp.StatusCode, truncate(raw, 256))
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode rest response: %w", err)
		}
	}
	return nil
}

func truncate(raw []byte, n int) string {
	if len(raw) > n {
		return string(raw[:n]) + "..."
	}
	return string(raw)
}
