// Package httputil provides HTTP client and response utilities for
// gateway-to-backend communication.
package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/laundryhub/gateway/internal/metrics"
)

// =============================================================================
// Forwarded Identity
// =============================================================================

// UserHeader carries the caller's serialized claims to backend services.
// Backends trust it without re-verification; only the gateway may set it.
const UserHeader = "user"

type contextKey string

const (
	forwardedAuthKey contextKey = "forwarded_authorization"
	forwardedUserKey contextKey = "forwarded_user"
)

// WithForwardedAuthorization stores the caller's raw Authorization header
// value for propagation to backend calls.
func WithForwardedAuthorization(ctx context.Context, value string) context.Context {
	return context.WithValue(ctx, forwardedAuthKey, value)
}

// ForwardedAuthorization returns the Authorization value stored in ctx, or "".
func ForwardedAuthorization(ctx context.Context) string {
	if v, ok := ctx.Value(forwardedAuthKey).(string); ok {
		return v
	}
	return ""
}

// WithForwardedUser stores the serialized claims header value for
// propagation to backend calls.
func WithForwardedUser(ctx context.Context, value string) context.Context {
	return context.WithValue(ctx, forwardedUserKey, value)
}

// ForwardedUser returns the serialized claims stored in ctx, or "".
func ForwardedUser(ctx context.Context) string {
	if v, ok := ctx.Value(forwardedUserKey).(string); ok {
		return v
	}
	return ""
}

// =============================================================================
// Service Client
// =============================================================================

// ServiceClient issues JSON-over-HTTP calls to one backend service,
// forwarding the caller's identity headers from the request context.
type ServiceClient struct {
	httpClient *http.Client
	baseURL    string
	name       string
	metrics    *metrics.Metrics
}

// ServiceClientConfig configures a ServiceClient.
type ServiceClientConfig struct {
	Name    string
	BaseURL string
	Timeout time.Duration
	Metrics *metrics.Metrics
}

// NewServiceClient creates a client for one backend service.
func NewServiceClient(cfg ServiceClientConfig) *ServiceClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	return &ServiceClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.BaseURL,
		name:       cfg.Name,
		metrics:    cfg.Metrics,
	}
}

// Name returns the backend service name used in errors and metrics.
func (c *ServiceClient) Name() string {
	return c.name
}

// Do executes an HTTP request against the backend, attaching the
// forwarded Authorization and user headers from ctx when present.
func (c *ServiceClient) Do(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	url := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth := ForwardedAuthorization(ctx); auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if user := ForwardedUser(ctx); user != "" {
		req.Header.Set(UserHeader, user)
	}

	resp, err := c.httpClient.Do(req)
	if c.metrics != nil {
		c.metrics.RecordUpstreamRequest(c.name, err)
	}
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", c.name, err)
	}

	return resp, nil
}

// Get performs a GET request.
func (c *ServiceClient) Get(ctx context.Context, path string) (*http.Response, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with a JSON body.
func (c *ServiceClient) Post(ctx context.Context, path string, body interface{}) (*http.Response, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// =============================================================================
// GraphQL
// =============================================================================

// graphqlRequest is the standard GraphQL HTTP POST body.
type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

// GraphQL posts a query to the backend's /graphql endpoint and returns
// the "data" payload. A transport failure, a non-2xx status or a GraphQL
// errors array all surface as errors.
func (c *ServiceClient) GraphQL(ctx context.Context, query string, variables map[string]interface{}) (gjson.Result, error) {
	resp, err := c.Post(ctx, "/graphql", graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()

	body, err := ReadAllStrict(resp.Body, 8<<20)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("failed to read %s response: %w", c.name, err)
	}

	if resp.StatusCode >= 400 {
		return gjson.Result{}, fmt.Errorf("%s returned status %d", c.name, resp.StatusCode)
	}

	if gqlErrors := gjson.GetBytes(body, "errors"); gqlErrors.Exists() && len(gqlErrors.Array()) > 0 {
		return gjson.Result{}, fmt.Errorf("%s query failed: %s", c.name, gqlErrors.Array()[0].Get("message").String())
	}

	return gjson.GetBytes(body, "data"), nil
}
