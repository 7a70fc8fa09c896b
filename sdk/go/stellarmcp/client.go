// Package stellarmcp is a Go client for the stellar-mcp HTTP tool API.
package stellarmcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DefaultHTTPTimeout is used when no timeout option is given. Submissions
// wait for ledger inclusion, so it is longer than a plain REST call.
const DefaultHTTPTimeout = 60 * time.Second

// IdempotencyHeader carries the replay key of a tool call.
const IdempotencyHeader = "Idempotency-Key"

// Tool describes a tool exposed by the server.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// ToolError is the error payload of a failed tool call.
type ToolError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Retryable bool              `json:"retryable"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

func (e *ToolError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("stellarmcp tool error: %s - %s", e.Code, e.Message)
}

// Result is the outcome of a tool call. Data is left raw for the caller to
// decode into the shape of the tool.
type Result struct {
	Success bool            `json:"success"`
	Tool    string          `json:"tool"`
	Action  string          `json:"action,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *ToolError      `json:"error,omitempty"`
}

// Err returns the tool error, or nil when the call succeeded.
func (r Result) Err() error {
	if r.Success || r.Error == nil {
		return nil
	}
	return r.Error
}

// Decode unmarshals Data into v.
func (r Result) Decode(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("stellarmcp: result of %s has no data", r.Tool)
	}
	return json.Unmarshal(r.Data, v)
}

// APIError represents transport level failures such as authentication.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("stellarmcp api error (%d): %s", e.StatusCode, e.Message)
}

// Client wraps the HTTP interactions with the tool API.
type Client struct {
	http *resty.Client
}

// Option configures a Client.
type Option func(*resty.Client)

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *resty.Client) { c.SetAuthToken(token) }
}

// WithTimeout overrides DefaultHTTPTimeout.
func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

// NewClient creates a client for the API at baseURL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("stellarmcp: invalid base url %q", baseURL)
	}
	rc := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(DefaultHTTPTimeout).
		SetHeader("Accept", "application/json")
	for _, opt := range opts {
		opt(rc)
	}
	return &Client{http: rc}, nil
}

// ListTools returns the tools the server exposes.
func (c *Client) ListTools(ctx context.Context) ([]Tool, error) {
	var out struct {
		Tools []Tool `json:"tools"`
	}
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).Get("/api/v1/tools")
	if err != nil {
		return nil, fmt.Errorf("perform request: %w", err)
	}
	if resp.IsError() {
		return nil, apiError(resp)
	}
	return out.Tools, nil
}

// CallTool invokes a tool. A tool level failure is reported in the Result,
// not as an error.
func (c *Client) CallTool(ctx context.Context, name string, args any) (Result, error) {
	return c.call(ctx, name, args, "")
}

// CallToolIdempotent invokes a tool under an Idempotency-Key, so a retried
// call returns the stored result instead of executing twice.
func (c *Client) CallToolIdempotent(ctx context.Context, name string, args any, key string) (Result, error) {
	return c.call(ctx, name, args, key)
}

func (c *Client) call(ctx context.Context, name string, args any, key string) (Result, error) {
	if args == nil {
		args = map[string]any{}
	}
	var result Result
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(args).
		SetResult(&result).
		SetPathParam("name", name)
	if key != "" {
		req.SetHeader(IdempotencyHeader, key)
	}
	resp, err := req.Post("/api/v1/tools/{name}")
	if err != nil {
		return Result{}, fmt.Errorf("perform request: %w", err)
	}
	if resp.StatusCode() == 404 {
		var notFound Result
		if json.Unmarshal(resp.Body(), &notFound) == nil && notFound.Error != nil {
			return notFound, nil
		}
	}
	if resp.IsError() {
		return Result{}, apiError(resp)
	}
	return result, nil
}

func apiError(resp *resty.Response) error {
	return &APIError{StatusCode: resp.StatusCode(), Message: strings.TrimSpace(resp.String())}
}
