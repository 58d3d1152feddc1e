// Package taker drives an assessment session from the respondent's side of
// the HTTP API.
package taker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-assess/internal/api"
	"github.com/p-n-ai/pai-assess/internal/notify"
	"github.com/p-n-ai/pai-assess/internal/report"
	"github.com/p-n-ai/pai-assess/internal/session"
	"github.com/p-n-ai/pai-assess/internal/survey"
)

// APIError is a non-2xx answer from the assessment API.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("assessment api error (status %d): %s", e.Status, e.Message)
}

// Client calls the assessment HTTP API.
type Client struct {
	baseURL string
	client  *http.Client
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// NewClient creates a client for the API served at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Open fetches the respondent view of a session.
func (c *Client) Open(ctx context.Context, invite string) (*session.View, error) {
	var view session.View
	if err := c.do(ctx, http.MethodGet, c.path(invite, ""), nil, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Save sends responses to be merged into the stored set.
func (c *Client) Save(ctx context.Context, invite string, responses []survey.Response) (*session.View, error) {
	var view session.View
	if err := c.do(ctx, http.MethodPost, c.path(invite, "/responses"), responses, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

// Submit finalises the session.
func (c *Client) Submit(ctx context.Context, invite string, responses []survey.Response) (*report.Result, error) {
	var result report.Result
	if err := c.do(ctx, http.MethodPost, c.path(invite, "/submit"), responses, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Overview fetches section scores filtered by levels and section name.
func (c *Client) Overview(ctx context.Context, invite string, levels []report.MaturityLevel, query string) (*api.Overview, error) {
	var ov api.Overview
	if err := c.do(ctx, http.MethodGet, c.path(invite, "/results/overview")+filterQuery(levels, query), nil, &ov); err != nil {
		return nil, err
	}
	return &ov, nil
}

// Detailed fetches question scores filtered by levels and section name.
func (c *Client) Detailed(ctx context.Context, invite string, levels []report.MaturityLevel, query string) (*api.Detailed, error) {
	var d api.Detailed
	if err := c.do(ctx, http.MethodGet, c.path(invite, "/results/detailed")+filterQuery(levels, query), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Events subscribes to the session's notification stream. The channel is
// closed when ctx ends or the connection drops.
func (c *Client) Events(ctx context.Context, invite string) (<-chan notify.Event, error) {
	wsURL := "ws" + strings.TrimPrefix(c.baseURL, "http") + c.path(invite, "/events")
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{HTTPClient: c.client})
	if err != nil {
		return nil, fmt.Errorf("dial events: %w", err)
	}

	out := make(chan notify.Event)
	go func() {
		defer close(out)
		defer conn.CloseNow()
		for {
			var ev notify.Event
			if err := wsjson.Read(ctx, conn, &ev); err != nil {
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

func (c *Client) path(invite, suffix string) string {
	return "/v1/assessments/" + url.PathEscape(invite) + suffix
}

func filterQuery(levels []report.MaturityLevel, query string) string {
	v := url.Values{}
	if len(levels) > 0 {
		parts := make([]string, len(levels))
		for i, l := range levels {
			parts[i] = string(l)
		}
		v.Set("levels", strings.Join(parts, ","))
	}
	if query != "" {
		v.Set("q", query)
	}
	if len(v) == 0 {
		return ""
	}
	return "?" + v.Encode()
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		msg := string(respBody)
		if json.Unmarshal(respBody, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
