// Package httpstore implements the engine's store port against the nexusd
// REST API.
package httpstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fintellect/nexus/internal/agentstream/store"
	"github.com/fintellect/nexus/pkg/utils/json"
)

// APIError is a non-2xx answer from nexusd.
type APIError struct {
	Status  int    `json:"-"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("nexusd returned %d", e.Status)
	if e.Code != 0 {
		msg += fmt.Sprintf(" (code=%d)", e.Code)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Is matches store.ErrNotFound for 404 answers.
func (e *APIError) Is(target error) bool {
	return target == store.ErrNotFound && e.Status == http.StatusNotFound
}

// Client talks to /v1/conversations on a nexusd server.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// New creates a client. A zero timeout means 30s.
func New(baseURL, token string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

type listResponse[T any] struct {
	Data []T `json:"data"`
}

type createConversationRequest struct {
	Title string `json:"title"`
}

func (c *Client) CreateConversation(ctx context.Context, title string) (*store.Conversation, error) {
	var out store.Conversation
	if err := c.do(ctx, http.MethodPost, "/v1/conversations", createConversationRequest{Title: title}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListConversations(ctx context.Context) ([]*store.Conversation, error) {
	var out listResponse[*store.Conversation]
	if err := c.do(ctx, http.MethodGet, "/v1/conversations", nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) DeleteConversation(ctx context.Context, conversationID string) error {
	return c.do(ctx, http.MethodDelete, conversationPath(conversationID, ""), nil, nil)
}

func (c *Client) AppendMessage(ctx context.Context, conversationID string, msg *store.Message) (string, error) {
	var out store.Message
	if err := c.do(ctx, http.MethodPost, conversationPath(conversationID, "/messages"), msg, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]*store.Message, error) {
	var out listResponse[*store.Message]
	if err := c.do(ctx, http.MethodGet, conversationPath(conversationID, "/messages"), nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) AppendToolCall(ctx context.Context, conversationID string, tc *store.ToolCall) (string, error) {
	var out store.ToolCall
	if err := c.do(ctx, http.MethodPost, conversationPath(conversationID, "/toolcalls"), tc, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *Client) ListToolCalls(ctx context.Context, conversationID string) ([]*store.ToolCall, error) {
	var out listResponse[*store.ToolCall]
	if err := c.do(ctx, http.MethodGet, conversationPath(conversationID, "/toolcalls"), nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func conversationPath(id, suffix string) string {
	return "/v1/conversations/" + url.PathEscape(id) + suffix
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

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(respBody, apiErr) != nil {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return apiErr
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

var _ store.Store = (*Client)(nil)
