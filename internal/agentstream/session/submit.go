package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fintellect/nexus/internal/agentstream/errno"
	"github.com/fintellect/nexus/pkg/utils/json"
)

// SubmitRequest is the body of POST /v1/conversations/{id}/submit.
type SubmitRequest struct {
	TurnID string `json:"turn_id"`
	Text   string `json:"text"`
}

// HTTPSubmitter posts turns to nexusd, which forwards them to the agent
// backend.
type HTTPSubmitter struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// NewHTTPSubmitter creates a submitter against a nexusd base URL.
func NewHTTPSubmitter(baseURL, token string, timeout time.Duration) *HTTPSubmitter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPSubmitter{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSubmitter) Submit(ctx context.Context, conversationID, turnID, text string) error {
	body, err := json.Marshal(SubmitRequest{TurnID: turnID, Text: text})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	u := fmt.Sprintf("%s/v1/conversations/%s/submit", s.BaseURL, url.PathEscape(conversationID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.Token)
	}

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return errno.Connection(err, "submit turn")
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		se := errno.Connection(nil, "submit returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		se.Code = fmt.Sprint(resp.StatusCode)
		return se
	}
	return nil
}

// SubmitterFunc adapts a function to Submitter.
type SubmitterFunc func(ctx context.Context, conversationID, turnID, text string) error

func (f SubmitterFunc) Submit(ctx context.Context, conversationID, turnID, text string) error {
	return f(ctx, conversationID, turnID, text)
}
