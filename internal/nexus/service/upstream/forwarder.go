// Package upstream forwards submitted turns to the agent backend.
package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fintellect/nexus/pkg/logger"
	"github.com/fintellect/nexus/pkg/utils/json"
)

// ErrNotConfigured is returned when no backend endpoint is set.
var ErrNotConfigured = errors.New("upstream agent backend is not configured")

// Submission is one user turn handed to the backend. The backend answers
// by publishing events to /v1/conversations/{id}/events.
type Submission struct {
	ConversationID string `json:"conversation_id"`
	TurnID         string `json:"turn_id"`
	Text           string `json:"text"`
}

// Forwarder delivers submissions to the agent backend.
type Forwarder interface {
	Forward(ctx context.Context, sub Submission) error
}

// Config holds the backend endpoint.
// Follows K8S-style: Config → Complete() → New().
type Config struct {
	SubmitURL string
	Token     string
	Timeout   time.Duration
}

type CompletedConfig struct {
	*Config
}

func (c *Config) Complete() CompletedConfig {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return CompletedConfig{c}
}

// New returns an HTTP forwarder, or one that always fails with
// ErrNotConfigured when SubmitURL is empty.
func (c CompletedConfig) New() Forwarder {
	if c.SubmitURL == "" {
		logger.Warn("[Upstream] no submit URL configured, submissions will be rejected")
		return unconfigured{}
	}
	logger.Info("[Upstream] forwarding submissions to %s", c.SubmitURL)
	return &HTTPForwarder{
		url:    c.SubmitURL,
		token:  c.Token,
		client: &http.Client{Timeout: c.Timeout},
	}
}

type unconfigured struct{}

func (unconfigured) Forward(context.Context, Submission) error { return ErrNotConfigured }

// HTTPForwarder POSTs submissions as JSON.
type HTTPForwarder struct {
	url    string
	token  string
	client *http.Client
}

func (f *HTTPForwarder) Forward(ctx context.Context, sub Submission) error {
	body, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal submission: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("post submission: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("agent backend returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	logger.DebugX("nexus.upstream", "[Upstream] submission forwarded", "conversation", sub.ConversationID, "turn", sub.TurnID)
	return nil
}
