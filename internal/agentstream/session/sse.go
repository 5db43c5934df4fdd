package session

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/fintellect/nexus/internal/agentstream/errno"
	"github.com/fintellect/nexus/pkg/logger"
)

// SSEDialer opens GET {BaseURL}/v1/conversations/{id}/stream as a
// server-sent event stream.
type SSEDialer struct {
	BaseURL string
	Token   string
	// HTTPClient must not set a timeout; the stream is long lived.
	HTTPClient *http.Client
	// Buffer is the frame channel capacity.
	Buffer int
}

// NewSSEDialer creates a dialer against a nexusd base URL.
func NewSSEDialer(baseURL, token string) *SSEDialer {
	return &SSEDialer{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Token:      token,
		HTTPClient: &http.Client{},
		Buffer:     64,
	}
}

func (d *SSEDialer) Dial(ctx context.Context, conversationID string) (Channel, error) {
	// The stream outlives the caller's request context; Close ends it.
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	u := fmt.Sprintf("%s/v1/conversations/%s/stream", d.BaseURL, url.PathEscape(conversationID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		cancel()
		return nil, errno.Connection(err, "create stream request")
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if d.Token != "" {
		req.Header.Set("Authorization", "Bearer "+d.Token)
	}

	client := d.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		cancel()
		return nil, errno.Connection(err, "connect to %s", u)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel()
		se := errno.Connection(nil, "stream returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		se.Code = fmt.Sprint(resp.StatusCode)
		return nil, se
	}

	buf := d.Buffer
	if buf <= 0 {
		buf = 64
	}
	ch := &sseChannel{
		conversationID: conversationID,
		body:           resp.Body,
		cancel:         cancel,
		frames:         make(chan Frame, buf),
		done:           make(chan struct{}),
	}
	go ch.read(ctx)
	return ch, nil
}

type sseChannel struct {
	conversationID string
	body           io.ReadCloser
	cancel         context.CancelFunc
	frames         chan Frame
	done           chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
	err       error
}

func (c *sseChannel) Frames() <-chan Frame { return c.frames }

func (c *sseChannel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *sseChannel) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		c.cancel()
		c.body.Close()
	})
	<-c.done
	return nil
}

func (c *sseChannel) read(ctx context.Context) {
	defer close(c.done)
	defer close(c.frames)

	err := ScanFrames(c.body, func(f Frame) bool {
		select {
		case c.frames <- f:
			return true
		case <-ctx.Done():
			return false
		}
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if err == nil {
		err = io.ErrUnexpectedEOF
	}
	c.err = errno.Connection(err, "stream for %s ended", c.conversationID)
	logger.WarnX(moduleName, "[StreamSession] stream ended", "conversation", c.conversationID, "err", err)
}

// ScanFrames reads server-sent events from r and calls emit for each
// dispatched event until emit returns false or r is exhausted. Comment lines
// are skipped and multi-line data is joined with newlines.
func ScanFrames(r io.Reader, emit func(Frame) bool) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		cur     Frame
		data    bytes.Buffer
		hasData bool
	)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			if hasData {
				cur.Data = append([]byte(nil), data.Bytes()...)
				if !emit(cur) {
					return nil
				}
			}
			cur, hasData = Frame{}, false
			data.Reset()
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "event":
			cur.Event = value
		case "id":
			cur.ID = value
		case "data":
			if hasData {
				data.WriteByte('\n')
			}
			data.WriteString(value)
			hasData = true
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return nil
}
