// Package session owns the push channels of the engine: at most one live
// channel per conversation, opened on demand and reused across turns.
package session

import (
	"context"
	"sync"

	"github.com/fintellect/nexus/internal/agentstream/errno"
	"github.com/fintellect/nexus/pkg/logger"
)

const moduleName = "agentstream.session"

// Frame is one raw event as delivered by a channel, before parsing.
type Frame struct {
	// Event is the SSE event name, empty when the transport has none.
	Event string
	ID    string
	Data  []byte
}

// Channel is an open push stream for one conversation. Frames is closed when
// the stream ends; Err then reports why, or nil when the stream was closed
// locally or ended cleanly.
type Channel interface {
	Frames() <-chan Frame
	Err() error
	Close() error
}

// Dialer opens a channel for a conversation.
type Dialer interface {
	Dial(ctx context.Context, conversationID string) (Channel, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context, conversationID string) (Channel, error)

func (f DialerFunc) Dial(ctx context.Context, conversationID string) (Channel, error) {
	return f(ctx, conversationID)
}

// Submitter asks the agent backend to start producing events for a turn.
type Submitter interface {
	Submit(ctx context.Context, conversationID, turnID, text string) error
}

// Manager keeps at most one live channel per conversation.
type Manager struct {
	dialer Dialer

	mu       sync.Mutex
	channels map[string]Channel
	closed   bool
}

// NewManager returns a manager that opens channels with d.
func NewManager(d Dialer) *Manager {
	return &Manager{dialer: d, channels: map[string]Channel{}}
}

// Open returns the live channel of the conversation, dialing one when there
// is none. reused reports whether an existing channel was returned.
func (m *Manager) Open(ctx context.Context, conversationID string) (ch Channel, reused bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, false, errno.ErrEngineClosed
	}
	if ch, ok := m.channels[conversationID]; ok {
		return ch, true, nil
	}

	ch, err = m.dialer.Dial(ctx, conversationID)
	if err != nil {
		logger.WarnX(moduleName, "[StreamSession] dial failed", "conversation", conversationID, "err", err)
		if _, ok := errno.KindOf(err); !ok {
			err = errno.Connection(err, "open stream for %s", conversationID)
		}
		return nil, false, err
	}
	m.channels[conversationID] = ch
	logger.InfoX(moduleName, "[StreamSession] channel opened", "conversation", conversationID)
	return ch, false, nil
}

// Reopen closes the conversation's current channel, if any, and dials a
// fresh one. A turn that reopens never sees events written for an earlier
// turn's channel.
func (m *Manager) Reopen(ctx context.Context, conversationID string) (Channel, error) {
	if err := m.Close(conversationID); err != nil {
		logger.WarnX(moduleName, "[StreamSession] close before reopen failed", "conversation", conversationID, "err", err)
	}
	ch, _, err := m.Open(ctx, conversationID)
	return ch, err
}

// Release closes ch and drops it from the registry if it is still the
// conversation's live channel.
func (m *Manager) Release(conversationID string, ch Channel) error {
	m.Forget(conversationID, ch)
	return ch.Close()
}

// Forget drops ch from the registry if it is still the conversation's live
// channel, so the next Open dials again. Used once a channel has ended.
func (m *Manager) Forget(conversationID string, ch Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.channels[conversationID]; ok && cur == ch {
		delete(m.channels, conversationID)
	}
}

// Close closes the conversation's channel, if any. It is idempotent.
func (m *Manager) Close(conversationID string) error {
	m.mu.Lock()
	ch, ok := m.channels[conversationID]
	delete(m.channels, conversationID)
	m.mu.Unlock()
	if !ok {
		return nil
	}
	logger.InfoX(moduleName, "[StreamSession] channel closed", "conversation", conversationID)
	return ch.Close()
}

// CloseAll closes every channel and refuses further opens.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	chans := m.channels
	m.channels = map[string]Channel{}
	m.closed = true
	m.mu.Unlock()
	for id, ch := range chans {
		if err := ch.Close(); err != nil {
			logger.WarnX(moduleName, "[StreamSession] close failed", "conversation", id, "err", err)
		}
	}
}

// Live reports whether the conversation has an open channel.
func (m *Manager) Live(conversationID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.channels[conversationID]
	return ok
}
