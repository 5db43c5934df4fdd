// Package storetest provides an in-memory store.Store with failure injection
// for engine tests.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fintellect/nexus/internal/agentstream/store"
)

// ErrInjected is returned by operations armed to fail.
var ErrInjected = errors.New("storetest: injected failure")

// Store is a concurrency-safe in-memory store.Store.
type Store struct {
	mu            sync.Mutex
	seq           int
	conversations map[string]*store.Conversation
	order         []string
	messages      map[string][]*store.Message
	toolCalls     map[string][]*store.ToolCall

	failMessages  int
	failToolCalls int
	delay         time.Duration
	calls         map[string]int
}

// New returns an empty store.
func New() *Store {
	return &Store{
		conversations: map[string]*store.Conversation{},
		messages:      map[string][]*store.Message{},
		toolCalls:     map[string][]*store.ToolCall{},
		calls:         map[string]int{},
	}
}

// FailMessages makes the next n AppendMessage calls fail.
func (s *Store) FailMessages(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failMessages = n
}

// FailToolCalls makes the next n AppendToolCall calls fail.
func (s *Store) FailToolCalls(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failToolCalls = n
}

// SetDelay delays every append, honoring context cancellation.
func (s *Store) SetDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delay = d
}

// Calls returns how many times op was invoked, successful or not.
func (s *Store) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// Seed creates a conversation with a fixed ID.
func (s *Store) Seed(id, title string) *store.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := &store.Conversation{ID: id, Title: title, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	s.conversations[id] = c
	s.order = append(s.order, id)
	return c
}

func (s *Store) exists(convID string) error {
	if _, ok := s.conversations[convID]; !ok {
		return fmt.Errorf("%w: %s", store.ErrNotFound, convID)
	}
	return nil
}

// SeedToolCall stores a finalized tool-call record directly.
func (s *Store) SeedToolCall(convID string, tc store.ToolCall) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tc.ID = s.nextID("tool")
	tc.ConversationID = convID
	s.toolCalls[convID] = append(s.toolCalls[convID], &tc)
}

func (s *Store) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *Store) wait(ctx context.Context) error {
	s.mu.Lock()
	d := s.delay
	s.mu.Unlock()
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) CreateConversation(_ context.Context, title string) (*store.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["CreateConversation"]++
	id := s.nextID("conv")
	now := time.Now()
	c := &store.Conversation{ID: id, Title: title, CreatedAt: now, UpdatedAt: now}
	s.conversations[id] = c
	s.order = append(s.order, id)
	cp := *c
	return &cp, nil
}

func (s *Store) ListConversations(_ context.Context) ([]*store.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*store.Conversation, 0, len(s.order))
	for _, id := range s.order {
		if c, ok := s.conversations[id]; ok {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *Store) DeleteConversation(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["DeleteConversation"]++
	if _, ok := s.conversations[id]; !ok {
		return fmt.Errorf("%w: %s", store.ErrNotFound, id)
	}
	delete(s.conversations, id)
	delete(s.messages, id)
	delete(s.toolCalls, id)
	return nil
}

func (s *Store) AppendMessage(ctx context.Context, convID string, msg *store.Message) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["AppendMessage"]++
	if err := s.exists(convID); err != nil {
		return "", err
	}
	if s.failMessages > 0 {
		s.failMessages--
		return "", ErrInjected
	}
	cp := *msg
	cp.ID = s.nextID("msg")
	cp.ConversationID = convID
	s.messages[convID] = append(s.messages[convID], &cp)
	return cp.ID, nil
}

func (s *Store) ListMessages(_ context.Context, convID string) ([]*store.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.exists(convID); err != nil {
		return nil, err
	}
	out := make([]*store.Message, 0, len(s.messages[convID]))
	for _, m := range s.messages[convID] {
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

func (s *Store) AppendToolCall(ctx context.Context, convID string, tc *store.ToolCall) (string, error) {
	if err := s.wait(ctx); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["AppendToolCall"]++
	if err := s.exists(convID); err != nil {
		return "", err
	}
	if s.failToolCalls > 0 {
		s.failToolCalls--
		return "", ErrInjected
	}
	cp := *tc
	cp.ID = s.nextID("tool")
	cp.ConversationID = convID
	s.toolCalls[convID] = append(s.toolCalls[convID], &cp)
	return cp.ID, nil
}

func (s *Store) ListToolCalls(_ context.Context, convID string) ([]*store.ToolCall, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.exists(convID); err != nil {
		return nil, err
	}
	out := make([]*store.ToolCall, 0, len(s.toolCalls[convID]))
	for _, tc := range s.toolCalls[convID] {
		cp := *tc
		out = append(out, &cp)
	}
	return out, nil
}

// Messages returns the persisted messages of a conversation with the given
// role, or all roles when role is empty.
func (s *Store) Messages(convID, role string) []*store.Message {
	msgs, _ := s.ListMessages(context.Background(), convID)
	if role == "" {
		return msgs
	}
	var out []*store.Message
	for _, m := range msgs {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

var _ store.Store = (*Store)(nil)
