package inmemory

import (
	"context"
	"sync"

	"github.com/fintellect/nexus/internal/nexus/service/conversation/domain/entity"
)

// MessageStore is an in-memory implementation of the MessageRepository interface.
type MessageStore struct {
	mu       sync.RWMutex
	messages map[string][]*entity.Message
}

// NewMessageStore creates a new instance of the MessageStore.
func NewMessageStore() *MessageStore {
	return &MessageStore{
		messages: make(map[string][]*entity.Message),
	}
}

func (s *MessageStore) Append(_ context.Context, msg *entity.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *msg
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], &cp)
	return nil
}

func (s *MessageStore) ListByConversation(_ context.Context, conversationID string) ([]*entity.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := make([]*entity.Message, 0, len(s.messages[conversationID]))
	for _, m := range s.messages[conversationID] {
		cp := *m
		msgs = append(msgs, &cp)
	}
	return msgs, nil
}

func (s *MessageStore) DeleteByConversation(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, conversationID)
	return nil
}

// ToolCallStore is an in-memory implementation of the ToolCallRepository interface.
type ToolCallStore struct {
	mu        sync.RWMutex
	toolCalls map[string][]*entity.ToolCall
}

// NewToolCallStore creates a new instance of the ToolCallStore.
func NewToolCallStore() *ToolCallStore {
	return &ToolCallStore{
		toolCalls: make(map[string][]*entity.ToolCall),
	}
}

func (s *ToolCallStore) Append(_ context.Context, tc *entity.ToolCall) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *tc
	s.toolCalls[tc.ConversationID] = append(s.toolCalls[tc.ConversationID], &cp)
	return nil
}

func (s *ToolCallStore) ListByConversation(_ context.Context, conversationID string) ([]*entity.ToolCall, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*entity.ToolCall, 0, len(s.toolCalls[conversationID]))
	for _, tc := range s.toolCalls[conversationID] {
		cp := *tc
		out = append(out, &cp)
	}
	return out, nil
}

func (s *ToolCallStore) DeleteByConversation(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.toolCalls, conversationID)
	return nil
}
