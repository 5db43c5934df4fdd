// Package store is the engine's port to the durable conversation store.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is matched by errors for a conversation the store does not
// hold.
var ErrNotFound = errors.New("conversation not found")

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation is owned by the store; the engine references it by ID.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is a persisted chat message.
type Message struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversation_id"`
	Role           string            `json:"role"`
	Content        string            `json:"content"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
}

// ToolCall is a persisted tool-call record.
type ToolCall struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	MessageID      string         `json:"message_id"`
	ToolName       string         `json:"tool_name"`
	ToolIndex      int            `json:"tool_index"`
	Args           map[string]any `json:"args,omitempty"`
	Result         any            `json:"result,omitempty"`
	Status         string         `json:"status"`
	Error          string         `json:"error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

// Store is the conversation store as consumed by the engine.
type Store interface {
	CreateConversation(ctx context.Context, title string) (*Conversation, error)
	ListConversations(ctx context.Context) ([]*Conversation, error)
	DeleteConversation(ctx context.Context, conversationID string) error

	// AppendMessage persists msg and returns the assigned message ID.
	AppendMessage(ctx context.Context, conversationID string, msg *Message) (string, error)
	ListMessages(ctx context.Context, conversationID string) ([]*Message, error)

	// AppendToolCall persists tc and returns the assigned record ID.
	AppendToolCall(ctx context.Context, conversationID string, tc *ToolCall) (string, error)
	ListToolCalls(ctx context.Context, conversationID string) ([]*ToolCall, error)
}
