package repo

import (
	"context"
	"time"

	"github.com/fintellect/nexus/internal/nexus/service/conversation/domain/entity"
)

// ConversationRepository defines the persistence interface for Conversation entities.
type ConversationRepository interface {
	// Create stores a new conversation.
	Create(ctx context.Context, conv *entity.Conversation) error
	// Get retrieves a conversation by ID.
	Get(ctx context.Context, id string) (*entity.Conversation, error)
	// List returns every conversation.
	List(ctx context.Context) ([]*entity.Conversation, error)
	// Touch sets the conversation's UpdatedAt.
	Touch(ctx context.Context, id string, at time.Time) error
	// Delete removes a conversation by ID.
	Delete(ctx context.Context, id string) error
}

// MessageRepository defines the persistence interface for Message entities.
// List returns messages in append order.
type MessageRepository interface {
	Append(ctx context.Context, msg *entity.Message) error
	ListByConversation(ctx context.Context, conversationID string) ([]*entity.Message, error)
	DeleteByConversation(ctx context.Context, conversationID string) error
}

// ToolCallRepository defines the persistence interface for ToolCall entities.
// List returns records in append order.
type ToolCallRepository interface {
	Append(ctx context.Context, tc *entity.ToolCall) error
	ListByConversation(ctx context.Context, conversationID string) ([]*entity.ToolCall, error)
	DeleteByConversation(ctx context.Context, conversationID string) error
}
