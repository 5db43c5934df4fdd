package service

import (
	"context"

	"github.com/fintellect/nexus/internal/nexus/service/conversation/domain/entity"
)

// ConversationService is the application-level service for conversations,
// their messages and their tool-call records.
type ConversationService interface {
	// --- Conversations ---

	CreateConversation(ctx context.Context, title string) (*entity.Conversation, error)
	GetConversation(ctx context.Context, id string) (*entity.Conversation, error)
	// ListConversations returns conversations, most recently updated first.
	ListConversations(ctx context.Context) ([]*entity.Conversation, error)
	// DeleteConversation removes the conversation with its messages and tool calls.
	DeleteConversation(ctx context.Context, id string) error

	// --- Messages ---

	// AppendMessage assigns an ID and creation time when absent and stores msg.
	AppendMessage(ctx context.Context, conversationID string, msg *entity.Message) (*entity.Message, error)
	ListMessages(ctx context.Context, conversationID string) ([]*entity.Message, error)

	// --- Tool calls ---

	AppendToolCall(ctx context.Context, conversationID string, tc *entity.ToolCall) (*entity.ToolCall, error)
	ListToolCalls(ctx context.Context, conversationID string) ([]*entity.ToolCall, error)
}
