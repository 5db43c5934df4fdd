package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/fintellect/nexus/internal/nexus/service/conversation/domain/entity"
	"github.com/fintellect/nexus/internal/nexus/service/conversation/domain/repo"
	"github.com/fintellect/nexus/internal/nexus/service/conversation/pkg/errno"
	"github.com/fintellect/nexus/pkg/logger"
	"github.com/google/uuid"
)

type conversationServiceImpl struct {
	conversations repo.ConversationRepository
	messages      repo.MessageRepository
	toolCalls     repo.ToolCallRepository
	now           func() time.Time
}

// NewConversationService creates the ConversationService over the given repositories.
func NewConversationService(
	conversations repo.ConversationRepository,
	messages repo.MessageRepository,
	toolCalls repo.ToolCallRepository,
) ConversationService {
	return &conversationServiceImpl{
		conversations: conversations,
		messages:      messages,
		toolCalls:     toolCalls,
		now:           time.Now,
	}
}

func (s *conversationServiceImpl) CreateConversation(ctx context.Context, title string) (*entity.Conversation, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "New conversation"
	}
	now := s.now()
	conv := &entity.Conversation{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.conversations.Create(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	logger.Info("[Conversation] created conversation %s (%q)", conv.ID, conv.Title)
	return conv, nil
}

func (s *conversationServiceImpl) GetConversation(ctx context.Context, id string) (*entity.Conversation, error) {
	return s.conversations.Get(ctx, id)
}

func (s *conversationServiceImpl) ListConversations(ctx context.Context) ([]*entity.Conversation, error) {
	convs, err := s.conversations.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
	return convs, nil
}

func (s *conversationServiceImpl) DeleteConversation(ctx context.Context, id string) error {
	if _, err := s.conversations.Get(ctx, id); err != nil {
		return err
	}
	if err := s.messages.DeleteByConversation(ctx, id); err != nil {
		return fmt.Errorf("delete messages of %s: %w", id, err)
	}
	if err := s.toolCalls.DeleteByConversation(ctx, id); err != nil {
		return fmt.Errorf("delete tool calls of %s: %w", id, err)
	}
	if err := s.conversations.Delete(ctx, id); err != nil {
		return err
	}
	logger.Info("[Conversation] deleted conversation %s", id)
	return nil
}

func (s *conversationServiceImpl) AppendMessage(ctx context.Context, conversationID string, msg *entity.Message) (*entity.Message, error) {
	if !entity.ValidRole(msg.Role) {
		return nil, fmt.Errorf("%w: %q", errno.ErrInvalidRole, msg.Role)
	}
	if _, err := s.conversations.Get(ctx, conversationID); err != nil {
		return nil, err
	}
	out := *msg
	out.ConversationID = conversationID
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	now := s.now()
	if out.CreatedAt.IsZero() {
		out.CreatedAt = now
	}
	if err := s.messages.Append(ctx, &out); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	if err := s.conversations.Touch(ctx, conversationID, now); err != nil {
		logger.Warn("[Conversation] touch %s failed: %v", conversationID, err)
	}
	return &out, nil
}

func (s *conversationServiceImpl) ListMessages(ctx context.Context, conversationID string) ([]*entity.Message, error) {
	if _, err := s.conversations.Get(ctx, conversationID); err != nil {
		return nil, err
	}
	return s.messages.ListByConversation(ctx, conversationID)
}

func (s *conversationServiceImpl) AppendToolCall(ctx context.Context, conversationID string, tc *entity.ToolCall) (*entity.ToolCall, error) {
	if strings.TrimSpace(tc.ToolName) == "" {
		return nil, errno.ErrMissingToolName
	}
	if _, err := s.conversations.Get(ctx, conversationID); err != nil {
		return nil, err
	}
	out := *tc
	out.ConversationID = conversationID
	if out.ID == "" {
		out.ID = uuid.NewString()
	}
	if out.CreatedAt.IsZero() {
		out.CreatedAt = s.now()
	}
	if err := s.toolCalls.Append(ctx, &out); err != nil {
		return nil, fmt.Errorf("append tool call: %w", err)
	}
	return &out, nil
}

func (s *conversationServiceImpl) ListToolCalls(ctx context.Context, conversationID string) ([]*entity.ToolCall, error) {
	if _, err := s.conversations.Get(ctx, conversationID); err != nil {
		return nil, err
	}
	return s.toolCalls.ListByConversation(ctx, conversationID)
}
