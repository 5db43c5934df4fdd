// Package local adapts the gateway's conversation service to the engine's
// store port, for running the engine in-process without nexusd.
package local

import (
	"context"
	"errors"
	"fmt"

	"github.com/fintellect/nexus/internal/agentstream/store"
	"github.com/fintellect/nexus/internal/nexus/service/conversation/domain/entity"
	"github.com/fintellect/nexus/internal/nexus/service/conversation/domain/service"
	"github.com/fintellect/nexus/internal/nexus/service/conversation/pkg/errno"
	"github.com/jinzhu/copier"
)

// Store implements store.Store over a ConversationService.
type Store struct {
	svc service.ConversationService
}

// New wraps svc.
func New(svc service.ConversationService) *Store {
	return &Store{svc: svc}
}

func mapErr(err error) error {
	if errors.Is(err, errno.ErrConversationNotFound) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}
	return err
}

func (s *Store) CreateConversation(ctx context.Context, title string) (*store.Conversation, error) {
	conv, err := s.svc.CreateConversation(ctx, title)
	if err != nil {
		return nil, err
	}
	var out store.Conversation
	if err := copier.Copy(&out, conv); err != nil {
		return nil, fmt.Errorf("copy conversation: %w", err)
	}
	return &out, nil
}

func (s *Store) ListConversations(ctx context.Context) ([]*store.Conversation, error) {
	convs, err := s.svc.ListConversations(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*store.Conversation, 0, len(convs))
	for _, c := range convs {
		var dst store.Conversation
		if err := copier.Copy(&dst, c); err != nil {
			return nil, fmt.Errorf("copy conversation: %w", err)
		}
		out = append(out, &dst)
	}
	return out, nil
}

func (s *Store) DeleteConversation(ctx context.Context, conversationID string) error {
	return mapErr(s.svc.DeleteConversation(ctx, conversationID))
}

func (s *Store) AppendMessage(ctx context.Context, conversationID string, msg *store.Message) (string, error) {
	var in entity.Message
	if err := copier.Copy(&in, msg); err != nil {
		return "", fmt.Errorf("copy message: %w", err)
	}
	saved, err := s.svc.AppendMessage(ctx, conversationID, &in)
	if err != nil {
		return "", mapErr(err)
	}
	return saved.ID, nil
}

func (s *Store) ListMessages(ctx context.Context, conversationID string) ([]*store.Message, error) {
	msgs, err := s.svc.ListMessages(ctx, conversationID)
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]*store.Message, 0, len(msgs))
	for _, m := range msgs {
		var dst store.Message
		if err := copier.Copy(&dst, m); err != nil {
			return nil, fmt.Errorf("copy message: %w", err)
		}
		out = append(out, &dst)
	}
	return out, nil
}

func (s *Store) AppendToolCall(ctx context.Context, conversationID string, tc *store.ToolCall) (string, error) {
	var in entity.ToolCall
	if err := copier.Copy(&in, tc); err != nil {
		return "", fmt.Errorf("copy tool call: %w", err)
	}
	saved, err := s.svc.AppendToolCall(ctx, conversationID, &in)
	if err != nil {
		return "", mapErr(err)
	}
	return saved.ID, nil
}

func (s *Store) ListToolCalls(ctx context.Context, conversationID string) ([]*store.ToolCall, error) {
	calls, err := s.svc.ListToolCalls(ctx, conversationID)
	if err != nil {
		return nil, mapErr(err)
	}
	out := make([]*store.ToolCall, 0, len(calls))
	for _, c := range calls {
		var dst store.ToolCall
		if err := copier.Copy(&dst, c); err != nil {
			return nil, fmt.Errorf("copy tool call: %w", err)
		}
		out = append(out, &dst)
	}
	return out, nil
}

var _ store.Store = (*Store)(nil)
