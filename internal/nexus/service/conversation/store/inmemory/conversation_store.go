package inmemory

import (
	"context"
	"sync"
	"time"

	"github.com/fintellect/nexus/internal/nexus/service/conversation/domain/entity"
	"github.com/fintellect/nexus/internal/nexus/service/conversation/pkg/errno"
)

// ConversationStore is an in-memory implementation of the ConversationRepository interface.
type ConversationStore struct {
	mu            sync.RWMutex
	conversations map[string]*entity.Conversation
}

// NewConversationStore creates a new instance of the ConversationStore.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		conversations: make(map[string]*entity.Conversation),
	}
}

func (s *ConversationStore) Create(_ context.Context, conv *entity.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *conv
	s.conversations[conv.ID] = &cp
	return nil
}

func (s *ConversationStore) Get(_ context.Context, id string) (*entity.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, errno.ErrConversationNotFound
	}
	cp := *conv
	return &cp, nil
}

func (s *ConversationStore) List(_ context.Context) ([]*entity.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	convs := make([]*entity.Conversation, 0, len(s.conversations))
	for _, conv := range s.conversations {
		cp := *conv
		convs = append(convs, &cp)
	}
	return convs, nil
}

func (s *ConversationStore) Touch(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return errno.ErrConversationNotFound
	}
	conv.UpdatedAt = at
	return nil
}

func (s *ConversationStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		return errno.ErrConversationNotFound
	}
	delete(s.conversations, id)
	return nil
}
