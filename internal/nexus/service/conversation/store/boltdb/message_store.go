package boltdb

import (
	"context"
	"fmt"

	"github.com/boltdb/bolt"
	"github.com/fintellect/nexus/internal/nexus/service/conversation/domain/entity"
	"github.com/fintellect/nexus/pkg/utils/json"
)

// MessageStore implements the MessageRepository interface using BoltDB.
type MessageStore struct {
	boltDB *bolt.DB
}

// NewMessageStore creates a new MessageStore instance.
func NewMessageStore(boltDB *DB) *MessageStore {
	return &MessageStore{boltDB: boltDB.Bolt()}
}

func (s *MessageStore) Append(_ context.Context, msg *entity.Message) error {
	return s.boltDB.Update(func(tx *bolt.Tx) error {
		return appendChild(tx.Bucket(bucketMessages), msg.ConversationID, msg)
	})
}

func (s *MessageStore) ListByConversation(_ context.Context, conversationID string) ([]*entity.Message, error) {
	msgs := make([]*entity.Message, 0)
	err := s.boltDB.View(func(tx *bolt.Tx) error {
		return forEachChild(tx.Bucket(bucketMessages), conversationID, func(_, v []byte) error {
			var msg entity.Message
			if err := json.Unmarshal(v, &msg); err != nil {
				return fmt.Errorf("failed to unmarshal message: %w", err)
			}
			msgs = append(msgs, &msg)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list messages of %q: %w", conversationID, err)
	}
	return msgs, nil
}

func (s *MessageStore) DeleteByConversation(_ context.Context, conversationID string) error {
	return s.boltDB.Update(func(tx *bolt.Tx) error {
		return deleteChildren(tx.Bucket(bucketMessages), conversationID)
	})
}

// ToolCallStore implements the ToolCallRepository interface using BoltDB.
type ToolCallStore struct {
	boltDB *bolt.DB
}

// NewToolCallStore creates a new ToolCallStore instance.
func NewToolCallStore(boltDB *DB) *ToolCallStore {
	return &ToolCallStore{boltDB: boltDB.Bolt()}
}

func (s *ToolCallStore) Append(_ context.Context, tc *entity.ToolCall) error {
	return s.boltDB.Update(func(tx *bolt.Tx) error {
		return appendChild(tx.Bucket(bucketToolCalls), tc.ConversationID, tc)
	})
}

func (s *ToolCallStore) ListByConversation(_ context.Context, conversationID string) ([]*entity.ToolCall, error) {
	out := make([]*entity.ToolCall, 0)
	err := s.boltDB.View(func(tx *bolt.Tx) error {
		return forEachChild(tx.Bucket(bucketToolCalls), conversationID, func(_, v []byte) error {
			var tc entity.ToolCall
			if err := json.Unmarshal(v, &tc); err != nil {
				return fmt.Errorf("failed to unmarshal tool call: %w", err)
			}
			out = append(out, &tc)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tool calls of %q: %w", conversationID, err)
	}
	return out, nil
}

func (s *ToolCallStore) DeleteByConversation(_ context.Context, conversationID string) error {
	return s.boltDB.Update(func(tx *bolt.Tx) error {
		return deleteChildren(tx.Bucket(bucketToolCalls), conversationID)
	})
}

func appendChild(b *bolt.Bucket, conversationID string, v any) error {
	seq, err := b.NextSequence()
	if err != nil {
		return fmt.Errorf("failed to allocate sequence: %w", err)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	return b.Put(childKey(conversationID, seq), data)
}
