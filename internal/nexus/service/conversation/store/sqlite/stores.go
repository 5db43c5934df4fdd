package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/fintellect/nexus/internal/nexus/service/conversation/domain/entity"
	"github.com/fintellect/nexus/internal/nexus/service/conversation/pkg/errno"
	"github.com/fintellect/nexus/pkg/utils/json"
)

// ConversationStore implements the ConversationRepository interface using SQLite.
type ConversationStore struct {
	db *sql.DB
}

// NewConversationStore creates a new ConversationStore instance.
func NewConversationStore(d *DB) *ConversationStore {
	return &ConversationStore{db: d.db}
}

func (s *ConversationStore) Create(ctx context.Context, conv *entity.Conversation) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO `+TableConversations+` (id, title, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		conv.ID, conv.Title, conv.CreatedAt.UnixNano(), conv.UpdatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (s *ConversationStore) Get(ctx context.Context, id string) (*entity.Conversation, error) {
	var (
		conv               entity.Conversation
		created, updatedAt int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, created_at, updated_at FROM `+TableConversations+` WHERE id = ?`, id).
		Scan(&conv.ID, &conv.Title, &created, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errno.ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query conversation %q: %w", id, err)
	}
	conv.CreatedAt = time.Unix(0, created)
	conv.UpdatedAt = time.Unix(0, updatedAt)
	return &conv, nil
}

func (s *ConversationStore) List(ctx context.Context) (convs []*entity.Conversation, err error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, created_at, updated_at FROM `+TableConversations+` ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			conv               entity.Conversation
			created, updatedAt int64
		)
		if err := rows.Scan(&conv.ID, &conv.Title, &created, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		conv.CreatedAt = time.Unix(0, created)
		conv.UpdatedAt = time.Unix(0, updatedAt)
		convs = append(convs, &conv)
	}
	return convs, rows.Err()
}

func (s *ConversationStore) Touch(ctx context.Context, id string, at time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE `+TableConversations+` SET updated_at = ? WHERE id = ?`, at.UnixNano(), id)
	if err != nil {
		return fmt.Errorf("touch conversation: %w", err)
	}
	return expectOne(res)
}

func (s *ConversationStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM `+TableConversations+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete conversation: %w", err)
	}
	return expectOne(res)
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errno.ErrConversationNotFound
	}
	return nil
}

// MessageStore implements the MessageRepository interface using SQLite.
type MessageStore struct {
	db *sql.DB
}

// NewMessageStore creates a new MessageStore instance.
func NewMessageStore(d *DB) *MessageStore {
	return &MessageStore{db: d.db}
}

func (s *MessageStore) Append(ctx context.Context, msg *entity.Message) error {
	meta, err := json.Marshal(msg.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO `+TableMessages+` (id, conversation_id, role, content, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		msg.ID, msg.ConversationID, msg.Role, msg.Content, string(meta), msg.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *MessageStore) ListByConversation(ctx context.Context, conversationID string) ([]*entity.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, role, content, metadata, created_at FROM `+TableMessages+
			` WHERE conversation_id = ? ORDER BY seq`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]*entity.Message, 0)
	for rows.Next() {
		var (
			msg     entity.Message
			meta    string
			created int64
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.Role, &msg.Content, &meta, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if meta != "" && meta != "null" {
			if err := json.Unmarshal([]byte(meta), &msg.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		msg.CreatedAt = time.Unix(0, created)
		msgs = append(msgs, &msg)
	}
	return msgs, rows.Err()
}

func (s *MessageStore) DeleteByConversation(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM `+TableMessages+` WHERE conversation_id = ?`, conversationID)
	return err
}

// ToolCallStore implements the ToolCallRepository interface using SQLite.
type ToolCallStore struct {
	db *sql.DB
}

// NewToolCallStore creates a new ToolCallStore instance.
func NewToolCallStore(d *DB) *ToolCallStore {
	return &ToolCallStore{db: d.db}
}

func (s *ToolCallStore) Append(ctx context.Context, tc *entity.ToolCall) error {
	args, err := json.Marshal(tc.Args)
	if err != nil {
		return fmt.Errorf("marshal args: %w", err)
	}
	result, err := json.Marshal(tc.Result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO `+TableToolCalls+` (id, conversation_id, message_id, tool_name, tool_index, args, result, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tc.ID, tc.ConversationID, tc.MessageID, tc.ToolName, tc.ToolIndex,
		string(args), string(result), tc.Status, tc.Error, tc.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert tool call: %w", err)
	}
	return nil
}

func (s *ToolCallStore) ListByConversation(ctx context.Context, conversationID string) ([]*entity.ToolCall, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, message_id, tool_name, tool_index, args, result, status, error, created_at FROM `+
			TableToolCalls+` WHERE conversation_id = ? ORDER BY seq`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query tool calls: %w", err)
	}
	defer rows.Close()

	out := make([]*entity.ToolCall, 0)
	for rows.Next() {
		var (
			tc           entity.ToolCall
			args, result string
			created      int64
		)
		if err := rows.Scan(&tc.ID, &tc.ConversationID, &tc.MessageID, &tc.ToolName, &tc.ToolIndex,
			&args, &result, &tc.Status, &tc.Error, &created); err != nil {
			return nil, fmt.Errorf("scan tool call: %w", err)
		}
		if args != "" && args != "null" {
			if err := json.Unmarshal([]byte(args), &tc.Args); err != nil {
				return nil, fmt.Errorf("unmarshal args: %w", err)
			}
		}
		if result != "" && result != "null" {
			if err := json.Unmarshal([]byte(result), &tc.Result); err != nil {
				return nil, fmt.Errorf("unmarshal result: %w", err)
			}
		}
		tc.CreatedAt = time.Unix(0, created)
		out = append(out, &tc)
	}
	return out, rows.Err()
}

func (s *ToolCallStore) DeleteByConversation(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM `+TableToolCalls+` WHERE conversation_id = ?`, conversationID)
	return err
}
