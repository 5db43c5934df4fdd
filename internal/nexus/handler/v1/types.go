package v1

import (
	"time"

	"github.com/jinzhu/copier"
)

// --- Conversations ---

// CreateConversationRequest is the body of POST /v1/conversations.
type CreateConversationRequest struct {
	Title string `json:"title"`
}

// ConversationResponse is the wire form of a conversation.
type ConversationResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// --- Messages ---

// AppendMessageRequest is the body of POST /v1/conversations/:id/messages.
// ID and CreatedAt are assigned by the store when empty.
type AppendMessageRequest struct {
	ID        string            `json:"id,omitempty"`
	Role      string            `json:"role" binding:"required"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// MessageResponse is the wire form of a message.
type MessageResponse struct {
	ID             string            `json:"id"`
	ConversationID string            `json:"conversation_id"`
	Role           string            `json:"role"`
	Content        string            `json:"content"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	CreatedAt      string            `json:"created_at"`
}

// --- Tool calls ---

// AppendToolCallRequest is the body of POST /v1/conversations/:id/toolcalls.
type AppendToolCallRequest struct {
	ID        string         `json:"id,omitempty"`
	MessageID string         `json:"message_id"`
	ToolName  string         `json:"tool_name"`
	ToolIndex int            `json:"tool_index"`
	Args      map[string]any `json:"args,omitempty"`
	Result    any            `json:"result,omitempty"`
	Status    string         `json:"status"`
	Error     string         `json:"error,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// ToolCallResponse is the wire form of a tool-call record.
type ToolCallResponse struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	MessageID      string         `json:"message_id"`
	ToolName       string         `json:"tool_name"`
	ToolIndex      int            `json:"tool_index"`
	Args           map[string]any `json:"args,omitempty"`
	Result         any            `json:"result,omitempty"`
	Status         string         `json:"status"`
	Error          string         `json:"error,omitempty"`
	CreatedAt      string         `json:"created_at"`
}

// --- Stream ---

// SubmitRequest is the body of POST /v1/conversations/:id/submit.
type SubmitRequest struct {
	TurnID string `json:"turn_id"`
	Text   string `json:"text" binding:"required"`
}

// FormatTime renders timestamps on the wire.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

var timeToString = copier.TypeConverter{
	SrcType: time.Time{},
	DstType: copier.String,
	Fn: func(src any) (any, error) {
		return FormatTime(src.(time.Time)), nil
	},
}

// toResponse copies a domain entity into its wire form.
func toResponse(dst, src any) error {
	return copier.CopyWithOption(dst, src, copier.Option{
		Converters: []copier.TypeConverter{timeToString},
	})
}
