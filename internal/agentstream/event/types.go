// Package event turns raw push-stream payloads into typed StreamEvents.
package event

import "time"

// Kind discriminates StreamEvent payloads.
type Kind string

const (
	KindConnected     Kind = "connected"
	KindTextDelta     Kind = "text_delta"
	KindToolStarted   Kind = "tool_started"
	KindToolCompleted Kind = "tool_completed"
	KindStatusChange  Kind = "status_change"
	KindDone          Kind = "done"
	KindError         Kind = "error"
	// KindInfo covers heartbeats and event kinds this client does not know.
	KindInfo Kind = "info"
)

// Status is a turn lifecycle state as carried by status-change events.
type Status string

const (
	StatusIdle           Status = "idle"
	StatusConnecting     Status = "connecting"
	StatusStreaming      Status = "streaming"
	StatusProcessingTool Status = "processing-tool"
	StatusCompleted      Status = "completed"
	StatusError          Status = "error"
)

// IsTerminal reports whether no further transitions happen without a reset.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

// ToolStatus is the outcome of a tool invocation.
type ToolStatus string

const (
	ToolPending ToolStatus = "pending"
	ToolSuccess ToolStatus = "success"
	ToolError   ToolStatus = "error"
)

// StreamEvent is one normalized event from the push channel.
type StreamEvent struct {
	Kind Kind `json:"kind"`

	// Type is the wire type the event arrived with.
	Type string `json:"type"`

	MessageID string `json:"message_id,omitempty"`

	// TurnID is set when the backend tags the event with the turn it
	// belongs to.
	TurnID string `json:"turn_id,omitempty"`

	// Delta is set for KindTextDelta.
	Delta string `json:"delta,omitempty"`

	// Content is the explicit final content of KindDone, or the message of
	// KindConnected / KindInfo.
	Content string `json:"content,omitempty"`

	// Tool is set for KindToolStarted and KindToolCompleted.
	Tool *ToolPayload `json:"tool,omitempty"`

	// Status is set for KindStatusChange.
	Status Status `json:"status,omitempty"`

	// Error is set for KindError.
	Error *ErrorPayload `json:"error,omitempty"`

	ReceivedAt time.Time `json:"received_at"`
}

// ToolPayload is the tool lifecycle part of a StreamEvent.
type ToolPayload struct {
	Name   string         `json:"name"`
	Index  int            `json:"index"`
	Args   map[string]any `json:"args,omitempty"`
	Result any            `json:"result,omitempty"`
	Status ToolStatus     `json:"status,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// ErrorPayload carries a backend-reported failure.
type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
