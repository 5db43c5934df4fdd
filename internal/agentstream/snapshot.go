package agentstream

import (
	"github.com/fintellect/nexus/internal/agentstream/artifact"
	"github.com/fintellect/nexus/internal/agentstream/event"
	"github.com/fintellect/nexus/internal/agentstream/store"
	"github.com/fintellect/nexus/internal/agentstream/toolcall"
	"github.com/fintellect/nexus/internal/agentstream/turn"
)

// Snapshot is a point-in-time copy of the open conversation's derived state.
type Snapshot struct {
	ConversationID string
	TurnID         string
	CorrelationID  string
	State          event.Status

	// Text is the raw accumulated text of the current turn; DisplayText has
	// tool blocks stripped for rendering.
	Text        string
	DisplayText string

	ActiveTool *toolcall.Record
	// Ledger holds every tool-call record of the conversation in arrival order.
	Ledger []toolcall.Record
	// ToolCalls is the consolidated ledger for display.
	ToolCalls []toolcall.Record
	Artifacts []artifact.Artifact

	Transcript  []store.Message
	Placeholder *turn.Placeholder
	Commit      turn.CommitState
	LastError   *event.ErrorPayload
}
