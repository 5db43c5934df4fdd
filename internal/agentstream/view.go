package agentstream

import (
	"context"
	"fmt"
	"sync"

	"github.com/bytedance/gg/gptr"
	"github.com/fintellect/nexus/internal/agentstream/event"
	"github.com/fintellect/nexus/internal/agentstream/store"
	"github.com/fintellect/nexus/internal/agentstream/toolcall"
	"github.com/fintellect/nexus/internal/agentstream/tracker"
	"github.com/fintellect/nexus/internal/agentstream/turn"
	"github.com/fintellect/nexus/pkg/utils/json"
)

// view is everything the engine holds for the open conversation.
type view struct {
	conversationID string
	tracker        *tracker.Tracker
	reconciler     *turn.Reconciler

	mu         sync.Mutex
	turn       *turn.Turn
	submitting bool
	transcript []store.Message
}

func (v *view) load(ctx context.Context, st store.Store) error {
	calls, err := st.ListToolCalls(ctx, v.conversationID)
	if err != nil {
		return fmt.Errorf("load tool calls: %w", err)
	}
	msgs, err := st.ListMessages(ctx, v.conversationID)
	if err != nil {
		return fmt.Errorf("load messages: %w", err)
	}

	records := make([]toolcall.Record, 0, len(calls))
	for _, c := range calls {
		records = append(records, recordFromStore(c))
	}
	v.tracker.Load(records)

	v.mu.Lock()
	defer v.mu.Unlock()
	for _, m := range msgs {
		v.transcript = append(v.transcript, *m)
	}
	return nil
}

// recordFromStore rebuilds a finalized ledger record from its persisted form.
func recordFromStore(c *store.ToolCall) toolcall.Record {
	status := event.ToolStatus(c.Status)
	if status == "" || status == event.ToolPending {
		status = event.ToolSuccess
	}
	result := c.Result
	// Results persisted as JSON text are decoded so extraction sees structure.
	if s, ok := result.(string); ok && json.Valid([]byte(s)) && len(s) > 0 && (s[0] == '{' || s[0] == '[') {
		var decoded any
		if json.Unmarshal([]byte(s), &decoded) == nil {
			result = decoded
		}
	}
	return toolcall.Record{
		ID:          c.ID,
		MessageID:   c.MessageID,
		ToolName:    c.ToolName,
		ToolIndex:   c.ToolIndex,
		Args:        c.Args,
		Result:      result,
		Status:      status,
		Success:     status == event.ToolSuccess,
		Error:       c.Error,
		Content:     toolcall.Summarize(c.ToolName, c.Args, result, c.Error),
		Timestamp:   c.CreatedAt,
		CompletedAt: gptr.Of(c.CreatedAt),
	}
}

// reserve claims the right to start a turn; false while a turn is live or
// another submission is being set up.
func (v *view) reserve() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.submitting || (v.turn != nil && v.turn.Live()) {
		return false
	}
	v.submitting = true
	return true
}

func (v *view) release() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.submitting = false
}

func (v *view) setTurn(t *turn.Turn) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.turn = t
}

func (v *view) currentTurn() *turn.Turn {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.turn
}

func (v *view) appendTranscript(m store.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.transcript = append(v.transcript, m)
}

func (v *view) transcriptCopy() []store.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]store.Message(nil), v.transcript...)
}
