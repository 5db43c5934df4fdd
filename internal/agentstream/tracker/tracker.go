// Package tracker keeps the active tool call and the ordered ledger of tool
// call records for one conversation view.
package tracker

import (
	"sync"
	"time"

	"github.com/bytedance/gg/gptr"
	"github.com/fintellect/nexus/internal/agentstream/event"
	"github.com/fintellect/nexus/internal/agentstream/toolcall"
	"github.com/fintellect/nexus/pkg/logger"
	"github.com/google/uuid"
)

const moduleName = "agentstream.tracker"

// Tracker is safe for concurrent use; the event pump writes while the UI
// reads snapshots.
type Tracker struct {
	mu     sync.RWMutex
	ledger []toolcall.Record
	// active indexes into ledger, -1 when no call is executing.
	active int
	seq    int

	now func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// New returns an empty tracker.
func New(opts ...Option) *Tracker {
	t := &Tracker{active: -1, now: time.Now}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Load seeds the ledger with records persisted by earlier sessions.
func (t *Tracker) Load(records []toolcall.Record) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range records {
		r.Seq = t.seq
		t.seq++
		t.ledger = append(t.ledger, r)
	}
}

// OnToolStarted appends a provisional record and makes it the active call,
// replacing any previous active call.
func (t *Tracker) OnToolStarted(messageID string, tool *event.ToolPayload) toolcall.Record {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec := toolcall.Record{
		ID:        uuid.NewString(),
		MessageID: messageID,
		ToolName:  tool.Name,
		ToolIndex: tool.Index,
		Args:      tool.Args,
		Status:    event.ToolPending,
		Content:   toolcall.Summarize(tool.Name, tool.Args, nil, ""),
		Timestamp: t.now(),
		Seq:       t.seq,
	}
	t.seq++
	t.ledger = append(t.ledger, rec)
	t.active = len(t.ledger) - 1

	logger.DebugX(moduleName, "[ToolTracker] tool started", "tool", tool.Name, "index", tool.Index, "message", messageID)
	return rec
}

// OnToolCompleted finalizes the provisional record with the same message id
// and tool index. Without one, a finalized record is synthesized. The active
// call is cleared either way. synthesized reports which path was taken.
func (t *Tracker) OnToolCompleted(messageID string, tool *event.ToolPayload) (rec toolcall.Record, synthesized bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	defer func() { t.active = -1 }()

	now := t.now()
	i := t.findProvisional(messageID, tool.Index)
	if i < 0 {
		synthesized = true
		t.ledger = append(t.ledger, toolcall.Record{
			ID:        uuid.NewString(),
			MessageID: messageID,
			ToolName:  tool.Name,
			ToolIndex: tool.Index,
			Args:      tool.Args,
			Timestamp: now,
			Seq:       t.seq,
		})
		t.seq++
		i = len(t.ledger) - 1
		logger.DebugX(moduleName, "[ToolTracker] completion without start, synthesized record",
			"tool", tool.Name, "index", tool.Index, "message", messageID)
	}

	r := &t.ledger[i]
	if tool.Name != "" {
		r.ToolName = tool.Name
	}
	if len(tool.Args) > 0 {
		r.Args = tool.Args
	}
	r.Result = tool.Result
	r.Error = tool.Error
	r.Status = tool.Status
	if r.Status == "" || r.Status == event.ToolPending {
		r.Status = event.ToolSuccess
	}
	r.Success = r.Status == event.ToolSuccess
	r.Content = toolcall.Summarize(r.ToolName, r.Args, r.Result, r.Error)
	r.CompletedAt = gptr.Of(now)

	return *r, synthesized
}

func (t *Tracker) findProvisional(messageID string, index int) int {
	for i := len(t.ledger) - 1; i >= 0; i-- {
		r := &t.ledger[i]
		if r.Provisional() && r.MessageID == messageID && r.ToolIndex == index {
			return i
		}
	}
	return -1
}

// Active returns a copy of the executing call, or nil.
func (t *Tracker) Active() *toolcall.Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.active < 0 {
		return nil
	}
	out := t.ledger[t.active].Clone()
	return &out
}

// Ledger returns a deep copy of every record in arrival order.
func (t *Tracker) Ledger() []toolcall.Record {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]toolcall.Record, len(t.ledger))
	for i := range t.ledger {
		out[i] = t.ledger[i].Clone()
	}
	return out
}

// Len returns the number of ledger records.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.ledger)
}
