// Package turn drives one user-message to assistant-response exchange: the
// lifecycle state machine, the streamed text accumulator, tool-call tracking
// and the at-most-once commit of the assistant message.
package turn

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fintellect/nexus/internal/agentstream/errno"
	"github.com/fintellect/nexus/internal/agentstream/event"
	"github.com/fintellect/nexus/internal/agentstream/toolcall"
	"github.com/fintellect/nexus/internal/agentstream/tracker"
	"github.com/fintellect/nexus/pkg/logger"
	"github.com/google/uuid"
)

// Hooks observe a turn. They run on the goroutine that fed the event, after
// the turn's lock is released, so they may read the turn.
type Hooks struct {
	OnStateChange   func(turnID string, from, to event.Status)
	OnDelta         func(turnID, delta string)
	OnToolStarted   func(rec toolcall.Record)
	OnToolCompleted func(rec toolcall.Record)
	OnInfo          func(ev event.StreamEvent)
}

// Config carries the collaborators of a turn. Tracker and Reconciler belong
// to the conversation view and outlive the turn.
type Config struct {
	ConversationID string
	Tracker        *tracker.Tracker
	Reconciler     *Reconciler
	Notifier       Notifier
	Hooks          Hooks
	// InlineTools enables detection of XML tool blocks in streamed text.
	InlineTools bool
	InlineTags  []string
	Now         func() time.Time
}

// Turn is constructed fresh for every submission; all of its latches start
// released, so nothing carries over from a previous turn.
type Turn struct {
	id             string
	conversationID string
	tracker        *tracker.Tracker
	reconciler     *Reconciler
	notifier       Notifier
	hooks          Hooks
	now            func() time.Time

	mu            sync.Mutex
	sm            *StateMachine
	text          strings.Builder
	correlationID string
	placeholder   bool
	messageID     string
	lastError     *event.ErrorPayload

	scanner     *event.InlineToolScanner
	inlineIndex int
}

// New creates an idle turn.
func New(cfg Config) *Turn {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Notifier == nil {
		cfg.Notifier = nopNotifier{}
	}
	if cfg.Tracker == nil {
		cfg.Tracker = tracker.New()
	}
	id := uuid.NewString()
	t := &Turn{
		id:             id,
		conversationID: cfg.ConversationID,
		tracker:        cfg.Tracker,
		reconciler:     cfg.Reconciler,
		notifier:       cfg.Notifier,
		hooks:          cfg.Hooks,
		now:            cfg.Now,
		sm:             NewStateMachine(id, cfg.Now),
	}
	if cfg.InlineTools {
		t.scanner = event.NewInlineToolScanner(cfg.InlineTags...)
	}
	return t
}

// ID is the turn identifier.
func (t *Turn) ID() string { return t.id }

// CorrelationID is assigned on the first transition into streaming; empty
// before that.
func (t *Turn) CorrelationID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.correlationID
}

// State returns the lifecycle state.
func (t *Turn) State() event.Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sm.State()
}

// Live reports whether the turn has started and not yet terminated.
func (t *Turn) Live() bool {
	s := t.State()
	return s != event.StatusIdle && !s.IsTerminal()
}

// Text returns the raw concatenation of every text delta received.
func (t *Turn) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.text.String()
}

// LastError returns the backend error that ended the turn, if any.
func (t *Turn) LastError() *event.ErrorPayload {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.lastError
}

// History returns the transitions taken so far.
func (t *Turn) History() []Transition {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sm.History()
}

// Begin persists the user's message and moves the turn to connecting. A
// persistence failure leaves the turn idle.
func (t *Turn) Begin(ctx context.Context, userText string) error {
	if t.reconciler != nil {
		if _, err := t.reconciler.PersistUserMessage(ctx, t.id, userText); err != nil {
			t.notifier.Notify(NotificationFor(t.id, err))
			return err
		}
	}
	var effects []func()
	t.mu.Lock()
	t.transition(event.StatusConnecting, &effects)
	t.mu.Unlock()
	run(effects)
	return nil
}

// Handle applies one parsed event. Events must be fed in arrival order.
func (t *Turn) Handle(ev event.StreamEvent) {
	var effects []func()
	t.mu.Lock()
	t.handle(ev, &effects)
	t.mu.Unlock()
	run(effects)
}

// Fail moves the turn to error because of a channel-level failure.
func (t *Turn) Fail(err error) {
	var effects []func()
	t.mu.Lock()
	if t.sm.State().IsTerminal() {
		t.mu.Unlock()
		logger.DebugX(moduleName, "[Turn] failure after terminal state ignored", "turn", t.id, "err", err)
		return
	}
	t.lastError = &event.ErrorPayload{Message: err.Error()}
	t.transition(event.StatusError, &effects)
	t.mu.Unlock()

	t.notifier.Notify(NotificationFor(t.id, err))
	run(effects)
}

// Reset returns a terminated turn to idle.
func (t *Turn) Reset() error {
	var effects []func()
	t.mu.Lock()
	from := t.sm.State()
	err := t.sm.TransitionTo(event.StatusIdle)
	if err == nil {
		t.stateEffect(from, event.StatusIdle, &effects)
	}
	t.mu.Unlock()
	run(effects)
	return err
}

func (t *Turn) handle(ev event.StreamEvent, effects *[]func()) {
	if ev.MessageID != "" && t.messageID == "" {
		t.messageID = ev.MessageID
	}
	state := t.sm.State()

	switch ev.Kind {
	case event.KindToolStarted, event.KindToolCompleted:
		if ev.Tool == nil {
			logger.WarnX(moduleName, "[Turn] tool event without payload dropped", "turn", t.id, "kind", ev.Kind)
			return
		}
	case event.KindError:
		if ev.Error == nil {
			ev.Error = &event.ErrorPayload{Message: "agent reported an error"}
		}
	}

	switch ev.Kind {
	case event.KindConnected:
		if state == event.StatusConnecting {
			t.ensureStreaming(effects)
		}

	case event.KindTextDelta:
		if state.IsTerminal() || state == event.StatusIdle {
			logger.DebugX(moduleName, "[Turn] late text delta dropped", "turn", t.id, "state", state)
			return
		}
		t.ensureStreaming(effects)
		t.text.WriteString(ev.Delta)
		if t.reconciler != nil {
			t.reconciler.UpdatePlaceholder(t.text.String())
		}
		if h := t.hooks.OnDelta; h != nil && ev.Delta != "" {
			id, d := t.id, ev.Delta
			*effects = append(*effects, func() { h(id, d) })
		}
		if t.scanner != nil {
			for _, call := range t.scanner.Feed(ev.Delta) {
				t.applyInline(call, effects)
			}
		}

	case event.KindToolStarted:
		if state.IsTerminal() || state == event.StatusIdle {
			logger.DebugX(moduleName, "[Turn] tool start outside live turn dropped", "turn", t.id, "tool", ev.Tool.Name)
			return
		}
		t.ensureStreaming(effects)
		if t.sm.State() == event.StatusStreaming {
			t.transition(event.StatusProcessingTool, effects)
		}
		rec := t.tracker.OnToolStarted(t.toolMessageID(ev.MessageID), ev.Tool)
		if h := t.hooks.OnToolStarted; h != nil {
			*effects = append(*effects, func() { h(rec) })
		}

	case event.KindToolCompleted:
		// Completions are recorded even after the turn ended; they still
		// belong in the conversation ledger.
		if state == event.StatusConnecting {
			t.ensureStreaming(effects)
		}
		rec, _ := t.tracker.OnToolCompleted(t.toolMessageID(ev.MessageID), ev.Tool)
		if t.sm.State() == event.StatusProcessingTool {
			t.transition(event.StatusStreaming, effects)
		}
		t.completedToolEffects(rec, effects)

	case event.KindStatusChange:
		t.applyStatus(ev.Status, effects)

	case event.KindDone:
		t.complete(ev.Content, effects)

	case event.KindError:
		if state.IsTerminal() {
			logger.WarnX(moduleName, "[Turn] error after terminal state ignored", "turn", t.id, "state", state, "message", ev.Error.Message)
			return
		}
		t.lastError = ev.Error
		t.transition(event.StatusError, effects)
		err := &errno.StreamError{Kind: errno.KindConnection, Code: ev.Error.Code, Message: ev.Error.Message}
		n := NotificationFor(t.id, err)
		n.Title = "Agent error"
		notifier := t.notifier
		*effects = append(*effects, func() { notifier.Notify(n) })

	case event.KindInfo:
		if h := t.hooks.OnInfo; h != nil {
			*effects = append(*effects, func() { h(ev) })
		}
	}
}

func (t *Turn) applyStatus(status event.Status, effects *[]func()) {
	state := t.sm.State()
	switch status {
	case event.StatusCompleted:
		t.complete("", effects)
	case event.StatusError:
		t.handle(event.StreamEvent{Kind: event.KindError, Error: &event.ErrorPayload{Message: "agent reported an error status"}}, effects)
	case event.StatusStreaming:
		switch state {
		case event.StatusConnecting:
			t.ensureStreaming(effects)
		case event.StatusProcessingTool:
			t.transition(event.StatusStreaming, effects)
		}
	case event.StatusProcessingTool:
		if state == event.StatusConnecting {
			t.ensureStreaming(effects)
		}
		if t.sm.State() == event.StatusStreaming {
			t.transition(event.StatusProcessingTool, effects)
		}
	default:
		logger.DebugX(moduleName, "[Turn] status change ignored", "turn", t.id, "state", state, "status", status)
	}
}

// complete handles every terminal "done" signal. Repeated signals reach the
// reconciler, whose latch turns them into no-ops.
func (t *Turn) complete(explicit string, effects *[]func()) {
	state := t.sm.State()
	switch state {
	case event.StatusIdle, event.StatusError:
		logger.WarnX(moduleName, "[Turn] completion ignored", "turn", t.id, "state", state)
		return
	case event.StatusConnecting:
		if strings.TrimSpace(explicit) == "" && t.text.Len() == 0 {
			// Nothing of this turn has arrived; the signal belongs to an earlier one.
			logger.WarnX(moduleName, "[Turn] completion before any content ignored", "turn", t.id)
			return
		}
		t.ensureStreaming(effects)
	}
	if t.sm.State() != event.StatusCompleted {
		t.transition(event.StatusCompleted, effects)
	}
	if t.reconciler != nil {
		t.reconciler.Commit(t.correlationID, explicit, t.text.String())
	}
}

// ensureStreaming moves connecting to streaming and, once per turn, assigns
// the correlation ID and creates the assistant placeholder.
func (t *Turn) ensureStreaming(effects *[]func()) {
	if t.sm.State() == event.StatusConnecting {
		t.transition(event.StatusStreaming, effects)
	}
	if t.placeholder {
		return
	}
	t.placeholder = true
	t.correlationID = uuid.NewString()
	if t.reconciler != nil {
		t.reconciler.CreatePlaceholder(t.correlationID)
	}
}

func (t *Turn) applyInline(call event.InlineToolCall, effects *[]func()) {
	idx := t.inlineIndex
	t.inlineIndex++
	msgID := t.toolMessageID("")

	result := map[string]any{}
	for k, v := range call.Args {
		result[k] = v
	}
	if p, ok := call.Args["file_path"]; ok {
		result["filePath"] = p
	}

	started := t.tracker.OnToolStarted(msgID, &event.ToolPayload{Name: call.Name, Index: idx, Args: call.Args})
	rec, _ := t.tracker.OnToolCompleted(msgID, &event.ToolPayload{Name: call.Name, Index: idx, Result: result, Status: event.ToolSuccess})
	logger.DebugX(moduleName, "[Turn] inline tool block detected", "turn", t.id, "tag", call.Tag, "index", idx)

	if h := t.hooks.OnToolStarted; h != nil {
		*effects = append(*effects, func() { h(started) })
	}
	t.completedToolEffects(rec, effects)
}

func (t *Turn) completedToolEffects(rec toolcall.Record, effects *[]func()) {
	if t.reconciler != nil {
		t.reconciler.PersistToolCall(rec)
	}
	if rec.Status == event.ToolError {
		n := NotificationFor(t.id, errno.ToolExecution(rec.ToolName, rec.Error))
		notifier := t.notifier
		*effects = append(*effects, func() { notifier.Notify(n) })
	}
	if h := t.hooks.OnToolCompleted; h != nil {
		*effects = append(*effects, func() { h(rec) })
	}
}

func (t *Turn) toolMessageID(fromEvent string) string {
	switch {
	case fromEvent != "":
		return fromEvent
	case t.messageID != "":
		return t.messageID
	case t.correlationID != "":
		return t.correlationID
	}
	return t.id
}

func (t *Turn) transition(to event.Status, effects *[]func()) {
	from := t.sm.State()
	if err := t.sm.TransitionTo(to); err != nil {
		logger.WarnX(moduleName, "[Turn] transition rejected", "turn", t.id, "err", err)
		return
	}
	t.stateEffect(from, to, effects)
}

func (t *Turn) stateEffect(from, to event.Status, effects *[]func()) {
	if h := t.hooks.OnStateChange; h != nil {
		id := t.id
		*effects = append(*effects, func() { h(id, from, to) })
	}
}

func run(effects []func()) {
	for _, f := range effects {
		f()
	}
}
