package agentstream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fintellect/nexus/internal/agentstream/artifact"
	"github.com/fintellect/nexus/internal/agentstream/errno"
	"github.com/fintellect/nexus/internal/agentstream/event"
	"github.com/fintellect/nexus/internal/agentstream/session"
	"github.com/fintellect/nexus/internal/agentstream/store"
	"github.com/fintellect/nexus/internal/agentstream/toolcall"
	"github.com/fintellect/nexus/internal/agentstream/tracker"
	"github.com/fintellect/nexus/internal/agentstream/turn"
	"github.com/fintellect/nexus/pkg/logger"
)

// Engine owns the view of the conversation the user has open. Switching
// conversations replaces the view wholesale; nothing from the previous turn
// leaks into the next one.
type Engine struct {
	cfg      CompletedConfig
	store    store.Store
	sessions *session.Manager
	submit   session.Submitter
	notifier turn.Notifier
	observer Observer

	parser       event.Parser
	extractor    *artifact.Extractor
	consolidator tracker.Consolidator

	base  context.Context
	pumps sync.WaitGroup

	mu      sync.Mutex
	view    *view
	retired []*turn.Reconciler
	closed  bool
}

// New creates the engine. No conversation is open until Switch.
func (c CompletedConfig) New(ctx context.Context, deps Dependencies) (*Engine, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("store dependency is required")
	}
	if deps.Dialer == nil {
		return nil, fmt.Errorf("dialer dependency is required")
	}
	if deps.Submitter == nil {
		return nil, fmt.Errorf("submitter dependency is required")
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = turn.NotifierFunc(func(n turn.Notification) {
			logger.WarnX(moduleName, "[Engine] "+n.Title, "kind", n.Kind, "message", n.Message)
		})
	}

	extractor := artifact.NewExtractor(c.Placeholder)
	e := &Engine{
		cfg:       c,
		store:     deps.Store,
		sessions:  session.NewManager(deps.Dialer),
		submit:    deps.Submitter,
		notifier:  notifier,
		observer:  deps.Observer,
		extractor: extractor,
		consolidator: tracker.Consolidator{
			ResolvePath: extractor.ResolvePath,
			Sentinels:   c.Sentinels,
			NonFileKey:  c.NonFileKey,
		},
		base: context.WithoutCancel(ctx),
	}
	logger.InfoX(moduleName, "[Engine] initialized", "inline_tools", !c.DisableInlineTools,
		"persist_timeout", c.PersistTimeout.String())
	return e, nil
}

// ConversationID returns the open conversation, or "".
func (e *Engine) ConversationID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.view == nil {
		return ""
	}
	return e.view.conversationID
}

// Switch opens conversationID: the current channel is closed, a fresh view
// is built and the conversation's history is loaded. Commits already in
// flight for the previous conversation still complete.
func (e *Engine) Switch(ctx context.Context, conversationID string) error {
	if e.isClosed() {
		return errno.ErrEngineClosed
	}
	v := e.newView(conversationID)
	if err := v.load(ctx, e.store); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", errno.ErrNoConversation, conversationID)
		}
		return err
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return errno.ErrEngineClosed
	}
	old := e.view
	e.view = v
	if old != nil {
		e.retired = append(e.retired, old.reconciler)
	}
	e.mu.Unlock()

	if old != nil {
		if err := e.sessions.Close(old.conversationID); err != nil {
			logger.WarnX(moduleName, "[Engine] close channel failed", "conversation", old.conversationID, "err", err)
		}
	}
	logger.InfoX(moduleName, "[Engine] switched conversation", "conversation", conversationID,
		"messages", len(v.transcriptCopy()), "tool_calls", v.tracker.Len())
	return nil
}

func (e *Engine) newView(conversationID string) *view {
	v := &view{
		conversationID: conversationID,
		tracker:        tracker.New(),
	}
	v.reconciler = turn.NewReconciler(e.base, turn.ReconcilerConfig{
		ConversationID: conversationID,
		Store:          e.store,
		Notifier:       e.notifier,
		PersistTimeout: e.cfg.PersistTimeout,
		OnCommitted: func(res turn.CommitResult) {
			if res.Err == nil {
				v.appendTranscript(store.Message{
					ID:             res.MessageID,
					ConversationID: conversationID,
					Role:           store.RoleAssistant,
					Content:        res.Content,
					Metadata:       map[string]string{"correlation_id": res.CorrelationID},
				})
			}
			if h := e.observer.OnCommitted; h != nil {
				h(conversationID, res)
			}
		},
	})
	return v
}

// Submit starts a turn with the user's text. It fails with
// errno.ErrTurnInProgress while the open conversation has a live turn. The
// user message is persisted before anything is sent to the backend. The
// returned ID identifies the turn.
func (e *Engine) Submit(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errno.ErrEmptySubmission
	}

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return "", errno.ErrEngineClosed
	}
	v := e.view
	if v == nil {
		e.mu.Unlock()
		return "", errno.ErrNoConversation
	}
	if !v.reserve() {
		e.mu.Unlock()
		return "", errno.ErrTurnInProgress
	}
	e.mu.Unlock()
	defer v.release()

	t := e.newTurn(v)
	if err := t.Begin(ctx, text); err != nil {
		return "", err
	}
	v.setTurn(t)
	v.appendTranscript(store.Message{
		ConversationID: v.conversationID,
		Role:           store.RoleUser,
		Content:        text,
		Metadata:       map[string]string{"turn_id": t.ID()},
	})

	ch, err := e.sessions.Reopen(ctx, v.conversationID)
	if err != nil {
		t.Fail(err)
		return t.ID(), err
	}
	e.pumps.Add(1)
	go e.pump(v, t, ch)

	sctx, cancel := context.WithTimeout(ctx, e.cfg.SubmitTimeout)
	defer cancel()
	if err := e.submit.Submit(sctx, v.conversationID, t.ID(), text); err != nil {
		if _, ok := errno.KindOf(err); !ok {
			err = errno.Connection(err, "submit turn")
		}
		t.Fail(err)
		_ = e.sessions.Release(v.conversationID, ch)
		return t.ID(), err
	}
	logger.InfoX(moduleName, "[Engine] turn submitted", "conversation", v.conversationID, "turn", t.ID())
	return t.ID(), nil
}

func (e *Engine) newTurn(v *view) *turn.Turn {
	convID := v.conversationID
	obs := e.observer
	return turn.New(turn.Config{
		ConversationID: convID,
		Tracker:        v.tracker,
		Reconciler:     v.reconciler,
		Notifier:       e.notifier,
		InlineTools:    !e.cfg.DisableInlineTools,
		InlineTags:     e.cfg.InlineTags,
		Hooks: turn.Hooks{
			OnStateChange: func(_ string, from, to event.Status) {
				if obs.OnStateChange != nil {
					obs.OnStateChange(convID, from, to)
				}
			},
			OnDelta: func(_, delta string) {
				if obs.OnDelta != nil {
					obs.OnDelta(convID, delta)
				}
			},
			OnToolStarted: func(rec toolcall.Record) {
				if obs.OnToolStarted != nil {
					obs.OnToolStarted(convID, rec)
				}
			},
			OnToolCompleted: func(rec toolcall.Record) {
				if obs.OnToolCompleted != nil {
					obs.OnToolCompleted(convID, rec)
				}
			},
			OnInfo: func(ev event.StreamEvent) {
				if obs.OnInfo != nil {
					obs.OnInfo(convID, ev)
				}
			},
		},
	})
}

// pump feeds the channel's events, in arrival order, to the turn the channel
// was opened for. The channel is released once that turn terminates, so a
// late or repeated signal can never reach the next turn. Events for a view
// that is no longer open, or tagged with another turn, are dropped.
func (e *Engine) pump(v *view, t *turn.Turn, ch session.Channel) {
	defer e.pumps.Done()

	for f := range ch.Frames() {
		if !e.isCurrent(v) {
			continue
		}
		ev, err := e.parser.Parse(f.Event, f.Data)
		if err != nil {
			logger.WarnX(moduleName, "[Engine] malformed event dropped", "conversation", v.conversationID, "err", err)
			e.notifier.Notify(turn.NotificationFor(t.ID(), err))
			continue
		}
		if ev.TurnID != "" && ev.TurnID != t.ID() {
			logger.DebugX(moduleName, "[Engine] event for another turn dropped", "conversation", v.conversationID,
				"turn", t.ID(), "event_turn", ev.TurnID, "kind", ev.Kind)
			continue
		}
		t.Handle(ev)
		if t.State().IsTerminal() {
			if err := e.sessions.Release(v.conversationID, ch); err != nil {
				logger.WarnX(moduleName, "[Engine] release channel failed", "conversation", v.conversationID, "err", err)
			}
			return
		}
	}

	e.sessions.Forget(v.conversationID, ch)
	err := ch.Err()
	if err == nil || !e.isCurrent(v) {
		return
	}
	if t.Live() {
		t.Fail(err)
		return
	}
	logger.InfoX(moduleName, "[Engine] idle channel ended", "conversation", v.conversationID, "err", err)
}

// Snapshot returns the derived state of the open conversation.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	v := e.view
	e.mu.Unlock()
	if v == nil {
		return Snapshot{State: event.StatusIdle}
	}

	ledger := v.tracker.Ledger()
	snap := Snapshot{
		ConversationID: v.conversationID,
		State:          event.StatusIdle,
		ActiveTool:     v.tracker.Active(),
		Ledger:         ledger,
		ToolCalls:      e.consolidator.Consolidate(ledger),
		Artifacts:      e.extractor.Extract(ledger),
		Transcript:     v.transcriptCopy(),
		Placeholder:    v.reconciler.Placeholder(),
	}
	if t := v.currentTurn(); t != nil {
		snap.TurnID = t.ID()
		snap.CorrelationID = t.CorrelationID()
		snap.State = t.State()
		snap.Text = t.Text()
		snap.DisplayText = artifact.CleanDisplay(snap.Text)
		snap.LastError = t.LastError()
		if snap.CorrelationID != "" {
			snap.Commit = v.reconciler.CommitState(snap.CorrelationID)
		}
	}
	return snap
}

// ListConversations passes through to the store.
func (e *Engine) ListConversations(ctx context.Context) ([]*store.Conversation, error) {
	return e.store.ListConversations(ctx)
}

// NewConversation creates a conversation in the store. It does not switch to it.
func (e *Engine) NewConversation(ctx context.Context, title string) (*store.Conversation, error) {
	return e.store.CreateConversation(ctx, title)
}

// DeleteConversation deletes a conversation; deleting the open one also
// closes the view.
func (e *Engine) DeleteConversation(ctx context.Context, conversationID string) error {
	e.mu.Lock()
	v := e.view
	if v != nil && v.conversationID == conversationID {
		e.view = nil
		e.retired = append(e.retired, v.reconciler)
	} else {
		v = nil
	}
	e.mu.Unlock()
	if v != nil {
		_ = e.sessions.Close(conversationID)
	}
	err := e.store.DeleteConversation(ctx, conversationID)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", errno.ErrNoConversation, conversationID)
	}
	return err
}

// Wait blocks until every outstanding persistence call has resolved.
func (e *Engine) Wait() {
	e.mu.Lock()
	recs := append([]*turn.Reconciler(nil), e.retired...)
	if e.view != nil {
		recs = append(recs, e.view.reconciler)
	}
	e.mu.Unlock()
	for _, r := range recs {
		r.Wait()
	}
}

// Close closes every channel and waits for outstanding persistence calls.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.sessions.CloseAll()
	e.pumps.Wait()
	e.Wait()
	logger.InfoX(moduleName, "[Engine] closed")
	return nil
}

func (e *Engine) isCurrent(v *view) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.view == v
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
