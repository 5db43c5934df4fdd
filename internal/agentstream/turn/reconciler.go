package turn

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fintellect/nexus/internal/agentstream/errno"
	"github.com/fintellect/nexus/internal/agentstream/store"
	"github.com/fintellect/nexus/internal/agentstream/toolcall"
	"github.com/fintellect/nexus/pkg/logger"
)

const moduleName = "agentstream.turn"

// Placeholder is the locally held, not yet persisted assistant message.
type Placeholder struct {
	CorrelationID string
	Content       string
	CreatedAt     time.Time
}

// CommitResult reports the outcome of an assistant-message commit.
type CommitResult struct {
	CorrelationID string
	MessageID     string
	Content       string
	Err           error
}

// Reconciler bridges streamed turn state to the conversation store. The
// assistant message of a turn is committed at most once per correlation ID;
// tool-call records at most once per message and tool index.
type Reconciler struct {
	conversationID string
	store          store.Store
	notifier       Notifier
	timeout        time.Duration
	onCommitted    func(CommitResult)

	// base outlives individual turns so a commit survives a conversation
	// switch.
	base  context.Context
	latch *CommitLatch
	wg    sync.WaitGroup

	mu          sync.Mutex
	placeholder *Placeholder
	// known holds the last non-empty content seen per correlation ID.
	known map[string]string
}

// ReconcilerConfig configures a Reconciler.
type ReconcilerConfig struct {
	ConversationID string
	Store          store.Store
	Notifier       Notifier
	// PersistTimeout bounds each store call; zero means 30s.
	PersistTimeout time.Duration
	OnCommitted    func(CommitResult)
}

// NewReconciler builds a reconciler for one conversation view.
func NewReconciler(ctx context.Context, cfg ReconcilerConfig) *Reconciler {
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = 30 * time.Second
	}
	if cfg.Notifier == nil {
		cfg.Notifier = nopNotifier{}
	}
	return &Reconciler{
		conversationID: cfg.ConversationID,
		store:          cfg.Store,
		notifier:       cfg.Notifier,
		timeout:        cfg.PersistTimeout,
		onCommitted:    cfg.OnCommitted,
		base:           context.WithoutCancel(ctx),
		latch:          NewCommitLatch(),
		known:          map[string]string{},
	}
}

// PersistUserMessage writes the user's message synchronously so the input is
// durable before the turn proceeds.
func (r *Reconciler) PersistUserMessage(ctx context.Context, turnID, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	id, err := r.store.AppendMessage(ctx, r.conversationID, &store.Message{
		ConversationID: r.conversationID,
		Role:           store.RoleUser,
		Content:        text,
		Metadata:       map[string]string{"turn_id": turnID},
		CreatedAt:      time.Now(),
	})
	if err != nil {
		perr := errno.Persistence(err, "save user message")
		logger.ErrorX(moduleName, "[Reconciler] user message not saved", "conversation", r.conversationID, "err", err)
		return "", perr
	}
	return id, nil
}

// CreatePlaceholder sets up the local assistant placeholder for a turn. A
// placeholder for a correlation ID seen before starts from its last known
// content; creating the current placeholder again keeps it as is.
func (r *Reconciler) CreatePlaceholder(correlationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.placeholder != nil && r.placeholder.CorrelationID == correlationID {
		return
	}
	r.placeholder = &Placeholder{
		CorrelationID: correlationID,
		Content:       r.known[correlationID],
		CreatedAt:     time.Now(),
	}
}

// UpdatePlaceholder records the latest streamed content. Empty content never
// replaces what the placeholder already holds.
func (r *Reconciler) UpdatePlaceholder(content string) {
	if content == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.placeholder != nil {
		r.placeholder.Content = content
		r.known[r.placeholder.CorrelationID] = content
	}
}

// Placeholder returns a copy of the current placeholder, or nil.
func (r *Reconciler) Placeholder() *Placeholder {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.placeholder == nil {
		return nil
	}
	p := *r.placeholder
	return &p
}

// FinalContent picks what gets committed for correlationID: the explicit
// payload, else the accumulated text, else the last content known for that
// message. Empty content is only returned when nothing was ever seen.
func (r *Reconciler) FinalContent(correlationID, explicit, accumulated string) string {
	if strings.TrimSpace(explicit) != "" {
		return explicit
	}
	if accumulated != "" {
		return accumulated
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if p := r.placeholder; p != nil && p.CorrelationID == correlationID && p.Content != "" {
		return p.Content
	}
	return r.known[correlationID]
}

// Commit persists the assistant message for correlationID unless a commit
// for it is already in flight or done. It returns whether a write started.
// The write runs asynchronously; Wait blocks until it resolves.
func (r *Reconciler) Commit(correlationID, explicit, accumulated string) bool {
	key := "assistant:" + correlationID
	if !r.latch.TryBegin(key) {
		logger.DebugX(moduleName, "[Reconciler] duplicate completion ignored",
			"correlation", correlationID, "state", r.latch.State(key).String())
		return false
	}
	content := r.FinalContent(correlationID, explicit, accumulated)
	if content != "" {
		r.mu.Lock()
		r.known[correlationID] = content
		r.mu.Unlock()
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(r.base, r.timeout)
		defer cancel()

		id, err := r.store.AppendMessage(ctx, r.conversationID, &store.Message{
			ConversationID: r.conversationID,
			Role:           store.RoleAssistant,
			Content:        content,
			Metadata:       map[string]string{"correlation_id": correlationID},
			CreatedAt:      time.Now(),
		})
		r.latch.Resolve(key, err)

		res := CommitResult{CorrelationID: correlationID, MessageID: id, Content: content}
		if err != nil {
			res.Err = errno.Persistence(err, "save assistant message")
			logger.ErrorX(moduleName, "[Reconciler] assistant message not saved",
				"conversation", r.conversationID, "correlation", correlationID, "err", err)
			r.notifier.Notify(NotificationFor(correlationID, res.Err))
		} else {
			logger.InfoX(moduleName, "[Reconciler] assistant message committed",
				"conversation", r.conversationID, "correlation", correlationID, "message", id)
		}
		if r.onCommitted != nil {
			r.onCommitted(res)
		}
	}()
	return true
}

// CommitState exposes the latch state of a turn's assistant message.
func (r *Reconciler) CommitState(correlationID string) CommitState {
	return r.latch.State("assistant:" + correlationID)
}

// PersistToolCall appends a finalized tool-call record asynchronously.
func (r *Reconciler) PersistToolCall(rec toolcall.Record) bool {
	key := "tool:" + rec.Key()
	if !r.latch.TryBegin(key) {
		return false
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(r.base, r.timeout)
		defer cancel()

		_, err := r.store.AppendToolCall(ctx, r.conversationID, &store.ToolCall{
			ConversationID: r.conversationID,
			MessageID:      rec.MessageID,
			ToolName:       rec.ToolName,
			ToolIndex:      rec.ToolIndex,
			Args:           rec.Args,
			Result:         rec.Result,
			Status:         string(rec.Status),
			Error:          rec.Error,
			CreatedAt:      rec.Timestamp,
		})
		r.latch.Resolve(key, err)
		if err != nil {
			logger.ErrorX(moduleName, "[Reconciler] tool call not saved",
				"conversation", r.conversationID, "tool", rec.ToolName, "index", rec.ToolIndex, "err", err)
			r.notifier.Notify(NotificationFor(rec.MessageID, errno.Persistence(err, "save tool call %s", rec.ToolName)))
		}
	}()
	return true
}

// Wait blocks until every outstanding store call has resolved.
func (r *Reconciler) Wait() {
	r.wg.Wait()
}
