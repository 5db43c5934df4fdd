package agentstream

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fintellect/nexus/internal/agentstream/errno"
	"github.com/fintellect/nexus/internal/agentstream/event"
	"github.com/fintellect/nexus/internal/agentstream/session"
	"github.com/fintellect/nexus/internal/agentstream/store"
	"github.com/fintellect/nexus/internal/agentstream/store/storetest"
	"github.com/fintellect/nexus/internal/agentstream/turn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	frames chan session.Frame
	once   sync.Once
	err    error
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{frames: make(chan session.Frame, 32)}
}

func (c *fakeChannel) Frames() <-chan session.Frame { return c.frames }
func (c *fakeChannel) Err() error                   { return c.err }

func (c *fakeChannel) Close() error {
	c.once.Do(func() { close(c.frames) })
	return nil
}

func (c *fakeChannel) push(payloads ...string) {
	for _, p := range payloads {
		c.frames <- session.Frame{Data: []byte(p)}
	}
}

func (c *fakeChannel) drop(err error) {
	c.err = err
	c.Close()
}

type fakeDialer struct {
	mu       sync.Mutex
	channels map[string][]*fakeChannel
}

func (d *fakeDialer) Dial(_ context.Context, id string) (session.Channel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := newFakeChannel()
	if d.channels == nil {
		d.channels = map[string][]*fakeChannel{}
	}
	d.channels[id] = append(d.channels[id], ch)
	return ch, nil
}

func (d *fakeDialer) last(id string) *fakeChannel {
	d.mu.Lock()
	defer d.mu.Unlock()
	chs := d.channels[id]
	return chs[len(chs)-1]
}

func (d *fakeDialer) count(id string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.channels[id])
}

type recorder struct {
	mu    sync.Mutex
	notes []turn.Notification
}

func (r *recorder) Notify(n turn.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
}

func (r *recorder) kinds() []errno.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []errno.Kind
	for _, n := range r.notes {
		out = append(out, n.Kind)
	}
	return out
}

type harness struct {
	engine    *Engine
	store     *storetest.Store
	dialer    *fakeDialer
	notes     *recorder
	submitted []string
	submitErr error
	mu        sync.Mutex
}

func newHarness(t *testing.T, cfg *Config) *harness {
	t.Helper()
	h := &harness{store: storetest.New(), dialer: &fakeDialer{}, notes: &recorder{}}
	h.store.Seed("c1", "first")
	h.store.Seed("c2", "second")
	if cfg == nil {
		cfg = &Config{}
	}
	e, err := cfg.Complete().New(context.Background(), Dependencies{
		Store:  h.store,
		Dialer: h.dialer,
		Submitter: session.SubmitterFunc(func(_ context.Context, convID, turnID, text string) error {
			h.mu.Lock()
			defer h.mu.Unlock()
			h.submitted = append(h.submitted, convID+":"+text)
			return h.submitErr
		}),
		Notifier: h.notes,
	})
	require.NoError(t, err)
	h.engine = e
	t.Cleanup(func() { _ = e.Close() })
	return h
}

func waitState(t *testing.T, e *Engine, want event.Status) Snapshot {
	t.Helper()
	var snap Snapshot
	require.Eventually(t, func() bool {
		snap = e.Snapshot()
		return snap.State == want
	}, 2*time.Second, 5*time.Millisecond, "state never reached %s", want)
	return snap
}

func TestEngineRequiresDependencies(t *testing.T) {
	_, err := (&Config{}).Complete().New(context.Background(), Dependencies{})
	assert.Error(t, err)
}

func TestEngineSubmitStreamsAndCommits(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.engine.Switch(ctx, "c1"))

	turnID, err := h.engine.Submit(ctx, "  find rates  ")
	require.NoError(t, err)
	assert.NotEmpty(t, turnID)
	assert.Equal(t, []string{"c1:find rates"}, h.submitted)

	// the user message is durable before any event arrives
	users := h.store.Messages("c1", store.RoleUser)
	require.Len(t, users, 1)
	assert.Equal(t, "find rates", users[0].Content)

	ch := h.dialer.last("c1")
	ch.push(
		`{"type":"connected"}`,
		`{"type":"assistant_chunk","content":"Analyzing"}`,
		`{"type":"tool_started","messageId":"m1","toolName":"web_search","toolIndex":0,"args":{"query":"rates"}}`,
		`{"type":"tool_completed","messageId":"m1","toolName":"web_search","toolIndex":0,"status":"success","result":"3 hits"}`,
		`{"type":"assistant_chunk","content":" done."}`,
		`{"type":"message_complete"}`,
	)
	snap := waitState(t, h.engine, event.StatusCompleted)
	h.engine.Wait()

	assert.Equal(t, "Analyzing done.", snap.Text)
	assert.Equal(t, turnID, snap.TurnID)
	require.Len(t, snap.ToolCalls, 1)
	assert.Equal(t, "web_search", snap.ToolCalls[0].ToolName)
	assert.Nil(t, snap.ActiveTool)

	assistant := h.store.Messages("c1", store.RoleAssistant)
	require.Len(t, assistant, 1)
	assert.Equal(t, "Analyzing done.", assistant[0].Content)

	snap = h.engine.Snapshot()
	assert.Equal(t, turn.CommitDone, snap.Commit)
	require.Len(t, snap.Transcript, 2)
	assert.Equal(t, store.RoleAssistant, snap.Transcript[1].Role)

	// the finished turn's channel is closed; the next turn dials its own
	_, open := <-ch.Frames()
	assert.False(t, open)
	_, err = h.engine.Submit(ctx, "again")
	require.NoError(t, err)
	assert.Equal(t, 2, h.dialer.count("c1"))
	assert.Equal(t, event.StatusConnecting, h.engine.Snapshot().State)
	assert.Empty(t, h.engine.Snapshot().Text)
}

func TestEngineStaleCompletionDoesNotEndNextTurn(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.engine.Switch(ctx, "c1"))

	firstID, err := h.engine.Submit(ctx, "one")
	require.NoError(t, err)
	h.dialer.last("c1").push(`{"type":"assistant_chunk","content":"first answer"}`, `{"type":"message_complete"}`)
	waitState(t, h.engine, event.StatusCompleted)
	h.engine.Wait()

	_, err = h.engine.Submit(ctx, "two")
	require.NoError(t, err)
	ch := h.dialer.last("c1")
	ch.push(
		`{"type":"message_complete"}`,
		`{"type":"message_complete","turn_id":"`+firstID+`"}`,
		`{"type":"assistant_chunk","content":"late","turn_id":"`+firstID+`"}`,
	)
	ch.push(`{"type":"assistant_chunk","content":"second answer"}`, `{"type":"message_complete"}`)

	snap := waitState(t, h.engine, event.StatusCompleted)
	h.engine.Wait()
	assert.Equal(t, "second answer", snap.Text)

	assistant := h.store.Messages("c1", store.RoleAssistant)
	require.Len(t, assistant, 2)
	assert.Equal(t, "first answer", assistant[0].Content)
	assert.Equal(t, "second answer", assistant[1].Content)
}

func TestEngineRejectsSubmitWhileLive(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.engine.Switch(ctx, "c1"))

	_, err := h.engine.Submit(ctx, "one")
	require.NoError(t, err)
	_, err = h.engine.Submit(ctx, "two")
	assert.ErrorIs(t, err, errno.ErrTurnInProgress)
	assert.Len(t, h.store.Messages("c1", store.RoleUser), 1)
}

func TestEngineSubmitPreconditions(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.engine.Submit(ctx, "hi")
	assert.ErrorIs(t, err, errno.ErrNoConversation)

	require.NoError(t, h.engine.Switch(ctx, "c1"))
	_, err = h.engine.Submit(ctx, "   ")
	assert.ErrorIs(t, err, errno.ErrEmptySubmission)

	assert.ErrorIs(t, h.engine.Switch(ctx, "missing"), errno.ErrNoConversation)
	assert.Equal(t, "c1", h.engine.ConversationID())
}

func TestEngineSwitchResetsTurn(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	h.store.SeedToolCall("c2", store.ToolCall{
		MessageID: "old", ToolName: "create_file", ToolIndex: 0,
		Args:   map[string]any{"file_path": "docs/plan.md", "content": "# Plan\n\n## Steps\n\n1. Measure.\n2. Cut."},
		Status: "success", CreatedAt: time.Now(),
	})

	require.NoError(t, h.engine.Switch(ctx, "c1"))
	_, err := h.engine.Submit(ctx, "start")
	require.NoError(t, err)
	old := h.dialer.last("c1")
	old.push(`{"type":"assistant_chunk","content":"partial"}`)
	waitState(t, h.engine, event.StatusStreaming)

	require.NoError(t, h.engine.Switch(ctx, "c2"))
	snap := h.engine.Snapshot()
	assert.Equal(t, "c2", snap.ConversationID)
	assert.Equal(t, event.StatusIdle, snap.State)
	assert.Empty(t, snap.Text)
	assert.Nil(t, snap.ActiveTool)
	require.Len(t, snap.ToolCalls, 1)
	require.Len(t, snap.Artifacts, 1)
	assert.Equal(t, "docs/plan.md", snap.Artifacts[0].Path)
	assert.Equal(t, "markdown", snap.Artifacts[0].Language)

	// the old channel was closed and the abandoned turn never committed
	_, open := <-old.Frames()
	assert.False(t, open)
	h.engine.Wait()
	assert.Empty(t, h.store.Messages("c1", store.RoleAssistant))

	// a submission in the new conversation is not blocked by the old turn
	_, err = h.engine.Submit(ctx, "fresh")
	require.NoError(t, err)
}

func TestEngineProtocolErrorsAreReportedNotFatal(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.engine.Switch(ctx, "c1"))
	_, err := h.engine.Submit(ctx, "hi")
	require.NoError(t, err)

	h.dialer.last("c1").push(
		`not json`,
		`{"type":"assistant_chunk","content":"ok"}`,
		`{"type":"done"}`,
	)
	waitState(t, h.engine, event.StatusCompleted)
	h.engine.Wait()

	assert.Contains(t, h.notes.kinds(), errno.KindProtocol)
	require.Len(t, h.store.Messages("c1", store.RoleAssistant), 1)
}

func TestEngineChannelDropFailsLiveTurn(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.engine.Switch(ctx, "c1"))
	_, err := h.engine.Submit(ctx, "hi")
	require.NoError(t, err)

	ch := h.dialer.last("c1")
	ch.push(`{"type":"assistant_chunk","content":"half"}`)
	ch.drop(errno.Connection(errors.New("EOF"), "stream ended"))

	snap := waitState(t, h.engine, event.StatusError)
	assert.Equal(t, "half", snap.Text)
	assert.Contains(t, h.notes.kinds(), errno.KindConnection)

	// the next submission dials a new channel
	_, err = h.engine.Submit(ctx, "retry")
	require.NoError(t, err)
	assert.Equal(t, 2, h.dialer.count("c1"))
}

func TestEngineSubmitFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.submitErr = errors.New("backend down")
	ctx := context.Background()
	require.NoError(t, h.engine.Switch(ctx, "c1"))

	_, err := h.engine.Submit(ctx, "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, errno.ErrConnection)
	assert.Equal(t, event.StatusError, h.engine.Snapshot().State)
}

func TestEngineConversationPassThrough(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	conv, err := h.engine.NewConversation(ctx, "third")
	require.NoError(t, err)
	list, err := h.engine.ListConversations(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	require.NoError(t, h.engine.Switch(ctx, conv.ID))
	require.NoError(t, h.engine.DeleteConversation(ctx, conv.ID))
	assert.Empty(t, h.engine.ConversationID())
	assert.ErrorIs(t, h.engine.DeleteConversation(ctx, conv.ID), errno.ErrNoConversation)
}

func TestEngineClose(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()
	require.NoError(t, h.engine.Switch(ctx, "c1"))
	_, err := h.engine.Submit(ctx, "hi")
	require.NoError(t, err)

	require.NoError(t, h.engine.Close())
	require.NoError(t, h.engine.Close())
	_, err = h.engine.Submit(ctx, "late")
	assert.ErrorIs(t, err, errno.ErrEngineClosed)
	assert.ErrorIs(t, h.engine.Switch(ctx, "c2"), errno.ErrEngineClosed)
}

func TestEngineObserver(t *testing.T) {
	var (
		mu     sync.Mutex
		deltas []string
		states []event.Status
	)
	committed := make(chan turn.CommitResult, 1)
	h := &harness{store: storetest.New(), dialer: &fakeDialer{}, notes: &recorder{}}
	h.store.Seed("c1", "first")
	e, err := (&Config{}).Complete().New(context.Background(), Dependencies{
		Store:     h.store,
		Dialer:    h.dialer,
		Submitter: session.SubmitterFunc(func(context.Context, string, string, string) error { return nil }),
		Observer: Observer{
			OnDelta: func(_, d string) {
				mu.Lock()
				defer mu.Unlock()
				deltas = append(deltas, d)
			},
			OnStateChange: func(_ string, _, to event.Status) {
				mu.Lock()
				defer mu.Unlock()
				states = append(states, to)
			},
			OnCommitted: func(_ string, res turn.CommitResult) { committed <- res },
		},
	})
	require.NoError(t, err)
	defer e.Close()

	ctx := context.Background()
	require.NoError(t, e.Switch(ctx, "c1"))
	_, err = e.Submit(ctx, "hi")
	require.NoError(t, err)
	h.dialer.last("c1").push(`{"type":"text_delta","delta":"a"}`, `{"type":"text_delta","delta":"b"}`, `{"type":"done","content":"ab!"}`)

	res := <-committed
	require.NoError(t, res.Err)
	assert.Equal(t, "ab!", res.Content)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b"}, deltas)
	assert.Equal(t, []event.Status{event.StatusConnecting, event.StatusStreaming, event.StatusCompleted}, states)
}
