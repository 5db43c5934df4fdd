package nexus

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fintellect/nexus/internal/agentstream"
	"github.com/fintellect/nexus/internal/agentstream/event"
	"github.com/fintellect/nexus/internal/agentstream/session"
	"github.com/fintellect/nexus/internal/agentstream/store"
	"github.com/fintellect/nexus/internal/agentstream/store/httpstore"
	"github.com/fintellect/nexus/internal/nexus/service/upstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func nextFrame(t *testing.T, ch session.Channel) session.Frame {
	t.Helper()
	select {
	case f, ok := <-ch.Frames():
		require.True(t, ok, "channel closed: %v", ch.Err())
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
	}
	return session.Frame{}
}

func TestStreamRelaysPublishedEvents(t *testing.T) {
	gw := newGateway(t, nil)
	srv := httptest.NewServer(gw.engine)
	t.Cleanup(func() {
		gw.hub.Close()
		srv.Close()
	})
	conv, err := gw.svc.CreateConversation(context.Background(), "t")
	require.NoError(t, err)

	ch, err := session.NewSSEDialer(srv.URL, "").Dial(context.Background(), conv.ID)
	require.NoError(t, err)
	defer ch.Close()

	f := nextFrame(t, ch)
	assert.Equal(t, "connected", f.Event)

	gw.hub.Publish(conv.ID, "text_delta", []byte(`{"type":"text_delta","delta":"hi"}`))
	for f = nextFrame(t, ch); f.Event == "ping"; f = nextFrame(t, ch) {
	}
	assert.Equal(t, "text_delta", f.Event)
	assert.JSONEq(t, `{"type":"text_delta","delta":"hi"}`, string(f.Data))
	assert.NotEmpty(t, f.ID)

	// idle streams carry heartbeats
	f = nextFrame(t, ch)
	assert.Equal(t, "ping", f.Event)
}

func TestStreamUnknownConversation(t *testing.T) {
	gw := newGateway(t, nil)
	srv := httptest.NewServer(gw.engine)
	t.Cleanup(func() {
		gw.hub.Close()
		srv.Close()
	})

	_, err := session.NewSSEDialer(srv.URL, "").Dial(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

// TestEngineAgainstGateway drives a full turn: the engine persists through
// the REST API, streams over SSE and submits through the gateway, whose
// backend answers by publishing events.
func TestEngineAgainstGateway(t *testing.T) {
	var gw *gateway
	gw = newGateway(t, forwarderFunc(func(_ context.Context, sub upstream.Submission) error {
		for _, payload := range []string{
			`{"type":"assistant_chunk","content":"Writing the plan"}`,
			`{"type":"tool_started","messageId":"m1","toolName":"create_file","toolIndex":0,"args":{"file_path":"docs/plan.md"}}`,
			`{"type":"tool_completed","messageId":"m1","toolName":"create_file","toolIndex":0,"status":"success","args":{"file_path":"docs/plan.md","content":"# Plan\n\n## Steps\n\nMeasure first, then cut."}}`,
			`{"type":"assistant_chunk","content":" - done."}`,
			`{"type":"message_complete"}`,
		} {
			gw.hub.Publish(sub.ConversationID, "", []byte(payload))
		}
		return nil
	}))
	srv := httptest.NewServer(gw.engine)
	t.Cleanup(func() {
		gw.hub.Close()
		srv.Close()
	})

	ctx := context.Background()
	e, err := (&agentstream.Config{}).Complete().New(ctx, agentstream.Dependencies{
		Store:     httpstore.New(srv.URL, "", 5*time.Second),
		Dialer:    session.NewSSEDialer(srv.URL, ""),
		Submitter: session.NewHTTPSubmitter(srv.URL, "", 5*time.Second),
	})
	require.NoError(t, err)
	defer e.Close()

	conv, err := e.NewConversation(ctx, "plan")
	require.NoError(t, err)
	require.NoError(t, e.Switch(ctx, conv.ID))
	_, err = e.Submit(ctx, "write a plan")
	require.NoError(t, err)

	var snap agentstream.Snapshot
	require.Eventually(t, func() bool {
		snap = e.Snapshot()
		return snap.State == event.StatusCompleted
	}, 3*time.Second, 10*time.Millisecond)
	e.Wait()

	assert.Equal(t, "Writing the plan - done.", snap.Text)
	require.Len(t, snap.Artifacts, 1)
	assert.Equal(t, "docs/plan.md", snap.Artifacts[0].Path)

	msgs, err := gw.svc.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, store.RoleUser, msgs[0].Role)
	assert.Equal(t, store.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "Writing the plan - done.", msgs[1].Content)

	calls, err := gw.svc.ListToolCalls(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "create_file", calls[0].ToolName)
}
