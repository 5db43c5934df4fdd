package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/fintellect/nexus/internal/agentstream/errno"
	"github.com/fintellect/nexus/pkg/utils/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const recording = `{"type":"connected"}

# comment
{"type":"text_delta","delta":"a"}
{"type":"done"}
`

func TestReplayChannel(t *testing.T) {
	d := NewReplayBytes([]byte(recording))

	for i := 0; i < 2; i++ {
		ch, err := d.Dial(context.Background(), "c1")
		require.NoError(t, err)
		frames := collect(ch)
		require.Len(t, frames, 3)
		assert.Equal(t, `{"type":"done"}`, string(frames[2].Data))
		assert.NoError(t, ch.Err())
		require.NoError(t, ch.Close())
	}
}

func TestReplayChannelCloseBeforeDrain(t *testing.T) {
	ch, err := NewReplayBytes([]byte(recording)).Dial(context.Background(), "c1")
	require.NoError(t, err)
	<-ch.Frames()
	require.NoError(t, ch.Close())
}

func TestReplayFileMissing(t *testing.T) {
	_, err := NewReplayFile("/nonexistent/events.jsonl").Dial(context.Background(), "c1")
	assert.Error(t, err)
}

func TestManagerReusesChannelPerConversation(t *testing.T) {
	var dials atomic.Int32
	m := NewManager(DialerFunc(func(ctx context.Context, id string) (Channel, error) {
		dials.Add(1)
		return NewReplayBytes([]byte(recording)).Dial(ctx, id)
	}))

	a, reused, err := m.Open(context.Background(), "c1")
	require.NoError(t, err)
	assert.False(t, reused)

	b, reused, err := m.Open(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, reused)
	assert.Same(t, a, b)
	assert.EqualValues(t, 1, dials.Load())

	_, _, err = m.Open(context.Background(), "c2")
	require.NoError(t, err)
	assert.EqualValues(t, 2, dials.Load())

	require.NoError(t, m.Close("c1"))
	require.NoError(t, m.Close("c1"))
	assert.False(t, m.Live("c1"))
	assert.True(t, m.Live("c2"))

	m.CloseAll()
	_, _, err = m.Open(context.Background(), "c3")
	assert.ErrorIs(t, err, errno.ErrEngineClosed)
}

func TestManagerForgetOnlyDropsSameChannel(t *testing.T) {
	m := NewManager(NewReplayBytes([]byte(recording)))
	old, _, err := m.Open(context.Background(), "c1")
	require.NoError(t, err)
	require.NoError(t, m.Close("c1"))

	cur, _, err := m.Open(context.Background(), "c1")
	require.NoError(t, err)
	m.Forget("c1", old)
	assert.True(t, m.Live("c1"))
	m.Forget("c1", cur)
	assert.False(t, m.Live("c1"))
	cur.Close()
}

func TestManagerReopenDialsFreshChannel(t *testing.T) {
	var dials atomic.Int32
	m := NewManager(DialerFunc(func(ctx context.Context, id string) (Channel, error) {
		dials.Add(1)
		return NewReplayBytes([]byte(recording)).Dial(ctx, id)
	}))
	defer m.CloseAll()

	first, err := m.Reopen(context.Background(), "c1")
	require.NoError(t, err)
	second, err := m.Reopen(context.Background(), "c1")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.EqualValues(t, 2, dials.Load())

	// the replaced channel is closed, so draining it terminates
	collect(first)
	assert.True(t, m.Live("c1"))

	// releasing a stale channel leaves the current one registered
	require.NoError(t, m.Release("c1", first))
	assert.True(t, m.Live("c1"))
	require.NoError(t, m.Release("c1", second))
	assert.False(t, m.Live("c1"))
	require.NoError(t, m.Release("c1", second))
}

func TestManagerClassifiesDialErrors(t *testing.T) {
	m := NewManager(DialerFunc(func(context.Context, string) (Channel, error) {
		return nil, errors.New("refused")
	}))
	_, _, err := m.Open(context.Background(), "c1")
	assert.ErrorIs(t, err, errno.ErrConnection)
	assert.False(t, m.Live("c1"))
}

func TestHTTPSubmitter(t *testing.T) {
	var got SubmitRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/conversations/c1/submit", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	err := NewHTTPSubmitter(srv.URL, "tok", 0).Submit(context.Background(), "c1", "t1", "hello")
	require.NoError(t, err)
	assert.Equal(t, SubmitRequest{TurnID: "t1", Text: "hello"}, got)
}

func TestHTTPSubmitterError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no upstream", http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewHTTPSubmitter(srv.URL, "", 0).Submit(context.Background(), "c1", "t1", "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, errno.ErrConnection)
	assert.Contains(t, err.Error(), "no upstream")
}
