package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fintellect/nexus/internal/agentstream/errno"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(ch Channel) []Frame {
	var out []Frame
	for f := range ch.Frames() {
		out = append(out, f)
	}
	return out
}

func TestScanFrames(t *testing.T) {
	raw := ": keep-alive\n" +
		"event: text_delta\n" +
		"id: 1\n" +
		"data: {\"delta\":\"a\"}\n\n" +
		"data: line one\n" +
		"data: line two\n\n" +
		"event: ping\n\n" +
		"data:{\"type\":\"done\"}\n\n"

	var frames []Frame
	err := ScanFrames(strings.NewReader(raw), func(f Frame) bool {
		frames = append(frames, f)
		return true
	})
	require.NoError(t, err)
	require.Len(t, frames, 3)

	assert.Equal(t, "text_delta", frames[0].Event)
	assert.Equal(t, "1", frames[0].ID)
	assert.JSONEq(t, `{"delta":"a"}`, string(frames[0].Data))
	assert.Equal(t, "line one\nline two", string(frames[1].Data))
	assert.Equal(t, `{"type":"done"}`, string(frames[2].Data))
}

func TestScanFramesStopsWhenEmitDeclines(t *testing.T) {
	raw := "data: 1\n\ndata: 2\n\n"
	n := 0
	err := ScanFrames(strings.NewReader(raw), func(Frame) bool {
		n++
		return false
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestSSEDialerStreamsFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/conversations/c1/stream", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: connected\ndata: {}\n\n")
		fmt.Fprint(w, "data: {\"type\":\"text_delta\",\"delta\":\"hi\"}\n\n")
		w.(http.Flusher).Flush()
	}))
	defer srv.Close()

	ch, err := NewSSEDialer(srv.URL+"/", "secret").Dial(context.Background(), "c1")
	require.NoError(t, err)
	defer ch.Close()

	frames := collect(ch)
	require.Len(t, frames, 2)
	assert.Equal(t, "connected", frames[0].Event)

	// the server hung up without being asked to
	assert.ErrorIs(t, ch.Err(), errno.ErrConnection)
}

func TestSSEDialerRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewSSEDialer(srv.URL, "").Dial(context.Background(), "c1")
	require.Error(t, err)
	assert.ErrorIs(t, err, errno.ErrConnection)
	kind, ok := errno.KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, errno.KindConnection, kind)
	assert.Contains(t, err.Error(), "401")
}

func TestSSEChannelCloseIsCleanAndIdempotent(t *testing.T) {
	started := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"type\":\"connected\"}\n\n")
		w.(http.Flusher).Flush()
		close(started)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ch, err := NewSSEDialer(srv.URL, "").Dial(context.Background(), "c1")
	require.NoError(t, err)
	<-started
	f := <-ch.Frames()
	assert.Equal(t, `{"type":"connected"}`, string(f.Data))

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
	_, open := <-ch.Frames()
	assert.False(t, open)
	assert.NoError(t, ch.Err())
}
