package nexus

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/fintellect/nexus/internal/nexus/hub"
	"github.com/fintellect/nexus/internal/nexus/service/conversation"
	"github.com/fintellect/nexus/internal/nexus/service/conversation/domain/service"
	"github.com/fintellect/nexus/internal/nexus/service/upstream"
	"github.com/fintellect/nexus/internal/pkg/core"
	"github.com/fintellect/nexus/pkg/utils/json"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type forwarderFunc func(ctx context.Context, sub upstream.Submission) error

func (f forwarderFunc) Forward(ctx context.Context, sub upstream.Submission) error {
	return f(ctx, sub)
}

type gateway struct {
	engine *gin.Engine
	hub    *hub.Hub
	svc    service.ConversationService
}

func newGateway(t *testing.T, fwd upstream.Forwarder) *gateway {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mod, err := (&conversation.Config{StoreType: conversation.StoreInMemory}).Complete().New(context.Background())
	require.NoError(t, err)
	if fwd == nil {
		fwd = (&upstream.Config{}).Complete().New()
	}
	gw := &gateway{engine: gin.New(), hub: hub.New(16), svc: mod.Service}
	initRouter(gw.engine, &routerDeps{
		conversations: mod.Service,
		hub:           gw.hub,
		forwarder:     fwd,
		heartbeat:     50 * time.Millisecond,
	})
	t.Cleanup(gw.hub.Close)
	return gw
}

func (gw *gateway) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		buf.Write(data)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	gw.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHealthz(t *testing.T) {
	gw := newGateway(t, nil)
	w := gw.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConversationLifecycle(t *testing.T) {
	gw := newGateway(t, nil)

	w := gw.do(t, http.MethodPost, "/v1/conversations", map[string]string{"title": "  Rates  "})
	require.Equal(t, http.StatusOK, w.Code)
	created := decode[map[string]any](t, w)
	id := created["id"].(string)
	assert.Equal(t, "Rates", created["title"])
	assert.NotEmpty(t, created["created_at"])

	w = gw.do(t, http.MethodPost, "/v1/conversations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "New conversation", decode[map[string]any](t, w)["title"])

	w = gw.do(t, http.MethodGet, "/v1/conversations", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Data []map[string]any `json:"data"`
	}](t, w)
	assert.Len(t, list.Data, 2)

	w = gw.do(t, http.MethodGet, "/v1/conversations/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = gw.do(t, http.MethodDelete, "/v1/conversations/"+id, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = gw.do(t, http.MethodGet, "/v1/conversations/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 100101, decode[core.ErrResponse](t, w).Code)

	w = gw.do(t, http.MethodDelete, "/v1/conversations/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMessagesAndToolCalls(t *testing.T) {
	gw := newGateway(t, nil)
	conv, err := gw.svc.CreateConversation(context.Background(), "t")
	require.NoError(t, err)
	base := "/v1/conversations/" + conv.ID

	w := gw.do(t, http.MethodPost, base+"/messages", map[string]any{"role": "robot", "content": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 100203, decode[core.ErrResponse](t, w).Code)

	w = gw.do(t, http.MethodPost, base+"/messages", map[string]any{"content": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 100001, decode[core.ErrResponse](t, w).Code)

	w = gw.do(t, http.MethodPost, base+"/messages", map[string]any{
		"role": "user", "content": "hello", "metadata": map[string]string{"turn_id": "t1"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	msg := decode[map[string]any](t, w)
	assert.NotEmpty(t, msg["id"])
	assert.Equal(t, conv.ID, msg["conversation_id"])

	w = gw.do(t, http.MethodGet, base+"/messages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	msgs := decode[struct {
		Data []map[string]any `json:"data"`
	}](t, w)
	require.Len(t, msgs.Data, 1)
	assert.Equal(t, "hello", msgs.Data[0]["content"])

	w = gw.do(t, http.MethodPost, base+"/toolcalls", map[string]any{"message_id": "m1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 100303, decode[core.ErrResponse](t, w).Code)

	w = gw.do(t, http.MethodPost, base+"/toolcalls", map[string]any{
		"message_id": "m1", "tool_name": "create_file", "tool_index": 0,
		"args": map[string]any{"file_path": "a.md"}, "status": "success",
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = gw.do(t, http.MethodGet, base+"/toolcalls", nil)
	require.Equal(t, http.StatusOK, w.Code)
	calls := decode[struct {
		Data []map[string]any `json:"data"`
	}](t, w)
	require.Len(t, calls.Data, 1)
	assert.Equal(t, "create_file", calls.Data[0]["tool_name"])

	w = gw.do(t, http.MethodGet, "/v1/conversations/missing/messages", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPublishValidation(t *testing.T) {
	gw := newGateway(t, nil)
	conv, err := gw.svc.CreateConversation(context.Background(), "t")
	require.NoError(t, err)

	w := gw.do(t, http.MethodPost, "/v1/conversations/"+conv.ID+"/events", "not json")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 100401, decode[core.ErrResponse](t, w).Code)

	w = gw.do(t, http.MethodPost, "/v1/conversations/"+conv.ID+"/events", `{"delta":"x"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = gw.do(t, http.MethodPost, "/v1/conversations/missing/events", `{"type":"ping"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = gw.do(t, http.MethodPost, "/v1/conversations/"+conv.ID+"/events", `{"type":"text_delta","delta":"x"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.EqualValues(t, 0, decode[map[string]any](t, w)["delivered"])
}

func TestSubmit(t *testing.T) {
	var (
		mu  sync.Mutex
		got []upstream.Submission
	)
	gw := newGateway(t, forwarderFunc(func(_ context.Context, sub upstream.Submission) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, sub)
		return nil
	}))
	conv, err := gw.svc.CreateConversation(context.Background(), "t")
	require.NoError(t, err)

	w := gw.do(t, http.MethodPost, "/v1/conversations/"+conv.ID+"/submit", map[string]string{"text": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = gw.do(t, http.MethodPost, "/v1/conversations/"+conv.ID+"/submit", map[string]string{"turn_id": "t1", "text": "go"})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []upstream.Submission{{ConversationID: conv.ID, TurnID: "t1", Text: "go"}}, got)

	w = gw.do(t, http.MethodPost, "/v1/conversations/missing/submit", map[string]string{"text": "go"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitWithoutUpstream(t *testing.T) {
	gw := newGateway(t, nil)
	conv, err := gw.svc.CreateConversation(context.Background(), "t")
	require.NoError(t, err)

	w := gw.do(t, http.MethodPost, "/v1/conversations/"+conv.ID+"/submit", map[string]string{"text": "go"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, 100404, decode[core.ErrResponse](t, w).Code)
}
