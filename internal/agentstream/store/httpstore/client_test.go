package httpstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fintellect/nexus/internal/agentstream/store"
	"github.com/fintellect/nexus/pkg/utils/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientCreateAndList(t *testing.T) {
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/conversations":
			var req createConversationRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(store.Conversation{ID: "c1", Title: req.Title, CreatedAt: created, UpdatedAt: created})
		case r.Method == http.MethodGet && r.URL.Path == "/v1/conversations":
			_ = json.NewEncoder(w).Encode(map[string]any{"data": []store.Conversation{{ID: "c1", Title: "t"}, {ID: "c2"}}})
		default:
			t.Fatalf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", 0)
	conv, err := c.CreateConversation(context.Background(), "plans")
	require.NoError(t, err)
	assert.Equal(t, "c1", conv.ID)
	assert.Equal(t, "plans", conv.Title)
	assert.True(t, created.Equal(conv.CreatedAt))

	list, err := c.ListConversations(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c2", list[1].ID)
}

func TestClientMessagesAndToolCalls(t *testing.T) {
	var gotMsg store.Message
	var gotTool store.ToolCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/conversations/c%201/messages", "/v1/conversations/c 1/messages":
			if r.Method == http.MethodPost {
				require.NoError(t, json.NewDecoder(r.Body).Decode(&gotMsg))
				w.WriteHeader(http.StatusCreated)
				_ = json.NewEncoder(w).Encode(store.Message{ID: "m-9"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"data": []store.Message{{ID: "m-9", Role: "user", Content: "hi"}}})
		case "/v1/conversations/c%201/toolcalls", "/v1/conversations/c 1/toolcalls":
			if r.Method == http.MethodPost {
				require.NoError(t, json.NewDecoder(r.Body).Decode(&gotTool))
				w.WriteHeader(http.StatusCreated)
				_ = json.NewEncoder(w).Encode(store.ToolCall{ID: "t-1"})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"data": []store.ToolCall{{ID: "t-1", ToolName: "web_search"}}})
		default:
			t.Fatalf("unexpected path %q", r.URL.Path)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "", 0)
	ctx := context.Background()

	id, err := c.AppendMessage(ctx, "c 1", &store.Message{Role: "assistant", Content: "done", Metadata: map[string]string{"correlation_id": "x"}})
	require.NoError(t, err)
	assert.Equal(t, "m-9", id)
	assert.Equal(t, "x", gotMsg.Metadata["correlation_id"])

	msgs, err := c.ListMessages(ctx, "c 1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hi", msgs[0].Content)

	id, err = c.AppendToolCall(ctx, "c 1", &store.ToolCall{ToolName: "web_search", ToolIndex: 3})
	require.NoError(t, err)
	assert.Equal(t, "t-1", id)
	assert.Equal(t, 3, gotTool.ToolIndex)

	calls, err := c.ListToolCalls(ctx, "c 1")
	require.NoError(t, err)
	require.Len(t, calls, 1)
}

func TestClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `{"code":100201,"message":"Conversation not found","detail":"conversation \"zz\" not found"}`)
			return
		}
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "", time.Second)
	err := c.DeleteConversation(context.Background(), "zz")
	require.Error(t, err)
	assert.ErrorIs(t, err, store.ErrNotFound)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 100201, apiErr.Code)

	_, err = c.ListConversations(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrNotFound)
	assert.Contains(t, err.Error(), "500")
	assert.Contains(t, err.Error(), "boom")
}
