package v1

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/fintellect/nexus/internal/nexus/hub"
	"github.com/fintellect/nexus/internal/nexus/service/conversation/domain/service"
	"github.com/fintellect/nexus/internal/nexus/service/upstream"
	"github.com/fintellect/nexus/internal/pkg/core"
	"github.com/fintellect/nexus/pkg/errorx"
	"github.com/fintellect/nexus/pkg/logger"
	"github.com/fintellect/nexus/pkg/utils/json"
	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StreamHandler relays agent events to clients and forwards their turns to
// the agent backend.
//
// The backend never talks to clients directly: it publishes each event to
// POST /v1/conversations/:id/events and every client subscribed to
// GET /v1/conversations/:id/stream receives it as an SSE frame.
type StreamHandler struct {
	svc       service.ConversationService
	hub       *hub.Hub
	forwarder upstream.Forwarder
	heartbeat time.Duration
}

// NewStreamHandler creates a new StreamHandler.
func NewStreamHandler(svc service.ConversationService, h *hub.Hub, fwd upstream.Forwarder, heartbeat time.Duration) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	return &StreamHandler{svc: svc, hub: h, forwarder: fwd, heartbeat: heartbeat}
}

// Stream handles GET /v1/conversations/:id/stream.
func (h *StreamHandler) Stream(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.svc.GetConversation(c.Request.Context(), id); err != nil {
		core.WriteResponse(c, errorx.WrapC(err, classify(err, ErrStreamUnavailable), "stream conversation %q", id), nil)
		return
	}
	sub, err := h.hub.Subscribe(id)
	if err != nil {
		core.WriteResponse(c, errorx.WrapC(err, ErrStreamUnavailable, "subscribe to %q", id), nil)
		return
	}
	defer h.hub.Unsubscribe(sub)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	clientGone := c.Stream(func(io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case ev, ok := <-sub.Events():
			if !ok {
				return false
			}
			c.Render(-1, sse.Event{Id: ev.ID, Event: ev.Name, Data: string(ev.Data)})
			return true
		case <-ticker.C:
			c.Render(-1, sse.Event{Event: "ping", Data: `{"type":"ping"}`})
			return true
		}
	})
	logger.InfoX("nexus.stream", "[Stream] subscriber left", "conversation", id,
		"client_gone", clientGone, "dropped", sub.Dropped())
}

// Publish handles POST /v1/conversations/:id/events. The body is one event
// payload and is relayed verbatim.
func (h *StreamHandler) Publish(c *gin.Context) {
	id := c.Param("id")
	body, err := c.GetRawData()
	if err != nil {
		core.WriteResponse(c, errorx.WrapC(err, ErrBind, "read event body"), nil)
		return
	}

	var envelope map[string]any
	if err := json.Unmarshal(body, &envelope); err != nil || envelope == nil {
		core.WriteResponse(c, errorx.WithCode(ErrInvalidEvent, "event body is not a JSON object"), nil)
		return
	}
	typ, _ := envelope["type"].(string)
	if typ == "" {
		core.WriteResponse(c, errorx.WithCode(ErrInvalidEvent, "event has no type"), nil)
		return
	}
	if _, err := h.svc.GetConversation(c.Request.Context(), id); err != nil {
		core.WriteResponse(c, errorx.WrapC(err, classify(err, ErrStreamUnavailable), "publish to %q", id), nil)
		return
	}

	n := h.hub.Publish(id, typ, body)
	core.WriteStatus(c, http.StatusAccepted, gin.H{"type": typ, "delivered": n})
}

// Submit handles POST /v1/conversations/:id/submit.
func (h *StreamHandler) Submit(c *gin.Context) {
	id := c.Param("id")
	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		core.WriteResponse(c, errorx.WrapC(err, ErrBind, "bind submit request"), nil)
		return
	}
	if _, err := h.svc.GetConversation(c.Request.Context(), id); err != nil {
		core.WriteResponse(c, errorx.WrapC(err, classify(err, ErrSubmitForward), "submit to %q", id), nil)
		return
	}
	if req.TurnID == "" {
		req.TurnID = uuid.NewString()
	}

	err := h.forwarder.Forward(c.Request.Context(), upstream.Submission{
		ConversationID: id,
		TurnID:         req.TurnID,
		Text:           req.Text,
	})
	switch {
	case errors.Is(err, upstream.ErrNotConfigured):
		core.WriteResponse(c, errorx.WrapC(err, ErrUpstreamMissing, "submit to %q", id), nil)
		return
	case err != nil:
		core.WriteResponse(c, errorx.WrapC(err, ErrSubmitForward, "submit turn %q", req.TurnID), nil)
		return
	}
	core.WriteStatus(c, http.StatusAccepted, gin.H{"conversation_id": id, "turn_id": req.TurnID, "accepted": true})
}
