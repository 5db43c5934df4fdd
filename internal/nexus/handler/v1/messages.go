package v1

import (
	"github.com/fintellect/nexus/internal/nexus/service/conversation/domain/entity"
	"github.com/fintellect/nexus/internal/nexus/service/conversation/domain/service"
	"github.com/fintellect/nexus/internal/pkg/core"
	"github.com/fintellect/nexus/pkg/errorx"
	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
)

// MessageHandler handles the messages of a conversation.
type MessageHandler struct {
	svc service.ConversationService
}

// NewMessageHandler creates a new MessageHandler.
func NewMessageHandler(svc service.ConversationService) *MessageHandler {
	return &MessageHandler{svc: svc}
}

// Append handles POST /v1/conversations/:id/messages.
func (h *MessageHandler) Append(c *gin.Context) {
	id := c.Param("id")
	var req AppendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		core.WriteResponse(c, errorx.WrapC(err, ErrBind, "bind append message request"), nil)
		return
	}

	var msg entity.Message
	if err := copier.Copy(&msg, &req); err != nil {
		core.WriteResponse(c, errorx.WrapC(err, ErrValidation, "decode message"), nil)
		return
	}
	stored, err := h.svc.AppendMessage(c.Request.Context(), id, &msg)
	if err != nil {
		core.WriteResponse(c, errorx.WrapC(err, classify(err, ErrMessageAppend), "append message to %q", id), nil)
		return
	}
	var resp MessageResponse
	if err := toResponse(&resp, stored); err != nil {
		core.WriteResponse(c, errorx.WrapC(err, ErrMessageAppend, "encode message %q", stored.ID), nil)
		return
	}
	core.WriteResponse(c, nil, resp)
}

// List handles GET /v1/conversations/:id/messages.
func (h *MessageHandler) List(c *gin.Context) {
	id := c.Param("id")
	msgs, err := h.svc.ListMessages(c.Request.Context(), id)
	if err != nil {
		core.WriteResponse(c, errorx.WrapC(err, classify(err, ErrMessageList), "list messages of %q", id), nil)
		return
	}

	resp := make([]MessageResponse, 0, len(msgs))
	for _, m := range msgs {
		var item MessageResponse
		if err := toResponse(&item, m); err != nil {
			core.WriteResponse(c, errorx.WrapC(err, ErrMessageList, "encode message %q", m.ID), nil)
			return
		}
		resp = append(resp, item)
	}
	core.WriteResponse(c, nil, gin.H{"data": resp})
}
