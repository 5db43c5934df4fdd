package v1

import (
	"github.com/fintellect/nexus/internal/nexus/service/conversation/domain/entity"
	"github.com/fintellect/nexus/internal/nexus/service/conversation/domain/service"
	"github.com/fintellect/nexus/internal/pkg/core"
	"github.com/fintellect/nexus/pkg/errorx"
	"github.com/gin-gonic/gin"
	"github.com/jinzhu/copier"
)

// ToolCallHandler handles the tool-call records of a conversation.
type ToolCallHandler struct {
	svc service.ConversationService
}

func NewToolCallHandler(svc service.ConversationService) *ToolCallHandler {
	return &ToolCallHandler{svc: svc}
}

// Append handles POST /v1/conversations/:id/toolcalls.
func (h *ToolCallHandler) Append(c *gin.Context) {
	id := c.Param("id")
	var req AppendToolCallRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		core.WriteResponse(c, errorx.WrapC(err, ErrBind, "bind append tool call request"), nil)
		return
	}

	var tc entity.ToolCall
	if err := copier.Copy(&tc, &req); err != nil {
		core.WriteResponse(c, errorx.WrapC(err, ErrValidation, "decode tool call"), nil)
		return
	}
	stored, err := h.svc.AppendToolCall(c.Request.Context(), id, &tc)
	if err != nil {
		core.WriteResponse(c, errorx.WrapC(err, classify(err, ErrToolCallAppend), "append tool call to %q", id), nil)
		return
	}
	var resp ToolCallResponse
	if err := toResponse(&resp, stored); err != nil {
		core.WriteResponse(c, errorx.WrapC(err, ErrToolCallAppend, "encode tool call %q", stored.ID), nil)
		return
	}
	core.WriteResponse(c, nil, resp)
}

// List handles GET /v1/conversations/:id/toolcalls.
func (h *ToolCallHandler) List(c *gin.Context) {
	id := c.Param("id")
	calls, err := h.svc.ListToolCalls(c.Request.Context(), id)
	if err != nil {
		core.WriteResponse(c, errorx.WrapC(err, classify(err, ErrToolCallList), "list tool calls of %q", id), nil)
		return
	}

	resp := make([]ToolCallResponse, 0, len(calls))
	for _, tc := range calls {
		var item ToolCallResponse
		if err := toResponse(&item, tc); err != nil {
			core.WriteResponse(c, errorx.WrapC(err, ErrToolCallList, "encode tool call %q", tc.ID), nil)
			return
		}
		resp = append(resp, item)
	}
	core.WriteResponse(c, nil, gin.H{"data": resp})
}
