package v1

import (
	"github.com/fintellect/nexus/internal/nexus/service/conversation/domain/service"
	"github.com/fintellect/nexus/internal/pkg/core"
	"github.com/fintellect/nexus/pkg/errorx"
	"github.com/gin-gonic/gin"
)

// ConversationHandler handles Conversation CRUD REST API endpoints.
type ConversationHandler struct {
	svc service.ConversationService
}

// NewConversationHandler creates a new ConversationHandler.
func NewConversationHandler(svc service.ConversationService) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

// Create handles POST /v1/conversations.
func (h *ConversationHandler) Create(c *gin.Context) {
	var req CreateConversationRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			core.WriteResponse(c, errorx.WrapC(err, ErrBind, "bind create conversation request"), nil)
			return
		}
	}

	conv, err := h.svc.CreateConversation(c.Request.Context(), req.Title)
	if err != nil {
		core.WriteResponse(c, errorx.WrapC(err, ErrConversationCreate, "create conversation"), nil)
		return
	}
	var resp ConversationResponse
	if err := toResponse(&resp, conv); err != nil {
		core.WriteResponse(c, errorx.WrapC(err, ErrConversationCreate, "encode conversation %q", conv.ID), nil)
		return
	}
	core.WriteResponse(c, nil, resp)
}

// List handles GET /v1/conversations.
func (h *ConversationHandler) List(c *gin.Context) {
	convs, err := h.svc.ListConversations(c.Request.Context())
	if err != nil {
		core.WriteResponse(c, errorx.WrapC(err, ErrConversationList, "list conversations"), nil)
		return
	}

	resp := make([]ConversationResponse, 0, len(convs))
	for _, conv := range convs {
		var item ConversationResponse
		if err := toResponse(&item, conv); err != nil {
			core.WriteResponse(c, errorx.WrapC(err, ErrConversationList, "encode conversation %q", conv.ID), nil)
			return
		}
		resp = append(resp, item)
	}
	core.WriteResponse(c, nil, gin.H{"data": resp})
}

// Get handles GET /v1/conversations/:id.
func (h *ConversationHandler) Get(c *gin.Context) {
	id := c.Param("id")
	conv, err := h.svc.GetConversation(c.Request.Context(), id)
	if err != nil {
		core.WriteResponse(c, errorx.WrapC(err, classify(err, ErrConversationNotFound), "conversation %q not found", id), nil)
		return
	}
	var resp ConversationResponse
	if err := toResponse(&resp, conv); err != nil {
		core.WriteResponse(c, errorx.WrapC(err, ErrConversationList, "encode conversation %q", id), nil)
		return
	}
	core.WriteResponse(c, nil, resp)
}

// Delete handles DELETE /v1/conversations/:id.
func (h *ConversationHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.DeleteConversation(c.Request.Context(), id); err != nil {
		core.WriteResponse(c, errorx.WrapC(err, classify(err, ErrConversationDelete), "delete conversation %q", id), nil)
		return
	}
	core.WriteResponse(c, nil, gin.H{"id": id, "deleted": true})
}
