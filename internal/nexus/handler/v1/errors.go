package v1

import (
	"errors"
	"net/http"

	convErrno "github.com/fintellect/nexus/internal/nexus/service/conversation/pkg/errno"
	"github.com/fintellect/nexus/pkg/errorx"
)

// Nexus handler error codes.
// Code format: 1XXYYZ
//   - 1:  module prefix (nexus handler)
//   - XX: resource group (00=common, 01=conversation, 02=message, 03=toolcall, 04=stream)
//   - YY: sequential error number
//   - Z:  reserved (0)

const (
	// Common request errors (100xxx).
	ErrBind       = 100001
	ErrValidation = 100002

	// Conversation errors (1001xx).
	ErrConversationNotFound = 100101
	ErrConversationCreate   = 100102
	ErrConversationList     = 100103
	ErrConversationDelete   = 100104

	// Message errors (1002xx).
	ErrMessageAppend = 100201
	ErrMessageList   = 100202
	ErrInvalidRole   = 100203

	// Tool call errors (1003xx).
	ErrToolCallAppend  = 100301
	ErrToolCallList    = 100302
	ErrMissingToolName = 100303

	// Stream and submission errors (1004xx).
	ErrInvalidEvent      = 100401
	ErrStreamUnavailable = 100402
	ErrSubmitForward     = 100403
	ErrUpstreamMissing   = 100404
)

func init() {
	// Common.
	errorx.MustRegister(newCoder(ErrBind, http.StatusBadRequest, "Request body binding failed"))
	errorx.MustRegister(newCoder(ErrValidation, http.StatusBadRequest, "Request validation failed"))

	// Conversation.
	errorx.MustRegister(newCoder(ErrConversationNotFound, http.StatusNotFound, "Conversation not found"))
	errorx.MustRegister(newCoder(ErrConversationCreate, http.StatusInternalServerError, "Failed to create conversation"))
	errorx.MustRegister(newCoder(ErrConversationList, http.StatusInternalServerError, "Failed to list conversations"))
	errorx.MustRegister(newCoder(ErrConversationDelete, http.StatusInternalServerError, "Failed to delete conversation"))

	// Message.
	errorx.MustRegister(newCoder(ErrMessageAppend, http.StatusInternalServerError, "Failed to append message"))
	errorx.MustRegister(newCoder(ErrMessageList, http.StatusInternalServerError, "Failed to list messages"))
	errorx.MustRegister(newCoder(ErrInvalidRole, http.StatusBadRequest, "Invalid message role"))

	// Tool call.
	errorx.MustRegister(newCoder(ErrToolCallAppend, http.StatusInternalServerError, "Failed to append tool call"))
	errorx.MustRegister(newCoder(ErrToolCallList, http.StatusInternalServerError, "Failed to list tool calls"))
	errorx.MustRegister(newCoder(ErrMissingToolName, http.StatusBadRequest, "Tool name is required"))

	// Stream.
	errorx.MustRegister(newCoder(ErrInvalidEvent, http.StatusBadRequest, "Event must be a JSON object with a type"))
	errorx.MustRegister(newCoder(ErrStreamUnavailable, http.StatusServiceUnavailable, "Event stream is unavailable"))
	errorx.MustRegister(newCoder(ErrSubmitForward, http.StatusBadGateway, "Failed to forward submission to the agent backend"))
	errorx.MustRegister(newCoder(ErrUpstreamMissing, http.StatusServiceUnavailable, "No agent backend is configured"))
}

// classify picks the code for a service error: domain sentinels map to their
// own codes, anything else to fallback.
func classify(err error, fallback int) int {
	switch {
	case errors.Is(err, convErrno.ErrConversationNotFound):
		return ErrConversationNotFound
	case errors.Is(err, convErrno.ErrInvalidRole):
		return ErrInvalidRole
	case errors.Is(err, convErrno.ErrMissingToolName):
		return ErrMissingToolName
	}
	return fallback
}

type coder struct {
	code int
	http int
	msg  string
}

func newCoder(code, httpStatus int, msg string) *coder {
	return &coder{code: code, http: httpStatus, msg: msg}
}

func (c *coder) Code() int         { return c.code }
func (c *coder) HTTPStatus() int   { return c.http }
func (c *coder) String() string    { return c.msg }
func (c *coder) Reference() string { return "" }
