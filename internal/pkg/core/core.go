// Package core holds the response helpers shared by every gin handler.
package core

import (
	"net/http"

	"github.com/fintellect/nexus/pkg/errorx"
	"github.com/fintellect/nexus/pkg/logger"
	"github.com/gin-gonic/gin"
)

// ErrResponse is the body written for any failed request.
type ErrResponse struct {
	// Code is the registered errorx code.
	Code int `json:"code"`

	// Message is the external message of the code.
	Message string `json:"message"`

	// Detail carries the wrapped error text.
	Detail string `json:"detail,omitempty"`

	// Reference points at documentation for the code, when available.
	Reference string `json:"reference,omitempty"`
}

// WriteResponse writes err as an ErrResponse with the status mapped from its
// code, or data as a 200 JSON body when err is nil.
func WriteResponse(c *gin.Context, err error, data any) {
	if err != nil {
		coder := errorx.ParseCoder(err)
		logger.Warn("[Core] %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(coder.HTTPStatus(), ErrResponse{
			Code:      coder.Code(),
			Message:   coder.String(),
			Detail:    err.Error(),
			Reference: coder.Reference(),
		})
		return
	}

	c.JSON(http.StatusOK, data)
}

// WriteStatus writes data with an explicit success status (201, 202).
func WriteStatus(c *gin.Context, status int, data any) {
	c.JSON(status, data)
}
