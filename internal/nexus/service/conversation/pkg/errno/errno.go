package errno

import (
	"errors"
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrInvalidRole          = errors.New("invalid message role")
	ErrMissingToolName      = errors.New("tool name is required")
)
