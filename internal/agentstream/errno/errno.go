// Package errno defines the error taxonomy of the streaming engine.
package errno

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection means the stream channel failed to open or dropped mid-turn.
	ErrConnection = errors.New("stream connection error")
	// ErrProtocol means an inbound event could not be parsed into a known shape.
	ErrProtocol = errors.New("stream protocol error")
	// ErrToolExecution means a tool reported a failed completion.
	ErrToolExecution = errors.New("tool execution error")
	// ErrPersistence means a conversation store call failed.
	ErrPersistence = errors.New("persistence error")

	ErrTurnInProgress  = errors.New("a turn is already in progress for this conversation")
	ErrNoConversation  = errors.New("no conversation selected")
	ErrEngineClosed    = errors.New("engine is closed")
	ErrChannelClosed   = errors.New("stream channel closed")
	ErrEmptySubmission = errors.New("message is empty")
)

// Kind names one of the four engine error classes.
type Kind string

const (
	KindConnection    Kind = "connection"
	KindProtocol      Kind = "protocol"
	KindToolExecution Kind = "tool_execution"
	KindPersistence   Kind = "persistence"
)

var kindSentinels = map[Kind]error{
	KindConnection:    ErrConnection,
	KindProtocol:      ErrProtocol,
	KindToolExecution: ErrToolExecution,
	KindPersistence:   ErrPersistence,
}

// StreamError is a classified engine error. It matches its Kind sentinel
// under errors.Is and unwraps to the underlying cause.
type StreamError struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *StreamError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Code != "" {
		msg = fmt.Sprintf("%s (code=%s)", msg, e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StreamError) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *StreamError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

func newErr(kind Kind, err error, format string, args ...any) *StreamError {
	return &StreamError{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Connection classifies err as a connection failure.
func Connection(err error, format string, args ...any) *StreamError {
	return newErr(KindConnection, err, format, args...)
}

// Protocol classifies err as a malformed inbound event.
func Protocol(err error, format string, args ...any) *StreamError {
	return newErr(KindProtocol, err, format, args...)
}

// ToolExecution builds an error for a failed tool completion.
func ToolExecution(toolName, message string) *StreamError {
	return &StreamError{Kind: KindToolExecution, Message: fmt.Sprintf("tool %s failed: %s", toolName, message)}
}

// Persistence classifies err as a store failure.
func Persistence(err error, format string, args ...any) *StreamError {
	return newErr(KindPersistence, err, format, args...)
}

// KindOf returns the kind of the first StreamError in err's chain.
func KindOf(err error) (Kind, bool) {
	var se *StreamError
	if errors.As(err, &se) {
		return se.Kind, true
	}
	return "", false
}
