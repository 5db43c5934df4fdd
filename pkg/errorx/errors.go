// Package errorx attaches registered numeric codes to errors so HTTP handlers
// can translate any failure into a stable status and message.
package errorx

import (
	"errors"
	"fmt"
)

type withCode struct {
	msg   string
	code  int
	cause error
}

// WithCode returns a new coded error with a formatted message.
func WithCode(code int, format string, args ...any) error {
	return &withCode{msg: fmt.Sprintf(format, args...), code: code}
}

// WrapC wraps err with a code and a formatted message. A nil err yields nil.
func WrapC(err error, code int, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &withCode{msg: fmt.Sprintf(format, args...), code: code, cause: err}
}

func (w *withCode) Error() string {
	if w.cause == nil {
		return w.msg
	}
	return w.msg + ": " + w.cause.Error()
}

func (w *withCode) Unwrap() error { return w.cause }

// Code returns the numeric code.
func (w *withCode) Code() int { return w.code }

func asWithCode(err error, target **withCode) bool {
	return errors.As(err, target)
}
