package errorx

import (
	"fmt"
	"net/http"
	"sync"
)

// Coder describes a registered error code.
type Coder interface {
	// Code returns the numeric error code.
	Code() int
	// HTTPStatus returns the status the code maps to.
	HTTPStatus() int
	// String returns the external (user facing) message.
	String() string
	// Reference returns a documentation link, if any.
	Reference() string
}

// unknownCoder is returned for errors that carry no registered code.
var unknownCoder Coder = defaultCoder{code: 1, http: http.StatusInternalServerError, msg: "An internal server error occurred"}

type defaultCoder struct {
	code int
	http int
	msg  string
}

func (d defaultCoder) Code() int         { return d.code }
func (d defaultCoder) HTTPStatus() int   { return d.http }
func (d defaultCoder) String() string    { return d.msg }
func (d defaultCoder) Reference() string { return "" }

var (
	codes   = map[int]Coder{}
	codeMux sync.Mutex
)

// Register records a coder. An existing registration is overwritten.
func Register(c Coder) {
	if c.Code() == 0 {
		panic("code 0 is reserved by errorx")
	}
	codeMux.Lock()
	defer codeMux.Unlock()
	codes[c.Code()] = c
}

// MustRegister records a coder and panics on a duplicate code.
func MustRegister(c Coder) {
	if c.Code() == 0 {
		panic("code 0 is reserved by errorx")
	}
	codeMux.Lock()
	defer codeMux.Unlock()
	if _, ok := codes[c.Code()]; ok {
		panic(fmt.Sprintf("code %d already registered", c.Code()))
	}
	codes[c.Code()] = c
}

// ParseCoder returns the coder of the outermost coded error in err's chain,
// or the unknown coder.
func ParseCoder(err error) Coder {
	if err == nil {
		return nil
	}
	var wc *withCode
	if asWithCode(err, &wc) {
		codeMux.Lock()
		defer codeMux.Unlock()
		if c, ok := codes[wc.code]; ok {
			return c
		}
	}
	return unknownCoder
}

// IsCode reports whether any error in err's chain carries code.
func IsCode(err error, code int) bool {
	for err != nil {
		if wc, ok := err.(*withCode); ok {
			if wc.code == code {
				return true
			}
			err = wc.cause
			continue
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
