package mixer

import (
	"errors"
	"fmt"
)

// Sentinel errors. Errors returned by the API wrap one of these and can be
// checked with errors.Is.
var (
	ErrInvalidValue       = errors.New("invalid value")
	ErrInvalidEnum        = errors.New("invalid enum")
	ErrInvalidOperation   = errors.New("invalid operation")
	ErrInvalidName        = errors.New("invalid name")
	ErrOutOfMemory        = errors.New("out of memory")
	ErrDeviceDisconnected = errors.New("device disconnected")
	ErrCycle              = errors.New("effect slot target cycle")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrBufferInUse        = errors.New("buffer in use")
)

// maxObjectIDs bounds the number of live objects of one kind.
const maxObjectIDs = 1 << 25

// ErrorCode classifies an API error.
type ErrorCode int

const (
	NoError ErrorCode = iota
	InvalidName
	InvalidEnum
	InvalidValue
	InvalidOperation
	OutOfMemory
)

var errorCodeSentinels = [...]error{
	InvalidName:      ErrInvalidName,
	InvalidEnum:      ErrInvalidEnum,
	InvalidValue:     ErrInvalidValue,
	InvalidOperation: ErrInvalidOperation,
	OutOfMemory:      ErrOutOfMemory,
}

func (c ErrorCode) String() string {
	switch c {
	case NoError:
		return "no error"
	case InvalidName, InvalidEnum, InvalidValue, InvalidOperation, OutOfMemory:
		return errorCodeSentinels[c].Error()
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
}

// Error is the error type returned by API calls. A call that returns an
// Error has left all state unchanged.
type Error struct {
	Code ErrorCode
	Msg  string

	cause error
}

func (e *Error) Error() string {
	return "mixer: " + e.Code.String() + ": " + e.Msg
}

// Unwrap exposes the sentinel for Code and, when set, the more specific
// cause such as ErrCycle or ErrBufferInUse.
func (e *Error) Unwrap() []error {
	var out []error
	if e.Code > NoError && int(e.Code) < len(errorCodeSentinels) {
		out = append(out, errorCodeSentinels[e.Code])
	}
	if e.cause != nil {
		out = append(out, e.cause)
	}
	return out
}

func newError(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...)}
}

func wrapError(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Msg: fmt.Sprintf(format, args...), cause: cause}
}
