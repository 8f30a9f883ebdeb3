package session

import "fmt"

type ErrorCode string

const (
	ErrorInvalidInput ErrorCode = "INVALID_INPUT"
	ErrorOutOfOrder   ErrorCode = "OUT_OF_ORDER"
	ErrorInvalidRole  ErrorCode = "INVALID_ROLE"
)

// Error is returned by Session mutators. The transcript is never modified
// when an Error is returned.
type Error struct {
	Code   ErrorCode
	Reason string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("session: %s (%s)", e.Code, e.Reason)
}

func newError(code ErrorCode, reason string) *Error {
	return &Error{Code: code, Reason: reason}
}
