package gateway

import (
	"errors"
	"fmt"
)

// Error codes surfaced by the SDK. Codes carried in gateway error payloads
// are forwarded verbatim and may fall outside this list.
const (
	CodeHTTPError       = "HTTP_ERROR"
	CodeInvalidResponse = "INVALID_RESPONSE"
	CodeValidationError = "VALIDATION_ERROR"
	CodeSSEParseError   = "SSE_PARSE_ERROR"
	CodeStreamError     = "STREAM_ERROR"
	CodeNoSession       = "NO_SESSION"
	CodeNoUsage         = "NO_USAGE"
)

// Error is the error type returned by every operation in this package.
type Error struct {
	Code    string
	Message string

	// RawText holds the model's raw output when object validation fails,
	// so callers can inspect what the gateway actually produced.
	RawText string

	Err error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a gateway Error with the given code and message.
func NewError(code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// ErrorCode extracts the gateway error code from err, or "" if err is not a
// gateway Error.
func ErrorCode(err error) string {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return ""
}
