package resource

import (
	"errors"
	"fmt"
	"net/http"
)

// GenericMessage is the message sent for failures that carry no status of their own.
const GenericMessage = "Internal Server Error"

// Error is a protocol failure carrying an HTTP-style status and a caller-facing message.
// Only errors of this type are surfaced verbatim over the wire.
type Error struct {
	Status  int
	Message string
	cause   error
}

// NewError creates an Error. An empty message defaults to the status text.
func NewError(status int, message string) *Error {
	if message == "" {
		message = http.StatusText(status)
	}
	return &Error{Status: status, Message: message}
}

// Errorf creates an Error with a formatted message.
func Errorf(status int, format string, args ...interface{}) *Error {
	return NewError(status, fmt.Sprintf(format, args...))
}

// WithCause attaches an underlying error for logging; it is never sent to callers.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%d %s: %v", e.Status, e.Message, e.cause)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// BadRequest returns a 400 error.
func BadRequest(message string) *Error { return NewError(http.StatusBadRequest, message) }

// NotFound returns a 404 error.
func NotFound(message string) *Error { return NewError(http.StatusNotFound, message) }

// TooManyRequests returns a 429 error.
func TooManyRequests() *Error { return NewError(http.StatusTooManyRequests, "") }

// ServiceUnavailable returns a 503 error.
func ServiceUnavailable() *Error { return NewError(http.StatusServiceUnavailable, "") }

// GatewayTimeout returns a 504 error.
func GatewayTimeout() *Error { return NewError(http.StatusGatewayTimeout, "") }

// DecodeError reports a request envelope that could not be parsed.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("JSON parse error: %v", e.Err) }

func (e *DecodeError) Unwrap() error { return e.Err }

// StatusOf returns the status and message to send for err. Errors without a
// status collapse to 500 with the generic message.
func StatusOf(err error) (int, string) {
	var rerr *Error
	if errors.As(err, &rerr) && rerr.Status != 0 {
		return rerr.Status, rerr.Message
	}
	return http.StatusInternalServerError, GenericMessage
}
