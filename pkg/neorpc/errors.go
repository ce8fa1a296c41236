package neorpc

import (
	"fmt"
)

// Error represents JSON-RPC 2.0 error type.
type Error struct {
	Code    int64  `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

// Standard JSON-RPC 2.0 codes.
const (
	// BadRequestCode is returned on parse error.
	BadRequestCode = -32700
	// InvalidRequestCode is returned on invalid request.
	InvalidRequestCode = -32600
	// MethodNotFoundCode is returned on unknown method calling.
	MethodNotFoundCode = -32601
	// InvalidParamsCode is returned on request with invalid params.
	InvalidParamsCode = -32602
	// InternalServerErrorCode is returned for internal RPC server error.
	InternalServerErrorCode = -32603
)

// Event delivery codes.
const (
	// SessionDeactivatedCode is returned when the subscriber session was torn
	// down concurrently with the call.
	SessionDeactivatedCode = -400
	// TooManySessionsCode is returned when a new subscriber can't be accepted.
	TooManySessionsCode = -401
	// NoSessionRegisteredCode is returned for calls from addresses without
	// any subscriptions.
	NoSessionRegisteredCode = -402
)

var (
	// ErrInvalidParams represents a generic 'invalid parameters' error.
	ErrInvalidParams = NewInvalidParamsError("Invalid params")
	// ErrSessionDeactivated is returned when the session was deactivated.
	ErrSessionDeactivated = NewError(SessionDeactivatedCode, "Session deactivated", "")
	// ErrTooManySessions is returned when the session limit is reached.
	ErrTooManySessions = NewError(TooManySessionsCode, "Too many sessions", "")
	// ErrNoSessionRegistered is returned when there is no session for the
	// caller address.
	ErrNoSessionRegistered = NewError(NoSessionRegisteredCode, "No session registered", "")
	// ErrShuttingDown is returned for waits interrupted by the server shutdown.
	ErrShuttingDown = NewInternalServerError("Server is shutting down")
	// ErrUnknownBlock is returned when there is no block to pop.
	ErrUnknownBlock = NewError(-101, "Unknown block", "")
	// ErrUnknownTransaction is returned for transactions missing from the
	// mempool (or not phased when they must be).
	ErrUnknownTransaction = NewError(-103, "Unknown transaction", "")
	// ErrUnknownPeer is returned for addresses not known to the peer registry.
	ErrUnknownPeer = NewError(-110, "Unknown peer", "")
	// ErrAlreadyExists represents SubmitError with code -501.
	ErrAlreadyExists = NewSubmitError(-501, "Block or transaction already exists and cannot be sent repeatedly.")
	// ErrOutOfMemory represents SubmitError with code -502.
	ErrOutOfMemory = NewSubmitError(-502, "The memory pool is full and no more transactions can be sent.")
	// ErrValidationFailed represents SubmitError with code -504.
	ErrValidationFailed = NewSubmitError(-504, "Block or transaction validation failed.")
	// ErrUnknown represents SubmitError with code -500.
	ErrUnknown = NewSubmitError(-500, "Unknown error.")
)

// NewError is an Error constructor that takes Error contents from its
// parameters.
func NewError(code int64, message string, data string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// NewParseError creates a new error with code
// -32700.
func NewParseError(data string) *Error {
	return NewError(BadRequestCode, "Parse error", data)
}

// NewInvalidRequestError creates a new error with
// code -32600.
func NewInvalidRequestError(data string) *Error {
	return NewError(InvalidRequestCode, "Invalid request", data)
}

// NewMethodNotFoundError creates a new error with
// code -32601.
func NewMethodNotFoundError(data string) *Error {
	return NewError(MethodNotFoundCode, "Method not found", data)
}

// NewInvalidParamsError creates a new error with
// code -32602.
func NewInvalidParamsError(data string) *Error {
	return NewError(InvalidParamsCode, "Invalid params", data)
}

// NewInternalServerError creates a new error with
// code -32603.
func NewInternalServerError(data string) *Error {
	return NewError(InternalServerErrorCode, "Internal error", data)
}

// NewSubmitError creates a new error with
// specified error code and error message.
func NewSubmitError(code int64, message string) *Error {
	return NewError(code, message, "")
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Data) == 0 {
		return fmt.Sprintf("%s (%d)", e.Message, e.Code)
	}
	return fmt.Sprintf("%s (%d) - %s", e.Message, e.Code, e.Data)
}

// Is denotes whether the error matches the target one. Errors are equal if
// their codes are equal, data doesn't matter.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WrapErrorWithData returns copy of the given error with the specified data and cause.
// It does not modify the source error.
func WrapErrorWithData(e *Error, data string) *Error {
	return NewError(e.Code, e.Message, data)
}
