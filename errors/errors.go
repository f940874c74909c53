package errors

import (
	"fmt"
	"time"
)

// Error is a coded, categorised error raised by the protocol roles.
type Error struct {
	code      ErrorCode
	category  ErrorCategory
	message   string
	cause     error
	metadata  map[string]string
	timestamp time.Time
	connID    string // connection the failure belongs to, if any
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the error code.
func (e *Error) Code() ErrorCode {
	return e.code
}

// Category returns the error category.
func (e *Error) Category() ErrorCategory {
	return e.category
}

// Recoverable reports whether the role may continue after this error.
func (e *Error) Recoverable() bool {
	return e.category.IsRecoverable()
}

// Metadata returns a copy of the error metadata.
func (e *Error) Metadata() map[string]string {
	result := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		result[k] = v
	}
	return result
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Timestamp returns when the error occurred.
func (e *Error) Timestamp() time.Time {
	return e.timestamp
}

// ConnID returns the id of the connection the error belongs to, if set.
func (e *Error) ConnID() string {
	return e.connID
}

// Option is a functional option for configuring an Error.
type Option func(*Error)

// WithCategory overrides the default category.
func WithCategory(cat ErrorCategory) Option {
	return func(e *Error) {
		e.category = cat
	}
}

// WithMetadata adds a metadata key-value pair.
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// WithConnID sets the connection id.
func WithConnID(id string) Option {
	return func(e *Error) {
		e.connID = id
	}
}

// WithCause sets the underlying cause.
func WithCause(cause error) Option {
	return func(e *Error) {
		e.cause = cause
	}
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string, opts ...Option) *Error {
	e := &Error{
		code:      code,
		category:  code.DefaultCategory(),
		message:   message,
		timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FromCode creates an error with the default description for the code.
func FromCode(code ErrorCode, opts ...Option) *Error {
	return New(code, code.Description(), opts...)
}

// InvalidInput creates an invalid input error.
func InvalidInput(message string, opts ...Option) *Error {
	return New(ErrCodeInvalidInput, message, opts...)
}

// InvalidState creates an invalid state transition error.
func InvalidState(from, to string, opts ...Option) *Error {
	return New(ErrCodeInvalidState, fmt.Sprintf("invalid transition %s -> %s", from, to), opts...)
}

// BindFailed creates a fatal bind error for addr.
func BindFailed(addr string, cause error) *Error {
	return New(ErrCodeBindFailed, fmt.Sprintf("cannot bind %s", addr),
		WithCause(cause), WithMetadata("addr", addr))
}

// LogSink creates a fatal log sink error for path.
func LogSink(path string, cause error) *Error {
	return New(ErrCodeLogSink, fmt.Sprintf("cannot open log sink %s", path),
		WithCause(cause), WithMetadata("path", path))
}
