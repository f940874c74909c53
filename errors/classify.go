package errors

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"syscall"
)

// Classify maps a raw transport error onto a coded Error.
// If err is nil, Classify returns nil. Errors that are already coded are
// returned unchanged.
func Classify(err error, opts ...Option) *Error {
	if err == nil {
		return nil
	}

	var coded *Error
	if errors.As(err, &coded) {
		return coded
	}

	opts = append(opts, WithCause(err))
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return New(ErrCodePeerClosed, ErrCodePeerClosed.Description(), opts...)
	case errors.Is(err, context.Canceled):
		return New(ErrCodeCanceled, ErrCodeCanceled.Description(), opts...)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return New(ErrCodeTimeout, ErrCodeTimeout.Description(), opts...)
	case errors.Is(err, syscall.ECONNREFUSED):
		return New(ErrCodeConnRefused, ErrCodeConnRefused.Description(), opts...)
	case errors.Is(err, syscall.EADDRINUSE):
		return New(ErrCodeBindFailed, ErrCodeBindFailed.Description(), opts...)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return New(ErrCodeTimeout, ErrCodeTimeout.Description(), opts...)
		}
		return New(ErrCodeNetworkErr, ErrCodeNetworkErr.Description(), opts...)
	}
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return New(ErrCodeNetworkErr, ErrCodeNetworkErr.Description(), opts...)
	}

	return New(ErrCodeInternal, ErrCodeInternal.Description(), opts...)
}

// Wrap wraps an error with additional context while preserving the error chain.
// If err is nil, Wrap returns nil. The code and category of a coded error are
// kept; anything else is classified first.
func Wrap(err error, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	inner := Classify(err)
	wrapped := &Error{
		code:      inner.code,
		category:  inner.category,
		message:   message,
		cause:     inner,
		metadata:  inner.Metadata(),
		timestamp: inner.timestamp,
		connID:    inner.connID,
	}
	for _, opt := range opts {
		opt(wrapped)
	}
	return wrapped
}

// Is checks if the first coded error in the chain has the given code.
func Is(err error, code ErrorCode) bool {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.code == code
	}
	return false
}

// IsCategory checks if the first coded error in the chain has the given category.
func IsCategory(err error, category ErrorCategory) bool {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.category == category
	}
	return false
}

// IsFatal reports whether err must abort the process.
func IsFatal(err error) bool {
	return IsCategory(err, CategoryFatal)
}

// IsRecoverable reports whether the role may continue after err.
// Uncoded errors are classified first.
func IsRecoverable(err error) bool {
	if err == nil {
		return true
	}
	return Classify(err).Recoverable()
}

// Code extracts the error code from an error, if available.
func Code(err error) ErrorCode {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.code
	}
	return ""
}
