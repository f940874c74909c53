package errors

// ErrorCategory classifies errors by how the owning role reacts to them.
type ErrorCategory string

const (
	// CategoryTransient covers per-connection failures. The connection is
	// closed and the role loops back to its initial state.
	CategoryTransient ErrorCategory = "transient"

	// CategoryClosed is an orderly peer shutdown.
	CategoryClosed ErrorCategory = "closed"

	// CategoryFatal covers startup resource failures (bind, log sink).
	CategoryFatal ErrorCategory = "fatal"

	// CategoryPermanent covers failures a retry cannot fix.
	CategoryPermanent ErrorCategory = "permanent"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRecoverable reports whether the role may continue after an error of
// this category.
func (c ErrorCategory) IsRecoverable() bool {
	switch c {
	case CategoryTransient, CategoryClosed:
		return true
	default:
		return false
	}
}

// ErrorCode identifies a specific failure.
type ErrorCode string

const (
	// Transient
	ErrCodeConnRefused ErrorCode = "CONN_REFUSED" // No listener at the endpoint
	ErrCodeNetworkErr  ErrorCode = "NETWORK_ERR"  // Reset, broken pipe, unreachable
	ErrCodeTimeout     ErrorCode = "TIMEOUT"      // Readiness wait expired

	// Closed
	ErrCodePeerClosed ErrorCode = "PEER_CLOSED" // Zero-length read

	// Fatal
	ErrCodeBindFailed ErrorCode = "BIND_FAILED" // Address in use or invalid
	ErrCodeLogSink    ErrorCode = "LOG_SINK"    // Log file cannot be opened or written

	// Permanent
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"   // Bad configuration
	ErrCodeInvalidState ErrorCode = "INVALID_STATE"   // Forbidden state transition
	ErrCodeCanceled     ErrorCode = "CANCELED"        // Context canceled
	ErrCodeExhausted    ErrorCode = "RETRY_EXHAUSTED" // Connect budget used up
	ErrCodeInternal     ErrorCode = "INTERNAL"        // Anything else
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeConnRefused, ErrCodeNetworkErr, ErrCodeTimeout:
		return CategoryTransient
	case ErrCodePeerClosed:
		return CategoryClosed
	case ErrCodeBindFailed, ErrCodeLogSink:
		return CategoryFatal
	case ErrCodeInvalidInput, ErrCodeInvalidState, ErrCodeCanceled, ErrCodeExhausted:
		return CategoryPermanent
	default:
		return CategoryPermanent
	}
}

var codeDescriptions = map[ErrorCode]string{
	ErrCodeConnRefused:  "server not responding",
	ErrCodeNetworkErr:   "unexpected socket error",
	ErrCodeTimeout:      "readiness wait timed out",
	ErrCodePeerClosed:   "connection closed by peer",
	ErrCodeBindFailed:   "cannot bind listener",
	ErrCodeLogSink:      "cannot open log sink",
	ErrCodeInvalidInput: "invalid input provided",
	ErrCodeInvalidState: "invalid connection state transition",
	ErrCodeCanceled:     "operation canceled",
	ErrCodeExhausted:    "connect attempts exhausted",
	ErrCodeInternal:     "internal error",
}

// Description returns a human-readable description for the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}
