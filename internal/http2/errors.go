package http2

import "fmt"

// ErrorCode represents an HTTP/2 error code.
type ErrorCode uint32

// HTTP/2 error codes from RFC 7540 Section 7.
const (
	// ErrCodeNoError (0x0): Graceful shutdown.
	ErrCodeNoError ErrorCode = 0x0
	// ErrCodeProtocolError (0x1): Protocol error detected.
	ErrCodeProtocolError ErrorCode = 0x1
	// ErrCodeInternalError (0x2): Implementation fault.
	ErrCodeInternalError ErrorCode = 0x2
	// ErrCodeFlowControlError (0x3): Flow-control limits exceeded.
	ErrCodeFlowControlError ErrorCode = 0x3
	// ErrCodeSettingsTimeout (0x4): Settings not acknowledged.
	ErrCodeSettingsTimeout ErrorCode = 0x4
	// ErrCodeStreamClosed (0x5): Frame received for already closed stream.
	ErrCodeStreamClosed ErrorCode = 0x5
	// ErrCodeFrameSizeError (0x6): Frame size incorrect.
	ErrCodeFrameSizeError ErrorCode = 0x6
	// ErrCodeRefusedStream (0x7): Stream not processed.
	ErrCodeRefusedStream ErrorCode = 0x7
	// ErrCodeCancel (0x8): Stream cancelled.
	ErrCodeCancel ErrorCode = 0x8
	// ErrCodeCompressionError (0x9): Compression state not maintained.
	ErrCodeCompressionError ErrorCode = 0x9
	// ErrCodeConnectError (0xa): Connection established in error.
	ErrCodeConnectError ErrorCode = 0xa
	// ErrCodeEnhanceYourCalm (0xb): Processing capacity exceeded.
	ErrCodeEnhanceYourCalm ErrorCode = 0xb
	// ErrCodeInadequateSecurity (0xc): Negotiated TLS parameters not acceptable.
	ErrCodeInadequateSecurity ErrorCode = 0xc
	// ErrCodeHTTP11Required (0xd): Use HTTP/1.1 for the request.
	ErrCodeHTTP11Required ErrorCode = 0xd
)

// String returns the string representation of the ErrorCode.
func (e ErrorCode) String() string {
	switch e {
	case ErrCodeNoError:
		return "NO_ERROR"
	case ErrCodeProtocolError:
		return "PROTOCOL_ERROR"
	case ErrCodeInternalError:
		return "INTERNAL_ERROR"
	case ErrCodeFlowControlError:
		return "FLOW_CONTROL_ERROR"
	case ErrCodeSettingsTimeout:
		return "SETTINGS_TIMEOUT"
	case ErrCodeStreamClosed:
		return "STREAM_CLOSED"
	case ErrCodeFrameSizeError:
		return "FRAME_SIZE_ERROR"
	case ErrCodeRefusedStream:
		return "REFUSED_STREAM"
	case ErrCodeCancel:
		return "CANCEL"
	case ErrCodeCompressionError:
		return "COMPRESSION_ERROR"
	case ErrCodeConnectError:
		return "CONNECT_ERROR"
	case ErrCodeEnhanceYourCalm:
		return "ENHANCE_YOUR_CALM"
	case ErrCodeInadequateSecurity:
		return "INADEQUATE_SECURITY"
	case ErrCodeHTTP11Required:
		return "HTTP_1_1_REQUIRED"
	default:
		return fmt.Sprintf("UNKNOWN_ERROR_CODE_%d", uint32(e))
	}
}

// ShutdownHint indicates how the connection should be wound down after
// a session-fatal error.
type ShutdownHint uint8

const (
	// ShutdownHard tears the transport down immediately after the
	// diagnostic close frame is sent.
	ShutdownHard ShutdownHint = iota
	// ShutdownGraceful lets in-flight streams complete before the
	// transport closes.
	ShutdownGraceful
	// ShutdownNone indicates the error does not itself require the
	// connection to close.
	ShutdownNone
)

// String returns the string representation of the ShutdownHint.
func (h ShutdownHint) String() string {
	switch h {
	case ShutdownHard:
		return "HARD_SHUTDOWN"
	case ShutdownGraceful:
		return "GRACEFUL_SHUTDOWN"
	case ShutdownNone:
		return "NO_SHUTDOWN"
	default:
		return fmt.Sprintf("UNKNOWN_SHUTDOWN_HINT_%d", uint8(h))
	}
}

// StreamError represents an error specific to a single HTTP/2 stream.
type StreamError struct {
	StreamID uint32
	Code     ErrorCode
	Msg      string
	Cause    error
}

// Error returns a string representation of the StreamError.
func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("stream error on stream %d: %s (code %s): %s", e.StreamID, e.Msg, e.Code, e.Cause)
	}
	return fmt.Sprintf("stream error on stream %d: %s (code %s)", e.StreamID, e.Msg, e.Code)
}

// Unwrap returns the underlying cause of the error, if any.
func (e *StreamError) Unwrap() error {
	return e.Cause
}

// NewStreamError creates a new StreamError.
func NewStreamError(streamID uint32, code ErrorCode, msg string) *StreamError {
	return &StreamError{StreamID: streamID, Code: code, Msg: msg}
}

// ConnectionError represents a session-fatal error that terminates the
// entire multiplexed connection.
type ConnectionError struct {
	Code  ErrorCode
	Msg   string
	Cause error
	// Hint indicates how the transport should be wound down.
	Hint ShutdownHint
	// DebugData is the human-readable payload carried in the GOAWAY
	// frame sent to the peer. It must never contain stack traces or
	// internals beyond the bounded diagnostic text.
	DebugData []byte
}

// Error returns a string representation of the ConnectionError.
func (e *ConnectionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("connection error: %s (code %s): %s", e.Msg, e.Code, e.Cause)
	}
	return fmt.Sprintf("connection error: %s (code %s)", e.Msg, e.Code)
}

// Unwrap returns the underlying cause of the error, if any.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

// NewConnectionError creates a new ConnectionError with a hard
// shutdown hint.
func NewConnectionError(code ErrorCode, msg string) *ConnectionError {
	return &ConnectionError{Code: code, Msg: msg, Hint: ShutdownHard}
}

// NewConnectionErrorWithCause creates a new ConnectionError with an
// underlying cause and a hard shutdown hint.
func NewConnectionErrorWithCause(code ErrorCode, msg string, cause error) *ConnectionError {
	return &ConnectionError{Code: code, Msg: msg, Cause: cause, Hint: ShutdownHard}
}

// ClosedStreamCreationError indicates the peer attempted to create a
// stream after the connection was already logically closed. It keeps
// ConnectionError semantics but is distinguished so error escalation
// can preserve its code and shutdown hint while replacing its terse
// debug payload with the richer diagnostic text.
type ClosedStreamCreationError struct {
	ConnectionError
}

// NewClosedStreamCreationError creates a ClosedStreamCreationError.
// The hint is graceful: the connection was already winding down when
// the stream creation arrived.
func NewClosedStreamCreationError(code ErrorCode, msg string) *ClosedStreamCreationError {
	return &ClosedStreamCreationError{ConnectionError{Code: code, Msg: msg, Hint: ShutdownGraceful}}
}
