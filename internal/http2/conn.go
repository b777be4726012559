// Package http2 manages the lifecycle of multiplexed HTTP/2
// connections: escalation of session-fatal errors into GOAWAY frames
// and deterministic teardown of every active stream.
//
// The package does not speak the wire protocol itself. Frame encoding
// and stream bookkeeping live behind the Codec interface, so the
// lifecycle rules can be exercised against any codec implementation.
package http2

import (
	"fmt"
	"sync"

	"example.com/hostwire/internal/logger"
	"example.com/hostwire/internal/util"
)

// Codec is the boundary between connection lifecycle management and
// the wire protocol. Implementations own framing, stream bookkeeping
// and the underlying transport.
type Codec interface {
	// ForEachActiveStream calls fn for every stream the codec still
	// tracks. Iteration stops if fn returns false.
	ForEachActiveStream(fn func(CodecStream) bool)
	// GoAway sends a GOAWAY frame carrying the given last stream ID,
	// error code and debug payload.
	GoAway(lastStreamID uint32, code ErrorCode, debugData []byte) error
	// LastStreamID returns the highest peer-initiated stream ID the
	// codec has processed.
	LastStreamID() uint32
	// Close tears down the underlying transport.
	Close() error
}

// CodecStream is a single multiplexed stream as seen by the lifecycle
// manager.
type CodecStream interface {
	ID() uint32
	State() StreamState
	// Close terminates the stream, delivering err to any pending
	// readers or writers.
	Close(err error) error
}

// Observer receives lifecycle notifications, typically to feed
// metrics.
type Observer interface {
	ConnectionErrorEscalated(code ErrorCode)
	GoAwaySent(code ErrorCode)
	ConnectionClosed()
}

// connState tracks whether a session-fatal error has already been
// escalated on this connection.
type connState int

const (
	connStateOpen connState = iota
	connStateErrorHandled
)

// ConnHandler applies the connection lifecycle rules to a single
// codec: at most one error escalation per connection, GOAWAY with a
// bounded diagnostic payload, then a close that sweeps every stream
// that is not already closed.
//
// All methods are safe for concurrent use.
type ConnHandler struct {
	codec Codec
	log   *logger.Logger

	mu      sync.Mutex
	state   connState
	closing bool

	onCloseRequest func()
	observer       Observer
}

// ConnHandlerOption configures a ConnHandler.
type ConnHandlerOption func(*ConnHandler)

// WithOnCloseRequest registers fn to run once, after the stream sweep
// and before the codec transport is closed.
func WithOnCloseRequest(fn func()) ConnHandlerOption {
	return func(h *ConnHandler) { h.onCloseRequest = fn }
}

// WithObserver registers an Observer for lifecycle events.
func WithObserver(obs Observer) ConnHandlerOption {
	return func(h *ConnHandler) { h.observer = obs }
}

// NewConnHandler creates a ConnHandler driving the given codec.
// log may be nil, in which case lifecycle events are not logged.
func NewConnHandler(codec Codec, log *logger.Logger, opts ...ConnHandlerOption) *ConnHandler {
	h := &ConnHandler{
		codec: codec,
		log:   log,
		state: connStateOpen,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// IsClosing reports whether Close has been requested. It never
// mutates state.
func (h *ConnHandler) IsClosing() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closing
}

// OnConnectionError escalates a session-fatal error: it sends a
// single GOAWAY frame describing the failure, then closes the
// connection. h2err is the protocol-level error, if one was
// identified; cause is the underlying fault. Either may be nil.
//
// Only the first call on a connection escalates. Subsequent calls are
// no-ops; the teardown triggered by the first call is already in
// flight.
func (h *ConnHandler) OnConnectionError(cause, h2err error) {
	h.mu.Lock()
	if h.state == connStateErrorHandled {
		h.mu.Unlock()
		return
	}
	h.state = connStateErrorHandled
	h.mu.Unlock()

	// A specific protocol error keeps its code and shutdown hint; a
	// bare cause escalates as an internal error with a hard shutdown.
	code := ErrCodeInternalError
	hint := ShutdownHard
	switch e := h2err.(type) {
	case *ClosedStreamCreationError:
		code, hint = e.Code, e.Hint
	case *ConnectionError:
		code, hint = e.Code, e.Hint
	}

	debugData := goAwayDebugData(h2err, cause)
	if h.observer != nil {
		h.observer.ConnectionErrorEscalated(code)
	}
	if h.log != nil {
		h.log.Error("connection error, sending GOAWAY", logger.LogFields{
			"error_code":     code.String(),
			"shutdown_hint":  hint.String(),
			"last_stream_id": h.codec.LastStreamID(),
			"goaway_debug":   string(debugData),
		})
	}

	if err := h.codec.GoAway(h.codec.LastStreamID(), code, debugData); err != nil {
		if h.log != nil {
			h.log.Warn("failed to send GOAWAY frame", logger.LogFields{"error": err})
		}
	} else if h.observer != nil {
		h.observer.GoAwaySent(code)
	}

	// The close proceeds regardless of whether the GOAWAY made it
	// onto the wire.
	_ = h.Close()
}

// Close requests connection teardown. Every stream that is not
// already closed is closed first, then the close-request hook runs,
// then the codec transport is closed. Close is idempotent: only the
// first call performs the teardown.
func (h *ConnHandler) Close() error {
	h.mu.Lock()
	if h.closing {
		h.mu.Unlock()
		return nil
	}
	h.closing = true
	onClose := h.onCloseRequest
	h.mu.Unlock()

	h.codec.ForEachActiveStream(func(s CodecStream) bool {
		if s.State() != StreamStateClosed {
			streamErr := NewStreamError(s.ID(), ErrCodeCancel, "connection closing")
			if err := s.Close(streamErr); err != nil && h.log != nil {
				h.log.Warn("failed to close stream during connection teardown", logger.LogFields{
					"stream_id": s.ID(),
					"error":     err,
				})
			}
		}
		return true
	})

	if onClose != nil {
		onClose()
	}

	err := h.codec.Close()
	if h.observer != nil {
		h.observer.ConnectionClosed()
	}
	if h.log != nil {
		h.log.Debug("connection closed", logger.LogFields{
			"last_stream_id": h.codec.LastStreamID(),
		})
	}
	return err
}

// goAwayDebugData renders the diagnostic payload carried in a GOAWAY
// frame. Missing fields render as "n/a". The cause, when present, is
// the unwrap chain of the error, never a stack trace.
func goAwayDebugData(h2err, cause error) []byte {
	typ := "n/a"
	msg := "n/a"
	if h2err != nil {
		typ = fmt.Sprintf("%T", h2err)
		switch e := h2err.(type) {
		case *ClosedStreamCreationError:
			if e.Msg != "" {
				msg = e.Msg
			}
		case *ConnectionError:
			if e.Msg != "" {
				msg = e.Msg
			}
		default:
			if s := h2err.Error(); s != "" {
				msg = s
			}
		}
	}
	causeText := "n/a"
	if cause != nil {
		if t := util.TraceText(cause); t != "" {
			causeText = t
		}
	}
	return []byte(fmt.Sprintf("type: %s, message: %s, cause: %s", typ, msg, causeText))
}
