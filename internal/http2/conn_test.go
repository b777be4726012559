package http2

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

type fakeStream struct {
	id         uint32
	state      StreamState
	closedWith error
	closeErr   error
	closeCalls int
}

func (s *fakeStream) ID() uint32         { return s.id }
func (s *fakeStream) State() StreamState { return s.state }

func (s *fakeStream) Close(err error) error {
	s.closeCalls++
	s.closedWith = err
	if s.closeErr != nil {
		return s.closeErr
	}
	s.state = StreamStateClosed
	return nil
}

type goAwayCall struct {
	lastStreamID uint32
	code         ErrorCode
	debugData    string
}

type fakeCodec struct {
	streams      []*fakeStream
	lastStreamID uint32
	goAways      []goAwayCall
	goAwayErr    error
	closeCalls   int
	closeErr     error
}

func (c *fakeCodec) ForEachActiveStream(fn func(CodecStream) bool) {
	for _, s := range c.streams {
		if !fn(s) {
			return
		}
	}
}

func (c *fakeCodec) GoAway(lastStreamID uint32, code ErrorCode, debugData []byte) error {
	c.goAways = append(c.goAways, goAwayCall{lastStreamID, code, string(debugData)})
	return c.goAwayErr
}

func (c *fakeCodec) LastStreamID() uint32 { return c.lastStreamID }

func (c *fakeCodec) Close() error {
	c.closeCalls++
	return c.closeErr
}

type countingObserver struct {
	escalated []ErrorCode
	goAways   []ErrorCode
	closed    int
}

func (o *countingObserver) ConnectionErrorEscalated(code ErrorCode) {
	o.escalated = append(o.escalated, code)
}
func (o *countingObserver) GoAwaySent(code ErrorCode) { o.goAways = append(o.goAways, code) }
func (o *countingObserver) ConnectionClosed()         { o.closed++ }

func TestConnHandlerCloseSweepsStreams(t *testing.T) {
	open := &fakeStream{id: 1, state: StreamStateOpen}
	halfClosed := &fakeStream{id: 3, state: StreamStateHalfClosedRemote}
	alreadyClosed := &fakeStream{id: 5, state: StreamStateClosed}
	codec := &fakeCodec{streams: []*fakeStream{open, halfClosed, alreadyClosed}, lastStreamID: 5}

	h := NewConnHandler(codec, nil)
	if err := h.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	if open.closeCalls != 1 {
		t.Errorf("open stream close calls = %d, want 1", open.closeCalls)
	}
	if halfClosed.closeCalls != 1 {
		t.Errorf("half-closed stream close calls = %d, want 1", halfClosed.closeCalls)
	}
	if alreadyClosed.closeCalls != 0 {
		t.Errorf("already-closed stream close calls = %d, want 0", alreadyClosed.closeCalls)
	}
	for _, s := range []*fakeStream{open, halfClosed, alreadyClosed} {
		if s.State() != StreamStateClosed {
			t.Errorf("stream %d state = %v after Close, want Closed", s.ID(), s.State())
		}
	}
	var streamErr *StreamError
	if !errors.As(open.closedWith, &streamErr) {
		t.Errorf("open stream closed with %T, want *StreamError", open.closedWith)
	} else if streamErr.StreamID != 1 {
		t.Errorf("stream error carries stream ID %d, want 1", streamErr.StreamID)
	}
	if codec.closeCalls != 1 {
		t.Errorf("codec close calls = %d, want 1", codec.closeCalls)
	}
}

func TestConnHandlerCloseIsIdempotent(t *testing.T) {
	open := &fakeStream{id: 1, state: StreamStateOpen}
	codec := &fakeCodec{streams: []*fakeStream{open}}
	h := NewConnHandler(codec, nil)

	if err := h.Close(); err != nil {
		t.Fatalf("first Close returned error: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("second Close returned error: %v", err)
	}
	if codec.closeCalls != 1 {
		t.Errorf("codec close calls = %d, want 1", codec.closeCalls)
	}
	if open.closeCalls != 1 {
		t.Errorf("stream close calls = %d, want 1", open.closeCalls)
	}
}

func TestConnHandlerIsClosing(t *testing.T) {
	codec := &fakeCodec{}
	h := NewConnHandler(codec, nil)

	if h.IsClosing() {
		t.Fatal("IsClosing true before Close")
	}
	if h.IsClosing() {
		t.Fatal("IsClosing mutated state on read")
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if !h.IsClosing() {
		t.Fatal("IsClosing false after Close")
	}
}

func TestConnHandlerErrorEscalation(t *testing.T) {
	open := &fakeStream{id: 7, state: StreamStateOpen}
	codec := &fakeCodec{streams: []*fakeStream{open}, lastStreamID: 7}
	obs := &countingObserver{}
	h := NewConnHandler(codec, nil, WithObserver(obs))

	cause := fmt.Errorf("read frame: %w", errors.New("boom"))
	h2err := NewConnectionError(ErrCodeProtocolError, "bad frame")
	h.OnConnectionError(cause, h2err)

	if len(codec.goAways) != 1 {
		t.Fatalf("GOAWAY count = %d, want 1", len(codec.goAways))
	}
	ga := codec.goAways[0]
	if ga.code != ErrCodeProtocolError {
		t.Errorf("GOAWAY code = %s, want PROTOCOL_ERROR", ga.code)
	}
	if ga.lastStreamID != 7 {
		t.Errorf("GOAWAY last stream ID = %d, want 7", ga.lastStreamID)
	}
	if !strings.HasPrefix(ga.debugData, "type: *http2.ConnectionError, message: bad frame, cause: ") {
		t.Errorf("GOAWAY debug data = %q, want type/message/cause prefix", ga.debugData)
	}
	if !strings.Contains(ga.debugData, "boom") {
		t.Errorf("GOAWAY debug data %q does not mention underlying cause", ga.debugData)
	}
	if !h.IsClosing() {
		t.Error("connection not closing after error escalation")
	}
	if codec.closeCalls != 1 {
		t.Errorf("codec close calls = %d, want 1", codec.closeCalls)
	}
	if open.closeCalls != 1 {
		t.Errorf("stream close calls = %d, want 1", open.closeCalls)
	}
	if len(obs.escalated) != 1 || obs.escalated[0] != ErrCodeProtocolError {
		t.Errorf("observer escalations = %v, want [PROTOCOL_ERROR]", obs.escalated)
	}
	if len(obs.goAways) != 1 {
		t.Errorf("observer GOAWAY count = %d, want 1", len(obs.goAways))
	}
	if obs.closed != 1 {
		t.Errorf("observer close count = %d, want 1", obs.closed)
	}
}

func TestConnHandlerSecondEscalationSuppressed(t *testing.T) {
	codec := &fakeCodec{lastStreamID: 3}
	h := NewConnHandler(codec, nil)

	h.OnConnectionError(errors.New("first"), NewConnectionError(ErrCodeProtocolError, "first"))
	h.OnConnectionError(errors.New("second"), NewConnectionError(ErrCodeInternalError, "second"))

	if len(codec.goAways) != 1 {
		t.Fatalf("GOAWAY count = %d, want 1", len(codec.goAways))
	}
	if codec.goAways[0].code != ErrCodeProtocolError {
		t.Errorf("GOAWAY code = %s, want the first error's PROTOCOL_ERROR", codec.goAways[0].code)
	}
	if codec.closeCalls != 1 {
		t.Errorf("codec close calls = %d, want 1", codec.closeCalls)
	}
}

func TestConnHandlerEscalationAfterClose(t *testing.T) {
	// Close and error escalation latch independently: a connection
	// already closing still reports the error to the peer.
	codec := &fakeCodec{lastStreamID: 1}
	h := NewConnHandler(codec, nil)

	if err := h.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	h.OnConnectionError(nil, NewConnectionError(ErrCodeEnhanceYourCalm, "too many streams"))

	if len(codec.goAways) != 1 {
		t.Fatalf("GOAWAY count = %d, want 1", len(codec.goAways))
	}
	if codec.goAways[0].code != ErrCodeEnhanceYourCalm {
		t.Errorf("GOAWAY code = %s, want ENHANCE_YOUR_CALM", codec.goAways[0].code)
	}
	if codec.closeCalls != 1 {
		t.Errorf("codec close calls = %d, want 1 (second close is a no-op)", codec.closeCalls)
	}
}

func TestConnHandlerCloseProceedsWhenGoAwayFails(t *testing.T) {
	open := &fakeStream{id: 1, state: StreamStateOpen}
	codec := &fakeCodec{streams: []*fakeStream{open}, goAwayErr: errors.New("pipe broken")}
	h := NewConnHandler(codec, nil)

	h.OnConnectionError(nil, NewConnectionError(ErrCodeInternalError, "oops"))

	if codec.closeCalls != 1 {
		t.Errorf("codec close calls = %d, want 1 even when GOAWAY write fails", codec.closeCalls)
	}
	if open.closeCalls != 1 {
		t.Errorf("stream close calls = %d, want 1", open.closeCalls)
	}
}

func TestConnHandlerCloseRequestHookOrdering(t *testing.T) {
	open := &fakeStream{id: 1, state: StreamStateOpen}
	codec := &fakeCodec{streams: []*fakeStream{open}}

	hookRan := false
	h := NewConnHandler(codec, nil, WithOnCloseRequest(func() {
		hookRan = true
		if open.closeCalls != 1 {
			t.Error("close-request hook ran before streams were swept")
		}
		if codec.closeCalls != 0 {
			t.Error("close-request hook ran after the transport closed")
		}
	}))

	if err := h.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
	if !hookRan {
		t.Fatal("close-request hook did not run")
	}
}

func TestGoAwayDebugData(t *testing.T) {
	tests := []struct {
		name  string
		h2err error
		cause error
		want  string
	}{
		{
			name: "all fields missing",
			want: "type: n/a, message: n/a, cause: n/a",
		},
		{
			name:  "cause only",
			cause: errors.New("boom"),
			want:  "type: n/a, message: n/a, cause: *errors.errorString(boom)",
		},
		{
			name:  "connection error with message",
			h2err: NewConnectionError(ErrCodeProtocolError, "bad frame"),
			want:  "type: *http2.ConnectionError, message: bad frame, cause: n/a",
		},
		{
			name:  "closed stream creation error keeps its type",
			h2err: NewClosedStreamCreationError(ErrCodeRefusedStream, "stream after close"),
			want:  "type: *http2.ClosedStreamCreationError, message: stream after close, cause: n/a",
		},
		{
			name:  "connection error without message",
			h2err: &ConnectionError{Code: ErrCodeInternalError},
			want:  "type: *http2.ConnectionError, message: n/a, cause: n/a",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(goAwayDebugData(tt.h2err, tt.cause))
			if got != tt.want {
				t.Errorf("goAwayDebugData() = %q, want %q", got, tt.want)
			}
		})
	}
}
