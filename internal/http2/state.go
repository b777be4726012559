package http2

// StreamState represents the state of an HTTP/2 stream, as defined in
// RFC 7540 Section 5.1.
type StreamState int

const (
	// StreamStateIdle means the stream is not yet active.
	StreamStateIdle StreamState = iota
	// StreamStateReservedLocal means the stream was reserved by a
	// PUSH_PROMISE sent by us.
	StreamStateReservedLocal
	// StreamStateReservedRemote means the stream was reserved by a
	// PUSH_PROMISE sent by the peer.
	StreamStateReservedRemote
	// StreamStateOpen means the stream is active and both sides may
	// send frames.
	StreamStateOpen
	// StreamStateHalfClosedLocal means we have sent END_STREAM.
	StreamStateHalfClosedLocal
	// StreamStateHalfClosedRemote means the peer has sent END_STREAM.
	StreamStateHalfClosedRemote
	// StreamStateClosed means the stream is terminated.
	StreamStateClosed
)

// String returns the name of the stream state.
func (s StreamState) String() string {
	switch s {
	case StreamStateIdle:
		return "Idle"
	case StreamStateReservedLocal:
		return "ReservedLocal"
	case StreamStateReservedRemote:
		return "ReservedRemote"
	case StreamStateOpen:
		return "Open"
	case StreamStateHalfClosedLocal:
		return "HalfClosedLocal"
	case StreamStateHalfClosedRemote:
		return "HalfClosedRemote"
	case StreamStateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}
