package session

// EventKind identifies a transport or timer notification.
type EventKind int

const (
	// EventOpened reports that a dial succeeded.
	EventOpened EventKind = iota
	// EventFrame carries one inbound frame.
	EventFrame
	// EventClosed reports that a dial failed or an open socket closed.
	EventClosed
	// EventRetry reports that the backoff timer fired.
	EventRetry
)

func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventFrame:
		return "frame"
	case EventClosed:
		return "closed"
	case EventRetry:
		return "retry"
	}
	return "unknown"
}

// Event is a notification for the state machine. Gen is the connection
// generation the event belongs to; events from an earlier generation are
// stale and ignored.
type Event struct {
	Kind EventKind
	Gen  uint64
	Conn Conn
	Data []byte
	Err  error
}
