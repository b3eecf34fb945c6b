package session

import "context"

// Conn is an open, message-oriented connection to the broker.
type Conn interface {
	// Send queues a frame without blocking. It returns false if the frame
	// was dropped.
	Send(data []byte) bool
	// Read blocks until the next frame or until the connection closes.
	Read(ctx context.Context) ([]byte, error)
	// Close flushes queued frames and closes the connection.
	Close() error
}

// Dialer opens connections to the broker.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// DialerFunc adapts a function to a Dialer.
type DialerFunc func(ctx context.Context, url string) (Conn, error)

// Dial calls f(ctx, url).
func (f DialerFunc) Dial(ctx context.Context, url string) (Conn, error) {
	return f(ctx, url)
}
