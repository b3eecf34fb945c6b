package ws

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"nhooyr.io/websocket"
)

const (
	// sendBufferSize is the number of frames that can be queued for writing.
	sendBufferSize = 16

	// writeTimeout is the max time to wait for a single write to complete.
	writeTimeout = 5 * time.Second

	// dialTimeout caps the opening handshake.
	dialTimeout = 10 * time.Second

	// readLimit is the largest inbound frame accepted.
	readLimit = 64 * 1024
)

// ErrClosed is returned by Read after Close.
var ErrClosed = errors.New("ws: connection closed")

// Conn is a client WebSocket connection with a buffered, non-blocking send
// path. Frames are written in order by a single write pump.
type Conn struct {
	conn *websocket.Conn
	url  string

	mu     sync.Mutex
	send   chan []byte
	closed bool

	pumpDone  chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// Dialer opens Conns to a broker URL.
type Dialer struct{}

// Dial opens a WebSocket to url and starts its write pump.
func (Dialer) Dial(ctx context.Context, url string) (*Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	c, _, err := websocket.Dial(dialCtx, url, nil)
	if err != nil {
		return nil, err
	}
	c.SetReadLimit(readLimit)

	conn := &Conn{
		conn:     c,
		url:      url,
		send:     make(chan []byte, sendBufferSize),
		pumpDone: make(chan struct{}),
	}
	go conn.writePump()
	return conn, nil
}

// Send queues a frame for delivery. Returns false if the connection is
// closed or its buffer is full; the frame is dropped in both cases.
func (c *Conn) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		log.Printf("ws: send buffer full for %s, dropping frame", c.url)
		return false
	}
}

// Read blocks until the next frame arrives. It returns an error once the
// connection is closed by either side.
func (c *Conn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := c.conn.Read(ctx)
	if err != nil {
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return nil, ErrClosed
		}
		return nil, err
	}
	return data, nil
}

// Close stops accepting frames, flushes whatever is queued and performs
// the closing handshake. It is safe to call more than once.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		close(c.send)
		c.mu.Unlock()

		select {
		case <-c.pumpDone:
		case <-time.After(writeTimeout):
			log.Printf("ws: flush to %s timed out", c.url)
		}
		c.closeErr = c.conn.Close(websocket.StatusNormalClosure, "")
	})
	return c.closeErr
}

// writePump drains the send channel, writing each frame to the socket. It
// exits when the channel is closed or a write fails.
func (c *Conn) writePump() {
	defer close(c.pumpDone)
	for msg := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := c.conn.Write(ctx, websocket.MessageText, msg)
		cancel()
		if err != nil {
			log.Printf("ws: write to %s failed: %v", c.url, err)
			for range c.send {
				// Discard the rest; the read side reports the failure.
			}
			return
		}
	}
}
