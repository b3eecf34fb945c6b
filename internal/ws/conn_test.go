package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"nhooyr.io/websocket"
)

// broker is a test server that records every frame it receives and lets
// the test push frames to, or drop, the connected client.
type broker struct {
	mu       sync.Mutex
	received []string
	conn     *websocket.Conn
	echo     bool
}

func newBroker(t *testing.T, echo bool) (*broker, *httptest.Server) {
	t.Helper()
	b := &broker{echo: echo}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept error: %v", err)
			return
		}
		b.mu.Lock()
		b.conn = conn
		b.mu.Unlock()

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}
			b.mu.Lock()
			b.received = append(b.received, string(data))
			b.mu.Unlock()
			if b.echo {
				conn.Write(r.Context(), websocket.MessageText, data)
			}
		}
	}))
	t.Cleanup(ts.Close)
	return b, ts
}

func (b *broker) frames() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	result := make([]string, len(b.received))
	copy(result, b.received)
	return result
}

func (b *broker) serverConn() *websocket.Conn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, ts *httptest.Server) *Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := Dialer{}.Dial(ctx, wsURL(ts))
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	return conn
}

func TestConnSendAndReadEcho(t *testing.T) {
	_, ts := newBroker(t, true)
	conn := dial(t, ts)
	defer conn.Close()

	if !conn.Send([]byte(`{"type":"LOGIN","sender":"alice","content":""}`)) {
		t.Fatal("send should succeed on an open connection")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if !strings.Contains(string(data), `"sender":"alice"`) {
		t.Errorf("unexpected echo %s", data)
	}
}

func TestConnPreservesOrder(t *testing.T) {
	b, ts := newBroker(t, false)
	conn := dial(t, ts)

	for _, f := range []string{"one", "two", "three"} {
		if !conn.Send([]byte(f)) {
			t.Fatalf("send %s failed", f)
		}
	}
	// Close flushes queued frames before the closing handshake.
	if err := conn.Close(); err != nil {
		t.Fatalf("close error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(b.frames()) < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	got := b.frames()
	if strings.Join(got, ",") != "one,two,three" {
		t.Fatalf("expected [one two three], got %v", got)
	}
}

func TestConnSendAfterCloseIsDropped(t *testing.T) {
	_, ts := newBroker(t, false)
	conn := dial(t, ts)
	conn.Close()

	if conn.Send([]byte("late")) {
		t.Fatal("send after close should report a drop")
	}
	// Second close is a no-op.
	conn.Close()
}

func TestConnReadAfterClose(t *testing.T) {
	_, ts := newBroker(t, false)
	conn := dial(t, ts)

	done := make(chan error, 1)
	go func() {
		_, err := conn.Read(context.Background())
		done <- err
	}()

	conn.Close()
	select {
	case err := <-done:
		if !errors.Is(err, ErrClosed) {
			t.Errorf("expected ErrClosed, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("read did not return after close")
	}
}

func TestConnServerClose(t *testing.T) {
	b, ts := newBroker(t, false)
	conn := dial(t, ts)
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for b.serverConn() == nil && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	b.serverConn().Close(websocket.StatusGoingAway, "broker restarting")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := conn.Read(ctx)
	if err == nil {
		t.Fatal("expected read to fail after the broker closed")
	}
	if errors.Is(err, ErrClosed) {
		t.Errorf("a remote close should surface the transport error, got %v", err)
	}
}

func TestConnSendBufferFull(t *testing.T) {
	// No write pump: the buffer fills and further sends are dropped.
	conn := &Conn{url: "ws://test", send: make(chan []byte, sendBufferSize)}

	for i := 0; i < sendBufferSize; i++ {
		if !conn.Send([]byte("msg")) {
			t.Fatalf("send %d should have succeeded", i)
		}
	}
	if conn.Send([]byte("overflow")) {
		t.Fatal("expected send to fail when buffer is full")
	}
	if len(conn.send) != sendBufferSize {
		t.Fatalf("expected the overflow frame to be discarded, queue holds %d", len(conn.send))
	}
}

func TestDialRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := wsURL(ts)
	ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := (Dialer{}).Dial(ctx, url); err == nil {
		t.Fatal("expected dial to fail")
	}
}
