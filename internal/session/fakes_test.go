package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var (
	errFakeClosed = errors.New("fake: connection closed")
	errFakeDial   = errors.New("fake: connection refused")
)

// fakeConn is an in-memory broker connection. Frames pushed with deliver are
// returned by Read; Close (from either side) ends the read loop.
type fakeConn struct {
	dialer *fakeDialer

	mu   sync.Mutex
	sent [][]byte

	inbound   chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func (c *fakeConn) Send(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	select {
	case <-c.closed:
		return false
	default:
	}
	c.sent = append(c.sent, data)
	return true
}

func (c *fakeConn) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-c.inbound:
		return data, nil
	case <-c.closed:
		return nil, errFakeClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		close(c.closed)
		c.mu.Unlock()
		c.dialer.release()
	})
	return nil
}

// deliver pushes a frame from the broker.
func (c *fakeConn) deliver(t *testing.T, frame string) {
	t.Helper()
	select {
	case c.inbound <- []byte(frame):
	case <-time.After(2 * time.Second):
		t.Fatalf("frame %s was not read", frame)
	}
}

func (c *fakeConn) sentFrames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	result := make([]string, len(c.sent))
	for i, f := range c.sent {
		result[i] = string(f)
	}
	return result
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// fakeDialer hands out fakeConns and records how many are open at once.
type fakeDialer struct {
	mu      sync.Mutex
	conns   []*fakeConn
	dials   int
	failN   int
	open    int
	maxOpen int
}

func (d *fakeDialer) Dial(ctx context.Context, url string) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.failN > 0 {
		d.failN--
		return nil, errFakeDial
	}
	c := &fakeConn{
		dialer:  d,
		inbound: make(chan []byte),
		closed:  make(chan struct{}),
	}
	d.conns = append(d.conns, c)
	d.open++
	if d.open > d.maxOpen {
		d.maxOpen = d.open
	}
	return c, nil
}

func (d *fakeDialer) release() {
	d.mu.Lock()
	d.open--
	d.mu.Unlock()
}

// failNext makes the next n dials fail.
func (d *fakeDialer) failNext(n int) {
	d.mu.Lock()
	d.failN = n
	d.mu.Unlock()
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conns) == 0 {
		return nil
	}
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) peakOpen() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.maxOpen
}

// fakeClock is a Clock whose timers only fire when the test says so.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func (t *fakeTimer) isStopped() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	return t.stopped
}

// pending returns timers that have neither fired nor been stopped.
func (c *fakeClock) pending() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var result []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			result = append(result, t)
		}
	}
	return result
}

// fire runs the timer's callback if it is still pending.
func (t *fakeTimer) fire() {
	t.clock.mu.Lock()
	if t.stopped || t.fired {
		t.clock.mu.Unlock()
		return
	}
	t.fired = true
	t.clock.mu.Unlock()
	t.f()
}

// fireLate runs the callback even if the timer was stopped, like a runtime
// timer that had already fired when Stop was called.
func (t *fakeTimer) fireLate() {
	t.clock.mu.Lock()
	t.fired = true
	t.clock.mu.Unlock()
	t.f()
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
