package session

import (
	"context"
	"log"
	"time"

	"github.com/christopherjohns/chatsphere-client/internal/observability"
)

// Controller owns the socket, the lifecycle state machine and the reconnect
// policy. It is not safe for concurrent use: every method, including Handle,
// must be called by one owner that serializes access (the Engine).
//
// Transport and timer notifications are produced on other goroutines and
// handed to deliver, which must route them back to Handle under the owner's
// lock.
type Controller struct {
	dialer  Dialer
	url     string
	clock   Clock
	deliver func(Event)

	// onOpen runs after the transition to Connected; onFrame runs for each
	// frame received while Connected.
	onOpen  func()
	onFrame func(data []byte)

	state    State
	username string
	attempt  int
	retryIn  time.Duration

	gen        uint64
	conn       Conn
	cancelDial context.CancelFunc
	timer      Timer
	// sockDone is closed once the goroutine owning the latest socket exits.
	sockDone chan struct{}
}

func newController(dialer Dialer, url string, clock Clock, deliver func(Event)) *Controller {
	return &Controller{
		dialer:  dialer,
		url:     url,
		clock:   clock,
		deliver: deliver,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State { return c.state }

// Username returns the name the session logs in with.
func (c *Controller) Username() string { return c.username }

// Attempt returns the reconnect attempt counter.
func (c *Controller) Attempt() int { return c.attempt }

// RetryIn returns the delay of the pending retry, or zero if none is pending.
func (c *Controller) RetryIn() time.Duration {
	if c.state != Reconnecting {
		return 0
	}
	return c.retryIn
}

// Connect leaves Disconnected and dials. It reports false, changing
// nothing, if username is empty or the session is already active.
func (c *Controller) Connect(username string) bool {
	if username == "" || c.state != Disconnected {
		return false
	}
	c.username = username
	c.attempt = 0
	c.dial()
	return true
}

// Disconnect cancels any pending retry or dial and returns to
// Disconnected. The retry timer is stopped before Disconnect returns. The
// open socket, if any, is returned for the caller to close outside its
// lock.
func (c *Controller) Disconnect() Conn {
	if c.state == Disconnected {
		return nil
	}
	c.stopTimer()
	if c.cancelDial != nil {
		c.cancelDial()
		c.cancelDial = nil
	}
	// Invalidate every in-flight event of the abandoned generation.
	c.gen++

	conn := c.conn
	c.conn = nil
	c.attempt = 0
	c.retryIn = 0
	c.setState(Disconnected)
	return conn
}

// ReconnectNow skips the pending backoff and dials immediately. It only
// applies while Reconnecting.
func (c *Controller) ReconnectNow() bool {
	if c.state != Reconnecting {
		return false
	}
	c.stopTimer()
	c.attempt++
	observability.IncReconnect()
	c.dial()
	return true
}

// Send transmits a frame if the socket is open and drops it otherwise.
func (c *Controller) Send(data []byte) bool {
	if c.state != Connected || c.conn == nil {
		return false
	}
	return c.conn.Send(data)
}

// Handle applies one transport or timer event to the state machine.
func (c *Controller) Handle(ev Event) {
	if ev.Gen != c.gen {
		if ev.Kind == EventOpened && ev.Conn != nil {
			// Dial finished after the attempt was abandoned.
			go ev.Conn.Close()
		}
		return
	}

	switch ev.Kind {
	case EventOpened:
		if c.state != Connecting {
			go ev.Conn.Close()
			return
		}
		c.conn = ev.Conn
		c.cancelDial = nil
		c.attempt = 0
		c.setState(Connected)
		if c.onOpen != nil {
			c.onOpen()
		}

	case EventFrame:
		if c.state == Connected && c.onFrame != nil {
			c.onFrame(ev.Data)
		}

	case EventClosed:
		if c.state != Connecting && c.state != Connected {
			return
		}
		if ev.Err != nil {
			log.Printf("session: connection to %s closed: %v", c.url, ev.Err)
		}
		c.conn = nil
		c.cancelDial = nil
		c.setState(Reconnecting)
		c.scheduleRetry()

	case EventRetry:
		if c.state != Reconnecting {
			return
		}
		c.timer = nil
		c.attempt++
		observability.IncReconnect()
		c.dial()
	}
}

// dial starts a new generation and opens its socket in the background.
func (c *Controller) dial() {
	c.gen++
	gen := c.gen

	ctx, cancel := context.WithCancel(context.Background())
	c.cancelDial = cancel

	prev := c.sockDone
	done := make(chan struct{})
	c.sockDone = done

	c.setState(Connecting)
	go c.run(ctx, gen, prev, done)
}

// run owns one socket for its whole life: it waits for the previous socket
// to be gone, dials, then reads until the socket closes.
func (c *Controller) run(ctx context.Context, gen uint64, prev <-chan struct{}, done chan struct{}) {
	defer close(done)
	if prev != nil {
		<-prev
	}

	conn, err := c.dialer.Dial(ctx, c.url)
	if err != nil {
		c.deliver(Event{Kind: EventClosed, Gen: gen, Err: err})
		return
	}
	c.deliver(Event{Kind: EventOpened, Gen: gen, Conn: conn})

	for {
		data, err := conn.Read(context.Background())
		if err != nil {
			conn.Close()
			c.deliver(Event{Kind: EventClosed, Gen: gen, Err: err})
			return
		}
		c.deliver(Event{Kind: EventFrame, Gen: gen, Data: data})
	}
}

func (c *Controller) scheduleRetry() {
	gen := c.gen
	c.retryIn = Backoff(c.attempt + 1)
	log.Printf("session: reconnecting as %s in %v (attempt %d)", c.username, c.retryIn, c.attempt+1)
	c.timer = c.clock.AfterFunc(c.retryIn, func() {
		c.deliver(Event{Kind: EventRetry, Gen: gen})
	})
}

func (c *Controller) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) setState(s State) {
	c.state = s
	observability.SetState(s.String())
}
