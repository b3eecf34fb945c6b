// Package session implements the client side of a chat session: the
// connection lifecycle with reconnect backoff, idempotent ingestion of
// inbound messages, optimistic local echo and derived presence.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/christopherjohns/chatsphere-client/internal/dedup"
	"github.com/christopherjohns/chatsphere-client/internal/message"
	"github.com/christopherjohns/chatsphere-client/internal/observability"
	"github.com/christopherjohns/chatsphere-client/internal/presence"
)

var (
	// ErrEmptyUsername is returned by Login when no username is given.
	ErrEmptyUsername = errors.New("session: username is required")
	// ErrSessionActive is returned by Login unless the session is Disconnected.
	ErrSessionActive = errors.New("session: already logged in")
	// ErrNotLoggedIn is returned by send intents before the first Login.
	ErrNotLoggedIn = errors.New("session: not logged in")
	// ErrNoUploader is returned by SendFile when no upload endpoint is configured.
	ErrNoUploader = errors.New("session: no upload endpoint configured")
)

// Uploader stores a file and returns the URL it can be fetched from.
type Uploader interface {
	Upload(ctx context.Context, filename string, body io.Reader) (string, error)
}

// Snapshot is a consistent view of the session for the rendering layer.
type Snapshot struct {
	// Session increases on every Login. Messages restart from empty
	// whenever it changes.
	Session     uint64
	State       State
	Username    string
	Attempt     int
	RetryIn     time.Duration
	ActiveUsers []string
	Messages    []message.Message
	// Notice is a transient status line, such as a failed upload.
	Notice string
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock and retry timer.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithSeenStore sets how the dedup store of each login session is built.
// The function receives the username and is called on every Login. The
// default is an in-memory dedup.Set.
func WithSeenStore(f func(username string) dedup.Store) Option {
	return func(e *Engine) {
		e.newSeen = f
	}
}

// WithIDGenerator replaces the generator of outgoing message ids.
func WithIDGenerator(f func() string) Option {
	return func(e *Engine) {
		e.newID = f
	}
}

// WithUploader sets the upload endpoint used by SendFile.
func WithUploader(u Uploader) Option {
	return func(e *Engine) {
		e.uploader = u
	}
}

// Engine is the single entry point of the rendering layer. User intents and
// transport events are applied one at a time under a single lock, so no
// snapshot ever observes a partial update.
type Engine struct {
	mu sync.Mutex

	ctrl     *Controller
	clock    Clock
	newSeen  func(username string) dedup.Store
	seen     dedup.Store
	presence *presence.Tracker
	history  *message.History
	newID    func() string
	uploader Uploader
	notice   string
	session  uint64

	updates chan Snapshot
}

// New creates a disconnected Engine that dials serverURL with dialer.
func New(dialer Dialer, serverURL string, opts ...Option) *Engine {
	e := &Engine{
		clock:    realClock{},
		seen:     dedup.NewSet(),
		presence: presence.NewTracker(),
		history:  message.NewHistory(),
		newID:    uuid.NewString,
		updates:  make(chan Snapshot, 1),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.ctrl = newController(dialer, serverURL, e.clock, e.dispatch)
	e.ctrl.onOpen = e.sendLogin
	e.ctrl.onFrame = e.ingest
	observability.SetState(Disconnected.String())
	return e
}

// Snapshots delivers the latest snapshot after every change. The channel
// holds one value; an unread snapshot is replaced by a newer one.
func (e *Engine) Snapshots() <-chan Snapshot {
	return e.updates
}

// Snapshot returns the current view of the session.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot()
}

// Login starts a fresh session for username and begins connecting.
func (e *Engine) Login(username string) error {
	if username == "" {
		return ErrEmptyUsername
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ctrl.State() != Disconnected {
		return ErrSessionActive
	}
	if e.newSeen != nil {
		e.seen = e.newSeen(username)
	}
	e.seen.Reset()
	e.presence.Reset()
	e.history.Reset()
	e.notice = ""
	e.session++

	e.ctrl.Connect(username)
	log.Printf("session: logging in as %s", username)
	e.emit()
	return nil
}

// SendBroadcast sends text to every user. Empty text is ignored.
func (e *Engine) SendBroadcast(text string) error {
	if text == "" {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sendChat(message.Message{Type: message.TypeBroadcast, Content: text})
}

// SendPrivate sends text to targetUser only. Empty text is ignored; a
// missing target is an encoding error.
func (e *Engine) SendPrivate(text, targetUser string) error {
	if text == "" {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sendChat(message.Message{Type: message.TypePrivate, TargetUser: targetUser, Content: text})
}

// AttachUploadedFile broadcasts a file marker for an upload that already
// completed.
func (e *Engine) AttachUploadedFile(filename, url string) error {
	return e.SendBroadcast(message.FileMarker(filename, url))
}

// SendFile uploads body and broadcasts the resulting URL. An upload failure
// is reported as a notice and returned; it is not retried and does not
// affect the connection.
func (e *Engine) SendFile(ctx context.Context, filename string, body io.Reader) error {
	if e.uploader == nil {
		return ErrNoUploader
	}
	e.mu.Lock()
	loggedIn := e.ctrl.Username() != ""
	e.mu.Unlock()
	if !loggedIn {
		return ErrNotLoggedIn
	}

	url, err := e.uploader.Upload(ctx, filename, body)
	if err != nil {
		observability.IncUpload("failed")
		log.Printf("session: upload of %s failed: %v", filename, err)
		e.mu.Lock()
		e.notice = fmt.Sprintf("upload of %s failed: %v", filename, err)
		e.emit()
		e.mu.Unlock()
		return err
	}
	observability.IncUpload("ok")
	return e.AttachUploadedFile(filename, url)
}

// Disconnect ends the session. A pending retry is cancelled before
// Disconnect returns, so no reconnect can follow it. While connected, a
// LOGOUT frame is flushed before the socket closes.
func (e *Engine) Disconnect() {
	e.mu.Lock()
	if e.ctrl.State() == Disconnected {
		e.mu.Unlock()
		return
	}
	if e.ctrl.State() == Connected {
		e.transmit(&message.Message{Type: message.TypeLogout, Sender: e.ctrl.Username()})
	}
	conn := e.ctrl.Disconnect()
	e.seen.Reset()
	e.presence.Reset()
	log.Printf("session: %s disconnected", e.ctrl.Username())
	e.emit()
	e.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			log.Printf("session: close error: %v", err)
		}
	}
}

// ReconnectNow skips the pending backoff. It reports false unless the
// session is Reconnecting.
func (e *Engine) ReconnectNow() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ctrl.ReconnectNow() {
		return false
	}
	e.emit()
	return true
}

// dispatch applies a transport or timer event.
func (e *Engine) dispatch(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.ctrl.Handle(ev)
	e.emit()
}

// sendLogin announces the session right after the socket opens. LOGIN
// carries no id so the broker's echo is admitted and updates presence.
func (e *Engine) sendLogin() {
	log.Printf("session: connected as %s", e.ctrl.Username())
	e.transmit(&message.Message{Type: message.TypeLogin, Sender: e.ctrl.Username()})
}

// sendChat validates msg, then marks its id seen, appends the local echo
// and transmits it, in that order. Must be called with mu held.
func (e *Engine) sendChat(msg message.Message) error {
	username := e.ctrl.Username()
	if username == "" {
		return ErrNotLoggedIn
	}
	msg.ID = e.newID()
	msg.Sender = username

	data, err := message.Encode(&msg)
	if err != nil {
		return err
	}

	e.seen.MarkSeen(msg.ID)
	msg.Local = true
	msg.ReceivedAt = e.clock.Now()
	e.history.Append(msg)
	e.notice = ""

	e.send(msg.Type, data)
	e.emit()
	return nil
}

// transmit encodes and sends a control frame. Must be called with mu held.
func (e *Engine) transmit(msg *message.Message) {
	data, err := message.Encode(msg)
	if err != nil {
		log.Printf("session: %v", err)
		return
	}
	e.send(msg.Type, data)
}

func (e *Engine) send(typ message.Type, data []byte) {
	if e.ctrl.Send(data) {
		observability.IncOutbound(string(typ), "sent")
		return
	}
	observability.IncOutbound(string(typ), "dropped")
}

// ingest admits one inbound frame. Malformed frames and already-seen ids
// are dropped; frames without an id are always admitted. Must be called
// with mu held.
func (e *Engine) ingest(data []byte) {
	msg, err := message.Decode(data)
	if err != nil {
		observability.IncInbound("malformed")
		log.Printf("session: dropping frame: %v", err)
		return
	}
	if msg.Identified() {
		if e.seen.HasSeen(msg.ID) {
			observability.IncInbound("duplicate")
			return
		}
		e.seen.MarkSeen(msg.ID)
	}

	msg.ReceivedAt = e.clock.Now()
	msg.Local = false
	if e.presence.Apply(msg) {
		log.Printf("session: online users: %v", e.presence.Active())
	}
	e.history.Append(*msg)
	observability.IncInbound("admitted")
}

// snapshot must be called with mu held.
func (e *Engine) snapshot() Snapshot {
	return Snapshot{
		Session:     e.session,
		State:       e.ctrl.State(),
		Username:    e.ctrl.Username(),
		Attempt:     e.ctrl.Attempt(),
		RetryIn:     e.ctrl.RetryIn(),
		ActiveUsers: e.presence.Active(),
		Messages:    e.history.All(),
		Notice:      e.notice,
	}
}

// emit publishes the current snapshot, replacing one the reader has not
// taken yet. Must be called with mu held.
func (e *Engine) emit() {
	snap := e.snapshot()
	select {
	case e.updates <- snap:
		return
	default:
	}
	select {
	case <-e.updates:
	default:
	}
	select {
	case e.updates <- snap:
	default:
	}
}
