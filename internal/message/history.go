package message

// History is the insertion-ordered sequence of admitted messages for one
// session. Append is the only mutation; Reset starts a new session.
//
// History is not safe for concurrent use; the session engine serializes access.
type History struct {
	msgs []Message
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Append adds a message to the end of the history.
func (h *History) Append(msg Message) {
	h.msgs = append(h.msgs, msg)
}

// All returns a copy of every message in insertion order.
func (h *History) All() []Message {
	result := make([]Message, len(h.msgs))
	copy(result, h.msgs)
	return result
}

// Reset discards all messages.
func (h *History) Reset() {
	h.msgs = nil
}
