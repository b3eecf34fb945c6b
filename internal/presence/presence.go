// Package presence derives the set of active users from observed LOGIN and
// LOGOUT messages. It has no other source of truth: if the broker never
// emits a LOGOUT for a user, that user stays active.
package presence

import (
	"sort"

	"github.com/christopherjohns/chatsphere-client/internal/message"
)

// Tracker folds LOGIN/LOGOUT messages into a set of display names.
// It is not safe for concurrent use; the session engine serializes access.
type Tracker struct {
	users map[string]struct{}
}

// NewTracker creates a tracker with no active users.
func NewTracker() *Tracker {
	return &Tracker{users: make(map[string]struct{})}
}

// Apply updates the set for an admitted message and reports whether the
// set changed. Messages other than LOGIN/LOGOUT, and those with an empty
// sender, are ignored.
func (t *Tracker) Apply(msg *message.Message) bool {
	if msg.Sender == "" {
		return false
	}
	_, present := t.users[msg.Sender]

	switch msg.Type {
	case message.TypeLogin:
		if present {
			return false
		}
		t.users[msg.Sender] = struct{}{}
		return true
	case message.TypeLogout:
		if !present {
			return false
		}
		delete(t.users, msg.Sender)
		return true
	}
	return false
}

// Active returns the active display names in sorted order.
func (t *Tracker) Active() []string {
	result := make([]string, 0, len(t.users))
	for name := range t.users {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}

// Reset clears the set.
func (t *Tracker) Reset() {
	t.users = make(map[string]struct{})
}
