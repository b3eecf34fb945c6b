package message

import "time"

// Type represents the kind of message carried by a frame.
type Type string

const (
	TypeLogin     Type = "LOGIN"
	TypeLogout    Type = "LOGOUT"
	TypeBroadcast Type = "BROADCAST"
	TypePrivate   Type = "PRIVATE"
)

// SystemSender is the sender name reserved for server-originated notices.
const SystemSender = "[system]"

// Valid reports whether t is one of the known message types.
func (t Type) Valid() bool {
	switch t {
	case TypeLogin, TypeLogout, TypeBroadcast, TypePrivate:
		return true
	}
	return false
}

// Message represents a chat message.
//
// ReceivedAt and Local are client-side bookkeeping and never go on the wire.
type Message struct {
	ID         string    `json:"id,omitempty"`
	Type       Type      `json:"type"`
	Sender     string    `json:"sender"`
	TargetUser string    `json:"targetUser,omitempty"`
	Content    string    `json:"content"`
	ReceivedAt time.Time `json:"-"`
	Local      bool      `json:"-"`
}

// Identified reports whether the message carries an id. Unidentified
// messages come from senders that predate ids and are never deduplicated.
func (m *Message) Identified() bool {
	return m.ID != ""
}
