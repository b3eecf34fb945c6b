package message

import (
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// EncodingError reports an outbound message that cannot be put on the wire.
type EncodingError struct {
	Reason string
	Err    error
}

func (e *EncodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("encode message: %s: %v", e.Reason, e.Err)
	}
	return "encode message: " + e.Reason
}

func (e *EncodingError) Unwrap() error { return e.Err }

// DecodingError reports an inbound frame that is not a valid message.
type DecodingError struct {
	Reason string
	Err    error
}

func (e *DecodingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decode frame: %s: %v", e.Reason, e.Err)
	}
	return "decode frame: " + e.Reason
}

func (e *DecodingError) Unwrap() error { return e.Err }

// frame is the wire shape. Pointers distinguish absent fields from empty ones.
type frame struct {
	ID         *string `json:"id,omitempty"`
	Type       *Type   `json:"type"`
	Sender     *string `json:"sender"`
	TargetUser *string `json:"targetUser,omitempty"`
	Content    *string `json:"content"`
}

// Encode serializes msg into a single wire frame.
func Encode(msg *Message) ([]byte, error) {
	if !msg.Type.Valid() {
		return nil, &EncodingError{Reason: fmt.Sprintf("unknown type %q", msg.Type)}
	}
	if msg.Type == TypePrivate && msg.TargetUser == "" {
		return nil, &EncodingError{Reason: "private message requires a target user"}
	}
	if !utf8.ValidString(msg.Content) {
		return nil, &EncodingError{Reason: "content is not valid UTF-8"}
	}

	f := frame{
		Type:    &msg.Type,
		Sender:  &msg.Sender,
		Content: &msg.Content,
	}
	if msg.ID != "" {
		f.ID = &msg.ID
	}
	if msg.Type == TypePrivate {
		f.TargetUser = &msg.TargetUser
	}

	data, err := json.Marshal(f)
	if err != nil {
		return nil, &EncodingError{Reason: "marshal", Err: err}
	}
	return data, nil
}

// Decode parses a wire frame into a Message. Missing id, sender, targetUser
// and content are tolerated; a missing or unknown type is not.
func Decode(data []byte) (*Message, error) {
	var f *frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, &DecodingError{Reason: "frame is not a JSON object", Err: err}
	}
	if f == nil {
		return nil, &DecodingError{Reason: "frame is not a JSON object"}
	}
	if f.Type == nil {
		return nil, &DecodingError{Reason: "missing type"}
	}
	if !f.Type.Valid() {
		return nil, &DecodingError{Reason: fmt.Sprintf("unknown type %q", *f.Type)}
	}

	msg := &Message{Type: *f.Type}
	if f.ID != nil {
		msg.ID = *f.ID
	}
	if f.Sender != nil {
		msg.Sender = *f.Sender
	}
	if f.TargetUser != nil {
		msg.TargetUser = *f.TargetUser
	}
	if f.Content != nil {
		msg.Content = *f.Content
	}
	return msg, nil
}
