package message

import (
	"fmt"
	"testing"
)

func msg(id, content string) Message {
	return Message{
		ID:      id,
		Type:    TypeBroadcast,
		Sender:  "alice",
		Content: content,
	}
}

func TestHistoryAppendKeepsOrder(t *testing.T) {
	h := NewHistory()
	for i := 0; i < 5; i++ {
		h.Append(msg(fmt.Sprintf("%d", i), fmt.Sprintf("msg-%d", i)))
	}

	all := h.All()
	if len(all) != 5 {
		t.Fatalf("expected 5 messages, got %d", len(all))
	}
	for i, m := range all {
		if m.ID != fmt.Sprintf("%d", i) {
			t.Errorf("position %d: expected id %d, got %s", i, i, m.ID)
		}
	}
}

func TestHistoryAllIsCopy(t *testing.T) {
	h := NewHistory()
	h.Append(msg("a", "first"))

	all := h.All()
	all[0].Content = "mutated"

	if h.All()[0].Content != "first" {
		t.Fatal("mutating the returned slice must not change history")
	}
}

func TestHistoryReset(t *testing.T) {
	h := NewHistory()
	h.Append(msg("a", "first"))
	h.Reset()

	if n := len(h.All()); n != 0 {
		t.Fatalf("expected 0 after reset, got %d", n)
	}
}
