package database

import (
	"testing"
	"time"

	"caronachat/models"
)

func openTestHistory(t *testing.T) *History {
	t.Helper()

	h, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory archive: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestSaveAndLoadOrdersByTimestamp(t *testing.T) {
	h := openTestHistory(t)
	base := time.Now().UTC().Truncate(time.Second)

	late := models.Message{ID: "b", SenderID: 1, ConversationID: 5, Body: "second", Timestamp: base.Add(2 * time.Second)}
	early := models.Message{ID: "a", SenderID: 2, ConversationID: 5, Body: "first", Timestamp: base.Add(1 * time.Second)}

	if err := h.Save(late); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := h.Save(early); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	msgs, err := h.Messages(5)
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Body != "first" || msgs[1].Body != "second" {
		t.Errorf("Messages not ordered by timestamp: %q then %q", msgs[0].Body, msgs[1].Body)
	}
	if msgs[0].SenderID != 2 || msgs[0].ConversationID != 5 {
		t.Errorf("Round-trip mismatch: %+v", msgs[0])
	}
}

func TestMessagesScopedToConversation(t *testing.T) {
	h := openTestHistory(t)
	now := time.Now().UTC()

	h.Save(models.Message{ID: "a", ConversationID: 1, Body: "one", Timestamp: now})
	h.Save(models.Message{ID: "b", ConversationID: 2, Body: "two", Timestamp: now})

	msgs, err := h.Messages(1)
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Body != "one" {
		t.Errorf("Expected only conversation 1 messages, got %+v", msgs)
	}
}

func TestSystemFlagRoundTrip(t *testing.T) {
	h := openTestHistory(t)

	h.Save(models.Message{ID: "s", ConversationID: 3, Body: "Carona confirmada", System: true, Timestamp: time.Now().UTC()})

	msgs, err := h.Messages(3)
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if len(msgs) != 1 || !msgs[0].System {
		t.Errorf("Expected system flag preserved, got %+v", msgs)
	}
}

func TestClear(t *testing.T) {
	h := openTestHistory(t)
	h.Save(models.Message{ID: "a", ConversationID: 1, Body: "one", Timestamp: time.Now().UTC()})

	if err := h.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	msgs, err := h.Messages(1)
	if err != nil {
		t.Fatalf("Messages failed: %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("Expected empty archive after Clear, got %d messages", len(msgs))
	}
}
