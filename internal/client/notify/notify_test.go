package notify_test

import (
	"testing"

	"github.com/zhouzirui/talkative/internal/client/notify"
	"github.com/zhouzirui/talkative/internal/model/chat"
)

func msg(id, chatID string) chat.Message {
	return chat.Message{ID: id, ChatID: chatID, SenderID: "bob", Content: "hi"}
}

func TestAddDeduplicatesByMessageID(t *testing.T) {
	agg := notify.New()

	if !agg.Add(msg("m1", "c1")) {
		t.Fatal("first Add should insert")
	}
	if agg.Add(msg("m1", "c1")) {
		t.Fatal("redelivered id should be ignored")
	}

	if got := len(agg.Pending()); got != 1 {
		t.Fatalf("pending size after duplicate delivery: got %d want 1", got)
	}
}

func TestAcknowledgeClearsOnlyThatChat(t *testing.T) {
	agg := notify.New()
	agg.Add(msg("m1", "c1"))
	agg.Add(msg("m2", "c1"))
	agg.Add(msg("m3", "c2"))

	agg.Acknowledge("c1")

	if agg.Count("c1") != 0 {
		t.Fatalf("c1 entries should be gone, have %d", agg.Count("c1"))
	}
	if agg.Count("c2") != 1 {
		t.Fatalf("c2 entries should be untouched, have %d", agg.Count("c2"))
	}

	pending := agg.Pending()
	if len(pending) != 1 || pending[0].ID != "m3" {
		t.Fatalf("unexpected pending set: %+v", pending)
	}
}

func TestDismissRemovesSingleEntry(t *testing.T) {
	agg := notify.New()
	agg.Add(msg("m1", "c1"))
	agg.Add(msg("m2", "c1"))

	agg.Dismiss("m1")

	pending := agg.Pending()
	if len(pending) != 1 || pending[0].ID != "m2" {
		t.Fatalf("unexpected pending set: %+v", pending)
	}
}

func TestPendingKeepsArrivalOrder(t *testing.T) {
	agg := notify.New()
	agg.Add(msg("m2", "c1"))
	agg.Add(msg("m1", "c2"))
	agg.Add(msg("m3", "c1"))

	pending := agg.Pending()
	if len(pending) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(pending))
	}
	for i, want := range []string{"m2", "m1", "m3"} {
		if pending[i].ID != want {
			t.Fatalf("position %d: got %s want %s", i, pending[i].ID, want)
		}
	}
}

func TestOnChangedFiresPerMutation(t *testing.T) {
	agg := notify.New()

	var sizes []int
	agg.OnChanged(func(pending []chat.Message) {
		sizes = append(sizes, len(pending))
	})

	agg.Add(msg("m1", "c1"))
	agg.Add(msg("m1", "c1")) // duplicate, no change
	agg.Add(msg("m2", "c2"))
	agg.Acknowledge("c1")
	agg.Acknowledge("c1") // already empty, no change

	want := []int{1, 2, 1}
	if len(sizes) != len(want) {
		t.Fatalf("unexpected callback count: got %v want %v", sizes, want)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Fatalf("unexpected callback sizes: got %v want %v", sizes, want)
		}
	}
}

func TestClassify(t *testing.T) {
	m := msg("m1", "c1")

	if got := notify.Classify(m, "c1"); got != notify.ForActiveChat {
		t.Fatalf("matching chat: got %v", got)
	}
	if got := notify.Classify(m, "c2"); got != notify.ForOtherChat {
		t.Fatalf("other chat: got %v", got)
	}
	if got := notify.Classify(m, ""); got != notify.ForOtherChat {
		t.Fatalf("no active chat: got %v", got)
	}
}
