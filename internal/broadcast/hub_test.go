package broadcast

import (
	"testing"
	"time"

	"github.com/sells-group/bom-enrich/internal/model"
)

func event(itemID string, typ model.EventType) model.ProgressEvent {
	return model.ProgressEvent{
		Type:      typ,
		ItemID:    itemID,
		BOMID:     "bom-1",
		Timestamp: time.Now(),
	}
}

func TestHub_EverySubscriberGetsACopy(t *testing.T) {
	h := NewHub()
	defer h.Close()

	a := h.Subscribe("bom-1")
	b := h.Subscribe("bom-1")
	other := h.Subscribe("bom-2")

	h.Publish("bom-1", event("item-1", model.EventStepStart))

	for _, sub := range []*Subscriber{a, b} {
		select {
		case got := <-sub.Events:
			if got.ItemID != "item-1" {
				t.Errorf("subscriber %s got %+v", sub.ID, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s never received the event", sub.ID)
		}
	}

	select {
	case got := <-other.Events:
		t.Errorf("bom-2 subscriber received bom-1 event: %+v", got)
	default:
	}
}

func TestHub_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	h := NewHub()
	defer h.Close()

	slow := h.Subscribe("bom-1")
	fast := h.Subscribe("bom-1")

	// Overfill the slow subscriber's buffer without draining it.
	done := make(chan struct{})
	go func() {
		for i := 0; i < defaultBuffer*2; i++ {
			h.Publish("bom-1", event("item-1", model.EventStepComplete))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	if h.Dropped() == 0 {
		t.Error("expected drops for the overfilled subscriber")
	}

	// The fast subscriber still got up to its buffer's worth.
	if len(fast.Events) != defaultBuffer {
		t.Errorf("fast subscriber buffered %d events, want %d", len(fast.Events), defaultBuffer)
	}
	_ = slow
}

func TestHub_PerItemOrderingPreserved(t *testing.T) {
	h := NewHub()
	defer h.Close()

	sub := h.Subscribe("bom-1")
	sequence := []model.EventType{model.EventStepStart, model.EventStepComplete, model.EventComplete}
	for _, typ := range sequence {
		h.Publish("bom-1", event("item-1", typ))
	}

	for i, want := range sequence {
		got := <-sub.Events
		if got.Type != want {
			t.Errorf("event %d: type = %s, want %s", i, got.Type, want)
		}
	}
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	h := NewHub()
	defer h.Close()

	sub := h.Subscribe("bom-1")
	h.Unsubscribe(sub)

	if _, open := <-sub.Events; open {
		t.Error("channel should be closed after unsubscribe")
	}
	if n := h.SubscriberCount("bom-1"); n != 0 {
		t.Errorf("subscriber count = %d, want 0", n)
	}

	// Publishing after the last unsubscribe is a no-op, not a panic.
	h.Publish("bom-1", event("item-1", model.EventComplete))
}

func TestHub_CloseIsIdempotent(t *testing.T) {
	h := NewHub()
	sub := h.Subscribe("bom-1")
	h.Close()
	h.Close()

	if _, open := <-sub.Events; open {
		t.Error("channel should be closed after hub close")
	}
	// Subscribing after close returns a closed channel instead of leaking.
	late := h.Subscribe("bom-1")
	if _, open := <-late.Events; open {
		t.Error("post-close subscriber should get a closed channel")
	}
}

func TestTracker_ProgressAndSnapshot(t *testing.T) {
	tr := NewTracker()
	tr.StartBOM("bom-1", 4)

	p := tr.ItemFinished("bom-1")
	if p.Current != 1 || p.Total != 4 || p.Percent != 25 {
		t.Errorf("progress = %+v", p)
	}

	tr.ItemFinished("bom-1")
	snap, ok := tr.Snapshot("bom-1")
	if !ok {
		t.Fatal("expected snapshot for known bom")
	}
	if snap.Current != 2 || snap.Percent != 50 {
		t.Errorf("snapshot = %+v", snap)
	}

	if _, ok := tr.Snapshot("bom-unknown"); ok {
		t.Error("unknown bom should report no snapshot")
	}
}

func TestTracker_StartBOMAccumulates(t *testing.T) {
	tr := NewTracker()
	tr.StartBOM("bom-1", 2)
	tr.StartBOM("bom-1", 3)

	snap, _ := tr.Snapshot("bom-1")
	if snap.Total != 5 {
		t.Errorf("total = %d, want 5", snap.Total)
	}

	// Finishing never overshoots the total.
	for i := 0; i < 10; i++ {
		tr.ItemFinished("bom-1")
	}
	snap, _ = tr.Snapshot("bom-1")
	if snap.Current != 5 || snap.Percent != 100 {
		t.Errorf("snapshot after overshoot = %+v", snap)
	}
}
