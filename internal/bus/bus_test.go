package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("chats.", 10)
	defer unsub()

	b.Publish(Event{Kind: ChatsStatusChanged, Timestamp: time.Now(), Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != ChatsStatusChanged {
			t.Errorf("got kind %q, want chats.status_changed", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("messages.", 10)
	defer unsub()

	b.Publish(Event{Kind: ChatsStatusChanged})
	b.Publish(Event{Kind: MessagesUpdated})

	select {
	case evt := <-ch:
		if evt.Kind != MessagesUpdated {
			t.Errorf("got kind %q, want messages.updated", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure the chats event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("chats.", 10)
	unsub()

	b.Publish(Event{Kind: ChatsStatusChanged})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected.
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("test.", 1)
	defer unsub()

	// Fill buffer.
	b.Publish(Event{Kind: "test.one"})
	// This should be dropped (non-blocking).
	b.Publish(Event{Kind: "test.two"})

	evt := <-ch
	if evt.Kind != "test.one" {
		t.Errorf("got %q, want test.one", evt.Kind)
	}
}

func TestEmitStampsTime(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("", 10)
	defer unsub()

	before := time.Now()
	b.Emit(OutboxSendAck, "id-1")

	evt := <-ch
	if evt.Kind != OutboxSendAck || evt.Payload != "id-1" {
		t.Errorf("got %+v", evt)
	}
	if evt.Timestamp.Before(before) {
		t.Errorf("timestamp %v before %v", evt.Timestamp, before)
	}

	var nilBus *Bus
	nilBus.Emit(OutboxSendAck, nil)
}
