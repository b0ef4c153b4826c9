package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	b.Publish(Event{Kind: "session.status_changed", Timestamp: time.Now(), Payload: "test"})

	select {
	case evt := <-ch:
		if evt.Kind != "session.status_changed" {
			t.Errorf("got kind %q, want session.status_changed", evt.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("window.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindStatusChanged})
	b.Publish(Event{Kind: KindWindowOpened})

	select {
	case evt := <-ch:
		if evt.Kind != KindWindowOpened {
			t.Errorf("got kind %q, want %s", evt.Kind, KindWindowOpened)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure session event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
		// Expected: no more events.
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("session.", 10)
	unsub()

	b.Publish(Event{Kind: "session.status_changed"})

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

func TestEmitStampsEvent(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("chats.", 1)
	defer unsub()

	before := time.Now()
	b.Emit(KindChatsUpdated, 3)

	select {
	case evt := <-ch:
		if evt.Kind != KindChatsUpdated || evt.Payload != 3 {
			t.Errorf("got %+v, want chats.updated with payload 3", evt)
		}
		if evt.Timestamp.Before(before) {
			t.Error("timestamp predates Emit call")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestEmitOnNilBus(t *testing.T) {
	var b *Bus
	b.Emit(KindChatsUpdated, nil)
}

func TestSubscribeMany(t *testing.T) {
	b := New()
	ch, unsub := b.SubscribeMany(10, "chats.", "notify.")
	defer unsub()

	b.Emit(KindWindowUpdated, nil)
	b.Emit(KindNotifyPosted, nil)
	b.Emit(KindChatsUpdated, nil)

	var got []string
	for len(got) < 2 {
		select {
		case evt := <-ch:
			got = append(got, evt.Kind)
		case <-time.After(time.Second):
			t.Fatalf("timeout, got %v", got)
		}
	}
	if got[0] != KindNotifyPosted || got[1] != KindChatsUpdated {
		t.Errorf("got %v", got)
	}
}

func TestSubscribeManyEmptyMatchesAll(t *testing.T) {
	b := New()
	ch, unsub := b.SubscribeMany(10)
	defer unsub()

	b.Emit(KindFileProgress, nil)
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("catch-all subscriber missed event")
	}
}
