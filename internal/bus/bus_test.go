package bus

import (
	"testing"
	"time"
)

func TestPublishSubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindPairingCode, Timestamp: time.Now(), Payload: "ABC123"})

	select {
	case evt := <-ch:
		if evt.Kind != KindPairingCode {
			t.Errorf("got kind %q, want %q", evt.Kind, KindPairingCode)
		}
		if evt.Payload != "ABC123" {
			t.Errorf("got payload %v, want ABC123", evt.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestNamespaceFiltering(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("chat.", 10)
	defer unsub()

	b.Publish(Event{Kind: KindConnected})
	b.Publish(Event{Kind: KindNewMessage})

	select {
	case evt := <-ch:
		if evt.Kind != KindNewMessage {
			t.Errorf("got kind %q, want %q", evt.Kind, KindNewMessage)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}

	// Ensure the session event was not delivered.
	select {
	case evt := <-ch:
		t.Errorf("unexpected event: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEmptyNamespaceReceivesAll(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("", 10)
	defer unsub()

	b.Publish(Event{Kind: KindStatus})
	b.Publish(Event{Kind: KindNewMessage})

	for _, want := range []string{KindStatus, KindNewMessage} {
		select {
		case evt := <-ch:
			if evt.Kind != want {
				t.Errorf("got kind %q, want %q", evt.Kind, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("timeout waiting for %q", want)
		}
	}
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("session.", 10)
	unsub()

	b.Publish(Event{Kind: KindStatus})

	select {
	case evt := <-ch:
		t.Errorf("received event after unsubscribe: %v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDropOnFullBuffer(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("chat.", 1)
	defer unsub()

	// Fill buffer, then publish one more that must be dropped.
	b.Publish(Event{Kind: KindNewMessage, Payload: "first"})
	b.Publish(Event{Kind: KindNewMessage, Payload: "second"})

	evt := <-ch
	if evt.Payload != "first" {
		t.Errorf("got %v, want first", evt.Payload)
	}
}
