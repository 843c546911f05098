package gateway

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestHubShutdownReleasesDrainingSubscribers(t *testing.T) {
	h := newHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.run(ctx)
		close(stopped)
	}()

	sub := &subscriber{id: "draining", send: make(chan []byte, 1)}
	h.register <- sub
	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("hub never stopped")
	}
	if _, ok := <-sub.send; ok {
		t.Fatal("send channel left open after shutdown")
	}

	// A read pump whose connection dies during shutdown still tries to
	// unregister; that send must not hang once the hub is gone.
	released := make(chan struct{})
	go func() {
		select {
		case h.unregister <- sub:
		case <-h.done:
		}
		close(released)
	}()
	select {
	case <-released:
	case <-time.After(time.Second):
		t.Fatal("unregister blocked after hub shutdown")
	}
}
