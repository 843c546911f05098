package gateway

import (
	"context"

	"go.uber.org/zap"
)

// hub fans frames out to every websocket subscriber. Subscribers with a
// full send buffer are dropped rather than allowed to stall the rest.
type hub struct {
	subscribers map[*subscriber]bool
	register    chan *subscriber
	unregister  chan *subscriber
	broadcast   chan []byte
	// done is closed when run returns, so pumps draining during
	// shutdown never block on an unread register/unregister send.
	done   chan struct{}
	logger *zap.Logger
}

func newHub(logger *zap.Logger) *hub {
	return &hub{
		subscribers: make(map[*subscriber]bool),
		register:    make(chan *subscriber),
		unregister:  make(chan *subscriber),
		broadcast:   make(chan []byte, 64),
		done:        make(chan struct{}),
		logger:      logger,
	}
}

func (h *hub) run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for sub := range h.subscribers {
				close(sub.send)
				delete(h.subscribers, sub)
			}
			return
		case sub := <-h.register:
			h.subscribers[sub] = true
			h.logger.Info("subscriber joined",
				zap.String("subscriber_id", sub.id),
				zap.Int("subscribers", len(h.subscribers)))
		case sub := <-h.unregister:
			if _, ok := h.subscribers[sub]; ok {
				delete(h.subscribers, sub)
				close(sub.send)
				h.logger.Info("subscriber left",
					zap.String("subscriber_id", sub.id),
					zap.Int("subscribers", len(h.subscribers)))
			}
		case frame := <-h.broadcast:
			for sub := range h.subscribers {
				select {
				case sub.send <- frame:
				default:
					delete(h.subscribers, sub)
					close(sub.send)
					h.logger.Warn("dropping stalled subscriber",
						zap.String("subscriber_id", sub.id))
				}
			}
		}
	}
}
