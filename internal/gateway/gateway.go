package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ssantosv/zapbridge/internal/bus"
	"github.com/ssantosv/zapbridge/internal/supervisor"
	"go.uber.org/zap"
)

// Gateway is the realtime surface of the bridge: it mirrors the full
// event stream to every websocket subscriber and accepts session
// commands from any of them. Commands are fire-and-forget on the wire;
// results come back as broadcast events.
type Gateway struct {
	hub      *hub
	sup      *supervisor.Supervisor
	bus      *bus.Bus
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// New creates a gateway over the given supervisor and bus. Run must be
// called before subscribers attach.
func New(sup *supervisor.Supervisor, b *bus.Bus, logger *zap.Logger) *Gateway {
	return &Gateway{
		hub:    newHub(logger),
		sup:    sup,
		bus:    b,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The daemon binds to loopback; subscribers are local.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Run starts the hub and the bus pump. Blocks until ctx is canceled.
func (g *Gateway) Run(ctx context.Context) {
	events, cancel := g.bus.Subscribe("", 256)
	defer cancel()

	go g.hub.run(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			frame, ok := g.wireFrame(evt)
			if !ok {
				continue
			}
			select {
			case g.hub.broadcast <- frame:
			case <-ctx.Done():
				return
			}
		}
	}
}

// ServeWS upgrades the request and attaches a subscriber. Every new
// subscriber immediately receives a status snapshot, plus a redundant
// pairing-code frame when one is pending, so late joiners never miss
// the code.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sub := &subscriber{
		id:      uuid.NewString(),
		gateway: g,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
	}

	snap := g.sup.Status()
	if frame, err := marshalEnvelope(EventStatus, g.statusPayload(snap)); err == nil {
		sub.send <- frame
	}
	if snap.PairingCode != "" {
		if frame, err := marshalEnvelope(EventPairingCode, g.pairingPayload(snap.PairingCode)); err == nil {
			sub.send <- frame
		}
	}

	select {
	case g.hub.register <- sub:
	case <-g.hub.done:
		conn.Close()
		return
	}
	go sub.writePump()
	go sub.readPump()
}

// handleCommand dispatches one client frame. Malformed frames are
// dropped with a warning; they never take the session down.
func (g *Gateway) handleCommand(sub *subscriber, frame []byte) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		g.logger.Warn("dropping malformed frame",
			zap.String("subscriber_id", sub.id), zap.Error(err))
		return
	}

	ctx := context.Background()

	switch env.Type {
	case CmdSendMessage:
		var p SendMessagePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.ChatID == "" || p.Message == "" {
			g.logger.Warn("dropping malformed send-message command",
				zap.String("subscriber_id", sub.id))
			return
		}
		_, _ = g.sup.SendMessage(ctx, p.ChatID, p.Message)

	case CmdGetChats:
		_, _ = g.sup.ListChats(ctx)

	case CmdGetMessages:
		var p GetMessagesPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.ChatID == "" {
			g.logger.Warn("dropping malformed get-messages command",
				zap.String("subscriber_id", sub.id))
			return
		}
		_, _ = g.sup.ListMessages(ctx, p.ChatID)

	case CmdDisconnect:
		g.sup.Disconnect(ctx)

	case CmdReconnect:
		if err := g.sup.Reconnect(ctx); err != nil {
			g.logger.Error("reconnect failed", zap.Error(err))
		}

	default:
		g.logger.Warn("dropping unknown command",
			zap.String("subscriber_id", sub.id), zap.String("type", env.Type))
	}
}

// wireFrame maps a bus event onto its wire envelope. Internal events
// stay off the wire.
func (g *Gateway) wireFrame(evt bus.Event) ([]byte, bool) {
	var (
		typ     string
		payload any
	)

	switch evt.Kind {
	case bus.KindStatus:
		snap, ok := evt.Payload.(supervisor.StatusSnapshot)
		if !ok {
			return nil, false
		}
		typ, payload = EventStatus, g.statusPayload(snap)
	case bus.KindPairingCode:
		code, ok := evt.Payload.(string)
		if !ok {
			return nil, false
		}
		typ, payload = EventPairingCode, g.pairingPayload(code)
	case bus.KindConnected:
		typ, payload = EventConnected, evt.Payload
	case bus.KindChats:
		typ, payload = EventChats, evt.Payload
	case bus.KindMessages:
		typ, payload = EventMessages, evt.Payload
	case bus.KindNewMessage:
		typ, payload = EventNewMessage, evt.Payload
	case bus.KindMessageSent:
		typ, payload = EventMessageSent, evt.Payload
	case bus.KindError:
		typ, payload = EventError, evt.Payload
	default:
		return nil, false
	}

	frame, err := marshalEnvelope(typ, payload)
	if err != nil {
		g.logger.Error("failed to encode event", zap.String("kind", evt.Kind), zap.Error(err))
		return nil, false
	}
	return frame, true
}

func (g *Gateway) statusPayload(snap supervisor.StatusSnapshot) StatusPayload {
	p := StatusPayload{
		IsConnected: snap.Connected,
		PairingCode: snap.PairingCode,
	}
	if snap.PairingCode != "" {
		if img, err := pairingImage(snap.PairingCode); err == nil {
			p.PairingImage = img
		} else {
			g.logger.Warn("failed to render pairing image", zap.Error(err))
		}
	}
	return p
}

func (g *Gateway) pairingPayload(code string) PairingPayload {
	p := PairingPayload{Code: code}
	if img, err := pairingImage(code); err == nil {
		p.Image = img
	} else {
		g.logger.Warn("failed to render pairing image", zap.Error(err))
	}
	return p
}
