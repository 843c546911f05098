package supervisor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ssantosv/zapbridge/internal/bus"
	"github.com/ssantosv/zapbridge/internal/chatnet"
	"github.com/ssantosv/zapbridge/internal/status"
	"go.uber.org/zap"
)

// ErrNotConnected is returned by commands issued while the session is
// not Connected. The command never reaches the network client.
var ErrNotConnected = errors.New("chat network not connected")

// StatusSnapshot is the payload of status events: the current best-known
// session state handed to every subscriber on connect.
type StatusSnapshot struct {
	Connected   bool
	PairingCode string
}

// Factory constructs a fresh chat-network client. The supervisor calls
// it on every connect cycle; tests inject a factory returning a fake.
type Factory func(ctx context.Context) (chatnet.Client, error)

// Supervisor owns the single chat-network client and drives it through
// the session state machine. Faults from the client never propagate:
// they are caught here, logged, and converted into bus events.
type Supervisor struct {
	factory Factory
	machine *status.Machine
	bus     *bus.Bus
	logger  *zap.Logger

	mu          sync.Mutex
	client      chatnet.Client
	pairingCode string
	pumpCancel  context.CancelFunc
}

// New creates a supervisor. No client exists until Connect.
func New(factory Factory, machine *status.Machine, b *bus.Bus, logger *zap.Logger) *Supervisor {
	return &Supervisor{
		factory: factory,
		machine: machine,
		bus:     b,
		logger:  logger,
	}
}

// Connect constructs the client and starts the session. Idempotent: a
// second call while a client exists only republishes the status
// snapshot, so a late-joining subscriber always gets one.
func (s *Supervisor) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.client != nil {
		s.mu.Unlock()
		s.publishStatus()
		return nil
	}

	if err := s.machine.Transition(status.Initializing); err != nil {
		s.mu.Unlock()
		s.publishStatus()
		return nil
	}

	client, err := s.factory(ctx)
	if err != nil {
		_ = s.machine.Transition(status.Disconnected)
		s.mu.Unlock()
		s.logger.Error("failed to create chat client", zap.Error(err))
		s.publish(bus.KindError, "failed to initialize chat session")
		s.publish(bus.KindConnected, false)
		return err
	}

	s.client = client
	pumpCtx, cancel := context.WithCancel(context.Background())
	s.pumpCancel = cancel
	go s.pump(pumpCtx, client.Events())
	s.mu.Unlock()

	s.publishStatus()

	if err := client.Start(ctx); err != nil {
		s.logger.Error("chat client start failed", zap.Error(err))
		s.teardown()
		s.publish(bus.KindError, "failed to start chat session")
		s.publish(bus.KindConnected, false)
		return err
	}

	s.logger.Info("chat session initializing")
	return nil
}

// Disconnect tears the client down from any state, clears the pairing
// code, and announces connected=false. A no-op when already down.
func (s *Supervisor) Disconnect(_ context.Context) {
	s.teardown()
	s.publish(bus.KindConnected, false)
	s.publishStatus()
}

// Reconnect is disconnect followed by connect. The connect half is
// guarded the same way Connect always is.
func (s *Supervisor) Reconnect(ctx context.Context) error {
	s.Disconnect(ctx)
	return s.Connect(ctx)
}

// SendMessage relays a text message to the network. The chat ID is
// normalized to the canonical address format first. On success a
// message-sent event carries the outbound message to all subscribers.
func (s *Supervisor) SendMessage(ctx context.Context, chatID, body string) (chatnet.Message, error) {
	client, ok := s.connectedClient()
	if !ok {
		s.publish(bus.KindError, ErrNotConnected.Error())
		return chatnet.Message{}, ErrNotConnected
	}

	msg, err := client.SendText(ctx, chatnet.NormalizeChatID(chatID), body)
	if err != nil {
		s.logger.Error("send failed", zap.Error(err), zap.String("chat_id", chatID))
		s.publish(bus.KindError, "failed to send message")
		return chatnet.Message{}, err
	}

	s.publish(bus.KindMessageSent, msg)
	return msg, nil
}

// ListChats fetches the chats known to the paired account and publishes
// them as a chats event.
func (s *Supervisor) ListChats(ctx context.Context) ([]chatnet.Chat, error) {
	client, ok := s.connectedClient()
	if !ok {
		s.publish(bus.KindError, ErrNotConnected.Error())
		return nil, ErrNotConnected
	}

	chats, err := client.FetchChats(ctx)
	if err != nil {
		s.logger.Error("fetch chats failed", zap.Error(err))
		s.publish(bus.KindError, "failed to fetch chats")
		return nil, err
	}
	if chats == nil {
		chats = []chatnet.Chat{}
	}

	s.publish(bus.KindChats, chats)
	return chats, nil
}

// ListMessages fetches recent messages for one chat and publishes them
// as a messages event.
func (s *Supervisor) ListMessages(ctx context.Context, chatID string) ([]chatnet.Message, error) {
	client, ok := s.connectedClient()
	if !ok {
		s.publish(bus.KindError, ErrNotConnected.Error())
		return nil, ErrNotConnected
	}

	msgs, err := client.FetchMessages(ctx, chatnet.NormalizeChatID(chatID), 50)
	if err != nil {
		s.logger.Error("fetch messages failed", zap.Error(err), zap.String("chat_id", chatID))
		s.publish(bus.KindError, "failed to fetch messages")
		return nil, err
	}
	if msgs == nil {
		msgs = []chatnet.Message{}
	}

	s.publish(bus.KindMessages, msgs)
	return msgs, nil
}

// Status returns the current snapshot.
func (s *Supervisor) Status() StatusSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatusSnapshot{
		Connected:   s.machine.Current() == status.Connected,
		PairingCode: s.pairingCode,
	}
}

// State returns the current session state.
func (s *Supervisor) State() status.State {
	return s.machine.Current()
}

// connectedClient returns the client only while the session is
// Connected. Commands racing a disconnect observe the state at their
// own guard check and fail NotConnected once it flips.
func (s *Supervisor) connectedClient() (chatnet.Client, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil || s.machine.Current() != status.Connected {
		return nil, false
	}
	return s.client, true
}

// pump consumes the client's event stream for one connect cycle.
func (s *Supervisor) pump(ctx context.Context, events <-chan chatnet.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-events:
			s.handleEvent(evt)
		}
	}
}

func (s *Supervisor) handleEvent(evt chatnet.Event) {
	switch evt.Kind {
	case chatnet.EventPairingCode:
		// The pump may have dequeued this before a disconnect finished;
		// a rejected transition means the session it belonged to is
		// gone, so the code must not stick.
		s.mu.Lock()
		if err := s.machine.Transition(status.AwaitingPairing); err != nil {
			s.mu.Unlock()
			s.logger.Warn("dropping stale pairing code", zap.Error(err))
			return
		}
		s.pairingCode = evt.Code
		s.mu.Unlock()
		s.logger.Info("pairing code received")
		s.publish(bus.KindPairingCode, evt.Code)
		s.publishStatus()

	case chatnet.EventReady:
		s.mu.Lock()
		if err := s.machine.Transition(status.Connected); err != nil {
			s.mu.Unlock()
			s.logger.Warn("dropping stale ready event", zap.Error(err))
			return
		}
		s.pairingCode = ""
		s.mu.Unlock()
		s.logger.Info("chat session connected")
		s.publish(bus.KindConnected, true)
		s.publishStatus()

	case chatnet.EventDisconnected:
		s.logger.Warn("chat session lost", zap.String("reason", evt.Reason))
		s.teardown()
		if evt.Reason != "" {
			s.publish(bus.KindError, evt.Reason)
		}
		s.publish(bus.KindConnected, false)
		s.publishStatus()

	case chatnet.EventMessage:
		// Fan-out is unconditional: filtering by open chat is a
		// subscriber-side concern.
		s.publish(bus.KindNewMessage, evt.Message)
	}
}

// teardown stops the client and resets to Disconnected. Safe to call
// from any state, including when no client exists.
func (s *Supervisor) teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pumpCancel != nil {
		s.pumpCancel()
		s.pumpCancel = nil
	}
	if s.client != nil {
		client := s.client
		s.client = nil
		// Stop may do network teardown; a panic here must not take the
		// process down with it.
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.logger.Error("client teardown panicked", zap.Any("panic", r))
				}
			}()
			client.Stop()
		}()
	}
	s.pairingCode = ""
	if s.machine.Current() != status.Disconnected {
		_ = s.machine.Transition(status.Disconnected)
	}
}

func (s *Supervisor) publish(kind string, payload any) {
	s.bus.Publish(bus.Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}

func (s *Supervisor) publishStatus() {
	s.publish(bus.KindStatus, s.Status())
}
