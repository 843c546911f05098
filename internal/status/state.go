package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/ssantosv/zapbridge/internal/bus"
)

// State represents a bridge session state. There is exactly one Session
// per process; the machine is process-wide, not per-subscriber.
type State string

const (
	Disconnected    State = "DISCONNECTED"
	Initializing    State = "INITIALIZING"
	AwaitingPairing State = "AWAITING_PAIRING"
	Connected       State = "CONNECTED"
)

// validTransitions defines allowed state transitions. AwaitingPairing
// loops on itself because the network replaces pending pairing codes.
// Every state may fall back to Disconnected: an explicit disconnect
// tears down the client from anywhere.
var validTransitions = map[State][]State{
	Disconnected:    {Initializing},
	Initializing:    {AwaitingPairing, Connected, Disconnected},
	AwaitingPairing: {AwaitingPairing, Connected, Disconnected},
	Connected:       {Disconnected},
}

// Machine tracks and enforces session state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a state machine starting in Disconnected.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Disconnected,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns an error and
// leaves the state unchanged if the transition is not allowed.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      "session.state_changed",
			Timestamp: time.Now(),
			Payload: StateChange{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// StateChange is the payload for state change events.
type StateChange struct {
	From State
	To   State
}
