package status

import (
	"testing"

	"github.com/ssantosv/zapbridge/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine(nil)
	if m.Current() != Disconnected {
		t.Errorf("initial state = %s, want DISCONNECTED", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Disconnected, Initializing},
		{Initializing, AwaitingPairing},
		{Initializing, Connected},
		{Initializing, Disconnected},
		{AwaitingPairing, AwaitingPairing},
		{AwaitingPairing, Connected},
		{AwaitingPairing, Disconnected},
		{Connected, Disconnected},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err != nil {
				t.Errorf("Transition(%s -> %s) error = %v", tt.from, tt.to, err)
			}
			if m.Current() != tt.to {
				t.Errorf("state = %s, want %s", m.Current(), tt.to)
			}
		})
	}
}

func TestInvalidTransition(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(Connected); err == nil {
		t.Error("Transition(DISCONNECTED -> CONNECTED) should fail")
	}
	if m.Current() != Disconnected {
		t.Errorf("state = %s, want DISCONNECTED (unchanged)", m.Current())
	}
}

// TestPairingCodeReplacement verifies AWAITING_PAIRING loops on itself:
// the network hands out a fresh code while the previous one is still
// pending and the machine must accept the replacement.
func TestPairingCodeReplacement(t *testing.T) {
	m := NewMachine(nil)
	walkTo(t, m, AwaitingPairing)

	if err := m.Transition(AwaitingPairing); err != nil {
		t.Fatalf("AWAITING_PAIRING -> AWAITING_PAIRING: %v", err)
	}
}

// TestFullPairingLifecycle simulates the first-run lifecycle:
// DISCONNECTED → INITIALIZING → AWAITING_PAIRING → CONNECTED → DISCONNECTED
func TestFullPairingLifecycle(t *testing.T) {
	m := NewMachine(nil)

	steps := []State{Initializing, AwaitingPairing, Connected, Disconnected}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if m.Current() != Disconnected {
		t.Errorf("final state = %s, want DISCONNECTED", m.Current())
	}
}

// TestPairedDeviceLifecycle simulates a device with valid credentials:
// pairing is skipped and INITIALIZING goes straight to CONNECTED.
func TestPairedDeviceLifecycle(t *testing.T) {
	m := NewMachine(nil)

	steps := []State{Initializing, Connected}
	for _, s := range steps {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
}

// TestCannotReachConnectedWithoutInitializing verifies the machine
// refuses shortcuts from DISCONNECTED.
func TestCannotReachConnectedWithoutInitializing(t *testing.T) {
	m := NewMachine(nil)
	if err := m.Transition(AwaitingPairing); err == nil {
		t.Error("DISCONNECTED -> AWAITING_PAIRING should fail")
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("session.", 10)
	defer unsub()

	m := NewMachine(b)
	if err := m.Transition(Initializing); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != "session.state_changed" {
		t.Errorf("event kind = %q, want session.state_changed", evt.Kind)
	}
	change, ok := evt.Payload.(StateChange)
	if !ok {
		t.Fatalf("payload type = %T, want StateChange", evt.Payload)
	}
	if change.From != Disconnected || change.To != Initializing {
		t.Errorf("change = %v -> %v, want DISCONNECTED -> INITIALIZING", change.From, change.To)
	}
}

// walkTo is a helper that transitions the machine to a target state.
func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Disconnected:    {},
		Initializing:    {Initializing},
		AwaitingPairing: {Initializing, AwaitingPairing},
		Connected:       {Initializing, Connected},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
