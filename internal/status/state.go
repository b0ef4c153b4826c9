package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/matheus3301/telesync/internal/bus"
)

// State represents a session runtime state.
type State string

const (
	Booting           State = "BOOTING"
	AuthRequired      State = "AUTH_REQUIRED"
	WaitingForNetwork State = "WAITING_FOR_NETWORK"
	ConnectingToProxy State = "CONNECTING_TO_PROXY"
	Connecting        State = "CONNECTING"
	Updating          State = "UPDATING"
	Ready             State = "READY"
	LoggingOut        State = "LOGGING_OUT"
	Closed            State = "CLOSED"
	Error             State = "ERROR"
)

// online are the connection states the backend reports once authorized.
// Any of them may follow any other.
var online = []State{WaitingForNetwork, ConnectingToProxy, Connecting, Updating, Ready}

// validTransitions defines allowed state transitions.
var validTransitions = map[State][]State{
	Booting:      append([]State{AuthRequired, Closed, Error}, online...),
	AuthRequired: append([]State{LoggingOut, Closed, Error}, online...),
	LoggingOut:   {AuthRequired, Closed, Error},
	Closed:       {Booting},
	Error:        {Booting},
}

func init() {
	for _, s := range online {
		validTransitions[s] = append([]State{AuthRequired, LoggingOut, Closed, Error}, online...)
	}
}

// Online reports whether s is one of the authorized connection states.
func (s State) Online() bool {
	return slices.Contains(online, s)
}

// Machine tracks and enforces session runtime state transitions.
type Machine struct {
	mu      sync.RWMutex
	current State
	bus     *bus.Bus
}

// NewMachine creates a new state machine starting in Booting state.
func NewMachine(b *bus.Bus) *Machine {
	return &Machine{
		current: Booting,
		bus:     b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Moving to the current state
// is a no-op. Returns error if transition is invalid.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == to {
		return nil
	}
	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	m.bus.Emit(bus.KindStatusChanged, StatusChange{From: from, To: to})
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State
	To   State
}
