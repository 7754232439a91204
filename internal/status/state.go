package status

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/matheus3301/wppdesk/internal/bus"
)

// State is the health of a query (the chat list or the open thread).
type State string

const (
	Idle     State = "IDLE"
	Loading  State = "LOADING"
	Ready    State = "READY"
	Degraded State = "DEGRADED"
	Failed   State = "FAILED"
)

// validTransitions defines allowed state transitions. Degraded means the
// query succeeded with some sessions missing.
var validTransitions = map[State][]State{
	Idle:     {Loading},
	Loading:  {Ready, Degraded, Failed, Idle},
	Ready:    {Loading, Idle},
	Degraded: {Loading, Idle},
	Failed:   {Loading, Idle},
}

// Machine tracks and enforces query state transitions.
type Machine struct {
	mu        sync.RWMutex
	current   State
	namespace string
	bus       *bus.Bus
}

// NewMachine creates a machine in the Idle state. Transitions are published
// as "<namespace>.status_changed".
func NewMachine(namespace string, b *bus.Bus) *Machine {
	return &Machine{
		current:   Idle,
		namespace: namespace,
		bus:       b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition moves to a new state. Moving to the current state is a no-op.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == to {
		return nil
	}
	allowed := validTransitions[m.current]
	if !slices.Contains(allowed, to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Event{
			Kind:      m.namespace + bus.SuffixStatusChanged,
			Timestamp: time.Now(),
			Payload: StatusChange{
				From: from,
				To:   to,
			},
		})
	}
	return nil
}

// StatusChange is the payload for status change events.
type StatusChange struct {
	From State `json:"from"`
	To   State `json:"to"`
}
