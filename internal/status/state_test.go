package status

import (
	"testing"

	"github.com/matheus3301/wppdesk/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine("chats", nil)
	if m.Current() != Idle {
		t.Errorf("initial state = %s, want IDLE", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Idle, Loading},
		{Loading, Ready},
		{Loading, Degraded},
		{Loading, Failed},
		{Loading, Idle},
		{Ready, Loading},
		{Ready, Idle},
		{Degraded, Loading},
		{Failed, Loading},
		{Failed, Idle},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine("chats", nil)
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

func TestInvalidTransitions(t *testing.T) {
	tests := []struct {
		from State
		to   State
	}{
		{Idle, Ready},
		{Idle, Failed},
		{Ready, Failed},
		{Degraded, Ready},
		{Failed, Ready},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			m := NewMachine("chats", nil)
			walkTo(t, m, tt.from)
			if err := m.Transition(tt.to); err == nil {
				t.Errorf("Transition(%s -> %s) should fail", tt.from, tt.to)
			}
			if m.Current() != tt.from {
				t.Errorf("state = %s, want %s (unchanged)", m.Current(), tt.from)
			}
		})
	}
}

func TestSameStateIsNoop(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("messages.", 10)
	defer unsub()

	m := NewMachine("messages", b)
	walkTo(t, m, Loading)
	<-ch

	if err := m.Transition(Loading); err != nil {
		t.Fatalf("Transition(LOADING -> LOADING) = %v, want nil", err)
	}
	select {
	case evt := <-ch:
		t.Errorf("unexpected event %+v", evt)
	default:
	}
}

func TestTransitionEmitsNamespacedEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("chats.", 10)
	defer unsub()

	m := NewMachine("chats", b)
	if err := m.Transition(Loading); err != nil {
		t.Fatal(err)
	}

	evt := <-ch
	if evt.Kind != bus.ChatsStatusChanged {
		t.Errorf("event kind = %q, want %s", evt.Kind, bus.ChatsStatusChanged)
	}
	change, ok := evt.Payload.(StatusChange)
	if !ok {
		t.Fatalf("payload type = %T, want StatusChange", evt.Payload)
	}
	if change.From != Idle || change.To != Loading {
		t.Errorf("change = %v -> %v, want IDLE -> LOADING", change.From, change.To)
	}
}

// TestPartialFailureRecovers walks a fetch that lost a session and the
// refresh that brought it back.
func TestPartialFailureRecovers(t *testing.T) {
	m := NewMachine("chats", nil)
	for _, s := range []State{Loading, Degraded, Loading, Ready} {
		if err := m.Transition(s); err != nil {
			t.Fatalf("Transition to %s: %v (current: %s)", s, err, m.Current())
		}
	}
	if m.Current() != Ready {
		t.Errorf("final state = %s, want READY", m.Current())
	}
}

func walkTo(t *testing.T, m *Machine, target State) {
	t.Helper()
	paths := map[State][]State{
		Idle:     {},
		Loading:  {Loading},
		Ready:    {Loading, Ready},
		Degraded: {Loading, Degraded},
		Failed:   {Loading, Failed},
	}
	for _, s := range paths[target] {
		if err := m.Transition(s); err != nil {
			t.Fatalf("walkTo(%s): %v", target, err)
		}
	}
}
