package session

import "testing"

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{StateDisconnected, StateConnecting, true},
		{StateConnecting, StateConnected, true},
		{StateConnecting, StateDisconnected, true},
		{StateConnected, StateSubscribing, true},
		{StateSubscribing, StateSubscribed, true},
		{StateSubscribed, StateDisconnected, true},
		{StateDisconnected, StateReconnecting, true},
		{StateReconnecting, StateConnecting, true},
		{StateSubscribed, StateShutdown, true},
		{StateDisconnected, StateSubscribed, false},
		{StateConnecting, StateSubscribing, false},
		{StateReconnecting, StateSubscribed, false},
		{StateShutdown, StateConnecting, false},
		{StateShutdown, StateShutdown, false},
	}
	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestStateMachineRejectsInvalidMove(t *testing.T) {
	m := newStateMachine()
	if _, err := m.move(StateSubscribed); err == nil {
		t.Fatalf("expected invalid transition error")
	}
	if m.get() != StateDisconnected {
		t.Fatalf("state changed on rejected move: %s", m.get())
	}
	from, err := m.move(StateConnecting)
	if err != nil || from != StateDisconnected || m.get() != StateConnecting {
		t.Fatalf("unexpected move result %s %v %s", from, err, m.get())
	}
}
