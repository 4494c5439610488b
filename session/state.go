package session

import (
	"fmt"
	"sync"
)

// State is the connection lifecycle state of one exchange Service.
type State string

const (
	StateDisconnected State = "DISCONNECTED"
	StateConnecting   State = "CONNECTING"
	StateConnected    State = "CONNECTED"
	StateSubscribing  State = "SUBSCRIBING"
	StateSubscribed   State = "SUBSCRIBED"
	StateReconnecting State = "RECONNECTING"
	StateShutdown     State = "SHUTDOWN"
)

var transitions = map[State][]State{
	StateDisconnected: {StateConnecting, StateReconnecting},
	StateConnecting:   {StateConnected, StateDisconnected},
	StateConnected:    {StateSubscribing, StateDisconnected},
	StateSubscribing:  {StateSubscribed, StateDisconnected},
	StateSubscribed:   {StateDisconnected},
	StateReconnecting: {StateConnecting},
}

// CanTransition reports whether from may move to to. Every live state may
// shut down; SHUTDOWN is terminal.
func CanTransition(from, to State) bool {
	if from == StateShutdown {
		return false
	}
	if to == StateShutdown {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type stateMachine struct {
	mu    sync.RWMutex
	state State
}

func newStateMachine() *stateMachine {
	return &stateMachine{state: StateDisconnected}
}

func (m *stateMachine) get() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// move performs the transition and returns the previous state.
func (m *stateMachine) move(to State) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	from := m.state
	if !CanTransition(from, to) {
		return from, fmt.Errorf("invalid state transition %s -> %s", from, to)
	}
	m.state = to
	return from, nil
}
