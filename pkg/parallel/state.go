package parallel

import (
	"fmt"
	"sync/atomic"
)

// State is the lifecycle stage of a multi-threaded reader or writer
type State int32

const (
	StateCreated State = iota
	StateRunning
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// lifecycle holds a State that only moves forward
type lifecycle struct {
	v atomic.Int32
}

func (l *lifecycle) load() State {
	return State(l.v.Load())
}

// transition moves from one state to another, reporting whether this caller
// performed the move
func (l *lifecycle) transition(from, to State) bool {
	return l.v.CompareAndSwap(int32(from), int32(to))
}

func (l *lifecycle) store(s State) {
	l.v.Store(int32(s))
}
