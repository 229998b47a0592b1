package command

import (
	"fmt"
	"time"
)

// State is the life-cycle state of a Context.
type State uint8

const (
	StateInit State = iota
	StateReady
	StateWork
	StateDone
	StateFail
	StateCancel
	StateUndone
)

var stateNames = [...]string{
	StateInit:   "INIT",
	StateReady:  "READY",
	StateWork:   "WORK",
	StateDone:   "DONE",
	StateFail:   "FAIL",
	StateCancel: "CANCEL",
	StateUndone: "UNDONE",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// MarshalText encodes the state as its upper-case name.
func (s State) MarshalText() ([]byte, error) {
	if int(s) >= len(stateNames) {
		return nil, fmt.Errorf("%w: unknown state %d", ErrMalformedWire, uint8(s))
	}
	return []byte(stateNames[s]), nil
}

// UnmarshalText decodes an upper-case state name.
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("%w: unknown state %q", ErrMalformedWire, string(text))
}

// canTransition reports whether from -> to is a legal move.
// FAIL is reachable from every state but itself: guards force it.
func canTransition(from, to State) bool {
	if to == StateFail {
		return from != StateFail
	}
	switch from {
	case StateInit:
		return to == StateReady || to == StateCancel
	case StateReady:
		return to == StateWork || to == StateCancel
	case StateWork:
		return to == StateDone || to == StateUndone
	case StateDone:
		return to == StateWork
	}
	return false
}

// StateEntry is one record of the context history: the state an attempt ended in,
// when the attempt started and how long it took.
type StateEntry struct {
	State     State         `json:"state"`
	StartedAt time.Time     `json:"started-at"`
	Duration  time.Duration `json:"duration"`
}

// StateListener observes context transitions. Listeners run synchronously
// in the goroutine that performed the transition.
type StateListener func(c *Context, from, to State)
