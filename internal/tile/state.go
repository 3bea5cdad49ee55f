package tile

import (
	"errors"
	"fmt"
)

var ErrInvalidTransition = errors.New("tile: invalid state transition")

type State int

const (
	StateUnloaded State = iota
	StateLoading
	StateLoaded
	StateErrored
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateUnloaded:
		return "unloaded"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateErrored:
		return "errored"
	case StateExpired:
		return "expired"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type event int

const (
	eventRequest event = iota
	eventLoaded
	eventErrored
	eventAborted
	eventExpire
	eventUnload
)

func (e event) String() string {
	switch e {
	case eventRequest:
		return "request"
	case eventLoaded:
		return "loaded"
	case eventErrored:
		return "errored"
	case eventAborted:
		return "aborted"
	case eventExpire:
		return "expire"
	case eventUnload:
		return "unload"
	}
	return fmt.Sprintf("event(%d)", int(e))
}

// transitions lists, per event, the states it may fire from and the state it
// leads to.
var transitions = map[event]struct {
	from []State
	to   State
}{
	eventRequest: {[]State{StateUnloaded, StateLoaded, StateErrored, StateExpired}, StateLoading},
	eventLoaded:  {[]State{StateLoading}, StateLoaded},
	eventErrored: {[]State{StateLoading}, StateErrored},
	eventAborted: {[]State{StateLoading}, StateUnloaded},
	eventExpire:  {[]State{StateLoaded, StateErrored}, StateExpired},
	eventUnload:  {[]State{StateUnloaded, StateLoaded, StateErrored, StateExpired}, StateUnloaded},
}

// transition is the only writer of Tile.state.
func (t *Tile) transition(e event) error {
	rule, ok := transitions[e]
	if !ok {
		return fmt.Errorf("%w: unknown event %v", ErrInvalidTransition, e)
	}
	for _, from := range rule.from {
		if t.state == from {
			t.state = rule.to
			return nil
		}
	}
	return fmt.Errorf("%w: %v on %v tile %v", ErrInvalidTransition, e, t.state, t.Coord)
}
