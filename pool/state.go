package pool

import "fmt"

// State is the connection state of a Pool.
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Dying
	Closed
)

var stateNames = [...]string{
	Disconnected: "disconnected",
	Connecting:   "connecting",
	Connected:    "connected",
	Dying:        "dying",
	Closed:       "closed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// rendezvous is the one-shot signal of a connect attempt sequence. It fires
// once, on success, and is never reused afterwards.
type rendezvous struct {
	done chan struct{}
}

func newRendezvous() *rendezvous {
	return &rendezvous{done: make(chan struct{})}
}

func (r *rendezvous) fire() {
	close(r.done)
}
