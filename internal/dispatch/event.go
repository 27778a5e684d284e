package dispatch

import (
	"fmt"
	"net"
	"time"
)

// State is a dispatcher lifecycle state.
type State int

const (
	StateInit State = iota
	StateRunning
	StateDraining
	StateStopped
)

// String returns a human-readable name for the state
func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRunning:
		return "RUNNING"
	case StateDraining:
		return "DRAINING"
	case StateStopped:
		return "STOPPED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// EventKind tags an Event.
type EventKind int

const (
	EventBroadcastReadable EventKind = iota
	EventRegularReadable
	EventWindowExpired
	EventTick
	EventSignal
)

// String returns a human-readable name for the event kind
func (k EventKind) String() string {
	switch k {
	case EventBroadcastReadable:
		return "broadcast-readable"
	case EventRegularReadable:
		return "regular-readable"
	case EventWindowExpired:
		return "window-expired"
	case EventTick:
		return "tick"
	case EventSignal:
		return "signal"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one ready source, delivered to callbacks in arrival order.
type Event struct {
	Kind    EventKind
	Socket  SocketID     // Receiving socket, for readable events
	Payload []byte       // Datagram bytes, owned by the callback
	From    *net.UDPAddr // Sender, for readable events
	IfIndex int          // Arrival interface index, 0 when unknown
	At      time.Time
	Reason  string // Why a signal event fired
}

// Readable reports whether the event carries a datagram.
func (e Event) Readable() bool {
	return e.Kind == EventBroadcastReadable || e.Kind == EventRegularReadable
}

func readableKind(id SocketID) EventKind {
	if id == SocketBroadcast {
		return EventBroadcastReadable
	}
	return EventRegularReadable
}
