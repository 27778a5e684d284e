package dispatch

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/lanloc/internal/logging"
	"github.com/muurk/lanloc/internal/wire"
)

// Plan is what a role asks of the dispatcher when it starts.
type Plan struct {
	Sockets [socketCount]SocketSpec
	Window  time.Duration // Collection window, 0 runs until exit
	Tick    time.Duration // Periodic EventTick, 0 disables
}

// Role is the protocol logic driven by the dispatcher. Every method runs on
// the dispatcher goroutine, one call at a time.
type Role interface {
	Name() string
	Plan(cc *ControlContext) Plan
	// Start runs once the sockets are open, before the first event.
	Start(cc *ControlContext) error
	HandleDatagram(cc *ControlContext, ev Event)
	HandleTick(cc *ControlContext)
	// Done reports early satisfaction, checked before every wait.
	Done(cc *ControlContext) bool
}

// Observer is notified of every dispatched event. It runs on the
// dispatcher goroutine and must not block.
type Observer interface {
	OnEvent(state State, ev Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(State, Event)

// OnEvent implements Observer
func (f ObserverFunc) OnEvent(s State, ev Event) { f(s, ev) }

// eventQueueSize bounds datagrams buffered between readers and the loop.
const eventQueueSize = 64

// Dispatcher drives one role through INIT, RUNNING, DRAINING and STOPPED.
type Dispatcher struct {
	cc       *ControlContext
	role     Role
	signals  *SignalState
	observer Observer

	state   State
	bound   [socketCount]*net.UDPAddr
	events  chan Event
	done    chan struct{}
	ready   chan struct{}
	readers sync.WaitGroup
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSignals connects a SignalState. Without one only ctx cancels the loop.
func WithSignals(s *SignalState) Option {
	return func(d *Dispatcher) { d.signals = s }
}

// WithObserver installs an event observer.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

// New creates a dispatcher for role over cc.
func New(cc *ControlContext, role Role, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		cc:     cc,
		role:   role,
		state:  StateInit,
		events: make(chan Event, eventQueueSize),
		done:   make(chan struct{}),
		ready:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.signals == nil {
		d.signals = NewSignalState()
	}
	return d
}

// State returns the current state. Only meaningful from the dispatcher
// goroutine or after Run returns.
func (d *Dispatcher) State() State {
	return d.state
}

// Ready is closed once the dispatcher enters RUNNING.
func (d *Dispatcher) Ready() <-chan struct{} {
	return d.ready
}

// BoundAddr returns the local address socket id was bound to. Safe to call
// from any goroutine once Ready is closed.
func (d *Dispatcher) BoundAddr(id SocketID) *net.UDPAddr {
	return d.bound[id]
}

func (d *Dispatcher) transition(to State) {
	logging.Debug("Dispatcher state",
		zap.String("role", d.role.Name()),
		zap.Stringer("from", d.state),
		zap.Stringer("to", to),
	)
	d.state = to
	if to == StateRunning {
		close(d.ready)
	}
}

// Run opens the role's sockets and services events until the window
// expires, the role is satisfied, the exit flag is raised, a signal is
// observed or ctx is done. Sockets are always closed before Run returns.
// Only socket setup and role start failures are returned; window expiry is
// a normal end.
func (d *Dispatcher) Run(ctx context.Context) error {
	if d.state != StateInit {
		return errors.New("dispatcher already ran")
	}
	plan := d.role.Plan(d.cc)

	if err := d.open(ctx, plan); err != nil {
		d.closeSockets()
		d.transition(StateStopped)
		return err
	}
	for _, s := range d.cc.sockets {
		if s != nil {
			d.readers.Add(1)
			go d.readLoop(s)
		}
	}

	if err := d.role.Start(d.cc); err != nil {
		d.drain()
		return err
	}

	var window <-chan time.Time
	if plan.Window > 0 {
		timer := time.NewTimer(plan.Window)
		defer timer.Stop()
		window = timer.C
	}
	var tick <-chan time.Time
	if plan.Tick > 0 {
		ticker := time.NewTicker(plan.Tick)
		defer ticker.Stop()
		tick = ticker.C
	}

	d.transition(StateRunning)
	for d.state == StateRunning {
		if sig, ok := d.signals.Observed(); ok {
			d.cc.SetExit("signal: " + sig.String())
		}
		if d.cc.Exiting() || d.role.Done(d.cc) {
			break
		}

		select {
		case ev := <-d.events:
			d.dispatch(ev)
		case now := <-window:
			d.dispatch(Event{Kind: EventWindowExpired, At: now})
		case now := <-tick:
			d.dispatch(Event{Kind: EventTick, At: now})
		case <-d.signals.Wake():
			reason := "signal"
			if sig, ok := d.signals.Observed(); ok {
				reason = "signal: " + sig.String()
			}
			d.dispatch(Event{Kind: EventSignal, At: time.Now(), Reason: reason})
		case <-ctx.Done():
			d.dispatch(Event{Kind: EventSignal, At: time.Now(), Reason: ctx.Err().Error()})
		}
	}

	d.drain()
	return nil
}

func (d *Dispatcher) open(ctx context.Context, plan Plan) error {
	for i, spec := range plan.Sockets {
		if !spec.Enabled {
			continue
		}
		id := SocketID(i)
		s, err := openSocket(ctx, id, spec)
		if err != nil {
			return err
		}
		d.cc.sockets[id] = s
		d.bound[id], _ = s.conn.LocalAddr().(*net.UDPAddr)
	}
	return nil
}

// dispatch runs the callback registered for ev.
func (d *Dispatcher) dispatch(ev Event) {
	if d.observer != nil {
		d.observer.OnEvent(d.state, ev)
	}

	switch ev.Kind {
	case EventBroadcastReadable, EventRegularReadable:
		d.cc.counters.Received++
		logging.LogDatagram("in", ev.From.String(), ev.Payload)
		d.role.HandleDatagram(d.cc, ev)
	case EventWindowExpired:
		d.cc.SetExit("collection window expired")
	case EventTick:
		d.role.HandleTick(d.cc)
	case EventSignal:
		d.cc.SetExit(ev.Reason)
	}
}

// readLoop forwards datagrams from s until the socket is closed.
func (d *Dispatcher) readLoop(s *socket) {
	defer d.readers.Done()
	buf := make([]byte, wire.MaxMessageSize+1)
	for {
		n, from, ifIndex, err := s.read(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			select {
			case <-d.done:
				return
			default:
			}
			logging.Warn("Socket read failed", zap.Stringer("socket", s.id), zap.Error(err))
			continue
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])
		ev := Event{
			Kind:    readableKind(s.id),
			Socket:  s.id,
			Payload: payload,
			From:    from,
			IfIndex: ifIndex,
			At:      time.Now(),
		}
		select {
		case d.events <- ev:
		case <-d.done:
			return
		}
	}
}

// drain closes the sockets, waits for the readers and stops.
func (d *Dispatcher) drain() {
	d.transition(StateDraining)
	close(d.done)
	d.closeSockets()
	d.readers.Wait()

	if pending := len(d.events); pending > 0 {
		logging.Debug("Discarding queued datagrams", zap.Int("count", pending))
	}

	c := d.cc.Counters()
	logging.Info("Session finished",
		zap.String("role", d.role.Name()),
		zap.String("reason", d.cc.ExitReason()),
		zap.Int("sent", c.Sent),
		zap.Int("received", c.Received),
		zap.Int("dropped", c.Dropped),
		zap.Int("send_failures", c.SendFailures),
	)
	d.transition(StateStopped)
}

func (d *Dispatcher) closeSockets() {
	for i, s := range d.cc.sockets {
		if s == nil {
			continue
		}
		if err := s.close(); err != nil {
			logging.Debug("Socket close failed", zap.Stringer("socket", s.id), zap.Error(err))
		}
		d.cc.sockets[i] = nil
	}
}
