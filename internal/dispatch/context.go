package dispatch

import (
	"fmt"
	"net"
	"time"

	"github.com/muurk/lanloc/internal/netif"
	"github.com/muurk/lanloc/internal/registry"
	"github.com/muurk/lanloc/internal/wire"
)

// Well-known ports. Each is independently configurable through Ports.
const (
	DefaultClientPort    = 48026
	DefaultRegularPort   = 48027
	DefaultBroadcastPort = 48028
	DefaultDisplayPort   = 48029
)

// Default collection timing.
const (
	DefaultWindow         = 3 * time.Second
	DefaultLongWait       = 30 * time.Second
	DefaultUpdateInterval = 30 * time.Second
)

// Ports holds the UDP ports of one session.
type Ports struct {
	Broadcast int // Providers listen here for discovery requests
	Regular   int // Providers listen here for control messages
	Client    int // Locators receive responses here
	Display   int // Display service channel
}

// DefaultPorts returns the well-known port set.
func DefaultPorts() Ports {
	return Ports{
		Broadcast: DefaultBroadcastPort,
		Regular:   DefaultRegularPort,
		Client:    DefaultClientPort,
		Display:   DefaultDisplayPort,
	}
}

// Counters tracks datagram traffic for one session.
type Counters struct {
	Sent         int
	Received     int
	Dropped      int
	SendFailures int
}

// ControlContext is the session state shared by every callback. Only the
// dispatcher goroutine touches it, so it carries no locks.
type ControlContext struct {
	Ports      Ports
	Interfaces []netif.Entry
	Registry   *registry.Registry

	Debug          int
	UpdateMode     bool
	Unique         bool
	KeyPolicy      registry.KeyPolicy
	Service        string        // Locator filter or provider's primary service
	Window         time.Duration // Locator collection window
	LongWait       time.Duration // Upper bound for Window
	UpdateInterval time.Duration // Re-announce period in update mode
	MaxReplies     int           // Stop collecting after this many entries, 0 = no cap
	HardwareAddr   string        // Opaque device selector passed through from the CLI

	sockets  [socketCount]*socket
	counters Counters
	exit     bool
	reason   string
	buf      []byte
}

// NewControlContext returns a context with default ports and timing.
func NewControlContext() *ControlContext {
	return &ControlContext{
		Ports:          DefaultPorts(),
		Window:         DefaultWindow,
		LongWait:       DefaultLongWait,
		UpdateInterval: DefaultUpdateInterval,
		buf:            make([]byte, 0, wire.MaxMessageSize),
	}
}

// CollectionWindow returns Window clamped to LongWait.
func (cc *ControlContext) CollectionWindow() time.Duration {
	w := cc.Window
	if w <= 0 {
		w = DefaultWindow
	}
	if cc.LongWait > 0 && w > cc.LongWait {
		w = cc.LongWait
	}
	return w
}

// NewRegistry replaces the session registry with a fresh one configured
// from the context's unique mode and key policy. A previous registry is
// destroyed.
func (cc *ControlContext) NewRegistry() *registry.Registry {
	if cc.Registry != nil {
		cc.Registry.Destroy()
	}
	cc.Registry = registry.New(
		registry.WithUnique(cc.Unique),
		registry.WithKeyPolicy(cc.KeyPolicy),
	)
	return cc.Registry
}

// SetExit raises the exit flag. The first reason is kept.
func (cc *ControlContext) SetExit(reason string) {
	if !cc.exit {
		cc.exit = true
		cc.reason = reason
	}
}

// Exiting reports whether the exit flag is set.
func (cc *ControlContext) Exiting() bool {
	return cc.exit
}

// ExitReason returns why the exit flag was raised.
func (cc *ControlContext) ExitReason() string {
	return cc.reason
}

// Counters returns a copy of the traffic counters.
func (cc *ControlContext) Counters() Counters {
	return cc.counters
}

// CountDropped records an inbound datagram that was rejected.
func (cc *ControlContext) CountDropped() {
	cc.counters.Dropped++
}

// CountSendFailure records an outbound datagram that could not be sent.
func (cc *ControlContext) CountSendFailure() {
	cc.counters.SendFailures++
}

// Buffer returns the reusable encode buffer, emptied.
func (cc *ControlContext) Buffer() []byte {
	if cc.buf == nil {
		cc.buf = make([]byte, 0, wire.MaxMessageSize)
	}
	return cc.buf[:0]
}

// SendTo writes one datagram on socket id.
func (cc *ControlContext) SendTo(id SocketID, b []byte, addr *net.UDPAddr) error {
	s := cc.sockets[id]
	if s == nil {
		return fmt.Errorf("%s socket is not open", id)
	}
	if _, err := s.conn.WriteToUDP(b, addr); err != nil {
		cc.counters.SendFailures++
		return err
	}
	cc.counters.Sent++
	return nil
}

// LocalAddr returns the bound address of socket id, or nil if it is closed.
func (cc *ControlContext) LocalAddr(id SocketID) *net.UDPAddr {
	s := cc.sockets[id]
	if s == nil {
		return nil
	}
	addr, _ := s.conn.LocalAddr().(*net.UDPAddr)
	return addr
}
