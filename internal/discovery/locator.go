package discovery

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/muurk/lanloc/internal/dispatch"
	"github.com/muurk/lanloc/internal/logging"
	"github.com/muurk/lanloc/internal/registry"
	"github.com/muurk/lanloc/internal/wire"
)

// Locator broadcasts a discovery request on every interface and collects
// the responses into the session registry.
type Locator struct {
	// Requester identifies this host in requests
	Requester string

	nonce      string
	broadcasts int
}

// NewLocator creates a locator that identifies itself as requester.
func NewLocator(requester string) *Locator {
	return &Locator{Requester: requester}
}

// Name implements dispatch.Role
func (l *Locator) Name() string { return "locator" }

// Plan implements dispatch.Role. Responses arrive on the client port.
func (l *Locator) Plan(cc *dispatch.ControlContext) dispatch.Plan {
	var p dispatch.Plan
	p.Sockets[dispatch.SocketRegular] = dispatch.SocketSpec{
		Enabled:   true,
		Port:      cc.Ports.Client,
		Broadcast: true,
	}
	p.Window = cc.CollectionWindow()
	if cc.UpdateMode {
		p.Tick = cc.UpdateInterval
	}
	return p
}

// Start implements dispatch.Role by sending the first round of requests.
func (l *Locator) Start(cc *dispatch.ControlContext) error {
	if cc.Registry == nil {
		cc.NewRegistry()
	}
	l.nonce = uuid.NewString()
	return l.broadcast(cc)
}

// broadcast sends one request per interface. A failing interface is logged
// and skipped.
func (l *Locator) broadcast(cc *dispatch.ControlContext) error {
	b, err := wire.AppendRequest(cc.Buffer(), wire.Request{
		Requester: l.Requester,
		Service:   cc.Service,
		Nonce:     l.nonce,
		Sent:      time.Now(),
	})
	if err != nil {
		return err
	}

	if len(cc.Interfaces) == 0 {
		logging.Warn("No broadcast interfaces, request not sent")
		return nil
	}

	l.broadcasts++
	for _, iface := range cc.Interfaces {
		target := &net.UDPAddr{IP: iface.Broadcast, Port: cc.Ports.Broadcast}
		if err := cc.SendTo(dispatch.SocketRegular, b, target); err != nil {
			logging.Warn("Discovery request not sent",
				zap.Error(&SendFailure{Interface: iface.Name, Target: target.String(), Err: err}),
			)
			continue
		}
		logging.LogDatagram("out", target.String(), b)
	}
	return nil
}

// HandleDatagram implements dispatch.Role. Malformed or filtered responses
// are dropped.
func (l *Locator) HandleDatagram(cc *dispatch.ControlContext, ev dispatch.Event) {
	entry, err := wire.ParseResponse(ev.Payload, ev.From)
	if err != nil {
		cc.CountDropped()
		logging.Debug("Dropping datagram", zap.Stringer("from", ev.From), zap.Error(err))
		return
	}
	if cc.Service != "" && entry.Service != cc.Service {
		logging.Debug("Ignoring response for other service",
			zap.String("service", entry.Service),
			zap.String("want", cc.Service),
		)
		return
	}

	if err := cc.Registry.Insert(entry); err != nil {
		if errors.Is(err, registry.ErrFull) {
			logging.Warn("Registry full, response dropped", zap.String("key", entry.Key(cc.KeyPolicy)))
		}
		cc.CountDropped()
		return
	}
	logging.Info("Service located",
		zap.String("service", entry.Service),
		zap.String("host", entry.Host),
		zap.String("ip", entry.IP),
	)
}

// HandleTick implements dispatch.Role. In update mode the request is repeated.
func (l *Locator) HandleTick(cc *dispatch.ControlContext) {
	if err := l.broadcast(cc); err != nil {
		logging.Warn("Re-broadcast failed", zap.Error(err))
	}
}

// Done implements dispatch.Role. It is true once MaxReplies entries are held.
func (l *Locator) Done(cc *dispatch.ControlContext) bool {
	return cc.MaxReplies > 0 && cc.Registry.Count() >= cc.MaxReplies
}

// Broadcasts returns how many request rounds were sent.
func (l *Locator) Broadcasts() int {
	return l.broadcasts
}

// Locate runs one locate round over cc and returns the registry it filled.
// An empty registry after the window is a normal result. The caller owns
// the returned registry and must Destroy it.
func Locate(ctx context.Context, cc *dispatch.ControlContext, requester string, opts ...dispatch.Option) (*registry.Registry, error) {
	reg := cc.NewRegistry()
	d := dispatch.New(cc, NewLocator(requester), opts...)
	if err := d.Run(ctx); err != nil {
		reg.Destroy()
		cc.Registry = nil
		return nil, err
	}
	return reg, nil
}
