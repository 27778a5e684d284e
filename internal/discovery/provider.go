package discovery

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/lanloc/internal/dispatch"
	"github.com/muurk/lanloc/internal/hostinfo"
	"github.com/muurk/lanloc/internal/logging"
	"github.com/muurk/lanloc/internal/netif"
	"github.com/muurk/lanloc/internal/registry"
	"github.com/muurk/lanloc/internal/wire"
)

// Service is one advertised service of a provider.
type Service struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port,omitempty"`
}

// String returns "name" or "name:port"
func (s Service) String() string {
	if s.Port == 0 {
		return s.Name
	}
	return s.Name + ":" + strconv.Itoa(s.Port)
}

// ParseService parses "name" or "name:port".
func ParseService(s string) (Service, error) {
	name, portStr, hasPort := strings.Cut(strings.TrimSpace(s), ":")
	if name == "" {
		return Service{}, fmt.Errorf("service name is empty in %q", s)
	}
	if strings.ContainsAny(name, "|\r\n") {
		return Service{}, fmt.Errorf("service name %q contains a reserved character", name)
	}
	svc := Service{Name: name}
	if hasPort {
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 0 || port > 65535 {
			return Service{}, fmt.Errorf("invalid port in %q", s)
		}
		svc.Port = port
	}
	return svc, nil
}

// Provider answers discovery requests with a self-description per
// advertised service.
type Provider struct {
	Describer       hostinfo.Describer
	Services        []Service
	AllowRemoteQuit bool   // Honor quit control messages
	AdvertiseIP     string // Fixed reporting address, overrides interface selection

	answered int
}

// NewProvider creates a provider for the given services.
func NewProvider(d hostinfo.Describer, services ...Service) *Provider {
	if d == nil {
		d = hostinfo.System{}
	}
	return &Provider{Describer: d, Services: services}
}

// Name implements dispatch.Role
func (p *Provider) Name() string { return "provider" }

// Plan implements dispatch.Role. Requests arrive on the broadcast port,
// control messages on the regular port. There is no collection window.
func (p *Provider) Plan(cc *dispatch.ControlContext) dispatch.Plan {
	var plan dispatch.Plan
	plan.Sockets[dispatch.SocketBroadcast] = dispatch.SocketSpec{
		Enabled:   true,
		Port:      cc.Ports.Broadcast,
		Broadcast: true,
	}
	plan.Sockets[dispatch.SocketRegular] = dispatch.SocketSpec{
		Enabled:   true,
		Port:      cc.Ports.Regular,
		Broadcast: true,
	}
	if cc.UpdateMode {
		plan.Tick = cc.UpdateInterval
	}
	return plan
}

// Start implements dispatch.Role. In update mode the first announcement goes
// out immediately.
func (p *Provider) Start(cc *dispatch.ControlContext) error {
	names := make([]string, 0, len(p.Services))
	for _, s := range p.Services {
		names = append(names, s.String())
	}
	logging.Info("Provider listening",
		zap.Int("broadcast_port", cc.Ports.Broadcast),
		zap.Int("regular_port", cc.Ports.Regular),
		zap.Strings("services", names),
		zap.Bool("update_mode", cc.UpdateMode),
	)
	if cc.UpdateMode {
		p.announce(cc)
	}
	return nil
}

// HandleDatagram implements dispatch.Role. Malformed datagrams are dropped
// without notice above debug level.
func (p *Provider) HandleDatagram(cc *dispatch.ControlContext, ev dispatch.Event) {
	msg, err := wire.Decode(ev.Payload)
	if err != nil {
		cc.CountDropped()
		logging.Debug("Dropping datagram", zap.Stringer("from", ev.From), zap.Error(err))
		return
	}

	switch m := msg.(type) {
	case wire.Request:
		p.answer(cc, ev, m)
	case wire.Add:
		p.AddService(Service{Name: m.Service, Port: m.Port})
		logging.Info("Service added", zap.String("service", m.Service), zap.Stringer("from", ev.From))
	case wire.Quit:
		if !p.AllowRemoteQuit {
			logging.Debug("Ignoring quit request", zap.Stringer("from", ev.From))
			return
		}
		cc.SetExit("quit requested by " + ev.From.String())
	default:
		cc.CountDropped()
		logging.Debug("Ignoring message", zap.Stringer("kind", msg.Kind()), zap.Stringer("from", ev.From))
	}
}

// AddService advertises svc, replacing the port of an existing service
// with the same name.
func (p *Provider) AddService(svc Service) {
	for i := range p.Services {
		if p.Services[i].Name == svc.Name {
			p.Services[i].Port = svc.Port
			return
		}
	}
	if len(p.Services) >= registry.DefaultCapacity {
		logging.Warn("Service list full", zap.String("service", svc.Name))
		return
	}
	p.Services = append(p.Services, svc)
}

// matching returns the services that answer a request filtered by name.
// A provider without services answers as its host.
func (p *Provider) matching(filter string) []Service {
	if len(p.Services) == 0 {
		if filter != "" {
			return nil
		}
		return []Service{{}}
	}
	if filter == "" {
		return p.Services
	}
	for _, s := range p.Services {
		if s.Name == filter {
			return []Service{s}
		}
	}
	return nil
}

// reportingIP picks the address to report to a requester: the fixed
// override, the arrival interface, the interface sharing the requester's
// subnet, then the first interface.
func (p *Provider) reportingIP(cc *dispatch.ControlContext, ev dispatch.Event) string {
	if p.AdvertiseIP != "" {
		return p.AdvertiseIP
	}
	if e, ok := netif.FindByIndex(cc.Interfaces, ev.IfIndex); ok {
		return e.IP.String()
	}
	if ev.From != nil {
		if e, ok := netif.FindBySubnet(cc.Interfaces, ev.From.IP); ok {
			return e.IP.String()
		}
	}
	if len(cc.Interfaces) > 0 {
		return cc.Interfaces[0].IP.String()
	}
	if local := cc.LocalAddr(ev.Socket); local != nil && !local.IP.IsUnspecified() {
		return local.IP.String()
	}
	return "127.0.0.1"
}

func (p *Provider) response(snap hostinfo.Snapshot, svc Service, ip string) wire.Response {
	return wire.Response{
		Service:   svc.Name,
		Host:      snap.Host,
		ShortHost: snap.ShortHost,
		IP:        ip,
		Port:      svc.Port,
		Platform:  snap.Platform,
		LoadAvg:   snap.LoadAvg,
		Timestamp: snap.Timestamp,
		User:      snap.User,
	}
}

// answer replies to one request, unicast to its sender.
func (p *Provider) answer(cc *dispatch.ControlContext, ev dispatch.Event, req wire.Request) {
	services := p.matching(req.Service)
	if len(services) == 0 {
		logging.Debug("Request for unknown service", zap.String("service", req.Service))
		return
	}

	snap := p.Describer.Describe()
	ip := p.reportingIP(cc, ev)
	for _, svc := range services {
		b, err := wire.AppendResponse(cc.Buffer(), p.response(snap, svc, ip))
		if err != nil {
			logging.Warn("Response not encoded", zap.String("service", svc.Name), zap.Error(err))
			continue
		}
		if err := cc.SendTo(ev.Socket, b, ev.From); err != nil {
			logging.Warn("Response not sent",
				zap.Error(&SendFailure{Target: ev.From.String(), Err: err}),
			)
			continue
		}
		p.answered++
		logging.LogDatagram("out", ev.From.String(), b)
	}
	logging.Info("Answered request",
		zap.String("requester", req.Requester),
		zap.Stringer("from", ev.From),
		zap.Int("services", len(services)),
	)
}

// announce broadcasts an unsolicited response per service on every
// interface, addressed to the locators' client port.
func (p *Provider) announce(cc *dispatch.ControlContext) {
	snap := p.Describer.Describe()
	for _, iface := range cc.Interfaces {
		target := &net.UDPAddr{IP: iface.Broadcast, Port: cc.Ports.Client}
		ip := iface.IP.String()
		if p.AdvertiseIP != "" {
			ip = p.AdvertiseIP
		}
		for _, svc := range p.matching("") {
			b, err := wire.AppendResponse(cc.Buffer(), p.response(snap, svc, ip))
			if err != nil {
				logging.Warn("Announcement not encoded", zap.String("service", svc.Name), zap.Error(err))
				continue
			}
			if err := cc.SendTo(dispatch.SocketRegular, b, target); err != nil {
				logging.Warn("Announcement not sent",
					zap.Error(&SendFailure{Interface: iface.Name, Target: target.String(), Err: err}),
				)
			}
		}
	}
}

// HandleTick implements dispatch.Role by re-announcing.
func (p *Provider) HandleTick(cc *dispatch.ControlContext) {
	p.announce(cc)
}

// Done implements dispatch.Role. Providers run until told to stop.
func (p *Provider) Done(cc *dispatch.ControlContext) bool { return false }

// Answered returns how many responses were sent in reply to requests.
func (p *Provider) Answered() int {
	return p.answered
}
