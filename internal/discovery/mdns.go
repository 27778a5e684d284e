package discovery

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/lanloc/internal/hostinfo"
	"github.com/muurk/lanloc/internal/logging"
	"github.com/muurk/lanloc/internal/registry"
)

const (
	// MDNSServiceType is the DNS-SD type providers register under
	MDNSServiceType = "_lanloc._udp"

	// MDNSDomain is the mDNS domain (typically "local.")
	MDNSDomain = "local."

	// DefaultScanTimeout is the default mDNS browse duration
	DefaultScanTimeout = 3 * time.Second
)

// Scanner browses mDNS for lanloc providers. It complements the broadcast
// round on networks where directed broadcast is filtered.
type Scanner struct {
	// Timeout is the maximum time to wait for announcements
	Timeout time.Duration
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
	}
}

// Browse collects provider announcements until the timeout or ctx ends.
func (s *Scanner) Browse(ctx context.Context) ([]*registry.Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	found := make([]*registry.Entry, 0)
	finished := make(chan struct{})

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	go func() {
		defer close(finished)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				if e := parseServiceEntry(entry); e != nil {
					found = append(found, e)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, MDNSServiceType, MDNSDomain, entries); err != nil {
		cancel()
		<-finished
		return nil, fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	<-finished
	return found, nil
}

// parseServiceEntry converts a zeroconf service entry to a registry entry.
// Returns nil if the entry carries no IPv4 address.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *registry.Entry {
	if entry == nil || len(entry.AddrIPv4) == 0 {
		return nil
	}

	txt := make(map[string]string)
	for _, record := range entry.Text {
		k, v, _ := strings.Cut(record, "=")
		txt[k] = v
	}

	e := &registry.Entry{
		Service:   txt["service"],
		Host:      strings.TrimSuffix(entry.HostName, "."),
		IP:        entry.AddrIPv4[0].String(),
		Platform:  txt["platform"],
		User:      txt["user"],
		Timestamp: txt["timestamp"],
		Created:   time.Now(),
	}
	if e.Service == "" {
		e.Service = entry.Instance
	}
	if port, err := strconv.Atoi(txt["port"]); err == nil {
		e.Port = port
	}
	e.ShortHost, _, _ = strings.Cut(e.Host, ".")
	if e.Host == "" {
		return nil
	}
	return e
}

// Merge inserts browsed entries into reg, skipping ones whose key the
// broadcast round already found. Returns how many were added.
func Merge(reg *registry.Registry, entries []*registry.Entry) int {
	added := 0
	for _, e := range entries {
		if _, err := reg.FindByName(e.Key(reg.Policy())); err == nil {
			continue
		}
		if err := reg.Insert(e); err != nil {
			break
		}
		added++
	}
	return added
}

// Advertiser registers provider services over mDNS while a provider runs.
type Advertiser struct {
	servers []*zeroconf.Server
}

// txtRecords builds the TXT set for one service.
func txtRecords(svc Service, snap hostinfo.Snapshot) []string {
	return []string{
		"service=" + svc.Name,
		"port=" + strconv.Itoa(svc.Port),
		"platform=" + snap.Platform,
		"user=" + snap.User,
		"timestamp=" + snap.Timestamp,
	}
}

// Advertise registers every service, announcing the provider's broadcast
// port. Call Shutdown to withdraw them.
func Advertise(services []Service, snap hostinfo.Snapshot, port int) (*Advertiser, error) {
	if len(services) == 0 {
		services = []Service{{Name: snap.ShortHost}}
	}

	a := &Advertiser{}
	for _, svc := range services {
		instance := svc.Name
		if instance == "" {
			instance = snap.ShortHost
		}
		server, err := zeroconf.Register(instance, MDNSServiceType, MDNSDomain, port, txtRecords(svc, snap), nil)
		if err != nil {
			a.Shutdown()
			return nil, fmt.Errorf("failed to register %s over mDNS: %w", instance, err)
		}
		a.servers = append(a.servers, server)
		logging.Debug("mDNS service registered", zap.String("instance", instance), zap.Int("port", port))
	}
	return a, nil
}

// Shutdown withdraws every registration.
func (a *Advertiser) Shutdown() {
	if a == nil {
		return
	}
	for _, s := range a.servers {
		s.Shutdown()
	}
	a.servers = nil
}
