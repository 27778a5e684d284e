// Package netif enumerates the IPv4 broadcast domains of the local host.
package netif

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/muurk/lanloc/internal/logging"
)

// DefaultMaxInterfaces bounds the number of broadcast domains a session uses.
const DefaultMaxInterfaces = 8

// routeTable is where the kernel exposes the IPv4 routing table on Linux.
var routeTable = "/proc/net/route"

// Entry describes one IPv4 broadcast domain reachable from this host.
type Entry struct {
	Name      string // Interface name (e.g., "eth0")
	Index     int    // Kernel interface index
	IP        net.IP // IPv4 address assigned to the interface
	Netmask   net.IPMask
	Broadcast net.IP // Directed broadcast address for the subnet
}

// String returns a human-readable form of the entry
func (e Entry) String() string {
	return fmt.Sprintf("%s %s bcast %s", e.Name, e.IP, e.Broadcast)
}

// Contains reports whether ip lies inside the entry's subnet.
func (e Entry) Contains(ip net.IP) bool {
	ip4 := ip.To4()
	if ip4 == nil || e.IP == nil || e.Netmask == nil {
		return false
	}
	return ip4.Mask(e.Netmask).Equal(e.IP.To4().Mask(e.Netmask))
}

// EnumerationError is returned when the host's interface addresses cannot be read.
type EnumerationError struct {
	Op  string
	Err error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("interface enumeration failed (%s): %v", e.Op, e.Err)
}

func (e *EnumerationError) Unwrap() error {
	return e.Err
}

// candidate is the subset of net.Interface data enumeration needs.
type candidate struct {
	name  string
	index int
	flags net.Flags
	addrs []net.Addr
}

// Enumerate lists active broadcast-capable IPv4 interfaces, at most max of them.
// The interface carrying the default route is listed first when known.
func Enumerate(max int) ([]Entry, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, &EnumerationError{Op: "list interfaces", Err: err}
	}

	cands := make([]candidate, 0, len(ifaces))
	for _, iface := range ifaces {
		addrs, err := iface.Addrs()
		if err != nil {
			return nil, &EnumerationError{Op: "addresses of " + iface.Name, Err: err}
		}
		cands = append(cands, candidate{
			name:  iface.Name,
			index: iface.Index,
			flags: iface.Flags,
			addrs: addrs,
		})
	}

	return selectEntries(cands, DefaultInterface(), max), nil
}

func selectEntries(cands []candidate, preferred string, max int) []Entry {
	if max <= 0 {
		max = DefaultMaxInterfaces
	}

	var entries []Entry
	for _, c := range cands {
		if c.flags&net.FlagUp == 0 || c.flags&net.FlagLoopback != 0 {
			continue
		}
		if c.flags&net.FlagBroadcast == 0 {
			continue
		}
		for _, addr := range c.addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip4 := ipNet.IP.To4()
			if ip4 == nil {
				continue
			}
			mask := ipNet.Mask
			if len(mask) == net.IPv6len {
				mask = mask[12:]
			}
			entries = append(entries, Entry{
				Name:      c.name,
				Index:     c.index,
				IP:        ip4,
				Netmask:   mask,
				Broadcast: BroadcastAddr(ip4, mask),
			})
		}
	}

	if preferred != "" {
		for i, e := range entries {
			if e.Name == preferred && i > 0 {
				head := entries[i]
				copy(entries[1:i+1], entries[:i])
				entries[0] = head
				break
			}
		}
	}

	if len(entries) > max {
		logging.Debug("Interface cap reached, dropping extra interfaces",
			zap.Int("found", len(entries)),
			zap.Int("cap", max),
		)
		entries = entries[:max]
	}
	return entries
}

// BroadcastAddr derives the directed broadcast address of ip's subnet.
// Returns nil for non-IPv4 input.
func BroadcastAddr(ip net.IP, mask net.IPMask) net.IP {
	ip4 := ip.To4()
	if ip4 == nil || len(mask) != net.IPv4len {
		return nil
	}
	bcast := make(net.IP, net.IPv4len)
	for i := range ip4 {
		bcast[i] = ip4[i] | ^mask[i]
	}
	return bcast
}

// DefaultInterface returns the name of the interface holding the default
// route, or "" if the routing table is unavailable.
func DefaultInterface() string {
	f, err := os.Open(routeTable)
	if err != nil {
		return ""
	}
	defer f.Close()
	return parseDefaultRoute(f)
}

// parseDefaultRoute scans /proc/net/route content for the 00000000 destination.
func parseDefaultRoute(r io.Reader) string {
	scanner := bufio.NewScanner(r)
	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue // header
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue
		}
		if fields[1] == "00000000" {
			return fields[0]
		}
	}
	return ""
}

// FindByIndex returns the entry with the given interface index.
func FindByIndex(entries []Entry, index int) (Entry, bool) {
	for _, e := range entries {
		if index != 0 && e.Index == index {
			return e, true
		}
	}
	return Entry{}, false
}

// FindBySubnet returns the first entry whose subnet contains ip.
func FindBySubnet(entries []Entry, ip net.IP) (Entry, bool) {
	for _, e := range entries {
		if e.Contains(ip) {
			return e, true
		}
	}
	return Entry{}, false
}
