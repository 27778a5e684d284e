package registry

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Entry is one discovered service, parsed from a validated response.
type Entry struct {
	Service   string // Advertised service name (may be empty)
	Host      string // Fully qualified host name
	ShortHost string // Host name without domain
	IP        string // Reporting IPv4 address
	Port      int    // Advertised service port, 0 when unspecified
	Platform  string // uname-style platform string
	LoadAvg   string // Load average string
	Timestamp string // Provider's local date/time
	User      string // Effective user of the provider process

	From    *net.UDPAddr // Socket address the response arrived from
	Created time.Time    // When this entry was parsed
}

// KeyPolicy selects which identity an entry is registered under.
type KeyPolicy int

const (
	// KeyByService keys on the service name, falling back to the host name.
	KeyByService KeyPolicy = iota
	// KeyByHost keys on the host name, falling back to the service name.
	KeyByHost
)

// String returns the flag spelling of the policy
func (p KeyPolicy) String() string {
	switch p {
	case KeyByService:
		return "service"
	case KeyByHost:
		return "host"
	default:
		return fmt.Sprintf("KeyPolicy(%d)", p)
	}
}

// ParseKeyPolicy converts a flag value into a KeyPolicy.
func ParseKeyPolicy(s string) (KeyPolicy, error) {
	switch s {
	case "", "service", "name":
		return KeyByService, nil
	case "host", "hostname":
		return KeyByHost, nil
	default:
		return KeyByService, fmt.Errorf("unknown key policy %q (want service or host)", s)
	}
}

// Key returns the registry key of the entry under policy p.
func (e *Entry) Key(p KeyPolicy) string {
	if p == KeyByHost {
		if e.Host != "" {
			return e.Host
		}
		return e.Service
	}
	if e.Service != "" {
		return e.Service
	}
	return e.Host
}

// Address returns "ip:port" when a port is advertised, otherwise the IP.
func (e *Entry) Address() string {
	if e.Port == 0 {
		return e.IP
	}
	return net.JoinHostPort(e.IP, strconv.Itoa(e.Port))
}

// String returns a one-line summary in the registry's textual form
func (e *Entry) String() string {
	return fmt.Sprintf("name=%s,ip=%s,port=%d", e.Key(KeyByService), e.IP, e.Port)
}

// Clone returns a copy of the entry that shares no mutable state.
func (e *Entry) Clone() *Entry {
	c := *e
	if e.From != nil {
		from := *e.From
		from.IP = append(net.IP(nil), e.From.IP...)
		c.From = &from
	}
	return &c
}
