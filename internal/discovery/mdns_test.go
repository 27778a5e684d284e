package discovery

import (
	"net"
	"testing"
	"time"

	"github.com/grandcat/zeroconf"

	"github.com/muurk/lanloc/internal/hostinfo"
	"github.com/muurk/lanloc/internal/registry"
)

func TestParseServiceEntry(t *testing.T) {
	tests := []struct {
		name        string
		entry       *zeroconf.ServiceEntry
		wantNil     bool
		wantService string
		wantHost    string
		wantShort   string
		wantIP      string
		wantPort    int
	}{
		{
			name: "provider with TXT records",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "svcA"},
				HostName:      "node1.local.",
				Port:          48028,
				AddrIPv4:      []net.IP{net.ParseIP("192.168.1.10")},
				Text:          []string{"service=svcA", "port=8080", "user=pi"},
			},
			wantService: "svcA",
			wantHost:    "node1.local",
			wantShort:   "node1",
			wantIP:      "192.168.1.10",
			wantPort:    8080,
		},
		{
			name: "service falls back to instance name",
			entry: &zeroconf.ServiceEntry{
				ServiceRecord: zeroconf.ServiceRecord{Instance: "printer"},
				HostName:      "node2.local.",
				AddrIPv4:      []net.IP{net.ParseIP("10.0.0.5")},
			},
			wantService: "printer",
			wantHost:    "node2.local",
			wantShort:   "node2",
			wantIP:      "10.0.0.5",
		},
		{
			name: "prefers first IPv4 address",
			entry: &zeroconf.ServiceEntry{
				HostName: "node3.local.",
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.50"), net.ParseIP("192.168.1.51")},
				AddrIPv6: []net.IP{net.ParseIP("fe80::2")},
				Text:     []string{"service=svcC", "port=notanumber"},
			},
			wantService: "svcC",
			wantHost:    "node3.local",
			wantShort:   "node3",
			wantIP:      "192.168.1.50",
		},
		{
			name: "IPv6 only is rejected",
			entry: &zeroconf.ServiceEntry{
				HostName: "node4.local.",
				AddrIPv6: []net.IP{net.ParseIP("fe80::1")},
			},
			wantNil: true,
		},
		{
			name: "empty hostname",
			entry: &zeroconf.ServiceEntry{
				AddrIPv4: []net.IP{net.ParseIP("192.168.1.1")},
			},
			wantNil: true,
		},
		{
			name:    "nil entry",
			entry:   nil,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := parseServiceEntry(tt.entry)

			if tt.wantNil {
				if e != nil {
					t.Errorf("parseServiceEntry() = %v, want nil", e)
				}
				return
			}
			if e == nil {
				t.Fatal("parseServiceEntry() = nil, want entry")
			}
			if e.Service != tt.wantService {
				t.Errorf("Service = %v, want %v", e.Service, tt.wantService)
			}
			if e.Host != tt.wantHost {
				t.Errorf("Host = %v, want %v", e.Host, tt.wantHost)
			}
			if e.ShortHost != tt.wantShort {
				t.Errorf("ShortHost = %v, want %v", e.ShortHost, tt.wantShort)
			}
			if e.IP != tt.wantIP {
				t.Errorf("IP = %v, want %v", e.IP, tt.wantIP)
			}
			if e.Port != tt.wantPort {
				t.Errorf("Port = %v, want %v", e.Port, tt.wantPort)
			}
			if time.Since(e.Created) > time.Second {
				t.Errorf("Created is not recent: %v", e.Created)
			}
		})
	}
}

func TestMerge(t *testing.T) {
	reg := registry.New(registry.WithUnique(true))
	defer reg.Destroy()
	_ = reg.Insert(&registry.Entry{Service: "svcA", Host: "node1", IP: "192.168.1.10"})

	browsed := []*registry.Entry{
		{Service: "svcA", Host: "node1", IP: "192.168.1.99"},
		{Service: "svcB", Host: "node2", IP: "192.168.1.11"},
	}

	if added := Merge(reg, browsed); added != 1 {
		t.Errorf("Merge() added %d, want 1", added)
	}
	if reg.Count() != 2 {
		t.Errorf("Count() = %d, want 2", reg.Count())
	}
	a, _ := reg.FindByName("svcA")
	if a.IP != "192.168.1.10" {
		t.Errorf("broadcast result was overwritten: %v", a.IP)
	}
}

func TestTxtRecords(t *testing.T) {
	snap := hostinfo.Snapshot{Platform: "Linux", User: "pi", Timestamp: "now"}
	got := txtRecords(Service{Name: "svcA", Port: 80}, snap)
	want := []string{"service=svcA", "port=80", "platform=Linux", "user=pi", "timestamp=now"}

	if len(got) != len(want) {
		t.Fatalf("txtRecords() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("txtRecords()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	// Round trip through the parser
	e := parseServiceEntry(&zeroconf.ServiceEntry{
		HostName: "node1.local.",
		AddrIPv4: []net.IP{net.ParseIP("192.168.1.10")},
		Text:     got,
	})
	if e == nil || e.Service != "svcA" || e.Port != 80 || e.User != "pi" {
		t.Errorf("parseServiceEntry(txtRecords()) = %+v", e)
	}
}

func TestNewScanner(t *testing.T) {
	if s := NewScanner(); s.Timeout != DefaultScanTimeout {
		t.Errorf("NewScanner().Timeout = %v, want %v", s.Timeout, DefaultScanTimeout)
	}
}

func TestAdvertiserShutdownNil(t *testing.T) {
	var a *Advertiser
	a.Shutdown()
}
