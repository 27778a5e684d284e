package registry

import (
	"errors"
	"fmt"
	"net"
	"testing"
)

func entry(service, host, ip string) *Entry {
	return &Entry{
		Service: service,
		Host:    host,
		IP:      ip,
		From:    &net.UDPAddr{IP: net.ParseIP(ip), Port: 48028},
	}
}

func TestRegistry_Uniqueness(t *testing.T) {
	tests := []struct {
		name      string
		unique    bool
		policy    KeyPolicy
		first     *Entry
		second    *Entry
		key       string
		wantCount int
		wantIP    string
	}{
		{
			name:      "unique by service replaces",
			unique:    true,
			policy:    KeyByService,
			first:     entry("svcA", "node1", "192.168.1.10"),
			second:    entry("svcA", "node2", "192.168.1.11"),
			key:       "svcA",
			wantCount: 1,
			wantIP:    "192.168.1.11",
		},
		{
			name:      "non-unique by service appends",
			unique:    false,
			policy:    KeyByService,
			first:     entry("svcA", "node1", "192.168.1.10"),
			second:    entry("svcA", "node2", "192.168.1.11"),
			key:       "svcA",
			wantCount: 2,
			wantIP:    "192.168.1.11",
		},
		{
			name:      "unique by host replaces",
			unique:    true,
			policy:    KeyByHost,
			first:     entry("svcA", "node1", "192.168.1.10"),
			second:    entry("svcB", "node1", "192.168.1.12"),
			key:       "node1",
			wantCount: 1,
			wantIP:    "192.168.1.12",
		},
		{
			name:      "unique by host keeps distinct services of distinct hosts",
			unique:    true,
			policy:    KeyByHost,
			first:     entry("svcA", "node1", "192.168.1.10"),
			second:    entry("svcA", "node2", "192.168.1.11"),
			key:       "node1",
			wantCount: 2,
			wantIP:    "192.168.1.10",
		},
		{
			name:      "unique by service with empty service falls back to host",
			unique:    true,
			policy:    KeyByService,
			first:     entry("", "node1", "192.168.1.10"),
			second:    entry("", "node1", "192.168.1.20"),
			key:       "node1",
			wantCount: 1,
			wantIP:    "192.168.1.20",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(WithUnique(tt.unique), WithKeyPolicy(tt.policy))
			defer r.Destroy()

			if err := r.Insert(tt.first); err != nil {
				t.Fatalf("Insert() error = %v", err)
			}
			if err := r.Insert(tt.second); err != nil {
				t.Fatalf("Insert() error = %v", err)
			}

			if got := r.Count(); got != tt.wantCount {
				t.Errorf("Count() = %d, want %d", got, tt.wantCount)
			}
			got, err := r.FindByName(tt.key)
			if err != nil {
				t.Fatalf("FindByName(%q) error = %v", tt.key, err)
			}
			if got.IP != tt.wantIP {
				t.Errorf("FindByName(%q).IP = %v, want %v", tt.key, got.IP, tt.wantIP)
			}
		})
	}
}

func TestRegistry_ReplaceKeepsPosition(t *testing.T) {
	r := New(WithUnique(true))
	_ = r.Insert(entry("a", "h1", "10.0.0.1"))
	_ = r.Insert(entry("b", "h2", "10.0.0.2"))
	_ = r.Insert(entry("c", "h3", "10.0.0.3"))
	_ = r.Insert(entry("b", "h9", "10.0.0.9"))

	list := r.List()
	order := ""
	for _, e := range list {
		order += e.Service
	}
	if order != "abc" {
		t.Errorf("List() order = %q, want abc", order)
	}
	if list[1].Host != "h9" {
		t.Errorf("replaced entry host = %q, want h9", list[1].Host)
	}
}

func TestRegistry_ListIsSnapshot(t *testing.T) {
	r := New()
	_ = r.Insert(entry("a", "h1", "10.0.0.1"))

	list := r.List()
	list[0].IP = "changed"
	list[0].From.Port = 1

	got, _ := r.FindByName("a")
	if got.IP != "10.0.0.1" || got.From.Port != 48028 {
		t.Error("mutating List() result changed the registry")
	}
}

func TestRegistry_FindByNameNotFound(t *testing.T) {
	r := New()
	if _, err := r.FindByName("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("FindByName() error = %v, want ErrNotFound", err)
	}
}

func TestRegistry_Capacity(t *testing.T) {
	r := New(WithCapacity(2), WithUnique(true))
	_ = r.Insert(entry("a", "h", "10.0.0.1"))
	_ = r.Insert(entry("b", "h", "10.0.0.2"))

	if err := r.Insert(entry("c", "h", "10.0.0.3")); !errors.Is(err, ErrFull) {
		t.Errorf("Insert() beyond capacity error = %v, want ErrFull", err)
	}
	if err := r.Insert(entry("a", "h", "10.0.0.4")); err != nil {
		t.Errorf("replacement at capacity error = %v, want nil", err)
	}
	if r.Count() != 2 {
		t.Errorf("Count() = %d, want 2", r.Count())
	}
}

func TestRegistry_DefaultCapacity(t *testing.T) {
	r := New()
	for i := 0; i < DefaultCapacity; i++ {
		if err := r.Insert(entry(fmt.Sprintf("s%d", i), "h", "10.0.0.1")); err != nil {
			t.Fatalf("Insert(%d) error = %v", i, err)
		}
	}
	if err := r.Insert(entry("over", "h", "10.0.0.1")); !errors.Is(err, ErrFull) {
		t.Errorf("Insert() error = %v, want ErrFull", err)
	}
}

func TestRegistry_ResetAndFilter(t *testing.T) {
	r := New()
	_ = r.Insert(entry("a", "h1", "10.0.0.1"))
	_ = r.Insert(entry("b", "h2", "10.0.0.2"))
	_ = r.Insert(entry("a", "h3", "10.0.0.3"))

	if got := len(r.Filter("a")); got != 2 {
		t.Errorf("Filter(a) returned %d entries, want 2", got)
	}
	if got := len(r.Filter("")); got != 3 {
		t.Errorf("Filter(\"\") returned %d entries, want 3", got)
	}

	r.Reset()
	if r.Count() != 0 {
		t.Errorf("Count() after Reset = %d, want 0", r.Count())
	}
	_ = r.Insert(entry("c", "h4", "10.0.0.4"))
	if r.Count() != 1 {
		t.Errorf("registry should be usable after Reset")
	}
}

func TestRegistry_UseAfterDestroyPanics(t *testing.T) {
	r := New()
	r.Destroy()

	defer func() {
		if recover() == nil {
			t.Error("Count() after Destroy should panic")
		}
	}()
	r.Count()
}

func TestRegistry_FieldRef(t *testing.T) {
	r := New()
	e := &Entry{
		Service:   "svcA",
		Host:      "node1.lan",
		ShortHost: "node1",
		IP:        "192.168.1.10",
		Port:      8080,
		Platform:  "Linux 6.1, armv7l node1, Cores=4",
		LoadAvg:   "LoadAvg: 1m=0.1, 5m=0.2, 15m=0.3",
		Timestamp: "18:10:2026 10:11:12",
		User:      "pi",
		From:      &net.UDPAddr{IP: net.ParseIP("192.168.1.10"), Port: 40000},
	}

	tests := []struct {
		field   string
		want    string
		wantErr bool
	}{
		{"service", "svcA", false},
		{"name", "svcA", false},
		{"Host", "node1.lan", false},
		{"hostname", "node1.lan", false},
		{"short", "node1", false},
		{"short_host", "node1", false},
		{"ip", "192.168.1.10", false},
		{"addr", "192.168.1.10", false},
		{"port", "8080", false},
		{"prt", "", true},
		{"po", "8080", false},
		{"plat", "Linux 6.1, armv7l node1, Cores=4", false},
		{"uname", "Linux 6.1, armv7l node1, Cores=4", false},
		{"loadavg", "LoadAvg: 1m=0.1, 5m=0.2, 15m=0.3", false},
		{"timestamp", "18:10:2026 10:11:12", false},
		{"user", "pi", false},
		{"from", "192.168.1.10:40000", false},
		{"", "", true},
		{"bogus", "", true},
		{"s", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			got, err := r.FieldRef(e, tt.field)
			if (err != nil) != tt.wantErr {
				t.Fatalf("FieldRef(%q) error = %v, wantErr %v", tt.field, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("FieldRef(%q) = %q, want %q", tt.field, got, tt.want)
			}
		})
	}
}

func TestParseKeyPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    KeyPolicy
		wantErr bool
	}{
		{"", KeyByService, false},
		{"service", KeyByService, false},
		{"host", KeyByHost, false},
		{"hostname", KeyByHost, false},
		{"ip", KeyByService, true},
	}
	for _, tt := range tests {
		got, err := ParseKeyPolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseKeyPolicy(%q) = %v, %v; want %v, err %v", tt.in, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestEntry_Address(t *testing.T) {
	if got := entry("a", "h", "10.0.0.1").Address(); got != "10.0.0.1" {
		t.Errorf("Address() = %q, want 10.0.0.1", got)
	}
	e := entry("a", "h", "10.0.0.1")
	e.Port = 80
	if got := e.Address(); got != "10.0.0.1:80" {
		t.Errorf("Address() = %q, want 10.0.0.1:80", got)
	}
}
