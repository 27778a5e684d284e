// Package registry holds the services discovered during one locate round.
//
// Entries keep their insertion order. In unique mode a new entry whose key
// matches an existing one replaces it in place; otherwise duplicates are kept
// and told apart by their sender address. A Registry has an explicit end of
// life: after Destroy every method panics.
package registry

import (
	"errors"
	"strconv"
	"strings"
)

// DefaultCapacity is the most entries one round may collect.
const DefaultCapacity = 128

var (
	// ErrNotFound is returned when no entry or field matches.
	ErrNotFound = errors.New("not found")
	// ErrFull is returned when appending would exceed the capacity.
	ErrFull = errors.New("registry full")
)

// Registry is an insertion-ordered collection of discovered entries.
// It is not safe for concurrent use; the dispatcher owns it.
type Registry struct {
	entries   []*Entry
	unique    bool
	policy    KeyPolicy
	capacity  int
	destroyed bool
}

// Option configures a Registry.
type Option func(*Registry)

// WithUnique enables at-most-one entry per key.
func WithUnique(unique bool) Option {
	return func(r *Registry) { r.unique = unique }
}

// WithKeyPolicy selects the identity entries are keyed on.
func WithKeyPolicy(p KeyPolicy) Option {
	return func(r *Registry) { r.policy = p }
}

// WithCapacity bounds the number of entries. Values <= 0 keep the default.
func WithCapacity(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.capacity = n
		}
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		capacity: DefaultCapacity,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.entries = make([]*Entry, 0, 8)
	return r
}

func (r *Registry) mustBeAlive() {
	if r == nil || r.destroyed {
		panic("registry: use after Destroy")
	}
}

// Unique reports whether the registry deduplicates by key.
func (r *Registry) Unique() bool {
	r.mustBeAlive()
	return r.unique
}

// Policy returns the key policy.
func (r *Registry) Policy() KeyPolicy {
	r.mustBeAlive()
	return r.policy
}

// Insert adds e. In unique mode an entry with the same key is replaced in
// place, keeping its position. Otherwise e is appended.
func (r *Registry) Insert(e *Entry) error {
	r.mustBeAlive()
	if r.unique {
		key := e.Key(r.policy)
		for i, existing := range r.entries {
			if existing.Key(r.policy) == key {
				r.entries[i] = e
				return nil
			}
		}
	}
	if len(r.entries) >= r.capacity {
		return ErrFull
	}
	r.entries = append(r.entries, e)
	return nil
}

// FindByName returns the entry registered under key. With duplicates the
// most recently inserted one wins.
func (r *Registry) FindByName(key string) (*Entry, error) {
	r.mustBeAlive()
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].Key(r.policy) == key {
			return r.entries[i], nil
		}
	}
	return nil, ErrNotFound
}

// List returns a snapshot of the entries in insertion order.
func (r *Registry) List() []*Entry {
	r.mustBeAlive()
	out := make([]*Entry, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Clone()
	}
	return out
}

// Filter returns a snapshot of entries whose service equals service.
// An empty service matches everything.
func (r *Registry) Filter(service string) []*Entry {
	r.mustBeAlive()
	var out []*Entry
	for _, e := range r.entries {
		if service == "" || e.Service == service {
			out = append(out, e.Clone())
		}
	}
	return out
}

// Count returns the number of entries.
func (r *Registry) Count() int {
	r.mustBeAlive()
	return len(r.entries)
}

// Reset empties the registry for another round.
func (r *Registry) Reset() {
	r.mustBeAlive()
	clear(r.entries)
	r.entries = r.entries[:0]
}

// Destroy releases all entries. Any later call on r panics.
func (r *Registry) Destroy() {
	r.mustBeAlive()
	clear(r.entries)
	r.entries = nil
	r.destroyed = true
}

// Field names accepted by FieldRef.
const (
	FieldService   = "service"
	FieldHost      = "host"
	FieldShortHost = "short"
	FieldIP        = "ip"
	FieldPort      = "port"
	FieldPlatform  = "platform"
	FieldLoadAvg   = "loadavg"
	FieldTimestamp = "timestamp"
	FieldUser      = "user"
	FieldFrom      = "from"
)

var fieldAliases = map[string]string{
	"name":      FieldService,
	"svc":       FieldService,
	"hostname":  FieldHost,
	"node":      FieldHost,
	"shorthost": FieldShortHost,
	"shortname": FieldShortHost,
	"addr":      FieldIP,
	"address":   FieldIP,
	"ipv4":      FieldIP,
	"uname":     FieldPlatform,
	"load":      FieldLoadAvg,
	"time":      FieldTimestamp,
	"datetime":  FieldTimestamp,
	"uid":       FieldUser,
	"sender":    FieldFrom,
}

var canonicalFields = []string{
	FieldService, FieldHost, FieldShortHost, FieldIP, FieldPort,
	FieldPlatform, FieldLoadAvg, FieldTimestamp, FieldUser, FieldFrom,
}

// resolveField maps a loosely spelled field name to its canonical form.
// Exact names and aliases win; otherwise a prefix shared by exactly one
// canonical field is accepted.
func resolveField(name string) (string, bool) {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.Map(func(r rune) rune {
		if r == '_' || r == '-' || r == ' ' {
			return -1
		}
		return r
	}, n)
	if n == "" {
		return "", false
	}
	for _, f := range canonicalFields {
		if n == f {
			return f, true
		}
	}
	if f, ok := fieldAliases[n]; ok {
		return f, true
	}

	var matches []string
	for _, f := range canonicalFields {
		if len(n) >= 2 && (strings.HasPrefix(f, n) || strings.HasPrefix(n, f)) {
			matches = append(matches, f)
		}
	}
	if len(matches) == 1 {
		return matches[0], true
	}
	return "", false
}

// FieldRef returns a single field of e by name.
func (r *Registry) FieldRef(e *Entry, field string) (string, error) {
	r.mustBeAlive()
	if e == nil {
		return "", ErrNotFound
	}
	f, ok := resolveField(field)
	if !ok {
		return "", ErrNotFound
	}
	switch f {
	case FieldService:
		return e.Service, nil
	case FieldHost:
		return e.Host, nil
	case FieldShortHost:
		return e.ShortHost, nil
	case FieldIP:
		return e.IP, nil
	case FieldPort:
		return strconv.Itoa(e.Port), nil
	case FieldPlatform:
		return e.Platform, nil
	case FieldLoadAvg:
		return e.LoadAvg, nil
	case FieldTimestamp:
		return e.Timestamp, nil
	case FieldUser:
		return e.User, nil
	case FieldFrom:
		if e.From == nil {
			return "", nil
		}
		return e.From.String(), nil
	}
	return "", ErrNotFound
}
