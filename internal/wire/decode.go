package wire

import (
	"bytes"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/muurk/lanloc/internal/registry"
)

// split strips one terminator and splits b into fields. It performs no
// validation.
func split(b []byte) []string {
	b = bytes.TrimSuffix(b, []byte{Terminator})
	return strings.Split(string(b), string(Separator))
}

// ValidateFormat performs the structural check on an inbound datagram:
// size within bounds, known marker and kind, exact field count, mandatory
// fields present. Field values are not interpreted.
func ValidateFormat(b []byte) bool {
	if len(b) == 0 || len(b) > MaxMessageSize {
		return false
	}
	body := bytes.TrimSuffix(b, []byte{Terminator})
	if bytes.IndexByte(body, Terminator) >= 0 || bytes.IndexByte(body, '\r') >= 0 {
		return false
	}
	if !bytes.HasPrefix(body, []byte(Marker+string(Separator))) {
		return false
	}

	fields := split(b)
	if len(fields) < 2 || len(fields[1]) != 1 {
		return false
	}
	g, ok := grammars[Kind(fields[1][0])]
	if !ok {
		return false
	}
	if len(fields) != g.fields {
		return false
	}
	if len(body)+1 > g.limit {
		return false
	}
	for _, i := range g.mandatory {
		if fields[i] == "" {
			return false
		}
	}
	return true
}

// Peek returns the kind of a structurally valid datagram.
func Peek(b []byte) (Kind, bool) {
	if !ValidateFormat(b) {
		return 0, false
	}
	return Kind(b[len(Marker)+1]), true
}

func malformed() error {
	return &ParseError{Reason: MalformedFormat}
}

func badField(name string, err error) error {
	return &ParseError{Reason: MalformedField, Field: name, Err: err}
}

func parsePort(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, badField("port", err)
	}
	if port < 0 || port > 65535 {
		return 0, badField("port", errors.New("out of range"))
	}
	return port, nil
}

// Decode validates b and returns the typed message it carries.
func Decode(b []byte) (Message, error) {
	if !ValidateFormat(b) {
		return nil, malformed()
	}
	f := split(b)

	switch Kind(f[1][0]) {
	case KindRequest:
		secs, err := strconv.ParseInt(f[5], 10, 64)
		if err != nil {
			return nil, badField("sent", err)
		}
		return Request{Requester: f[2], Service: f[3], Nonce: f[4], Sent: time.Unix(secs, 0)}, nil

	case KindResponse:
		port, err := parsePort(f[6])
		if err != nil {
			return nil, err
		}
		if ip := net.ParseIP(f[5]); ip == nil || ip.To4() == nil {
			return nil, badField("ip", errors.New("not an IPv4 address"))
		}
		return Response{
			Service:   f[2],
			Host:      f[3],
			ShortHost: f[4],
			IP:        f[5],
			Port:      port,
			Platform:  f[7],
			LoadAvg:   f[8],
			Timestamp: f[9],
			User:      f[10],
		}, nil

	case KindAdd:
		port, err := parsePort(f[3])
		if err != nil {
			return nil, err
		}
		return Add{Service: f[2], Port: port}, nil

	case KindQuit:
		return Quit{Nonce: f[2]}, nil

	case KindDisplay:
		return Display{From: f[2], Text: f[3]}, nil
	}
	return nil, malformed()
}

// ParseResponse validates b and converts a response into a registry entry
// stamped with the sender address and the current time.
func ParseResponse(b []byte, from *net.UDPAddr) (*registry.Entry, error) {
	msg, err := Decode(b)
	if err != nil {
		return nil, err
	}
	r, ok := msg.(Response)
	if !ok {
		return nil, &ParseError{Reason: UnexpectedKind, Field: msg.Kind().String()}
	}
	return &registry.Entry{
		Service:   r.Service,
		Host:      r.Host,
		ShortHost: r.ShortHost,
		IP:        r.IP,
		Port:      r.Port,
		Platform:  r.Platform,
		LoadAvg:   r.LoadAvg,
		Timestamp: r.Timestamp,
		User:      r.User,
		From:      from,
		Created:   time.Now(),
	}, nil
}

// ResponseOf converts an entry back into its wire form.
func ResponseOf(e *registry.Entry) Response {
	return Response{
		Service:   e.Service,
		Host:      e.Host,
		ShortHost: e.ShortHost,
		IP:        e.IP,
		Port:      e.Port,
		Platform:  e.Platform,
		LoadAvg:   e.LoadAvg,
		Timestamp: e.Timestamp,
		User:      e.User,
	}
}
