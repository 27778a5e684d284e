package wire

import (
	"fmt"
	"time"
)

// Protocol constants shared by every build that speaks version 1.
const (
	// Marker opens every datagram and carries the grammar version.
	Marker = "LANLOC/1"

	// Separator splits fields. Terminator ends a message.
	Separator  = '|'
	Terminator = '\n'

	// MaxRequestSize is the ceiling for requests and control messages.
	MaxRequestSize = 256

	// MaxMessageSize is the ceiling for responses and display messages,
	// and the largest datagram any reader needs to accept.
	MaxMessageSize = 512
)

// Kind identifies the message type carried in the second field.
type Kind byte

const (
	KindRequest  Kind = 'Q'
	KindResponse Kind = 'R'
	KindAdd      Kind = 'A'
	KindQuit     Kind = 'X'
	KindDisplay  Kind = 'M'
)

// String returns a human-readable name for the kind
func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	case KindAdd:
		return "add"
	case KindQuit:
		return "quit"
	case KindDisplay:
		return "display"
	default:
		return fmt.Sprintf("Kind(%q)", byte(k))
	}
}

// grammar describes the fixed shape of one message kind.
type grammar struct {
	fields    int   // total field count including marker and kind
	limit     int   // encoded size ceiling including terminator
	mandatory []int // field indexes that must be non-empty
}

var grammars = map[Kind]grammar{
	KindRequest:  {fields: 6, limit: MaxRequestSize, mandatory: []int{2, 4, 5}},
	KindResponse: {fields: 11, limit: MaxMessageSize, mandatory: []int{3, 5}},
	KindAdd:      {fields: 4, limit: MaxRequestSize, mandatory: []int{2}},
	KindQuit:     {fields: 3, limit: MaxRequestSize, mandatory: []int{2}},
	KindDisplay:  {fields: 4, limit: MaxMessageSize, mandatory: []int{3}},
}

// Message is any decoded datagram.
type Message interface {
	Kind() Kind
}

// Request asks providers to describe themselves.
type Request struct {
	Requester string    // Host name of the locator
	Service   string    // Optional service filter, empty matches all
	Nonce     string    // Per-round identifier
	Sent      time.Time // Send time, second precision on the wire
}

// Kind implements Message
func (Request) Kind() Kind { return KindRequest }

// Response is a provider's self-description.
type Response struct {
	Service   string
	Host      string
	ShortHost string
	IP        string
	Port      int
	Platform  string
	LoadAvg   string
	Timestamp string
	User      string
}

// Kind implements Message
func (Response) Kind() Kind { return KindResponse }

// Add asks a provider to advertise one more service.
type Add struct {
	Service string
	Port    int
}

// Kind implements Message
func (Add) Kind() Kind { return KindAdd }

// Quit asks a provider to stop.
type Quit struct {
	Nonce string
}

// Kind implements Message
func (Quit) Kind() Kind { return KindQuit }

// Display is a short text message for the display service.
type Display struct {
	From string
	Text string
}

// Kind implements Message
func (Display) Kind() Kind { return KindDisplay }

// Replies sent by the display service.
const (
	ReplyAccepted    = "202 Accepted"
	ReplyNotAccepted = "406 Not Acceptable"
)
