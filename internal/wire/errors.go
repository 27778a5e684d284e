package wire

import (
	"errors"
	"fmt"
)

// EncodingError reports an outbound message that cannot be serialized.
// Oversized output is rejected, never truncated.
type EncodingError struct {
	Kind   Kind
	Field  string // Offending field, empty for size errors
	Reason string // Set when the field value itself is invalid
	Size   int    // Encoded size that was attempted
	Limit  int    // Ceiling for this kind
}

func (e *EncodingError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot encode %s: field %s %s", e.Kind, e.Field, e.Reason)
	}
	if e.Field != "" {
		return fmt.Sprintf("cannot encode %s: field %s contains a reserved character", e.Kind, e.Field)
	}
	return fmt.Sprintf("cannot encode %s: %d bytes exceeds limit of %d", e.Kind, e.Size, e.Limit)
}

// ParseReason categorizes why an inbound datagram was rejected
type ParseReason int

const (
	// MalformedFormat means the structural check failed.
	MalformedFormat ParseReason = iota
	// MalformedField means the structure was fine but a field value was not.
	MalformedField
	// UnexpectedKind means a well-formed message of the wrong kind arrived.
	UnexpectedKind
)

// String returns a human-readable name for the reason
func (r ParseReason) String() string {
	switch r {
	case MalformedFormat:
		return "malformed format"
	case MalformedField:
		return "malformed field"
	case UnexpectedKind:
		return "unexpected kind"
	default:
		return fmt.Sprintf("ParseReason(%d)", r)
	}
}

// ParseError reports an inbound datagram that was dropped.
type ParseError struct {
	Reason ParseReason
	Field  string
	Err    error
}

func (e *ParseError) Error() string {
	msg := "parse: " + e.Reason.String()
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// IsMalformed reports whether err is a ParseError of any reason.
func IsMalformed(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
