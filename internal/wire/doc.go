// Package wire implements the lanloc datagram grammar.
//
// Every message is one line of text: fields separated by '|', terminated by
// '\n', opened by the version marker and a one-letter kind.
//
//	LANLOC/1|Q|<requester>|<service>|<nonce>|<unix-seconds>
//	LANLOC/1|R|<service>|<host>|<short>|<ip>|<port>|<platform>|<loadavg>|<timestamp>|<user>
//	LANLOC/1|A|<service>|<port>
//	LANLOC/1|X|<nonce>
//	LANLOC/1|M|<from>|<text>
//
// Requests and control messages must fit in MaxRequestSize bytes, responses
// and display messages in MaxMessageSize bytes, terminator included. Encoders
// reject oversized output and fields containing '|', '\r' or '\n' with an
// *EncodingError instead of truncating.
//
// Inbound bytes are untrusted. ValidateFormat is a cheap structural check
// (size, marker, kind, field count, mandatory fields) that runs before any
// field is interpreted; Decode and ParseResponse call it first and report
// rejects as *ParseError so callers can drop the datagram and carry on.
//
// Field order is fixed. Adding a field requires a new marker version.
package wire
