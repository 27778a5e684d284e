package wire

import (
	"strconv"
	"strings"
)

// appendMessage serializes fields for kind k onto dst. dst is reused when
// its capacity allows, so callers may pass a scratch buffer.
func appendMessage(dst []byte, k Kind, names []string, values []string) ([]byte, error) {
	g := grammars[k]

	size := len(Marker) + 2 // marker, separator, kind byte
	for i, v := range values {
		if strings.ContainsAny(v, "|\r\n") {
			return dst, &EncodingError{Kind: k, Field: names[i]}
		}
		size += 1 + len(v)
	}
	size++ // terminator
	if size > g.limit {
		return dst, &EncodingError{Kind: k, Size: size, Limit: g.limit}
	}

	out := dst[:0]
	out = append(out, Marker...)
	out = append(out, Separator, byte(k))
	for _, v := range values {
		out = append(out, Separator)
		out = append(out, v...)
	}
	out = append(out, Terminator)
	return out, nil
}

// formatPort renders a port field, rejecting values a receiver would refuse.
func formatPort(k Kind, port int) (string, error) {
	if port < 0 || port > 65535 {
		return "", &EncodingError{Kind: k, Field: "port", Reason: "out of range " + strconv.Itoa(port)}
	}
	return strconv.Itoa(port), nil
}

// AppendRequest appends the encoded request to dst[:0].
func AppendRequest(dst []byte, r Request) ([]byte, error) {
	return appendMessage(dst, KindRequest,
		[]string{"requester", "service", "nonce", "sent"},
		[]string{r.Requester, r.Service, r.Nonce, strconv.FormatInt(r.Sent.Unix(), 10)})
}

// EncodeRequest serializes a discovery request.
func EncodeRequest(r Request) ([]byte, error) {
	return AppendRequest(make([]byte, 0, MaxRequestSize), r)
}

// AppendResponse appends the encoded response to dst[:0].
func AppendResponse(dst []byte, r Response) ([]byte, error) {
	port, err := formatPort(KindResponse, r.Port)
	if err != nil {
		return dst, err
	}
	return appendMessage(dst, KindResponse,
		[]string{"service", "host", "short", "ip", "port", "platform", "loadavg", "timestamp", "user"},
		[]string{r.Service, r.Host, r.ShortHost, r.IP, port, r.Platform, r.LoadAvg, r.Timestamp, r.User})
}

// EncodeResponse serializes a provider response.
func EncodeResponse(r Response) ([]byte, error) {
	return AppendResponse(make([]byte, 0, MaxMessageSize), r)
}

// EncodeAdd serializes an add-service control message.
func EncodeAdd(a Add) ([]byte, error) {
	port, err := formatPort(KindAdd, a.Port)
	if err != nil {
		return nil, err
	}
	return appendMessage(nil, KindAdd,
		[]string{"service", "port"},
		[]string{a.Service, port})
}

// EncodeQuit serializes a quit control message.
func EncodeQuit(q Quit) ([]byte, error) {
	return appendMessage(nil, KindQuit, []string{"nonce"}, []string{q.Nonce})
}

// EncodeDisplay serializes a display message.
func EncodeDisplay(d Display) ([]byte, error) {
	return appendMessage(nil, KindDisplay,
		[]string{"from", "text"},
		[]string{d.From, d.Text})
}
