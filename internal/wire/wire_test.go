package wire

import (
	"errors"
	"net"
	"strings"
	"testing"
	"time"
)

func sampleResponse() Response {
	return Response{
		Service:   "svcA",
		Host:      "node1.lan",
		ShortHost: "node1",
		IP:        "192.168.1.10",
		Port:      8080,
		Platform:  "Linux 6.1.0, armv7l node1, Cores=4",
		LoadAvg:   "LoadAvg: 1m=0.1, 5m=0.2, 15m=0.3",
		Timestamp: "18:10:2026 10:11:12",
		User:      "pi",
	}
}

func TestResponseRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		resp Response
	}{
		{"full", sampleResponse()},
		{"no service", func() Response { r := sampleResponse(); r.Service = ""; return r }()},
		{"no port", func() Response { r := sampleResponse(); r.Port = 0; return r }()},
		{"mandatory only", Response{Host: "h", IP: "10.0.0.1"}},
	}

	from := &net.UDPAddr{IP: net.ParseIP("192.168.1.10"), Port: 48028}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := EncodeResponse(tt.resp)
			if err != nil {
				t.Fatalf("EncodeResponse() error = %v", err)
			}
			e, err := ParseResponse(b, from)
			if err != nil {
				t.Fatalf("ParseResponse() error = %v", err)
			}
			if got := ResponseOf(e); got != tt.resp {
				t.Errorf("round trip = %+v, want %+v", got, tt.resp)
			}
			if e.From != from {
				t.Error("ParseResponse() should record the sender address")
			}
			if e.Created.IsZero() {
				t.Error("ParseResponse() should stamp creation time")
			}
		})
	}
}

func TestEncodeResponse_Format(t *testing.T) {
	b, err := EncodeResponse(Response{Service: "s", Host: "h", ShortHost: "h", IP: "10.0.0.1", Port: 1})
	if err != nil {
		t.Fatalf("EncodeResponse() error = %v", err)
	}
	want := "LANLOC/1|R|s|h|h|10.0.0.1|1||||\n"
	if string(b) != want {
		t.Errorf("EncodeResponse() = %q, want %q", b, want)
	}
}

func TestEncode_RejectsOversize(t *testing.T) {
	r := sampleResponse()
	r.Platform = strings.Repeat("x", MaxMessageSize)

	_, err := EncodeResponse(r)
	var encErr *EncodingError
	if !errors.As(err, &encErr) {
		t.Fatalf("EncodeResponse() error = %v, want *EncodingError", err)
	}
	if encErr.Limit != MaxMessageSize || encErr.Size <= MaxMessageSize {
		t.Errorf("EncodingError = %+v", encErr)
	}

	_, err = EncodeRequest(Request{Requester: strings.Repeat("r", MaxRequestSize), Nonce: "n", Sent: time.Now()})
	if !errors.As(err, &encErr) {
		t.Errorf("EncodeRequest() error = %v, want *EncodingError", err)
	}
}

func TestEncode_RejectsPortOutOfRange(t *testing.T) {
	for _, port := range []int{-1, 65536, 70000} {
		r := sampleResponse()
		r.Port = port
		_, err := EncodeResponse(r)
		var encErr *EncodingError
		if !errors.As(err, &encErr) || encErr.Field != "port" {
			t.Errorf("EncodeResponse(port %d) error = %v, want port EncodingError", port, err)
		}

		if _, err := EncodeAdd(Add{Service: "svc", Port: port}); !errors.As(err, &encErr) {
			t.Errorf("EncodeAdd(port %d) error = %v, want *EncodingError", port, err)
		}
	}

	r := sampleResponse()
	r.Port = 65535
	b, err := EncodeResponse(r)
	if err != nil {
		t.Fatalf("EncodeResponse(port 65535) error = %v", err)
	}
	if _, err := ParseResponse(b, nil); err != nil {
		t.Errorf("ParseResponse() of max port = %v", err)
	}
}

func TestEncode_ExactLimit(t *testing.T) {
	r := Response{Host: "h", IP: "10.0.0.1"}
	base, _ := EncodeResponse(r)
	r.User = strings.Repeat("u", MaxMessageSize-len(base))

	b, err := EncodeResponse(r)
	if err != nil {
		t.Fatalf("EncodeResponse() at limit error = %v", err)
	}
	if len(b) != MaxMessageSize {
		t.Errorf("len = %d, want %d", len(b), MaxMessageSize)
	}
	if !ValidateFormat(b) {
		t.Error("message at the limit should validate")
	}

	r.User += "u"
	if _, err := EncodeResponse(r); err == nil {
		t.Error("EncodeResponse() one byte over limit should fail")
	}
}

func TestEncode_RejectsReservedCharacters(t *testing.T) {
	for _, bad := range []string{"a|b", "a\nb", "a\rb"} {
		r := sampleResponse()
		r.Host = bad
		_, err := EncodeResponse(r)
		var encErr *EncodingError
		if !errors.As(err, &encErr) || encErr.Field != "host" {
			t.Errorf("EncodeResponse(host=%q) error = %v, want field error", bad, err)
		}
	}
}

func TestAppendResponse_ReusesBuffer(t *testing.T) {
	buf := make([]byte, 0, MaxMessageSize)
	out, err := AppendResponse(buf, sampleResponse())
	if err != nil {
		t.Fatalf("AppendResponse() error = %v", err)
	}
	if &out[:1][0] != &buf[:1][0] {
		t.Error("AppendResponse() should write into the supplied buffer")
	}
}

func TestValidateFormat(t *testing.T) {
	valid, _ := EncodeResponse(sampleResponse())

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"valid response", string(valid), true},
		{"valid without terminator", strings.TrimSuffix(string(valid), "\n"), true},
		{"valid request", "LANLOC/1|Q|host||nonce|1700000000\n", true},
		{"valid add", "LANLOC/1|A|svc|80\n", true},
		{"valid quit", "LANLOC/1|X|abc\n", true},
		{"valid display", "LANLOC/1|M|host|hello\n", true},
		{"empty", "", false},
		{"only terminator", "\n", false},
		{"all delimiters", "||||||||||\n", false},
		{"oversize", "LANLOC/1|R|" + strings.Repeat("x", MaxMessageSize), false},
		{"wrong marker", "LANLOC/2|R|s|h|h|10.0.0.1|1||||\n", false},
		{"unknown kind", "LANLOC/1|Z|s|h|h|10.0.0.1|1||||\n", false},
		{"long kind", "LANLOC/1|RR|s|h|h|10.0.0.1|1||||\n", false},
		{"missing host", "LANLOC/1|R|s||h|10.0.0.1|1||||\n", false},
		{"missing ip", "LANLOC/1|R|s|h|h||1||||\n", false},
		{"too few fields", "LANLOC/1|R|s|h|h|10.0.0.1|1|||\n", false},
		{"too many fields", "LANLOC/1|R|s|h|h|10.0.0.1|1|||||\n", false},
		{"embedded newline", "LANLOC/1|R|s|h\n|h|10.0.0.1|1||||\n", false},
		{"carriage return", "LANLOC/1|R|s|h|h|10.0.0.1|1||||\r\n", false},
		{"request missing nonce", "LANLOC/1|Q|host|||1700000000\n", false},
		{"request over request limit", "LANLOC/1|Q|" + strings.Repeat("h", MaxRequestSize) + "||n|1\n", false},
		{"marker only", "LANLOC/1\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateFormat([]byte(tt.input)); got != tt.want {
				t.Errorf("ValidateFormat(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseResponse_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		reason ParseReason
	}{
		{"all delimiters", "||||||||||\n", MalformedFormat},
		{"empty", "", MalformedFormat},
		{"bad port", "LANLOC/1|R|s|h|h|10.0.0.1|http||||\n", MalformedField},
		{"port out of range", "LANLOC/1|R|s|h|h|10.0.0.1|70000||||\n", MalformedField},
		{"ipv6 address", "LANLOC/1|R|s|h|h|fe80::1|1||||\n", MalformedField},
		{"not an address", "LANLOC/1|R|s|h|h|nowhere|1||||\n", MalformedField},
		{"request instead of response", "LANLOC/1|Q|host||nonce|1700000000\n", UnexpectedKind},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := ParseResponse([]byte(tt.input), nil)
			if e != nil {
				t.Errorf("ParseResponse() entry = %+v, want nil", e)
			}
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("ParseResponse() error = %v, want *ParseError", err)
			}
			if pe.Reason != tt.reason {
				t.Errorf("ParseResponse() reason = %v, want %v", pe.Reason, tt.reason)
			}
			if !IsMalformed(err) {
				t.Error("IsMalformed() = false, want true")
			}
		})
	}
}

func TestDecode_Kinds(t *testing.T) {
	sent := time.Unix(1700000000, 0)
	req, _ := EncodeRequest(Request{Requester: "locator", Service: "svcA", Nonce: "n-1", Sent: sent})
	add, _ := EncodeAdd(Add{Service: "web", Port: 80})
	quit, _ := EncodeQuit(Quit{Nonce: "q-1"})
	disp, _ := EncodeDisplay(Display{From: "node1", Text: "hello there"})

	tests := []struct {
		name string
		in   []byte
		want Message
	}{
		{"request", req, Request{Requester: "locator", Service: "svcA", Nonce: "n-1", Sent: sent}},
		{"add", add, Add{Service: "web", Port: 80}},
		{"quit", quit, Quit{Nonce: "q-1"}},
		{"display", disp, Display{From: "node1", Text: "hello there"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.in)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode() = %+v, want %+v", got, tt.want)
			}
			if k, ok := Peek(tt.in); !ok || k != tt.want.Kind() {
				t.Errorf("Peek() = %v, %v, want %v", k, ok, tt.want.Kind())
			}
		})
	}
}

func TestDecode_BadRequestTime(t *testing.T) {
	_, err := Decode([]byte("LANLOC/1|Q|host||nonce|yesterday\n"))
	var pe *ParseError
	if !errors.As(err, &pe) || pe.Reason != MalformedField || pe.Field != "sent" {
		t.Errorf("Decode() error = %v, want malformed sent field", err)
	}
}
