package discovery

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/lanloc/internal/dispatch"
	"github.com/muurk/lanloc/internal/logging"
	"github.com/muurk/lanloc/internal/wire"
)

// DefaultReplyTimeout bounds client helpers whose context has no deadline.
const DefaultReplyTimeout = 2 * time.Second

// DisplayMessage is one message accepted by the display service.
type DisplayMessage struct {
	From       string
	Text       string
	Sender     *net.UDPAddr
	ReceivedAt time.Time
}

// String returns the display log line
func (m DisplayMessage) String() string {
	return fmt.Sprintf("[%s] MSG From=%s, Msg=%s", m.ReceivedAt.Format("15:04:05.000"), m.From, m.Text)
}

// Display is the role behind the display channel. It accepts display
// messages and acknowledges every datagram.
type Display struct {
	// OnMessage is called for every accepted message
	OnMessage func(DisplayMessage)

	accepted int
	rejected int
}

// Name implements dispatch.Role
func (d *Display) Name() string { return "display" }

// Plan implements dispatch.Role
func (d *Display) Plan(cc *dispatch.ControlContext) dispatch.Plan {
	var p dispatch.Plan
	p.Sockets[dispatch.SocketRegular] = dispatch.SocketSpec{
		Enabled: true,
		Port:    cc.Ports.Display,
	}
	return p
}

// Start implements dispatch.Role
func (d *Display) Start(cc *dispatch.ControlContext) error {
	logging.Info("Display service listening", zap.Int("port", cc.Ports.Display))
	return nil
}

// HandleDatagram implements dispatch.Role
func (d *Display) HandleDatagram(cc *dispatch.ControlContext, ev dispatch.Event) {
	reply := wire.ReplyNotAccepted

	msg, err := wire.Decode(ev.Payload)
	if m, ok := msg.(wire.Display); err == nil && ok {
		reply = wire.ReplyAccepted
		d.accepted++
		if d.OnMessage != nil {
			d.OnMessage(DisplayMessage{From: m.From, Text: m.Text, Sender: ev.From, ReceivedAt: ev.At})
		}
	} else {
		d.rejected++
		cc.CountDropped()
		logging.Debug("Display message rejected", zap.Stringer("from", ev.From), zap.Error(err))
	}

	if err := cc.SendTo(ev.Socket, []byte(reply), ev.From); err != nil {
		logging.Warn("Display reply not sent", zap.Error(&SendFailure{Target: ev.From.String(), Err: err}))
	}
}

// HandleTick implements dispatch.Role
func (d *Display) HandleTick(cc *dispatch.ControlContext) {}

// Done implements dispatch.Role
func (d *Display) Done(cc *dispatch.ControlContext) bool { return false }

// Stats returns accepted and rejected message counts.
func (d *Display) Stats() (accepted, rejected int) {
	return d.accepted, d.rejected
}

// SendDisplay sends text to the display service at addr and waits for its
// reply. A "406 Not Acceptable" reply yields ErrNotAccepted.
func SendDisplay(ctx context.Context, addr *net.UDPAddr, from, text string) error {
	b, err := wire.EncodeDisplay(wire.Display{From: from, Text: text})
	if err != nil {
		return err
	}
	reply, err := exchange(ctx, addr, b, true)
	if err != nil {
		return err
	}
	switch reply {
	case wire.ReplyAccepted:
		return nil
	case wire.ReplyNotAccepted:
		return ErrNotAccepted
	default:
		return fmt.Errorf("unexpected display reply %q", reply)
	}
}

// exchange writes b to addr and, when wantReply is set, returns the first
// datagram received back before the deadline.
func exchange(ctx context.Context, addr *net.UDPAddr, b []byte, wantReply bool) (string, error) {
	conn, err := net.DialUDP("udp4", nil, addr)
	if err != nil {
		return "", fmt.Errorf("failed to reach %s: %w", addr, err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(DefaultReplyTimeout)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return "", err
	}

	if _, err := conn.Write(b); err != nil {
		return "", &SendFailure{Target: addr.String(), Err: err}
	}
	logging.LogDatagram("out", addr.String(), b)
	if !wantReply {
		return "", nil
	}

	// Unblock the read if ctx is cancelled before the deadline.
	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	defer stop()

	buf := make([]byte, wire.MaxMessageSize)
	n, err := conn.Read(buf)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("no reply from %s: %w", addr, err)
	}
	return string(buf[:n]), nil
}
