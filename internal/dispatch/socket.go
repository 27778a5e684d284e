package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"

	"github.com/muurk/lanloc/internal/logging"
)

// SocketID names one of the two sockets a session may open.
type SocketID int

const (
	// SocketBroadcast receives broadcast discovery requests.
	SocketBroadcast SocketID = iota
	// SocketRegular carries unicast traffic: responses, control, display.
	SocketRegular

	socketCount
)

// String returns a human-readable name for the socket
func (id SocketID) String() string {
	switch id {
	case SocketBroadcast:
		return "broadcast"
	case SocketRegular:
		return "regular"
	default:
		return fmt.Sprintf("SocketID(%d)", int(id))
	}
}

// SocketSpec describes one socket a role needs.
type SocketSpec struct {
	Enabled   bool
	Host      string // Bind address, empty for all interfaces
	Port      int    // 0 picks an ephemeral port
	Broadcast bool   // Allow sending to broadcast addresses
}

// SocketSetupError reports a socket that could not be opened. It is fatal.
type SocketSetupError struct {
	Socket SocketID
	Port   int
	Op     string
	Err    error
}

func (e *SocketSetupError) Error() string {
	return fmt.Sprintf("cannot set up %s socket on port %d (%s): %v", e.Socket, e.Port, e.Op, e.Err)
}

func (e *SocketSetupError) Unwrap() error {
	return e.Err
}

// Errno returns the platform error number behind the failure, or 0.
func (e *SocketSetupError) Errno() int {
	var errno syscall.Errno
	if errors.As(e.Err, &errno) {
		return int(errno)
	}
	return 0
}

// socket is an open UDP socket plus its optional control-message reader.
type socket struct {
	id   SocketID
	conn *net.UDPConn
	pc   *ipv4.PacketConn // nil when control messages are unsupported
}

func openSocket(ctx context.Context, id SocketID, spec SocketSpec) (*socket, error) {
	lc := net.ListenConfig{Control: socketControl(spec.Broadcast)}
	addr := net.JoinHostPort(spec.Host, strconv.Itoa(spec.Port))

	pc, err := lc.ListenPacket(ctx, "udp4", addr)
	if err != nil {
		return nil, &SocketSetupError{Socket: id, Port: spec.Port, Op: "listen", Err: err}
	}
	conn, ok := pc.(*net.UDPConn)
	if !ok {
		pc.Close()
		return nil, &SocketSetupError{Socket: id, Port: spec.Port, Op: "listen", Err: errors.New("not a UDP socket")}
	}

	s := &socket{id: id, conn: conn}

	// Interface index lets providers answer with the address of the
	// interface a request arrived on.
	p := ipv4.NewPacketConn(conn)
	if err := p.SetControlMessage(ipv4.FlagInterface|ipv4.FlagDst, true); err != nil {
		logging.Debug("Control messages unavailable",
			zap.Stringer("socket", id),
			zap.Error(err),
		)
	} else {
		s.pc = p
	}

	logging.Debug("Socket open",
		zap.Stringer("socket", id),
		zap.String("local", conn.LocalAddr().String()),
		zap.Bool("broadcast", spec.Broadcast),
	)
	return s, nil
}

// read blocks for the next datagram.
func (s *socket) read(buf []byte) (n int, from *net.UDPAddr, ifIndex int, err error) {
	if s.pc != nil {
		var cm *ipv4.ControlMessage
		var src net.Addr
		n, cm, src, err = s.pc.ReadFrom(buf)
		if err != nil {
			return 0, nil, 0, err
		}
		if cm != nil {
			ifIndex = cm.IfIndex
		}
		from, _ = src.(*net.UDPAddr)
		return n, from, ifIndex, nil
	}
	n, from, err = s.conn.ReadFromUDP(buf)
	return n, from, 0, err
}

func (s *socket) close() error {
	return s.conn.Close()
}
