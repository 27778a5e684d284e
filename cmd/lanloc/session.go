package main

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/lanloc/internal/config"
	"github.com/muurk/lanloc/internal/dispatch"
	"github.com/muurk/lanloc/internal/logging"
	"github.com/muurk/lanloc/internal/netif"
)

// Global flags
var (
	debugLevel    int
	configPath    string
	broadcastPort int
	regularPort   int
	clientPort    int
	displayPort   int
	hwAddr        string
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.IntVarP(&debugLevel, "debug", "d", 0, "Debug level (1=warn, 2=info, 3=debug)")
	pf.StringVar(&configPath, "config", "", "Config file (default is the user config directory)")
	pf.IntVar(&broadcastPort, "broadcast-port", dispatch.DefaultBroadcastPort, "UDP port providers receive requests on")
	pf.IntVar(&regularPort, "regular-port", dispatch.DefaultRegularPort, "UDP port for provider control messages")
	pf.IntVar(&clientPort, "client-port", dispatch.DefaultClientPort, "UDP port locators receive responses on")
	pf.IntVar(&displayPort, "display-port", dispatch.DefaultDisplayPort, "UDP port of the display service")
	pf.StringVarP(&hwAddr, "hw-addr", "a", "", "Hardware address selector, reported as given")
}

// setupLogging runs before every command. The config file's debug level
// applies only when -d is not given.
func setupLogging(cmd *cobra.Command, args []string) error {
	level := debugLevel
	if !cmd.Flags().Changed("debug") {
		if cfg, err := config.Load(configPath); err == nil {
			level = cfg.Debug
		}
	}
	return logging.InitializeFromDebug(level)
}

// session is the state one command run needs: the loaded configuration,
// the control context built from it and the command line, and signal
// handling.
type session struct {
	cfg     *config.Config
	cc      *dispatch.ControlContext
	signals *dispatch.SignalState
	ctx     context.Context
	cancel  context.CancelFunc
}

// newSession loads the config, applies global flag overrides and starts
// watching termination signals. Call close when done.
func newSession(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	cc := dispatch.NewControlContext()
	if err := cfg.Apply(cc); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("debug") {
		cc.Debug = debugLevel
	}
	if flags.Changed("broadcast-port") {
		cc.Ports.Broadcast = broadcastPort
	}
	if flags.Changed("regular-port") {
		cc.Ports.Regular = regularPort
	}
	if flags.Changed("client-port") {
		cc.Ports.Client = clientPort
	}
	if flags.Changed("display-port") {
		cc.Ports.Display = displayPort
	}
	cc.HardwareAddr = hwAddr

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	signals := dispatch.NewSignalState()
	signals.Watch(ctx)

	return &session{cfg: cfg, cc: cc, signals: signals, ctx: ctx, cancel: cancel}, nil
}

// enumerate fills the context's interface list.
func (s *session) enumerate() error {
	ifaces, err := netif.Enumerate(s.cfg.Locate.MaxInterfaces)
	if err != nil {
		return err
	}
	s.cc.Interfaces = ifaces
	names := make([]string, 0, len(ifaces))
	for _, i := range ifaces {
		names = append(names, i.String())
	}
	logging.Debug("Interfaces enumerated", zap.Strings("interfaces", names))
	return nil
}

func (s *session) interfaceNames() string {
	if len(s.cc.Interfaces) == 0 {
		return "(none)"
	}
	out := ""
	for i, iface := range s.cc.Interfaces {
		if i > 0 {
			out += ", "
		}
		out += iface.Name
	}
	return out
}

func (s *session) options(extra ...dispatch.Option) []dispatch.Option {
	return append([]dispatch.Option{dispatch.WithSignals(s.signals)}, extra...)
}

func (s *session) close() {
	s.cancel()
	if s.cc.Registry != nil {
		s.cc.Registry.Destroy()
		s.cc.Registry = nil
	}
}

// resolveTarget turns "host" or "host:port" into a UDP address, using
// defPort when none is given.
func resolveTarget(target string, defPort int) (*net.UDPAddr, error) {
	if target == "" {
		return nil, fmt.Errorf("no target host given")
	}
	hostPort := target
	if _, _, err := net.SplitHostPort(target); err != nil {
		hostPort = net.JoinHostPort(target, strconv.Itoa(defPort))
	}
	addr, err := net.ResolveUDPAddr("udp4", hostPort)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve %s: %w", target, err)
	}
	return addr, nil
}

// runRole runs role on the session's context until it finishes or a
// signal arrives.
func runRole(s *session, role dispatch.Role) error {
	return dispatch.New(s.cc, role, s.options()...).Run(s.ctx)
}
