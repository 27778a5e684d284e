package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/lanloc/internal/discovery"
	"github.com/muurk/lanloc/internal/dispatch"
	"github.com/muurk/lanloc/internal/hostinfo"
	"github.com/muurk/lanloc/internal/logging"
	"github.com/muurk/lanloc/internal/ui"
)

// Provide command flags
var (
	provideServices  []string
	provideUpdate    bool
	provideInterval  time.Duration
	provideAllowQuit bool
	provideMDNS      bool
)

var provideCmd = &cobra.Command{
	Use:   "provide",
	Short: "Answer discovery requests for this host",
	Long: `Listen for discovery requests and answer each with a description of this
host for every advertised service. Runs until interrupted.

Services can be added while running with 'lanloc add'. 'lanloc quit' stops
the provider only when it was started with --allow-quit.`,
	Example: `  # Answer as this host with no named service
  lanloc provide

  # Advertise two services
  lanloc provide -s web:8080 -s ssh:22

  # Also announce every 10 seconds without being asked
  lanloc provide -s web:8080 -u --interval 10s`,
	RunE: runProvide,
}

func init() {
	f := provideCmd.Flags()
	f.StringArrayVarP(&provideServices, "service", "s", nil, "Advertise a service as name[:port] (repeatable)")
	f.BoolVarP(&provideUpdate, "update", "u", false, "Announce periodically without being asked")
	f.DurationVar(&provideInterval, "interval", dispatch.DefaultUpdateInterval, "Announcement interval in update mode")
	f.BoolVar(&provideAllowQuit, "allow-quit", false, "Honor remote quit requests")
	f.BoolVar(&provideMDNS, "mdns", false, "Also advertise services over mDNS")

	rootCmd.AddCommand(provideCmd)
}

func parseServices(specs []string) ([]discovery.Service, error) {
	services := make([]discovery.Service, 0, len(specs))
	for _, spec := range specs {
		svc, err := discovery.ParseService(spec)
		if err != nil {
			return nil, err
		}
		services = append(services, svc)
	}
	return services, nil
}

func runProvide(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	flags := cmd.Flags()
	specs := s.cfg.Provide.Services
	if flags.Changed("service") {
		specs = provideServices
	}
	services, err := parseServices(specs)
	if err != nil {
		return err
	}
	if flags.Changed("update") {
		s.cc.UpdateMode = provideUpdate
	}
	if flags.Changed("interval") {
		s.cc.UpdateInterval = provideInterval
	}
	allowQuit := s.cfg.Provide.AllowQuit
	if flags.Changed("allow-quit") {
		allowQuit = provideAllowQuit
	}
	useMDNS := s.cfg.Provide.MDNS
	if flags.Changed("mdns") {
		useMDNS = provideMDNS
	}

	if err := s.enumerate(); err != nil {
		return err
	}

	describer := hostinfo.System{}
	provider := discovery.NewProvider(describer, services...)
	provider.AllowRemoteQuit = allowQuit
	provider.AdvertiseIP = s.cfg.Provide.AdvertiseIP

	names := make([]string, 0, len(services))
	for _, svc := range services {
		names = append(names, svc.String())
	}
	printer := ui.NewPrinter(nil)
	params := []ui.Param{
		{Key: "Services", Value: orNone(strings.Join(names, ", "))},
		{Key: "Interfaces", Value: s.interfaceNames()},
		{Key: "Ports", Value: fmt.Sprintf("broadcast %d, regular %d", s.cc.Ports.Broadcast, s.cc.Ports.Regular)},
	}
	if s.cc.UpdateMode {
		params = append(params, ui.Param{Key: "Announce", Value: "every " + s.cc.UpdateInterval.String()})
	}
	if s.cc.HardwareAddr != "" {
		params = append(params, ui.Param{Key: "Device", Value: s.cc.HardwareAddr})
	}
	printer.PrintHeader("Provide", cmd.CommandPath(), params...)

	if useMDNS {
		adv, err := discovery.Advertise(services, describer.Describe(), s.cc.Ports.Broadcast)
		if err != nil {
			logging.Warn("mDNS advertisement failed", zap.Error(err))
		} else {
			defer adv.Shutdown()
		}
	}

	if err := runRole(s, provider); err != nil {
		return err
	}

	counters := s.cc.Counters()
	printer.PrintSuccess("Provider stopped",
		ui.Param{Key: "Reason", Value: s.cc.ExitReason()},
		ui.Param{Key: "Answered", Value: strconv.Itoa(provider.Answered())},
		ui.Param{Key: "Received", Value: strconv.Itoa(counters.Received)},
		ui.Param{Key: "Dropped", Value: strconv.Itoa(counters.Dropped)},
	)
	return nil
}

func orNone(s string) string {
	if s == "" {
		return "(host only)"
	}
	return s
}
