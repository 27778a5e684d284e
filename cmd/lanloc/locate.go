package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/lanloc/internal/discovery"
	"github.com/muurk/lanloc/internal/dispatch"
	"github.com/muurk/lanloc/internal/hostinfo"
	"github.com/muurk/lanloc/internal/logging"
	"github.com/muurk/lanloc/internal/registry"
	"github.com/muurk/lanloc/internal/ui"
)

// Locate command flags
var (
	locateService    string
	locateCount      int
	locateUnique     bool
	locateKeyBy      string
	locateWindow     time.Duration
	locateMaxReplies int
	locateUpdate     bool
	locateMDNS       bool
	locateFormat     string
)

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Find providers on the local network",
	Long: `Broadcast a discovery request on every interface and list the providers
that answer within the collection window.

An empty result is not an error. Malformed answers are dropped; run with
-d 3 to see them.`,
	Example: `  # Everything on the network
  lanloc locate

  # Only the "web" service, one entry per service name
  lanloc locate -s web -q

  # First five answers as JSON
  lanloc locate --max-replies 5 --format json

  # Also browse mDNS, for networks that filter broadcast
  lanloc locate --mdns`,
	RunE: runLocate,
}

func init() {
	f := locateCmd.Flags()
	f.StringVarP(&locateService, "service", "s", "", "Only locate this service")
	f.IntVarP(&locateCount, "count", "n", 0, "Show at most this many entries (0 = all)")
	f.BoolVarP(&locateUnique, "unique", "q", false, "Keep one entry per key")
	f.StringVar(&locateKeyBy, "key-by", "service", "Registry key in unique mode (service, host)")
	f.DurationVarP(&locateWindow, "window", "w", dispatch.DefaultWindow, "Collection window")
	f.IntVar(&locateMaxReplies, "max-replies", 0, "Stop after this many entries (0 = wait for the window)")
	f.BoolVarP(&locateUpdate, "update", "u", false, "Repeat the request every update interval until the window ends")
	f.BoolVar(&locateMDNS, "mdns", false, "Also browse for providers over mDNS")
	f.StringVar(&locateFormat, "format", "detailed", "Output format (detailed, compact, json, yaml)")

	rootCmd.AddCommand(locateCmd)
}

// applyLocateFlags overrides file values with the flags given.
func applyLocateFlags(cmd *cobra.Command, s *session) (ui.Format, error) {
	flags := cmd.Flags()
	cc := s.cc

	if flags.Changed("service") {
		cc.Service = locateService
	}
	if flags.Changed("unique") {
		cc.Unique = locateUnique
	}
	if flags.Changed("key-by") {
		policy, err := registry.ParseKeyPolicy(locateKeyBy)
		if err != nil {
			return "", err
		}
		cc.KeyPolicy = policy
	}
	if flags.Changed("window") {
		cc.Window = locateWindow
	}
	if flags.Changed("max-replies") {
		cc.MaxReplies = locateMaxReplies
	}
	if flags.Changed("update") {
		cc.UpdateMode = locateUpdate
	}
	if !flags.Changed("mdns") {
		locateMDNS = s.cfg.Locate.MDNS
	}

	format := s.cfg.Locate.Format
	if flags.Changed("format") {
		format = locateFormat
	}
	return ui.ParseFormat(format)
}

func runLocate(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	format, err := applyLocateFlags(cmd, s)
	if err != nil {
		return err
	}
	if err := s.enumerate(); err != nil {
		return err
	}

	human := format == ui.FormatDetailed || format == ui.FormatCompact
	printer := ui.NewPrinter(os.Stdout)
	if format == ui.FormatDetailed {
		printer.PrintHeader("Locate", cmd.CommandPath(), locateParams(s)...)
	}

	reg, err := locate(s, human)
	if err != nil {
		return err
	}

	if locateMDNS {
		mergeMDNS(s.ctx, reg, s.cc.CollectionWindow())
	}

	writer := ui.EntryWriter{Format: format, Limit: locateCount, Width: printer.Width()}
	if err := writer.Write(os.Stdout, reg.List()); err != nil {
		return err
	}

	if format == ui.FormatDetailed {
		printSummary(printer, s.cc, reg)
	}
	return nil
}

func locateParams(s *session) []ui.Param {
	params := []ui.Param{
		{Key: "Service", Value: orAll(s.cc.Service)},
		{Key: "Window", Value: s.cc.CollectionWindow().String()},
		{Key: "Interfaces", Value: s.interfaceNames()},
		{Key: "Port", Value: strconv.Itoa(s.cc.Ports.Broadcast)},
	}
	if s.cc.Unique {
		params = append(params, ui.Param{Key: "Unique by", Value: s.cc.KeyPolicy.String()})
	}
	if s.cc.HardwareAddr != "" {
		params = append(params, ui.Param{Key: "Device", Value: s.cc.HardwareAddr})
	}
	return params
}

// locate runs the round, with a live progress display when both stdin and
// stderr are terminals.
func locate(s *session, human bool) (*registry.Registry, error) {
	requester, _ := hostinfo.HostNames()

	if !human || !ui.IsTerminal(os.Stdin) || !ui.IsTerminal(os.Stderr) {
		return discovery.Locate(s.ctx, s.cc, requester, s.options()...)
	}

	var reg *registry.Registry
	label := fmt.Sprintf("Locating %s", orAll(s.cc.Service))
	err := ui.Collect(s.ctx, os.Stderr, label, s.cc.CollectionWindow(),
		func(ctx context.Context, obs dispatch.Observer) error {
			var err error
			reg, err = discovery.Locate(ctx, s.cc, requester, s.options(dispatch.WithObserver(obs))...)
			return err
		})
	return reg, err
}

// mergeMDNS adds mDNS-browsed providers that broadcast did not find.
func mergeMDNS(ctx context.Context, reg *registry.Registry, timeout time.Duration) {
	scanner := discovery.NewScanner()
	scanner.Timeout = timeout
	entries, err := scanner.Browse(ctx)
	if err != nil {
		logging.Warn("mDNS browse failed", zap.Error(err))
		return
	}
	added := discovery.Merge(reg, entries)
	logging.Info("mDNS entries merged", zap.Int("browsed", len(entries)), zap.Int("added", added))
}

func printSummary(p *ui.Printer, cc *dispatch.ControlContext, reg *registry.Registry) {
	counters := cc.Counters()
	details := []ui.Param{
		{Key: "Located", Value: strconv.Itoa(reg.Count())},
		{Key: "Received", Value: strconv.Itoa(counters.Received)},
		{Key: "Dropped", Value: strconv.Itoa(counters.Dropped)},
		{Key: "Stopped", Value: cc.ExitReason()},
	}
	if reg.Count() == 0 {
		p.PrintWarning("No services located", details...)
		return
	}
	p.PrintSuccess(fmt.Sprintf("Located %d service(s)", reg.Count()), details...)
}

func orAll(service string) string {
	if service == "" {
		return "all services"
	}
	return service
}
