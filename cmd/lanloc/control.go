package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/muurk/lanloc/internal/discovery"
	"github.com/muurk/lanloc/internal/hostinfo"
	"github.com/muurk/lanloc/internal/ui"
)

var (
	controlTarget  string
	messageService string
	messageFrom    string
)

var addCmd = &cobra.Command{
	Use:   "add NAME[:PORT]",
	Short: "Ask a running provider to advertise another service",
	Example: `  lanloc add mqtt:1883 --to 192.168.1.20
  lanloc add backup --to nas.local:48027`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

var quitCmd = &cobra.Command{
	Use:   "quit",
	Short: "Ask a running provider to stop",
	Long: `Send a quit request to a provider's regular port. Providers ignore it
unless they were started with --allow-quit.`,
	Example: `  lanloc quit --to 192.168.1.20`,
	Args:    cobra.NoArgs,
	RunE:    runQuit,
}

var displayCmd = &cobra.Command{
	Use:   "display",
	Short: "Run the display service",
	Long: `Accept short text messages on the display port and print them.
Each message is acknowledged with "202 Accepted", anything else with
"406 Not Acceptable". Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runDisplay,
}

var messageCmd = &cobra.Command{
	Use:   "message TEXT",
	Short: "Send a message to the display service of every located host",
	Example: `  lanloc message "backup finished"
  lanloc message -s kiosk "doors open in 5 minutes"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runMessage,
}

func init() {
	addCmd.Flags().StringVar(&controlTarget, "to", "", "Provider host[:port] (port defaults to the regular port)")
	quitCmd.Flags().StringVar(&controlTarget, "to", "", "Provider host[:port] (port defaults to the regular port)")
	_ = addCmd.MarkFlagRequired("to")
	_ = quitCmd.MarkFlagRequired("to")

	messageCmd.Flags().StringVarP(&messageService, "service", "s", "", "Only send to hosts providing this service")
	messageCmd.Flags().StringVar(&messageFrom, "from", "", "Sender name (default is this host)")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(quitCmd)
	rootCmd.AddCommand(displayCmd)
	rootCmd.AddCommand(messageCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	svc, err := discovery.ParseService(args[0])
	if err != nil {
		return err
	}
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	addr, err := resolveTarget(controlTarget, s.cc.Ports.Regular)
	if err != nil {
		return err
	}
	if err := discovery.SendAdd(s.ctx, addr, svc); err != nil {
		return err
	}
	fmt.Printf("Asked %s to advertise %s\n", addr, svc)
	return nil
}

func runQuit(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	addr, err := resolveTarget(controlTarget, s.cc.Ports.Regular)
	if err != nil {
		return err
	}
	if err := discovery.SendQuit(s.ctx, addr); err != nil {
		return err
	}
	fmt.Printf("Sent quit request to %s\n", addr)
	return nil
}

func runDisplay(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	printer := ui.NewPrinter(os.Stdout)
	printer.PrintHeader("Display", cmd.CommandPath(),
		ui.Param{Key: "Port", Value: strconv.Itoa(s.cc.Ports.Display)})

	role := &discovery.Display{OnMessage: printer.PrintMessage}
	if err := runRole(s, role); err != nil {
		return err
	}

	accepted, rejected := role.Stats()
	printer.PrintSuccess("Display stopped",
		ui.Param{Key: "Reason", Value: s.cc.ExitReason()},
		ui.Param{Key: "Accepted", Value: strconv.Itoa(accepted)},
		ui.Param{Key: "Rejected", Value: strconv.Itoa(rejected)},
	)
	return nil
}

func runMessage(cmd *cobra.Command, args []string) error {
	s, err := newSession(cmd)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.enumerate(); err != nil {
		return err
	}
	s.cc.Service = messageService

	from := messageFrom
	if from == "" {
		_, from = hostinfo.HostNames()
	}
	text := strings.Join(args, " ")

	reg, err := locate(s, false)
	if err != nil {
		return err
	}

	printer := ui.NewPrinter(os.Stdout)
	if reg.Count() == 0 {
		printer.PrintWarning("No hosts located, message not sent")
		return nil
	}

	// Several services on one host share one display.
	seen := make(map[string]bool)
	result := ui.NewSuccessResult("Message sent").SetWidth(printer.Width())
	failed := 0
	for _, e := range reg.List() {
		if seen[e.IP] {
			continue
		}
		seen[e.IP] = true

		addr, err := resolveTarget(e.IP, s.cc.Ports.Display)
		if err == nil {
			err = discovery.SendDisplay(s.ctx, addr, from, text)
		}
		status := "accepted"
		if err != nil {
			status = err.Error()
			failed++
		}
		result.AddDetail(e.Key(s.cc.KeyPolicy), status)
	}
	if failed == len(seen) {
		result.Type = ui.ResultFailure
		result.Title = "Message not delivered"
	} else if failed > 0 {
		result.Type = ui.ResultWarning
		result.Title = fmt.Sprintf("Message delivered to %d of %d hosts", len(seen)-failed, len(seen))
	}
	printer.Println(result.Render())
	return nil
}
