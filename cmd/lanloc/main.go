// Lanloc finds and announces services on the local network using UDP
// broadcast.
//
// A provider answers discovery requests with a description of its host and
// services. A locator broadcasts a request on every interface and lists the
// answers collected within a short window. A display service accepts short
// text messages from peers.
//
// Usage:
//
//	lanloc [command] [flags]
//
// See 'lanloc --help' for available commands.
package main

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/muurk/lanloc/internal/dispatch"
	"github.com/muurk/lanloc/internal/logging"
	"github.com/muurk/lanloc/internal/netif"
	"github.com/muurk/lanloc/internal/version"
)

func main() {
	err := rootCmd.Execute()
	logging.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps setup failures to their platform error number so scripts
// can tell "address in use" from "permission denied". Everything else is 1.
func exitCode(err error) int {
	var setupErr *dispatch.SocketSetupError
	if errors.As(err, &setupErr) {
		if n := setupErr.Errno(); n > 0 && n < 256 {
			return n
		}
		return 1
	}
	var enumErr *netif.EnumerationError
	if errors.As(err, &enumErr) {
		var errno syscall.Errno
		if errors.As(enumErr.Err, &errno) && errno > 0 && errno < 256 {
			return int(errno)
		}
	}
	return 1
}

var rootCmd = &cobra.Command{
	Use:   "lanloc",
	Short: "LAN service locator",
	Long: `Find and announce services on the local network.

Providers answer UDP broadcast discovery requests with their host name,
address, platform, load and advertised services. Locators broadcast a
request on every interface and list what answers within the collection
window. Discovery never crosses a router.`,
	Version:           version.Get().Version,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("lanloc %s\n", version.Full())
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}
