package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/muurk/lanloc/internal/discovery"
	"github.com/muurk/lanloc/internal/dispatch"
	"github.com/muurk/lanloc/internal/netif"
	"github.com/muurk/lanloc/internal/registry"
	"github.com/muurk/lanloc/internal/ui"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"plain error", errors.New("boom"), 1},
		{"socket in use", &dispatch.SocketSetupError{Socket: dispatch.SocketBroadcast, Port: 48028, Op: "bind", Err: syscall.EADDRINUSE}, int(syscall.EADDRINUSE)},
		{"wrapped socket error", fmt.Errorf("locate: %w", &dispatch.SocketSetupError{Op: "bind", Err: syscall.EACCES}), int(syscall.EACCES)},
		{"socket error without errno", &dispatch.SocketSetupError{Op: "bind", Err: errors.New("odd")}, 1},
		{"enumeration errno", &netif.EnumerationError{Op: "list interfaces", Err: syscall.EPERM}, int(syscall.EPERM)},
		{"enumeration without errno", &netif.EnumerationError{Op: "list interfaces", Err: errors.New("odd")}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestResolveTarget(t *testing.T) {
	addr, err := resolveTarget("127.0.0.1", 48027)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:48027", addr.String())

	addr, err = resolveTarget("127.0.0.1:9000", 48027)
	require.NoError(t, err)
	assert.Equal(t, 9000, addr.Port)

	_, err = resolveTarget("", 48027)
	assert.Error(t, err)
}

func TestParseServices(t *testing.T) {
	got, err := parseServices([]string{"web:8080", "ssh"})
	require.NoError(t, err)
	assert.Equal(t, []discovery.Service{{Name: "web", Port: 8080}, {Name: "ssh"}}, got)

	_, err = parseServices([]string{"web:x"})
	assert.Error(t, err)
}

// newTestCommand builds a locate-like command whose flags are parsed from
// args, with the config read from an empty temporary directory.
func newTestCommand(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	resetFlags(t)
	t.Cleanup(func() { resetFlags(t) })
	configPath = filepath.Join(t.TempDir(), "config.yaml")

	cmd := &cobra.Command{Use: "locate"}
	cmd.Flags().AddFlagSet(rootCmd.PersistentFlags())
	cmd.Flags().AddFlagSet(locateCmd.Flags())
	require.NoError(t, cmd.ParseFlags(args))
	return cmd
}

// resetFlags restores the shared flag variables between tests.
func resetFlags(t *testing.T) {
	for _, fs := range []*pflag.FlagSet{rootCmd.PersistentFlags(), locateCmd.Flags()} {
		fs.VisitAll(func(f *pflag.Flag) {
			require.NoError(t, f.Value.Set(f.DefValue))
			f.Changed = false
		})
	}
}

func TestSession_FlagsOverrideConfig(t *testing.T) {
	cmd := newTestCommand(t, "--client-port", "41000", "-q", "--key-by", "host", "-w", "2s", "--format", "json", "-s", "web")

	s, err := newSession(cmd)
	require.NoError(t, err)
	defer s.close()

	format, err := applyLocateFlags(cmd, s)
	require.NoError(t, err)

	assert.Equal(t, ui.FormatJSON, format)
	assert.Equal(t, 41000, s.cc.Ports.Client)
	assert.Equal(t, dispatch.DefaultBroadcastPort, s.cc.Ports.Broadcast)
	assert.True(t, s.cc.Unique)
	assert.Equal(t, registry.KeyByHost, s.cc.KeyPolicy)
	assert.Equal(t, 2*time.Second, s.cc.Window)
	assert.Equal(t, "web", s.cc.Service)
}

func TestSession_Defaults(t *testing.T) {
	cmd := newTestCommand(t)

	s, err := newSession(cmd)
	require.NoError(t, err)
	defer s.close()

	format, err := applyLocateFlags(cmd, s)
	require.NoError(t, err)
	assert.Equal(t, ui.FormatDetailed, format)
	assert.Equal(t, dispatch.DefaultPorts(), s.cc.Ports)
	assert.False(t, s.cc.Unique)
	assert.Equal(t, dispatch.DefaultWindow, s.cc.CollectionWindow())
}

func TestApplyLocateFlags_BadKeyPolicy(t *testing.T) {
	cmd := newTestCommand(t, "--key-by", "platform")

	s, err := newSession(cmd)
	require.NoError(t, err)
	defer s.close()

	_, err = applyLocateFlags(cmd, s)
	assert.Error(t, err)
}
