// Package version reports the lanloc build and the wire protocol it speaks.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/muurk/lanloc/internal/wire"
)

// Set at build time:
//
//	go build -ldflags="-X github.com/muurk/lanloc/internal/version.Version=v1.2.3 \
//	                   -X github.com/muurk/lanloc/internal/version.Commit=abc123"
var (
	Version = ""
	Commit  = ""
)

// Info describes a build. Two lanloc binaries interoperate when their
// Protocol values match, whatever their Version.
type Info struct {
	Version  string
	Commit   string
	Protocol string
	Go       string
}

// Get returns the running build. Values missing from ldflags are taken from
// the embedded VCS stamp, then fall back to "dev" and "unknown".
func Get() Info {
	info := Info{Version: Version, Commit: Commit, Protocol: wire.Marker, Go: runtime.Version()}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fromBuildSettings(&info, bi.Settings)
	}
	if info.Version == "" {
		info.Version = "dev"
	}
	if info.Commit == "" {
		info.Commit = "unknown"
	}
	return info
}

func fromBuildSettings(info *Info, settings []debug.BuildSetting) {
	var rev, modified, stamp string
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			modified = s.Value
		case "vcs.time":
			stamp = s.Value
		}
	}
	if info.Commit == "" && rev != "" {
		if len(rev) > 7 {
			rev = rev[:7]
		}
		if modified == "true" {
			rev += "-dirty"
		}
		info.Commit = rev
	}
	if info.Version == "" && len(stamp) >= 10 {
		// vcs.time is RFC 3339; keep the date
		info.Version = "dev-" + stamp[:4] + stamp[5:7] + stamp[8:10]
	}
}

// String renders the build as shown by "lanloc version".
func (i Info) String() string {
	return fmt.Sprintf("%s (commit: %s, protocol: %s, %s)", i.Version, i.Commit, i.Protocol, i.Go)
}

// Full returns the running build as a single line.
func Full() string {
	return Get().String()
}
