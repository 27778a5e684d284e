// Package hostinfo produces the self-description strings a provider reports.
package hostinfo

import (
	"fmt"
	"os"
	"os/user"
	"runtime"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxFieldLen bounds each produced string so a full response always fits
// in one datagram.
const MaxFieldLen = 120

var loadAvgPath = "/proc/loadavg"

// Snapshot is the host's current self-description.
type Snapshot struct {
	Host      string
	ShortHost string
	Platform  string
	LoadAvg   string
	Timestamp string
	User      string
}

// Describer produces snapshots. Providers take one so tests can inject fixed values.
type Describer interface {
	Describe() Snapshot
}

// System describes the running host.
type System struct {
	// Now overrides the clock when set
	Now func() time.Time
}

// Describe implements Describer
func (s System) Describe() Snapshot {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	full, short := HostNames()
	return Snapshot{
		Host:      full,
		ShortHost: short,
		Platform:  Platform(),
		LoadAvg:   LoadAvg(),
		Timestamp: DateTime(now()),
		User:      EffectiveUser(),
	}
}

// Static is a Describer that always returns the same snapshot.
type Static Snapshot

// Describe implements Describer
func (s Static) Describe() Snapshot { return Snapshot(s) }

// Field characters the wire grammar reserves.
var reserved = strings.NewReplacer("|", "/", "\r", " ", "\n", " ")

// clip makes s safe to put in a response field: reserved characters are
// replaced and the result is cut to MaxFieldLen on a rune boundary.
func clip(s string) string {
	return truncate(reserved.Replace(s), MaxFieldLen)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// HostNames returns the host name and its first label.
func HostNames() (full, short string) {
	full, err := os.Hostname()
	if err != nil || full == "" {
		full = "localhost"
	}
	full = clip(full)
	short, _, _ = strings.Cut(full, ".")
	return full, short
}

// Platform returns "<sysname> <release>, <version> <machine>, Cores=<n>".
func Platform() string {
	sysname, release, version, machine, ok := uname()
	if !ok {
		return clip(fmt.Sprintf("%s %s, Cores=%d", runtime.GOOS, runtime.GOARCH, runtime.NumCPU()))
	}
	return formatPlatform(sysname, release, version, machine, runtime.NumCPU())
}

func formatPlatform(sysname, release, version, machine string, cores int) string {
	suffix := fmt.Sprintf(", Cores=%d", cores)
	head := reserved.Replace(fmt.Sprintf("%s %s, %s %s", sysname, release, version, machine))
	// The kernel version string is the only unbounded part.
	return truncate(head, MaxFieldLen-len(suffix)) + suffix
}

// LoadAvg returns "LoadAvg: 1m=x.x, 5m=x.x, 15m=x.x".
func LoadAvg() string {
	data, err := os.ReadFile(loadAvgPath)
	if err != nil {
		return "LoadAvg: Not Available"
	}
	return formatLoadAvg(string(data))
}

func formatLoadAvg(content string) string {
	fields := strings.Fields(content)
	if len(fields) < 3 {
		return "LoadAvg: Not Available"
	}
	var avg [3]float64
	for i := range avg {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return "LoadAvg: Not Available"
		}
		avg[i] = v
	}
	return fmt.Sprintf("LoadAvg: 1m=%2.1f, 5m=%2.1f, 15m=%2.1f", avg[0], avg[1], avg[2])
}

// DateTime formats t as "MM:DD:YYYY HH:MM:SS" in local time.
func DateTime(t time.Time) string {
	return t.Format("01:02:2006 15:04:05")
}

// EffectiveUser returns the user name of the effective uid.
func EffectiveUser() string {
	uid := os.Geteuid()
	if uid < 0 {
		if u, err := user.Current(); err == nil {
			return clip(u.Username)
		}
		return "unknown"
	}
	if u, err := user.LookupId(strconv.Itoa(uid)); err == nil {
		return clip(u.Username)
	}
	return strconv.Itoa(uid)
}
