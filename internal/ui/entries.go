package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/muurk/lanloc/internal/registry"
)

// Format selects how located entries are written.
type Format string

const (
	FormatDetailed Format = "detailed"
	FormatCompact  Format = "compact"
	FormatJSON     Format = "json"
	FormatYAML     Format = "yaml"
)

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case FormatDetailed, FormatCompact, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatDetailed, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want detailed, compact, json or yaml)", s)
	}
}

// Record is the machine-readable form of a registry entry.
type Record struct {
	Service   string    `json:"service" yaml:"service"`
	Host      string    `json:"host" yaml:"host"`
	ShortHost string    `json:"short_host,omitempty" yaml:"short_host,omitempty"`
	IP        string    `json:"ip" yaml:"ip"`
	Port      int       `json:"port,omitempty" yaml:"port,omitempty"`
	Platform  string    `json:"platform,omitempty" yaml:"platform,omitempty"`
	LoadAvg   string    `json:"load_avg,omitempty" yaml:"load_avg,omitempty"`
	Timestamp string    `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
	User      string    `json:"user,omitempty" yaml:"user,omitempty"`
	From      string    `json:"from,omitempty" yaml:"from,omitempty"`
	Received  time.Time `json:"received" yaml:"received"`
}

// NewRecord converts an entry.
func NewRecord(e *registry.Entry) Record {
	r := Record{
		Service:   e.Service,
		Host:      e.Host,
		ShortHost: e.ShortHost,
		IP:        e.IP,
		Port:      e.Port,
		Platform:  e.Platform,
		LoadAvg:   e.LoadAvg,
		Timestamp: e.Timestamp,
		User:      e.User,
		Received:  e.Created,
	}
	if e.From != nil {
		r.From = e.From.String()
	}
	return r
}

// EntryWriter writes located entries in one format. Limit caps how many
// entries are shown; zero shows all.
type EntryWriter struct {
	Format Format
	Limit  int
	Width  int
}

// Write renders entries to w.
func (ew EntryWriter) Write(w io.Writer, entries []*registry.Entry) error {
	if ew.Limit > 0 && len(entries) > ew.Limit {
		entries = entries[:ew.Limit]
	}

	switch ew.Format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records(entries))
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records(entries)); err != nil {
			return err
		}
		return enc.Close()
	case FormatCompact:
		_, err := io.WriteString(w, RenderCompact(entries))
		return err
	default:
		_, err := io.WriteString(w, RenderDetailed(entries, ew.Width))
		return err
	}
}

func records(entries []*registry.Entry) []Record {
	out := make([]Record, 0, len(entries))
	for _, e := range entries {
		out = append(out, NewRecord(e))
	}
	return out
}

// RenderDetailed renders one bordered block per entry.
func RenderDetailed(entries []*registry.Entry, width int) string {
	width = clampWidth(width)
	if len(entries) == 0 {
		return TroubleshootingItemStyle.Render("  No services located") + "\n"
	}

	var b strings.Builder
	for i, e := range entries {
		title := EntryTitleStyle.Render(fmt.Sprintf("Entry(%02d) %s", i+1, e.String()))
		fields := []Param{
			{"Host", e.Host},
			{"Address", e.Address()},
			{"Platform", e.Platform},
			{"Load", e.LoadAvg},
			{"Clock", e.Timestamp},
			{"User", e.User},
		}
		lines := []string{title}
		for _, f := range fields {
			if f.Value == "" {
				continue
			}
			lines = append(lines, ResultKeyStyle.Render("  "+f.Key+":")+" "+ResultValueStyle.Render(f.Value))
		}
		b.WriteString(lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(MutedColor).
			Width(width - 2).
			Render(strings.Join(lines, "\n")))
		b.WriteString("\n")
	}
	return b.String()
}

var compactColumns = []string{"#", "SERVICE", "HOST", "IP", "PORT", "USER"}

// RenderCompact renders one aligned line per entry.
func RenderCompact(entries []*registry.Entry) string {
	rows := [][]string{compactColumns}
	for i, e := range entries {
		port := "-"
		if e.Port != 0 {
			port = strconv.Itoa(e.Port)
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			orDash(e.Service),
			orDash(e.ShortHost),
			e.IP,
			port,
			orDash(e.User),
		})
	}

	widths := make([]int, len(compactColumns))
	for _, row := range rows {
		for c, cell := range row {
			if n := lipgloss.Width(cell); n > widths[c] {
				widths[c] = n
			}
		}
	}

	var b strings.Builder
	for r, row := range rows {
		cells := make([]string, len(row))
		for c, cell := range row {
			cells[c] = cell + strings.Repeat(" ", widths[c]-lipgloss.Width(cell))
		}
		line := strings.TrimRight(strings.Join(cells, "  "), " ")
		if r == 0 {
			line = TableHeaderStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
