package config

import (
	"fmt"
	"net"
	"time"

	"github.com/muurk/lanloc/internal/dispatch"
	"github.com/muurk/lanloc/internal/netif"
	"github.com/muurk/lanloc/internal/registry"
)

// CurrentVersion is the config file format version.
const CurrentVersion = 1

// Output formats accepted by Locate.Format.
var Formats = []string{"detailed", "compact", "json", "yaml"}

// Config represents the entire configuration file.
type Config struct {
	Version int         `yaml:"version"`
	Debug   int         `yaml:"debug"` // Same scale as -d
	Ports   PortConfig  `yaml:"ports"`
	Locate  LocateConf  `yaml:"locate"`
	Provide ProvideConf `yaml:"provide"`
}

// PortConfig holds the UDP ports of the protocol.
type PortConfig struct {
	Broadcast int `yaml:"broadcast"` // Providers receive requests here
	Regular   int `yaml:"regular"`   // Provider control messages
	Client    int `yaml:"client"`    // Locators receive responses here
	Display   int `yaml:"display"`
}

// LocateConf holds defaults for locate rounds.
type LocateConf struct {
	Window        time.Duration `yaml:"window"`
	LongWait      time.Duration `yaml:"long_wait"` // Upper bound for window
	MaxReplies    int           `yaml:"max_replies,omitempty"`
	MaxInterfaces int           `yaml:"max_interfaces"`
	Unique        bool          `yaml:"unique"`
	KeyBy         string        `yaml:"key_by"`
	Format        string        `yaml:"format"`
	MDNS          bool          `yaml:"mdns"`
}

// ProvideConf holds defaults for the provider role.
type ProvideConf struct {
	Services       []string      `yaml:"services,omitempty"` // name[:port]
	UpdateInterval time.Duration `yaml:"update_interval"`
	AllowQuit      bool          `yaml:"allow_quit"`
	AdvertiseIP    string        `yaml:"advertise_ip,omitempty"`
	MDNS           bool          `yaml:"mdns"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Ports: PortConfig{
			Broadcast: dispatch.DefaultBroadcastPort,
			Regular:   dispatch.DefaultRegularPort,
			Client:    dispatch.DefaultClientPort,
			Display:   dispatch.DefaultDisplayPort,
		},
		Locate: LocateConf{
			Window:        dispatch.DefaultWindow,
			LongWait:      dispatch.DefaultLongWait,
			MaxInterfaces: netif.DefaultMaxInterfaces,
			KeyBy:         registry.KeyByService.String(),
			Format:        "detailed",
		},
		Provide: ProvideConf{
			UpdateInterval: dispatch.DefaultUpdateInterval,
		},
	}
}

// fillDefaults sets zero values that have a meaningful default.
func (c *Config) fillDefaults() {
	def := Default()
	if c.Ports.Broadcast == 0 {
		c.Ports.Broadcast = def.Ports.Broadcast
	}
	if c.Ports.Regular == 0 {
		c.Ports.Regular = def.Ports.Regular
	}
	if c.Ports.Client == 0 {
		c.Ports.Client = def.Ports.Client
	}
	if c.Ports.Display == 0 {
		c.Ports.Display = def.Ports.Display
	}
	if c.Locate.Window == 0 {
		c.Locate.Window = def.Locate.Window
	}
	if c.Locate.LongWait == 0 {
		c.Locate.LongWait = def.Locate.LongWait
	}
	if c.Locate.MaxInterfaces == 0 {
		c.Locate.MaxInterfaces = def.Locate.MaxInterfaces
	}
	if c.Locate.KeyBy == "" {
		c.Locate.KeyBy = def.Locate.KeyBy
	}
	if c.Locate.Format == "" {
		c.Locate.Format = def.Locate.Format
	}
	if c.Provide.UpdateInterval == 0 {
		c.Provide.UpdateInterval = def.Provide.UpdateInterval
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("unsupported config version: %d (expected %d)", c.Version, CurrentVersion)
	}
	for name, p := range map[string]int{
		"broadcast": c.Ports.Broadcast,
		"regular":   c.Ports.Regular,
		"client":    c.Ports.Client,
		"display":   c.Ports.Display,
	} {
		if p < 0 || p > 65535 {
			return fmt.Errorf("ports.%s: %d is out of range", name, p)
		}
	}
	if c.Locate.Window < 0 || c.Locate.LongWait < 0 {
		return fmt.Errorf("locate: negative duration")
	}
	if c.Locate.MaxReplies < 0 {
		return fmt.Errorf("locate.max_replies: %d is negative", c.Locate.MaxReplies)
	}
	if c.Locate.MaxInterfaces < 0 {
		return fmt.Errorf("locate.max_interfaces: %d is negative", c.Locate.MaxInterfaces)
	}
	if _, err := registry.ParseKeyPolicy(c.Locate.KeyBy); err != nil {
		return fmt.Errorf("locate.key_by: %w", err)
	}
	if !validFormat(c.Locate.Format) {
		return fmt.Errorf("locate.format: unknown format %q", c.Locate.Format)
	}
	if c.Provide.UpdateInterval < 0 {
		return fmt.Errorf("provide.update_interval: negative duration")
	}
	if ip := c.Provide.AdvertiseIP; ip != "" && net.ParseIP(ip).To4() == nil {
		return fmt.Errorf("provide.advertise_ip: %q is not an IPv4 address", ip)
	}
	return nil
}

func validFormat(f string) bool {
	for _, known := range Formats {
		if f == known {
			return true
		}
	}
	return false
}

// Apply copies the file values into a control context.
func (c *Config) Apply(cc *dispatch.ControlContext) error {
	policy, err := registry.ParseKeyPolicy(c.Locate.KeyBy)
	if err != nil {
		return err
	}
	cc.Ports = dispatch.Ports{
		Broadcast: c.Ports.Broadcast,
		Regular:   c.Ports.Regular,
		Client:    c.Ports.Client,
		Display:   c.Ports.Display,
	}
	cc.Debug = c.Debug
	cc.Window = c.Locate.Window
	cc.LongWait = c.Locate.LongWait
	cc.MaxReplies = c.Locate.MaxReplies
	cc.Unique = c.Locate.Unique
	cc.KeyPolicy = policy
	cc.UpdateInterval = c.Provide.UpdateInterval
	return nil
}
