// Package config loads and saves the lanloc configuration file.
//
// The file holds defaults for the command line: port numbers, the
// collection window, registry mode and the services a provider advertises.
// Flags given on the command line always win over file values.
//
// # Configuration File Location
//
//   - Linux: $XDG_CONFIG_HOME/lanloc/config.yaml or $HOME/.config/lanloc/config.yaml
//   - macOS: $HOME/.config/lanloc/config.yaml
//   - Windows: %LOCALAPPDATA%\lanloc\config.yaml
//
// # Usage Example
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cc := dispatch.NewControlContext()
//	if err := cfg.Apply(cc); err != nil {
//	    log.Fatal(err)
//	}
//
// Saves are atomic: the file is written to a temporary path and renamed.
package config
