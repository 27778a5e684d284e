// Package logging provides structured logging for lanloc.
//
// This package wraps a package-level zap logger with convenience functions.
// Logging is silent unless a level is requested, either through the -d flag
// or the LANLOC_LOG_LEVEL environment variable, so normal command output is
// never interleaved with diagnostics.
//
// # Log Levels
//
//   - Debug: datagram dumps, dropped malformed packets, dispatcher transitions
//   - Info: rounds started and finished, provider replies
//   - Warn: per-interface send failures, unexpected read errors
//   - Error: startup failures
//
// The numeric -d verbosity maps onto levels through LevelForDebug:
// 0 defers to the environment, 1 is warn, 2 is info, 3 and above is debug.
//
// # Usage
//
//	if err := logging.InitializeFromDebug(debugLevel); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
//	logging.Info("Round complete", zap.Int("entries", reg.Count()))
//
// Datagrams are logged with LogDatagram, which adds hex and ascii dumps of
// the payload when debug output is enabled.
//
// Output goes to stderr so stdout stays clean for registry listings.
package logging
