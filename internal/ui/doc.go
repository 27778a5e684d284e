// Package ui provides terminal output for the lanloc CLI.
//
// Components follow a "run once and exit" pattern: a Header describing the
// command, a live Collect display while a locate round runs, then the
// located entries and a Result box. Nothing waits for user input.
//
// Located entries are written by EntryWriter in one of four formats:
// detailed (one box per entry), compact (aligned table), json or yaml.
// The machine formats carry no styling and are safe to pipe.
//
// # Logging Integration
//
// zap logging is silent unless LANLOC_LOG_LEVEL or -d enables it, so the
// styled output is shown cleanly. Logs go to stderr.
package ui
