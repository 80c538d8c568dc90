// Package log records a machine-readable journal of device events.
//
// It is separate from operational logging (slog): the journal captures the
// decisions a device made (state changes, commands, watchdog activity and
// errors) in a compact CBOR stream that can be replayed and analysed later.
//
// # Basic Usage
//
// Components receive a Logger and record events through it:
//
//	// For development: log to console via slog
//	events := log.NewSlogAdapter(slog.Default())
//
//	// For production: append to a binary file
//	events, _ := log.NewFileLogger("/var/lib/farmhub/events.flog")
//
//	// Both: use MultiLogger
//	events := log.NewMultiLogger(
//	    log.NewSlogAdapter(slog.Default()),
//	    fileLogger,
//	)
//
// # File Format
//
// Journal files are a sequence of CBOR-encoded Events with integer keys.
// The farmhub-log tool views, filters and summarises them.
package log
