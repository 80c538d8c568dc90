// Package commands implements the farmhub-log CLI commands.
package commands

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/farmhub/farmhub-go/pkg/log"
)

const timestampLayout = "2006-01-02T15:04:05.000000Z"

// formatEvent writes a human-readable representation of the event to w.
func formatEvent(w io.Writer, event log.Event) {
	// Header line: timestamp [boot:n] CATEGORY component
	ts := event.Timestamp.UTC().Format(timestampLayout)
	fmt.Fprintf(w, "%s [boot:%d] %-8s %s\n", ts, event.Boot, event.Category.String(), event.Component)

	switch {
	case event.StateChange != nil:
		formatStateChangeDetails(w, event.StateChange)
	case event.Command != nil:
		formatCommandDetails(w, event.Command)
	case event.Watchdog != nil:
		formatWatchdogDetails(w, event.Watchdog)
	case event.Error != nil:
		formatErrorDetails(w, event.Error)
	}

	fmt.Fprintln(w) // Blank line between events
}

// formatStateChangeDetails writes state change details.
func formatStateChangeDetails(w io.Writer, sc *log.StateChangeEvent) {
	fmt.Fprintf(w, "  Entity: %s\n", sc.Entity.String())
	if sc.OldState != "" {
		fmt.Fprintf(w, "  %s -> %s\n", sc.OldState, sc.NewState)
	} else {
		fmt.Fprintf(w, "  -> %s\n", sc.NewState)
	}
	if sc.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", sc.Reason)
	}
}

// formatCommandDetails writes the command request and outcome.
func formatCommandDetails(w io.Writer, cmd *log.CommandEvent) {
	fmt.Fprintf(w, "  Command: %s\n", cmd.Name)
	if len(cmd.Request) > 0 {
		fmt.Fprintf(w, "  Request: %s\n", formatPayload(cmd.Request))
	}
	if len(cmd.Response) > 0 {
		fmt.Fprintf(w, "  Response: %s\n", formatPayload(cmd.Response))
	}
	if cmd.Error != "" {
		fmt.Fprintf(w, "  Error: %s\n", cmd.Error)
	}
}

// formatPayload renders a payload as JSON with sorted keys.
func formatPayload(payload map[string]any) string {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprint(payload)
	}
	return string(data)
}

// formatWatchdogDetails writes watchdog details.
func formatWatchdogDetails(w io.Writer, wd *log.WatchdogEvent) {
	fmt.Fprintf(w, "  Watchdog: %s %s", wd.Name, wd.Event)
	if wd.Timeout > 0 {
		fmt.Fprintf(w, " (timeout %s)", wd.Timeout)
	}
	fmt.Fprintln(w)
}

// formatErrorDetails writes error details.
func formatErrorDetails(w io.Writer, err *log.ErrorEventData) {
	fmt.Fprintf(w, "  Message: %s\n", err.Message)
	if err.Context != "" {
		fmt.Fprintf(w, "  Context: %s\n", err.Context)
	}
}

// RunView prints the events of path matching opts.
func RunView(path string, opts FilterOptions, output io.Writer) error {
	filter, err := opts.Filter()
	if err != nil {
		return err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		formatEvent(output, event)
	}

	return nil
}
