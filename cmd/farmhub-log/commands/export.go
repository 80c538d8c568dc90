package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/farmhub/farmhub-go/pkg/log"
)

// RunExport exports the events of path matching opts in the given format.
// An empty output writes to w.
func RunExport(path, format, output string, opts FilterOptions, w io.Writer) error {
	if format != "jsonl" && format != "csv" {
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}

	filter, err := opts.Filter()
	if err != nil {
		return err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if format == "csv" {
		return exportCSV(reader, w)
	}
	return exportJSONL(reader, w)
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
	return nil
}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "instance_id", "boot", "component", "category", "subject", "detail"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		subject, detail := summarize(event)
		row := []string{
			event.Timestamp.UTC().Format(timestampLayout),
			event.InstanceID,
			strconv.FormatUint(uint64(event.Boot), 10),
			event.Component,
			event.Category.String(),
			subject,
			detail,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// summarize returns what an event is about and what happened to it.
func summarize(event log.Event) (subject, detail string) {
	switch {
	case event.StateChange != nil:
		sc := event.StateChange
		detail = sc.OldState + "->" + sc.NewState
		if sc.Reason != "" {
			detail += " (" + sc.Reason + ")"
		}
		return sc.Entity.String(), detail
	case event.Command != nil:
		if event.Command.Error != "" {
			return event.Command.Name, "error: " + event.Command.Error
		}
		return event.Command.Name, formatPayload(event.Command.Response)
	case event.Watchdog != nil:
		return event.Watchdog.Name, event.Watchdog.Event
	case event.Error != nil:
		return event.Error.Context, event.Error.Message
	default:
		return "", ""
	}
}
