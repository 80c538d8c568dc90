// Command farmhub-log views and analyzes farmhub event journals.
//
// Journals are written by farmhub-device to the eventLog path of the device
// file.
//
// Usage:
//
//	farmhub-log <command> [flags] <journal.cbor>
//
// Commands:
//
//	view     View journal in human-readable format
//	export   Export journal to JSONL or CSV format
//	filter   Filter journal and write to new file
//	stats    Show statistics about the journal
//
// Examples:
//
//	# View all events
//	farmhub-log view coop.cbor
//
//	# View door state changes only
//	farmhub-log view --entity door coop.cbor
//
//	# Export one valve's commands to CSV
//	farmhub-log export --format csv --component garden --category command coop.cbor
//
//	# Keep the last day of events
//	farmhub-log filter --time-start 2024-05-01T00:00:00Z -o day.cbor coop.cbor
//
//	# Show statistics
//	farmhub-log stats coop.cbor
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/farmhub/farmhub-go/cmd/farmhub-log/commands"
)

const usage = `farmhub-log - farmhub Journal Analyzer

Usage:
  farmhub-log <command> [flags] <journal.cbor>

Commands:
  view     View journal in human-readable format
  export   Export journal to JSONL or CSV format
  filter   Filter journal and write to new file
  stats    Show statistics about the journal

Use "farmhub-log <command> -help" for more information about a command.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "view":
		runView(args)
	case "export":
		runExport(args)
	case "filter":
		runFilter(args)
	case "stats":
		runStats(args)
	case "-h", "-help", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

// newFlagSet creates a flag set with the shared filter flags.
func newFlagSet(name, synopsis string) (*flag.FlagSet, *commands.FilterOptions) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `farmhub-log %s - %s

Usage:
  farmhub-log %s [flags] <journal.cbor>

Flags:
`, name, synopsis, name)
		fs.PrintDefaults()
	}

	opts := &commands.FilterOptions{}
	fs.StringVar(&opts.Component, "component", "", "Filter by component name")
	fs.StringVar(&opts.Category, "category", "", "Filter by category (state, command, watchdog, error)")
	fs.StringVar(&opts.Entity, "entity", "", "Filter state changes by entity (door, valve, device)")
	fs.StringVar(&opts.InstanceID, "instance-id", "", "Filter by device instance ID")
	fs.StringVar(&opts.TimeStart, "time-start", "", "Filter by start time (RFC3339)")
	fs.StringVar(&opts.TimeEnd, "time-end", "", "Filter by end time (RFC3339)")
	return fs, opts
}

// journalPath parses args and returns the journal argument.
func journalPath(fs *flag.FlagSet, args []string) string {
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "Error: journal file path required")
		fs.Usage()
		os.Exit(1)
	}
	return fs.Arg(0)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

func runView(args []string) {
	fs, opts := newFlagSet("view", "View journal in human-readable format")
	path := journalPath(fs, args)

	if err := commands.RunView(path, *opts, os.Stdout); err != nil {
		fail(err)
	}
}

func runExport(args []string) {
	fs, opts := newFlagSet("export", "Export journal to JSONL or CSV format")
	format := fs.String("format", "jsonl", "Output format (jsonl, csv)")
	output := fs.String("o", "", "Output file (default: stdout)")
	path := journalPath(fs, args)

	if err := commands.RunExport(path, *format, *output, *opts, os.Stdout); err != nil {
		fail(err)
	}
}

func runFilter(args []string) {
	fs, opts := newFlagSet("filter", "Filter journal and write to new file")
	output := fs.String("o", "", "Output file (required)")
	path := journalPath(fs, args)

	if *output == "" {
		fmt.Fprintln(os.Stderr, "Error: output file (-o) required")
		fs.Usage()
		os.Exit(1)
	}

	count, err := commands.RunFilter(path, *output, *opts)
	if err != nil {
		fail(err)
	}
	fmt.Printf("Filtered %d events to %s\n", count, *output)
}

func runStats(args []string) {
	fs, opts := newFlagSet("stats", "Show statistics about the journal")
	path := journalPath(fs, args)

	if err := commands.RunStats(path, *opts, os.Stdout); err != nil {
		fail(err)
	}
}
