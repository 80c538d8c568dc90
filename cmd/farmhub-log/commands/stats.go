package commands

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/farmhub/farmhub-go/pkg/log"
	"github.com/farmhub/farmhub-go/pkg/watchdog"
)

// Stats holds aggregate statistics about a journal.
type Stats struct {
	TotalEvents      int
	EventsByCategory map[log.Category]int
	Components       map[string]*ComponentStats
	Boots            map[uint32]bool
	TimeRange        struct {
		Start time.Time
		End   time.Time
	}
}

// ComponentStats holds statistics for a single peripheral or service.
type ComponentStats struct {
	Events           int
	StateChanges     int
	LastState        string
	Commands         int
	FailedCommands   int
	WatchdogTimeouts int
	Errors           int
}

// CollectStats reads the events of path matching opts.
func CollectStats(path string, opts FilterOptions) (*Stats, error) {
	filter, err := opts.Filter()
	if err != nil {
		return nil, err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := &Stats{
		EventsByCategory: make(map[log.Category]int),
		Components:       make(map[string]*ComponentStats),
		Boots:            make(map[uint32]bool),
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read event: %w", err)
		}
		stats.add(event)
	}
	return stats, nil
}

func (s *Stats) add(event log.Event) {
	s.TotalEvents++
	s.EventsByCategory[event.Category]++
	if event.Boot != 0 {
		s.Boots[event.Boot] = true
	}

	// Track time range
	if s.TimeRange.Start.IsZero() || event.Timestamp.Before(s.TimeRange.Start) {
		s.TimeRange.Start = event.Timestamp
	}
	if event.Timestamp.After(s.TimeRange.End) {
		s.TimeRange.End = event.Timestamp
	}

	c, ok := s.Components[event.Component]
	if !ok {
		c = &ComponentStats{}
		s.Components[event.Component] = c
	}
	c.Events++

	switch {
	case event.StateChange != nil:
		c.StateChanges++
		c.LastState = event.StateChange.NewState
	case event.Command != nil:
		c.Commands++
		if event.Command.Error != "" {
			c.FailedCommands++
		}
	case event.Watchdog != nil:
		if event.Watchdog.Event == watchdog.EventTimedOut.String() {
			c.WatchdogTimeouts++
		}
	case event.Error != nil:
		c.Errors++
	}
}

// RunStats analyzes the journal and prints statistics.
func RunStats(path string, opts FilterOptions, w io.Writer) error {
	stats, err := CollectStats(path, opts)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, stats *Stats) {
	fmt.Fprintln(w, "=== farmhub Journal Statistics ===")
	fmt.Fprintln(w)

	if stats.TotalEvents > 0 {
		fmt.Fprintf(w, "Time Range: %s to %s\n",
			stats.TimeRange.Start.Format(time.RFC3339),
			stats.TimeRange.End.Format(time.RFC3339))
		fmt.Fprintf(w, "Duration:   %s\n", stats.TimeRange.End.Sub(stats.TimeRange.Start).Round(time.Second))
		fmt.Fprintf(w, "Boots:      %d\n", len(stats.Boots))
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Total Events: %d\n", stats.TotalEvents)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "Events by Category:")
	for _, cat := range []log.Category{log.CategoryState, log.CategoryCommand, log.CategoryWatchdog, log.CategoryError} {
		if count := stats.EventsByCategory[cat]; count > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", cat.String()+":", count)
		}
	}
	fmt.Fprintln(w)

	names := make([]string, 0, len(stats.Components))
	for name := range stats.Components {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintf(w, "Components: %d\n", len(names))
	for _, name := range names {
		c := stats.Components[name]
		fmt.Fprintf(w, "  [%s] %d events\n", name, c.Events)
		if c.StateChanges > 0 {
			fmt.Fprintf(w, "           State changes: %d (last: %s)\n", c.StateChanges, c.LastState)
		}
		if c.Commands > 0 {
			fmt.Fprintf(w, "           Commands: %d (%d failed)\n", c.Commands, c.FailedCommands)
		}
		if c.WatchdogTimeouts > 0 {
			fmt.Fprintf(w, "           Watchdog timeouts: %d\n", c.WatchdogTimeouts)
		}
		if c.Errors > 0 {
			fmt.Fprintf(w, "           Errors: %d\n", c.Errors)
		}
	}
}
