package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/farmhub/farmhub-go/pkg/log"
)

// FilterOptions are the event selection flags shared by every command.
type FilterOptions struct {
	Component  string
	Category   string
	Entity     string
	InstanceID string
	TimeStart  string
	TimeEnd    string
}

// Filter converts the options to a journal filter.
func (o FilterOptions) Filter() (log.Filter, error) {
	filter := log.Filter{
		Component:  o.Component,
		InstanceID: o.InstanceID,
	}

	if o.Category != "" {
		c, err := parseCategory(o.Category)
		if err != nil {
			return filter, err
		}
		filter.Category = &c
	}

	if o.Entity != "" {
		e, err := parseEntity(o.Entity)
		if err != nil {
			return filter, err
		}
		filter.Entity = &e
	}

	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return filter, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}

	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return filter, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}

	return filter, nil
}

// parseCategory parses a category name (case-insensitive).
func parseCategory(s string) (log.Category, error) {
	c, ok := log.ParseCategory(strings.ToUpper(s))
	if !ok {
		return 0, fmt.Errorf("invalid category: %s (must be state, command, watchdog, or error)", s)
	}
	return c, nil
}

// parseEntity parses a state entity name (case-insensitive).
func parseEntity(s string) (log.StateEntity, error) {
	switch strings.ToLower(s) {
	case "door":
		return log.StateEntityDoor, nil
	case "valve":
		return log.StateEntityValve, nil
	case "device":
		return log.StateEntityDevice, nil
	default:
		return 0, fmt.Errorf("invalid entity: %s (must be door, valve, or device)", s)
	}
}

// RunFilter copies the events of path matching opts to output and returns
// how many were written.
func RunFilter(path, output string, opts FilterOptions) (int, error) {
	filter, err := opts.Filter()
	if err != nil {
		return 0, err
	}

	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	logger, err := log.NewFileLogger(output)
	if err != nil {
		return 0, fmt.Errorf("failed to create output logger: %w", err)
	}
	defer logger.Close()

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return count, fmt.Errorf("failed to read event: %w", err)
		}

		logger.Log(event)
		count++
	}

	if failures := logger.Failures(); failures > 0 {
		return count - failures, fmt.Errorf("failed to write %d events", failures)
	}
	return count, nil
}
