package commands

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/farmhub/farmhub-go/pkg/log"
)

var journalStart = time.Date(2024, 5, 1, 6, 0, 0, 0, time.UTC)

func createTestJournal(t *testing.T, events []log.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.cbor")

	logger, err := log.NewFileLogger(path)
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	for _, e := range events {
		logger.Log(e)
	}
	logger.Close()

	return path
}

// coopMorning is a door opening at dawn, a valve override and a stuck door.
func coopMorning() []log.Event {
	at := func(minutes int) time.Time {
		return journalStart.Add(time.Duration(minutes) * time.Minute)
	}
	return []log.Event{
		{
			Timestamp: at(0), Component: "coop-door", Category: log.CategoryWatchdog, Boot: 4,
			Watchdog: &log.WatchdogEvent{Name: "coop-door:movement", Event: "STARTED", Timeout: time.Minute},
		},
		{
			Timestamp: at(1), Component: "coop-door", Category: log.CategoryState, Boot: 4,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityDoor, OldState: "CLOSED", NewState: "OPEN", Reason: "light"},
		},
		{
			Timestamp: at(5), Component: "garden", Category: log.CategoryCommand, Boot: 4,
			Command: &log.CommandEvent{
				Name:     "override",
				Request:  map[string]any{"state": 1, "duration": 60},
				Response: map[string]any{"state": 1, "duration": 60},
			},
		},
		{
			Timestamp: at(6), Component: "garden", Category: log.CategoryCommand, Boot: 4,
			Command: &log.CommandEvent{Name: "override", Request: map[string]any{"state": 7}, Error: "invalid state 7"},
		},
		{
			Timestamp: at(7), Component: "garden", Category: log.CategoryState, Boot: 4,
			StateChange: &log.StateChangeEvent{Entity: log.StateEntityValve, OldState: "CLOSED", NewState: "OPEN", Reason: "override"},
		},
		{
			Timestamp: at(60), Component: "barn-door", Category: log.CategoryWatchdog, Boot: 5,
			Watchdog: &log.WatchdogEvent{Name: "barn-door:movement", Event: "TIMED_OUT", Timeout: time.Minute},
		},
		{
			Timestamp: at(61), Component: "barn-door", Category: log.CategoryError, Boot: 5,
			Error: &log.ErrorEventData{Message: "door did not reach OPEN", Context: "movement"},
		},
	}
}
