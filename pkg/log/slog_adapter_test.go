package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"
)

func logThroughAdapter(t *testing.T, event Event) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	NewSlogAdapter(slog.New(handler)).Log(event)

	if buf.Len() == 0 {
		t.Fatal("no output produced")
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	return entry
}

func TestSlogAdapterLogsStateChange(t *testing.T) {
	entry := logThroughAdapter(t, Event{
		Timestamp:  time.Now(),
		Component:  "coop-door",
		Category:   CategoryState,
		InstanceID: "inst-1",
		StateChange: &StateChangeEvent{
			Entity:   StateEntityDoor,
			OldState: "CLOSED",
			NewState: "OPEN",
			Reason:   "override",
		},
	})

	tests := map[string]string{
		"msg":         "event",
		"level":       "DEBUG",
		"component":   "coop-door",
		"category":    "STATE",
		"instance_id": "inst-1",
		"entity":      "DOOR",
		"old_state":   "CLOSED",
		"new_state":   "OPEN",
		"reason":      "override",
	}
	for key, want := range tests {
		if entry[key] != want {
			t.Errorf("%s: got %v, want %q", key, entry[key], want)
		}
	}
}

func TestSlogAdapterLogsCommand(t *testing.T) {
	entry := logThroughAdapter(t, Event{
		Component: "garden-valve",
		Category:  CategoryCommand,
		Command:   &CommandEvent{Name: "override", Error: "invalid state"},
	})

	if entry["command"] != "override" {
		t.Errorf("command: got %v, want override", entry["command"])
	}
	if entry["error"] != "invalid state" {
		t.Errorf("error: got %v, want %q", entry["error"], "invalid state")
	}
}

func TestSlogAdapterLogsWatchdog(t *testing.T) {
	entry := logThroughAdapter(t, Event{
		Component: "coop-door",
		Category:  CategoryWatchdog,
		Watchdog:  &WatchdogEvent{Name: "coop-door:watchdog", Event: "TIMED_OUT"},
	})

	if entry["watchdog"] != "coop-door:watchdog" {
		t.Errorf("watchdog: got %v", entry["watchdog"])
	}
	if entry["event"] != "TIMED_OUT" {
		t.Errorf("event: got %v, want TIMED_OUT", entry["event"])
	}
}

func TestSlogAdapterLogsError(t *testing.T) {
	entry := logThroughAdapter(t, Event{
		Component: "coop-door",
		Category:  CategoryError,
		Error:     &ErrorEventData{Message: "both switches engaged", Context: "determine state"},
	})

	if entry["error_msg"] != "both switches engaged" {
		t.Errorf("error_msg: got %v", entry["error_msg"])
	}
	if entry["error_context"] != "determine state" {
		t.Errorf("error_context: got %v", entry["error_context"])
	}
}

func TestSlogAdapterRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})
	NewSlogAdapter(slog.New(handler)).Log(Event{Component: "door"})

	if buf.Len() != 0 {
		t.Errorf("expected no output at info level, got %q", buf.String())
	}
}
