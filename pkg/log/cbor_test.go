package log

import (
	"bytes"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
)

func TestEventCBORRoundTrip(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456789, time.UTC)
	original := Event{
		Timestamp:  ts,
		Component:  "coop-door",
		Category:   CategoryState,
		InstanceID: "abc12345-def6-7890-abcd-ef1234567890",
		Boot:       12,
		StateChange: &StateChangeEvent{
			Entity:   StateEntityDoor,
			OldState: "CLOSED",
			NewState: "OPEN",
			Reason:   "light 312.0 lux",
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp: got %v, want %v", decoded.Timestamp, original.Timestamp)
	}
	if decoded.Component != original.Component {
		t.Errorf("Component: got %q, want %q", decoded.Component, original.Component)
	}
	if decoded.Category != original.Category {
		t.Errorf("Category: got %v, want %v", decoded.Category, original.Category)
	}
	if decoded.InstanceID != original.InstanceID {
		t.Errorf("InstanceID: got %q, want %q", decoded.InstanceID, original.InstanceID)
	}
	if decoded.Boot != original.Boot {
		t.Errorf("Boot: got %d, want %d", decoded.Boot, original.Boot)
	}
	if decoded.StateChange == nil {
		t.Fatal("StateChange is nil")
	}
	if *decoded.StateChange != *original.StateChange {
		t.Errorf("StateChange: got %+v, want %+v", *decoded.StateChange, *original.StateChange)
	}
}

func TestCommandEventPayloadSurvivesEncoding(t *testing.T) {
	original := Event{
		Timestamp: time.Now(),
		Component: "garden-valve",
		Category:  CategoryCommand,
		Command: &CommandEvent{
			Name:     "override",
			Request:  map[string]any{"state": int64(1), "duration": int64(600)},
			Response: map[string]any{"state": int64(-1), "duration": int64(600)},
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if decoded.Command == nil {
		t.Fatal("Command is nil")
	}
	if decoded.Command.Name != "override" {
		t.Errorf("Command.Name: got %q, want override", decoded.Command.Name)
	}
	// CBOR decodes unsigned integers as uint64 and negative ones as int64.
	if got := decoded.Command.Request["duration"]; got != uint64(600) {
		t.Errorf("Request[duration]: got %v (%T), want 600", got, got)
	}
	if got := decoded.Command.Response["state"]; got != int64(-1) {
		t.Errorf("Response[state]: got %v (%T), want -1", got, got)
	}
}

func TestEventUsesIntegerKeys(t *testing.T) {
	data, err := EncodeEvent(Event{
		Timestamp: time.Unix(0, 0).UTC(),
		Component: "door",
		Category:  CategoryWatchdog,
		Watchdog:  &WatchdogEvent{Name: "door:watchdog", Event: "TIMED_OUT"},
	})
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	var raw map[any]any
	if err := cbor.Unmarshal(data, &raw); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for k := range raw {
		if _, ok := k.(uint64); !ok {
			t.Errorf("key %v (%T) is not an integer", k, k)
		}
	}
	if bytes.Contains(data, []byte("Component")) {
		t.Error("encoded event contains field names")
	}
}

func TestEncoderDecoderStream(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for i, name := range []string{"a", "b", "c"} {
		if err := enc.Encode(Event{Component: name, Boot: uint32(i + 1)}); err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
	}

	dec := NewDecoder(&buf)
	for _, want := range []string{"a", "b", "c"} {
		var e Event
		if err := dec.Decode(&e); err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if e.Component != want {
			t.Errorf("Component: got %q, want %q", e.Component, want)
		}
	}
}

func TestStringers(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{CategoryState.String(), "STATE"},
		{CategoryCommand.String(), "COMMAND"},
		{CategoryWatchdog.String(), "WATCHDOG"},
		{CategoryError.String(), "ERROR"},
		{Category(42).String(), "UNKNOWN"},
		{StateEntityDoor.String(), "DOOR"},
		{StateEntityValve.String(), "VALVE"},
		{StateEntityDevice.String(), "DEVICE"},
		{StateEntity(9).String(), "UNKNOWN"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("String() = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestParseCategory(t *testing.T) {
	for c := CategoryState; c <= CategoryError; c++ {
		got, ok := ParseCategory(c.String())
		if !ok || got != c {
			t.Errorf("ParseCategory(%q) = %v, %v; want %v, true", c.String(), got, ok, c)
		}
	}
	if _, ok := ParseCategory("FRAME"); ok {
		t.Error("ParseCategory(FRAME) ok = true, want false")
	}
}

func TestNestedPayloadsDecodeAsStringMaps(t *testing.T) {
	data, err := EncodeEvent(Event{
		Component: "garden",
		Category:  CategoryCommand,
		Command: &CommandEvent{
			Name:    "schedule",
			Request: map[string]any{"schedules": []any{map[string]any{"period": 3600}}},
		},
	})
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	event, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	schedules, ok := event.Command.Request["schedules"].([]any)
	if !ok || len(schedules) != 1 {
		t.Fatalf("schedules = %#v", event.Command.Request["schedules"])
	}
	if _, ok := schedules[0].(map[string]any); !ok {
		t.Errorf("schedule decoded as %T, want map[string]any", schedules[0])
	}
}

func TestTruncatedRecordFailsToDecode(t *testing.T) {
	data, err := EncodeEvent(Event{
		Timestamp: time.Date(2026, 3, 1, 6, 0, 0, 1, time.UTC),
		Component: "coop-door",
		Category:  CategoryWatchdog,
		Watchdog:  &WatchdogEvent{Name: "coop-door:watchdog", Event: "STARTED", Timeout: time.Minute},
	})
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	for _, cut := range []int{1, len(data) / 2, len(data) - 1} {
		if _, err := DecodeEvent(data[:cut]); err == nil {
			t.Errorf("DecodeEvent(first %d of %d bytes) succeeded, want error", cut, len(data))
		}
	}

	event, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	if event.Timestamp.Nanosecond() != 1 {
		t.Errorf("Timestamp nanoseconds = %d, want 1", event.Timestamp.Nanosecond())
	}
}
