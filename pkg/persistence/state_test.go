package persistence

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestDeviceStateStore(t *testing.T) {
	t.Run("SaveAndLoad", func(t *testing.T) {
		dir := t.TempDir()
		store := NewDeviceStateStore(filepath.Join(dir, "state.json"))

		state := &DeviceState{
			SavedAt:    time.Now(),
			InstanceID: "abc",
			BootCount:  3,
			Valves:     map[string]int{"garden": -1},
		}
		if err := store.Save(state); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got.Version != StateVersion {
			t.Errorf("Version = %d, want %d", got.Version, StateVersion)
		}
		if got.InstanceID != "abc" {
			t.Errorf("InstanceID = %q, want abc", got.InstanceID)
		}
		if got.BootCount != 3 {
			t.Errorf("BootCount = %d, want 3", got.BootCount)
		}
		if got.Valves["garden"] != -1 {
			t.Errorf("Valves[garden] = %d, want -1", got.Valves["garden"])
		}
	})

	t.Run("LoadNonExistent", func(t *testing.T) {
		dir := t.TempDir()
		store := NewDeviceStateStore(filepath.Join(dir, "nonexistent.json"))

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got != nil {
			t.Errorf("Load() = %v, want nil for non-existent file", got)
		}
	})

	t.Run("LoadCorrupt", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "state.json")
		if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
			t.Fatal(err)
		}
		store := NewDeviceStateStore(path)

		if _, err := store.Load(); err == nil {
			t.Error("Load() error = nil, want error for corrupt file")
		}
	})

	t.Run("CreatesParentDirectory", func(t *testing.T) {
		dir := t.TempDir()
		store := NewDeviceStateStore(filepath.Join(dir, "nested", "deeper", "state.json"))

		if err := store.Save(&DeviceState{}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if _, err := os.Stat(store.Path()); err != nil {
			t.Errorf("state file not created: %v", err)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		dir := t.TempDir()
		store := NewDeviceStateStore(filepath.Join(dir, "state.json"))
		_ = store.Save(&DeviceState{BootCount: 1})

		if err := store.Clear(); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		if err := store.Clear(); err != nil {
			t.Errorf("Clear() on missing file error = %v, want nil", err)
		}
		got, _ := store.Load()
		if got != nil {
			t.Errorf("Load() after Clear = %v, want nil", got)
		}
	})
}

func TestUpdate(t *testing.T) {
	dir := t.TempDir()
	store := NewDeviceStateStore(filepath.Join(dir, "state.json"))

	err := store.Update(func(s *DeviceState) error {
		s.BootCount = 7
		return nil
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}

	boom := errors.New("boom")
	err = store.Update(func(s *DeviceState) error {
		s.BootCount = 99
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Update() error = %v, want %v", err, boom)
	}

	got, _ := store.Load()
	if got.BootCount != 7 {
		t.Errorf("BootCount = %d, want 7 (failed update must not be saved)", got.BootCount)
	}
}

func TestValveState(t *testing.T) {
	dir := t.TempDir()
	store := NewDeviceStateStore(filepath.Join(dir, "state.json"))

	if _, ok, err := store.LoadValveState("garden"); ok || err != nil {
		t.Errorf("LoadValveState() on empty store = ok %v, err %v; want false, nil", ok, err)
	}

	if err := store.SaveValveState("garden", 1); err != nil {
		t.Fatalf("SaveValveState() error = %v", err)
	}
	if err := store.SaveValveState("orchard", -1); err != nil {
		t.Fatalf("SaveValveState() error = %v", err)
	}

	tests := []struct {
		name string
		want int
	}{
		{"garden", 1},
		{"orchard", -1},
	}
	for _, tt := range tests {
		got, ok, err := store.LoadValveState(tt.name)
		if err != nil || !ok || got != tt.want {
			t.Errorf("LoadValveState(%q) = %d, %v, %v; want %d, true, nil", tt.name, got, ok, err, tt.want)
		}
	}
}

func TestRecordBoot(t *testing.T) {
	dir := t.TempDir()
	store := NewDeviceStateStore(filepath.Join(dir, "state.json"))

	first, err := RecordBoot(store)
	if err != nil {
		t.Fatalf("RecordBoot() error = %v", err)
	}
	if first.BootCount != 1 {
		t.Errorf("BootCount = %d, want 1", first.BootCount)
	}
	if _, err := uuid.Parse(first.InstanceID); err != nil {
		t.Errorf("InstanceID %q is not a UUID: %v", first.InstanceID, err)
	}

	second, err := RecordBoot(store)
	if err != nil {
		t.Fatalf("RecordBoot() error = %v", err)
	}
	if second.BootCount != 2 {
		t.Errorf("BootCount = %d, want 2", second.BootCount)
	}
	if second.InstanceID != first.InstanceID {
		t.Errorf("InstanceID changed from %q to %q", first.InstanceID, second.InstanceID)
	}
}
