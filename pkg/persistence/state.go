package persistence

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StateVersion is the current version of the state file format.
const StateVersion = 1

// DeviceState contains the runtime state of a farmhub device.
type DeviceState struct {
	// Version is the state file format version.
	Version int `json:"version"`

	// SavedAt is when the state was last saved.
	SavedAt time.Time `json:"saved_at"`

	// InstanceID identifies this installation. Generated on first boot.
	InstanceID string `json:"instance_id,omitempty"`

	// BootCount is incremented once per process start.
	BootCount uint32 `json:"boot_count"`

	// Valves holds the last reached state of latching valves by peripheral name.
	Valves map[string]int `json:"valves,omitempty"`
}

// DeviceStateStore manages persistence of device state to a JSON file.
type DeviceStateStore struct {
	mu   sync.Mutex
	path string
}

// NewDeviceStateStore creates a new device state store.
func NewDeviceStateStore(path string) *DeviceStateStore {
	return &DeviceStateStore{path: path}
}

// Path returns the state file path.
func (s *DeviceStateStore) Path() string {
	return s.path
}

// Save persists the device state to disk.
func (s *DeviceStateStore) Save(state *DeviceState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(state)
}

// Load reads the device state from disk.
// Returns nil, nil if the file doesn't exist (empty state).
func (s *DeviceStateStore) Load() (*DeviceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Update loads the state (empty if missing), applies fn and saves the result.
// Nothing is written if fn returns an error.
func (s *DeviceStateStore) Update(fn func(state *DeviceState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load()
	if err != nil {
		return err
	}
	if state == nil {
		state = &DeviceState{}
	}
	if err := fn(state); err != nil {
		return err
	}
	state.SavedAt = time.Time{}
	return s.save(state)
}

// Clear removes the state file.
func (s *DeviceStateStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// LoadValveState returns the persisted state of the named valve.
func (s *DeviceStateStore) LoadValveState(name string) (int, bool, error) {
	state, err := s.Load()
	if err != nil || state == nil {
		return 0, false, err
	}
	v, ok := state.Valves[name]
	return v, ok, nil
}

// SaveValveState records the state of the named valve.
func (s *DeviceStateStore) SaveValveState(name string, valveState int) error {
	return s.Update(func(state *DeviceState) error {
		if state.Valves == nil {
			state.Valves = make(map[string]int)
		}
		state.Valves[name] = valveState
		return nil
	})
}

func (s *DeviceStateStore) load() (*DeviceState, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	state := &DeviceState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}
	return state, nil
}

// save writes through a temporary file so a crash never leaves a truncated state file.
func (s *DeviceStateStore) save(state *DeviceState) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	state.Version = StateVersion
	if state.SavedAt.IsZero() {
		state.SavedAt = time.Now()
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

// BootInfo describes the current process start.
type BootInfo struct {
	InstanceID string
	BootCount  uint32
}

// RecordBoot increments the persisted boot counter and assigns an instance
// id on first boot. Call it exactly once per process start.
func RecordBoot(store *DeviceStateStore) (BootInfo, error) {
	var info BootInfo
	err := store.Update(func(state *DeviceState) error {
		if state.InstanceID == "" {
			state.InstanceID = uuid.NewString()
		}
		state.BootCount++
		info = BootInfo{InstanceID: state.InstanceID, BootCount: state.BootCount}
		return nil
	})
	return info, err
}
