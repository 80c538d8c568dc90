package device

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/farmhub/farmhub-go/pkg/state"
	"github.com/farmhub/farmhub-go/pkg/task"
)

// Status tracks the boot progress of the device.
type Status struct {
	states *state.Manager
	logger *slog.Logger

	ConfigLoaded           *state.StateSource
	PeripheralsInitialized *state.StateSource
	MQTTConnected          *state.StateSource
	KeepAwake              *state.StateSource

	ready *state.State

	awakeMu    sync.Mutex
	awakeCount int
}

// NewStatus creates the status states.
func NewStatus(logger *slog.Logger) (*Status, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Status{states: state.NewManager(), logger: logger}
	for _, def := range []struct {
		name string
		dst  **state.StateSource
	}{
		{"config-loaded", &s.ConfigLoaded},
		{"peripherals-initialized", &s.PeripheralsInitialized},
		{"mqtt-connected", &s.MQTTConnected},
		{"keep-awake", &s.KeepAwake},
	} {
		src, err := s.states.CreateStateSource(def.name)
		if err != nil {
			return nil, fmt.Errorf("creating status: %w", err)
		}
		*def.dst = src
	}
	s.ready = s.states.CombineStates("ready",
		s.ConfigLoaded.View(), s.PeripheralsInitialized.View(), s.MQTTConnected.View())
	return s, nil
}

// Ready is set once config is loaded, peripherals are up and MQTT is connected.
func (s *Status) Ready() *state.State {
	return s.ready
}

// Awake keeps the device awake while at least one caller holds it.
// It can be passed as Services.Awake.
func (s *Status) Awake(keep bool) {
	s.awakeMu.Lock()
	defer s.awakeMu.Unlock()

	if keep {
		s.awakeCount++
	} else if s.awakeCount > 0 {
		s.awakeCount--
	}
	if s.awakeCount > 0 {
		s.KeepAwake.Set()
	} else {
		s.KeepAwake.Clear()
	}
}

// String lists every status state.
func (s *Status) String() string {
	sources := s.states.Sources()
	parts := make([]string, 0, len(sources)+1)
	for _, src := range sources {
		parts = append(parts, src.String())
	}
	parts = append(parts, s.ready.String())
	return strings.Join(parts, ", ")
}

// Watch starts a task that logs every status change.
func (s *Status) Watch() *task.Handle {
	return task.Loop("status", 2048, task.DefaultPriority, func(t *task.Task) {
		if s.states.AwaitStateChange(time.Second) {
			s.logger.Info("Device status changed", slog.String("status", s.String()))
		}
		t.Yield()
	})
}
