// Package switches samples digital inputs wired to mechanical switches and
// dispatches engagement and release events to registered handlers.
package switches

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/farmhub/farmhub-go/pkg/concurrent"
	"github.com/farmhub/farmhub-go/pkg/task"
)

// DefaultPollInterval is how often switch inputs are sampled.
const DefaultPollInterval = 20 * time.Millisecond

// ErrDuplicateSwitch is returned when a switch name is registered twice.
var ErrDuplicateSwitch = errors.New("switch already registered")

// DigitalReader reads the level of an input pin. Gobot's raspi adaptor
// satisfies it.
type DigitalReader interface {
	DigitalRead(pin string) (int, error)
}

// Mode describes how a switch is wired.
type Mode uint8

const (
	// PullUp switches pull the input low when engaged.
	PullUp Mode = iota

	// PullDown switches pull the input high when engaged.
	PullDown
)

// String returns the mode name used in configuration.
func (m Mode) String() string {
	if m == PullDown {
		return "pull-down"
	}
	return "pull-up"
}

// ParseMode parses "pull-up" or "pull-down". An empty string means pull-up.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "pull-up":
		return PullUp, nil
	case "pull-down":
		return PullDown, nil
	default:
		return PullUp, fmt.Errorf("invalid switch mode %q", s)
	}
}

// Switch is a registered input.
type Switch struct {
	name string
	pin  string
	mode Mode

	engaged    atomic.Bool
	removed    atomic.Bool
	engagedAt  time.Time
	onEngaged  func(*Switch)
	onReleased func(*Switch, time.Duration)
}

// Name returns the switch name.
func (s *Switch) Name() string {
	return s.name
}

// Pin returns the input pin.
func (s *Switch) Pin() string {
	return s.pin
}

// IsEngaged reports the last sampled state without touching the hardware.
func (s *Switch) IsEngaged() bool {
	return s.engaged.Load()
}

func (s *Switch) levelEngaged(level int) bool {
	if s.mode == PullUp {
		return level == 0
	}
	return level != 0
}

type change struct {
	sw      *Switch
	engaged bool
	at      time.Time
}

// Manager samples all registered switches from one task and calls handlers
// from a second one, so slow handlers never delay sampling.
type Manager struct {
	reader   DigitalReader
	interval time.Duration
	logger   *slog.Logger
	changes  *concurrent.Queue[change]

	mu       sync.Mutex
	switches []*Switch
	sampler  *task.Handle
	dispatch *task.Handle
}

// NewManager creates a manager polling reader every interval.
// A zero interval uses DefaultPollInterval; a nil logger uses slog.Default().
func NewManager(reader DigitalReader, interval time.Duration, logger *slog.Logger) *Manager {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		reader:   reader,
		interval: interval,
		logger:   logger,
		changes:  concurrent.NewQueue[change]("switch-state-changes", 4),
	}
}

// Register adds a switch. Either handler may be nil. The current level is
// read immediately so IsEngaged is valid before the first sample.
func (m *Manager) Register(name, pin string, mode Mode, onEngaged func(*Switch), onReleased func(*Switch, time.Duration)) (*Switch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.switches {
		if s.name == name {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSwitch, name)
		}
	}

	m.logger.Info("Registering switch",
		slog.String("switch", name),
		slog.String("pin", pin),
		slog.String("mode", mode.String()))

	sw := &Switch{
		name:       name,
		pin:        pin,
		mode:       mode,
		onEngaged:  onEngaged,
		onReleased: onReleased,
	}
	level, err := m.reader.DigitalRead(pin)
	if err != nil {
		return nil, fmt.Errorf("reading switch %s: %w", name, err)
	}
	if sw.levelEngaged(level) {
		sw.engaged.Store(true)
		sw.engagedAt = time.Now()
	}
	m.switches = append(m.switches, sw)
	return sw, nil
}

// Unregister removes the switch called name and reports whether it was
// registered. Changes still queued for it are dropped.
func (m *Manager) Unregister(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, s := range m.switches {
		if s.name == name {
			s.removed.Store(true)
			m.switches = append(m.switches[:i:i], m.switches[i+1:]...)
			m.logger.Info("Unregistered switch", slog.String("switch", name))
			return true
		}
	}
	return false
}

// Start launches the sampling and dispatch tasks.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sampler != nil {
		return
	}
	m.sampler = task.Loop("switch-sampler", 2048, task.DefaultPriority, func(t *task.Task) {
		m.sample()
		t.DelayUntil(m.interval)
	})
	m.dispatch = task.Loop("switch-manager", 2560, task.DefaultPriority, func(t *task.Task) {
		m.changes.PollIn(100*time.Millisecond, m.handle)
	})
}

// Stop stops both tasks and waits for them to finish.
func (m *Manager) Stop() {
	m.mu.Lock()
	sampler, dispatch := m.sampler, m.dispatch
	m.sampler, m.dispatch = nil, nil
	m.mu.Unlock()

	for _, h := range []*task.Handle{sampler, dispatch} {
		if h != nil {
			h.Stop()
			h.Wait()
		}
	}
}

func (m *Manager) sample() {
	m.mu.Lock()
	switches := append([]*Switch(nil), m.switches...)
	m.mu.Unlock()

	now := time.Now()
	for _, sw := range switches {
		level, err := m.reader.DigitalRead(sw.pin)
		if err != nil {
			m.logger.Debug("Failed to read switch",
				slog.String("switch", sw.name),
				slog.Any("error", err))
			continue
		}
		engaged := sw.levelEngaged(level)
		if sw.engaged.Swap(engaged) != engaged {
			m.changes.Offer(change{sw: sw, engaged: engaged, at: now})
		}
	}
}

func (m *Manager) handle(c change) {
	sw := c.sw
	if sw.removed.Load() {
		return
	}
	m.logger.Debug("Switch changed",
		slog.String("switch", sw.name),
		slog.Bool("engaged", c.engaged))
	if c.engaged {
		sw.engagedAt = c.at
		if sw.onEngaged != nil {
			sw.onEngaged(sw)
		}
		return
	}
	held := c.at.Sub(sw.engagedAt)
	if sw.engagedAt.IsZero() {
		held = 0
	}
	if sw.onReleased != nil {
		sw.onReleased(sw, held)
	}
}
