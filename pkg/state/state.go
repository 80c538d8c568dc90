package state

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"
)

// Forever can be passed as a timeout to wait without limit.
const Forever = time.Duration(math.MaxInt64)

// MaxStates is the number of sources a single manager can hold.
// Bit 0 of the group is reserved for the change flag.
const MaxStates = 63

const changeBit uint64 = 1

// ErrTooManyStates is returned when a manager runs out of state bits.
var ErrTooManyStates = errors.New("too many states")

// Manager handles a group of states and allows waiting for the next change.
//
// Note the group change triggers when one of the states is set or cleared.
// A single State can only be waited on to become set.
type Manager struct {
	mu       sync.Mutex
	bits     uint64
	versions [64]uint64
	next     int
	wake     chan struct{}
	sources  []*StateSource
}

// NewManager creates an empty state group.
func NewManager() *Manager {
	return &Manager{
		next: 1,
		wake: make(chan struct{}),
	}
}

// CreateStateSource registers a new, initially cleared state.
func (m *Manager) CreateStateSource(name string) (*StateSource, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.next > MaxStates {
		return nil, fmt.Errorf("%w: cannot create %q", ErrTooManyStates, name)
	}
	slog.Debug("Creating state", slog.String("state", name))
	src := &StateSource{State{
		name:    name,
		manager: m,
		mask:    1 << uint(m.next),
	}}
	m.next++
	m.sources = append(m.sources, src)
	return src, nil
}

// CombineStates returns a state that is set only while all given states are set.
func (m *Manager) CombineStates(name string, states ...*State) *State {
	slog.Debug("Creating combined state", slog.String("state", name))
	var mask uint64
	for _, s := range states {
		mask |= s.mask
	}
	return &State{
		name:    name,
		manager: m,
		mask:    mask,
	}
}

// Sources returns the registered state sources in creation order.
func (m *Manager) Sources() []*State {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*State, len(m.sources))
	for i, src := range m.sources {
		out[i] = &src.State
	}
	return out
}

// AwaitStateChange waits until any state in the group was set or cleared
// since the last successful call, or until timeout elapses.
// Returns whether a change was observed.
func (m *Manager) AwaitStateChange(timeout time.Duration) bool {
	return m.await(timeout, func() bool {
		if m.bits&changeBit == 0 {
			return false
		}
		m.bits &^= changeBit
		return true
	})
}

// await blocks until cond (evaluated under the lock) holds or timeout elapses.
func (m *Manager) await(timeout time.Duration, cond func() bool) bool {
	var timer *time.Timer
	for {
		m.mu.Lock()
		if cond() {
			m.mu.Unlock()
			return true
		}
		wake := m.wake
		m.mu.Unlock()

		if timeout <= 0 {
			return false
		}
		if timer == nil {
			timer = time.NewTimer(timeout)
			defer timer.Stop()
		}
		select {
		case <-wake:
		case <-timer.C:
			m.mu.Lock()
			ok := cond()
			m.mu.Unlock()
			return ok
		}
	}
}

// update sets or clears the masked bits and wakes every waiter.
// Must not be called with m.mu held.
func (m *Manager) update(mask uint64, set bool) bool {
	m.mu.Lock()
	before := m.bits & mask
	if set {
		m.bits |= mask | changeBit
	} else {
		m.bits &^= mask
		m.bits |= changeBit
	}
	changed := before != m.bits&mask
	for i := 1; i < 64; i++ {
		if mask&(1<<uint(i)) != 0 {
			m.versions[i]++
		}
	}
	close(m.wake)
	m.wake = make(chan struct{})
	m.mu.Unlock()
	return changed
}

// State is a read-only view of a named condition.
type State struct {
	name    string
	manager *Manager
	mask    uint64
}

// Name returns the state name.
func (s *State) Name() string {
	return s.name
}

// IsSet reports whether the state is currently set. It never blocks.
func (s *State) IsSet() bool {
	s.manager.mu.Lock()
	defer s.manager.mu.Unlock()
	return s.manager.bits&s.mask == s.mask
}

// AwaitSet waits until the state is set or timeout elapses.
// Returns whether the state was set.
func (s *State) AwaitSet(timeout time.Duration) bool {
	return s.manager.await(timeout, func() bool {
		return s.manager.bits&s.mask == s.mask
	})
}

// Version returns a counter that increases every time the state, or any
// state it combines, is set or cleared.
func (s *State) Version() uint64 {
	s.manager.mu.Lock()
	defer s.manager.mu.Unlock()

	var v uint64
	for i := 1; i < 64; i++ {
		if s.mask&(1<<uint(i)) != 0 {
			v += s.manager.versions[i]
		}
	}
	return v
}

// String returns the state name and its current value.
func (s *State) String() string {
	if s.IsSet() {
		return s.name + "=set"
	}
	return s.name + "=clear"
}

// StateSource is the writable side of a state, held by its owner.
type StateSource struct {
	State
}

// Set sets the state and wakes all waiters.
// Returns true if the state was not set before.
func (s *StateSource) Set() bool {
	return s.manager.update(s.mask, true)
}

// Clear clears the state and wakes group-change waiters.
// Returns true if the state was set before.
func (s *StateSource) Clear() bool {
	return s.manager.update(s.mask, false)
}

// View returns the read-only side of the source.
func (s *StateSource) View() *State {
	return &s.State
}
