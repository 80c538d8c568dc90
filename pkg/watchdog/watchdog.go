package watchdog

import (
	"sync"
	"time"
)

// State represents the watchdog lifecycle.
type State uint8

const (
	// StateIdle indicates the watchdog is not armed.
	StateIdle State = iota

	// StateArmed indicates the deadline is running.
	StateArmed

	// StateFired indicates the deadline elapsed. Only Restart leaves this state.
	StateFired
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateArmed:
		return "ARMED"
	case StateFired:
		return "FIRED"
	default:
		return "UNKNOWN"
	}
}

// Event is delivered to the callback on every lifecycle transition.
type Event uint8

const (
	// EventStarted is delivered when the watchdog is (re)armed.
	EventStarted Event = iota

	// EventCancelled is delivered when an armed watchdog is cancelled.
	EventCancelled

	// EventTimedOut is delivered when the deadline elapses.
	EventTimedOut
)

// String returns a human-readable event name.
func (e Event) String() string {
	switch e {
	case EventStarted:
		return "STARTED"
	case EventCancelled:
		return "CANCELLED"
	case EventTimedOut:
		return "TIMED_OUT"
	default:
		return "UNKNOWN"
	}
}

// Callback receives watchdog events.
type Callback func(Event)

// Watchdog fires a callback if an operation is not finished in time.
type Watchdog struct {
	name     string
	timeout  time.Duration
	callback Callback

	// cbMu serializes callbacks with the generation check in fire.
	cbMu sync.Mutex

	mu         sync.Mutex
	state      State
	generation uint64
	timer      *time.Timer
	armedAt    time.Time
}

// New creates an idle watchdog. A nil callback is allowed.
func New(name string, timeout time.Duration, callback Callback) *Watchdog {
	return &Watchdog{
		name:     name,
		timeout:  timeout,
		callback: callback,
		state:    StateIdle,
	}
}

// Name returns the watchdog name.
func (w *Watchdog) Name() string {
	return w.name
}

// Timeout returns the configured deadline duration.
func (w *Watchdog) Timeout() time.Duration {
	return w.timeout
}

// State returns the current lifecycle state.
func (w *Watchdog) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// RemainingTime returns the time left until the deadline.
// Returns 0 if the watchdog is not armed.
func (w *Watchdog) RemainingTime() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != StateArmed {
		return 0
	}
	remaining := w.timeout - time.Since(w.armedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Restart arms the watchdog with a fresh deadline, invalidating any pending one.
func (w *Watchdog) Restart() {
	w.cbMu.Lock()
	defer w.cbMu.Unlock()

	w.mu.Lock()
	w.generation++
	gen := w.generation
	if w.timer != nil {
		w.timer.Stop()
	}
	w.state = StateArmed
	w.armedAt = time.Now()
	w.timer = time.AfterFunc(w.timeout, func() {
		w.fire(gen)
	})
	w.mu.Unlock()

	w.notify(EventStarted)
}

// Cancel disarms the watchdog. Cancelling an idle or fired watchdog only
// invalidates pending deadlines and delivers no event.
func (w *Watchdog) Cancel() {
	w.cbMu.Lock()
	defer w.cbMu.Unlock()

	w.mu.Lock()
	w.generation++
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	wasArmed := w.state == StateArmed
	if wasArmed {
		w.state = StateIdle
	}
	w.mu.Unlock()

	if wasArmed {
		w.notify(EventCancelled)
	}
}

// fire is called by the timer when the deadline of generation gen elapses.
func (w *Watchdog) fire(gen uint64) {
	w.cbMu.Lock()
	defer w.cbMu.Unlock()

	w.mu.Lock()
	if gen != w.generation || w.state != StateArmed {
		w.mu.Unlock()
		return
	}
	w.state = StateFired
	w.timer = nil
	w.mu.Unlock()

	w.notify(EventTimedOut)
}

func (w *Watchdog) notify(event Event) {
	if w.callback != nil {
		w.callback(event)
	}
}
