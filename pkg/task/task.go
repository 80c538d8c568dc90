package task

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"
)

// Priority is the advisory scheduling priority of a task.
type Priority uint8

// DefaultPriority is used by components that do not need a specific priority.
const DefaultPriority Priority = 1

// ErrInvalidTask is the panic value (wrapped) when a task cannot be created.
var ErrInvalidTask = errors.New("invalid task")

// Func is the body of a task.
type Func func(t *Task)

// RunResult is the outcome of RunIn.
type RunResult uint8

const (
	// ResultOK means the body finished before the timeout.
	ResultOK RunResult = iota
	// ResultTimeout means the timeout elapsed first and the task was stopped.
	ResultTimeout
)

// String returns a human-readable result name.
func (r RunResult) String() string {
	switch r {
	case ResultOK:
		return "OK"
	case ResultTimeout:
		return "TIMEOUT"
	default:
		return "UNKNOWN"
	}
}

// Handle refers to a started task.
type Handle struct {
	name      string
	stackSize uint32
	priority  Priority

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// Name returns the task name.
func (h *Handle) Name() string {
	return h.name
}

// StackSize returns the configured stack budget in bytes.
func (h *Handle) StackSize() uint32 {
	return h.stackSize
}

// Priority returns the configured priority.
func (h *Handle) Priority() Priority {
	return h.priority
}

// Stop asks the task to finish. Pending delays return immediately.
// It is safe to call Stop multiple times.
func (h *Handle) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
}

// Done is closed when the task body has returned.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the task body has returned.
func (h *Handle) Wait() {
	<-h.done
}

// Task is passed to the body of a running task.
type Task struct {
	name     string
	lastWake time.Time
	stop     <-chan struct{}
}

// Name returns the task name.
func (t *Task) Name() string {
	return t.name
}

// Stopped reports whether the task has been asked to stop.
func (t *Task) Stopped() bool {
	select {
	case <-t.stop:
		return true
	default:
		return false
	}
}

// StopRequested returns a channel closed when the task is asked to stop.
func (t *Task) StopRequested() <-chan struct{} {
	return t.stop
}

// Delay sleeps for d, or until the task is stopped.
// Returns false if the delay was interrupted.
func (t *Task) Delay(d time.Duration) bool {
	if d <= 0 {
		runtime.Gosched()
		return !t.Stopped()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-t.stop:
		return false
	}
}

// DelayUntil sleeps until period has elapsed since the previous wake time.
// Returns false if the deadline was already missed (the cadence restarts from
// now) or if the delay was interrupted by Stop.
func (t *Task) DelayUntil(period time.Duration) bool {
	next := t.lastWake.Add(period)
	now := time.Now()
	if !next.After(now) {
		slog.Debug("Task missed deadline",
			slog.String("task", t.name),
			slog.Duration("late", now.Sub(next)))
		t.lastWake = now
		runtime.Gosched()
		return false
	}
	t.lastWake = next
	return t.Delay(next.Sub(now))
}

// TicksUntil returns how long until period has elapsed since the previous
// wake time, or zero if it already has.
func (t *Task) TicksUntil(period time.Duration) time.Duration {
	remaining := period - time.Since(t.lastWake)
	if remaining <= 0 {
		return 0
	}
	return remaining
}

// Yield lets other goroutines run.
func (t *Task) Yield() {
	runtime.Gosched()
}

// Run starts fn as a one-shot task and returns immediately.
//
// A nil body or a zero stack budget is a programming error and panics with
// ErrInvalidTask.
func Run(name string, stackSize uint32, priority Priority, fn Func) *Handle {
	h := create(name, stackSize, priority, fn)
	go h.execute(fn)
	return h
}

// Loop starts a task that calls fn repeatedly until the task is stopped.
// The body is expected to pace itself with Delay or DelayUntil.
func Loop(name string, stackSize uint32, priority Priority, fn Func) *Handle {
	if fn == nil {
		panic(fmt.Errorf("%w: task %q has no body", ErrInvalidTask, name))
	}
	return Run(name, stackSize, priority, func(t *Task) {
		for !t.Stopped() {
			fn(t)
		}
	})
}

// RunIn runs fn as a task and waits at most timeout for it to finish.
// On timeout the task is stopped and ResultTimeout is returned.
func RunIn(name string, timeout time.Duration, stackSize uint32, priority Priority, fn Func) RunResult {
	h := Run(name, stackSize, priority, fn)
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-h.done:
		return ResultOK
	case <-timer.C:
		h.Stop()
		slog.Debug("Task timed out", slog.String("task", name))
		return ResultTimeout
	}
}

func create(name string, stackSize uint32, priority Priority, fn Func) *Handle {
	if fn == nil {
		panic(fmt.Errorf("%w: task %q has no body", ErrInvalidTask, name))
	}
	if stackSize == 0 {
		panic(fmt.Errorf("%w: task %q has no stack budget", ErrInvalidTask, name))
	}
	slog.Debug("Creating task",
		slog.String("task", name),
		slog.Int("priority", int(priority)),
		slog.Int("stack", int(stackSize)))
	return &Handle{
		name:      name,
		stackSize: stackSize,
		priority:  priority,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

func (h *Handle) execute(fn Func) {
	defer close(h.done)
	t := &Task{
		name:     h.name,
		lastWake: time.Now(),
		stop:     h.stop,
	}
	fn(t)
	slog.Debug("Finished task", slog.String("task", h.name))
}
