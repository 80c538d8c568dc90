package valve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/farmhub/farmhub-go/pkg/command"
	"github.com/farmhub/farmhub-go/pkg/concurrent"
	eventlog "github.com/farmhub/farmhub-go/pkg/log"
	"github.com/farmhub/farmhub-go/pkg/motor"
	"github.com/farmhub/farmhub-go/pkg/mqtt"
	"github.com/farmhub/farmhub-go/pkg/task"
)

// DefaultOverrideDuration applies when an override request has no duration.
const DefaultOverrideDuration = time.Hour

// TimeFormat is the layout of overrideEnd in telemetry.
const TimeFormat = "2006-01-02T15:04:05Z"

// updateTimeout bounds how long a caller waits for the valve loop to accept
// an override or schedule change.
const updateTimeout = 5 * time.Second

// ErrUpdateRejected is returned when the valve loop does not accept an update in time.
var ErrUpdateRejected = errors.New("valve update rejected")

// Store persists the last reached state of a valve.
type Store interface {
	LoadValveState(name string) (int, bool, error)
	SaveValveState(name string, state int) error
}

// Options configures a Component.
type Options struct {
	// Root is where events, telemetry and the override command live. Required.
	Root mqtt.Root

	// Store persists reached states. Optional.
	Store Store

	// Journal receives state change and command events. Optional.
	Journal eventlog.Logger

	// Logger for operational messages. Defaults to slog.Default().
	Logger *slog.Logger

	// PublishTelemetry is called after every move and on the first
	// observation of the valve state. Optional.
	PublishTelemetry func()

	// Awake is called with true before and false after each move. Optional.
	Awake func(keep bool)

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

type update interface {
	isUpdate()
}

type overrideSpec struct {
	state State
	until time.Time
}

type scheduleSpec struct {
	schedules []Schedule
}

type wakeSpec struct{}

func (overrideSpec) isUpdate() {}
func (scheduleSpec) isUpdate() {}
func (wakeSpec) isUpdate()     {}

// Component keeps a valve in the state demanded by its schedules or override.
type Component struct {
	name     string
	motor    motor.Driver
	strategy Strategy

	root             mqtt.Root
	store            Store
	journal          eventlog.Logger
	logger           *slog.Logger
	publishTelemetry func()
	awake            func(bool)
	now              func() time.Time

	// moveMu serializes strategy calls.
	moveMu concurrent.Mutex

	// mu guards the fields below.
	mu            concurrent.Mutex
	state         State
	observed      bool
	overrideState State
	overrideUntil time.Time

	// schedules is owned by the loop.
	schedules []Schedule
	updates   *concurrent.Queue[update]
	loop      *task.Handle
}

// NewComponent stops the motor, settles the valve in the strategy's default
// state, registers the override command and starts the valve loop.
func NewComponent(name string, m motor.Driver, strategy Strategy, opts Options) (*Component, error) {
	if opts.Root == nil {
		return nil, fmt.Errorf("valve %s: no MQTT root", name)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PublishTelemetry == nil {
		opts.PublishTelemetry = func() {}
	}
	if opts.Awake == nil {
		opts.Awake = func(bool) {}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Component{
		name:             name,
		motor:            m,
		strategy:         strategy,
		root:             opts.Root,
		store:            opts.Store,
		journal:          eventlog.OrNoop(opts.Journal),
		logger:           opts.Logger.With(slog.String("valve", name)),
		publishTelemetry: opts.PublishTelemetry,
		awake:            opts.Awake,
		now:              opts.Now,
		updates:          concurrent.NewQueue[update](name+":updates", 1),
	}

	c.logger.Info("Creating valve", slog.String("strategy", strategy.Describe()))
	m.Stop()

	switch def := strategy.DefaultState(); def {
	case StateOpen:
		c.logger.Info("Assuming valve is open by default")
		strategy.Open(m)
		c.state = def
	case StateClosed:
		c.logger.Info("Assuming valve is closed by default")
		strategy.Close(m)
		c.state = def
	default:
		c.restoreState()
	}

	if err := c.root.RegisterCommand(c.overrideCommand()); err != nil {
		return nil, fmt.Errorf("valve %s: %w", name, err)
	}

	c.loop = task.Loop(name, 3072, task.DefaultPriority, c.runLoop)
	return c, nil
}

func (c *Component) restoreState() {
	if c.store == nil {
		return
	}
	stored, ok, err := c.store.LoadValveState(c.name)
	if err != nil {
		c.logger.Error("Failed to load stored state", slog.Any("error", err))
		return
	}
	if !ok {
		c.logger.Info("No stored state")
		return
	}
	restored, err := ParseState(stored)
	if err != nil {
		c.logger.Warn("Ignoring stored state", slog.Any("error", err))
		return
	}
	c.state = restored
	c.logger.Info("Restored state", slog.String("state", restored.String()))
}

// Name returns the valve name.
func (c *Component) Name() string {
	return c.name
}

// State returns the last reached state.
func (c *Component) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Override forces the valve into state until the given time. StateUnknown
// clears any active override.
func (c *Component) Override(state State, until time.Time) error {
	if state == StateUnknown {
		c.logger.Info("Clearing override")
		until = time.Time{}
	} else {
		c.logger.Info("Overriding valve",
			slog.String("state", state.String()),
			slog.Time("until", until))
	}
	return c.enqueue(overrideSpec{state: state, until: until})
}

// SetSchedules replaces the schedules of the valve.
func (c *Component) SetSchedules(schedules []Schedule) error {
	for i, s := range schedules {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("schedule %d: %w", i, err)
		}
	}
	c.logger.Debug("Setting schedules", slog.Int("count", len(schedules)))
	return c.enqueue(scheduleSpec{schedules: append([]Schedule(nil), schedules...)})
}

func (c *Component) enqueue(u update) error {
	if !c.updates.OfferIn(updateTimeout, u) {
		return ErrUpdateRejected
	}
	return nil
}

// SetState moves the valve to target. Calls for the state the valve is
// already in do not drive the motor.
func (c *Component) SetState(target State) {
	c.transitionTo(target, "manual")
}

// CloseBeforeShutdown closes the valve regardless of its schedules.
func (c *Component) CloseBeforeShutdown() {
	c.moveMu.Lock()
	defer c.moveMu.Unlock()

	c.logger.Info("Shutting down valve, closing it")
	c.close()
}

// Stop ends the valve loop.
func (c *Component) Stop() {
	c.loop.Stop()
	c.updates.Offer(wakeSpec{})
	c.loop.Wait()
}

// PopulateTelemetry adds the valve state and any active override.
func (c *Component) PopulateTelemetry(telemetry map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	telemetry["state"] = int(c.state)
	if !c.overrideUntil.IsZero() {
		telemetry["overrideEnd"] = c.overrideUntil.UTC().Format(TimeFormat)
		telemetry["overrideState"] = int(c.overrideState)
	}
}

func (c *Component) runLoop(t *task.Task) {
	now := c.now()

	var next StateUpdate
	if state, until, ok := c.activeOverride(now); ok {
		next = StateUpdate{State: state, ValidFor: until.Sub(now)}
		c.logger.Debug("Override active",
			slog.String("state", state.String()),
			slog.Duration("validFor", next.ValidFor))
		c.transitionTo(next.State, "override")
	} else {
		next = GetStateUpdate(c.schedules, now, c.strategy.DefaultState())
		c.logger.Debug("Scheduled state",
			slog.String("state", next.State.String()),
			slog.Duration("validFor", next.ValidFor))
		c.transitionTo(next.State, "schedule")
	}

	if t.Stopped() {
		return
	}
	c.updates.PollIn(next.ValidFor, c.apply)
}

// activeOverride returns the override in effect at now, clearing it once
// it has expired.
func (c *Component) activeOverride(now time.Time) (State, time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.overrideState == StateUnknown {
		return StateUnknown, time.Time{}, false
	}
	if now.After(c.overrideUntil) {
		c.logger.Debug("Override expired")
		c.overrideState = StateUnknown
		c.overrideUntil = time.Time{}
		return StateUnknown, time.Time{}, false
	}
	return c.overrideState, c.overrideUntil, true
}

func (c *Component) apply(u update) {
	switch u := u.(type) {
	case overrideSpec:
		c.mu.Lock()
		c.overrideState = u.state
		c.overrideUntil = u.until
		c.mu.Unlock()
	case scheduleSpec:
		c.schedules = u.schedules
	case wakeSpec:
	}
}

func (c *Component) transitionTo(target State, reason string) {
	c.moveMu.Lock()
	defer c.moveMu.Unlock()

	previous := c.State()
	if previous == target {
		c.observe()
		return
	}

	switch target {
	case StateOpen:
		c.open()
	case StateClosed:
		c.close()
	default:
		return
	}

	if err := c.root.Publish("events/state", map[string]any{"state": int(target)}); err != nil {
		c.logger.Warn("Failed to publish state event", slog.Any("error", err))
	}
	c.journal.Log(eventlog.Event{
		Timestamp: c.now(),
		Component: c.name,
		Category:  eventlog.CategoryState,
		StateChange: &eventlog.StateChangeEvent{
			Entity:   eventlog.StateEntityValve,
			OldState: previous.String(),
			NewState: target.String(),
			Reason:   reason,
		},
	})
	c.publishTelemetry()
}

// observe publishes telemetry the first time the state is looked at.
func (c *Component) observe() {
	c.mu.Lock()
	first := !c.observed
	c.observed = true
	c.mu.Unlock()

	if first {
		c.publishTelemetry()
	}
}

func (c *Component) open() {
	c.logger.Info("Opening valve")
	c.awake(true)
	defer c.awake(false)
	c.strategy.Open(c.motor)
	c.setState(StateOpen)
}

func (c *Component) close() {
	c.logger.Info("Closing valve")
	c.awake(true)
	defer c.awake(false)
	c.strategy.Close(c.motor)
	c.setState(StateClosed)
}

func (c *Component) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.observed = true
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.SaveValveState(c.name, int(state)); err != nil {
		c.logger.Error("Failed to store state",
			slog.String("state", state.String()),
			slog.Any("error", err))
	}
}

func (c *Component) overrideCommand() *command.Command {
	return command.New(&command.Metadata{
		Name:        "override",
		Description: "Force the valve open or closed for a while",
		Parameters: []command.ParameterMetadata{
			{Name: "state", Type: command.DataTypeInt, Required: true, Description: "1 = open, -1 = closed, 0 = clear override"},
			{Name: "duration", Type: command.DataTypeSeconds, Description: "defaults to one hour"},
		},
		Response: []command.ParameterMetadata{
			{Name: "state", Type: command.DataTypeInt},
			{Name: "duration", Type: command.DataTypeSeconds},
		},
	}, c.handleOverride)
}

func (c *Component) handleOverride(_ context.Context, params map[string]any) (map[string]any, error) {
	response, err := c.override(params)
	event := &eventlog.CommandEvent{Name: "override", Request: params, Response: response}
	if err != nil {
		event.Error = err.Error()
	}
	c.journal.Log(eventlog.Event{
		Timestamp: c.now(),
		Component: c.name,
		Category:  eventlog.CategoryCommand,
		Command:   event,
	})
	return response, err
}

func (c *Component) override(params map[string]any) (map[string]any, error) {
	value, _, err := command.Int(params, "state")
	if err != nil {
		return nil, err
	}
	target, err := ParseState(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", command.ErrInvalidParameters, err)
	}

	response := map[string]any{}
	if target == StateUnknown {
		err = c.Override(StateUnknown, time.Time{})
	} else {
		duration, ok, derr := command.Seconds(params, "duration")
		if derr != nil {
			return nil, derr
		}
		if !ok {
			duration = DefaultOverrideDuration
		}
		err = c.Override(target, c.now().Add(duration))
		response["duration"] = int64(duration / time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", command.ErrCommandFailed, err)
	}
	response["state"] = int(c.State())
	return response, nil
}
