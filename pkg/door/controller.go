package door

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/farmhub/farmhub-go/pkg/command"
	"github.com/farmhub/farmhub-go/pkg/concurrent"
	"github.com/farmhub/farmhub-go/pkg/light"
	eventlog "github.com/farmhub/farmhub-go/pkg/log"
	"github.com/farmhub/farmhub-go/pkg/motor"
	"github.com/farmhub/farmhub-go/pkg/mqtt"
	"github.com/farmhub/farmhub-go/pkg/task"
	"github.com/farmhub/farmhub-go/pkg/watchdog"
)

// Defaults.
const (
	DefaultOpenLevel        = 250.0
	DefaultCloseLevel       = 10.0
	DefaultMovementTimeout  = time.Minute
	DefaultOverrideDuration = time.Hour
)

// TimeFormat is the layout of overrideEnd in telemetry.
const TimeFormat = "2006-01-02T15:04:05Z"

const updateTimeout = 5 * time.Second

// ErrUpdateRejected is returned when the door loop does not accept an
// override in time.
var ErrUpdateRejected = errors.New("door update rejected")

// Switch is a limit switch.
type Switch interface {
	IsEngaged() bool
}

// Config holds the light thresholds. It can change at runtime.
type Config struct {
	OpenLevel  float64 `yaml:"openLevel"`
	CloseLevel float64 `yaml:"closeLevel"`
}

// DefaultConfig returns the default thresholds.
func DefaultConfig() Config {
	return Config{OpenLevel: DefaultOpenLevel, CloseLevel: DefaultCloseLevel}
}

// Validate checks that the close level is below the open level.
func (c Config) Validate() error {
	if c.CloseLevel >= c.OpenLevel {
		return fmt.Errorf("close level %g must be below open level %g", c.CloseLevel, c.OpenLevel)
	}
	return nil
}

// Options configures a Controller.
type Options struct {
	// Root is where events, telemetry and the override command live. Required.
	Root mqtt.Root

	// Journal receives state change, command and watchdog events. Optional.
	Journal eventlog.Logger

	// Logger for operational messages. Defaults to slog.Default().
	Logger *slog.Logger

	// PublishTelemetry is called when the door state or override changes.
	PublishTelemetry func()

	// Awake is called with true while the watchdog is armed and false
	// once it is not. Optional.
	Awake func(keep bool)

	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

type message interface {
	isMessage()
}

type stateChanged struct{}

type overrideRequested struct {
	state State
	until time.Time
}

type watchdogFired struct{}

func (stateChanged) isMessage()      {}
func (overrideRequested) isMessage() {}
func (watchdogFired) isMessage()     {}

// Controller runs the door automation.
type Controller struct {
	name   string
	motor  motor.Driver
	light  light.Sensor
	open   Switch
	closed Switch

	root             mqtt.Root
	journal          eventlog.Logger
	logger           *slog.Logger
	publishTelemetry func()
	awake            func(bool)
	now              func() time.Time

	watchdog *watchdog.Watchdog
	timedOut atomic.Bool
	awakeOn  atomic.Bool

	// mu guards the fields below.
	mu              concurrent.Mutex
	lastState       State
	lastTargetState State
	overrideState   State
	overrideUntil   time.Time
	config          Config
	operation       OperationState

	updates *concurrent.Queue[message]
	loop    *task.Handle
}

// NewController stops the motor, registers the override command and starts
// the door loop.
func NewController(name string, m motor.Driver, sensor light.Sensor, openSwitch, closedSwitch Switch, movementTimeout time.Duration, opts Options) (*Controller, error) {
	if opts.Root == nil {
		return nil, fmt.Errorf("door %s: no MQTT root", name)
	}
	if movementTimeout <= 0 {
		movementTimeout = DefaultMovementTimeout
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

	c := &Controller{
		name:             name,
		motor:            m,
		light:            sensor,
		open:             openSwitch,
		closed:           closedSwitch,
		root:             opts.Root,
		journal:          eventlog.OrNoop(opts.Journal),
		logger:           opts.Logger.With(slog.String("door", name)),
		publishTelemetry: opts.PublishTelemetry,
		awake:            opts.Awake,
		now:              opts.Now,
		lastState:        StateInitialized,
		lastTargetState:  StateInitialized,
		config:           DefaultConfig(),
		updates:          concurrent.NewQueue[message](name+":updates", 2),
	}
	c.watchdog = watchdog.New(name+":watchdog", movementTimeout, c.handleWatchdogEvent)

	c.logger.Info("Initializing chicken door", slog.Duration("movementTimeout", movementTimeout))
	m.Stop()

	if err := c.root.RegisterCommand(c.overrideCommand()); err != nil {
		return nil, fmt.Errorf("door %s: %w", name, err)
	}

	c.loop = task.Run(name, 4096, 2, func(t *task.Task) {
		for c.OperationState() == OperationRunning && !t.Stopped() {
			c.runLoop()
		}
		c.logger.Info("Door automation stopped",
			slog.String("operationState", c.OperationState().String()))
	})
	return c, nil
}

// Name returns the door name.
func (c *Controller) Name() string {
	return c.name
}

// Configure replaces the light thresholds.
func (c *Controller) Configure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	c.mu.Locked(func() {
		c.config = cfg
	})
	c.logger.Info("Configured chicken door",
		slog.Float64("closeLevel", cfg.CloseLevel),
		slog.Float64("openLevel", cfg.OpenLevel))
	c.NotifyStateChanged()
	return nil
}

// NotifyStateChanged asks the loop to re-evaluate, typically after a
// switch changed.
func (c *Controller) NotifyStateChanged() {
	c.updates.Offer(stateChanged{})
}

// Override forces the door into state until the given time.
// StateUnknown clears any active override.
func (c *Controller) Override(state State, until time.Time) error {
	if state == StateUnknown {
		until = time.Time{}
	}
	if !c.updates.OfferIn(updateTimeout, overrideRequested{state: state, until: until}) {
		return ErrUpdateRejected
	}
	return nil
}

// OperationState returns whether the automation is still running.
func (c *Controller) OperationState() OperationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.operation
}

// LastState returns the state reached in the last evaluation.
func (c *Controller) LastState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastState
}

// Done is closed when the door loop has ended.
func (c *Controller) Done() <-chan struct{} {
	return c.loop.Done()
}

// Stop ends the door loop, disarms the watchdog and stops the motor.
func (c *Controller) Stop() {
	c.loop.Stop()
	c.updates.Offer(stateChanged{})
	c.loop.Wait()
	c.watchdog.Cancel()
	c.motor.Stop()
}

// DetermineCurrentState reads the limit switches.
func (c *Controller) DetermineCurrentState() State {
	state, _ := c.determineCurrentState()
	return state
}

// determineCurrentState also reports whether the switches contradict
// each other.
func (c *Controller) determineCurrentState() (State, bool) {
	open := c.open.IsEngaged()
	closed := c.closed.IsEngaged()
	switch {
	case open && closed:
		c.logger.Error("Both open and close switches are engaged")
		c.journal.Log(eventlog.Event{
			Timestamp: c.now(),
			Component: c.name,
			Category:  eventlog.CategoryError,
			Error: &eventlog.ErrorEventData{
				Message: "both open and close switches are engaged",
				Context: "determine current state",
			},
		})
		return StateUnknown, true
	case open:
		return StateOpen, false
	case closed:
		return StateClosed, false
	default:
		return StateUnknown, false
	}
}

// DetermineTargetState decides where the door should be. An active
// override wins; otherwise the light level decides, holding the current
// state between the thresholds and falling back to closed when the current
// state is unknown.
func (c *Controller) DetermineTargetState(current State) State {
	now := c.now()

	c.mu.Lock()
	if !c.overrideUntil.IsZero() && !c.overrideUntil.Before(now) {
		target := c.overrideState
		c.mu.Unlock()
		return target
	}
	if c.overrideState != StateUnknown {
		c.logger.Info("Override expired, returning to scheduled state")
		c.overrideState = StateUnknown
		c.overrideUntil = time.Time{}
	}
	cfg := c.config
	c.mu.Unlock()

	level := c.light.CurrentLevel()
	switch {
	case level >= cfg.OpenLevel:
		return StateOpen
	case level <= cfg.CloseLevel:
		return StateClosed
	case current == StateUnknown:
		return StateClosed
	default:
		return current
	}
}

func (c *Controller) runLoop() {
	current, contradiction := c.determineCurrentState()
	target := c.DetermineTargetState(current)
	var last, lastTarget State
	c.mu.Locked(func() {
		last = c.lastState
		lastTarget = c.lastTargetState
	})

	// Lost switch signal at the place we were: assume we are still there.
	if current == StateUnknown && !contradiction && target == last {
		current = last
	}

	switch {
	case contradiction:
		// Leave the motor alone until the switches agree again.
	case current != target:
		// Arm on every new divergence, including leaving a reached state.
		if current != last || target != lastTarget {
			c.logger.Debug("Going from state",
				slog.String("from", current.String()),
				slog.String("to", target.String()),
				slog.Float64("light", c.light.CurrentLevel()))
			c.watchdog.Restart()
		}
		switch target {
		case StateOpen:
			c.motor.Drive(motor.Forward, 1)
		case StateClosed:
			c.motor.Drive(motor.Reverse, 1)
		default:
			c.motor.Stop()
		}
	case current != last:
		c.logger.Debug("Reached state",
			slog.String("state", current.String()),
			slog.Float64("light", c.light.CurrentLevel()))
		c.watchdog.Cancel()
		c.motor.Stop()
		if err := c.root.Publish("events/state", map[string]any{"state": int(current)}); err != nil {
			c.logger.Warn("Failed to publish state event", slog.Any("error", err))
		}
		c.journal.Log(eventlog.Event{
			Timestamp: c.now(),
			Component: c.name,
			Category:  eventlog.CategoryState,
			StateChange: &eventlog.StateChangeEvent{
				Entity:   eventlog.StateEntityDoor,
				OldState: last.String(),
				NewState: current.String(),
			},
		})
	}

	changed := false
	c.mu.Locked(func() {
		if c.lastState != current || c.lastTargetState != target {
			c.lastState = current
			c.lastTargetState = target
			changed = true
		}
	})
	if changed {
		c.publishTelemetry()
	}

	c.updates.PollIn(c.waitTime(), c.handle)
	if c.timedOut.Load() {
		c.stopOnTimeout()
	}
}

// waitTime is the time until the override expires or the light sensor
// delivers a new reading, whichever is sooner.
func (c *Controller) waitTime() time.Duration {
	wait := c.light.MeasurementFrequency()
	c.mu.Lock()
	until := c.overrideUntil
	c.mu.Unlock()
	if remaining := until.Sub(c.now()); !until.IsZero() && remaining >= 0 && remaining < wait {
		wait = remaining
	}
	return wait
}

func (c *Controller) handle(msg message) {
	switch msg := msg.(type) {
	case stateChanged:
	case overrideRequested:
		c.logger.Info("Override received",
			slog.String("state", msg.state.String()),
			slog.Duration("duration", msg.until.Sub(c.now()).Truncate(time.Second)))
		c.mu.Locked(func() {
			c.overrideState = msg.state
			c.overrideUntil = msg.until
		})
		c.publishTelemetry()
	case watchdogFired:
		c.stopOnTimeout()
	}
}

func (c *Controller) stopOnTimeout() {
	stopped := false
	c.mu.Locked(func() {
		if c.operation == OperationRunning {
			c.operation = OperationWatchdogTimeout
			stopped = true
		}
	})
	if !stopped {
		return
	}
	c.logger.Error("Watchdog timeout, stopping operation")
	c.motor.Stop()
	c.publishTelemetry()
}

func (c *Controller) handleWatchdogEvent(event watchdog.Event) {
	c.journal.Log(eventlog.Event{
		Timestamp: c.now(),
		Component: c.name,
		Category:  eventlog.CategoryWatchdog,
		Watchdog: &eventlog.WatchdogEvent{
			Name:    c.watchdog.Name(),
			Event:   event.String(),
			Timeout: c.watchdog.Timeout(),
		},
	})
	switch event {
	case watchdog.EventStarted:
		c.logger.Info("Watchdog started")
		if !c.awakeOn.Swap(true) {
			c.awake(true)
		}
	case watchdog.EventCancelled:
		c.logger.Info("Watchdog cancelled")
		if c.awakeOn.Swap(false) {
			c.awake(false)
		}
	case watchdog.EventTimedOut:
		c.logger.Error("Watchdog timed out")
		if c.awakeOn.Swap(false) {
			c.awake(false)
		}
		c.timedOut.Store(true)
		c.updates.Offer(watchdogFired{})
	}
}

// PopulateTelemetry adds the door state and any active override.
func (c *Controller) PopulateTelemetry(telemetry map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	telemetry["state"] = int(c.lastState)
	telemetry["targetState"] = int(c.lastTargetState)
	telemetry["operationState"] = int(c.operation)
	if c.overrideState != StateUnknown {
		telemetry["overrideEnd"] = c.overrideUntil.UTC().Format(TimeFormat)
		telemetry["overrideState"] = int(c.overrideState)
	}
}

func (c *Controller) overrideCommand() *command.Command {
	return command.New(&command.Metadata{
		Name:        "override",
		Description: "Force the door open or closed for a while",
		Parameters: []command.ParameterMetadata{
			{Name: "state", Type: command.DataTypeInt, Required: true, Description: "1 = open, -1 = closed, 0 = clear override"},
			{Name: "duration", Type: command.DataTypeSeconds, Description: "defaults to one hour"},
		},
		Response: []command.ParameterMetadata{
			{Name: "overrideState", Type: command.DataTypeInt},
			{Name: "duration", Type: command.DataTypeSeconds},
		},
	}, c.handleOverride)
}

func (c *Controller) handleOverride(_ context.Context, params map[string]any) (map[string]any, error) {
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

func (c *Controller) override(params map[string]any) (map[string]any, error) {
	value, _, err := command.Int(params, "state")
	if err != nil {
		return nil, err
	}
	state, err := ParseState(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", command.ErrInvalidParameters, err)
	}

	response := map[string]any{}
	if state == StateUnknown {
		err = c.Override(StateUnknown, time.Time{})
	} else {
		duration, ok, derr := command.Seconds(params, "duration")
		if derr != nil {
			return nil, derr
		}
		if !ok {
			duration = DefaultOverrideDuration
		}
		err = c.Override(state, c.now().Add(duration))
		response["duration"] = int64(duration / time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", command.ErrCommandFailed, err)
	}
	response["overrideState"] = int(state)
	return response, nil
}
