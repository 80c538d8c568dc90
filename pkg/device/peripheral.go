package device

import (
	"errors"
	"fmt"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/farmhub/farmhub-go/pkg/light"
	eventlog "github.com/farmhub/farmhub-go/pkg/log"
	"github.com/farmhub/farmhub-go/pkg/motor"
	"github.com/farmhub/farmhub-go/pkg/mqtt"
	"github.com/farmhub/farmhub-go/pkg/persistence"
	"github.com/farmhub/farmhub-go/pkg/switches"
)

// Device errors.
var (
	ErrUnknownFactory      = errors.New("unknown peripheral factory")
	ErrDuplicateFactory    = errors.New("duplicate peripheral factory")
	ErrDuplicatePeripheral = errors.New("duplicate peripheral")
	ErrPeripheralNotFound  = errors.New("peripheral not found")
	ErrMissingService      = errors.New("required service not available")
)

// CreationError reports a peripheral that could not be created.
type CreationError struct {
	Name string
	Type string
	Err  error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("failed to create peripheral %q of type %q: %v", e.Name, e.Type, e.Err)
}

func (e *CreationError) Unwrap() error {
	return e.Err
}

// Peripheral is a device component created from configuration.
type Peripheral interface {
	// Name returns the configured peripheral name.
	Name() string

	// Configure applies the live config node. An empty node means defaults.
	Configure(node *yaml.Node) error

	// PopulateTelemetry adds the peripheral's current readings.
	PopulateTelemetry(telemetry map[string]any)

	// Shutdown brings the peripheral to a safe state and stops its tasks.
	Shutdown()
}

// Services are the shared collaborators available to factories.
type Services struct {
	Motors   []motor.Named
	Switches *switches.Manager
	Lux      light.LuxReader

	// Inputs reads digital pins directly, for sensors that switches.Manager
	// samples too slowly.
	Inputs switches.DigitalReader

	Store   *persistence.DeviceStateStore
	Journal eventlog.Logger
	Logger  *slog.Logger

	// Awake is called with true while a peripheral needs the device to stay
	// awake and false when it no longer does.
	Awake func(keep bool)
}

// Env is what a factory gets to build one peripheral.
type Env struct {
	Name string
	Type string

	// Root is the peripheral's own MQTT root.
	Root mqtt.Root

	Services Services

	// PublishTelemetry publishes the peripheral's telemetry immediately.
	PublishTelemetry func()
}

// Logger returns the services logger tagged with the peripheral name.
func (e Env) Logger() *slog.Logger {
	logger := e.Services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("peripheral", e.Name))
}

// Factory creates peripherals of one type.
type Factory interface {
	// Type is the value of the "type" key this factory handles.
	Type() string

	// Create builds a peripheral from its params node.
	Create(env Env, params *yaml.Node) (Peripheral, error)
}
