package door

import (
	"fmt"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/farmhub/farmhub-go/pkg/config"
	"github.com/farmhub/farmhub-go/pkg/device"
	"github.com/farmhub/farmhub-go/pkg/light"
	"github.com/farmhub/farmhub-go/pkg/motor"
	"github.com/farmhub/farmhub-go/pkg/switches"
)

// FactoryType is the peripheral type handled by Factory.
const FactoryType = "chicken-door"

// Params are the construction-time settings of a door.
type Params struct {
	Motor           string        `yaml:"motor"`
	OpenPin         string        `yaml:"openPin"`
	ClosedPin       string        `yaml:"closedPin"`
	SwitchMode      string        `yaml:"switchMode"`
	MovementTimeout time.Duration `yaml:"movementTimeout"`
	LightSensor     light.Config  `yaml:"lightSensor"`
}

// Factory creates chicken doors.
type Factory struct{}

// Type implements device.Factory.
func (Factory) Type() string {
	return FactoryType
}

// Create implements device.Factory.
func (Factory) Create(env device.Env, node *yaml.Node) (device.Peripheral, error) {
	var params Params
	if err := config.Decode(node, &params); err != nil {
		return nil, err
	}
	if params.MovementTimeout <= 0 {
		params.MovementTimeout = DefaultMovementTimeout
	}
	if params.OpenPin == "" || params.ClosedPin == "" {
		return nil, fmt.Errorf("both openPin and closedPin are required")
	}
	mode, err := switches.ParseMode(params.SwitchMode)
	if err != nil {
		return nil, err
	}
	if env.Services.Switches == nil {
		return nil, fmt.Errorf("%w: switches", device.ErrMissingService)
	}

	drv, err := motor.Find(env.Services.Motors, params.Motor)
	if err != nil {
		return nil, err
	}

	sensorConfig := params.LightSensor.WithDefaults()
	reader, err := light.NewReader(sensorConfig.Type, env.Services.Lux)
	if err != nil {
		return nil, err
	}

	logger := env.Logger()

	// Switch handlers may fire before the controller exists.
	var ctrl atomic.Pointer[Controller]
	notify := func() {
		if c := ctrl.Load(); c != nil {
			c.NotifyStateChanged()
		}
	}
	sw := env.Services.Switches
	openSwitch, err := sw.Register(env.Name+":open", params.OpenPin, mode,
		func(*switches.Switch) { notify() },
		func(*switches.Switch, time.Duration) { notify() })
	if err != nil {
		return nil, err
	}
	closedSwitch, err := sw.Register(env.Name+":closed", params.ClosedPin, mode,
		func(*switches.Switch) { notify() },
		func(*switches.Switch, time.Duration) { notify() })
	if err != nil {
		sw.Unregister(openSwitch.Name())
		return nil, err
	}

	sensor := light.NewComponent(env.Name+":light", reader,
		sensorConfig.MeasurementFrequency, sensorConfig.LatencyInterval, logger)

	c, err := NewController(env.Name, drv, sensor, openSwitch, closedSwitch, params.MovementTimeout, Options{
		Root:             env.Root,
		Journal:          env.Services.Journal,
		Logger:           logger,
		PublishTelemetry: env.PublishTelemetry,
		Awake:            env.Services.Awake,
	})
	if err != nil {
		sensor.Stop()
		sw.Unregister(openSwitch.Name())
		sw.Unregister(closedSwitch.Name())
		return nil, err
	}
	ctrl.Store(c)

	return &Door{
		controller:  c,
		sensor:      sensor,
		switches:    sw,
		switchNames: []string{openSwitch.Name(), closedSwitch.Name()},
	}, nil
}

// Door is the chicken door peripheral: a controller and its light sensor.
type Door struct {
	controller  *Controller
	sensor      *light.Component
	switches    *switches.Manager
	switchNames []string
}

// Controller returns the door controller.
func (d *Door) Controller() *Controller {
	return d.controller
}

// Name implements device.Peripheral.
func (d *Door) Name() string {
	return d.controller.Name()
}

// Configure decodes the light thresholds, falling back to defaults.
func (d *Door) Configure(node *yaml.Node) error {
	cfg := DefaultConfig()
	if err := config.Decode(node, &cfg); err != nil {
		return err
	}
	return d.controller.Configure(cfg)
}

// PopulateTelemetry reports the light level and the door state.
func (d *Door) PopulateTelemetry(telemetry map[string]any) {
	d.sensor.PopulateTelemetry(telemetry)
	d.controller.PopulateTelemetry(telemetry)
}

// Shutdown stops the door and the light sensor and releases the limit
// switches.
func (d *Door) Shutdown() {
	d.controller.Stop()
	d.sensor.Stop()
	for _, name := range d.switchNames {
		d.switches.Unregister(name)
	}
}

var _ device.Peripheral = (*Door)(nil)
var _ device.Factory = Factory{}
