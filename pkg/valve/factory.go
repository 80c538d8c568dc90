package valve

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/farmhub/farmhub-go/pkg/config"
	"github.com/farmhub/farmhub-go/pkg/device"
	"github.com/farmhub/farmhub-go/pkg/motor"
)

// FactoryType is the peripheral type handled by Factory.
const FactoryType = "valve"

// Params are the construction-time settings of a valve.
type Params struct {
	Motor    string `yaml:"motor"`
	Strategy string `yaml:"strategy"`

	// Duty is the hold (or latching switch) duty in percent.
	Duty           float64       `yaml:"duty"`
	SwitchDuration time.Duration `yaml:"switchDuration"`
}

// Config is the live configuration of a valve.
type Config struct {
	Schedule []Schedule `yaml:"schedule"`
}

// Factory creates valves. DefaultStrategy applies when params name none.
type Factory struct {
	DefaultStrategy StrategyType
}

// Type implements device.Factory.
func (f Factory) Type() string {
	return FactoryType
}

// Create implements device.Factory.
func (f Factory) Create(env device.Env, node *yaml.Node) (device.Peripheral, error) {
	params := Params{Duty: 100, SwitchDuration: DefaultSwitchDuration}
	if err := config.Decode(node, &params); err != nil {
		return nil, err
	}

	drv, err := motor.Find(env.Services.Motors, params.Motor)
	if err != nil {
		return nil, err
	}

	strategyType := f.DefaultStrategy
	if params.Strategy != "" {
		if strategyType, err = ParseStrategyType(params.Strategy); err != nil {
			return nil, err
		}
	}
	strategy, err := NewStrategy(strategyType, params.SwitchDuration, params.Duty/100)
	if err != nil {
		return nil, fmt.Errorf("failed to create strategy: %w", err)
	}

	var store Store
	if env.Services.Store != nil {
		store = env.Services.Store
	}
	c, err := NewComponent(env.Name, drv, strategy, Options{
		Root:             env.Root,
		Store:            store,
		Journal:          env.Services.Journal,
		Logger:           env.Logger(),
		PublishTelemetry: env.PublishTelemetry,
		Awake:            env.Services.Awake,
	})
	if err != nil {
		return nil, err
	}
	return &Valve{component: c}, nil
}

// Valve is the valve peripheral.
type Valve struct {
	component *Component
}

// Component returns the valve component.
func (v *Valve) Component() *Component {
	return v.component
}

// Name implements device.Peripheral.
func (v *Valve) Name() string {
	return v.component.Name()
}

// Configure replaces the schedules.
func (v *Valve) Configure(node *yaml.Node) error {
	var cfg Config
	if err := config.Decode(node, &cfg); err != nil {
		return err
	}
	return v.component.SetSchedules(cfg.Schedule)
}

// PopulateTelemetry implements device.Peripheral.
func (v *Valve) PopulateTelemetry(telemetry map[string]any) {
	v.component.PopulateTelemetry(telemetry)
}

// Shutdown stops the valve loop and closes the valve.
func (v *Valve) Shutdown() {
	v.component.Stop()
	v.component.CloseBeforeShutdown()
}

var _ device.Peripheral = (*Valve)(nil)
var _ device.Factory = Factory{}
