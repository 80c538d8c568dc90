package flow

import (
	"errors"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/farmhub/farmhub-go/pkg/config"
	"github.com/farmhub/farmhub-go/pkg/device"
	"github.com/farmhub/farmhub-go/pkg/pulse"
	"github.com/farmhub/farmhub-go/pkg/valve"
)

// Peripheral types handled by this package.
const (
	MeterFactoryType   = "flow-meter"
	ControlFactoryType = "flow-control"
)

// MeterParams are the construction-time settings of a flow meter.
type MeterParams struct {
	Pin                  string        `yaml:"pin"`
	QFactor              float64       `yaml:"qFactor"`
	MeasurementFrequency time.Duration `yaml:"measurementFrequency"`
	SampleInterval       time.Duration `yaml:"sampleInterval"`
}

// sensor is a pulse counter and the meter reading it.
type sensor struct {
	counter *pulse.Counter
	meter   *Meter
}

func newSensor(env device.Env, params MeterParams) (*sensor, error) {
	if params.Pin == "" {
		return nil, errors.New("pin is required")
	}
	if params.QFactor < 0 {
		return nil, fmt.Errorf("qFactor %g must be positive", params.QFactor)
	}
	if env.Services.Inputs == nil {
		return nil, fmt.Errorf("%w: inputs", device.ErrMissingService)
	}
	logger := env.Logger()
	counter, err := pulse.NewCounter(env.Name, env.Services.Inputs, params.Pin, params.SampleInterval, logger)
	if err != nil {
		return nil, err
	}
	meter := NewMeter(env.Name, counter, params.QFactor, params.MeasurementFrequency, MeterOptions{Logger: logger})
	return &sensor{counter: counter, meter: meter}, nil
}

func (s *sensor) stop() {
	s.meter.Stop()
	s.counter.Stop()
}

// MeterFactory creates stand-alone flow meters.
type MeterFactory struct{}

// Type implements device.Factory.
func (MeterFactory) Type() string {
	return MeterFactoryType
}

// Create implements device.Factory.
func (MeterFactory) Create(env device.Env, node *yaml.Node) (device.Peripheral, error) {
	var params MeterParams
	if err := config.Decode(node, &params); err != nil {
		return nil, err
	}
	s, err := newSensor(env, params)
	if err != nil {
		return nil, err
	}
	return &FlowMeter{name: env.Name, sensor: s}, nil
}

// FlowMeter is the flow meter peripheral.
type FlowMeter struct {
	name   string
	sensor *sensor
}

// Meter returns the meter.
func (f *FlowMeter) Meter() *Meter {
	return f.sensor.meter
}

// Name implements device.Peripheral.
func (f *FlowMeter) Name() string {
	return f.name
}

// Configure implements device.Peripheral. Flow meters have no live config.
func (f *FlowMeter) Configure(*yaml.Node) error {
	return nil
}

// PopulateTelemetry reports volume and flow rate.
func (f *FlowMeter) PopulateTelemetry(telemetry map[string]any) {
	f.sensor.meter.PopulateTelemetry(telemetry)
}

// Shutdown stops sampling.
func (f *FlowMeter) Shutdown() {
	f.sensor.stop()
}

// ControlParams are the construction-time settings of a flow control: the
// valve params under "valve" and the meter params under "flow-meter".
type ControlParams struct {
	Valve     yaml.Node   `yaml:"valve"`
	FlowMeter MeterParams `yaml:"flow-meter"`
}

// ControlFactory creates valves paired with a flow meter.
type ControlFactory struct {
	DefaultStrategy valve.StrategyType
}

// Type implements device.Factory.
func (ControlFactory) Type() string {
	return ControlFactoryType
}

// Create implements device.Factory.
func (f ControlFactory) Create(env device.Env, node *yaml.Node) (device.Peripheral, error) {
	var params ControlParams
	if err := config.Decode(node, &params); err != nil {
		return nil, err
	}
	s, err := newSensor(env, params.FlowMeter)
	if err != nil {
		return nil, fmt.Errorf("flow meter: %w", err)
	}
	v, err := valve.Factory{DefaultStrategy: f.DefaultStrategy}.Create(env, &params.Valve)
	if err != nil {
		s.stop()
		return nil, fmt.Errorf("valve: %w", err)
	}
	return &FlowControl{valve: v.(*valve.Valve), sensor: s}, nil
}

// FlowControl is a valve with a flow meter on the same line.
type FlowControl struct {
	valve  *valve.Valve
	sensor *sensor
}

// Valve returns the valve.
func (f *FlowControl) Valve() *valve.Valve {
	return f.valve
}

// Meter returns the meter.
func (f *FlowControl) Meter() *Meter {
	return f.sensor.meter
}

// Name implements device.Peripheral.
func (f *FlowControl) Name() string {
	return f.valve.Name()
}

// Configure applies the valve schedules.
func (f *FlowControl) Configure(node *yaml.Node) error {
	return f.valve.Configure(node)
}

// PopulateTelemetry reports the valve state, volume and flow rate.
func (f *FlowControl) PopulateTelemetry(telemetry map[string]any) {
	f.valve.PopulateTelemetry(telemetry)
	f.sensor.meter.PopulateTelemetry(telemetry)
}

// Shutdown closes the valve and stops the meter.
func (f *FlowControl) Shutdown() {
	f.valve.Shutdown()
	f.sensor.stop()
}

var (
	_ device.Factory    = MeterFactory{}
	_ device.Factory    = ControlFactory{}
	_ device.Peripheral = (*FlowMeter)(nil)
	_ device.Peripheral = (*FlowControl)(nil)
)
