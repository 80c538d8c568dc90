package environment

import (
	"fmt"
	"log/slog"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/farmhub/farmhub-go/pkg/config"
	"github.com/farmhub/farmhub-go/pkg/device"
)

// FactoryTypePrefix starts the peripheral type of every environment sensor,
// as in "environment:sht3x".
const FactoryTypePrefix = "environment:"

// Params locate the sensor on the I2C bus.
type Params struct {
	Bus     int `yaml:"bus"`
	Address int `yaml:"address"`
}

// Factory creates environment sensors of one type. Open is nil when the
// board has no I2C bus.
type Factory struct {
	SensorType string
	Open       Opener
}

// Type implements device.Factory.
func (f Factory) Type() string {
	return FactoryTypePrefix + f.SensorType
}

// Create implements device.Factory.
func (f Factory) Create(env device.Env, node *yaml.Node) (device.Peripheral, error) {
	params := Params{Bus: -1}
	if err := config.Decode(node, &params); err != nil {
		return nil, err
	}
	if f.Open == nil {
		return nil, fmt.Errorf("%w: i2c", device.ErrMissingService)
	}
	if params.Address == 0 {
		address, err := DefaultAddress(f.SensorType)
		if err != nil {
			return nil, err
		}
		params.Address = address
	}

	logger := env.Logger()
	logger.Info("Initializing environment sensor",
		slog.String("sensor", f.SensorType),
		slog.Int("bus", params.Bus),
		slog.String("address", fmt.Sprintf("0x%02x", params.Address)))

	sensor, err := f.Open(f.SensorType, params.Bus, params.Address)
	if err != nil {
		return nil, err
	}
	return &Environment{name: env.Name, sensor: sensor, logger: logger}, nil
}

// Environment is the environment sensor peripheral.
type Environment struct {
	name   string
	logger *slog.Logger

	// mu serializes bus access.
	mu     sync.Mutex
	sensor Sensor
}

// Name implements device.Peripheral.
func (e *Environment) Name() string {
	return e.name
}

// Configure implements device.Peripheral. Environment sensors have no live
// config.
func (e *Environment) Configure(*yaml.Node) error {
	return nil
}

// PopulateTelemetry takes a measurement. A failed measurement is logged and
// leaves the telemetry untouched.
func (e *Environment) PopulateTelemetry(telemetry map[string]any) {
	e.mu.Lock()
	reading, err := e.sensor.Read()
	e.mu.Unlock()
	if err != nil {
		e.logger.Error("Failed to read environment sensor", slog.Any("error", err))
		return
	}
	telemetry["temperature"] = reading.Temperature
	telemetry["humidity"] = reading.Humidity
}

// Shutdown releases the sensor.
func (e *Environment) Shutdown() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.sensor.Close(); err != nil {
		e.logger.Warn("Failed to release environment sensor", slog.Any("error", err))
	}
}

var (
	_ device.Factory    = Factory{}
	_ device.Peripheral = (*Environment)(nil)
)
