// Package light provides filtered ambient light readings.
//
// A Component samples a Reader at a fixed frequency and exposes the moving
// average over a latency window. Consumers depend on the Sensor interface
// only; the concrete reader is picked from configuration by NewReader.
package light

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/farmhub/farmhub-go/pkg/task"
)

// Defaults for sampling.
const (
	DefaultMeasurementFrequency = time.Second
	DefaultLatencyInterval      = 5 * time.Second
)

// NoSensorLevel is reported by the "none" reader.
const NoSensorLevel = -999

// Sensor types accepted by NewReader.
const (
	TypeBH1750 = "bh1750"
	TypeNone   = "none"
)

// ErrUnknownSensorType is returned for light sensor types that are not supported.
var ErrUnknownSensorType = errors.New("unknown light sensor type")

// Sensor is the capability consumed by light-driven automation.
type Sensor interface {
	CurrentLevel() float64
	MeasurementFrequency() time.Duration
}

// Reader performs a single raw light measurement in lux.
type Reader interface {
	ReadLevel() (float64, error)
}

// LuxReader is the BH1750 driver surface. Gobot's i2c.BH1750Driver satisfies it.
type LuxReader interface {
	Lux() (int, error)
}

// ReaderFunc adapts a function to Reader.
type ReaderFunc func() (float64, error)

// ReadLevel calls f.
func (f ReaderFunc) ReadLevel() (float64, error) {
	return f()
}

type bh1750Reader struct {
	drv LuxReader
}

func (r bh1750Reader) ReadLevel() (float64, error) {
	lux, err := r.drv.Lux()
	if err != nil {
		return 0, err
	}
	return float64(lux), nil
}

type noneReader struct{}

func (noneReader) ReadLevel() (float64, error) {
	return NoSensorLevel, nil
}

// NewReader returns the reader for sensorType. The BH1750 reader needs lux;
// the "none" reader ignores it.
func NewReader(sensorType string, lux LuxReader) (Reader, error) {
	switch sensorType {
	case TypeBH1750, "":
		if lux == nil {
			return nil, fmt.Errorf("%s: no i2c driver available", TypeBH1750)
		}
		return bh1750Reader{drv: lux}, nil
	case TypeNone:
		return noneReader{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSensorType, sensorType)
	}
}

// Config describes a light sensor.
type Config struct {
	Type                 string        `yaml:"type"`
	MeasurementFrequency time.Duration `yaml:"measurementFrequency"`
	LatencyInterval      time.Duration `yaml:"latencyInterval"`
}

// WithDefaults fills in unset fields.
func (c Config) WithDefaults() Config {
	if c.Type == "" {
		c.Type = TypeBH1750
	}
	if c.MeasurementFrequency <= 0 {
		c.MeasurementFrequency = DefaultMeasurementFrequency
	}
	if c.LatencyInterval <= 0 {
		c.LatencyInterval = DefaultLatencyInterval
	}
	return c
}

// Component samples a reader and keeps a moving average of the results.
type Component struct {
	name      string
	reader    Reader
	frequency time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	average *MovingAverage

	loop *task.Handle
}

// NewComponent starts sampling reader every measurementFrequency, averaging
// over latencyInterval worth of samples.
func NewComponent(name string, reader Reader, measurementFrequency, latencyInterval time.Duration, logger *slog.Logger) *Component {
	if logger == nil {
		logger = slog.Default()
	}
	if measurementFrequency <= 0 {
		measurementFrequency = DefaultMeasurementFrequency
	}
	if latencyInterval <= 0 {
		latencyInterval = DefaultLatencyInterval
	}
	c := &Component{
		name:      name,
		reader:    reader,
		frequency: measurementFrequency,
		logger:    logger,
		average:   NewMovingAverage(int(latencyInterval / measurementFrequency)),
	}
	logger.Info("Initializing light sensor",
		slog.String("sensor", name),
		slog.Duration("measurementFrequency", measurementFrequency),
		slog.Duration("latencyInterval", latencyInterval))

	c.sample()
	c.loop = task.Loop(name, 3072, task.DefaultPriority, func(t *task.Task) {
		t.DelayUntil(c.frequency)
		if !t.Stopped() {
			c.sample()
		}
	})
	return c
}

func (c *Component) sample() {
	level, err := c.reader.ReadLevel()
	if err != nil {
		c.logger.Error("Could not read light level",
			slog.String("sensor", c.name),
			slog.Any("error", err))
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.average.Record(level)
}

// Name returns the component name.
func (c *Component) Name() string {
	return c.name
}

// CurrentLevel returns the averaged light level in lux.
func (c *Component) CurrentLevel() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.average.Average()
}

// MeasurementFrequency returns the sampling period.
func (c *Component) MeasurementFrequency() time.Duration {
	return c.frequency
}

// PopulateTelemetry adds the current light level.
func (c *Component) PopulateTelemetry(telemetry map[string]any) {
	telemetry["light"] = c.CurrentLevel()
}

// Stop ends sampling.
func (c *Component) Stop() {
	c.loop.Stop()
	c.loop.Wait()
}
