// Package fence monitors an electric fence.
//
// Each pulse detector is wired to a voltage tap and fires when the fence
// pulse exceeds the tap's voltage. The monitor reports the highest tap that
// saw pulses during the last measurement period, or zero when the fence is
// dead.
package fence

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/farmhub/farmhub-go/pkg/config"
	"github.com/farmhub/farmhub-go/pkg/device"
	"github.com/farmhub/farmhub-go/pkg/pulse"
	"github.com/farmhub/farmhub-go/pkg/task"
)

// FactoryType is the peripheral type handled by Factory.
const FactoryType = "electric-fence"

// DefaultMeasurementFrequency is how often the taps are evaluated.
const DefaultMeasurementFrequency = 10 * time.Second

// Counter hands out pulses counted since the previous call.
type Counter interface {
	TakeCount() uint64
}

// Tap is a pulse detector at a given voltage.
type Tap struct {
	Voltage int
	Counter Counter
}

// Monitor keeps the voltage seen in the last measurement period.
type Monitor struct {
	name   string
	taps   []Tap
	logger *slog.Logger

	mu          sync.Mutex
	lastVoltage int

	loop *task.Handle
}

// NewMonitor starts evaluating taps every measurementFrequency.
func NewMonitor(name string, taps []Tap, measurementFrequency time.Duration, logger *slog.Logger) *Monitor {
	if measurementFrequency <= 0 {
		measurementFrequency = DefaultMeasurementFrequency
	}
	if logger == nil {
		logger = slog.Default()
	}
	m := &Monitor{name: name, taps: taps, logger: logger}
	m.loop = task.Loop(name, 3172, task.DefaultPriority, func(t *task.Task) {
		t.DelayUntil(measurementFrequency)
		if !t.Stopped() {
			m.measure()
		}
	})
	return m
}

func (m *Monitor) measure() {
	voltage := 0
	for _, tap := range m.taps {
		if count := tap.Counter.TakeCount(); count > 0 {
			voltage = max(voltage, tap.Voltage)
			m.logger.Debug("Counted fence pulses",
				slog.String("fence", m.name),
				slog.Uint64("pulses", count),
				slog.Int("voltage", tap.Voltage))
		}
	}
	m.mu.Lock()
	m.lastVoltage = voltage
	m.mu.Unlock()
}

// Voltage returns the voltage seen in the last measurement period.
func (m *Monitor) Voltage() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastVoltage
}

// PopulateTelemetry adds the fence voltage.
func (m *Monitor) PopulateTelemetry(telemetry map[string]any) {
	telemetry["voltage"] = m.Voltage()
}

// Stop ends monitoring.
func (m *Monitor) Stop() {
	m.loop.Stop()
	m.loop.Wait()
}

// PinParams is one voltage tap.
type PinParams struct {
	Pin     string `yaml:"pin"`
	Voltage int    `yaml:"voltage"`
}

// Params are the construction-time settings of a fence monitor.
type Params struct {
	Pins                 []PinParams   `yaml:"pins"`
	MeasurementFrequency time.Duration `yaml:"measurementFrequency"`
	SampleInterval       time.Duration `yaml:"sampleInterval"`
}

// Factory creates electric fence monitors.
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
	if len(params.Pins) == 0 {
		return nil, errors.New("at least one pin is required")
	}
	if env.Services.Inputs == nil {
		return nil, fmt.Errorf("%w: inputs", device.ErrMissingService)
	}

	logger := env.Logger()
	f := &Fence{name: env.Name}
	taps := make([]Tap, 0, len(params.Pins))
	description := make([]string, 0, len(params.Pins))
	for _, p := range params.Pins {
		if p.Voltage <= 0 {
			f.stopCounters()
			return nil, fmt.Errorf("pin %s: voltage %d must be positive", p.Pin, p.Voltage)
		}
		counter, err := pulse.NewCounter(env.Name+":"+p.Pin, env.Services.Inputs, p.Pin, params.SampleInterval, logger)
		if err != nil {
			f.stopCounters()
			return nil, err
		}
		f.counters = append(f.counters, counter)
		taps = append(taps, Tap{Voltage: p.Voltage, Counter: counter})
		description = append(description, fmt.Sprintf("%s=%dV", p.Pin, p.Voltage))
	}
	logger.Info("Initializing electric fence", slog.String("pins", strings.Join(description, ", ")))

	f.monitor = NewMonitor(env.Name, taps, params.MeasurementFrequency, logger)
	return f, nil
}

// Fence is the electric fence monitor peripheral.
type Fence struct {
	name     string
	monitor  *Monitor
	counters []*pulse.Counter
}

// Monitor returns the monitor.
func (f *Fence) Monitor() *Monitor {
	return f.monitor
}

// Name implements device.Peripheral.
func (f *Fence) Name() string {
	return f.name
}

// Configure implements device.Peripheral. Fence monitors have no live config.
func (f *Fence) Configure(*yaml.Node) error {
	return nil
}

// PopulateTelemetry reports the fence voltage.
func (f *Fence) PopulateTelemetry(telemetry map[string]any) {
	f.monitor.PopulateTelemetry(telemetry)
}

// Shutdown stops monitoring.
func (f *Fence) Shutdown() {
	f.monitor.Stop()
	f.stopCounters()
}

func (f *Fence) stopCounters() {
	for _, c := range f.counters {
		c.Stop()
	}
}

var (
	_ device.Factory    = Factory{}
	_ device.Peripheral = (*Fence)(nil)
)
