package flow

import (
	"log/slog"
	"sync"
	"time"

	"github.com/farmhub/farmhub-go/pkg/task"
)

// Defaults.
const (
	DefaultQFactor              = 5.0
	DefaultMeasurementFrequency = time.Second
)

// Counter hands out pulses counted since the previous call.
type Counter interface {
	TakeCount() uint64
}

// MeterOptions configures a Meter.
type MeterOptions struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
}

// Meter accumulates the volume that passed a flow sensor.
type Meter struct {
	name    string
	counter Counter
	qFactor float64
	logger  *slog.Logger
	now     func() time.Time

	mu              sync.Mutex
	volume          float64
	lastMeasurement time.Time
	lastSeenFlow    time.Time
	lastPublished   time.Time

	loop *task.Handle
}

// NewMeter starts collecting pulses from counter every measurementFrequency.
func NewMeter(name string, counter Counter, qFactor float64, measurementFrequency time.Duration, opts MeterOptions) *Meter {
	if qFactor <= 0 {
		qFactor = DefaultQFactor
	}
	if measurementFrequency <= 0 {
		measurementFrequency = DefaultMeasurementFrequency
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	now := opts.Now()
	m := &Meter{
		name:            name,
		counter:         counter,
		qFactor:         qFactor,
		logger:          opts.Logger,
		now:             opts.Now,
		lastMeasurement: now,
		lastSeenFlow:    now,
		lastPublished:   now,
	}
	m.logger.Info("Initializing flow meter",
		slog.String("meter", name),
		slog.Float64("qFactor", qFactor),
		slog.Duration("measurementFrequency", measurementFrequency))

	m.loop = task.Loop(name, 3172, task.DefaultPriority, func(t *task.Task) {
		t.DelayUntil(measurementFrequency)
		if !t.Stopped() {
			m.measure()
		}
	})
	return m
}

func (m *Meter) measure() {
	now := m.now()
	pulses := m.counter.TakeCount()

	m.mu.Lock()
	defer m.mu.Unlock()
	if now.After(m.lastMeasurement) {
		m.lastMeasurement = now
	}
	if pulses == 0 {
		return
	}
	volume := m.liters(pulses)
	m.volume += volume
	m.lastSeenFlow = now
	m.logger.Debug("Counted pulses",
		slog.String("meter", m.name),
		slog.Uint64("pulses", pulses),
		slog.Float64("liters", volume))
}

// liters converts pulses using the Q factor, which is in Hz per l/min.
func (m *Meter) liters(pulses uint64) float64 {
	return float64(pulses) / m.qFactor / 60
}

// LastSeenFlow returns when pulses were last counted.
func (m *Meter) LastSeenFlow() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSeenFlow
}

// PopulateTelemetry reports the volume in liters since the previous call and
// the average flow rate over that time in liters per minute. The volume is
// reset.
func (m *Meter) PopulateTelemetry(telemetry map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	volume := m.volume
	m.volume = 0
	telemetry["volume"] = volume
	if elapsed := m.lastMeasurement.Sub(m.lastPublished); elapsed > 0 {
		telemetry["flowRate"] = volume / elapsed.Minutes()
	}
	m.lastPublished = m.lastMeasurement
}

// Stop ends measuring.
func (m *Meter) Stop() {
	m.loop.Stop()
	m.loop.Wait()
}
