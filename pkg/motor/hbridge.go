package motor

import (
	"log/slog"
	"math"
	"sync"
)

// PwmWriter writes an 8-bit duty cycle to a pin. Gobot's raspi adaptor
// satisfies it.
type PwmWriter interface {
	PwmWrite(pin string, level byte) error
}

// HBridge drives a motor through a two-input H-bridge such as the DRV8833:
// IN1 is pulsed for forward, IN2 for reverse, both low to coast.
type HBridge struct {
	name   string
	pins   PwmWriter
	in1    string
	in2    string
	logger *slog.Logger

	mu      sync.Mutex
	phase   Phase
	duty    float64
	running bool
}

// NewHBridge creates a stopped H-bridge driver on the given pins.
func NewHBridge(name string, pins PwmWriter, in1, in2 string, logger *slog.Logger) *HBridge {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("Initializing H-bridge motor",
		slog.String("motor", name),
		slog.String("in1", in1),
		slog.String("in2", in2))

	h := &HBridge{
		name:   name,
		pins:   pins,
		in1:    in1,
		in2:    in2,
		logger: logger,
		phase:  Forward,
	}
	h.Stop()
	return h
}

// Name returns the motor name.
func (h *HBridge) Name() string {
	return h.name
}

// Drive pulses the pin matching phase at duty and holds the other pin low.
func (h *HBridge) Drive(phase Phase, duty float64) {
	if duty <= 0 || duty > 1 || math.IsNaN(duty) || (phase != Forward && phase != Reverse) {
		if duty != 0 {
			h.logger.Warn("Invalid motor drive, stopping",
				slog.String("motor", h.name),
				slog.Float64("duty", duty))
		}
		h.Stop()
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.logger.Debug("Driving motor",
		slog.String("motor", h.name),
		slog.String("phase", phase.String()),
		slog.Int("percent", int(duty*100)))

	level := byte(math.Round(duty * 255))
	active, idle := h.in1, h.in2
	if phase == Reverse {
		active, idle = h.in2, h.in1
	}
	h.write(idle, 0)
	h.write(active, level)
	h.phase = phase
	h.duty = duty
	h.running = true
}

// Stop lets the motor coast.
func (h *HBridge) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		h.logger.Debug("Stopping motor", slog.String("motor", h.name))
	}
	h.write(h.in1, 0)
	h.write(h.in2, 0)
	h.duty = 0
	h.running = false
}

// Running reports the last commanded phase and duty, and whether the motor is driven.
func (h *HBridge) Running() (Phase, float64, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.phase, h.duty, h.running
}

func (h *HBridge) write(pin string, level byte) {
	if err := h.pins.PwmWrite(pin, level); err != nil {
		h.logger.Error("Failed to write motor pin",
			slog.String("motor", h.name),
			slog.String("pin", pin),
			slog.Any("error", err))
	}
}
