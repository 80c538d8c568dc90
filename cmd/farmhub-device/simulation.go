package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/farmhub/farmhub-go/cmd/farmhub-device/interactive"
	"github.com/farmhub/farmhub-go/pkg/config"
	"github.com/farmhub/farmhub-go/pkg/door"
	"github.com/farmhub/farmhub-go/pkg/environment"
	"github.com/farmhub/farmhub-go/pkg/switches"
)

// Simulation parameters.
const (
	simulationStep   = 50 * time.Millisecond
	doorTravelTime   = 5 * time.Second
	middayLux        = 20000.0
	sunrise, sunset  = 6.0, 18.0
	nightTemperature = 12.0
	middayWarming    = 10.0
	releasedPinLevel = 1
)

// simulatedDoor moves between its limit switches while its motor runs.
type simulatedDoor struct {
	name      string
	in1, in2  string
	openPin   string
	closedPin string
	mode      switches.Mode

	// position is 0 when closed and 1 when open.
	position float64
}

// Simulation stands in for the board: motors move simulated doors, the
// doors engage their limit switches and the light follows the sun.
type Simulation struct {
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	levels map[string]byte
	doors  []*simulatedDoor
	lux    *int
}

// NewSimulation creates a simulated door for every chicken door in cfg.
// Doors start closed.
func NewSimulation(cfg *config.Config, logger *slog.Logger) (*Simulation, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Simulation{
		logger: logger,
		now:    time.Now,
		levels: make(map[string]byte),
	}
	for _, p := range cfg.Peripherals {
		if p.Type != door.FactoryType {
			continue
		}
		var params door.Params
		if err := config.Decode(&p.Params, &params); err != nil {
			return nil, fmt.Errorf("simulating %s: %w", p.Name, err)
		}
		m, err := simulatedMotor(cfg.Motors, params.Motor)
		if err != nil {
			return nil, fmt.Errorf("simulating %s: %w", p.Name, err)
		}
		mode, err := switches.ParseMode(params.SwitchMode)
		if err != nil {
			return nil, fmt.Errorf("simulating %s: %w", p.Name, err)
		}
		s.doors = append(s.doors, &simulatedDoor{
			name:      p.Name,
			in1:       m.In1,
			in2:       m.In2,
			openPin:   params.OpenPin,
			closedPin: params.ClosedPin,
			mode:      mode,
		})
		logger.Info("Simulating chicken door", slog.String("peripheral", p.Name))
	}
	return s, nil
}

func simulatedMotor(motors []config.Motor, name string) (config.Motor, error) {
	if name == "" && len(motors) == 1 {
		return motors[0], nil
	}
	for _, m := range motors {
		if m.Name == name {
			return m, nil
		}
	}
	return config.Motor{}, fmt.Errorf("no motor %q", name)
}

// Hardware returns the simulation as a board.
func (s *Simulation) Hardware() *Hardware {
	return &Hardware{Pins: s, Lux: s, Environment: s.openEnvironment}
}

// simulatedClimate warms up and dries out with the simulated daylight.
type simulatedClimate struct {
	sim *Simulation
}

func (s *Simulation) openEnvironment(sensorType string, _, _ int) (environment.Sensor, error) {
	if _, err := environment.DefaultAddress(sensorType); err != nil {
		return nil, err
	}
	return simulatedClimate{sim: s}, nil
}

func (c simulatedClimate) Read() (environment.Reading, error) {
	lux, _ := c.sim.Lux()
	sun := float64(lux) / middayLux
	return environment.Reading{
		Temperature: nightTemperature + middayWarming*sun,
		Humidity:    85 - 35*sun,
	}, nil
}

func (simulatedClimate) Close() error {
	return nil
}

// PwmWrite records the level of an output pin.
func (s *Simulation) PwmWrite(pin string, level byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.levels[pin] = level
	return nil
}

// DigitalRead reports the level of a limit switch pin. Pins that belong to
// no simulated door read as released pull-up inputs.
func (s *Simulation) DigitalRead(pin string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.doors {
		switch pin {
		case d.openPin:
			return pinLevel(d.mode, d.position >= 1), nil
		case d.closedPin:
			return pinLevel(d.mode, d.position <= 0), nil
		}
	}
	return releasedPinLevel, nil
}

func pinLevel(mode switches.Mode, engaged bool) int {
	if engaged == (mode == switches.PullDown) {
		return 1
	}
	return 0
}

// Lux returns the simulated light level.
func (s *Simulation) Lux() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lux != nil {
		return *s.lux, nil
	}
	return daylight(s.now()), nil
}

// SetLux pins the light level. A negative value returns to the daylight curve.
func (s *Simulation) SetLux(lux int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if lux < 0 {
		s.lux = nil
		return
	}
	s.lux = &lux
}

// daylight is a sine arc between sunrise and sunset.
func daylight(t time.Time) int {
	hour := float64(t.Hour()) + float64(t.Minute())/60
	if hour <= sunrise || hour >= sunset {
		return 0
	}
	return int(middayLux * math.Sin(math.Pi*(hour-sunrise)/(sunset-sunrise)))
}

// Step moves every door for dt according to its motor pins.
func (s *Simulation) Step(dt time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.doors {
		drive := (float64(s.levels[d.in1]) - float64(s.levels[d.in2])) / 255
		if drive == 0 {
			continue
		}
		d.position = math.Max(0, math.Min(1, d.position+drive*float64(dt)/float64(doorTravelTime)))
	}
}

// Doors returns the door positions sorted by name.
func (s *Simulation) Doors() []interactive.DoorPosition {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]interactive.DoorPosition, 0, len(s.doors))
	for _, d := range s.doors {
		out = append(out, interactive.DoorPosition{Name: d.name, Position: d.position})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Run steps the simulation until ctx is done.
func (s *Simulation) Run(ctx context.Context) error {
	ticker := time.NewTicker(simulationStep)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			s.Step(now.Sub(last))
			last = now
		}
	}
}
