package fence

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/farmhub/farmhub-go/pkg/device"
	"github.com/farmhub/farmhub-go/pkg/mqtt"
)

type fakeCounter struct {
	mu     sync.Mutex
	pulses uint64
}

func (c *fakeCounter) add(n uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pulses += n
}

func (c *fakeCounter) TakeCount() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.pulses
	c.pulses = 0
	return n
}

func TestMonitorReportsHighestPulsingTap(t *testing.T) {
	low, mid, high := &fakeCounter{}, &fakeCounter{}, &fakeCounter{}
	m := NewMonitor("paddock", []Tap{
		{Voltage: 2000, Counter: low},
		{Voltage: 5000, Counter: mid},
		{Voltage: 8000, Counter: high},
	}, time.Hour, nil)
	defer m.Stop()

	low.add(3)
	mid.add(1)
	m.measure()
	assert.Equal(t, 5000, m.Voltage())

	high.add(2)
	m.measure()
	assert.Equal(t, 8000, m.Voltage())

	// A dead fence reads zero.
	m.measure()
	telemetry := map[string]any{}
	m.PopulateTelemetry(telemetry)
	assert.Equal(t, map[string]any{"voltage": 0}, telemetry)
}

func TestMonitorLoop(t *testing.T) {
	tap := &fakeCounter{}
	m := NewMonitor("paddock", []Tap{{Voltage: 3000, Counter: tap}}, 2*time.Millisecond, nil)
	defer m.Stop()

	tap.add(1)
	assert.Eventually(t, func() bool { return m.Voltage() == 3000 }, time.Second, time.Millisecond)
}

type pins struct {
	err error
}

func (p pins) DigitalRead(string) (int, error) {
	return 0, p.err
}

func yamlNode(t *testing.T, s string) *yaml.Node {
	t.Helper()
	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(s), &node))
	return &node
}

func testEnv(inputs device.Services) device.Env {
	return device.Env{
		Name:     "paddock",
		Type:     FactoryType,
		Root:     mqtt.NewRoot(mqtt.NewMemoryTransport(), "farmhub/test/peripherals/electric-fence/paddock", nil),
		Services: inputs,
	}
}

func TestFactoryCreate(t *testing.T) {
	p, err := Factory{}.Create(testEnv(device.Services{Inputs: pins{}}), yamlNode(t, `
pins:
  - pin: "5"
    voltage: 3000
  - pin: "6"
    voltage: 6000
measurementFrequency: 1h
`))
	require.NoError(t, err)
	defer p.Shutdown()

	f := p.(*Fence)
	assert.Equal(t, "paddock", f.Name())
	assert.Len(t, f.counters, 2)
	assert.NoError(t, f.Configure(nil))

	telemetry := map[string]any{}
	f.PopulateTelemetry(telemetry)
	assert.Equal(t, 0, telemetry["voltage"])
}

func TestFactoryCreateErrors(t *testing.T) {
	tests := []struct {
		name     string
		params   string
		services device.Services
		want     error
	}{
		{"no pins", "measurementFrequency: 1s", device.Services{Inputs: pins{}}, nil},
		{"no voltage", "pins: [{pin: \"5\"}]", device.Services{Inputs: pins{}}, nil},
		{"no inputs", "pins: [{pin: \"5\", voltage: 3000}]", device.Services{}, device.ErrMissingService},
		{"unreadable pin", "pins: [{pin: \"5\", voltage: 3000}]", device.Services{Inputs: pins{err: errors.New("no gpio")}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Factory{}.Create(testEnv(tt.services), yamlNode(t, tt.params))
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}
