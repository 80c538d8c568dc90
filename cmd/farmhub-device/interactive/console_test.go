package interactive

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/farmhub/farmhub-go/pkg/command"
	"github.com/farmhub/farmhub-go/pkg/config"
	"github.com/farmhub/farmhub-go/pkg/device"
	"github.com/farmhub/farmhub-go/pkg/mqtt"
)

type gate struct {
	name     string
	override int
}

func (g *gate) Name() string                       { return g.name }
func (g *gate) Configure(*yaml.Node) error         { return nil }
func (g *gate) Shutdown()                          {}
func (g *gate) PopulateTelemetry(t map[string]any) { t["overrideState"] = g.override }

type gateFactory struct{}

func (gateFactory) Type() string { return "gate" }

func (gateFactory) Create(env device.Env, _ *yaml.Node) (device.Peripheral, error) {
	g := &gate{name: env.Name}
	err := env.Root.RegisterCommand(command.New(&command.Metadata{
		Name: "override",
		Parameters: []command.ParameterMetadata{
			{Name: "state", Type: command.DataTypeInt, Required: true},
			{Name: "duration", Type: command.DataTypeSeconds},
		},
	}, func(_ context.Context, params map[string]any) (map[string]any, error) {
		state, _, err := command.Int(params, "state")
		if err != nil {
			return nil, err
		}
		g.override = state
		return map[string]any{"overrideState": state}, nil
	}))
	return g, err
}

type fakeSimulator struct {
	lux   int
	doors []DoorPosition
}

func (s *fakeSimulator) SetLux(lux int)        { s.lux = lux }
func (s *fakeSimulator) Doors() []DoorPosition { return s.doors }

func newTestConsole(t *testing.T, sim Simulator) *Console {
	t.Helper()
	transport := mqtt.NewMemoryTransport()
	manager := device.NewManager(mqtt.NewRoot(transport, "farmhub/coop", nil), device.Services{})
	require.NoError(t, manager.RegisterFactory(gateFactory{}))
	require.NoError(t, manager.CreatePeripheral(config.Peripheral{Name: "front", Type: "gate"}))
	_ = manager.CreatePeripheral(config.Peripheral{Name: "broken", Type: "missing"})
	return &Console{
		manager: manager,
		info:    Info{Instance: "coop", InstanceID: "a1", Boot: 3, Prefix: "farmhub/coop"},
		sim:     sim,
	}
}

func exec(t *testing.T, c *Console, line string) (string, bool) {
	t.Helper()
	var out bytes.Buffer
	quit := execute(context.Background(), c, &out, line)
	return out.String(), quit
}

func TestConsoleStatusAndPeripherals(t *testing.T) {
	c := newTestConsole(t, nil)

	out, _ := exec(t, c, "status")
	assert.Contains(t, out, "coop (a1)")
	assert.Contains(t, out, "Boot:      3")

	out, _ = exec(t, c, "ls")
	assert.Contains(t, out, "front")
	assert.Contains(t, out, "broken")
	assert.Contains(t, out, "FAILED")
}

func TestConsoleOverride(t *testing.T) {
	c := newTestConsole(t, nil)

	out, _ := exec(t, c, "override front open 60")
	assert.Equal(t, "{\"overrideState\":1}\n", out)

	out, _ = exec(t, c, "telemetry front")
	assert.Equal(t, "  front: {\"overrideState\":1}\n", out)

	out, _ = exec(t, c, "o front closed")
	assert.Contains(t, out, "-1")

	out, _ = exec(t, c, "override front sideways")
	assert.Contains(t, out, "invalid state")

	out, _ = exec(t, c, "override front open soon")
	assert.Contains(t, out, "invalid duration")

	out, _ = exec(t, c, "override barn open")
	assert.Contains(t, out, device.ErrPeripheralNotFound.Error())
}

func TestConsoleInvoke(t *testing.T) {
	c := newTestConsole(t, nil)

	out, _ := exec(t, c, `invoke front override {"state": 0}`)
	assert.Equal(t, "{\"overrideState\":0}\n", out)

	out, _ = exec(t, c, "invoke front override {bad")
	assert.Contains(t, out, "invalid JSON")

	out, _ = exec(t, c, "invoke front reboot")
	assert.Contains(t, out, command.ErrCommandNotFound.Error())
}

func TestParseOverrideState(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"open", 1, false},
		{"OPEN", 1, false},
		{"1", 1, false},
		{"closed", -1, false},
		{"close", -1, false},
		{"-1", -1, false},
		{"clear", 0, false},
		{"0", 0, false},
		{"2", 0, true},
	}
	for _, tt := range tests {
		got, err := parseOverrideState(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseOverrideState(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseOverrideState(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestConsoleSimulation(t *testing.T) {
	c := newTestConsole(t, nil)
	out, _ := exec(t, c, "light 10")
	assert.Contains(t, out, "Not running in simulation mode")

	sim := &fakeSimulator{doors: []DoorPosition{{Name: "coop-door", Position: 0.25}}}
	c = newTestConsole(t, sim)

	out, _ = exec(t, c, "light 10")
	assert.Contains(t, out, "10 lux")
	assert.Equal(t, 10, sim.lux)

	exec(t, c, "light auto")
	assert.Equal(t, -1, sim.lux)

	out, _ = exec(t, c, "light dark")
	assert.Contains(t, out, "invalid light level")

	out, _ = exec(t, c, "doors")
	assert.Equal(t, fmt.Sprintf("  %-20s  25%% open\n", "coop-door"), out)
}

func TestConsoleQuit(t *testing.T) {
	c := newTestConsole(t, nil)

	for _, line := range []string{"quit", "exit", "q"} {
		if _, quit := exec(t, c, line); !quit {
			t.Errorf("execute(%q) = false, want true", line)
		}
	}
	out, quit := exec(t, c, "dance")
	assert.False(t, quit)
	assert.Contains(t, out, "Unknown command: dance")

	_, quit = exec(t, c, "   ")
	assert.False(t, quit)
}
