package door

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/farmhub/farmhub-go/pkg/command"
	"github.com/farmhub/farmhub-go/pkg/device"
	"github.com/farmhub/farmhub-go/pkg/light"
	"github.com/farmhub/farmhub-go/pkg/motor"
	"github.com/farmhub/farmhub-go/pkg/mqtt"
	"github.com/farmhub/farmhub-go/pkg/switches"
)

type highPins struct{}

func (highPins) DigitalRead(string) (int, error) {
	return 1, nil
}

func yamlNode(t *testing.T, s string) *yaml.Node {
	t.Helper()
	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(s), &node))
	return &node
}

func testEnv(name string, sw *switches.Manager) device.Env {
	return device.Env{
		Name: name,
		Type: FactoryType,
		Root: mqtt.NewRoot(mqtt.NewMemoryTransport(), "farmhub/test/peripherals/chicken-door/"+name, nil),
		Services: device.Services{
			Motors:   []motor.Named{{Name: "door", Driver: &recordingMotor{}}},
			Switches: sw,
		},
	}
}

const validParams = `
motor: door
openPin: "11"
closedPin: "13"
movementTimeout: 30s
lightSensor:
  type: none
`

func TestFactoryCreate(t *testing.T) {
	sw := switches.NewManager(highPins{}, 0, nil)

	p, err := Factory{}.Create(testEnv("coop", sw), yamlNode(t, validParams))
	require.NoError(t, err)
	d := p.(*Door)
	defer d.Shutdown()

	assert.Equal(t, "coop", d.Name())
	require.Eventually(t, func() bool { return d.Controller().LastState() == StateUnknown }, eventually, time.Millisecond)

	telemetry := map[string]any{}
	d.PopulateTelemetry(telemetry)
	assert.Contains(t, telemetry, "light")
	assert.Equal(t, int(StateUnknown), telemetry["state"])
	assert.Equal(t, int(StateClosed), telemetry["targetState"])

	require.NoError(t, d.Configure(yamlNode(t, "openLevel: 100\ncloseLevel: 20")))
	assert.Error(t, d.Configure(yamlNode(t, "openLevel: 5")))

	// Switch names are taken by the first door.
	_, err = Factory{}.Create(testEnv("coop", sw), yamlNode(t, validParams))
	assert.ErrorIs(t, err, switches.ErrDuplicateSwitch)
}

func TestFactoryCreateErrors(t *testing.T) {
	tests := []struct {
		name     string
		params   string
		switches bool
		want     error
	}{
		{"missing pins", "motor: door\nlightSensor: {type: none}", true, nil},
		{"bad switch mode", validParams + "switchMode: sideways\n", true, nil},
		{"no switches", validParams, false, device.ErrMissingService},
		{"unknown motor", "motor: pump\nopenPin: a\nclosedPin: b\nlightSensor: {type: none}", true, motor.ErrMotorNotFound},
		{"unknown light sensor", "openPin: a\nclosedPin: b\nlightSensor: {type: tsl2561}", true, light.ErrUnknownSensorType},
		{"bh1750 without i2c", "openPin: a\nclosedPin: b", true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sw *switches.Manager
			if tt.switches {
				sw = switches.NewManager(highPins{}, 0, nil)
			}
			_, err := Factory{}.Create(testEnv("coop", sw), yamlNode(t, tt.params))
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

type brokenPin struct {
	pin string
}

func (b brokenPin) DigitalRead(pin string) (int, error) {
	if pin == b.pin {
		return 0, errors.New("no gpio")
	}
	return 1, nil
}

func TestFactoryCreateReleasesSwitchesOnError(t *testing.T) {
	sw := switches.NewManager(highPins{}, 0, nil)

	// The override command is already taken, so the controller cannot
	// start after both switches are registered.
	env := testEnv("coop", sw)
	require.NoError(t, env.Root.RegisterCommand(command.New(&command.Metadata{Name: "override"}, nil)))
	_, err := Factory{}.Create(env, yamlNode(t, validParams))
	require.ErrorIs(t, err, command.ErrDuplicateCommand)

	p, err := Factory{}.Create(testEnv("coop", sw), yamlNode(t, validParams))
	require.NoError(t, err)
	p.Shutdown()

	// Shutdown releases the switches as well.
	p, err = Factory{}.Create(testEnv("coop", sw), yamlNode(t, validParams))
	require.NoError(t, err)
	p.Shutdown()
}

func TestFactoryCreateReleasesOpenSwitchWhenClosedFails(t *testing.T) {
	sw := switches.NewManager(brokenPin{pin: "13"}, 0, nil)

	_, err := Factory{}.Create(testEnv("coop", sw), yamlNode(t, validParams))
	require.Error(t, err)
	assert.False(t, sw.Unregister("coop:open"))
	assert.False(t, sw.Unregister("coop:closed"))
}
