package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/farmhub/farmhub-go/pkg/device"
	"github.com/farmhub/farmhub-go/pkg/motor"
	"github.com/farmhub/farmhub-go/pkg/motor/mocks"
	"github.com/farmhub/farmhub-go/pkg/mqtt"
	"github.com/farmhub/farmhub-go/pkg/valve"
)

type fakeInput struct{}

func (*fakeInput) DigitalRead(string) (int, error) {
	return 0, nil
}

func yamlNode(t *testing.T, s string) *yaml.Node {
	t.Helper()
	var node yaml.Node
	require.NoError(t, yaml.Unmarshal([]byte(s), &node))
	return &node
}

func testEnv(t *testing.T, typ string, inputs *fakeInput) device.Env {
	t.Helper()
	drv := mocks.NewMockDriver(t)
	drv.EXPECT().Drive(mock.Anything, mock.Anything).Maybe()
	drv.EXPECT().Stop().Maybe()

	services := device.Services{Motors: []motor.Named{{Name: "pump", Driver: drv}}}
	if inputs != nil {
		services.Inputs = inputs
	}
	return device.Env{
		Name:     "garden",
		Type:     typ,
		Root:     mqtt.NewRoot(mqtt.NewMemoryTransport(), "farmhub/test/peripherals/"+typ+"/garden", nil),
		Services: services,
	}
}

func TestMeterFactoryCreate(t *testing.T) {
	p, err := MeterFactory{}.Create(testEnv(t, MeterFactoryType, &fakeInput{}), yamlNode(t, `
pin: "22"
qFactor: 7.5
measurementFrequency: 1h
`))
	require.NoError(t, err)
	defer p.Shutdown()

	fm := p.(*FlowMeter)
	assert.Equal(t, "garden", fm.Name())
	assert.Equal(t, 7.5, fm.Meter().qFactor)
	assert.NoError(t, fm.Configure(nil))

	telemetry := map[string]any{}
	fm.PopulateTelemetry(telemetry)
	assert.Contains(t, telemetry, "volume")
}

func TestMeterFactoryCreateErrors(t *testing.T) {
	tests := []struct {
		name   string
		params string
		inputs bool
		want   error
	}{
		{"missing pin", "qFactor: 5", true, nil},
		{"negative q factor", "pin: \"22\"\nqFactor: -1", true, nil},
		{"no inputs", "pin: \"22\"", false, device.ErrMissingService},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var inputs *fakeInput
			if tt.inputs {
				inputs = &fakeInput{}
			}
			_, err := MeterFactory{}.Create(testEnv(t, MeterFactoryType, inputs), yamlNode(t, tt.params))
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestControlFactoryCreate(t *testing.T) {
	p, err := ControlFactory{DefaultStrategy: valve.NormallyClosed}.Create(testEnv(t, ControlFactoryType, &fakeInput{}), yamlNode(t, `
valve:
  motor: pump
  switchDuration: 1ms
flow-meter:
  pin: "22"
  measurementFrequency: 1h
`))
	require.NoError(t, err)
	defer p.Shutdown()

	fc := p.(*FlowControl)
	assert.Equal(t, "garden", fc.Name())
	assert.Equal(t, DefaultQFactor, fc.Meter().qFactor)

	require.NoError(t, fc.Configure(yamlNode(t, "schedule: []")))

	telemetry := map[string]any{}
	fc.PopulateTelemetry(telemetry)
	assert.Contains(t, telemetry, "state")
	assert.Contains(t, telemetry, "volume")
}

func TestControlFactoryCreateErrors(t *testing.T) {
	tests := []struct {
		name   string
		params string
		want   error
	}{
		{"unknown motor", "valve: {motor: well}\nflow-meter: {pin: \"22\"}", motor.ErrMotorNotFound},
		{"unknown strategy", "valve: {strategy: sideways}\nflow-meter: {pin: \"22\"}", valve.ErrUnknownStrategy},
		{"missing meter", "valve: {motor: pump}", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ControlFactory{DefaultStrategy: valve.NormallyClosed}.Create(testEnv(t, ControlFactoryType, &fakeInput{}), yamlNode(t, tt.params))
			require.Error(t, err)
			if tt.want != nil {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}
