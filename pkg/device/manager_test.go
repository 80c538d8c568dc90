package device

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/farmhub/farmhub-go/pkg/command"
	"github.com/farmhub/farmhub-go/pkg/config"
	"github.com/farmhub/farmhub-go/pkg/mqtt"
)

type fakePeripheral struct {
	name       string
	level      int
	configured int
	shutdowns  *[]string
}

func (p *fakePeripheral) Name() string { return p.name }

func (p *fakePeripheral) Configure(node *yaml.Node) error {
	var cfg struct {
		Level int `yaml:"level"`
	}
	if err := config.Decode(node, &cfg); err != nil {
		return err
	}
	if cfg.Level < 0 {
		return errors.New("level must not be negative")
	}
	p.level = cfg.Level
	p.configured++
	return nil
}

func (p *fakePeripheral) PopulateTelemetry(telemetry map[string]any) {
	telemetry["level"] = p.level
}

func (p *fakePeripheral) Shutdown() {
	*p.shutdowns = append(*p.shutdowns, p.name)
}

type fakeFactory struct {
	shutdowns []string
	created   map[string]*fakePeripheral
	fail      error

	// publishOnCreate makes Create publish telemetry right away, the way
	// peripherals with a background loop do.
	publishOnCreate bool
}

func (f *fakeFactory) Type() string { return "fake" }

func (f *fakeFactory) Create(env Env, params *yaml.Node) (Peripheral, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	p := &fakePeripheral{name: env.Name, shutdowns: &f.shutdowns}
	name := env.Name
	err := env.Root.RegisterCommand(command.New(&command.Metadata{Name: "ping"},
		func(context.Context, map[string]any) (map[string]any, error) {
			return map[string]any{"pong": name}, nil
		}))
	if err != nil {
		return nil, err
	}
	if f.created == nil {
		f.created = map[string]*fakePeripheral{}
	}
	f.created[env.Name] = p
	if f.publishOnCreate {
		env.PublishTelemetry()
		env.PublishTelemetry()
	}
	return p, nil
}

func peripheralConfig(t *testing.T, doc string) []config.Peripheral {
	t.Helper()
	var out struct {
		Peripherals []config.Peripheral `yaml:"peripherals"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(doc), &out))
	return out.Peripherals
}

func newTestManager(t *testing.T) (*Manager, *mqtt.MemoryTransport, *fakeFactory) {
	t.Helper()
	transport := mqtt.NewMemoryTransport()
	m := NewManager(mqtt.NewRoot(transport, "farmhub/test", nil), Services{})
	factory := &fakeFactory{}
	require.NoError(t, m.RegisterFactory(factory))
	return m, transport, factory
}

func TestCreatePeripheralsSkipsFailures(t *testing.T) {
	m, _, _ := newTestManager(t)

	failures := m.CreatePeripherals(peripheralConfig(t, `
peripherals:
  - name: one
    type: fake
  - name: two
    type: unknown
  - name: three
    type: fake
    config:
      level: 3
`))

	assert.Equal(t, 1, failures)
	assert.Equal(t, []string{"one", "three"}, m.Names())
	assert.False(t, m.Initialized())

	report := m.InitReport()
	require.Len(t, report, 3)
	assert.NoError(t, report[0].Err)
	assert.ErrorIs(t, report[1].Err, ErrUnknownFactory)

	var creationErr *CreationError
	require.ErrorAs(t, report[1].Err, &creationErr)
	assert.Equal(t, "two", creationErr.Name)
	assert.Equal(t, "unknown", creationErr.Type)
}

func TestCreatePeripheralFactoryError(t *testing.T) {
	m, _, factory := newTestManager(t)
	boom := errors.New("motor missing")
	factory.fail = boom

	err := m.CreatePeripheral(config.Peripheral{Name: "valve", Type: "fake"})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, m.Names())
}

func TestCreatePeripheralInvalidConfigShutsDown(t *testing.T) {
	m, _, factory := newTestManager(t)

	failures := m.CreatePeripherals(peripheralConfig(t, `
peripherals:
  - name: bad
    type: fake
    config:
      level: -1
`))

	assert.Equal(t, 1, failures)
	assert.Equal(t, []string{"bad"}, factory.shutdowns)
}

func TestCreatePeripheralDuplicate(t *testing.T) {
	m, _, _ := newTestManager(t)

	require.NoError(t, m.CreatePeripheral(config.Peripheral{Name: "door", Type: "fake"}))
	err := m.CreatePeripheral(config.Peripheral{Name: "door", Type: "fake"})
	assert.ErrorIs(t, err, ErrDuplicatePeripheral)
}

func TestRegisterFactoryDuplicate(t *testing.T) {
	m, _, _ := newTestManager(t)
	assert.ErrorIs(t, m.RegisterFactory(&fakeFactory{}), ErrDuplicateFactory)
}

func TestPublishTelemetry(t *testing.T) {
	m, transport, _ := newTestManager(t)
	m.CreatePeripherals(peripheralConfig(t, `
peripherals:
  - name: coop
    type: fake
    config:
      level: 7
`))

	require.NoError(t, m.PublishTelemetry("coop"))

	msgs := transport.Published("telemetry")
	require.Len(t, msgs, 1)
	assert.Equal(t, "farmhub/test/peripherals/fake/coop/telemetry", msgs[0].Topic)

	var telemetry map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &telemetry))
	assert.Equal(t, float64(7), telemetry["level"])

	assert.ErrorIs(t, m.PublishTelemetry("missing"), ErrPeripheralNotFound)
}

func TestTelemetryDuringCreationIsPublishedOnce(t *testing.T) {
	m, transport, factory := newTestManager(t)
	factory.publishOnCreate = true

	m.CreatePeripherals(peripheralConfig(t, `
peripherals:
  - name: coop
    type: fake
    config:
      level: 5
  - name: broken
    type: fake
    config:
      level: -1
`))

	msgs := transport.Published("telemetry")
	require.Len(t, msgs, 1)
	assert.Equal(t, "farmhub/test/peripherals/fake/coop/telemetry", msgs[0].Topic)

	var telemetry map[string]any
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &telemetry))
	assert.Equal(t, float64(5), telemetry["level"])
}

func TestTelemetryCommand(t *testing.T) {
	m, transport, _ := newTestManager(t)
	m.CreatePeripherals(peripheralConfig(t, `
peripherals:
  - name: a
    type: fake
  - name: b
    type: fake
`))
	require.NoError(t, m.RegisterCommands())

	response, err := m.root.InvokeCommand(context.Background(), "telemetry", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, response["published"])
	assert.Len(t, transport.Published("/telemetry"), 2)
}

func TestPublishInitReport(t *testing.T) {
	m, transport, _ := newTestManager(t)
	m.CreatePeripherals(peripheralConfig(t, `
peripherals:
  - name: a
    type: fake
  - name: b
    type: nope
`))

	require.NoError(t, m.PublishInitReport())
	msgs := transport.Published("/init")
	require.Len(t, msgs, 1)

	var report struct {
		Initialized bool             `json:"initialized"`
		Peripherals []map[string]any `json:"peripherals"`
	}
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &report))
	assert.False(t, report.Initialized)
	require.Len(t, report.Peripherals, 2)
	assert.NotContains(t, report.Peripherals[0], "error")
	assert.Contains(t, report.Peripherals[1]["error"], "unknown peripheral factory")
}

func TestReconfigure(t *testing.T) {
	m, _, factory := newTestManager(t)
	m.CreatePeripherals(peripheralConfig(t, `
peripherals:
  - name: a
    type: fake
`))

	cfg := config.Default()
	cfg.Peripherals = peripheralConfig(t, `
peripherals:
  - name: a
    type: fake
    config:
      level: 42
`)
	require.NoError(t, m.Reconfigure(cfg))
	assert.Equal(t, 42, factory.created["a"].level)
	assert.Equal(t, 2, factory.created["a"].configured)

	assert.ErrorIs(t, m.Configure("missing", nil), ErrPeripheralNotFound)
}

func TestShutdownReverseOrder(t *testing.T) {
	m, _, factory := newTestManager(t)
	m.CreatePeripherals(peripheralConfig(t, `
peripherals:
  - name: first
    type: fake
  - name: second
    type: fake
`))

	m.Shutdown()
	m.Shutdown()

	assert.Equal(t, []string{"second", "first"}, factory.shutdowns)
}

func TestTelemetryAndInvokeCommand(t *testing.T) {
	m, transport, _ := newTestManager(t)
	m.CreatePeripherals(peripheralConfig(t, `
peripherals:
  - name: coop
    type: fake
    config:
      level: 3
`))

	telemetry, err := m.Telemetry("coop")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"level": 3}, telemetry)
	assert.Empty(t, transport.Published("/telemetry"))

	response, err := m.InvokeCommand(context.Background(), "coop", "ping", nil)
	require.NoError(t, err)
	assert.Equal(t, "coop", response["pong"])

	_, err = m.InvokeCommand(context.Background(), "coop", "missing", nil)
	assert.ErrorIs(t, err, command.ErrCommandNotFound)

	_, err = m.InvokeCommand(context.Background(), "barn", "ping", nil)
	assert.ErrorIs(t, err, ErrPeripheralNotFound)
	_, err = m.Telemetry("barn")
	assert.ErrorIs(t, err, ErrPeripheralNotFound)
}
