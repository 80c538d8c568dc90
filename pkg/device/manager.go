package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/farmhub/farmhub-go/pkg/command"
	"github.com/farmhub/farmhub-go/pkg/config"
	eventlog "github.com/farmhub/farmhub-go/pkg/log"
	"github.com/farmhub/farmhub-go/pkg/mqtt"
)

// InitStatus is the outcome of creating one peripheral.
type InitStatus struct {
	Name string
	Type string
	Err  error
}

type entry struct {
	typ        string
	peripheral Peripheral
	root       mqtt.Root
}

// earlyPublish holds back telemetry requested while a peripheral is still
// being created, and releases it once the peripheral is registered.
type earlyPublish struct {
	mu         sync.Mutex
	registered bool
	deferred   bool
}

// hold records a request and reports whether it must wait.
func (e *earlyPublish) hold() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.registered {
		e.deferred = true
	}
	return !e.registered
}

// release marks the peripheral registered and reports whether a request
// was held back.
func (e *earlyPublish) release() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registered = true
	return e.deferred
}

// Manager creates and owns the peripherals of a device.
type Manager struct {
	root     mqtt.Root
	services Services
	logger   *slog.Logger
	journal  eventlog.Logger

	mu          sync.Mutex
	factories   map[string]Factory
	peripherals map[string]*entry
	order       []string
	report      []InitStatus
	shutdown    bool
}

// NewManager creates a manager publishing under root.
func NewManager(root mqtt.Root, services Services) *Manager {
	if services.Logger == nil {
		services.Logger = slog.Default()
	}
	if services.Awake == nil {
		services.Awake = func(bool) {}
	}
	services.Journal = eventlog.OrNoop(services.Journal)
	return &Manager{
		root:        root,
		services:    services,
		logger:      services.Logger,
		journal:     services.Journal,
		factories:   make(map[string]Factory),
		peripherals: make(map[string]*entry),
	}
}

// RegisterFactory makes a peripheral type available.
func (m *Manager) RegisterFactory(f Factory) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.factories[f.Type()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateFactory, f.Type())
	}
	m.factories[f.Type()] = f
	return nil
}

// RegisterCommands exposes the device-level commands on the root.
func (m *Manager) RegisterCommands() error {
	return m.root.RegisterCommand(command.New(&command.Metadata{
		Name:        "telemetry",
		Description: "Publish telemetry of all peripherals now",
	}, func(ctx context.Context, _ map[string]any) (map[string]any, error) {
		published := m.PublishAllTelemetry()
		return map[string]any{"published": published}, nil
	}))
}

// CreatePeripherals creates every peripheral in order, skipping the ones
// that fail. Returns the number of failures.
func (m *Manager) CreatePeripherals(peripherals []config.Peripheral) int {
	failures := 0
	for _, p := range peripherals {
		if err := m.CreatePeripheral(p); err != nil {
			failures++
		}
	}
	return failures
}

// CreatePeripheral creates one peripheral and applies its initial config.
// Failures are logged, recorded in the init report and returned as a
// *CreationError.
func (m *Manager) CreatePeripheral(p config.Peripheral) error {
	err := m.createPeripheral(p)

	m.mu.Lock()
	m.report = append(m.report, InitStatus{Name: p.Name, Type: p.Type, Err: err})
	m.mu.Unlock()

	if err != nil {
		m.logger.Error("Failed to create peripheral",
			slog.String("peripheral", p.Name),
			slog.String("type", p.Type),
			slog.Any("error", err))
		m.journal.Log(eventlog.Event{
			Timestamp: time.Now(),
			Component: p.Name,
			Category:  eventlog.CategoryError,
			Error:     &eventlog.ErrorEventData{Message: err.Error(), Context: "create peripheral"},
		})
		return err
	}
	m.logger.Info("Created peripheral",
		slog.String("peripheral", p.Name),
		slog.String("type", p.Type))
	return nil
}

func (m *Manager) createPeripheral(p config.Peripheral) error {
	m.mu.Lock()
	factory, ok := m.factories[p.Type]
	_, exists := m.peripherals[p.Name]
	m.mu.Unlock()

	if !ok {
		return &CreationError{Name: p.Name, Type: p.Type, Err: ErrUnknownFactory}
	}
	if exists {
		return &CreationError{Name: p.Name, Type: p.Type, Err: ErrDuplicatePeripheral}
	}

	root := m.root.ForSuffix("peripherals/" + p.Type + "/" + p.Name)
	early := &earlyPublish{}
	publish := func() {
		if err := m.PublishTelemetry(p.Name); err != nil {
			m.logger.Debug("Failed to publish telemetry",
				slog.String("peripheral", p.Name),
				slog.Any("error", err))
		}
	}
	env := Env{
		Name:     p.Name,
		Type:     p.Type,
		Root:     root,
		Services: m.services,
		PublishTelemetry: func() {
			if early.hold() {
				return
			}
			publish()
		},
	}

	peripheral, err := factory.Create(env, &p.Params)
	if err != nil {
		return &CreationError{Name: p.Name, Type: p.Type, Err: err}
	}
	if err := peripheral.Configure(&p.Config); err != nil {
		peripheral.Shutdown()
		return &CreationError{Name: p.Name, Type: p.Type, Err: err}
	}

	m.mu.Lock()
	m.peripherals[p.Name] = &entry{typ: p.Type, peripheral: peripheral, root: root}
	m.order = append(m.order, p.Name)
	m.mu.Unlock()

	if early.release() {
		publish()
	}
	return nil
}

// Peripheral returns the peripheral called name.
func (m *Manager) Peripheral(name string) (Peripheral, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.peripherals[name]
	if !ok {
		return nil, false
	}
	return e.peripheral, true
}

// Names returns the peripheral names in creation order.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// InitReport returns the outcome of every creation attempt.
func (m *Manager) InitReport() []InitStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]InitStatus(nil), m.report...)
}

// Initialized reports whether every peripheral was created successfully.
func (m *Manager) Initialized() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, status := range m.report {
		if status.Err != nil {
			return false
		}
	}
	return true
}

// PublishInitReport publishes the init report to the "init" topic.
func (m *Manager) PublishInitReport() error {
	report := m.InitReport()
	peripherals := make([]map[string]any, 0, len(report))
	for _, status := range report {
		entry := map[string]any{"name": status.Name, "type": status.Type}
		if status.Err != nil {
			entry["error"] = status.Err.Error()
		}
		peripherals = append(peripherals, entry)
	}
	return m.root.Publish("init", map[string]any{
		"peripherals": peripherals,
		"initialized": m.Initialized(),
	})
}

// Configure applies a live config node to one peripheral.
func (m *Manager) Configure(name string, node *yaml.Node) error {
	peripheral, ok := m.Peripheral(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrPeripheralNotFound, name)
	}
	if err := peripheral.Configure(node); err != nil {
		return fmt.Errorf("configuring %s: %w", name, err)
	}
	m.logger.Info("Configured peripheral", slog.String("peripheral", name))
	return nil
}

// Reconfigure applies the config nodes of a reloaded device file to every
// existing peripheral. Peripherals added to the file are not created.
func (m *Manager) Reconfigure(cfg *config.Config) error {
	var errs []error
	for _, name := range m.Names() {
		p, ok := cfg.Peripheral(name)
		if !ok {
			m.logger.Warn("Peripheral removed from config, keeping it until restart",
				slog.String("peripheral", name))
			continue
		}
		if err := m.Configure(name, &p.Config); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishTelemetry publishes the telemetry of one peripheral.
func (m *Manager) PublishTelemetry(name string) error {
	m.mu.Lock()
	e, ok := m.peripherals[name]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrPeripheralNotFound, name)
	}

	telemetry := map[string]any{}
	e.peripheral.PopulateTelemetry(telemetry)
	return e.root.Publish("telemetry", telemetry)
}

// Telemetry returns the current telemetry of one peripheral without
// publishing it.
func (m *Manager) Telemetry(name string) (map[string]any, error) {
	peripheral, ok := m.Peripheral(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPeripheralNotFound, name)
	}
	telemetry := map[string]any{}
	peripheral.PopulateTelemetry(telemetry)
	return telemetry, nil
}

// InvokeCommand runs a command registered by a peripheral, as if it had
// arrived over MQTT.
func (m *Manager) InvokeCommand(ctx context.Context, name, cmd string, params map[string]any) (map[string]any, error) {
	m.mu.Lock()
	e, ok := m.peripherals[name]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrPeripheralNotFound, name)
	}
	return e.root.InvokeCommand(ctx, cmd, params)
}

// PublishAllTelemetry publishes the telemetry of every peripheral and
// returns how many were published.
func (m *Manager) PublishAllTelemetry() int {
	published := 0
	for _, name := range m.Names() {
		if err := m.PublishTelemetry(name); err != nil {
			m.logger.Warn("Failed to publish telemetry",
				slog.String("peripheral", name),
				slog.Any("error", err))
			continue
		}
		published++
	}
	return published
}

// RunTelemetry publishes all telemetry every interval until ctx is done.
func (m *Manager) RunTelemetry(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.PublishAllTelemetry()
		}
	}
}

// Shutdown shuts peripherals down in reverse creation order.
// Calling it more than once has no effect.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return
	}
	m.shutdown = true
	order := append([]string(nil), m.order...)
	m.mu.Unlock()

	for i := len(order) - 1; i >= 0; i-- {
		name := order[i]
		peripheral, _ := m.Peripheral(name)
		m.logger.Info("Shutting down peripheral", slog.String("peripheral", name))
		peripheral.Shutdown()
	}
}
