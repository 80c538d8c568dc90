// Package config loads the YAML device file.
//
// Peripheral params are read once when the peripheral is created. Peripheral
// config can change while the device runs; a Watcher re-reads the file and
// hands the new nodes to the device.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/farmhub/farmhub-go/pkg/version"
)

// Defaults.
const (
	DefaultPrefix            = "farmhub"
	DefaultStateFile         = "farmhub-state.json"
	DefaultTelemetryInterval = time.Minute
	DefaultMDNSPort          = 1883
)

// Environment overrides, applied after the file is read.
const (
	EnvBroker    = "FARMHUB_MQTT_BROKER"
	EnvPrefix    = "FARMHUB_MQTT_PREFIX"
	EnvInstance  = "FARMHUB_INSTANCE"
	EnvStateFile = "FARMHUB_STATE_FILE"
)

// Configuration errors.
var (
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrIncompatibleConfig = errors.New("incompatible configuration version")
)

// Config is the device file.
type Config struct {
	// Version is the file format version, "major.minor".
	Version string `yaml:"version"`

	Instance string `yaml:"instance"`
	Location string `yaml:"location"`

	MQTT MQTT `yaml:"mqtt"`
	MDNS MDNS `yaml:"mdns"`

	// StateFile is where the instance id, boot counter and valve states are kept.
	StateFile string `yaml:"stateFile"`

	// EventLog is the CBOR event journal path. Empty disables the journal.
	EventLog string `yaml:"eventLog"`

	TelemetryInterval time.Duration `yaml:"telemetryInterval"`

	Motors      []Motor      `yaml:"motors"`
	Peripherals []Peripheral `yaml:"peripherals"`
}

// MQTT describes the broker connection.
type MQTT struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"clientId"`
	Prefix   string `yaml:"prefix"`
}

// MDNS controls service advertisement.
type MDNS struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Motor is an H-bridge wired to two PWM pins.
type Motor struct {
	Name string `yaml:"name"`
	In1  string `yaml:"in1"`
	In2  string `yaml:"in2"`
}

// Peripheral is one entry of the peripherals list.
type Peripheral struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	// Params are read once at creation.
	Params yaml.Node `yaml:"params"`

	// Config may change at runtime.
	Config yaml.Node `yaml:"config"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads and validates the device file at path, applying environment
// overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a device file.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg.ApplyEnv(os.LookupEnv)
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFiles loads .env files into the process environment.
// Missing files are ignored.
func LoadEnvFiles(files ...string) error {
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", file, err)
		}
	}
	return nil
}

// ApplyEnv overrides settings from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvBroker); ok && v != "" {
		c.MQTT.Broker = v
	}
	if v, ok := lookup(EnvPrefix); ok && v != "" {
		c.MQTT.Prefix = v
	}
	if v, ok := lookup(EnvInstance); ok && v != "" {
		c.Instance = v
	}
	if v, ok := lookup(EnvStateFile); ok && v != "" {
		c.StateFile = v
	}
}

func (c *Config) applyDefaults() {
	if c.Version == "" {
		c.Version = version.Current
	}
	if c.Instance == "" {
		if host, err := os.Hostname(); err == nil {
			c.Instance = host
		} else {
			c.Instance = "farmhub"
		}
	}
	if c.MQTT.Prefix == "" {
		c.MQTT.Prefix = DefaultPrefix + "/" + c.Instance
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "farmhub-" + c.Instance
	}
	if c.MDNS.Port == 0 {
		c.MDNS.Port = DefaultMDNSPort
	}
	if c.StateFile == "" {
		c.StateFile = DefaultStateFile
	}
	if c.TelemetryInterval <= 0 {
		c.TelemetryInterval = DefaultTelemetryInterval
	}
}

// Validate checks names and the format version.
func (c *Config) Validate() error {
	v, err := version.Parse(c.Version)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	current, _ := version.Parse(version.Current)
	if !current.Compatible(v) {
		return fmt.Errorf("%w: file is %s, supported %s", ErrIncompatibleConfig, v, current)
	}

	motors := make(map[string]bool, len(c.Motors))
	for i, m := range c.Motors {
		if m.Name == "" {
			return fmt.Errorf("%w: motor %d has no name", ErrInvalidConfig, i)
		}
		if motors[m.Name] {
			return fmt.Errorf("%w: duplicate motor %q", ErrInvalidConfig, m.Name)
		}
		if m.In1 == "" || m.In2 == "" {
			return fmt.Errorf("%w: motor %q needs in1 and in2 pins", ErrInvalidConfig, m.Name)
		}
		motors[m.Name] = true
	}

	peripherals := make(map[string]bool, len(c.Peripherals))
	for i, p := range c.Peripherals {
		if p.Name == "" {
			return fmt.Errorf("%w: peripheral %d has no name", ErrInvalidConfig, i)
		}
		if p.Type == "" {
			return fmt.Errorf("%w: peripheral %q has no type", ErrInvalidConfig, p.Name)
		}
		if peripherals[p.Name] {
			return fmt.Errorf("%w: duplicate peripheral %q", ErrInvalidConfig, p.Name)
		}
		peripherals[p.Name] = true
	}
	return nil
}

// Peripheral returns the peripheral entry called name.
func (c *Config) Peripheral(name string) (Peripheral, bool) {
	for _, p := range c.Peripherals {
		if p.Name == name {
			return p, true
		}
	}
	return Peripheral{}, false
}

// Decode decodes node into out. An absent node leaves out untouched.
func Decode(node *yaml.Node, out any) error {
	if node == nil || node.Kind == 0 {
		return nil
	}
	if err := node.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}
