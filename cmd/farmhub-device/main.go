// Command farmhub-device runs the farm controller on a Raspberry Pi or in
// simulation.
//
// It creates the motors and peripherals listed in the device file, publishes
// their telemetry and accepts commands over MQTT, journals state changes and
// advertises itself over mDNS.
//
// Usage:
//
//	farmhub-device [flags]
//
// Flags:
//
//	-config string      Device file path (default "farmhub.yaml")
//	-env string         Comma separated .env files (default ".env")
//	-log-level string   Log level: debug, info, warn, error (default "info")
//	-log-file string    Also write logs to this rotating file
//	-simulate           Simulate the board instead of using GPIO
//	-interactive        Start the interactive console
//	-watch              Reconfigure peripherals when the device file changes
//
// Examples:
//
//	# Run on the coop controller
//	farmhub-device -config /etc/farmhub/coop.yaml
//
//	# Try a device file on a laptop
//	farmhub-device -config coop.yaml -simulate -interactive -log-level debug
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/farmhub/farmhub-go/cmd/farmhub-device/interactive"
	"github.com/farmhub/farmhub-go/pkg/config"
	"github.com/farmhub/farmhub-go/pkg/device"
	"github.com/farmhub/farmhub-go/pkg/discovery"
	"github.com/farmhub/farmhub-go/pkg/door"
	"github.com/farmhub/farmhub-go/pkg/environment"
	"github.com/farmhub/farmhub-go/pkg/fence"
	"github.com/farmhub/farmhub-go/pkg/flow"
	eventlog "github.com/farmhub/farmhub-go/pkg/log"
	"github.com/farmhub/farmhub-go/pkg/motor"
	"github.com/farmhub/farmhub-go/pkg/mqtt"
	"github.com/farmhub/farmhub-go/pkg/persistence"
	"github.com/farmhub/farmhub-go/pkg/switches"
	"github.com/farmhub/farmhub-go/pkg/valve"
	"github.com/farmhub/farmhub-go/pkg/version"
)

// Options holds the command line flags.
type Options struct {
	ConfigFile  string
	EnvFiles    string
	LogLevel    string
	LogFile     string
	Simulate    bool
	Interactive bool
	Watch       bool
}

var options Options

func init() {
	flag.StringVar(&options.ConfigFile, "config", "farmhub.yaml", "Device file path")
	flag.StringVar(&options.EnvFiles, "env", ".env", "Comma separated .env files")
	flag.StringVar(&options.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&options.LogFile, "log-file", "", "Also write logs to this rotating file")
	flag.BoolVar(&options.Simulate, "simulate", false, "Simulate the board instead of using GPIO")
	flag.BoolVar(&options.Interactive, "interactive", false, "Start the interactive console")
	flag.BoolVar(&options.Watch, "watch", false, "Reconfigure peripherals when the device file changes")
}

func main() {
	flag.Parse()

	if err := run(options); err != nil {
		fmt.Fprintf(os.Stderr, "farmhub-device: %v\n", err)
		os.Exit(1)
	}
}

// logOutput lets the console take over log output once it is running.
type logOutput struct {
	mu sync.Mutex
	w  io.Writer
}

func (o *logOutput) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.w.Write(p)
}

func (o *logOutput) Set(w io.Writer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.w = w
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// transport is a broker connection the device owns.
type transport interface {
	mqtt.Transport
	Close() error
}

type memoryTransport struct {
	*mqtt.MemoryTransport
}

func (memoryTransport) Close() error { return nil }

func run(opts Options) error {
	level, err := parseLevel(opts.LogLevel)
	if err != nil {
		return err
	}

	if opts.EnvFiles != "" {
		if err := config.LoadEnvFiles(strings.Split(opts.EnvFiles, ",")...); err != nil {
			return err
		}
	}

	out := &logOutput{w: os.Stderr}
	var sink io.Writer = out
	if opts.LogFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   opts.LogFile,
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		}
		defer rotating.Close()
		sink = io.MultiWriter(out, rotating)
	}
	logger := slog.New(slog.NewTextHandler(sink, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	logger.Info("farmhub device starting", slog.String("version", version.Info()))

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return err
	}

	status, err := device.NewStatus(logger)
	if err != nil {
		return err
	}
	watch := status.Watch()
	defer watch.Stop()
	status.ConfigLoaded.Set()

	store := persistence.NewDeviceStateStore(cfg.StateFile)
	boot, err := persistence.RecordBoot(store)
	if err != nil {
		return fmt.Errorf("recording boot: %w", err)
	}
	logger.Info("Booted",
		slog.String("instance", cfg.Instance),
		slog.String("instance_id", boot.InstanceID),
		slog.Any("boot", boot.BootCount))

	sinks := []eventlog.Logger{eventlog.NewSlogAdapter(logger.With(slog.String("source", "journal")))}
	if cfg.EventLog != "" {
		file, err := eventlog.NewFileLogger(cfg.EventLog)
		if err != nil {
			return err
		}
		defer func() {
			if failures := file.Failures(); failures > 0 {
				logger.Warn("Event journal dropped events", slog.Int("failures", failures))
			}
			_ = file.Close()
		}()
		sinks = append(sinks, file)
	}
	journal := eventlog.NewStamped(eventlog.NewMultiLogger(sinks...), boot.InstanceID, boot.BootCount)

	var sim *Simulation
	var hw *Hardware
	if opts.Simulate {
		sim, err = NewSimulation(cfg, logger)
		if err != nil {
			return err
		}
		hw = sim.Hardware()
	} else {
		hw, err = newRaspiHardware(logger)
		if err != nil {
			return err
		}
	}
	defer func() {
		if err := hw.Close(); err != nil {
			logger.Warn("Failed to release hardware", slog.Any("error", err))
		}
	}()

	conn, err := connect(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Warn("Failed to disconnect from broker", slog.Any("error", err))
		}
	}()
	status.MQTTConnected.Set()
	root := mqtt.NewRoot(conn, cfg.MQTT.Prefix, logger)

	motors := make([]motor.Named, 0, len(cfg.Motors))
	for _, m := range cfg.Motors {
		motors = append(motors, motor.Named{
			Name:   m.Name,
			Driver: motor.NewHBridge(m.Name, hw.Pins, m.In1, m.In2, logger),
		})
	}

	switchManager := switches.NewManager(hw.Pins, 0, logger)

	manager := device.NewManager(root, device.Services{
		Motors:   motors,
		Switches: switchManager,
		Lux:      hw.Lux,
		Inputs:   hw.Pins,
		Store:    store,
		Journal:  journal,
		Logger:   logger,
		Awake:    status.Awake,
	})
	for _, f := range []device.Factory{
		valve.Factory{DefaultStrategy: valve.NormallyClosed},
		door.Factory{},
		flow.MeterFactory{},
		flow.ControlFactory{DefaultStrategy: valve.NormallyClosed},
		environment.Factory{SensorType: environment.TypeSHT3x, Open: hw.Environment},
		environment.Factory{SensorType: environment.TypeSHT2x, Open: hw.Environment},
		fence.Factory{},
	} {
		if err := manager.RegisterFactory(f); err != nil {
			return err
		}
	}
	if err := manager.RegisterCommands(); err != nil {
		return err
	}
	defer manager.Shutdown()

	if failures := manager.CreatePeripherals(cfg.Peripherals); failures > 0 {
		logger.Warn("Some peripherals failed to initialize", slog.Int("failures", failures))
	}
	if manager.Initialized() {
		status.PeripheralsInitialized.Set()
	}
	if err := manager.PublishInitReport(); err != nil {
		logger.Warn("Failed to publish init report", slog.Any("error", err))
	}

	switchManager.Start()
	defer switchManager.Stop()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if cfg.MDNS.Enabled {
		advertiser := discovery.NewMDNSAdvertiser(discovery.AdvertiserConfig{})
		err := advertiser.Advertise(ctx, &discovery.DeviceInfo{
			ID:       boot.InstanceID,
			Instance: cfg.Instance,
			Boot:     boot.BootCount,
			Firmware: version.Firmware,
			Prefix:   cfg.MQTT.Prefix,
			Port:     uint16(cfg.MDNS.Port),
		})
		if err != nil {
			logger.Warn("Failed to advertise over mDNS", slog.Any("error", err))
		} else {
			defer advertiser.Stop()
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return manager.RunTelemetry(ctx, cfg.TelemetryInterval)
	})
	if opts.Watch {
		watcher, err := config.NewWatcher(opts.ConfigFile, func(updated *config.Config) {
			if err := manager.Reconfigure(updated); err != nil {
				logger.Error("Failed to reconfigure peripherals", slog.Any("error", err))
			}
		}, logger)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return watcher.Run(ctx)
		})
	}
	if sim != nil {
		g.Go(func() error {
			return sim.Run(ctx)
		})
	}
	if opts.Interactive {
		var simulator interactive.Simulator
		if sim != nil {
			simulator = sim
		}
		console, err := interactive.New(manager, status, interactive.Info{
			Instance:   cfg.Instance,
			InstanceID: boot.InstanceID,
			Boot:       boot.BootCount,
			Prefix:     cfg.MQTT.Prefix,
		}, simulator)
		if err != nil {
			return err
		}
		out.Set(console.Stdout())
		defer out.Set(os.Stderr)
		g.Go(func() error {
			return console.Run(ctx, cancel)
		})
	}

	logger.Info("Device running", slog.String("prefix", cfg.MQTT.Prefix))
	err = g.Wait()
	logger.Info("Shutting down...")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// connect opens the broker connection. Without a broker the device runs on
// an in-process transport.
func connect(cfg *config.Config, logger *slog.Logger) (transport, error) {
	if cfg.MQTT.Broker == "" {
		logger.Warn("No MQTT broker configured, using in-process transport")
		return memoryTransport{mqtt.NewMemoryTransport()}, nil
	}
	conn := mqtt.NewGobotTransport(cfg.MQTT.Broker, cfg.MQTT.ClientID)
	if err := conn.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", cfg.MQTT.Broker, err)
	}
	logger.Info("Connected to MQTT broker", slog.String("broker", cfg.MQTT.Broker))
	return conn, nil
}
