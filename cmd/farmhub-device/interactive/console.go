// Package interactive provides the interactive command-line interface
// for the farmhub device.
package interactive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/farmhub/farmhub-go/pkg/device"
	"github.com/farmhub/farmhub-go/pkg/discovery"
)

// DoorPosition is the simulated position of one door, 0 closed and 1 open.
type DoorPosition struct {
	Name     string
	Position float64
}

// Simulator is the control surface of simulated hardware.
type Simulator interface {
	// SetLux pins the light level; a negative value releases it.
	SetLux(lux int)
	Doors() []DoorPosition
}

// Info describes the running device.
type Info struct {
	Instance   string
	InstanceID string
	Boot       uint32
	Prefix     string
}

// Console handles interactive mode for farmhub-device.
type Console struct {
	manager *device.Manager
	status  *device.Status
	info    Info
	sim     Simulator
	rl      *readline.Instance
}

// New creates a console. sim may be nil when running on real hardware.
func New(manager *device.Manager, status *device.Status, info Info, sim Simulator) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "farmhub> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{manager: manager, status: status, info: info, sim: sim, rl: rl}, nil
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run reads commands until the user quits or ctx is done. Quitting calls
// cancel.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) error {
	defer c.rl.Close()

	go func() {
		<-ctx.Done()
		c.rl.Close()
	}()

	c.printHelp()

	for {
		if ctx.Err() != nil {
			return nil
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			cancel()
			return nil
		}

		if c.Execute(ctx, line) {
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return nil
		}
	}
}

// Execute runs one command line and reports whether the user asked to quit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	return execute(ctx, c, c.rl.Stdout(), line)
}

func execute(ctx context.Context, c *Console, out io.Writer, line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelpTo(out)
	case "status", "s":
		c.cmdStatus(out)
	case "peripherals", "ls":
		c.cmdPeripherals(out)
	case "telemetry", "t":
		c.cmdTelemetry(out, args)
	case "publish":
		fmt.Fprintf(out, "Published telemetry of %d peripherals\n", c.manager.PublishAllTelemetry())
	case "override", "o":
		c.cmdOverride(ctx, out, args)
	case "invoke":
		c.cmdInvoke(ctx, out, args)
	case "discover":
		c.cmdDiscover(ctx, out, args)
	case "light":
		c.cmdLight(out, args)
	case "doors":
		c.cmdDoors(out)
	case "quit", "exit", "q":
		return true
	default:
		fmt.Fprintf(out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (c *Console) printHelp() {
	c.printHelpTo(c.rl.Stdout())
}

func (c *Console) printHelpTo(out io.Writer) {
	fmt.Fprintln(out, `
farmhub Device Commands:
  Device:
    status                          - Show boot and connection status
    peripherals                     - List peripherals and init results
    telemetry [name]                - Show telemetry (all peripherals or one)
    publish                         - Publish telemetry of all peripherals now

  Control:
    override <name> <state> [secs]  - Force a door or valve: open, closed or clear
    invoke <name> <cmd> [json]      - Run a peripheral command

  Network:
    discover [secs]                 - Find farmhub devices on the LAN

  Simulation:
    light <lux>|auto                - Pin the simulated light level
    doors                           - Show simulated door positions

  General:
    help                            - Show this help
    quit                            - Exit device`)
}

func (c *Console) cmdStatus(out io.Writer) {
	fmt.Fprintf(out, "Instance:  %s (%s)\n", c.info.Instance, c.info.InstanceID)
	fmt.Fprintf(out, "Boot:      %d\n", c.info.Boot)
	fmt.Fprintf(out, "Prefix:    %s\n", c.info.Prefix)
	if c.status != nil {
		fmt.Fprintf(out, "Status:    %s\n", c.status)
	}
}

func (c *Console) cmdPeripherals(out io.Writer) {
	report := c.manager.InitReport()
	if len(report) == 0 {
		fmt.Fprintln(out, "No peripherals configured")
		return
	}
	for _, s := range report {
		result := "ok"
		if s.Err != nil {
			result = "FAILED: " + s.Err.Error()
		}
		fmt.Fprintf(out, "  %-20s %-14s %s\n", s.Name, s.Type, result)
	}
}

func (c *Console) cmdTelemetry(out io.Writer, args []string) {
	names := args
	if len(names) == 0 {
		names = c.manager.Names()
	}
	for _, name := range names {
		telemetry, err := c.manager.Telemetry(name)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		data, err := json.Marshal(telemetry)
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "  %s: %s\n", name, data)
	}
}

// parseOverrideState accepts names as well as the wire values.
func parseOverrideState(s string) (int, error) {
	switch strings.ToLower(s) {
	case "open", "1":
		return 1, nil
	case "closed", "close", "-1":
		return -1, nil
	case "clear", "0":
		return 0, nil
	default:
		return 0, fmt.Errorf("invalid state %q (use open, closed or clear)", s)
	}
}

func (c *Console) cmdOverride(ctx context.Context, out io.Writer, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(out, "Usage: override <name> <open|closed|clear> [seconds]")
		return
	}
	state, err := parseOverrideState(args[1])
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	params := map[string]any{"state": state}
	if len(args) > 2 {
		secs, err := strconv.Atoi(args[2])
		if err != nil || secs < 0 {
			fmt.Fprintf(out, "Error: invalid duration %q\n", args[2])
			return
		}
		params["duration"] = secs
	}
	c.invoke(ctx, out, args[0], "override", params)
}

func (c *Console) cmdInvoke(ctx context.Context, out io.Writer, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(out, "Usage: invoke <name> <command> [json]")
		return
	}
	params := map[string]any{}
	if len(args) > 2 {
		if err := json.Unmarshal([]byte(strings.Join(args[2:], " ")), &params); err != nil {
			fmt.Fprintf(out, "Error: invalid JSON: %v\n", err)
			return
		}
	}
	c.invoke(ctx, out, args[0], args[1], params)
}

func (c *Console) invoke(ctx context.Context, out io.Writer, name, cmd string, params map[string]any) {
	response, err := c.manager.InvokeCommand(ctx, name, cmd, params)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	data, _ := json.Marshal(response)
	fmt.Fprintf(out, "%s\n", data)
}

func (c *Console) cmdDiscover(ctx context.Context, out io.Writer, args []string) {
	timeout := 3 * time.Second
	if len(args) > 0 {
		secs, err := strconv.Atoi(args[0])
		if err != nil || secs <= 0 {
			fmt.Fprintf(out, "Error: invalid timeout %q\n", args[0])
			return
		}
		timeout = time.Duration(secs) * time.Second
	}

	fmt.Fprintf(out, "Browsing for %s...\n", timeout)
	browseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	found := 0
	for svc := range discovery.Browse(browseCtx, discovery.BrowserConfig{}) {
		found++
		fmt.Fprintf(out, "  %-20s id=%s boot=%d %s:%d %v\n",
			svc.Instance, svc.ID, svc.Boot, svc.Host, svc.Port, svc.Addresses)
	}
	fmt.Fprintf(out, "Found %d devices\n", found)
}

func (c *Console) cmdLight(out io.Writer, args []string) {
	if c.sim == nil {
		fmt.Fprintln(out, "Not running in simulation mode")
		return
	}
	if len(args) != 1 {
		fmt.Fprintln(out, "Usage: light <lux>|auto")
		return
	}
	if args[0] == "auto" {
		c.sim.SetLux(-1)
		fmt.Fprintln(out, "Light follows the daylight curve")
		return
	}
	lux, err := strconv.Atoi(args[0])
	if err != nil || lux < 0 {
		fmt.Fprintf(out, "Error: invalid light level %q\n", args[0])
		return
	}
	c.sim.SetLux(lux)
	fmt.Fprintf(out, "Light pinned at %d lux\n", lux)
}

func (c *Console) cmdDoors(out io.Writer) {
	if c.sim == nil {
		fmt.Fprintln(out, "Not running in simulation mode")
		return
	}
	doors := c.sim.Doors()
	if len(doors) == 0 {
		fmt.Fprintln(out, "No simulated doors")
		return
	}
	for _, d := range doors {
		fmt.Fprintf(out, "  %-20s %3.0f%% open\n", d.Name, d.Position*100)
	}
}
