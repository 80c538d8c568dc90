// Package pulse counts pulses on digital inputs by sampling them from a
// task. It serves pulse-output sensors that are too fast for the switch
// sampler, such as flow meters and fence pulse detectors.
package pulse

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/farmhub/farmhub-go/pkg/switches"
	"github.com/farmhub/farmhub-go/pkg/task"
)

// DefaultSampleInterval is how often the pulse input is read. It bounds the
// highest countable pulse frequency to half its inverse.
const DefaultSampleInterval = time.Millisecond

// Counter counts rising edges on a digital input.
type Counter struct {
	name   string
	reader switches.DigitalReader
	pin    string
	logger *slog.Logger

	// last is only touched by the sampling task.
	last   int
	pulses atomic.Uint64
	errors atomic.Uint64

	loop *task.Handle
}

// NewCounter reads pin once and starts sampling it every interval.
func NewCounter(name string, reader switches.DigitalReader, pin string, interval time.Duration, logger *slog.Logger) (*Counter, error) {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	level, err := reader.DigitalRead(pin)
	if err != nil {
		return nil, fmt.Errorf("reading pulse input %s: %w", pin, err)
	}
	c := &Counter{
		name:   name,
		reader: reader,
		pin:    pin,
		logger: logger,
		last:   level,
	}
	c.loop = task.Loop(name+":pulses", 2048, task.DefaultPriority, func(t *task.Task) {
		t.DelayUntil(interval)
		if !t.Stopped() {
			c.sample()
		}
	})
	return c, nil
}

func (c *Counter) sample() {
	level, err := c.reader.DigitalRead(c.pin)
	if err != nil {
		if c.errors.Add(1) == 1 {
			c.logger.Warn("Failed to read pulse input",
				slog.String("counter", c.name),
				slog.String("pin", c.pin),
				slog.Any("error", err))
		}
		return
	}
	if level != 0 && c.last == 0 {
		c.pulses.Add(1)
	}
	c.last = level
}

// TakeCount returns the pulses counted since the previous call.
func (c *Counter) TakeCount() uint64 {
	return c.pulses.Swap(0)
}

// Stop ends sampling.
func (c *Counter) Stop() {
	c.loop.Stop()
	c.loop.Wait()
}
