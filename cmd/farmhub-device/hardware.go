package main

import (
	"errors"
	"fmt"
	"log/slog"

	"gobot.io/x/gobot/v2/drivers/i2c"
	"gobot.io/x/gobot/v2/platforms/raspi"

	"github.com/farmhub/farmhub-go/pkg/environment"
	"github.com/farmhub/farmhub-go/pkg/light"
	"github.com/farmhub/farmhub-go/pkg/motor"
	"github.com/farmhub/farmhub-go/pkg/switches"
)

// Pins is the GPIO surface the peripherals use.
type Pins interface {
	motor.PwmWriter
	switches.DigitalReader
}

// Hardware is the board the device runs on.
type Hardware struct {
	Pins Pins

	// Lux is nil when no light sensor is attached.
	Lux light.LuxReader

	// Environment opens temperature and humidity sensors.
	Environment environment.Opener

	close func() error
}

// Close releases the board.
func (h *Hardware) Close() error {
	if h.close == nil {
		return nil
	}
	return h.close()
}

// newRaspiHardware connects to the Raspberry Pi GPIO and the BH1750 on the
// default I2C bus.
func newRaspiHardware(logger *slog.Logger) (*Hardware, error) {
	adaptor := raspi.NewAdaptor()
	if err := adaptor.Connect(); err != nil {
		return nil, fmt.Errorf("connecting to raspi: %w", err)
	}

	hw := &Hardware{Pins: adaptor, Environment: environment.GobotSensors(adaptor)}

	bh1750 := i2c.NewBH1750Driver(adaptor)
	if err := bh1750.Start(); err != nil {
		logger.Warn("No BH1750 light sensor found", slog.Any("error", err))
		hw.close = adaptor.Finalize
		return hw, nil
	}
	logger.Info("Found BH1750 light sensor")
	hw.Lux = bh1750
	hw.close = func() error {
		return errors.Join(bh1750.Halt(), adaptor.Finalize())
	}
	return hw, nil
}
