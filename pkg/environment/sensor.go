// Package environment reports air temperature and humidity from Sensirion
// SHT2x and SHT3x sensors on the I2C bus.
package environment

import (
	"errors"
	"fmt"

	"gobot.io/x/gobot/v2/drivers/i2c"
)

// Sensor types.
const (
	TypeSHT3x = "sht3x"
	TypeSHT2x = "sht2x"
)

// Default I2C addresses.
const (
	DefaultSHT3xAddress = i2c.SHT3xAddressA
	DefaultSHT2xAddress = 0x40
)

// ErrUnknownSensorType is returned for sensor types that are not supported.
var ErrUnknownSensorType = errors.New("unknown environment sensor type")

// Reading is one measurement.
type Reading struct {
	// Temperature in degrees Celsius.
	Temperature float64

	// Humidity is the relative humidity in percent.
	Humidity float64
}

// Sensor takes measurements.
type Sensor interface {
	Read() (Reading, error)
	Close() error
}

// Opener connects to the sensor of sensorType at address on bus. A negative
// bus means the board's default bus and a zero address the sensor's default
// address.
type Opener func(sensorType string, bus, address int) (Sensor, error)

// DefaultAddress returns the factory address of sensorType.
func DefaultAddress(sensorType string) (int, error) {
	switch sensorType {
	case TypeSHT3x:
		return DefaultSHT3xAddress, nil
	case TypeSHT2x:
		return DefaultSHT2xAddress, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownSensorType, sensorType)
	}
}

// GobotSensors opens sensors with gobot's i2c drivers on bus.
func GobotSensors(bus i2c.Connector) Opener {
	return func(sensorType string, busNumber, address int) (Sensor, error) {
		if address == 0 {
			var err error
			if address, err = DefaultAddress(sensorType); err != nil {
				return nil, err
			}
		}
		opts := []func(i2c.Config){i2c.WithAddress(address)}
		if busNumber >= 0 {
			opts = append(opts, i2c.WithBus(busNumber))
		}

		var s Sensor
		var start func() error
		switch sensorType {
		case TypeSHT3x:
			drv := i2c.NewSHT3xDriver(bus, opts...)
			s, start = sht3x{drv}, drv.Start
		case TypeSHT2x:
			drv := i2c.NewSHT2xDriver(bus, opts...)
			s, start = sht2x{drv}, drv.Start
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownSensorType, sensorType)
		}
		if err := start(); err != nil {
			return nil, fmt.Errorf("starting %s at 0x%02x: %w", sensorType, address, err)
		}
		return s, nil
	}
}

type sht3x struct {
	drv *i2c.SHT3xDriver
}

func (s sht3x) Read() (Reading, error) {
	temperature, humidity, err := s.drv.Sample()
	if err != nil {
		return Reading{}, err
	}
	return Reading{Temperature: float64(temperature), Humidity: float64(humidity)}, nil
}

func (s sht3x) Close() error {
	return s.drv.Halt()
}

type sht2x struct {
	drv *i2c.SHT2xDriver
}

func (s sht2x) Read() (Reading, error) {
	temperature, err := s.drv.Temperature()
	if err != nil {
		return Reading{}, err
	}
	humidity, err := s.drv.Humidity()
	if err != nil {
		return Reading{}, err
	}
	return Reading{Temperature: float64(temperature), Humidity: float64(humidity)}, nil
}

func (s sht2x) Close() error {
	return s.drv.Halt()
}
