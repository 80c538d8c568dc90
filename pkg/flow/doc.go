// Package flow measures water flow with pulse-output flow sensors.
//
// A pulse.Counter samples the sensor's digital output and counts rising
// edges. A Meter turns the counted pulses into liters using the sensor's
// Q factor (pulses per second at one liter per minute) and reports the
// volume and average flow rate since the previous telemetry.
//
// Two peripherals are built on it: "flow-meter" on its own, and
// "flow-control", a valve with a flow meter on the same line.
package flow
