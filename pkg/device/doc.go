// Package device hosts the peripherals of a farmhub device.
//
// Peripherals are created by type-specific factories from the device file.
// A peripheral that cannot be created is recorded in the init report and
// skipped; the rest of the device keeps booting. The manager publishes
// per-peripheral telemetry, forwards live configuration and shuts
// peripherals down in reverse creation order.
package device
