// Package persistence stores device state that must survive restarts:
// the instance identifier, the boot counter and the last known position of
// valves that cannot report it themselves.
package persistence
