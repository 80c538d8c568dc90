// Package door implements the light-driven chicken coop door.
//
// The Controller reads two limit switches to tell where the door is, decides
// where it should be from the ambient light level (or an active override)
// and drives the motor until the matching switch engages. A watchdog stops
// the automation for good if the door does not arrive in time.
package door
