// Package discovery advertises farmhub devices over mDNS/DNS-SD and finds
// them again.
//
// Every running device registers one instance of the _farmhub._tcp service.
// The instance name is the device instance name from the configuration.
// The port is the MQTT broker port the device talks to, so tools on the
// LAN can find both the device and its broker.
//
// TXT records:
//   - id: the persistent device ID
//   - instance: the configured instance name
//   - boot: the boot counter
//   - fw: the firmware version (optional)
//   - prefix: the MQTT topic prefix (optional)
package discovery
