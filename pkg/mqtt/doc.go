// Package mqtt connects components to the broker.
//
// Every component gets a Root: a topic prefix under which it publishes
// telemetry and events and receives commands. A command named "override" on
// root "farmhub/coop/door" listens on "farmhub/coop/door/commands/override"
// and answers on "farmhub/coop/door/responses/override". Payloads are JSON.
//
// Roots sit on top of a Transport. GobotTransport talks to a real broker
// through gobot's MQTT adaptor; MemoryTransport keeps everything in process
// for tests and simulation.
package mqtt
