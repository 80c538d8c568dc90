// Package valve drives motorized solenoid valves.
//
// A Strategy translates open/close intents into motor commands for one class
// of valve hardware: latching valves are pulsed and left unpowered, holding
// valves (normally open or normally closed) are driven and held for as long
// as they must stay away from their resting state.
//
// A Component binds a strategy to a motor and keeps the valve in the state
// demanded by its schedules, unless an override is active. It publishes
// state events and telemetry through its MQTT root and exposes the
// "override" command.
package valve
