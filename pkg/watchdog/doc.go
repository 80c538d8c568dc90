// Package watchdog implements deadline timers bound to a single operation.
//
// A Watchdog is armed with Restart when an operation begins (or makes
// progress) and disarmed with Cancel when it completes. If neither happens
// before the deadline, the callback is told the watchdog timed out.
//
// # Guarantees
//
//   - Each arm cycle produces at most one TimedOut event.
//   - After Cancel or Restart returns, no TimedOut from an earlier arm cycle
//     is delivered. Every arm cycle carries a generation number and an
//     expiring deadline only fires if its generation is still current.
//   - Callbacks are serialized. They run on the goroutine that triggered
//     them (Restart, Cancel or the internal timer) and must not call
//     Restart or Cancel on the same watchdog synchronously.
package watchdog
