// Package state implements observable binary conditions.
//
// A Manager owns a group of states. Each StateSource is a named flag that the
// owning component sets or clears; everyone else sees it as a read-only State
// and can check it or wait for it to become set.
//
// Set and Clear never wait for observers: they flip a bit, bump the version
// and wake every waiter. They are safe to call from signal handlers, timer
// callbacks and any other goroutine.
//
// The manager additionally tracks a sticky change flag. AwaitStateChange
// returns as soon as any state in the group was set or cleared since the
// previous successful call, which lets status loops react without polling.
package state
