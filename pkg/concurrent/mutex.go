// Package concurrent provides the synchronization primitives used between
// device components: a timed mutex and a bounded message queue.
package concurrent

import (
	"sync"
	"time"
)

// Mutex is a mutual exclusion lock that also supports timed acquisition.
//
// The zero value is an unlocked mutex.
type Mutex struct {
	once sync.Once
	sem  chan struct{}
}

func (m *Mutex) init() {
	m.once.Do(func() {
		m.sem = make(chan struct{}, 1)
	})
}

// Lock blocks until the mutex is acquired.
func (m *Mutex) Lock() {
	m.init()
	m.sem <- struct{}{}
}

// TryLock acquires the mutex if it is free and reports whether it did.
func (m *Mutex) TryLock() bool {
	m.init()
	select {
	case m.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

// LockIn waits at most timeout for the mutex.
// Returns whether the mutex was acquired.
func (m *Mutex) LockIn(timeout time.Duration) bool {
	if timeout <= 0 {
		return m.TryLock()
	}
	m.init()
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case m.sem <- struct{}{}:
		return true
	case <-timer.C:
		return false
	}
}

// Unlock releases the mutex. Unlocking an unlocked mutex panics.
func (m *Mutex) Unlock() {
	m.init()
	select {
	case <-m.sem:
	default:
		panic("concurrent: unlock of unlocked mutex")
	}
}

// Locked runs fn while holding the mutex. The mutex is released even if fn panics.
func (m *Mutex) Locked(fn func()) {
	m.Lock()
	defer m.Unlock()
	fn()
}
