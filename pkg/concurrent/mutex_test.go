package concurrent

import (
	"sync"
	"testing"
	"time"
)

func TestMutexExclusion(t *testing.T) {
	var m Mutex
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Locked(func() {
				v := counter
				time.Sleep(100 * time.Microsecond)
				counter = v + 1
			})
		}()
	}
	wg.Wait()

	if counter != 50 {
		t.Errorf("counter = %d, want 50", counter)
	}
}

func TestMutexTryLock(t *testing.T) {
	var m Mutex
	if !m.TryLock() {
		t.Fatal("TryLock() on free mutex = false, want true")
	}
	if m.TryLock() {
		t.Error("TryLock() on held mutex = true, want false")
	}
	m.Unlock()
	if !m.TryLock() {
		t.Error("TryLock() after Unlock = false, want true")
	}
}

func TestMutexLockIn(t *testing.T) {
	var m Mutex
	m.Lock()

	start := time.Now()
	if m.LockIn(30 * time.Millisecond) {
		t.Fatal("LockIn() on held mutex = true, want false")
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("LockIn() returned after %v, want >= 30ms", elapsed)
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		m.Unlock()
	}()
	if !m.LockIn(time.Second) {
		t.Error("LockIn() after release = false, want true")
	}
}

func TestMutexLockedReleasesOnPanic(t *testing.T) {
	var m Mutex
	func() {
		defer func() { _ = recover() }()
		m.Locked(func() { panic("boom") })
	}()
	if !m.TryLock() {
		t.Error("mutex still held after panic in Locked()")
	}
}

func TestMutexUnlockOfUnlockedPanics(t *testing.T) {
	var m Mutex
	defer func() {
		if recover() == nil {
			t.Error("Unlock() of unlocked mutex did not panic")
		}
	}()
	m.Unlock()
}
