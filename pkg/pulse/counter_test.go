package pulse

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInput struct {
	mu    sync.Mutex
	level int
	err   error
	reads int
}

func (f *fakeInput) DigitalRead(string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return f.level, f.err
}

func (f *fakeInput) set(level int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.level = level
}

func (f *fakeInput) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

// waitForSample blocks until the counter has read the input again.
func waitForSample(t *testing.T, in *fakeInput) {
	t.Helper()
	n := in.readCount()
	require.Eventually(t, func() bool { return in.readCount() > n+1 }, time.Second, time.Millisecond)
}

func TestCounterCountsRisingEdges(t *testing.T) {
	in := &fakeInput{}
	c, err := NewCounter("garden", in, "22", time.Millisecond, nil)
	require.NoError(t, err)
	defer c.Stop()

	for range 3 {
		in.set(1)
		waitForSample(t, in)
		in.set(0)
		waitForSample(t, in)
	}

	assert.Equal(t, uint64(3), c.TakeCount())
	assert.Equal(t, uint64(0), c.TakeCount(), "count resets")

	// Holding the level high is not a pulse.
	in.set(1)
	waitForSample(t, in)
	waitForSample(t, in)
	assert.Equal(t, uint64(1), c.TakeCount())
}

func TestCounterStartsFromCurrentLevel(t *testing.T) {
	in := &fakeInput{level: 1}
	c, err := NewCounter("garden", in, "22", time.Millisecond, nil)
	require.NoError(t, err)
	defer c.Stop()

	waitForSample(t, in)
	assert.Equal(t, uint64(0), c.TakeCount())
}

func TestCounterInitialReadError(t *testing.T) {
	in := &fakeInput{err: errors.New("no gpio")}
	_, err := NewCounter("garden", in, "22", time.Millisecond, nil)
	assert.Error(t, err)
}
