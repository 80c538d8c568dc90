package concurrent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestQueueOfferOverflow(t *testing.T) {
	q := NewQueue[int]("test", 2)

	assert.True(t, q.Offer(1))
	assert.True(t, q.Offer(2))
	assert.False(t, q.Offer(3), "offer on full queue should fail")
	assert.Equal(t, 2, q.Len())

	msg, ok := q.Poll()
	assert.True(t, ok)
	assert.Equal(t, 1, msg)
	msg, ok = q.Poll()
	assert.True(t, ok)
	assert.Equal(t, 2, msg)
	_, ok = q.Poll()
	assert.False(t, ok)
}

func TestQueueOfferInWaitsForSpace(t *testing.T) {
	q := NewQueue[string]("test", 1)
	q.Put("first")

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Take()
	}()
	assert.True(t, q.OfferIn(time.Second, "second"))
	assert.Equal(t, "second", q.Take())
}

func TestQueueOfferInTimesOut(t *testing.T) {
	q := NewQueue[string]("test", 1)
	q.Put("first")

	start := time.Now()
	assert.False(t, q.OfferIn(20*time.Millisecond, "second"))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestQueuePollIn(t *testing.T) {
	q := NewQueue[int]("test", 4)

	var got []int
	handler := func(v int) { got = append(got, v) }

	assert.False(t, q.PollIn(10*time.Millisecond, handler))

	go func() {
		time.Sleep(10 * time.Millisecond)
		q.Put(42)
	}()
	assert.True(t, q.PollIn(time.Second, handler))
	assert.Equal(t, []int{42}, got)
}

func TestQueuePollInZeroTimeout(t *testing.T) {
	q := NewQueue[int]("test", 4)
	q.Put(7)

	var got int
	assert.True(t, q.PollIn(0, func(v int) { got = v }))
	assert.Equal(t, 7, got)
}

func TestQueueDrain(t *testing.T) {
	q := NewQueue[int]("test", 8)
	for i := 1; i <= 5; i++ {
		q.Put(i)
	}

	var got []int
	n := q.Drain(3, func(v int) { got = append(got, v) })
	assert.Equal(t, 3, n)
	assert.Equal(t, []int{1, 2, 3}, got)

	n = q.Drain(0, func(v int) { got = append(got, v) })
	assert.Equal(t, 2, n)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got)
}

func TestQueueClear(t *testing.T) {
	q := NewQueue[int]("test", 4)
	q.Put(1)
	q.Put(2)
	q.Clear()

	assert.Equal(t, 0, q.Len())
	_, ok := q.Poll()
	assert.False(t, ok)
}

func TestQueueMinimumCapacity(t *testing.T) {
	q := NewQueue[int]("test", 0)
	assert.Equal(t, 1, q.Cap())
	assert.Equal(t, "test", q.Name())
}
