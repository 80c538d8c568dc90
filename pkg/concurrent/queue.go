package concurrent

import (
	"log/slog"
	"math"
	"time"
)

// Forever can be passed as a timeout to wait without limit.
const Forever = time.Duration(math.MaxInt64)

// Queue is a bounded FIFO of messages shared between goroutines.
// Producers never see partially delivered messages; consumers receive
// messages in the order they were accepted.
type Queue[T any] struct {
	name string
	ch   chan T
}

// NewQueue creates a queue holding at most capacity messages.
func NewQueue[T any](name string, capacity int) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{
		name: name,
		ch:   make(chan T, capacity),
	}
}

// Name returns the queue name.
func (q *Queue[T]) Name() string {
	return q.name
}

// Cap returns the queue capacity.
func (q *Queue[T]) Cap() int {
	return cap(q.ch)
}

// Len returns the number of pending messages.
func (q *Queue[T]) Len() int {
	return len(q.ch)
}

// Offer enqueues msg without waiting. If the queue is full the message is
// dropped, an overflow is logged and false is returned.
func (q *Queue[T]) Offer(msg T) bool {
	select {
	case q.ch <- msg:
		return true
	default:
		slog.Warn("Overflow in queue", slog.String("queue", q.name))
		return false
	}
}

// OfferIn waits at most timeout for space in the queue.
func (q *Queue[T]) OfferIn(timeout time.Duration, msg T) bool {
	if timeout <= 0 {
		return q.Offer(msg)
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case q.ch <- msg:
		return true
	case <-timer.C:
		slog.Warn("Overflow in queue", slog.String("queue", q.name))
		return false
	}
}

// Put enqueues msg, waiting as long as it takes for space.
func (q *Queue[T]) Put(msg T) {
	q.ch <- msg
}

// Take removes the oldest message, waiting as long as it takes for one.
func (q *Queue[T]) Take() T {
	return <-q.ch
}

// Poll removes the oldest message if one is available.
func (q *Queue[T]) Poll() (T, bool) {
	select {
	case msg := <-q.ch:
		return msg, true
	default:
		var zero T
		return zero, false
	}
}

// PollIn waits at most timeout for a message and passes it to handler.
// Returns whether a message was handled.
func (q *Queue[T]) PollIn(timeout time.Duration, handler func(T)) bool {
	if timeout <= 0 {
		msg, ok := q.Poll()
		if ok {
			handler(msg)
		}
		return ok
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case msg := <-q.ch:
		handler(msg)
		return true
	case <-timer.C:
		return false
	}
}

// Drain passes up to max pending messages to handler without waiting.
// A max of zero or less drains everything pending. Returns the number handled.
func (q *Queue[T]) Drain(max int, handler func(T)) int {
	n := 0
	for max <= 0 || n < max {
		msg, ok := q.Poll()
		if !ok {
			break
		}
		handler(msg)
		n++
	}
	return n
}

// Clear discards all pending messages.
func (q *Queue[T]) Clear() {
	for {
		if _, ok := q.Poll(); !ok {
			return
		}
	}
}
