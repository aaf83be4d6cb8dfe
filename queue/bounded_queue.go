// Package queue implements the bounded producer/consumer queue and the
// QueuedListener decoupling wrapper from spec.md §4.E.
package queue

import (
	"time"

	"mcl/metrics"
)

// DefaultCapacity is QueuedListener's default queue capacity (spec.md §4.E).
const DefaultCapacity = 5000

// BoundedQueue is a fixed-capacity FIFO with a non-blocking producer side
// (Put drops on a full queue) and a blocking-with-timeout consumer side
// (Get waits up to a deadline), matching the cross-process queue contract
// in spec.md §4.E.
type BoundedQueue struct {
	items chan interface{}
}

// NewBoundedQueue constructs a queue with the given capacity. capacity <= 0
// selects DefaultCapacity.
func NewBoundedQueue(capacity int) *BoundedQueue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &BoundedQueue{items: make(chan interface{}, capacity)}
}

// Put attempts to enqueue item without blocking. It reports whether the
// item was accepted; a full queue causes the item to be dropped
// (spec.md §4.E: "If the queue fills, the child drops further records").
func (q *BoundedQueue) Put(item interface{}) bool {
	select {
	case q.items <- item:
		metrics.QueueDepth.Set(float64(len(q.items)))
		return true
	default:
		metrics.QueueDropped.Inc()
		return false
	}
}

// Get waits up to timeout for an item to become available. It returns the
// item and true on success, or nil and false on timeout.
func (q *BoundedQueue) Get(timeout time.Duration) (interface{}, bool) {
	select {
	case item := <-q.items:
		metrics.QueueDepth.Set(float64(len(q.items)))
		return item, true
	case <-time.After(timeout):
		return nil, false
	}
}

// Len returns the number of items currently buffered.
func (q *BoundedQueue) Len() int { return len(q.items) }

// Cap returns the queue's fixed capacity.
func (q *BoundedQueue) Cap() int { return cap(q.items) }

// Drain discards every item currently buffered, matching the "drops any
// queue remainder" behaviour QueuedListener.Close performs on shutdown
// (spec.md §4.E).
func (q *BoundedQueue) Drain() {
	for {
		select {
		case <-q.items:
		default:
			return
		}
	}
}
