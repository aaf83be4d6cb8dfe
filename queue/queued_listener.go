package queue

import (
	"fmt"
	"sync"
	"time"

	"mcl/mclerr"
	"mcl/transport"
)

// openTimeout bounds how long Open waits for both readiness signals, and
// how long Close waits for both loops to stop (spec.md §4.E).
const openTimeout = 10 * time.Second

// getTimeout bounds how long the consumer loop's Get call waits for the
// next record before rechecking the stop flag (spec.md §9).
const getTimeout = 200 * time.Millisecond

// Record is the value the producer loop places on the queue and the
// consumer loop delivers to QueuedListener's own subscribers.
type Record struct {
	Topic   string
	Payload []byte
}

// QueuedListener decouples a RawListener's reception from user callbacks.
// Reception runs on a producer goroutine that performs a non-blocking Put;
// delivery runs on a consumer goroutine that performs a blocking-with-
// timeout Get and invokes subscribers. The two are joined by a
// BoundedQueue (spec.md §4.E).
//
// spec.md's original design isolates reception in a separate OS process so
// interpreter-level latency spikes in the callback side cannot stall
// socket reads. Go goroutines are preemptible by the runtime scheduler
// regardless of what a callback does, so the same isolation is achieved
// here with two goroutines sharing a listener instead of a child process;
// every other observable behaviour (bounded capacity, drop-on-full
// producer, timeout consumer, dual readiness signals, bounded
// shutdown) is preserved.
type QueuedListener struct {
	listener *transport.RawListener
	queue    *BoundedQueue

	mu       sync.Mutex
	isOpen   bool
	stop     chan struct{}
	done     chan struct{}
	dropped  int64
	subs     []func(Record)
	subsLock sync.Mutex
}

// NewQueuedListener wraps listener with a bounded queue of the given
// capacity (capacity <= 0 selects DefaultCapacity).
func NewQueuedListener(listener *transport.RawListener, capacity int) *QueuedListener {
	return &QueuedListener{
		listener: listener,
		queue:    NewBoundedQueue(capacity),
	}
}

// Subscribe registers cb to be invoked, on the consumer goroutine, for
// every record the producer side successfully enqueues.
func (q *QueuedListener) Subscribe(cb func(Record)) {
	q.subsLock.Lock()
	defer q.subsLock.Unlock()
	q.subs = append(q.subs, cb)
}

// Dropped returns the number of records dropped because the queue was
// full when the producer attempted to enqueue them.
func (q *QueuedListener) Dropped() int64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Open starts the producer and consumer goroutines and waits for both
// readiness signals, failing if they are not both observed within
// openTimeout.
func (q *QueuedListener) Open() error {
	q.mu.Lock()
	if q.isOpen {
		q.mu.Unlock()
		return nil
	}
	q.stop = make(chan struct{})
	q.done = make(chan struct{})
	producerReady := make(chan struct{})
	consumerReady := make(chan struct{})
	q.mu.Unlock()

	go q.produce(producerReady)
	go q.consume(consumerReady)

	deadline := time.After(openTimeout)
	producerOK, consumerOK := false, false
	for !producerOK || !consumerOK {
		select {
		case <-producerReady:
			producerOK = true
			producerReady = nil
		case <-consumerReady:
			consumerOK = true
			consumerReady = nil
		case <-deadline:
			return mclerr.New(mclerr.TimeoutError, "queue.QueuedListener.Open",
				fmt.Errorf("readiness not observed within %s", openTimeout))
		}
		if producerReady == nil && consumerReady == nil {
			break
		}
	}

	q.mu.Lock()
	q.isOpen = true
	q.mu.Unlock()
	return nil
}

func (q *QueuedListener) produce(ready chan<- struct{}) {
	q.listener.Subscribe(func(d transport.Datagram) {
		if !q.queue.Put(Record{Topic: d.Topic, Payload: d.Payload}) {
			q.mu.Lock()
			q.dropped++
			q.mu.Unlock()
		}
	})
	close(ready)
}

func (q *QueuedListener) consume(ready chan<- struct{}) {
	close(ready)
	defer close(q.done)
	for {
		select {
		case <-q.stop:
			return
		default:
		}
		item, ok := q.queue.Get(getTimeout)
		if !ok {
			continue
		}
		record := item.(Record)
		q.subsLock.Lock()
		subs := append([]func(Record){}, q.subs...)
		q.subsLock.Unlock()
		for _, cb := range subs {
			cb(record)
		}
	}
}

// Close stops both loops, closes the wrapped RawListener (and its
// underlying socket), and waits up to openTimeout for the consumer
// goroutine to exit, dropping any queue remainder. Closing an
// already-closed listener is a no-op.
func (q *QueuedListener) Close() error {
	q.mu.Lock()
	if !q.isOpen {
		q.mu.Unlock()
		return nil
	}
	close(q.stop)
	q.isOpen = false
	q.mu.Unlock()

	listenerErr := q.listener.Close()

	select {
	case <-q.done:
	case <-time.After(openTimeout):
		return mclerr.New(mclerr.TimeoutError, "queue.QueuedListener.Close",
			fmt.Errorf("consumer did not stop within %s", openTimeout))
	}
	q.queue.Drain()
	return listenerErr
}
