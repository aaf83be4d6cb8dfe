// Package replay implements the historic-data replay engine from
// spec.md §4.J: BufferData reads a logged record stream onto a bounded
// queue ahead of real-time consumption, ScheduleBroadcasts drains that
// queue and re-publishes each record at its recorded offset, and Replay
// composes the two into a start/pause/stop facade.
package replay

import (
	"fmt"
	"io"
	"sync"
	"time"

	"mcl/internal/clog"
	"mcl/mclerr"
	"mcl/mlog"
	"mcl/queue"
)

// processTimeout bounds how long a Stop call waits for its worker
// goroutine to join (spec.md's PROCESS_TIMEOUT).
const processTimeout = 1 * time.Second

// Reader is the data source BufferData drains. mlog.LogReader and
// mlog.DirectoryReader both satisfy it. Read returns io.EOF once the
// source is exhausted, or any other error (e.g. a FormatError from a
// malformed record line) once and for all, ending the buffering run.
type Reader interface {
	IsDataPending() bool
	Read() (mlog.Record, error)
	Reset() error
}

// DefaultQueueLength is BufferData's default queue capacity, matching the
// original implementation's default (spec.md §4.J).
const DefaultQueueLength = 5000

// BufferData asynchronously drains a Reader onto a bounded queue so a
// slow log-file resource does not stall real-time playback (spec.md §4.J).
type BufferData struct {
	reader Reader
	length int

	mu          sync.Mutex
	queue       *queue.BoundedQueue
	running     bool
	stop        chan struct{}
	done        chan struct{}
	ready       bool
	dataPending bool
}

// NewBufferData constructs a BufferData over reader with the given queue
// capacity. length <= 0 selects DefaultQueueLength.
func NewBufferData(reader Reader, length int) *BufferData {
	if length <= 0 {
		length = DefaultQueueLength
	}
	return &BufferData{
		reader:      reader,
		length:      length,
		queue:       queue.NewBoundedQueue(length),
		dataPending: true,
	}
}

// Queue returns the bounded queue buffered records are delivered on.
func (b *BufferData) Queue() *queue.BoundedQueue {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.queue
}

// IsReady reports whether the queue has filled or the reader has been
// fully drained, whichever happens first. It stays true until the next
// Start, Stop or Reset.
func (b *BufferData) IsReady() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

// IsDataPending reports whether the reader has more records to buffer.
func (b *BufferData) IsDataPending() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dataPending
}

// IsAlive reports whether the buffering goroutine is running.
func (b *BufferData) IsAlive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.running
}

// Start begins buffering in a new goroutine. It resumes from the queue's
// current contents if previously stopped (not reset). Returns false if
// already running.
func (b *BufferData) Start() bool {
	b.mu.Lock()
	if b.running {
		b.mu.Unlock()
		return false
	}
	b.ready = false
	b.dataPending = true
	b.stop = make(chan struct{})
	b.done = make(chan struct{})
	b.running = true
	q := b.queue
	b.mu.Unlock()

	go b.run(q, b.stop, b.done)
	return true
}

func (b *BufferData) run(q *queue.BoundedQueue, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer func() {
		b.mu.Lock()
		b.running = false
		b.mu.Unlock()
	}()
	var pending *mlog.Record

	for {
		select {
		case <-stop:
			return
		default:
		}

		if pending == nil {
			if !b.reader.IsDataPending() {
				b.mu.Lock()
				b.ready = true
				b.dataPending = false
				b.mu.Unlock()
				return
			}
			rec, err := b.reader.Read()
			if err != nil {
				if err != io.EOF {
					clog.WarnErr("replay: buffering stopped", err)
				}
				b.mu.Lock()
				b.ready = true
				b.dataPending = false
				b.mu.Unlock()
				return
			}
			pending = &rec
		}

		if q.Put(*pending) {
			pending = nil
			continue
		}
		// Queue is full: report readiness (matches the original's "queue
		// full counts as ready") and wait for space or a stop signal.
		b.mu.Lock()
		b.ready = true
		b.mu.Unlock()

		select {
		case <-stop:
			return
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// Stop halts buffering without resetting queue contents or the reader's
// position, so a subsequent Start resumes from where it left off. Returns
// false if not currently running; returns a TimeoutError if the worker
// does not join within processTimeout.
func (b *BufferData) Stop() (bool, error) {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return false, nil
	}
	stop, done := b.stop, b.done
	b.mu.Unlock()

	close(stop)
	select {
	case <-done:
	case <-time.After(processTimeout):
		return false, mclerr.New(mclerr.TimeoutError, "replay.BufferData.Stop",
			fmt.Errorf("worker did not join within %s", processTimeout))
	}

	b.mu.Lock()
	b.running = false
	b.ready = false
	b.dataPending = true
	b.mu.Unlock()
	return true, nil
}

// Reset stops buffering (if active), empties the queue, and rewinds the
// reader so the next Start replays from the beginning (spec.md §4.J). The
// queue itself is kept, so a ScheduleBroadcasts draining it keeps seeing
// every record buffered afterwards.
func (b *BufferData) Reset() error {
	if b.IsAlive() {
		if _, err := b.Stop(); err != nil {
			return err
		}
	}
	b.mu.Lock()
	b.queue.Drain()
	b.ready = false
	b.dataPending = true
	b.mu.Unlock()
	return b.reader.Reset()
}
