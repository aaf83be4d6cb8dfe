package replay

import (
	"fmt"
	"sync"
	"time"

	"mcl/internal/clog"
	"mcl/mclerr"
	"mcl/metrics"
	"mcl/mlog"
	"mcl/queue"
	"mcl/registry"
	"mcl/transport"
)

// getTimeout bounds how long ScheduleBroadcasts' worker waits on an empty
// queue before checking whether the buffer has run dry.
const getTimeout = 100 * time.Millisecond

// broadcasterKey identifies one (message type, topic) pair's dedicated
// RawBroadcaster, cached for the life of a ScheduleBroadcasts run.
type broadcasterKey struct {
	typeName string
	topic    string
}

// ScheduleBroadcasts drains a bounded queue of mlog.Record values and
// re-publishes each one at its recorded elapsed-time offset, scaled by a
// speed multiplier (spec.md §4.J).
type ScheduleBroadcasts struct {
	q        *queue.BoundedQueue
	invSpeed float64
	reg      *registry.Registry

	mu           sync.Mutex
	running      bool
	stop         chan struct{}
	done         chan struct{}
	broadcasters map[broadcasterKey]*transport.RawBroadcaster
}

// NewScheduleBroadcasts constructs a scheduler draining q, resolving
// message types against reg. speed must be greater than zero; values
// above 1.0 replay faster than real-time, values below 1.0 replay slower.
func NewScheduleBroadcasts(q *queue.BoundedQueue, reg *registry.Registry, speed float64) (*ScheduleBroadcasts, error) {
	if speed <= 0 {
		return nil, mclerr.New(mclerr.ConfigError, "replay.NewScheduleBroadcasts",
			fmt.Errorf("speed must be greater than zero, got %v", speed))
	}
	return &ScheduleBroadcasts{q: q, invSpeed: 1.0 / speed, reg: reg}, nil
}

// Speed returns the configured playback speed multiplier.
func (s *ScheduleBroadcasts) Speed() float64 { return 1.0 / s.invSpeed }

// IsAlive reports whether the scheduling goroutine is running.
func (s *ScheduleBroadcasts) IsAlive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Start begins scheduling broadcasts in a new goroutine. Returns false if
// already running.
func (s *ScheduleBroadcasts) Start() bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return false
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.broadcasters = make(map[broadcasterKey]*transport.RawBroadcaster)
	s.running = true
	stop, done := s.stop, s.done
	s.mu.Unlock()

	go s.inject(stop, done)
	return true
}

func (s *ScheduleBroadcasts) inject(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()
	timeOrigin := time.Now()

	for {
		select {
		case <-stop:
			s.closeBroadcasters()
			return
		default:
		}

		item, ok := s.q.Get(getTimeout)
		if !ok {
			if s.q.Len() == 0 {
				s.closeBroadcasters()
				return
			}
			continue
		}
		record := item.(mlog.Record)

		schedule := timeOrigin.Add(time.Duration(s.invSpeed * record.ElapsedTime * float64(time.Second)))
		for time.Now().Before(schedule) {
			select {
			case <-stop:
				s.closeBroadcasters()
				return
			default:
			}
		}
		metrics.ReplayLag.Set(time.Since(schedule).Seconds())

		b, err := s.broadcasterFor(record.TypeName, record.Topic)
		if err != nil {
			clog.WarnErr("replay", err)
			continue
		}
		if err := b.Publish(record.Topic, record.Payload); err != nil {
			clog.WarnErr(fmt.Sprintf("replay: publish failed for %q/%q", record.TypeName, record.Topic), err)
		}
	}
}

func (s *ScheduleBroadcasts) broadcasterFor(typeName, topic string) (*transport.RawBroadcaster, error) {
	key := broadcasterKey{typeName: typeName, topic: topic}
	if b, ok := s.broadcasters[key]; ok {
		return b, nil
	}
	desc, ok := s.reg.Lookup(typeName)
	if !ok {
		return nil, mclerr.New(mclerr.SchemaError, "replay.ScheduleBroadcasts",
			fmt.Errorf("no registered descriptor for message type %q", typeName))
	}
	b, err := transport.NewRawBroadcaster(desc.Connection, nil)
	if err != nil {
		return nil, err
	}
	s.broadcasters[key] = b
	return b, nil
}

func (s *ScheduleBroadcasts) closeBroadcasters() {
	for _, b := range s.broadcasters {
		b.Close()
	}
}

// Stop halts scheduling. Returns false if not currently running; returns
// a TimeoutError if the worker does not join within processTimeout.
func (s *ScheduleBroadcasts) Stop() (bool, error) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return false, nil
	}
	stop, done := s.stop, s.done
	s.mu.Unlock()

	close(stop)
	select {
	case <-done:
	case <-time.After(processTimeout):
		return false, mclerr.New(mclerr.TimeoutError, "replay.ScheduleBroadcasts.Stop",
			fmt.Errorf("worker did not join within %s", processTimeout))
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return true, nil
}
