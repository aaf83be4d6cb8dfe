package replay

import (
	"errors"
	"time"

	"mcl/mclerr"
	"mcl/registry"
)

// startTimeout bounds how long Start waits for the buffer to report
// readiness before giving up (spec.md's PROCESS_TIMEOUT, reused for the
// buffer-fill wait).
const startTimeout = 1 * time.Second

// Replay composes a BufferData and a ScheduleBroadcasts into the
// start/pause/stop facade described in spec.md §4.J.
type Replay struct {
	buffer    *BufferData
	scheduler *ScheduleBroadcasts
}

// New constructs a Replay over reader, resolving message types against
// reg and publishing at the given speed multiplier (speed > 0; 1.0 is
// real-time).
func New(reader Reader, reg *registry.Registry, speed float64) (*Replay, error) {
	buffer := NewBufferData(reader, DefaultQueueLength)
	scheduler, err := NewScheduleBroadcasts(buffer.Queue(), reg, speed)
	if err != nil {
		return nil, err
	}
	return &Replay{buffer: buffer, scheduler: scheduler}, nil
}

// Speed returns the configured playback speed multiplier.
func (r *Replay) Speed() float64 { return r.scheduler.Speed() }

// IsDataPending reports whether the buffer has more records to read from
// the source. Replay can still be broadcasting already-buffered records
// once this returns false.
func (r *Replay) IsDataPending() bool { return r.buffer.IsDataPending() }

// IsAlive reports whether the scheduler is actively broadcasting.
func (r *Replay) IsAlive() bool { return r.scheduler.IsAlive() }

// Start begins replay. If the previous run completed (no data pending,
// queue empty), the buffer and reader are reset to the beginning first.
// Start waits up to startTimeout for the buffer to report readiness
// before starting the scheduler. Returns false if already running.
func (r *Replay) Start() (bool, error) {
	if r.IsAlive() {
		return false, nil
	}

	if !r.buffer.IsDataPending() && r.buffer.Queue().Len() == 0 {
		if err := r.buffer.Reset(); err != nil {
			return false, err
		}
	}

	r.buffer.Start()
	deadline := time.Now().Add(startTimeout)
	for !r.buffer.IsReady() {
		if time.Now().After(deadline) {
			return false, mclerr.New(mclerr.TimeoutError, "replay.Replay.Start",
				errors.New("buffer did not become ready within the start timeout"))
		}
		time.Sleep(10 * time.Millisecond)
	}

	r.scheduler.Start()
	return r.IsAlive(), nil
}

// Pause stops both workers, preserving buffer and read position so a
// subsequent Start resumes from where playback left off. Returns false if
// not currently running.
func (r *Replay) Pause() (bool, error) {
	if !r.IsAlive() {
		return false, nil
	}
	if _, err := r.scheduler.Stop(); err != nil {
		return false, err
	}
	if _, err := r.buffer.Stop(); err != nil {
		return false, err
	}
	return true, nil
}

// Stop halts replay and resets the buffer position so the next Start
// replays from the beginning. The position is reset even when replay has
// already completed; the result reports whether replay was running.
func (r *Replay) Stop() (bool, error) {
	wasAlive := r.IsAlive()
	if wasAlive {
		if _, err := r.scheduler.Stop(); err != nil {
			return false, err
		}
	}
	if err := r.buffer.Reset(); err != nil {
		return false, err
	}
	return wasAlive, nil
}
