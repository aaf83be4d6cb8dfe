// Package pubsub implements the single primitive the core transport depends
// on: a duplicate-free, order-preserving list of callbacks that can be
// mutated safely from inside its own dispatch (spec.md §4.A).
package pubsub

import (
	"sync"
	"unsafe"
)

// Event is the value handed to every subscribed callback on Trigger.
type Event any

// Callback receives a dispatched Event.
type Callback func(Event)

// identity returns the address of cb's closure value, so copies of one
// callback share an identity while separately created closures (even of
// the same function literal) do not.
func identity(cb Callback) uintptr {
	return *(*uintptr)(unsafe.Pointer(&cb))
}

// Publisher maintains an ordered, duplicate-free list of callbacks.
//
// Trigger iterates over a snapshot of the callback list taken at entry, so a
// callback may Subscribe or Unsubscribe itself or another callback without
// affecting the recipients of the current dispatch (spec.md §4.A).
type Publisher struct {
	mu        sync.Mutex
	callbacks []Callback
	index     map[uintptr]int
}

// New returns an empty Publisher.
func New() *Publisher {
	return &Publisher{index: make(map[uintptr]int)}
}

// Subscribe appends cb if the same callback value is not already present
// and reports whether the insert happened.
func (p *Publisher) Subscribe(cb Callback) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := identity(cb)
	if _, ok := p.index[id]; ok {
		return false
	}
	p.index[id] = len(p.callbacks)
	p.callbacks = append(p.callbacks, cb)
	return true
}

// Unsubscribe removes cb if present and reports whether the remove happened.
func (p *Publisher) Unsubscribe(cb Callback) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := identity(cb)
	idx, ok := p.index[id]
	if !ok {
		return false
	}
	p.callbacks = append(p.callbacks[:idx:idx], p.callbacks[idx+1:]...)
	delete(p.index, id)
	for otherID, otherIdx := range p.index {
		if otherIdx > idx {
			p.index[otherID] = otherIdx - 1
		}
	}
	return true
}

// IsSubscribed reports whether cb is currently registered.
func (p *Publisher) IsSubscribed(cb Callback) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.index[identity(cb)]
	return ok
}

// Trigger dispatches event to a snapshot of the subscriber list taken at
// entry. Callbacks run synchronously on the calling goroutine.
func (p *Publisher) Trigger(event Event) {
	p.mu.Lock()
	snapshot := make([]Callback, len(p.callbacks))
	copy(snapshot, p.callbacks)
	p.mu.Unlock()

	for _, cb := range snapshot {
		cb(event)
	}
}

// Len reports the current number of subscribers.
func (p *Publisher) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.callbacks)
}
