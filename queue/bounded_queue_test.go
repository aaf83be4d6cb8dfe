package queue

import (
	"testing"
	"time"
)

func TestPutAndGetRoundTrip(t *testing.T) {
	q := NewBoundedQueue(2)
	if !q.Put("a") {
		t.Fatalf("expected Put to succeed")
	}
	item, ok := q.Get(100 * time.Millisecond)
	if !ok || item != "a" {
		t.Fatalf("expected to get %q, got %v (ok=%v)", "a", item, ok)
	}
}

func TestPutDropsWhenFull(t *testing.T) {
	q := NewBoundedQueue(1)
	if !q.Put("a") {
		t.Fatalf("expected first Put to succeed")
	}
	if q.Put("b") {
		t.Fatalf("expected second Put to be dropped")
	}
}

func TestGetTimesOutWhenEmpty(t *testing.T) {
	q := NewBoundedQueue(1)
	start := time.Now()
	_, ok := q.Get(50 * time.Millisecond)
	if ok {
		t.Fatalf("expected timeout, got an item")
	}
	if time.Since(start) < 50*time.Millisecond {
		t.Fatalf("Get returned before its timeout elapsed")
	}
}

func TestDrainEmptiesQueue(t *testing.T) {
	q := NewBoundedQueue(4)
	q.Put("a")
	q.Put("b")
	q.Drain()
	if q.Len() != 0 {
		t.Fatalf("expected empty queue after drain, got len %d", q.Len())
	}
}

func TestDefaultCapacity(t *testing.T) {
	q := NewBoundedQueue(0)
	if q.Cap() != DefaultCapacity {
		t.Fatalf("expected default capacity %d, got %d", DefaultCapacity, q.Cap())
	}
}
