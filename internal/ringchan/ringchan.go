// Package ringchan provides a bounded channel that never blocks producers:
// when the buffer is full the oldest element is discarded.
package ringchan

import (
	"sync"
	"sync/atomic"
)

// RingChannel is a bounded channel-like buffer with overwrite-oldest semantics.
//
//	rc := ringchan.New[Event](16)
//	rc.Send(ev)             // never blocks
//	for ev := range rc.C() {
//	    ...
//	}
//
// Send must not race with Close; producers that outlive the consumer should
// serialise the two, as the device registry does with its own lock.
type RingChannel[T any] struct {
	ch      chan T
	closeMu sync.Once
	closed  atomic.Bool
	metrics Metrics
}

// New creates a RingChannel with the given capacity.
func New[T any](capacity int) *RingChannel[T] {
	if capacity <= 0 {
		panic("ringchan: capacity must be > 0")
	}
	return &RingChannel[T]{ch: make(chan T, capacity)}
}

// C returns the receive side. It is closed by Close.
func (rc *RingChannel[T]) C() <-chan T {
	return rc.ch
}

// Send inserts v, discarding the oldest element if the buffer is full.
// Returns true if an element was dropped. Sends after Close are ignored.
func (rc *RingChannel[T]) Send(v T) bool {
	if rc.closed.Load() {
		return false
	}

	dropped := false
	for {
		select {
		case rc.ch <- v:
			atomic.AddInt64(&rc.metrics.Written, 1)
			return dropped
		default:
		}
		select {
		case <-rc.ch:
			atomic.AddInt64(&rc.metrics.Overwritten, 1)
			dropped = true
		default:
		}
	}
}

// Len returns the number of buffered elements.
func (rc *RingChannel[T]) Len() int {
	return len(rc.ch)
}

// Close closes the receive side. It is safe to call more than once.
func (rc *RingChannel[T]) Close() {
	rc.closeMu.Do(func() {
		rc.closed.Store(true)
		close(rc.ch)
	})
}

// Metrics counts what happened to sent elements.
type Metrics struct {
	Written     int64
	Overwritten int64
}

// GetMetrics returns a snapshot of the counters.
func (rc *RingChannel[T]) GetMetrics() Metrics {
	return Metrics{
		Written:     atomic.LoadInt64(&rc.metrics.Written),
		Overwritten: atomic.LoadInt64(&rc.metrics.Overwritten),
	}
}
