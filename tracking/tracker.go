// Package tracking buffers pointer/gaze samples between the input callback
// side and the frame loop. The producer (an OS event callback or input
// goroutine) pushes samples into a bounded channel; the consumer drains
// them into a ring once per frame. The channel is the only synchronization
// boundary: the ring is touched by the consumer alone.
package tracking

import (
	"time"

	"github.com/setanarut/v"
)

// Sample is one pointer or gaze observation.
type Sample struct {
	Pos  v.Vec
	Time time.Time
}

// Tracker is a single-writer/multi-reader bounded sample buffer. Push is
// safe to call from one producer goroutine; Drain, Latest and Snapshot
// belong to the consumer.
type Tracker struct {
	in   chan Sample
	ring []Sample
	next int
	size int
}

// NewTracker creates a tracker keeping the last ringSize samples.
// queueSize bounds how many samples may sit between two Drain calls;
// overflow drops the newest sample rather than blocking the producer.
func NewTracker(ringSize, queueSize int) *Tracker {
	if ringSize < 1 {
		ringSize = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Tracker{
		in:   make(chan Sample, queueSize),
		ring: make([]Sample, 0, ringSize),
	}
}

// Push offers a sample from the producer side. It never blocks; when the
// queue is full the sample is dropped.
func (t *Tracker) Push(s Sample) {
	select {
	case t.in <- s:
	default:
	}
}

// Drain moves all queued samples into the ring. Call once per frame from
// the consumer.
func (t *Tracker) Drain() {
	for {
		select {
		case s := <-t.in:
			t.append(s)
		default:
			return
		}
	}
}

func (t *Tracker) append(s Sample) {
	if len(t.ring) < cap(t.ring) {
		t.ring = append(t.ring, s)
		t.next = len(t.ring) % cap(t.ring)
		return
	}
	t.ring[t.next] = s
	t.next = (t.next + 1) % len(t.ring)
}

// Latest returns the most recent drained sample, if any.
func (t *Tracker) Latest() (Sample, bool) {
	if len(t.ring) == 0 {
		return Sample{}, false
	}
	idx := t.next - 1
	if idx < 0 {
		idx = len(t.ring) - 1
	}
	return t.ring[idx], true
}

// Snapshot returns up to the last n drained samples in chronological order.
func (t *Tracker) Snapshot(n int) []Sample {
	if n > len(t.ring) {
		n = len(t.ring)
	}
	out := make([]Sample, 0, n)
	idx := t.next - n
	if idx < 0 {
		idx += len(t.ring)
	}
	for i := 0; i < n; i++ {
		out = append(out, t.ring[idx])
		idx = (idx + 1) % len(t.ring)
	}
	return out
}
