package capture

import (
	"sync/atomic"
)

// DefaultQueueCapacity is the number of frames buffered between the
// acquisition and inference loops. Two slots keep the consumer one frame
// behind at worst without letting latency build up.
const DefaultQueueCapacity = 2

// FrameQueue is a fixed-capacity single-producer/single-consumer frame
// buffer. Neither side ever blocks: a push against a full queue drops the
// incoming frame and keeps the queued ones, and a pop from an empty queue
// returns immediately.
type FrameQueue struct {
	ch    chan Frame
	drops atomic.Uint64
}

// NewFrameQueue creates a queue with the given capacity.
// Capacities below 1 use DefaultQueueCapacity.
func NewFrameQueue(capacity int) *FrameQueue {
	if capacity < 1 {
		capacity = DefaultQueueCapacity
	}
	return &FrameQueue{ch: make(chan Frame, capacity)}
}

// TryPush enqueues a copy of the frame. The caller keeps ownership of its
// frame either way. Returns false when the queue is full, in which case the
// frame is counted as dropped and nothing is enqueued.
func (q *FrameQueue) TryPush(f Frame) bool {
	if len(q.ch) == cap(q.ch) {
		q.drops.Add(1)
		return false
	}
	clone := f.Clone()
	select {
	case q.ch <- clone:
		return true
	default:
		// Single producer, so this only races a concurrent Clear.
		clone.Close()
		q.drops.Add(1)
		return false
	}
}

// TryPop dequeues the oldest frame, transferring ownership to the caller.
// Returns false immediately when the queue is empty.
func (q *FrameQueue) TryPop() (Frame, bool) {
	select {
	case f := <-q.ch:
		return f, true
	default:
		return Frame{}, false
	}
}

// Clear drains and releases every queued frame. Called on session stop so a
// restarted session never serves stale frames.
func (q *FrameQueue) Clear() {
	for {
		select {
		case f := <-q.ch:
			f.Close()
		default:
			return
		}
	}
}

// Len returns the number of frames currently queued.
func (q *FrameQueue) Len() int { return len(q.ch) }

// Capacity returns the fixed queue capacity.
func (q *FrameQueue) Capacity() int { return cap(q.ch) }

// Drops returns the number of frames discarded by TryPush since creation.
func (q *FrameQueue) Drops() uint64 { return q.drops.Load() }
