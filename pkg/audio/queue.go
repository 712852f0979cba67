package audio

import (
	"log/slog"
	"sync/atomic"
	"time"
)

// DefaultQueueDepth is the frame queue capacity used when none is configured.
// At 16 kHz / 1024-sample frames this buffers roughly 16 seconds of audio.
const DefaultQueueDepth = 256

// QueueStats is a point-in-time snapshot of queue counters.
type QueueStats struct {
	// Enqueued counts frames accepted into the queue.
	Enqueued uint64

	// Dropped counts frames evicted because the queue was full. Evicted frames
	// are always the oldest; the newest frame is never rejected.
	Dropped uint64

	// Depth is the number of frames currently buffered.
	Depth int
}

// FrameQueue is a bounded FIFO of [Frame] values connecting the capture
// callback to the frame consumer.
//
// Enqueue never blocks: when the queue is full, the oldest buffered frame is
// dropped to make room and the drop counter is incremented. Losing the oldest
// audio is preferable to stalling the capture callback or losing the newest.
//
// FrameQueue assumes a single producer and a single consumer, which is the
// only topology the pipeline creates.
type FrameQueue struct {
	frames   chan Frame
	enqueued atomic.Uint64
	dropped  atomic.Uint64
}

// NewFrameQueue creates a queue buffering up to depth frames. A depth <= 0
// falls back to [DefaultQueueDepth].
func NewFrameQueue(depth int) *FrameQueue {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	return &FrameQueue{frames: make(chan Frame, depth)}
}

// Enqueue adds f to the queue, evicting the oldest buffered frame if the
// queue is full. It never blocks and is safe to call from a device callback.
func (q *FrameQueue) Enqueue(f Frame) {
	for {
		select {
		case q.frames <- f:
			q.enqueued.Add(1)
			return
		default:
		}
		// Full: evict the head and retry. With a single producer the retry
		// succeeds immediately unless the consumer raced us to the slot, in
		// which case the next loop iteration wins.
		select {
		case old := <-q.frames:
			if q.dropped.Add(1) == 1 {
				slog.Warn("frame queue full, dropping oldest audio",
					"depth", cap(q.frames), "droppedSeq", old.Seq)
			}
		default:
		}
	}
}

// Dequeue removes and returns the oldest frame, blocking up to timeout.
// The second return value reports whether a frame was delivered; false means
// the timeout elapsed with the queue empty.
func (q *FrameQueue) Dequeue(timeout time.Duration) (Frame, bool) {
	select {
	case f := <-q.frames:
		return f, true
	default:
	}
	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case f := <-q.frames:
		return f, true
	case <-t.C:
		return Frame{}, false
	}
}

// Len returns the number of frames currently buffered.
func (q *FrameQueue) Len() int { return len(q.frames) }

// Stats returns a snapshot of the queue counters.
func (q *FrameQueue) Stats() QueueStats {
	return QueueStats{
		Enqueued: q.enqueued.Load(),
		Dropped:  q.dropped.Load(),
		Depth:    len(q.frames),
	}
}
