package audio

import (
	"context"
	"time"
)

// DefaultPollTimeout is how long [Sequencer.Next] waits on an empty queue
// before re-checking liveness. Silence shorter than this costs nothing; the
// timeout only bounds how quickly end-of-stream is noticed.
const DefaultPollTimeout = time.Second

// Liveness reports whether the upstream producer may still deliver frames.
// [CaptureSource] satisfies it.
type Liveness interface {
	Active() bool
}

// Sequencer is a one-shot pull iterator over a [FrameQueue]. It delivers
// frames strictly in queue order and distinguishes a quiet stream from a
// finished one: an empty queue alone never ends iteration, only an inactive
// source with a drained queue does.
//
// A Sequencer is not restartable. Once Next returns false it returns false
// forever, even if frames appear later.
type Sequencer struct {
	queue       *FrameQueue
	source      Liveness
	pollTimeout time.Duration
	done        bool
}

// NewSequencer creates a sequencer over queue, using source to detect end of
// stream. A pollTimeout <= 0 falls back to [DefaultPollTimeout].
func NewSequencer(queue *FrameQueue, source Liveness, pollTimeout time.Duration) *Sequencer {
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	return &Sequencer{queue: queue, source: source, pollTimeout: pollTimeout}
}

// Next blocks until a frame is available, the stream has ended, or ctx is
// cancelled. It returns ok=false exactly once the source is inactive and the
// queue is drained, or immediately on cancellation.
func (s *Sequencer) Next(ctx context.Context) (Frame, bool) {
	if s.done {
		return Frame{}, false
	}
	for {
		select {
		case <-ctx.Done():
			s.done = true
			return Frame{}, false
		default:
		}

		if f, ok := s.queue.Dequeue(s.pollTimeout); ok {
			return f, true
		}

		// Timed out. End only when the producer is gone AND nothing slipped
		// into the queue between the dequeue and the liveness check.
		if !s.source.Active() && s.queue.Len() == 0 {
			s.done = true
			return Frame{}, false
		}
	}
}
