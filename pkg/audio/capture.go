package audio

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// CaptureSource owns an open device stream and feeds captured frames into a
// [FrameQueue] while active.
//
// The active flag is the session's liveness signal: the device callback checks
// it before every enqueue, so frames arriving after [CaptureSource.Stop] are
// discarded rather than buffered. Stop clears the flag before closing the
// stream, which makes the shutdown race benign.
type CaptureSource struct {
	dev   Device
	cfg   StreamConfig
	queue *FrameQueue

	active atomic.Bool
	seq    atomic.Uint64

	mu     sync.Mutex
	stream InputStream
}

// NewCaptureSource creates a source that captures with cfg from dev into queue.
func NewCaptureSource(dev Device, cfg StreamConfig, queue *FrameQueue) *CaptureSource {
	return &CaptureSource{dev: dev, cfg: cfg, queue: queue}
}

// Start opens the device stream and begins enqueuing frames. It returns an
// error if a stream is already open or the device cannot be opened; a failed
// Start leaves the source inactive and a later Stop is a safe no-op.
func (s *CaptureSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stream != nil {
		return fmt.Errorf("audio: capture already started")
	}

	s.active.Store(true)
	stream, err := s.dev.OpenInputStream(ctx, s.cfg, s.onFrame)
	if err != nil {
		s.active.Store(false)
		return fmt.Errorf("audio: open input stream: %w", err)
	}
	s.stream = stream
	return nil
}

// onFrame is the device callback. It runs on the device's capture goroutine.
func (s *CaptureSource) onFrame(pcm []byte) {
	if !s.active.Load() {
		return
	}
	s.queue.Enqueue(Frame{
		Data:       pcm,
		Seq:        s.seq.Add(1),
		CapturedAt: time.Now(),
	})
}

// Stop deactivates the source and closes the device stream. The flag is
// cleared before the stream is closed so late callbacks cannot enqueue.
// Stop is safe to call multiple times and after a failed Start.
func (s *CaptureSource) Stop() error {
	s.active.Store(false)

	s.mu.Lock()
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()

	if stream == nil {
		return nil
	}
	if err := stream.Close(); err != nil {
		return fmt.Errorf("audio: close input stream: %w", err)
	}
	return nil
}

// Active reports whether the source is currently capturing. The [Sequencer]
// uses this together with queue depth to detect end of stream.
func (s *CaptureSource) Active() bool { return s.active.Load() }

// Done returns the open stream's end-of-input channel when the stream is
// [Finite] (file playback), or nil otherwise. Receiving from a nil channel
// blocks forever, so live devices simply never fire this case in a select.
func (s *CaptureSource) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.stream.(Finite); ok {
		return f.Done()
	}
	return nil
}

// Frames returns the number of frames enqueued so far.
func (s *CaptureSource) Frames() uint64 { return s.seq.Load() }
