// Package audio defines the types and interfaces for audio capture and frame
// transport within verbalis.
//
// The primary abstractions are:
//
//   - [Device] — enumerates input devices and opens capture streams.
//   - [FrameQueue] — a bounded FIFO decoupling the capture callback from the
//     consumer, with a drop-oldest overflow policy.
//   - [CaptureSource] — owns a device stream and feeds a queue while active.
//   - [Sequencer] — a one-shot pull iterator delivering frames in capture order.
//
// Implementations of [Device] are provided by backend packages (audio/execdev,
// audio/wavfile, audio/mock). The interface is intentionally narrow to keep the
// pipeline decoupled from how the samples are actually produced.
//
// This package lives under pkg/ because external code (alternative capture
// backends) is expected to implement [Device].
package audio

import "context"

// FrameCallback receives raw PCM data from the device's own capture goroutine.
// Callbacks must return quickly and must not block; slow consumers are the
// queue's problem, not the device's.
type FrameCallback func(pcm []byte)

// InputStream represents an open capture stream on a device.
//
// Closing the stream stops the flow of callbacks. Close is safe to call more
// than once; subsequent calls are no-ops and return nil.
type InputStream interface {
	Close() error
}

// Finite is optionally implemented by streams whose input runs out on its own,
// such as file playback. Done is closed when no more frames will be produced;
// the pipeline treats that like an operator-requested stop.
type Finite interface {
	Done() <-chan struct{}
}

// Device is the entry point for an audio capture backend.
//
// Implementations must be safe for concurrent use.
type Device interface {
	// ListInputDevices returns the capture devices this backend can open.
	ListInputDevices(ctx context.Context) ([]DeviceInfo, error)

	// OpenInputStream opens a capture stream with the requested format and
	// begins invoking cb with fixed-size PCM chunks of cfg.FrameBytes() bytes.
	// The supplied ctx governs the lifetime of the open attempt only; once
	// open, the stream remains alive until [InputStream.Close] is called.
	OpenInputStream(ctx context.Context, cfg StreamConfig, cb FrameCallback) (InputStream, error)
}
