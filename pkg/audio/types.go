package audio

import "time"

// Frame is one fixed-size chunk of little-endian 16-bit PCM captured from an
// input device. Frames are the atomic unit of audio transport through the
// pipeline — produced by the capture callback, buffered by the [FrameQueue],
// and pulled in order by the [Sequencer].
type Frame struct {
	// Data is the raw PCM payload (2 bytes per sample per channel). Frames are
	// immutable once enqueued; producers must not reuse the buffer afterwards.
	Data []byte

	// Seq is the capture-order sequence number, starting at 1 for the first
	// frame of a session.
	Seq uint64

	// CapturedAt marks when the device produced this frame.
	CapturedAt time.Time
}

// DeviceInfo describes one audio input device reported by a [Device] backend.
type DeviceInfo struct {
	// Index identifies the device within its backend. Indexes are stable for
	// the lifetime of a process but may change across restarts or replugs.
	Index int

	// Name is the human-readable device name.
	Name string

	// MaxInputChannels is the largest channel count the device can capture.
	MaxInputChannels int

	// DefaultSampleRate is the device's preferred sample rate in Hz.
	DefaultSampleRate int
}

// StreamConfig describes the capture format requested from a [Device].
type StreamConfig struct {
	// DeviceIndex selects the input device. A negative value requests the
	// backend's default device.
	DeviceIndex int

	// SampleRate is the capture rate in Hz (e.g. 16000 for speech recognition).
	SampleRate int

	// Channels is the number of interleaved channels (1 for mono).
	Channels int

	// FrameSize is the number of samples per channel delivered per callback
	// invocation (e.g. 1024).
	FrameSize int
}

// FrameBytes returns the size in bytes of one PCM frame under this config.
func (c StreamConfig) FrameBytes() int {
	return c.FrameSize * c.Channels * 2
}
