// Package wavfile implements [audio.Device] over a WAV file, pacing frames at
// real time so a recorded session can be replayed through the live pipeline.
// A speed multiplier above 1.0 replays faster than real time, which is useful
// for reprocessing archives; 0 keeps real time.
//
// The file's format does not need to match the requested stream format: the
// decoder output is resampled and channel-converted on the fly.
package wavfile

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/verbalis/verbalis/pkg/audio"
)

var (
	_ audio.Device = (*Device)(nil)
	_ audio.Finite = (*stream)(nil)
)

// Device replays a single WAV file as an input device.
type Device struct {
	path  string
	speed float64
}

// New creates a Device replaying the WAV file at path. speed <= 0 defaults to
// real time (1.0).
func New(path string, speed float64) *Device {
	if speed <= 0 {
		speed = 1.0
	}
	return &Device{path: path, speed: speed}
}

// ListInputDevices implements [audio.Device], reporting the file itself as the
// only device.
func (d *Device) ListInputDevices(ctx context.Context) ([]audio.DeviceInfo, error) {
	f, err := os.Open(d.path)
	if err != nil {
		return nil, fmt.Errorf("wavfile: open %s: %w", d.path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("wavfile: %s is not a valid WAV file", d.path)
	}
	return []audio.DeviceInfo{{
		Index:             0,
		Name:              d.path,
		MaxInputChannels:  int(dec.NumChans),
		DefaultSampleRate: int(dec.SampleRate),
	}}, nil
}

// OpenInputStream implements [audio.Device]. The returned stream also
// satisfies [audio.Finite]; its Done channel closes when the file is
// exhausted.
func (d *Device) OpenInputStream(ctx context.Context, cfg audio.StreamConfig, cb audio.FrameCallback) (audio.InputStream, error) {
	f, err := os.Open(d.path)
	if err != nil {
		return nil, fmt.Errorf("wavfile: open %s: %w", d.path, err)
	}

	dec := wav.NewDecoder(f)
	dec.ReadInfo()
	if !dec.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("wavfile: %s is not a valid WAV file", d.path)
	}
	if dec.BitDepth != 16 {
		f.Close()
		return nil, fmt.Errorf("wavfile: %s: unsupported bit depth %d (want 16)", d.path, dec.BitDepth)
	}

	s := &stream{
		f:    f,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go s.playLoop(dec, cfg, d.speed, cb)
	return s, nil
}

type stream struct {
	f    *os.File
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// playLoop decodes the file chunk by chunk, converts to the requested format
// and emits fixed-size frames with real-time pacing.
func (s *stream) playLoop(dec *wav.Decoder, cfg audio.StreamConfig, speed float64, cb audio.FrameCallback) {
	defer close(s.done)
	defer s.f.Close()

	src := audio.Format{SampleRate: int(dec.SampleRate), Channels: int(dec.NumChans)}
	conv := audio.FormatConverter{Target: audio.Format{SampleRate: cfg.SampleRate, Channels: cfg.Channels}}

	// Read source samples in chunks that convert to roughly one output frame.
	srcSamples := cfg.FrameSize * src.SampleRate / cfg.SampleRate
	if srcSamples < 1 {
		srcSamples = cfg.FrameSize
	}
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{NumChannels: src.Channels, SampleRate: src.SampleRate},
		Data:   make([]int, srcSamples*src.Channels),
	}

	frameBytes := cfg.FrameBytes()
	interval := time.Duration(float64(cfg.FrameSize) / float64(cfg.SampleRate) / speed * float64(time.Second))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending []byte
	for {
		n, err := dec.PCMBuffer(buf)
		if n > 0 {
			pending = append(pending, conv.Convert(encodeS16LE(buf.Data[:n]), src)...)
		}

		for len(pending) >= frameBytes {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
			}
			frame := make([]byte, frameBytes)
			copy(frame, pending[:frameBytes])
			pending = pending[frameBytes:]
			cb(frame)
		}

		if err != nil || n == 0 {
			// EOF (or decode error): trailing partial frame is discarded.
			return
		}
	}
}

// encodeS16LE packs decoded int samples into little-endian 16-bit PCM.
func encodeS16LE(samples []int) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
	return out
}

// Done implements [audio.Finite].
func (s *stream) Done() <-chan struct{} { return s.done }

// Close implements [audio.InputStream]. Safe to call more than once.
func (s *stream) Close() error {
	s.once.Do(func() { close(s.stop) })
	<-s.done
	return nil
}
