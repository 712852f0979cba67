package wavfile

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/verbalis/verbalis/pkg/audio"
)

// writeTestWAV writes a mono 16-bit WAV with the given number of samples.
func writeTestWAV(t *testing.T, sampleRate, samples int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:   make([]int, samples),
	}
	for i := range buf.Data {
		buf.Data[i] = i % 1000
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	return path
}

func TestListInputDevicesReportsFileFormat(t *testing.T) {
	path := writeTestWAV(t, 16000, 160)
	dev := New(path, 1.0)

	devices, err := dev.ListInputDevices(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("devices: want 1, got %d", len(devices))
	}
	if devices[0].DefaultSampleRate != 16000 || devices[0].MaxInputChannels != 1 {
		t.Errorf("device mismatch: %+v", devices[0])
	}
}

func TestListInputDevicesRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.wav")
	if err := os.WriteFile(path, []byte("not a wav"), 0o644); err != nil {
		t.Fatal(err)
	}
	dev := New(path, 1.0)
	if _, err := dev.ListInputDevices(context.Background()); err == nil {
		t.Fatal("expected error for invalid file")
	}
}

func TestPlaybackDeliversFullFrames(t *testing.T) {
	// 4 frames of 64 samples; high speed keeps the test fast.
	path := writeTestWAV(t, 16000, 256)
	dev := New(path, 1000)

	var (
		mu     sync.Mutex
		frames [][]byte
	)
	cfg := audio.StreamConfig{SampleRate: 16000, Channels: 1, FrameSize: 64}
	stream, err := dev.OpenInputStream(context.Background(), cfg, func(pcm []byte) {
		mu.Lock()
		frames = append(frames, pcm)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	fin, ok := stream.(audio.Finite)
	if !ok {
		t.Fatal("stream does not implement audio.Finite")
	}
	select {
	case <-fin.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("playback did not finish")
	}
	if err := stream.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(frames) != 4 {
		t.Fatalf("frames: want 4, got %d", len(frames))
	}
	for i, f := range frames {
		if len(f) != cfg.FrameBytes() {
			t.Errorf("frame %d: want %d bytes, got %d", i, cfg.FrameBytes(), len(f))
		}
	}
}

func TestCloseStopsPlaybackEarly(t *testing.T) {
	path := writeTestWAV(t, 16000, 16000*10) // 10s of audio
	dev := New(path, 1.0)                    // real time

	cfg := audio.StreamConfig{SampleRate: 16000, Channels: 1, FrameSize: 1024}
	stream, err := dev.OpenInputStream(context.Background(), cfg, func([]byte) {})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	closed := make(chan struct{})
	go func() {
		stream.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("close did not interrupt real-time playback")
	}
}
