// Package mock provides an in-memory mock implementation of the [audio.Device]
// interface for use in unit tests.
//
// The mock is safe for concurrent use. It records every method call so that
// tests can assert on call counts and arguments, and it exposes exported
// fields that the test can set to control return values. The callback passed
// to OpenInputStream is retained so tests can push PCM chunks through the
// pipeline synchronously:
//
//	dev := &mock.Device{ListResult: []audio.DeviceInfo{{Index: 0, Name: "loop"}}}
//	stream, _ := dev.OpenInputStream(ctx, cfg, cb)
//	dev.EmitPCM([]byte{...})
package mock

import (
	"context"
	"sync"

	"github.com/verbalis/verbalis/pkg/audio"
)

// Device is a mock implementation of [audio.Device].
// Set the exported Result/Error fields before use; inspect the Call* fields
// after.
type Device struct {
	mu sync.Mutex

	// ListResult is returned by [Device.ListInputDevices].
	// Defaults to an empty (non-nil) slice if left nil.
	ListResult []audio.DeviceInfo

	// ListError is returned by [Device.ListInputDevices].
	ListError error

	// OpenError is returned by [Device.OpenInputStream].
	OpenError error

	// CloseError is returned by the stream's Close.
	CloseError error

	// CallCountList records how many times ListInputDevices was called.
	CallCountList int

	// CallCountOpen records how many times OpenInputStream was called.
	CallCountOpen int

	// CallCountClose records how many times the stream's Close was called.
	CallCountClose int

	// RecordedConfig holds the StreamConfig of the most recent open.
	RecordedConfig audio.StreamConfig

	cb audio.FrameCallback
}

var _ audio.Device = (*Device)(nil)

// ListInputDevices implements [audio.Device]. Returns ListResult or ListError.
func (d *Device) ListInputDevices(ctx context.Context) ([]audio.DeviceInfo, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CallCountList++
	if d.ListError != nil {
		return nil, d.ListError
	}
	if d.ListResult == nil {
		return []audio.DeviceInfo{}, nil
	}
	return d.ListResult, nil
}

// OpenInputStream implements [audio.Device]. Retains cb for [Device.EmitPCM]
// and returns a stream whose Close bumps CallCountClose.
func (d *Device) OpenInputStream(ctx context.Context, cfg audio.StreamConfig, cb audio.FrameCallback) (audio.InputStream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CallCountOpen++
	d.RecordedConfig = cfg
	if d.OpenError != nil {
		return nil, d.OpenError
	}
	d.cb = cb
	return &stream{dev: d}, nil
}

// EmitPCM invokes the callback registered by the most recent OpenInputStream,
// simulating the device's capture goroutine. It is a no-op if no stream has
// been opened.
func (d *Device) EmitPCM(pcm []byte) {
	d.mu.Lock()
	cb := d.cb
	d.mu.Unlock()
	if cb != nil {
		cb(pcm)
	}
}

type stream struct {
	dev  *Device
	once sync.Once
}

func (s *stream) Close() error {
	s.once.Do(func() {
		s.dev.mu.Lock()
		s.dev.CallCountClose++
		s.dev.cb = nil
		s.dev.mu.Unlock()
	})
	return s.dev.CloseError
}
