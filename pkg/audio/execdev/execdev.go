// Package execdev implements [audio.Device] on top of an external recorder
// process such as arecord, ffmpeg, or sox.
//
// The capture command is configured as a shell-style string with placeholder
// substitution and must write raw little-endian 16-bit PCM to stdout:
//
//	arecord -q -D hw:{device} -f S16_LE -r {rate} -c {channels} -t raw
//	ffmpeg -loglevel quiet -f pulse -i default -f s16le -ar {rate} -ac {channels} -
//
// Device enumeration is likewise delegated to an optional list command that
// prints one device per line as tab-separated fields:
//
//	index<TAB>name<TAB>max input channels<TAB>default sample rate
//
// When no list command is configured, a single synthetic default device is
// reported.
package execdev

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"

	"github.com/verbalis/verbalis/pkg/audio"
)

var _ audio.Device = (*Device)(nil)

// Device runs external commands to enumerate and capture from audio inputs.
type Device struct {
	captureCmd []string
	listCmd    []string
}

// New creates a Device from a capture command template and an optional list
// command. captureCommand must be non-empty; listCommand may be "".
func New(captureCommand, listCommand string) (*Device, error) {
	parser := shellwords.NewParser()

	capture, err := parser.Parse(captureCommand)
	if err != nil {
		return nil, fmt.Errorf("execdev: parse capture command: %w", err)
	}
	if len(capture) == 0 {
		return nil, errors.New("execdev: capture command is empty")
	}

	var list []string
	if listCommand != "" {
		list, err = parser.Parse(listCommand)
		if err != nil {
			return nil, fmt.Errorf("execdev: parse list command: %w", err)
		}
	}

	return &Device{captureCmd: capture, listCmd: list}, nil
}

// ListInputDevices implements [audio.Device]. Without a list command it
// reports one synthetic default device so callers always have something to
// open.
func (d *Device) ListInputDevices(ctx context.Context) ([]audio.DeviceInfo, error) {
	if len(d.listCmd) == 0 {
		return []audio.DeviceInfo{{
			Index:             0,
			Name:              "default",
			MaxInputChannels:  2,
			DefaultSampleRate: 44100,
		}}, nil
	}

	cmd := exec.CommandContext(ctx, d.listCmd[0], d.listCmd[1:]...)
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("execdev: list command failed: %w", err)
	}
	return parseDeviceList(string(out))
}

// parseDeviceList decodes tab-separated device lines. Blank lines are skipped;
// malformed lines are an error so misconfigured list commands fail loudly.
func parseDeviceList(out string) ([]audio.DeviceInfo, error) {
	var devices []audio.DeviceInfo
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		if len(fields) != 4 {
			return nil, fmt.Errorf("execdev: malformed device line %q", line)
		}
		index, err := strconv.Atoi(fields[0])
		if err != nil {
			return nil, fmt.Errorf("execdev: device index in %q: %w", line, err)
		}
		channels, err := strconv.Atoi(fields[2])
		if err != nil {
			return nil, fmt.Errorf("execdev: channel count in %q: %w", line, err)
		}
		rate, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, fmt.Errorf("execdev: sample rate in %q: %w", line, err)
		}
		devices = append(devices, audio.DeviceInfo{
			Index:             index,
			Name:              fields[1],
			MaxInputChannels:  channels,
			DefaultSampleRate: rate,
		})
	}
	return devices, nil
}

// OpenInputStream implements [audio.Device]. It starts the recorder process
// and chops its stdout into cfg.FrameBytes() chunks, invoking cb for each
// complete frame on a dedicated goroutine.
func (d *Device) OpenInputStream(ctx context.Context, cfg audio.StreamConfig, cb audio.FrameCallback) (audio.InputStream, error) {
	args := expandArgs(d.captureCmd, cfg)

	cmd := exec.Command(args[0], args[1:]...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("execdev: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("execdev: start recorder %q: %w", args[0], err)
	}

	s := &stream{cmd: cmd, stdout: stdout}
	s.wg.Add(1)
	go s.readLoop(cfg.FrameBytes(), cb)

	slog.Info("recorder process started",
		"command", args[0], "pid", cmd.Process.Pid,
		"sampleRate", cfg.SampleRate, "channels", cfg.Channels)
	return s, nil
}

// expandArgs substitutes {device}, {rate} and {channels} placeholders in the
// capture command template.
func expandArgs(tmpl []string, cfg audio.StreamConfig) []string {
	device := strconv.Itoa(cfg.DeviceIndex)
	if cfg.DeviceIndex < 0 {
		device = "default"
	}
	repl := strings.NewReplacer(
		"{device}", device,
		"{rate}", strconv.Itoa(cfg.SampleRate),
		"{channels}", strconv.Itoa(cfg.Channels),
	)
	args := make([]string, len(tmpl))
	for i, a := range tmpl {
		args[i] = repl.Replace(a)
	}
	return args
}

type stream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	wg     sync.WaitGroup
	once   sync.Once
	err    error
}

// readLoop reads full frames from the recorder's stdout. A short final read
// at EOF is discarded; a whole frame either arrives or it doesn't.
func (s *stream) readLoop(frameBytes int, cb audio.FrameCallback) {
	defer s.wg.Done()
	for {
		buf := make([]byte, frameBytes)
		if _, err := io.ReadFull(s.stdout, buf); err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) &&
				!errors.Is(err, io.ErrClosedPipe) {
				slog.Warn("recorder read failed", "error", err)
			}
			return
		}
		cb(buf)
	}
}

// Close terminates the recorder process and waits for the read loop to drain.
// Safe to call more than once.
func (s *stream) Close() error {
	s.once.Do(func() {
		if s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		s.wg.Wait()
		// Wait reaps the process; a kill-induced exit error is expected.
		if err := s.cmd.Wait(); err != nil {
			var exitErr *exec.ExitError
			if !errors.As(err, &exitErr) {
				s.err = fmt.Errorf("execdev: wait recorder: %w", err)
			}
		}
	})
	return s.err
}
