// Package stt defines the Provider interface for streaming speech recognition
// backends.
//
// A provider wraps a real-time transcription service (e.g., Deepgram or a
// local whisper-server) and exposes a uniform streaming interface. The central
// abstraction is SessionHandle: once opened, a session accepts raw PCM audio
// frames and emits two streams of Transcript values — low-latency partials for
// live feedback and authoritative finals for segment commits.
//
// Implementations must be safe for concurrent use. Audio input and transcript
// output channels are goroutine-safe by construction.
package stt

import "context"

// StreamConfig describes the audio format and recognition hints for a new
// session. All fields must be compatible with what the underlying provider
// supports; see each provider's documentation for valid ranges.
type StreamConfig struct {
	// SampleRate is the audio sample rate in Hz (16000 is the usual value for
	// speech recognition).
	SampleRate int

	// Channels is the number of audio channels. 1 = mono (required by most
	// recognition services). Implementors may downmix stereo internally.
	Channels int

	// Language is the BCP-47 language tag for recognition (e.g., "pt-BR",
	// "en-US"). An empty string lets the provider auto-detect the language,
	// if supported.
	Language string

	// Model names the provider-specific recognition model. Empty uses the
	// provider's default.
	Model string

	// Punctuate requests automatic punctuation in transcripts, for providers
	// that support it.
	Punctuate bool

	// PhraseHints lists vocabulary expected in this session — domain terms,
	// proper nouns — so the recognizer favours them. See [PhraseHint] for the
	// boost semantics.
	PhraseHints []PhraseHint
}

// SessionHandle represents an open streaming recognition session. It is an
// interface so that test code can provide mock implementations without
// requiring a live provider connection.
//
// Callers must call Close when the session is no longer needed. Failing to do
// so may leak goroutines and network connections inside the provider
// implementation. All methods must be safe for concurrent use.
type SessionHandle interface {
	// SendAudio delivers a chunk of raw PCM audio bytes to the provider for
	// transcription. The chunk must match the SampleRate, Channels, and
	// bit-depth agreed in StreamConfig. Calling SendAudio after Close returns
	// an error.
	SendAudio(chunk []byte) error

	// Partials returns a read-only channel that emits low-latency interim
	// Transcript values as the provider makes preliminary guesses. These are
	// suitable for live display but must not be written to the session log.
	// The channel is closed when the session ends.
	Partials() <-chan Transcript

	// Finals returns a read-only channel that emits authoritative Transcript
	// values once the provider has committed to a recognition result. These
	// are the values the committer turns into segments.
	// The channel is closed when the session ends.
	Finals() <-chan Transcript

	// Close signals end of audio, flushes pending recognition, and releases
	// all associated resources. Finals buffered by the provider are still
	// delivered before the channels close, so callers must keep draining
	// Partials and Finals while Close runs. Calling Close more than once is
	// safe. Close returns a non-nil error if the stream failed mid-session
	// (for example a dropped connection), so callers can distinguish a
	// transport failure from a clean end of stream.
	Close() error
}

// Provider is the abstraction over any streaming recognition backend.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// StartStream opens a new streaming transcription session with the given
	// audio format and recognition configuration. The returned SessionHandle
	// is ready to accept audio immediately.
	//
	// Returns an error if the provider cannot establish the session (e.g.,
	// authentication failure, unsupported configuration, or ctx already
	// cancelled). The caller owns the SessionHandle and must call Close when
	// done.
	StartStream(ctx context.Context, cfg StreamConfig) (SessionHandle, error)
}
