package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"recognizer": {"deepgram", "whisper", "whisper-native"},
	"translator": {"googlecloud", "llm"},
	"audio":      {"exec", "wav"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills zero-valued fields with their documented defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Audio.Backend == "" {
		cfg.Audio.Backend = "exec"
	}
	if cfg.Audio.SampleRate == 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels == 0 {
		cfg.Audio.Channels = 1
	}
	if cfg.Audio.FrameSize == 0 {
		cfg.Audio.FrameSize = 1024
	}
	if cfg.Audio.QueueDepth == 0 {
		cfg.Audio.QueueDepth = 256
	}
	if cfg.Audio.WavSpeed == 0 {
		cfg.Audio.WavSpeed = 1.0
	}
	if cfg.Session.LogDir == "" {
		cfg.Session.LogDir = "logs"
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Audio
	if cfg.Audio.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("audio.sample_rate %d must be positive", cfg.Audio.SampleRate))
	}
	if cfg.Audio.Channels != 1 && cfg.Audio.Channels != 2 {
		errs = append(errs, fmt.Errorf("audio.channels %d is invalid; valid values: 1, 2", cfg.Audio.Channels))
	}
	if cfg.Audio.FrameSize <= 0 {
		errs = append(errs, fmt.Errorf("audio.frame_size %d must be positive", cfg.Audio.FrameSize))
	}
	if cfg.Audio.QueueDepth <= 0 {
		errs = append(errs, fmt.Errorf("audio.queue_depth %d must be positive", cfg.Audio.QueueDepth))
	}
	switch cfg.Audio.Backend {
	case "exec":
		if cfg.Audio.CaptureCommand == "" {
			errs = append(errs, errors.New("audio.capture_command is required for the exec backend"))
		}
	case "wav":
		if cfg.Audio.WavFile == "" {
			errs = append(errs, errors.New("audio.wav_file is required for the wav backend"))
		}
		if cfg.Audio.WavSpeed < 0 {
			errs = append(errs, fmt.Errorf("audio.wav_speed %.2f must not be negative", cfg.Audio.WavSpeed))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("audio", cfg.Audio.Backend)
	validateProviderName("recognizer", cfg.Providers.Recognizer.Name)
	validateProviderName("translator", cfg.Providers.Translator.Name)
	for _, e := range cfg.Providers.RecognizerFallbacks {
		validateProviderName("recognizer", e.Name)
	}
	for _, e := range cfg.Providers.TranslatorFallbacks {
		validateProviderName("translator", e.Name)
	}

	if cfg.Providers.Recognizer.Name == "" {
		errs = append(errs, errors.New("providers.recognizer.name is required"))
	}

	// Session
	if cfg.Session.SourceLanguage == "" {
		errs = append(errs, errors.New("session.source_language is required"))
	}
	if cfg.Session.Translate {
		if cfg.Session.TargetLanguage == "" {
			errs = append(errs, errors.New("session.target_language is required when session.translate is enabled"))
		}
		if cfg.Providers.Translator.Name == "" {
			errs = append(errs, errors.New("providers.translator.name is required when session.translate is enabled"))
		}
	}
	if cfg.Session.TranslateTimeout < 0 {
		errs = append(errs, fmt.Errorf("session.translate_timeout %s must not be negative", cfg.Session.TranslateTimeout))
	}

	// Glossary
	if t := cfg.Glossary.PhoneticThreshold; t != 0 && (t <= 0 || t > 1) {
		errs = append(errs, fmt.Errorf("glossary.phonetic_threshold %.2f is out of range (0, 1]", t))
	}
	if t := cfg.Glossary.FuzzyThreshold; t != 0 && (t <= 0 || t > 1) {
		errs = append(errs, fmt.Errorf("glossary.fuzzy_threshold %.2f is out of range (0, 1]", t))
	}

	// Archive availability
	if cfg.Archive.PostgresDSN == "" {
		slog.Debug("archive.postgres_dsn is empty; segments will only be written to the session log")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
