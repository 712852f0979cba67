package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/verbalis/verbalis/internal/config"
)

const minimalYAML = `
audio:
  capture_command: "arecord -f S16_LE -r {rate} -c {channels} -D {device}"
providers:
  recognizer:
    name: deepgram
session:
  source_language: pt-BR
`

func loadString(t *testing.T, yaml string) (*config.Config, error) {
	t.Helper()
	return config.LoadFromReader(strings.NewReader(yaml))
}

func TestLoad_MinimalConfigGetsDefaults(t *testing.T) {
	t.Parallel()
	cfg, err := loadString(t, minimalYAML)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Audio.Backend != "exec" {
		t.Errorf("backend: got %q, want %q", cfg.Audio.Backend, "exec")
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("sample_rate: got %d, want 16000", cfg.Audio.SampleRate)
	}
	if cfg.Audio.Channels != 1 {
		t.Errorf("channels: got %d, want 1", cfg.Audio.Channels)
	}
	if cfg.Audio.FrameSize != 1024 {
		t.Errorf("frame_size: got %d, want 1024", cfg.Audio.FrameSize)
	}
	if cfg.Audio.QueueDepth != 256 {
		t.Errorf("queue_depth: got %d, want 256", cfg.Audio.QueueDepth)
	}
	if cfg.Audio.WavSpeed != 1.0 {
		t.Errorf("wav_speed: got %v, want 1.0", cfg.Audio.WavSpeed)
	}
	if cfg.Session.LogDir != "logs" {
		t.Errorf("log_dir: got %q, want %q", cfg.Session.LogDir, "logs")
	}
}

func TestLoad_FullConfig(t *testing.T) {
	t.Parallel()
	cfg, err := loadString(t, `
server:
  metrics_addr: ":9090"
  log_level: debug
audio:
  backend: wav
  wav_file: testdata/session.wav
  wav_speed: 2.0
  sample_rate: 48000
  channels: 2
providers:
  recognizer:
    name: deepgram
    api_key: dg-key
    model: nova-3
  translator:
    name: llm
    api_key: sk-key
    model: gpt-4o-mini
    options:
      llm_provider: openai
  recognizer_fallbacks:
    - name: whisper
      options:
        rms_threshold: 450
session:
  source_language: pt-BR
  target_language: en
  translate: true
  punctuate: true
  translate_timeout: 10s
glossary:
  terms: [Gethsemane, Ebenezer]
  aliases:
    "ebb and easer": Ebenezer
  phonetic_threshold: 0.75
archive:
  postgres_dsn: "postgres://localhost:5432/verbalis"
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.MetricsAddr != ":9090" {
		t.Errorf("metrics_addr: got %q", cfg.Server.MetricsAddr)
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("log_level: got %q", cfg.Server.LogLevel)
	}
	if cfg.Audio.Backend != "wav" || cfg.Audio.WavSpeed != 2.0 {
		t.Errorf("wav backend: got %q speed %v", cfg.Audio.Backend, cfg.Audio.WavSpeed)
	}
	if cfg.Providers.Translator.Options["llm_provider"] != "openai" {
		t.Errorf("translator options: got %v", cfg.Providers.Translator.Options)
	}
	if len(cfg.Providers.RecognizerFallbacks) != 1 || cfg.Providers.RecognizerFallbacks[0].Name != "whisper" {
		t.Errorf("recognizer_fallbacks: got %v", cfg.Providers.RecognizerFallbacks)
	}
	if cfg.Session.TranslateTimeout != 10*time.Second {
		t.Errorf("translate_timeout: got %s", cfg.Session.TranslateTimeout)
	}
	if cfg.Glossary.Aliases["ebb and easer"] != "Ebenezer" {
		t.Errorf("aliases: got %v", cfg.Glossary.Aliases)
	}
	if cfg.Archive.PostgresDSN == "" {
		t.Error("postgres_dsn should be set")
	}
}

func TestLoad_UnknownFieldRejected(t *testing.T) {
	t.Parallel()
	_, err := loadString(t, `
audio:
  capture_command: arecord
  loudness: 11
providers:
  recognizer:
    name: deepgram
session:
  source_language: pt-BR
`)
	if err == nil {
		t.Fatal("expected error for unknown field, got nil")
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	t.Parallel()
	_, err := loadString(t, "audio: [not: a: mapping")
	if err == nil {
		t.Fatal("expected error for malformed yaml, got nil")
	}
}

func TestValidate_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "invalid log level",
			yaml: `
server:
  log_level: loud
audio:
  capture_command: arecord
providers:
  recognizer:
    name: deepgram
session:
  source_language: pt-BR
`,
			wantErr: "server.log_level",
		},
		{
			name: "invalid channels",
			yaml: `
audio:
  capture_command: arecord
  channels: 7
providers:
  recognizer:
    name: deepgram
session:
  source_language: pt-BR
`,
			wantErr: "audio.channels",
		},
		{
			name: "negative sample rate",
			yaml: `
audio:
  capture_command: arecord
  sample_rate: -8000
providers:
  recognizer:
    name: deepgram
session:
  source_language: pt-BR
`,
			wantErr: "audio.sample_rate",
		},
		{
			name: "exec backend requires capture command",
			yaml: `
providers:
  recognizer:
    name: deepgram
session:
  source_language: pt-BR
`,
			wantErr: "audio.capture_command",
		},
		{
			name: "wav backend requires file",
			yaml: `
audio:
  backend: wav
providers:
  recognizer:
    name: deepgram
session:
  source_language: pt-BR
`,
			wantErr: "audio.wav_file",
		},
		{
			name: "recognizer required",
			yaml: `
audio:
  capture_command: arecord
session:
  source_language: pt-BR
`,
			wantErr: "providers.recognizer.name",
		},
		{
			name: "source language required",
			yaml: `
audio:
  capture_command: arecord
providers:
  recognizer:
    name: deepgram
`,
			wantErr: "session.source_language",
		},
		{
			name: "translate requires target language",
			yaml: `
audio:
  capture_command: arecord
providers:
  recognizer:
    name: deepgram
  translator:
    name: llm
session:
  source_language: pt-BR
  translate: true
`,
			wantErr: "session.target_language",
		},
		{
			name: "translate requires translator",
			yaml: `
audio:
  capture_command: arecord
providers:
  recognizer:
    name: deepgram
session:
  source_language: pt-BR
  target_language: en
  translate: true
`,
			wantErr: "providers.translator.name",
		},
		{
			name: "negative translate timeout",
			yaml: `
audio:
  capture_command: arecord
providers:
  recognizer:
    name: deepgram
session:
  source_language: pt-BR
  translate_timeout: -1s
`,
			wantErr: "session.translate_timeout",
		},
		{
			name: "phonetic threshold out of range",
			yaml: `
audio:
  capture_command: arecord
providers:
  recognizer:
    name: deepgram
session:
  source_language: pt-BR
glossary:
  phonetic_threshold: 1.5
`,
			wantErr: "glossary.phonetic_threshold",
		},
		{
			name: "fuzzy threshold out of range",
			yaml: `
audio:
  capture_command: arecord
providers:
  recognizer:
    name: deepgram
session:
  source_language: pt-BR
glossary:
  fuzzy_threshold: -0.5
`,
			wantErr: "glossary.fuzzy_threshold",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := loadString(t, tt.yaml)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_CollectsAllFailures(t *testing.T) {
	t.Parallel()
	_, err := loadString(t, `
server:
  log_level: loud
`)
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	for _, want := range []string{"server.log_level", "providers.recognizer.name", "session.source_language"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("joined error %q is missing %q", err, want)
		}
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	recognizers := config.ValidProviderNames["recognizer"]
	found := false
	for _, n := range recognizers {
		if n == "deepgram" {
			found = true
			break
		}
	}
	if !found {
		t.Error(`ValidProviderNames["recognizer"] should contain "deepgram"`)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	t.Parallel()
	_, err := config.Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
