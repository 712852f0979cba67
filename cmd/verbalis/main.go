// Command verbalis runs the live translation pipeline: it captures audio,
// streams it to a speech recognizer, translates each committed segment, and
// writes the session log.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/verbalis/verbalis/internal/archive"
	"github.com/verbalis/verbalis/internal/config"
	"github.com/verbalis/verbalis/internal/glossary"
	"github.com/verbalis/verbalis/internal/health"
	"github.com/verbalis/verbalis/internal/observe"
	"github.com/verbalis/verbalis/internal/pipeline"
	"github.com/verbalis/verbalis/internal/resilience"
	"github.com/verbalis/verbalis/internal/session"
	"github.com/verbalis/verbalis/pkg/audio"
	"github.com/verbalis/verbalis/pkg/audio/execdev"
	"github.com/verbalis/verbalis/pkg/audio/wavfile"
	"github.com/verbalis/verbalis/pkg/provider/stt"
	"github.com/verbalis/verbalis/pkg/provider/stt/deepgram"
	"github.com/verbalis/verbalis/pkg/provider/stt/whisper"
	"github.com/verbalis/verbalis/pkg/provider/translate"
	"github.com/verbalis/verbalis/pkg/provider/translate/googlecloud"
	"github.com/verbalis/verbalis/pkg/provider/translate/llm"
)

// phraseBoost is the recognition boost applied to glossary terms.
const phraseBoost = 5.0

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 2
	}
	switch args[0] {
	case "run":
		return runSession(args[1:])
	case "devices":
		return listDevices(args[1:])
	case "segments":
		return listSegments(args[1:])
	case "search":
		return searchSegments(args[1:])
	case "help", "-h", "--help":
		usage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "verbalis: unknown command %q\n\n", args[0])
		usage()
		return 2
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage: verbalis <command> [flags]

Commands:
  run       start a live translation session
  devices   list available audio input devices
  segments  list the archived segments of one session
  search    full-text search across all archived sessions

Flags:
  -config  path to the YAML configuration file (default "config.yaml")
`)
}

// ── run ───────────────────────────────────────────────────────────────────────

func runSession(args []string) int {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	sourceLang := fs.String("source", "", "override session.source_language")
	targetLang := fs.String("target", "", "override session.target_language")
	deviceFlag := fs.Int("device", 0, "override audio.device_index")
	translateFlag := fs.Bool("translate", false, "override session.translate")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "verbalis: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "verbalis: %v\n", err)
		}
		return 1
	}

	// Flags override the file only when given explicitly.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "source":
			cfg.Session.SourceLanguage = *sourceLang
		case "target":
			cfg.Session.TargetLanguage = *targetLang
		case "device":
			cfg.Audio.DeviceIndex = *deviceFlag
		case "translate":
			cfg.Session.Translate = *translateFlag
		}
	})
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "verbalis: %v\n", err)
		return 1
	}

	levelVar := new(slog.LevelVar)
	levelVar.Set(logLevel(cfg.Server.LogLevel))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: levelVar})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "verbalis"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	device, err := reg.CreateDevice(cfg.Audio)
	if err != nil {
		slog.Error("failed to create audio device", "backend", cfg.Audio.Backend, "err", err)
		return 1
	}
	deviceIndex := resolveDeviceIndex(ctx, device, cfg.Audio.DeviceIndex)

	recognizer, err := buildRecognizer(cfg, reg)
	if err != nil {
		slog.Error("failed to create recognizer", "err", err)
		return 1
	}

	var translator translate.Provider
	if cfg.Session.Translate {
		translator, err = buildTranslator(cfg, reg)
		if err != nil {
			slog.Error("failed to create translator", "err", err)
			return 1
		}
	}

	// ── Archive (optional) ────────────────────────────────────────────────
	var archiver session.Archiver
	var checkers []health.Checker
	if cfg.Archive.PostgresDSN != "" {
		sessionID := "session_" + time.Now().Format("20060102_150405")
		store, err := archive.New(ctx, cfg.Archive.PostgresDSN, sessionID)
		if err != nil {
			slog.Error("failed to connect segment archive", "err", err)
			return 1
		}
		defer store.Close()
		archiver = store
		checkers = append(checkers, health.Checker{Name: "archive", Check: store.Ping})
		slog.Info("segment archive connected", "session", sessionID)
	}

	// ── Pipeline ──────────────────────────────────────────────────────────
	p, err := pipeline.New(pipeline.Config{
		Device:     device,
		Recognizer: recognizer,
		Translator: translator,
		Glossary:   buildGlossary(cfg.Glossary),
		Archive:    archiver,
		Observers:  []session.Observer{pipeline.NewConsoleObserver(os.Stdout)},
		Capture: audio.StreamConfig{
			DeviceIndex: deviceIndex,
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
			FrameSize:   cfg.Audio.FrameSize,
		},
		Recognition: stt.StreamConfig{
			SampleRate:  cfg.Audio.SampleRate,
			Channels:    cfg.Audio.Channels,
			Language:    cfg.Session.SourceLanguage,
			Model:       cfg.Providers.Recognizer.Model,
			Punctuate:   cfg.Session.Punctuate,
			PhraseHints: phraseHints(cfg.Glossary.Terms),
		},
		QueueDepth:       cfg.Audio.QueueDepth,
		StreamRestarts:   cfg.Session.StreamRestarts,
		SourceLanguage:   cfg.Session.SourceLanguage,
		TargetLanguage:   cfg.Session.TargetLanguage,
		TranslateTimeout: cfg.Session.TranslateTimeout,
		LogDir:           cfg.Session.LogDir,
		Metrics:          metrics,
	})
	if err != nil {
		slog.Error("failed to assemble pipeline", "err", err)
		return 1
	}

	// ── Metrics server (optional) ─────────────────────────────────────────
	if cfg.Server.MetricsAddr != "" {
		srv := pipeline.NewMetricsServer(cfg.Server.MetricsAddr, metrics, slog.Default(), checkers...)
		srv.Start()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Warn("metrics server shutdown error", "err", err)
			}
		}()
	}

	// ── Config hot reload ─────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		diff := config.Diff(old, new)
		if diff.LogLevelChanged {
			levelVar.Set(logLevel(diff.NewLogLevel))
			slog.Info("log level changed", "level", diff.NewLogLevel)
		}
		if diff.GlossaryChanged {
			p.SetGlossary(buildGlossary(new.Glossary))
			slog.Info("glossary reloaded",
				"terms", len(new.Glossary.Terms), "aliases", len(new.Glossary.Aliases))
		}
	})
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("verbalis starting — press Ctrl+C to end the session",
		"config", *configPath,
		"source", cfg.Session.SourceLanguage,
		"target", cfg.Session.TargetLanguage,
		"translate", cfg.Session.Translate)

	if err := p.Run(ctx); err != nil {
		slog.Error("session failed", "err", err)
		return 1
	}
	return 0
}

// ── devices ───────────────────────────────────────────────────────────────────

func listDevices(args []string) int {
	fs := flag.NewFlagSet("devices", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verbalis: %v\n", err)
		return 1
	}

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)
	device, err := reg.CreateDevice(cfg.Audio)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verbalis: create audio device: %v\n", err)
		return 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	devices, err := device.ListInputDevices(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verbalis: list input devices: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Println("no input devices found")
		return 0
	}

	fmt.Printf("%-6s %-40s %-9s %s\n", "INDEX", "NAME", "CHANNELS", "SAMPLE RATE")
	for _, d := range devices {
		fmt.Printf("%-6d %-40s %-9d %d\n", d.Index, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
	}
	return 0
}

// ── archive queries ───────────────────────────────────────────────────────────

// listSegments prints the archived segments of one session in commit order.
func listSegments(args []string) int {
	fs := flag.NewFlagSet("segments", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	sessionID := fs.String("session", "", "session ID to list (e.g. session_20260830_100000)")
	fs.Parse(args)

	if *sessionID == "" {
		fmt.Fprintln(os.Stderr, "verbalis: segments needs -session")
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := openArchive(ctx, *configPath, *sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verbalis: %v\n", err)
		return 1
	}
	defer store.Close()

	segs, err := store.Segments(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verbalis: %v\n", err)
		return 1
	}
	if len(segs) == 0 {
		fmt.Printf("no archived segments for session %s\n", *sessionID)
		return 0
	}
	printSegments(os.Stdout, segs)
	return 0
}

// searchSegments runs a full-text query over all archived sessions.
func searchSegments(args []string) int {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "path to the YAML configuration file")
	limit := fs.Int("limit", 50, "maximum number of matches")
	fs.Parse(args)

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		fmt.Fprintln(os.Stderr, "verbalis: search needs a query, e.g. `verbalis search amazing grace`")
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := openArchive(ctx, *configPath, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "verbalis: %v\n", err)
		return 1
	}
	defer store.Close()

	segs, err := store.Search(ctx, query, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verbalis: %v\n", err)
		return 1
	}
	if len(segs) == 0 {
		fmt.Printf("no archived segments match %q\n", query)
		return 0
	}
	printSegments(os.Stdout, segs)
	return 0
}

// openArchive connects the segment archive configured at configPath, scoped to
// sessionID (empty for cross-session queries).
func openArchive(ctx context.Context, configPath, sessionID string) (*archive.Store, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Archive.PostgresDSN == "" {
		return nil, errors.New("archive.postgres_dsn is not configured")
	}
	return archive.New(ctx, cfg.Archive.PostgresDSN, sessionID)
}

// printSegments writes one block per segment, mirroring the session log
// layout, followed by a match count.
func printSegments(w io.Writer, segs []session.Segment) {
	for _, seg := range segs {
		fmt.Fprintf(w, "[%d] %s  %s\n",
			seg.Sequence, seg.CommittedAt.Format("2006-01-02 15:04:05"), seg.Original)
		if seg.Translated != "" {
			fmt.Fprintf(w, "    -> %s\n", seg.Translated)
		}
	}
	fmt.Fprintf(w, "%d segment(s)\n", len(segs))
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// registerBuiltinProviders wires the provider factories that ship with
// verbalis into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Audio backends ────────────────────────────────────────────────────
	reg.RegisterDevice("exec", func(cfg config.AudioConfig) (audio.Device, error) {
		return execdev.New(cfg.CaptureCommand, cfg.ListCommand)
	})
	reg.RegisterDevice("wav", func(cfg config.AudioConfig) (audio.Device, error) {
		return wavfile.New(cfg.WavFile, cfg.WavSpeed), nil
	})

	// ── Recognizers ───────────────────────────────────────────────────────
	reg.RegisterRecognizer("deepgram", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithEndpoint(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	reg.RegisterRecognizer("whisper", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if rms := entry.FloatOption("rms_threshold", 0); rms > 0 {
			opts = append(opts, whisper.WithRMSThreshold(rms))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	reg.RegisterRecognizer("whisper-native", func(entry config.ProviderEntry) (stt.Provider, error) {
		var opts []whisper.NativeOption
		if rms := entry.FloatOption("rms_threshold", 0); rms > 0 {
			opts = append(opts, whisper.WithNativeRMSThreshold(rms))
		}
		return whisper.NewNative(entry.StringOption("model_path", entry.Model), opts...)
	})

	// ── Translators ───────────────────────────────────────────────────────
	reg.RegisterTranslator("googlecloud", func(entry config.ProviderEntry) (translate.Provider, error) {
		var opts []googlecloud.Option
		if entry.BaseURL != "" {
			opts = append(opts, googlecloud.WithBaseURL(entry.BaseURL))
		}
		if entry.Model != "" {
			opts = append(opts, googlecloud.WithModel(entry.Model))
		}
		return googlecloud.New(entry.APIKey, opts...)
	})

	reg.RegisterTranslator("llm", func(entry config.ProviderEntry) (translate.Provider, error) {
		var opts []anyllmlib.Option
		if entry.APIKey != "" {
			opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
		}
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return llm.New(entry.StringOption("llm_provider", "openai"), entry.Model, opts...)
	})
}

// buildRecognizer creates the primary recognizer and, when fallbacks are
// configured, wraps the set in a circuit-breaking failover group.
func buildRecognizer(cfg *config.Config, reg *config.Registry) (stt.Provider, error) {
	primary, err := reg.CreateRecognizer(cfg.Providers.Recognizer)
	if err != nil {
		return nil, fmt.Errorf("recognizer %q: %w", cfg.Providers.Recognizer.Name, err)
	}
	if len(cfg.Providers.RecognizerFallbacks) == 0 {
		return primary, nil
	}

	fb := resilience.NewRecognizerFallback(primary, cfg.Providers.Recognizer.Name, resilience.FallbackConfig{})
	for _, entry := range cfg.Providers.RecognizerFallbacks {
		p, err := reg.CreateRecognizer(entry)
		if err != nil {
			return nil, fmt.Errorf("recognizer fallback %q: %w", entry.Name, err)
		}
		fb.AddFallback(entry.Name, p)
		slog.Info("recognizer fallback registered", "name", entry.Name)
	}
	return fb, nil
}

// buildTranslator mirrors buildRecognizer for the translation providers.
func buildTranslator(cfg *config.Config, reg *config.Registry) (translate.Provider, error) {
	primary, err := reg.CreateTranslator(cfg.Providers.Translator)
	if err != nil {
		return nil, fmt.Errorf("translator %q: %w", cfg.Providers.Translator.Name, err)
	}
	if len(cfg.Providers.TranslatorFallbacks) == 0 {
		return primary, nil
	}

	fb := resilience.NewTranslatorFallback(primary, cfg.Providers.Translator.Name, resilience.FallbackConfig{})
	for _, entry := range cfg.Providers.TranslatorFallbacks {
		p, err := reg.CreateTranslator(entry)
		if err != nil {
			return nil, fmt.Errorf("translator fallback %q: %w", entry.Name, err)
		}
		fb.AddFallback(entry.Name, p)
		slog.Info("translator fallback registered", "name", entry.Name)
	}
	return fb, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// resolveDeviceIndex checks that an explicitly requested device exists. When
// it does not, the available devices are reported and the backend's default
// device is used instead so the session can still start.
func resolveDeviceIndex(ctx context.Context, device audio.Device, want int) int {
	if want < 0 {
		return want
	}
	devices, err := device.ListInputDevices(ctx)
	if err != nil {
		slog.Warn("cannot enumerate input devices, using requested index", "index", want, "err", err)
		return want
	}
	for _, d := range devices {
		if d.Index == want {
			return want
		}
	}
	slog.Warn("requested input device not found, using default device", "index", want)
	for _, d := range devices {
		slog.Info("available input device", "index", d.Index, "name", d.Name)
	}
	return -1
}

// buildGlossary converts glossary config into a matcher, or nil when no terms
// or aliases are configured.
func buildGlossary(gc config.GlossaryConfig) *glossary.Glossary {
	if len(gc.Terms) == 0 && len(gc.Aliases) == 0 {
		return nil
	}
	var opts []glossary.Option
	if gc.PhoneticThreshold > 0 {
		opts = append(opts, glossary.WithPhoneticThreshold(gc.PhoneticThreshold))
	}
	if gc.FuzzyThreshold > 0 {
		opts = append(opts, glossary.WithFuzzyThreshold(gc.FuzzyThreshold))
	}
	if gc.CaseSensitiveAliases {
		opts = append(opts, glossary.WithCaseSensitiveAliases())
	}
	return glossary.New(gc.Terms, gc.Aliases, opts...)
}

// phraseHints turns glossary terms into recognition vocabulary hints.
func phraseHints(terms []string) []stt.PhraseHint {
	if len(terms) == 0 {
		return nil
	}
	hints := make([]stt.PhraseHint, 0, len(terms))
	for _, t := range terms {
		hints = append(hints, stt.PhraseHint{Phrase: t, Boost: phraseBoost})
	}
	return hints
}

func logLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
