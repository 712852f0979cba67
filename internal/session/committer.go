package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/verbalis/verbalis/internal/glossary"
	"github.com/verbalis/verbalis/internal/observe"
	"github.com/verbalis/verbalis/pkg/provider/stt"
	"github.com/verbalis/verbalis/pkg/provider/translate"
)

// defaultTranslateTimeout bounds how long one segment may wait on the
// translator before the error marker is substituted.
const defaultTranslateTimeout = 15 * time.Second

// Observer receives live feedback from the committer. Interim text is
// transient and superseded without persistence; segments are final.
// Implementations must not block: they run on the commit path.
type Observer interface {
	OnInterim(text string)
	OnSegment(seg Segment)
}

// Archiver persists committed segments to secondary storage. Archive
// failures are per-segment and non-fatal; the session log remains the
// durable record.
type Archiver interface {
	InsertSegment(ctx context.Context, seg Segment) error
}

// CommitterConfig configures a [Committer].
type CommitterConfig struct {
	// Log receives every committed segment. Required.
	Log *LogWriter

	// Translator translates each segment synchronously. When nil,
	// translation is disabled and segments carry only original text.
	Translator translate.Provider

	// Glossary corrects domain terms in final transcripts before
	// translation. Optional.
	Glossary *glossary.Glossary

	// SourceLanguage and TargetLanguage are passed to the translator and
	// recorded on every segment.
	SourceLanguage string
	TargetLanguage string

	// TranslateTimeout bounds each translation call. Defaults to 15s.
	TranslateTimeout time.Duration

	// Archive receives committed segments after the log write. Optional.
	Archive Archiver

	// Observers receive interim text and committed segments.
	Observers []Observer

	// Metrics records commit and translation latencies plus failure
	// counters. Optional.
	Metrics *observe.Metrics

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Committer assigns sequence numbers to final recognition results, runs the
// glossary and translation stages, and persists the resulting segments.
//
// A segment is acknowledged (observers notified, archive written, count
// incremented) only after the log append has flushed to disk. Sequence
// numbers start at 1 and exactly match the order finals are passed in.
//
// Committer is driven by a single consumer flow and needs no locking of its
// own, except for the glossary which may be swapped concurrently via
// [Committer.SetGlossary]; the log writer serializes its file access
// internally.
type Committer struct {
	log        *LogWriter
	translator translate.Provider
	glossary   atomic.Pointer[glossary.Glossary]
	source     string
	target     string
	timeout    time.Duration
	archive    Archiver
	observers  []Observer
	metrics    *observe.Metrics
	logger     *slog.Logger

	seq uint64
}

// NewCommitter creates a [Committer] from cfg.
func NewCommitter(cfg CommitterConfig) (*Committer, error) {
	if cfg.Log == nil {
		return nil, fmt.Errorf("session: committer requires a log writer")
	}
	timeout := cfg.TranslateTimeout
	if timeout <= 0 {
		timeout = defaultTranslateTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c := &Committer{
		log:        cfg.Log,
		translator: cfg.Translator,
		source:     cfg.SourceLanguage,
		target:     cfg.TargetLanguage,
		timeout:    timeout,
		archive:    cfg.Archive,
		observers:  cfg.Observers,
		metrics:    cfg.Metrics,
		logger:     logger,
	}
	c.glossary.Store(cfg.Glossary)
	return c, nil
}

// SetGlossary replaces the glossary used for subsequent commits. A nil
// glossary disables correction. Safe to call while commits are in flight;
// the new glossary applies from the next final transcript on.
func (c *Committer) SetGlossary(g *glossary.Glossary) {
	c.glossary.Store(g)
}

// HandleInterim forwards interim transcript text to observers. Interims
// never produce a segment.
func (c *Committer) HandleInterim(t stt.Transcript) {
	for _, o := range c.observers {
		o.OnInterim(t.Text)
	}
}

// CommitFinal turns one final transcript into a committed segment.
//
// The returned error is fatal: it means the log append failed and the
// segment's durability cannot be guaranteed. Translation failures are not
// errors; the segment is committed with a visible marker in place of the
// translation and the session continues.
func (c *Committer) CommitFinal(ctx context.Context, t stt.Transcript) (Segment, error) {
	commitStart := time.Now()

	text := t.Text
	if g := c.glossary.Load(); g != nil {
		corrected, corrections := g.Apply(text)
		for _, corr := range corrections {
			c.logger.Debug("glossary correction",
				"original", corr.Original,
				"corrected", corr.Corrected,
				"confidence", corr.Confidence,
				"method", corr.Method)
		}
		text = corrected
	}

	seg := Segment{
		Sequence:       c.seq + 1,
		CommittedAt:    time.Now(),
		Original:       text,
		SourceLanguage: c.source,
		TargetLanguage: c.target,
	}

	translateSeconds := -1.0
	if c.translator != nil {
		start := time.Now()
		seg.Translated = c.translate(ctx, text)
		translateSeconds = time.Since(start).Seconds()
	}

	if err := c.log.Append(seg); err != nil {
		return Segment{}, fmt.Errorf("session: commit segment %d: %w", seg.Sequence, err)
	}
	c.seq = seg.Sequence
	if c.metrics != nil {
		c.metrics.RecordSegment(ctx, time.Since(commitStart).Seconds(), translateSeconds)
	}

	if c.archive != nil {
		if err := c.archive.InsertSegment(ctx, seg); err != nil {
			c.logger.Warn("segment archive failed", "segment", seg.Sequence, "error", err)
			if c.metrics != nil {
				c.metrics.ArchiveFailures.Add(ctx, 1)
			}
		}
	}

	for _, o := range c.observers {
		o.OnSegment(seg)
	}
	return seg, nil
}

// Count returns the number of segments committed so far.
func (c *Committer) Count() uint64 {
	return c.seq
}

func (c *Committer) translate(ctx context.Context, text string) string {
	tctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.translator.Translate(tctx, translate.Request{
		Text:           text,
		SourceLanguage: c.source,
		TargetLanguage: c.target,
	})
	if err != nil {
		c.logger.Warn("translation failed", "error", err)
		if c.metrics != nil {
			c.metrics.TranslationFailures.Add(ctx, 1)
		}
		return fmt.Sprintf("[translation error: %v]", err)
	}
	return out
}
