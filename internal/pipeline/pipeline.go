// Package pipeline wires the capture, recognition, and commit stages into a
// running translation session.
//
// A [Pipeline] owns the full session lifecycle: Run opens the session log,
// establishes the recognition stream, starts audio capture, and pumps frames
// and transcripts between the stages until the operator stops the session or
// the input runs out. Shutdown is ordered so that no committed audio is lost:
// capture stops first, the queue is drained into the recognizer, the stream
// is flushed, in-flight finals are committed, and only then is the trailer
// written and the device released.
//
// A Pipeline is one-shot: once Run returns, the instance is spent and a new
// session needs a new Pipeline.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/verbalis/verbalis/internal/glossary"
	"github.com/verbalis/verbalis/internal/observe"
	"github.com/verbalis/verbalis/internal/session"
	"github.com/verbalis/verbalis/pkg/audio"
	"github.com/verbalis/verbalis/pkg/provider/stt"
	"github.com/verbalis/verbalis/pkg/provider/translate"
)

// State is the pipeline lifecycle phase.
type State int32

const (
	// StateIdle is the phase before Run.
	StateIdle State = iota

	// StateStreaming means audio is flowing and transcripts are committed.
	StateStreaming

	// StateClosing means capture has stopped and the drain is in progress.
	StateClosing

	// StateClosed is a clean end: all buffered audio was recognized, all
	// finals committed, and the trailer written.
	StateClosed

	// StateFailed means the session ended because of an unrecoverable error.
	StateFailed
)

// String returns the lowercase name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStreaming:
		return "streaming"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Config assembles the collaborators of one session.
type Config struct {
	// Device is the audio capture backend. Required.
	Device audio.Device

	// Recognizer provides the streaming recognition session. Required.
	Recognizer stt.Provider

	// Translator translates each committed segment. Nil disables translation.
	Translator translate.Provider

	// Glossary corrects domain terms in finals before translation. Optional.
	Glossary *glossary.Glossary

	// Archive receives committed segments after the durable log write.
	// Optional.
	Archive session.Archiver

	// Observers receive interim text and committed segments.
	Observers []session.Observer

	// Capture is the device capture format.
	Capture audio.StreamConfig

	// Recognition configures the recognition stream. SampleRate and Channels
	// must match Capture.
	Recognition stt.StreamConfig

	// QueueDepth bounds the frame queue. <= 0 uses the audio package default.
	QueueDepth int

	// StreamRestarts bounds mid-session recognition stream reconnects after
	// the stream drops. 0 uses the default (3); negative disables
	// reconnection, so any stream loss fails the session.
	StreamRestarts int

	// PollTimeout bounds each empty-queue wait in the drain loop. <= 0 uses
	// the audio package default.
	PollTimeout time.Duration

	// SourceLanguage and TargetLanguage label the session and its segments.
	SourceLanguage string
	TargetLanguage string

	// TranslateTimeout bounds each translation call.
	TranslateTimeout time.Duration

	// LogDir is the directory the session log file is created in.
	LogDir string

	// Metrics defaults to [observe.DefaultMetrics].
	Metrics *observe.Metrics

	// Logger defaults to slog.Default.
	Logger *slog.Logger
}

// Pipeline runs one live translation session.
type Pipeline struct {
	cfg     Config
	logger  *slog.Logger
	metrics *observe.Metrics

	queue  *audio.FrameQueue
	source *audio.CaptureSource

	state    atomic.Int32
	started  atomic.Bool
	stopOnce sync.Once
	stopCh   chan struct{}

	// handleMu guards the active recognition stream handle, which the
	// supervisor may replace mid-session after a stream loss.
	handleMu     sync.Mutex
	handle       stt.SessionHandle
	handleClosed bool

	mu          sync.Mutex
	logPath     string
	committer   *session.Committer
	glossarySet bool
	glossaryNew *glossary.Glossary
}

// defaultStreamRestarts is the mid-session reconnect budget when
// Config.StreamRestarts is zero.
const defaultStreamRestarts = 3

// New validates cfg and creates a [Pipeline] in [StateIdle].
func New(cfg Config) (*Pipeline, error) {
	if cfg.Device == nil {
		return nil, fmt.Errorf("pipeline: a capture device is required")
	}
	if cfg.Recognizer == nil {
		return nil, fmt.Errorf("pipeline: a recognition provider is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	queue := audio.NewFrameQueue(cfg.QueueDepth)
	return &Pipeline{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
		queue:   queue,
		source:  audio.NewCaptureSource(cfg.Device, cfg.Capture, queue),
		stopCh:  make(chan struct{}),
	}, nil
}

// State returns the current lifecycle phase.
func (p *Pipeline) State() State { return State(p.state.Load()) }

// LogPath returns the session log file path, or "" before Run opened it.
func (p *Pipeline) LogPath() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.logPath
}

// Stop requests an orderly session end, equivalent to cancelling Run's
// context. Safe to call from any goroutine, any number of times, including
// before Run.
func (p *Pipeline) Stop() {
	p.stopOnce.Do(func() { close(p.stopCh) })
}

// SetGlossary swaps the glossary applied to subsequent finals. Safe to call
// at any point in the lifecycle; a nil glossary disables correction.
func (p *Pipeline) SetGlossary(g *glossary.Glossary) {
	p.mu.Lock()
	c := p.committer
	p.glossarySet = true
	p.glossaryNew = g
	p.mu.Unlock()
	if c != nil {
		c.SetGlossary(g)
	}
}

// Run executes the session until the operator stops it, the input runs out,
// or an unrecoverable error occurs. It returns nil on a clean end (state
// [StateClosed]) and the causing error otherwise (state [StateFailed]).
//
// Cancelling ctx is the operator stop signal: it begins the orderly drain
// rather than aborting it, so buffered audio and in-flight finals still
// reach the log before Run returns.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.started.CompareAndSwap(false, true) {
		return fmt.Errorf("pipeline: already ran (state %s)", p.State())
	}

	startedAt := time.Now()
	logw, err := session.OpenLog(p.cfg.LogDir, p.cfg.SourceLanguage, p.cfg.TargetLanguage, startedAt)
	if err != nil {
		p.state.Store(int32(StateFailed))
		return fmt.Errorf("pipeline: open session log: %w", err)
	}

	committer, err := session.NewCommitter(session.CommitterConfig{
		Log:              logw,
		Translator:       p.cfg.Translator,
		Glossary:         p.cfg.Glossary,
		SourceLanguage:   p.cfg.SourceLanguage,
		TargetLanguage:   p.cfg.TargetLanguage,
		TranslateTimeout: p.cfg.TranslateTimeout,
		Archive:          p.cfg.Archive,
		Observers:        p.cfg.Observers,
		Metrics:          p.metrics,
		Logger:           p.logger,
	})
	if err != nil {
		logw.Close(0, time.Now())
		p.state.Store(int32(StateFailed))
		return fmt.Errorf("pipeline: %w", err)
	}

	p.mu.Lock()
	p.logPath = logw.Path()
	p.committer = committer
	if p.glossarySet {
		committer.SetGlossary(p.glossaryNew)
	}
	p.mu.Unlock()

	handle, err := p.cfg.Recognizer.StartStream(ctx, p.cfg.Recognition)
	if err != nil {
		logw.Close(0, time.Now())
		p.state.Store(int32(StateFailed))
		return fmt.Errorf("pipeline: start recognition stream: %w", err)
	}

	if err := p.source.Start(ctx); err != nil {
		handle.Close()
		audio.Drain(handle.Partials())
		audio.Drain(handle.Finals())
		logw.Close(0, time.Now())
		p.state.Store(int32(StateFailed))
		return fmt.Errorf("pipeline: start capture: %w", err)
	}

	p.state.Store(int32(StateStreaming))
	p.logger.Info("session started",
		"log", logw.Path(),
		"source", p.cfg.SourceLanguage,
		"target", p.cfg.TargetLanguage,
		"translate", p.cfg.Translator != nil)

	// Everything past this point must survive operator cancellation: the
	// drain commits buffered audio after ctx is done, so stage contexts
	// derive from a non-cancellable base. runCtx is cancelled only on
	// unrecoverable failure and aborts the drain immediately.
	base := context.WithoutCancel(ctx)
	runCtx, abort := context.WithCancelCause(base)
	defer abort(nil)

	p.metrics.ActiveSessions.Add(base, 1)
	defer p.metrics.ActiveSessions.Add(base, -1)

	// Stop watcher: turns any end condition into "capture stops, queue
	// drains". The drain itself then unwinds the remaining stages in order.
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		select {
		case <-ctx.Done():
			p.logger.Info("stop requested, draining buffered audio")
		case <-p.stopCh:
			p.logger.Info("stop requested, draining buffered audio")
		case <-p.source.Done():
			p.logger.Info("input finished, draining buffered audio")
		case <-runCtx.Done():
		}
		p.state.CompareAndSwap(int32(StateStreaming), int32(StateClosing))
		if err := p.source.Stop(); err != nil {
			p.logger.Warn("capture stop failed", "error", err)
		}
	}()

	p.setHandle(handle)

	var g errgroup.Group

	// Frame feed: queue -> recognizer, in capture order. Ends when the
	// source is stopped and the queue drained, then flushes the stream so
	// the recognizer emits its remaining finals and closes the channels.
	// Frames that arrive while a lost stream is being replaced are dropped
	// with a warning.
	g.Go(func() error {
		seq := audio.NewSequencer(p.queue, p.source, p.cfg.PollTimeout)
		var last audio.QueueStats
		for {
			f, ok := seq.Next(runCtx)
			if !ok {
				break
			}
			if err := p.sendAudio(f.Data); err != nil {
				p.logger.Warn("send audio failed", "frame", f.Seq, "error", err)
			}
			stats := p.queue.Stats()
			p.metrics.RecordQueue(base,
				int64(stats.Enqueued-last.Enqueued),
				int64(stats.Dropped-last.Dropped),
				stats.Depth)
			last = stats
		}
		p.closeHandle()
		return nil
	})

	// Stream supervisor: commits transcripts from the active stream and
	// replaces a stream that dies mid-session, up to the restart budget.
	// Segment numbering continues across replacements because the committer
	// outlives the individual streams.
	g.Go(func() error {
		defer p.Stop() // the end of the last stream ends the session either way
		restarts := p.cfg.StreamRestarts
		if restarts == 0 {
			restarts = defaultStreamRestarts
		}
		h := handle
		for {
			commitErr := p.consumeStream(base, h, committer)
			closeErr := h.Close()
			if commitErr != nil {
				abort(commitErr)
				return commitErr
			}

			p.handleMu.Lock()
			finished := p.handleClosed
			p.handleMu.Unlock()
			if finished {
				// The feed sent all audio and closed the stream. A transport
				// error reported by Close still fails the session: finals may
				// have been lost with the connection.
				if closeErr != nil {
					return fmt.Errorf("close recognition stream: %w", closeErr)
				}
				return nil
			}
			if runCtx.Err() != nil {
				return nil
			}

			// The stream ended while audio is still flowing.
			if restarts <= 0 {
				if closeErr == nil {
					closeErr = errors.New("recognition stream ended unexpectedly")
				}
				err := fmt.Errorf("recognition stream lost: %w", closeErr)
				abort(err)
				return err
			}
			restarts--
			p.logger.Warn("recognition stream lost, reconnecting",
				"error", closeErr, "restarts_left", restarts)
			next, err := p.cfg.Recognizer.StartStream(base, p.cfg.Recognition)
			if err != nil {
				err = fmt.Errorf("restart recognition stream: %w", err)
				abort(err)
				return err
			}
			p.setHandle(next)
			h = next
		}
	})

	runErr := g.Wait()
	<-watchDone

	total := committer.Count()
	if err := logw.Close(total, time.Now()); err != nil {
		p.logger.Warn("session log close failed", "error", err)
		if runErr == nil {
			runErr = fmt.Errorf("pipeline: close session log: %w", err)
		}
	}

	if runErr != nil {
		p.state.Store(int32(StateFailed))
		p.logger.Error("session failed", "segments", total, "error", runErr)
		return runErr
	}
	p.state.Store(int32(StateClosed))
	p.logger.Info("session ended",
		"segments", total,
		"duration", time.Since(startedAt).Round(time.Second),
		"log", logw.Path())
	return nil
}

// setHandle installs h as the active recognition stream. If the feed has
// already closed the stream for good, h is closed and drained immediately so
// a reconnect racing the end of input cannot leak a session.
func (p *Pipeline) setHandle(h stt.SessionHandle) {
	p.handleMu.Lock()
	if p.handleClosed {
		p.handleMu.Unlock()
		h.Close()
		audio.Drain(h.Partials())
		audio.Drain(h.Finals())
		return
	}
	p.handle = h
	p.handleMu.Unlock()
}

// sendAudio delivers one frame to the active recognition stream.
func (p *Pipeline) sendAudio(data []byte) error {
	p.handleMu.Lock()
	h := p.handle
	p.handleMu.Unlock()
	if h == nil {
		return errors.New("no recognition stream")
	}
	return h.SendAudio(data)
}

// closeHandle marks the stream permanently closed and flushes the active
// handle, so the recognizer emits its remaining finals and closes the
// transcript channels. The supervisor surfaces any close error.
func (p *Pipeline) closeHandle() {
	p.handleMu.Lock()
	p.handleClosed = true
	h := p.handle
	p.handleMu.Unlock()
	if h != nil {
		h.Close()
	}
}

// consumeStream pumps one stream's transcripts until its channels close.
// Interim results are display-only and never persisted; final results become
// committed segments. A commit failure means the log is no longer durable,
// which is the one error that kills the session outright — the remaining
// finals are still drained so a blocked provider can shut down.
func (p *Pipeline) consumeStream(ctx context.Context, h stt.SessionHandle, committer *session.Committer) error {
	partialsDone := make(chan struct{})
	go func() {
		defer close(partialsDone)
		for t := range h.Partials() {
			p.metrics.RecordRecognition(ctx, "interim")
			committer.HandleInterim(t)
		}
	}()

	var commitErr error
	for t := range h.Finals() {
		if commitErr != nil {
			continue
		}
		p.metrics.RecordRecognition(ctx, "final")
		if t.Text == "" {
			continue
		}
		seg, err := committer.CommitFinal(ctx, t)
		if err != nil {
			commitErr = err
			continue
		}
		p.logger.Debug("segment committed",
			"sequence", seg.Sequence, "confidence", t.Confidence)
	}
	<-partialsDone
	return commitErr
}
