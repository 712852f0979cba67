package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/verbalis/verbalis/internal/glossary"
	"github.com/verbalis/verbalis/pkg/provider/stt"
	"github.com/verbalis/verbalis/pkg/provider/translate"
	translatemock "github.com/verbalis/verbalis/pkg/provider/translate/mock"
)

// recordingObserver captures interim and segment notifications.
type recordingObserver struct {
	mu       sync.Mutex
	interims []string
	segments []Segment
}

func (r *recordingObserver) OnInterim(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interims = append(r.interims, text)
}

func (r *recordingObserver) OnSegment(seg Segment) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.segments = append(r.segments, seg)
}

// failingArchiver always fails, to prove archive errors are non-fatal.
type failingArchiver struct{ calls int }

func (f *failingArchiver) InsertSegment(ctx context.Context, seg Segment) error {
	f.calls++
	return errors.New("archive down")
}

func newTestCommitter(t *testing.T, mutate func(*CommitterConfig)) (*Committer, *LogWriter) {
	t.Helper()
	w, err := OpenLog(t.TempDir(), "pt-BR", "en", time.Now())
	if err != nil {
		t.Fatalf("OpenLog: %v", err)
	}
	t.Cleanup(func() { w.Close(0, time.Now()) })

	cfg := CommitterConfig{
		Log:            w,
		Translator:     &translatemock.Translator{},
		SourceLanguage: "pt-BR",
		TargetLanguage: "en",
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := NewCommitter(cfg)
	if err != nil {
		t.Fatalf("NewCommitter: %v", err)
	}
	return c, w
}

func TestNewCommitter_RequiresLog(t *testing.T) {
	if _, err := NewCommitter(CommitterConfig{}); err == nil {
		t.Fatal("expected error without a log writer")
	}
}

func TestCommitFinal_SequenceStartsAtOneAndIncreases(t *testing.T) {
	c, _ := newTestCommitter(t, nil)

	for i := uint64(1); i <= 3; i++ {
		seg, err := c.CommitFinal(context.Background(), stt.Transcript{Text: "hello"})
		if err != nil {
			t.Fatalf("CommitFinal %d: %v", i, err)
		}
		if seg.Sequence != i {
			t.Errorf("sequence: want %d, got %d", i, seg.Sequence)
		}
	}
	if c.Count() != 3 {
		t.Errorf("Count: want 3, got %d", c.Count())
	}
}

func TestCommitFinal_TranslatesSynchronously(t *testing.T) {
	mock := &translatemock.Translator{
		Result: func(req translate.Request) (string, error) {
			if req.SourceLanguage != "pt-BR" || req.TargetLanguage != "en" {
				t.Errorf("unexpected language pair: %q -> %q", req.SourceLanguage, req.TargetLanguage)
			}
			return "Let us pray.", nil
		},
	}
	c, _ := newTestCommitter(t, func(cfg *CommitterConfig) { cfg.Translator = mock })

	seg, err := c.CommitFinal(context.Background(), stt.Transcript{Text: "Oremos."})
	if err != nil {
		t.Fatalf("CommitFinal: %v", err)
	}
	if seg.Original != "Oremos." {
		t.Errorf("original: got %q", seg.Original)
	}
	if seg.Translated != "Let us pray." {
		t.Errorf("translated: got %q", seg.Translated)
	}
	if mock.CallCount() != 1 {
		t.Errorf("translator calls: want 1, got %d", mock.CallCount())
	}
}

func TestCommitFinal_TranslationFailureUsesMarker(t *testing.T) {
	mock := &translatemock.Translator{TranslateErr: errors.New("quota exceeded")}
	c, _ := newTestCommitter(t, func(cfg *CommitterConfig) { cfg.Translator = mock })

	seg, err := c.CommitFinal(context.Background(), stt.Transcript{Text: "Oremos."})
	if err != nil {
		t.Fatalf("translation failure must not fail the commit: %v", err)
	}
	if !strings.HasPrefix(seg.Translated, "[translation error:") {
		t.Errorf("want error marker, got %q", seg.Translated)
	}
	if !strings.Contains(seg.Translated, "quota exceeded") {
		t.Errorf("marker should carry the cause: %q", seg.Translated)
	}
}

func TestCommitFinal_TranslationDisabled(t *testing.T) {
	c, _ := newTestCommitter(t, func(cfg *CommitterConfig) { cfg.Translator = nil })

	seg, err := c.CommitFinal(context.Background(), stt.Transcript{Text: "Oremos."})
	if err != nil {
		t.Fatalf("CommitFinal: %v", err)
	}
	if seg.Translated != "" {
		t.Errorf("translation disabled: want empty, got %q", seg.Translated)
	}
}

func TestCommitFinal_GlossaryAppliedBeforeTranslation(t *testing.T) {
	var sent string
	mock := &translatemock.Translator{
		Result: func(req translate.Request) (string, error) {
			sent = req.Text
			return req.Text, nil
		},
	}
	c, _ := newTestCommitter(t, func(cfg *CommitterConfig) {
		cfg.Translator = mock
		cfg.Glossary = glossary.New(nil, map[string]string{"ebb and easer": "Ebenezer"})
	})

	seg, err := c.CommitFinal(context.Background(), stt.Transcript{Text: "we sang ebb and easer"})
	if err != nil {
		t.Fatalf("CommitFinal: %v", err)
	}
	if want := "we sang Ebenezer"; seg.Original != want {
		t.Errorf("original: want %q, got %q", want, seg.Original)
	}
	if sent != seg.Original {
		t.Errorf("translator should receive corrected text: got %q", sent)
	}
}

func TestSetGlossary_AppliesFromNextCommit(t *testing.T) {
	c, _ := newTestCommitter(t, func(cfg *CommitterConfig) { cfg.Translator = nil })

	seg, err := c.CommitFinal(context.Background(), stt.Transcript{Text: "we sang ebb and easer"})
	if err != nil {
		t.Fatalf("CommitFinal: %v", err)
	}
	if seg.Original != "we sang ebb and easer" {
		t.Errorf("no glossary yet: got %q", seg.Original)
	}

	c.SetGlossary(glossary.New(nil, map[string]string{"ebb and easer": "Ebenezer"}))

	seg, err = c.CommitFinal(context.Background(), stt.Transcript{Text: "we sang ebb and easer"})
	if err != nil {
		t.Fatalf("CommitFinal: %v", err)
	}
	if want := "we sang Ebenezer"; seg.Original != want {
		t.Errorf("after SetGlossary: want %q, got %q", want, seg.Original)
	}

	c.SetGlossary(nil)

	seg, err = c.CommitFinal(context.Background(), stt.Transcript{Text: "we sang ebb and easer"})
	if err != nil {
		t.Fatalf("CommitFinal: %v", err)
	}
	if seg.Original != "we sang ebb and easer" {
		t.Errorf("nil glossary disables correction: got %q", seg.Original)
	}
}

func TestCommitFinal_ArchiveFailureIsNonFatal(t *testing.T) {
	arch := &failingArchiver{}
	c, _ := newTestCommitter(t, func(cfg *CommitterConfig) { cfg.Archive = arch })

	if _, err := c.CommitFinal(context.Background(), stt.Transcript{Text: "hello"}); err != nil {
		t.Fatalf("archive failure must not fail the commit: %v", err)
	}
	if arch.calls != 1 {
		t.Errorf("archiver calls: want 1, got %d", arch.calls)
	}
	if c.Count() != 1 {
		t.Errorf("Count: want 1, got %d", c.Count())
	}
}

func TestCommitFinal_NotifiesObserversAfterDurableWrite(t *testing.T) {
	obs := &recordingObserver{}
	c, w := newTestCommitter(t, func(cfg *CommitterConfig) { cfg.Observers = []Observer{obs} })

	seg, err := c.CommitFinal(context.Background(), stt.Transcript{Text: "hello"})
	if err != nil {
		t.Fatalf("CommitFinal: %v", err)
	}
	if len(obs.segments) != 1 || obs.segments[0].Sequence != seg.Sequence {
		t.Errorf("observer segments: got %+v", obs.segments)
	}

	// The segment is already on disk by the time observers hear about it.
	if got := readLog(t, w); !strings.Contains(got, "Segment 1") {
		t.Errorf("segment not durable before notification:\n%s", got)
	}
}

func TestHandleInterim_ObserversOnlyNoSegment(t *testing.T) {
	obs := &recordingObserver{}
	c, w := newTestCommitter(t, func(cfg *CommitterConfig) { cfg.Observers = []Observer{obs} })

	c.HandleInterim(stt.Transcript{Text: "good mor"})
	c.HandleInterim(stt.Transcript{Text: "good morning"})

	if len(obs.interims) != 2 {
		t.Errorf("interims: want 2, got %d", len(obs.interims))
	}
	if c.Count() != 0 {
		t.Errorf("interims must not commit segments: count %d", c.Count())
	}
	if got := readLog(t, w); strings.Contains(got, "Segment") {
		t.Errorf("interims must not reach the log:\n%s", got)
	}
}

func TestCommitFinal_FailsWhenLogClosed(t *testing.T) {
	c, w := newTestCommitter(t, nil)
	if err := w.Close(0, time.Now()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := c.CommitFinal(context.Background(), stt.Transcript{Text: "late"}); err == nil {
		t.Fatal("expected fatal error when the log cannot be appended")
	}
	if c.Count() != 0 {
		t.Errorf("failed commit must not advance the sequence: count %d", c.Count())
	}
}
