package session

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	logTimestampLayout = "2006-01-02 15:04:05"
	logFileLayout      = "20060102_150405"
)

var (
	headerRule  = strings.Repeat("=", 60)
	segmentRule = strings.Repeat("-", 60)
)

// LogWriter writes the append-only session log.
//
// Every Append flushes to durable storage before returning, so a crash after
// Append never loses a segment that was acknowledged elsewhere. The file is
// plain UTF-8 text and stays readable by an external viewer (tail -f) while
// the session is still running.
//
// LogWriter is safe for concurrent use, though the pipeline appends from a
// single consumer flow.
type LogWriter struct {
	mu     sync.Mutex
	f      *os.File
	path   string
	source string
	target string
	closed bool
}

// OpenLog creates a new session log in dir, named after the session start
// time (session_20060102_150405.log), and writes the header. dir is created
// if it does not exist.
func OpenLog(dir, sourceLanguage, targetLanguage string, startedAt time.Time) (*LogWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("session: create log directory: %w", err)
	}

	path := filepath.Join(dir, "session_"+startedAt.Format(logFileLayout)+".log")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("session: create log file: %w", err)
	}

	w := &LogWriter{f: f, path: path, source: sourceLanguage, target: targetLanguage}

	var b strings.Builder
	b.WriteString("LIVE TRANSLATION SESSION\n")
	b.WriteString(headerRule + "\n")
	fmt.Fprintf(&b, "Date: %s\n", startedAt.Format(logTimestampLayout))
	fmt.Fprintf(&b, "Source Language: %s\n", sourceLanguage)
	fmt.Fprintf(&b, "Target Language: %s\n", targetLanguage)
	b.WriteString(headerRule + "\n\n")

	if err := w.writeAndSync(b.String()); err != nil {
		f.Close()
		os.Remove(path)
		return nil, err
	}
	return w, nil
}

// Path returns the log file's location on disk.
func (w *LogWriter) Path() string {
	return w.path
}

// Append writes one segment block and flushes it to disk. It returns only
// after the bytes are durable; the caller must not acknowledge the segment
// until then. Appending to a closed log is an error.
func (w *LogWriter) Append(seg Segment) error {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] Segment %d\n", seg.CommittedAt.Format("15:04:05"), seg.Sequence)
	fmt.Fprintf(&b, "Original (%s): %s\n", w.source, seg.Original)
	if seg.Translated != "" {
		fmt.Fprintf(&b, "Translation (%s): %s\n", w.target, seg.Translated)
	}
	b.WriteString(segmentRule + "\n\n")

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("session: append to closed log %s", w.path)
	}
	return w.writeAndSync(b.String())
}

// Close writes the trailer and closes the file. The trailer is written
// exactly once; subsequent calls are no-ops returning nil.
func (w *LogWriter) Close(totalSegments uint64, endedAt time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	var b strings.Builder
	b.WriteString(headerRule + "\n")
	fmt.Fprintf(&b, "Session ended: %s\n", endedAt.Format(logTimestampLayout))
	fmt.Fprintf(&b, "Total segments: %d\n", totalSegments)

	werr := w.writeAndSync(b.String())
	cerr := w.f.Close()
	if werr != nil {
		return werr
	}
	if cerr != nil {
		return fmt.Errorf("session: close log file: %w", cerr)
	}
	return nil
}

// writeAndSync is called with w.mu held (or before w is shared).
func (w *LogWriter) writeAndSync(s string) error {
	if _, err := w.f.WriteString(s); err != nil {
		return fmt.Errorf("session: write log: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("session: sync log: %w", err)
	}
	return nil
}
