// Package session turns final recognition results into durable, numbered
// segments of a live translation session.
//
// The [Committer] consumes transcripts, applies the glossary, invokes the
// translator synchronously per segment, and hands each committed [Segment] to
// the [LogWriter] before acknowledging it anywhere else. The log file is the
// sole durable artifact of a session: a segment is only "committed" once its
// bytes are flushed to disk.
package session

import "time"

// Segment is one committed unit of original and translated text,
// corresponding to exactly one final recognition result. Segments are
// immutable once created.
type Segment struct {
	// Sequence is the 1-based position of the segment within the session.
	// Strictly increasing, matching the order final results were received.
	Sequence uint64

	// CommittedAt is the wall-clock time the segment was committed.
	CommittedAt time.Time

	// Original is the transcript text after glossary corrections.
	Original string

	// Translated is the translation of Original, the error marker when
	// translation failed, or empty when translation is disabled.
	Translated string

	// SourceLanguage and TargetLanguage are the configured language codes.
	SourceLanguage string
	TargetLanguage string
}
