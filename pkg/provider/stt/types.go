package stt

import "time"

// Transcript represents a recognition result from a streaming provider.
// Both partial (interim) and final transcripts use this type.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// IsFinal indicates whether this is a final (authoritative) or partial
	// (interim) transcript.
	IsFinal bool

	// Confidence is the overall confidence score (0.0–1.0). May be zero if
	// the provider does not report confidence.
	Confidence float64

	// Words contains per-word detail when available. May be nil for providers
	// that don't support word-level output.
	Words []WordDetail

	// Start marks when the utterance began, relative to session start.
	Start time.Duration

	// Duration is the length of the utterance.
	Duration time.Duration
}

// WordDetail holds per-word metadata from providers that support it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// PhraseHint is a vocabulary hint that increases recognition probability for
// uncommon words such as domain terms and proper nouns.
type PhraseHint struct {
	// Phrase is the text to favour (e.g., "Ebenezer").
	Phrase string

	// Boost is the intensity of the hint (provider-specific scale; Deepgram
	// accepts roughly -10..10).
	Boost float64
}
