// Package translate defines the Provider interface for machine translation
// backends.
//
// Translation in the pipeline is synchronous and per-segment: the committer
// calls Translate once for each final transcript and waits for the result
// before writing the segment. Providers therefore only need a single
// request/response method, not a streaming surface.
//
// Implementations must be safe for concurrent use.
package translate

import "context"

// Request describes one translation call.
type Request struct {
	// Text is the source text to translate.
	Text string

	// SourceLanguage is the BCP-47 tag of the input (e.g., "pt-BR").
	// Implementations reduce it to whatever granularity their service
	// accepts. Empty lets the service detect the language, if supported.
	SourceLanguage string

	// TargetLanguage is the BCP-47 tag to translate into (e.g., "en").
	TargetLanguage string
}

// Provider is the abstraction over any translation backend.
type Provider interface {
	// Translate returns the translation of req.Text, or an error. An error
	// never aborts the session; the committer records a marker in place of
	// the translation and moves on.
	Translate(ctx context.Context, req Request) (string, error)
}
