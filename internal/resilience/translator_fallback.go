package resilience

import (
	"context"

	"github.com/verbalis/verbalis/pkg/provider/translate"
)

// TranslatorFallback implements [translate.Provider] with automatic failover
// across multiple translation backends. Each backend has its own circuit
// breaker, so a translator that keeps failing is bypassed without waiting for
// its timeout on every segment.
type TranslatorFallback struct {
	group *FallbackGroup[translate.Provider]
}

var _ translate.Provider = (*TranslatorFallback)(nil)

// NewTranslatorFallback creates a [TranslatorFallback] with primary as the
// preferred backend.
func NewTranslatorFallback(primary translate.Provider, primaryName string, cfg FallbackConfig) *TranslatorFallback {
	return &TranslatorFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional translation provider as a fallback.
func (f *TranslatorFallback) AddFallback(name string, provider translate.Provider) {
	f.group.AddFallback(name, provider)
}

// Translate sends the request to the first healthy provider. If the primary
// fails, subsequent fallbacks are tried; if every backend fails, the error
// wraps [ErrAllFailed] and the committer substitutes its error marker.
func (f *TranslatorFallback) Translate(ctx context.Context, req translate.Request) (string, error) {
	return ExecuteWithResult(f.group, func(p translate.Provider) (string, error) {
		return p.Translate(ctx, req)
	})
}
