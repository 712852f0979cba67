package resilience

import (
	"context"

	"github.com/verbalis/verbalis/pkg/provider/stt"
)

// RecognizerFallback implements [stt.Provider] with automatic failover across
// multiple recognition backends. Each backend has its own circuit breaker.
//
// Only stream establishment is covered by failover: once a recognition
// session is open, mid-stream transport failures end that session and are
// handled by the pipeline's shutdown sequence, not by switching backends
// (a new backend could not reproduce the audio already sent).
type RecognizerFallback struct {
	group *FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*RecognizerFallback)(nil)

// NewRecognizerFallback creates a [RecognizerFallback] with primary as the
// preferred backend.
func NewRecognizerFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *RecognizerFallback {
	return &RecognizerFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional recognition provider as a fallback.
func (f *RecognizerFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// StartStream opens a streaming recognition session against the first healthy
// provider. If the primary fails to start the stream, subsequent fallbacks
// are tried in registration order.
func (f *RecognizerFallback) StartStream(ctx context.Context, cfg stt.StreamConfig) (stt.SessionHandle, error) {
	return ExecuteWithResult(f.group, func(p stt.Provider) (stt.SessionHandle, error) {
		return p.StartStream(ctx, cfg)
	})
}
