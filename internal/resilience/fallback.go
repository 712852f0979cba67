package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed reports that no entry in a [FallbackGroup] could serve the
// call: every provider either returned an error or sat behind an open
// circuit breaker.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures the circuit breaker each group entry gets.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// fallbackEntry pairs one provider with the breaker that tracks its health.
type fallbackEntry[T any] struct {
	name    string
	value   T
	breaker *CircuitBreaker
}

// FallbackGroup chains a primary provider with ordered spares of the same
// type, the way the pipeline chains a primary recognizer or translator with
// its configured fallbacks. A call is offered to each entry in turn; entries
// whose breaker is open are skipped without being tried.
//
// Entries are registered before the session starts, so iteration needs no
// locking; the per-entry breakers carry their own synchronisation.
type FallbackGroup[T any] struct {
	entries []fallbackEntry[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates a group seeded with the primary provider. Register
// spares with [FallbackGroup.AddFallback].
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.add(primaryName, primary)
	return fg
}

// AddFallback appends a spare provider, tried after everything registered
// before it.
func (fg *FallbackGroup[T]) AddFallback(name string, fallback T) {
	fg.add(name, fallback)
}

func (fg *FallbackGroup[T]) add(name string, value T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.entries = append(fg.entries, fallbackEntry[T]{
		name:    name,
		value:   value,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// attempt offers fn to each entry in order and stops at the first success.
// When every entry fails it returns [ErrAllFailed] wrapping the last error.
func (fg *FallbackGroup[T]) attempt(fn func(entry *fallbackEntry[T]) error) error {
	var lastErr error
	for i := range fg.entries {
		entry := &fg.entries[i]
		err := fn(entry)
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("provider skipped, circuit open", "provider", entry.name)
		} else {
			slog.Warn("provider failed, trying next", "provider", entry.name, "error", err)
		}
	}
	return fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}

// Execute runs fn against the first healthy entry.
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	return fg.attempt(func(entry *fallbackEntry[T]) error {
		return entry.breaker.Execute(func() error { return fn(entry.value) })
	})
}

// ExecuteWithResult is [FallbackGroup.Execute] for calls that produce a value.
// It is a package-level function because a method cannot introduce the result
// type parameter.
func ExecuteWithResult[T any, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var result R
	err := fg.attempt(func(entry *fallbackEntry[T]) error {
		return entry.breaker.Execute(func() error {
			var innerErr error
			result, innerErr = fn(entry.value)
			return innerErr
		})
	})
	if err != nil {
		var zero R
		return zero, err
	}
	return result, nil
}
