// Package mock provides a test double for the translate.Provider interface.
//
// Use Translator to control translation output per call and inspect recorded
// requests:
//
//	tr := &mock.Translator{Result: func(req translate.Request) (string, error) {
//	    return "[" + req.Text + "]", nil
//	}}
package mock

import (
	"context"
	"sync"

	"github.com/verbalis/verbalis/pkg/provider/translate"
)

// Translator is a mock implementation of translate.Provider.
type Translator struct {
	mu sync.Mutex

	// Result computes the return values for each Translate call. If nil, the
	// input text is echoed back unchanged.
	Result func(req translate.Request) (string, error)

	// TranslateErr, if non-nil, is returned by every Translate call and takes
	// precedence over Result.
	TranslateErr error

	// Calls records every request passed to Translate, in order.
	Calls []translate.Request
}

var _ translate.Provider = (*Translator)(nil)

// Translate records the call and returns the configured result.
func (t *Translator) Translate(ctx context.Context, req translate.Request) (string, error) {
	t.mu.Lock()
	t.Calls = append(t.Calls, req)
	result := t.Result
	err := t.TranslateErr
	t.mu.Unlock()

	if err != nil {
		return "", err
	}
	if result != nil {
		return result(req)
	}
	return req.Text, nil
}

// CallCount returns the number of Translate calls. Thread-safe.
func (t *Translator) CallCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.Calls)
}
