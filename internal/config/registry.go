package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/verbalis/verbalis/pkg/audio"
	"github.com/verbalis/verbalis/pkg/provider/stt"
	"github.com/verbalis/verbalis/pkg/provider/translate"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	recognizers map[string]func(ProviderEntry) (stt.Provider, error)
	translators map[string]func(ProviderEntry) (translate.Provider, error)
	devices     map[string]func(AudioConfig) (audio.Device, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		recognizers: make(map[string]func(ProviderEntry) (stt.Provider, error)),
		translators: make(map[string]func(ProviderEntry) (translate.Provider, error)),
		devices:     make(map[string]func(AudioConfig) (audio.Device, error)),
	}
}

// RegisterRecognizer registers a recognition provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterRecognizer(name string, factory func(ProviderEntry) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recognizers[name] = factory
}

// RegisterTranslator registers a translation provider factory under name.
func (r *Registry) RegisterTranslator(name string, factory func(ProviderEntry) (translate.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.translators[name] = factory
}

// RegisterDevice registers an audio device backend factory under name.
func (r *Registry) RegisterDevice(name string, factory func(AudioConfig) (audio.Device, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.devices[name] = factory
}

// CreateRecognizer instantiates a recognition provider using the factory
// registered under entry.Name. Returns [ErrProviderNotRegistered] if no
// factory has been registered for that name.
func (r *Registry) CreateRecognizer(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.recognizers[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: recognizer/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateTranslator instantiates a translation provider using the factory
// registered under entry.Name.
func (r *Registry) CreateTranslator(entry ProviderEntry) (translate.Provider, error) {
	r.mu.RLock()
	factory, ok := r.translators[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: translator/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateDevice instantiates an audio device backend using the factory
// registered under cfg.Backend.
func (r *Registry) CreateDevice(cfg AudioConfig) (audio.Device, error) {
	r.mu.RLock()
	factory, ok := r.devices[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: audio/%q", ErrProviderNotRegistered, cfg.Backend)
	}
	return factory(cfg)
}

// StringOption returns the string value of an Options key, or def when the
// key is absent or not a string.
func (e ProviderEntry) StringOption(key, def string) string {
	if v, ok := e.Options[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// FloatOption returns the numeric value of an Options key, or def when the
// key is absent or not numeric.
func (e ProviderEntry) FloatOption(key string, def float64) float64 {
	switch v := e.Options[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}
