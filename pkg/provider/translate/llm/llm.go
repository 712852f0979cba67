// Package llm provides a translator backed by a chat model via
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface that
// supports OpenAI, Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq, and
// local llama.cpp servers.
//
// Chat-based translation is slower and costlier per segment than a dedicated
// translation API but handles idiom, register, and domain vocabulary better,
// which matters for spoken material.
//
// Usage:
//
//	p, err := llm.New("openai", "gpt-4o-mini", anyllmlib.WithAPIKey("sk-..."))
//	out, err := p.Translate(ctx, translate.Request{Text: "Oremos.", TargetLanguage: "en"})
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/verbalis/verbalis/pkg/provider/translate"
)

// translationTemperature keeps the model close to literal output; translation
// wants fidelity, not creativity.
const translationTemperature = 0.2

var _ translate.Provider = (*Provider)(nil)

// Provider implements translate.Provider by prompting a chat model.
type Provider struct {
	backend anyllmlib.Provider
	model   string
}

// New creates a new Provider backed by the given LLM provider name.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama",
// "deepseek", "mistral", "groq", "llamacpp", "llamafile".
//
// model is the specific model to use (e.g., "gpt-4o-mini").
//
// opts are any-llm-go configuration options (e.g., anyllmlib.WithAPIKey,
// anyllmlib.WithBaseURL). If no API key option is provided, the provider falls
// back to the relevant environment variable (OPENAI_API_KEY, etc.).
func New(providerName string, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if providerName == "" {
		return nil, errors.New("llm: providerName must not be empty")
	}
	if model == "" {
		return nil, errors.New("llm: model must not be empty")
	}

	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("llm: create %q backend: %w", providerName, err)
	}

	return &Provider{backend: backend, model: model}, nil
}

// createBackend creates the underlying any-llm-go provider for the given name.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq, llamacpp, llamafile", providerName)
	}
}

// Translate implements translate.Provider.
func (p *Provider) Translate(ctx context.Context, req translate.Request) (string, error) {
	if req.Text == "" {
		return "", nil
	}
	if req.TargetLanguage == "" {
		return "", errors.New("llm: target language must not be empty")
	}

	temp := translationTemperature
	params := anyllmlib.CompletionParams{
		Model: p.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleSystem, Content: systemPrompt(req.SourceLanguage, req.TargetLanguage)},
			{Role: anyllmlib.RoleUser, Content: req.Text},
		},
		Temperature: &temp,
	}

	resp, err := p.backend.Completion(ctx, params)
	if err != nil {
		return "", fmt.Errorf("llm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("llm: empty choices in response")
	}

	out := strings.TrimSpace(resp.Choices[0].Message.ContentString())
	if out == "" {
		return "", errors.New("llm: empty translation in response")
	}
	return out, nil
}

// systemPrompt builds the translation instruction for the language pair.
func systemPrompt(source, target string) string {
	var b strings.Builder
	b.WriteString("You are a professional live interpreter.")
	if source != "" {
		fmt.Fprintf(&b, " Translate the user's message from %s to %s.", source, target)
	} else {
		fmt.Fprintf(&b, " Translate the user's message to %s.", target)
	}
	b.WriteString(" Preserve meaning, register, and names. Output only the translation, with no commentary.")
	return b.String()
}
