// Package googlecloud provides a translator backed by the Google Cloud
// Translation v2 REST API.
//
// The v2 API is the simple key-authenticated endpoint: each call is a single
// POST with the text and language pair, which matches the per-segment
// synchronous translation the committer performs.
package googlecloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/verbalis/verbalis/pkg/provider/translate"
)

const defaultBaseURL = "https://translation.googleapis.com"

var _ translate.Provider = (*Provider)(nil)

// Option is a functional option for configuring the Provider.
type Option func(*Provider)

// WithBaseURL overrides the API base URL. Useful for tests and proxies.
func WithBaseURL(baseURL string) Option {
	return func(p *Provider) {
		p.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithModel selects the translation model ("nmt" or "base"). Empty lets the
// service choose.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithHTTPClient replaces the default HTTP client (10 s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements translate.Provider against the Translation v2 API.
type Provider struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// New creates a new Provider. apiKey must be non-empty.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, errors.New("googlecloud: apiKey must not be empty")
	}
	p := &Provider{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// translateRequest is the JSON body for POST /language/translate/v2.
type translateRequest struct {
	Q      []string `json:"q"`
	Source string   `json:"source,omitempty"`
	Target string   `json:"target"`
	Format string   `json:"format"`
	Model  string   `json:"model,omitempty"`
}

// translateResponse is the JSON structure returned by the v2 endpoint.
type translateResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText string `json:"translatedText"`
		} `json:"translations"`
	} `json:"data"`
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Translate implements translate.Provider. BCP-47 tags are reduced to their
// base language codes, which is what the v2 API expects ("pt-BR" → "pt").
func (p *Provider) Translate(ctx context.Context, req translate.Request) (string, error) {
	if req.Text == "" {
		return "", nil
	}
	if req.TargetLanguage == "" {
		return "", errors.New("googlecloud: target language must not be empty")
	}

	body := translateRequest{
		Q:      []string{req.Text},
		Source: baseLanguage(req.SourceLanguage),
		Target: baseLanguage(req.TargetLanguage),
		Format: "text",
		Model:  p.model,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("googlecloud: marshal request: %w", err)
	}

	endpoint := p.baseURL + "/language/translate/v2?key=" + url.QueryEscape(p.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("googlecloud: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("googlecloud: http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("googlecloud: read response body: %w", err)
	}

	var parsed translateResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("googlecloud: parse JSON response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		msg := parsed.Error.Message
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return "", fmt.Errorf("googlecloud: server returned HTTP %d: %s", resp.StatusCode, msg)
	}
	if len(parsed.Data.Translations) == 0 {
		return "", errors.New("googlecloud: empty translations in response")
	}

	return parsed.Data.Translations[0].TranslatedText, nil
}

// baseLanguage reduces a BCP-47 tag to its primary subtag ("pt-BR" → "pt").
func baseLanguage(tag string) string {
	if i := strings.IndexByte(tag, '-'); i >= 0 {
		return tag[:i]
	}
	return tag
}
