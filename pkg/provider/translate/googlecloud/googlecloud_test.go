package googlecloud

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/verbalis/verbalis/pkg/provider/translate"
)

// newMockServer returns a test server that answers POST
// /language/translate/v2 with the given translated text and records the
// decoded request body into *got.
func newMockServer(t *testing.T, translated string, got *translateRequest) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/language/translate/v2" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if got != nil {
			if err := json.NewDecoder(r.Body).Decode(got); err != nil {
				t.Errorf("decode request: %v", err)
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"translations":[{"translatedText":"` + translated + `"}]}}`))
	}))
}

func TestNew_EmptyAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty API key")
	}
}

func TestTranslate_Success(t *testing.T) {
	var got translateRequest
	srv := newMockServer(t, "Let us pray.", &got)
	defer srv.Close()

	p, err := New("key", WithBaseURL(srv.URL))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	out, err := p.Translate(context.Background(), translate.Request{
		Text:           "Oremos.",
		SourceLanguage: "pt-BR",
		TargetLanguage: "en-US",
	})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out != "Let us pray." {
		t.Errorf("translation: want %q, got %q", "Let us pray.", out)
	}

	// BCP-47 tags must be reduced to base codes for the v2 API.
	if got.Source != "pt" {
		t.Errorf("source: want %q, got %q", "pt", got.Source)
	}
	if got.Target != "en" {
		t.Errorf("target: want %q, got %q", "en", got.Target)
	}
	if got.Format != "text" {
		t.Errorf("format: want %q, got %q", "text", got.Format)
	}
	if len(got.Q) != 1 || got.Q[0] != "Oremos." {
		t.Errorf("q: want [Oremos.], got %v", got.Q)
	}
}

func TestTranslate_ModelForwarded(t *testing.T) {
	var got translateRequest
	srv := newMockServer(t, "x", &got)
	defer srv.Close()

	p, _ := New("key", WithBaseURL(srv.URL), WithModel("nmt"))
	if _, err := p.Translate(context.Background(), translate.Request{Text: "a", TargetLanguage: "en"}); err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got.Model != "nmt" {
		t.Errorf("model: want %q, got %q", "nmt", got.Model)
	}
}

func TestTranslate_EmptyTextShortCircuits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("server should not be called for empty text")
	}))
	defer srv.Close()

	p, _ := New("key", WithBaseURL(srv.URL))
	out, err := p.Translate(context.Background(), translate.Request{Text: "", TargetLanguage: "en"})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if out != "" {
		t.Errorf("want empty output, got %q", out)
	}
}

func TestTranslate_MissingTarget(t *testing.T) {
	p, _ := New("key")
	if _, err := p.Translate(context.Background(), translate.Request{Text: "a"}); err == nil {
		t.Fatal("expected error for missing target language")
	}
}

func TestTranslate_ServerErrorSurfacesMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"code":403,"message":"API key invalid"}}`))
	}))
	defer srv.Close()

	p, _ := New("bad-key", WithBaseURL(srv.URL))
	_, err := p.Translate(context.Background(), translate.Request{Text: "a", TargetLanguage: "en"})
	if err == nil {
		t.Fatal("expected error from HTTP 403")
	}
	if want := "API key invalid"; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q should contain %q", err.Error(), want)
	}
}

func TestTranslate_EmptyTranslations(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"translations":[]}}`))
	}))
	defer srv.Close()

	p, _ := New("key", WithBaseURL(srv.URL))
	if _, err := p.Translate(context.Background(), translate.Request{Text: "a", TargetLanguage: "en"}); err == nil {
		t.Fatal("expected error for empty translations")
	}
}

func TestBaseLanguage(t *testing.T) {
	cases := []struct{ in, want string }{
		{"pt-BR", "pt"},
		{"en-US", "en"},
		{"es", "es"},
		{"", ""},
	}
	for _, c := range cases {
		if got := baseLanguage(c.in); got != c.want {
			t.Errorf("baseLanguage(%q): want %q, got %q", c.in, c.want, got)
		}
	}
}
