// Package glossary enforces consistent spelling of domain vocabulary in
// transcribed text before it reaches translation.
//
// Speech recognizers routinely mangle proper nouns and specialized terms the
// model has rarely seen ("Gethsemane" becomes "get seminary", "Ebenezer"
// becomes "ebb and easer"). The glossary fixes these in two passes over each
// final transcript:
//
//  1. Exact replacements: a configured alias map rewrites known
//     mistranscriptions verbatim ("ebb and easer" -> "Ebenezer").
//  2. Phonetic matching: remaining words and phrases are compared against the
//     canonical term list using Double Metaphone codes ranked by Jaro-Winkler
//     similarity, catching misspellings the alias map does not anticipate.
//
// Both passes slide an n-gram window over the text, widest window first, so
// multi-word terms win over their single-word fragments. An empty glossary is
// a no-op and costs nothing per segment.
package glossary

import (
	"strings"
	"unicode"
)

// Correction records a single substitution made by Apply.
type Correction struct {
	// Original is the text span as it appeared in the transcript.
	Original string
	// Corrected is the glossary form it was replaced with.
	Corrected string
	// Confidence is the Jaro-Winkler score for phonetic matches, or 1.0 for
	// exact alias replacements.
	Confidence float64
	// Method is "exact" or "phonetic".
	Method string
}

// Option configures a Glossary.
type Option func(*Glossary)

// WithPhoneticThreshold sets the minimum Jaro-Winkler score for candidates
// that already match phonetically. Default 0.70.
func WithPhoneticThreshold(t float64) Option {
	return func(g *Glossary) { g.matcher.phoneticThreshold = t }
}

// WithFuzzyThreshold sets the minimum Jaro-Winkler score for candidates with
// no phonetic overlap. Default 0.85.
func WithFuzzyThreshold(t float64) Option {
	return func(g *Glossary) { g.matcher.fuzzyThreshold = t }
}

// WithCaseSensitiveAliases makes alias lookup case-sensitive. By default
// "Ebb And Easer" and "ebb and easer" hit the same alias entry.
func WithCaseSensitiveAliases() Option {
	return func(g *Glossary) { g.caseSensitive = true }
}

// Glossary holds the canonical term list and alias map. It is read-only after
// construction and safe for concurrent use.
type Glossary struct {
	terms         []string
	aliases       map[string]string
	caseSensitive bool
	maxWindow     int
	matcher       matcher
}

// New builds a glossary from canonical terms and an alias map of known
// mistranscriptions to their canonical form. Either argument may be empty.
func New(terms []string, aliases map[string]string, opts ...Option) *Glossary {
	g := &Glossary{
		matcher: matcher{
			phoneticThreshold: defaultPhoneticThreshold,
			fuzzyThreshold:    defaultFuzzyThreshold,
		},
	}
	for _, o := range opts {
		o(g)
	}

	for _, t := range terms {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		g.terms = append(g.terms, t)
		if n := len(strings.Fields(t)); n > g.maxWindow {
			g.maxWindow = n
		}
	}

	if len(aliases) > 0 {
		g.aliases = make(map[string]string, len(aliases))
		for alias, canonical := range aliases {
			alias = strings.TrimSpace(alias)
			canonical = strings.TrimSpace(canonical)
			if alias == "" || canonical == "" {
				continue
			}
			g.aliases[g.aliasKey(alias)] = canonical
			if n := len(strings.Fields(alias)); n > g.maxWindow {
				g.maxWindow = n
			}
		}
	}

	return g
}

// Empty reports whether the glossary has no terms and no aliases.
func (g *Glossary) Empty() bool {
	return len(g.terms) == 0 && len(g.aliases) == 0
}

func (g *Glossary) aliasKey(s string) string {
	if g.caseSensitive {
		return s
	}
	return strings.ToLower(s)
}

// Apply rewrites glossary terms in text and returns the corrected text along
// with every substitution made. When the glossary is empty, text is returned
// unchanged with no allocations.
func (g *Glossary) Apply(text string) (string, []Correction) {
	if g.Empty() || strings.TrimSpace(text) == "" {
		return text, nil
	}

	tokens := strings.Fields(text)
	var out []string
	var corrections []Correction

	i := 0
	for i < len(tokens) {
		replaced := false

		// Widest window first so "mount of olives" beats "olives".
		maxN := g.maxWindow
		if rem := len(tokens) - i; maxN > rem {
			maxN = rem
		}
		for n := maxN; n >= 1 && !replaced; n-- {
			window := tokens[i : i+n]
			core, prefix, suffix := splitPunct(window)
			if core == "" {
				continue
			}

			if canonical, ok := g.aliases[g.aliasKey(core)]; ok {
				out = append(out, prefix+canonical+suffix)
				corrections = append(corrections, Correction{
					Original:   core,
					Corrected:  canonical,
					Confidence: 1.0,
					Method:     "exact",
				})
				i += n
				replaced = true
				continue
			}

			if corrected, score, ok := g.matcher.match(core, g.terms); ok {
				out = append(out, prefix+corrected+suffix)
				corrections = append(corrections, Correction{
					Original:   core,
					Corrected:  corrected,
					Confidence: score,
					Method:     "phonetic",
				})
				i += n
				replaced = true
			}
		}

		if !replaced {
			out = append(out, tokens[i])
			i++
		}
	}

	if len(corrections) == 0 {
		return text, nil
	}
	return strings.Join(out, " "), corrections
}

// splitPunct joins the window's tokens and strips punctuation from the edges,
// returning the bare phrase plus the leading punctuation of the first token
// and trailing punctuation of the last. Punctuation inside the phrase (as in
// "ebb and easer,") disqualifies the window, except on its final token.
func splitPunct(window []string) (core, prefix, suffix string) {
	if len(window) == 1 {
		tok := window[0]
		trimmed := strings.TrimLeftFunc(tok, isEdgePunct)
		prefix = tok[:len(tok)-len(trimmed)]
		core = strings.TrimRightFunc(trimmed, isEdgePunct)
		suffix = trimmed[len(core):]
		return core, prefix, suffix
	}

	// Interior tokens must be clean words or the n-gram does not represent a
	// contiguous phrase.
	for _, tok := range window[:len(window)-1] {
		if strings.TrimFunc(tok, isEdgePunct) != tok {
			return "", "", ""
		}
	}
	last := window[len(window)-1]
	trimmedLast := strings.TrimRightFunc(last, isEdgePunct)
	if strings.TrimLeftFunc(trimmedLast, isEdgePunct) != trimmedLast {
		return "", "", ""
	}
	suffix = last[len(trimmedLast):]
	core = strings.Join(window[:len(window)-1], " ") + " " + trimmedLast
	return core, "", suffix
}

func isEdgePunct(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}
