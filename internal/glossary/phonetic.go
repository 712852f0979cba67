package glossary

import (
	"strings"

	"github.com/antzucaro/matchr"
)

const (
	defaultPhoneticThreshold = 0.70
	defaultFuzzyThreshold    = 0.85
)

// matcher aligns spoken words with canonical glossary terms using Double
// Metaphone phonetic encoding combined with Jaro-Winkler similarity for
// ranked candidate selection.
//
// The algorithm proceeds in two stages:
//
//  1. Phonetic candidate filtering: Double Metaphone codes are computed for
//     each word in the input and for each term. If any code from the input
//     overlaps with any code from a term, the term becomes a phonetic
//     candidate.
//
//  2. Jaro-Winkler ranking: Among phonetic candidates, the term with the
//     highest Jaro-Winkler similarity (computed on the original strings,
//     case-insensitive) is selected — provided its score exceeds the
//     phonetic threshold. When no phonetic candidate is found, a secondary
//     pass tests pure Jaro-Winkler similarity against all terms using the
//     higher fuzzy threshold.
//
// Multi-word terms (e.g., "Mount of Olives") are supported: the matcher
// computes phonetic codes per word and considers the best pairwise score
// across all word pairs when ranking candidates.
//
// matcher is read-only after construction and safe for concurrent use.
type matcher struct {
	phoneticThreshold float64
	fuzzyThreshold    float64
}

// match attempts to find the term most phonetically similar to word.
// word may be a single word or a space-separated phrase (n-gram). When
// matched is false, corrected equals word unchanged and confidence is 0.
func (m *matcher) match(word string, terms []string) (corrected string, confidence float64, matched bool) {
	if len(terms) == 0 || strings.TrimSpace(word) == "" {
		return word, 0, false
	}

	wordLower := strings.ToLower(strings.TrimSpace(word))
	wordTokens := strings.Fields(wordLower)

	inputCodes := codesForTokens(wordTokens)

	type candidate struct {
		term     string
		score    float64
		phonetic bool
	}

	var best candidate

	for _, term := range terms {
		termLower := strings.ToLower(strings.TrimSpace(term))
		if termLower == "" {
			continue
		}
		if termLower == wordLower {
			// Already canonical; nothing to correct.
			return word, 0, false
		}
		termTokens := strings.Fields(termLower)

		termCodes := codesForTokens(termTokens)
		phoneticMatch := codesOverlap(inputCodes, termCodes)

		jwScore := bestJWScore(wordTokens, termTokens, wordLower, termLower)

		if phoneticMatch {
			if jwScore >= m.phoneticThreshold {
				if !best.phonetic || jwScore > best.score {
					best = candidate{term: term, score: jwScore, phonetic: true}
				}
			}
		} else if !best.phonetic {
			if jwScore >= m.fuzzyThreshold && jwScore > best.score {
				best = candidate{term: term, score: jwScore, phonetic: false}
			}
		}
	}

	if best.term != "" {
		return best.term, best.score, true
	}
	return word, 0, false
}

// codesForTokens returns the union of all Double Metaphone codes for the
// given tokens. Empty codes (produced when the word is too short or contains
// no consonants) are excluded.
func codesForTokens(tokens []string) map[string]struct{} {
	codes := make(map[string]struct{}, len(tokens)*2)
	for _, t := range tokens {
		p, s := matchr.DoubleMetaphone(t)
		if p != "" {
			codes[p] = struct{}{}
		}
		if s != "" {
			codes[s] = struct{}{}
		}
	}
	return codes
}

// codesOverlap returns true if the two code sets share at least one code.
func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}

// bestJWScore computes the highest Jaro-Winkler similarity between the input
// and the term using three strategies:
//
//  1. Full-string comparison (e.g., "get seminary" vs "gethsemane").
//  2. Space-stripped comparison (e.g., "getseminary" vs "gethsemane").
//  3. Best pairwise word comparison — the maximum score between any input
//     token and any term token. Only applied when one side is a single word;
//     for phrase-to-phrase comparison a single shared token must not stand in
//     for the whole phrase.
func bestJWScore(inputTokens, termTokens []string, inputFull, termFull string) float64 {
	score := matchr.JaroWinkler(inputFull, termFull, false)

	if len(inputTokens) > 1 || len(termTokens) > 1 {
		concat1 := strings.Join(inputTokens, "")
		concat2 := strings.Join(termTokens, "")
		if s := matchr.JaroWinkler(concat1, concat2, false); s > score {
			score = s
		}
	}

	if len(inputTokens) == 1 || len(termTokens) == 1 {
		for _, it := range inputTokens {
			for _, tt := range termTokens {
				if s := matchr.JaroWinkler(it, tt, false); s > score {
					score = s
				}
			}
		}
	}

	return score
}
