// Package dedupe implements the multi-method duplicate cascade of §4.4:
// phone match, perceptual image hash, trigram text similarity, and an
// optional embedding cosine-similarity step.
package dedupe

import "strings"

// Trigrams returns the set of character trigrams of s (case-folded,
// whitespace-padded), the classic input to a trigram similarity index
// (§9 "trigram on title").
func Trigrams(s string) map[string]struct{} {
	s = " " + strings.ToLower(strings.TrimSpace(s)) + " "
	runes := []rune(s)
	out := make(map[string]struct{})
	for i := 0; i+3 <= len(runes); i++ {
		out[string(runes[i:i+3])] = struct{}{}
	}
	return out
}

// TrigramSimilarity is the Jaccard index of two trigram sets — the
// standard similarity measure backing a `pg_trgm`-style index, which
// this stage reimplements in Go since the retrieved pack has no
// trigram-index library (Postgres's own `pg_trgm` extension, referenced
// via plain SQL, is what DESIGN.md assumes at the storage layer).
func TrigramSimilarity(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	shared := 0
	small, big := a, b
	if len(a) > len(b) {
		small, big = b, a
	}
	for t := range small {
		if _, ok := big[t]; ok {
			shared++
		}
	}
	union := len(a) + len(b) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}
