// Package normalize maps a parse draft's free-form fields onto the
// canonical NormalizedListing shape (§4.3): brand/model alias matching,
// enum standardization, mileage/year extraction, FX conversion, region
// canonicalization, description hashing, and seller upsert.
package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// accentFold strips combining marks after NFD decomposition, the same
// Cyrillic/Latin-tolerant fold icl00ud-wega-catalog-api's scraper uses
// before fuzzy-comparing free text.
var accentFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold case-folds and accent-strips s for comparison purposes. It does
// not transliterate Cyrillic to Latin; enum/alias tables carry both
// scripts explicitly (§9 "Bulgarian/English variants").
func Fold(s string) string {
	folded, _, err := transform.String(accentFold, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// NormalizeWhitespace collapses runs of whitespace to a single space and
// trims the ends, the exact input description_hash hashes (§4.3).
func NormalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// DescriptionHash computes SHA-256(normalize_whitespace(description)),
// hex-encoded (§4.3).
func DescriptionHash(description string) string {
	sum := sha256.Sum256([]byte(NormalizeWhitespace(description)))
	return hex.EncodeToString(sum[:])
}
