package normalize

import (
	"github.com/carscout-ai/carscout/internal/domain"
)

// BrandMatcher resolves free-form brand/model text to a canonical
// (brand_id, model_id) pair via exact match, then alias set, then fuzzy
// edit-distance (§4.3).
type BrandMatcher struct {
	entries []domain.BrandModel
	// exact maps a folded "brand model" string directly to an entry.
	exact map[string]domain.BrandModel
}

func NewBrandMatcher(entries []domain.BrandModel) *BrandMatcher {
	m := &BrandMatcher{entries: entries, exact: make(map[string]domain.BrandModel)}
	for _, e := range entries {
		if !e.Active {
			continue
		}
		m.exact[Fold(e.BrandID+" "+e.ModelID)] = e
		for _, alias := range e.Aliases {
			m.exact[Fold(alias)] = e
		}
	}
	return m
}

const fuzzyMaxDistance = 2
const fuzzyMinScore = 0.6

// Match returns the best canonical brand/model for free-form text, and
// whether any candidate cleared the fuzzy threshold.
func (m *BrandMatcher) Match(freeText string) (domain.BrandModel, bool) {
	folded := Fold(freeText)
	if folded == "" {
		return domain.BrandModel{}, false
	}

	if e, ok := m.exact[folded]; ok {
		return e, true
	}

	var best domain.BrandModel
	bestDist := fuzzyMaxDistance + 1
	found := false
	for key, e := range m.exact {
		d := levenshtein(folded, key)
		if d < bestDist {
			bestDist = d
			best = e
			found = true
		}
	}
	if !found || bestDist > fuzzyMaxDistance {
		return domain.BrandModel{}, false
	}

	maxLen := len(folded)
	if len(best.BrandID)+len(best.ModelID)+1 > maxLen {
		maxLen = len(best.BrandID) + len(best.ModelID) + 1
	}
	if maxLen == 0 {
		return domain.BrandModel{}, false
	}
	score := 1 - float64(bestDist)/float64(maxLen)
	if score < fuzzyMinScore {
		return domain.BrandModel{}, false
	}
	return best, true
}

// levenshtein is the classic edit-distance DP, rune-aware so Cyrillic
// text compares correctly.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := 0; j <= lb; j++ {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			min := del
			if ins < min {
				min = ins
			}
			if sub < min {
				min = sub
			}
			curr[j] = min
		}
		prev, curr = curr, prev
	}
	return prev[lb]
}
