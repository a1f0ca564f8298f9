package dedupe

import (
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Candidate is an existing active listing the cascade compares the
// target against, pre-filtered by the Store to a reasonable pool (same
// phone hash, same brand/model, or a trigram-index hit).
type Candidate struct {
	ListingID   uuid.UUID
	FirstSeen   int64 // unix seconds, used to resolve canonical_of
	PhoneHash   string
	BrandID     string
	ModelID     string
	Year        int
	MileageKM   int
	PriceBGN    decimal.Decimal
	ImagePHash  uint64
	TitleTrgm   map[string]struct{}
	DescMinHash []uint64
	Embedding   []float32
}

// Target is the listing being evaluated for duplication.
type Target struct {
	ListingID   uuid.UUID
	PhoneHash   string
	BrandID     string
	ModelID     string
	Year        int
	MileageKM   int
	PriceBGN    decimal.Decimal
	ImagePHash  uint64
	TitleTrgm   map[string]struct{}
	DescMinHash []uint64
	Embedding   []float32
}

// Method mirrors domain.DuplicateMethod without importing domain, kept
// for the same standalone-capability reason as internal/llm.
type Method string

const (
	MethodPhone     Method = "phone"
	MethodImage     Method = "image"
	MethodText      Method = "text"
	MethodEmbedding Method = "embedding"
)

const (
	phoneConfidence     = 0.95
	imageConfidence     = 0.90
	textConfidence      = 0.75
	embeddingConfidence = 0.80

	textSimilarityThreshold      = 0.80
	embeddingSimilarityThreshold = 0.85

	phonePriceTolerance = 0.10
)

// Verdict is the cascade's decision for one target against its candidate pool.
type Verdict struct {
	IsDuplicate bool
	Method      Method
	Confidence  float64
	DuplicateOf uuid.UUID // canonical listing id
}

// Evaluate runs the four-method cascade in priority order, returning at
// the first method whose confidence clears its threshold (§4.4).
func Evaluate(target Target, candidates []Candidate) Verdict {
	if v, ok := evalPhone(target, candidates); ok {
		return v
	}
	if v, ok := evalImage(target, candidates); ok {
		return v
	}
	if v, ok := evalText(target, candidates); ok {
		return v
	}
	if v, ok := evalEmbedding(target, candidates); ok {
		return v
	}
	return Verdict{IsDuplicate: false}
}

func evalPhone(target Target, candidates []Candidate) (Verdict, bool) {
	if target.PhoneHash == "" {
		return Verdict{}, false
	}
	for _, c := range candidates {
		if c.PhoneHash != target.PhoneHash {
			continue
		}
		if c.BrandID != target.BrandID || c.ModelID != target.ModelID {
			continue
		}
		if !withinPct(target.PriceBGN, c.PriceBGN, phonePriceTolerance) {
			continue
		}
		return canonicalVerdict(target, c, MethodPhone, phoneConfidence, candidates), true
	}
	return Verdict{}, false
}

func evalImage(target Target, candidates []Candidate) (Verdict, bool) {
	if target.ImagePHash == 0 {
		return Verdict{}, false
	}
	for _, c := range candidates {
		if c.ImagePHash == 0 {
			continue
		}
		if HammingDistance64(target.ImagePHash, c.ImagePHash) <= ImageHashThreshold {
			return canonicalVerdict(target, c, MethodImage, imageConfidence, candidates), true
		}
	}
	return Verdict{}, false
}

func evalText(target Target, candidates []Candidate) (Verdict, bool) {
	if len(target.TitleTrgm) == 0 {
		return Verdict{}, false
	}
	var best Candidate
	bestSim := 0.0
	found := false
	for _, c := range candidates {
		sim := TrigramSimilarity(target.TitleTrgm, c.TitleTrgm)
		if sim > bestSim {
			bestSim = sim
			best = c
			found = true
		}
	}
	if !found || bestSim < textSimilarityThreshold {
		return Verdict{}, false
	}
	return canonicalVerdict(target, best, MethodText, textConfidence, candidates), true
}

func evalEmbedding(target Target, candidates []Candidate) (Verdict, bool) {
	if len(target.Embedding) == 0 {
		return Verdict{}, false
	}
	for _, c := range candidates {
		if len(c.Embedding) != len(target.Embedding) {
			continue
		}
		if c.BrandID != target.BrandID || c.ModelID != target.ModelID {
			continue
		}
		if cosineSimilarity(target.Embedding, c.Embedding) >= embeddingSimilarityThreshold {
			return canonicalVerdict(target, c, MethodEmbedding, embeddingConfidence, candidates), true
		}
	}
	return Verdict{}, false
}

// canonicalVerdict resolves canonical_of to the earliest first_seen
// across the matched candidate and the target (§4.4).
func canonicalVerdict(target Target, matched Candidate, method Method, confidence float64, candidates []Candidate) Verdict {
	canonical := matched.ListingID
	earliest := matched.FirstSeen
	for _, c := range candidates {
		if c.ListingID == matched.ListingID {
			continue
		}
		if c.BrandID == matched.BrandID && c.ModelID == matched.ModelID && c.FirstSeen < earliest {
			earliest = c.FirstSeen
			canonical = c.ListingID
		}
	}
	return Verdict{IsDuplicate: true, Method: method, Confidence: confidence, DuplicateOf: canonical}
}

func withinPct(a, b decimal.Decimal, pct float64) bool {
	if b.IsZero() {
		return a.IsZero()
	}
	diff := a.Sub(b).Abs()
	tolerance := b.Abs().Mul(decimal.NewFromFloat(pct))
	return diff.LessThanOrEqual(tolerance)
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
