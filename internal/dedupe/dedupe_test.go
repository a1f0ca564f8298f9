package dedupe

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestTrigramSimilarity_IdenticalIsOne(t *testing.T) {
	a := Trigrams("BMW X5 3.0d")
	b := Trigrams("BMW X5 3.0d")
	assert.Equal(t, 1.0, TrigramSimilarity(a, b))
}

func TestTrigramSimilarity_DisjointIsZero(t *testing.T) {
	a := Trigrams("abc")
	b := Trigrams("xyz123")
	assert.Equal(t, 0.0, TrigramSimilarity(a, b))
}

func TestHammingDistance64_Zero(t *testing.T) {
	assert.Equal(t, 0, HammingDistance64(0xF0F0, 0xF0F0))
}

func TestHammingDistance64_CountsBits(t *testing.T) {
	assert.Equal(t, 1, HammingDistance64(0b1000, 0b0000))
}

func TestMinHashSimilarity_IdenticalSignatures(t *testing.T) {
	sig := MinHashSignature(map[string]struct{}{"a": {}, "b": {}}, 8, fnvHash)
	assert.Equal(t, 1.0, MinHashSimilarity(sig, sig))
}

func TestEvaluate_PhoneMatchWins(t *testing.T) {
	canonical := uuid.New()
	target := Target{
		ListingID: uuid.New(),
		PhoneHash: "hash1",
		BrandID:   "bmw",
		ModelID:   "x5",
		PriceBGN:  decimal.NewFromInt(30000),
	}
	candidates := []Candidate{
		{ListingID: canonical, FirstSeen: 100, PhoneHash: "hash1", BrandID: "bmw", ModelID: "x5", PriceBGN: decimal.NewFromInt(30500)},
	}
	v := Evaluate(target, candidates)
	assert.True(t, v.IsDuplicate)
	assert.Equal(t, MethodPhone, v.Method)
	assert.Equal(t, canonical, v.DuplicateOf)
}

func TestEvaluate_PhonePriceOutsideToleranceSkipsToNextMethod(t *testing.T) {
	target := Target{
		ListingID: uuid.New(),
		PhoneHash: "hash1",
		BrandID:   "bmw",
		ModelID:   "x5",
		PriceBGN:  decimal.NewFromInt(30000),
	}
	candidates := []Candidate{
		{ListingID: uuid.New(), FirstSeen: 100, PhoneHash: "hash1", BrandID: "bmw", ModelID: "x5", PriceBGN: decimal.NewFromInt(50000)},
	}
	v := Evaluate(target, candidates)
	assert.False(t, v.IsDuplicate)
}

func TestEvaluate_ImageMatch(t *testing.T) {
	canonical := uuid.New()
	target := Target{ListingID: uuid.New(), ImagePHash: 0xABCD}
	candidates := []Candidate{
		{ListingID: canonical, FirstSeen: 50, ImagePHash: 0xABCD},
	}
	v := Evaluate(target, candidates)
	assert.True(t, v.IsDuplicate)
	assert.Equal(t, MethodImage, v.Method)
}

func TestEvaluate_TextMatchAboveThreshold(t *testing.T) {
	canonical := uuid.New()
	title := "BMW X5 3.0d xDrive Luxury Line"
	target := Target{ListingID: uuid.New(), TitleTrgm: Trigrams(title)}
	candidates := []Candidate{
		{ListingID: canonical, FirstSeen: 10, TitleTrgm: Trigrams(title)},
	}
	v := Evaluate(target, candidates)
	assert.True(t, v.IsDuplicate)
	assert.Equal(t, MethodText, v.Method)
}

func TestEvaluate_NoCandidatesNoDuplicate(t *testing.T) {
	v := Evaluate(Target{ListingID: uuid.New()}, nil)
	assert.False(t, v.IsDuplicate)
}

func TestCanonicalVerdict_PicksEarliestFirstSeen(t *testing.T) {
	older := uuid.New()
	newer := uuid.New()
	target := Target{ListingID: uuid.New(), ImagePHash: 0x1}
	candidates := []Candidate{
		{ListingID: newer, FirstSeen: 200, ImagePHash: 0x1, BrandID: "bmw", ModelID: "x5"},
		{ListingID: older, FirstSeen: 100, ImagePHash: 0x1, BrandID: "bmw", ModelID: "x5"},
	}
	v := Evaluate(target, candidates)
	assert.Equal(t, older, v.DuplicateOf)
}
