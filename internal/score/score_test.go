package score

import (
	"testing"
	"time"

	"github.com/carscout-ai/carscout/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestCompute_WorkedExample(t *testing.T) {
	// Worked example: 40 comparables, P50=32000, price=28500 ->
	// discount_pct ~= 0.109, confidence ~1.0, risk green, price_score
	// ~= 2.2, well-aged listing (little freshness left) -> rejected.
	res := Compute(Inputs{
		DiscountPct:      0.109,
		PriceConfidence:  1.0,
		RiskLevel:        domain.RiskGreen,
		FirstSeen:        time.Now().UTC().Add(-48 * time.Hour),
		Now:              time.Now().UTC(),
		ComparableSample: 40,
	})
	assert.InDelta(t, 2.18, res.PriceScore, 0.05)
	assert.Equal(t, domain.ScoreRejected, res.State)
	assert.Less(t, res.Score, approvalMinScore)
}

func TestCompute_ApprovalGateAllConditionsMet(t *testing.T) {
	res := Compute(Inputs{
		DiscountPct:      0.30, // above ceiling -> max price score
		PriceConfidence:  1.0,  // 1 + 5 + 0.5 + 1 = 7.5, the highest reachable score
		RiskLevel:        domain.RiskGreen,
		FirstSeen:        time.Now().UTC().Add(-30 * time.Minute),
		Now:              time.Now().UTC(),
		ComparableSample: 60,
	})
	assert.Equal(t, domain.ScoreApproved, res.State)
	assert.GreaterOrEqual(t, res.Score, approvalMinScore)
}

func TestCompute_RedRiskNeverApproves(t *testing.T) {
	res := Compute(Inputs{
		DiscountPct:      0.30,
		PriceConfidence:  0.9,
		RiskLevel:        domain.RiskRed,
		FirstSeen:        time.Now().UTC(),
		Now:              time.Now().UTC(),
		ComparableSample: 60,
	})
	assert.Equal(t, domain.ScoreRejected, res.State)
	assert.Contains(t, res.Reasons, "risk level is red")
}

func TestCompute_LowSampleBlocksApprovalEvenWithHighScore(t *testing.T) {
	res := Compute(Inputs{
		DiscountPct:      0.30,
		PriceConfidence:  0.9,
		RiskLevel:        domain.RiskGreen,
		FirstSeen:        time.Now().UTC(),
		Now:              time.Now().UTC(),
		ComparableSample: 10,
	})
	assert.Equal(t, domain.ScoreRejected, res.State)
}

func TestFreshnessOf_DecaysLinearly(t *testing.T) {
	now := time.Now().UTC()
	assert.Equal(t, freshnessMax, freshnessOf(now.Add(-30*time.Minute), now))
	assert.Equal(t, 0.0, freshnessOf(now.Add(-48*time.Hour), now))
	mid := freshnessOf(now.Add(-12*time.Hour+30*time.Minute), now)
	assert.Greater(t, mid, 0.0)
	assert.Less(t, mid, freshnessMax)
}

func TestRiskPenaltyOf_HardAccidentAddsExtra(t *testing.T) {
	assert.Equal(t, -4.0, riskPenaltyOf(domain.RiskRed, false))
	assert.Equal(t, -5.0, riskPenaltyOf(domain.RiskRed, true))
	assert.Equal(t, 0.0, riskPenaltyOf(domain.RiskGreen, false))
}
