package price

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func comps(values ...int64) []Comparable {
	out := make([]Comparable, len(values))
	for i, v := range values {
		out[i] = Comparable{PriceBGN: decimal.NewFromInt(v)}
	}
	return out
}

func TestCompute_BelowMinSampleYieldsZeroConfidence(t *testing.T) {
	st := Compute(comps(1000, 2000), decimal.NewFromInt(1500))
	assert.Equal(t, 0.0, st.Confidence)
	assert.True(t, st.PredictedPrice.IsZero())
	assert.Equal(t, 2, st.SampleSize)
}

func TestCompute_MedianAndDiscount(t *testing.T) {
	values := make([]int64, 40)
	for i := range values {
		values[i] = 30000
	}
	st := Compute(comps(values...), decimal.NewFromInt(28500))
	assert.True(t, st.P50.Equal(decimal.NewFromInt(30000)))
	assert.InDelta(t, 0.05, st.DiscountPct, 0.001)
	assert.Equal(t, 1.0, st.Confidence) // zero variance, full sample -> full confidence
}

func TestCompute_ConfidenceScalesWithSampleAndVariance(t *testing.T) {
	small := Compute(comps(30000, 30000, 30000, 30000, 30000), decimal.NewFromInt(30000))
	full := Compute(append(comps(), makeN(30, 30000)...), decimal.NewFromInt(30000))
	assert.Less(t, small.Confidence, full.Confidence)
}

func makeN(n int, v int64) []Comparable {
	out := make([]Comparable, n)
	for i := range out {
		out[i] = Comparable{PriceBGN: decimal.NewFromInt(v)}
	}
	return out
}

func TestRelaxationSteps_OrderedByIncreasingLooseness(t *testing.T) {
	steps := RelaxationSteps()
	assert.Equal(t, 5, len(steps))
	assert.True(t, steps[0].RequireFuel && steps[0].RequireGearbox)
	assert.False(t, steps[len(steps)-1].RequireFuel)
	assert.Greater(t, steps[len(steps)-1].YearSpread, steps[0].YearSpread)
}
