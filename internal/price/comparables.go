// Package price estimates a fair market price from comparables via
// progressive filter relaxation (§4.5).
package price

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// Comparable is one priced listing eligible to inform the estimate.
type Comparable struct {
	PriceBGN decimal.Decimal
}

// Stats is the empirical distribution computed over a comparable set
// (§4.5).
type Stats struct {
	P10            decimal.Decimal
	P25            decimal.Decimal
	P50            decimal.Decimal
	P75            decimal.Decimal
	P90            decimal.Decimal
	Mean           decimal.Decimal
	StdDev         decimal.Decimal
	PredictedPrice decimal.Decimal
	DiscountPct    float64
	SampleSize     int
	Confidence     float64
}

const minSampleForConfidence = 30
const minSampleToProceed = 5

// Compute derives Stats from a comparable set and the target's own
// price_bgn, implementing §4.5's percentile/discount/confidence formulas.
// When len(comparables) < minSampleToProceed, confidence is 0 and
// PredictedPrice is left zero (§4.5 "Failure").
func Compute(comparables []Comparable, targetPriceBGN decimal.Decimal) Stats {
	n := len(comparables)
	if n < minSampleToProceed {
		return Stats{SampleSize: n}
	}

	prices := make([]decimal.Decimal, n)
	for i, c := range comparables {
		prices[i] = c.PriceBGN
	}
	sort.Slice(prices, func(i, j int) bool { return prices[i].LessThan(prices[j]) })

	mean := meanOf(prices)
	sd := stdDevOf(prices, mean)

	s := Stats{
		P10:        percentile(prices, 0.10),
		P25:        percentile(prices, 0.25),
		P50:        percentile(prices, 0.50),
		P75:        percentile(prices, 0.75),
		P90:        percentile(prices, 0.90),
		Mean:       mean,
		StdDev:     sd,
		SampleSize: n,
	}
	s.PredictedPrice = s.P50

	if !s.PredictedPrice.IsZero() {
		s.DiscountPct, _ = s.PredictedPrice.Sub(targetPriceBGN).
			Div(s.PredictedPrice).Float64()
	}

	cv := 0.0
	if !mean.IsZero() {
		cv, _ = sd.Div(mean).Float64()
	}
	cvClamped := clamp(cv, 0, 1)
	sampleFactor := float64(n) / float64(minSampleForConfidence)
	if sampleFactor > 1 {
		sampleFactor = 1
	}
	s.Confidence = sampleFactor * (1 - cvClamped)
	return s
}

func percentile(sorted []decimal.Decimal, p float64) decimal.Decimal {
	if len(sorted) == 0 {
		return decimal.Zero
	}
	idx := int(p * float64(len(sorted)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func meanOf(prices []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range prices {
		sum = sum.Add(p)
	}
	if len(prices) == 0 {
		return decimal.Zero
	}
	return sum.Div(decimal.NewFromInt(int64(len(prices))))
}

func stdDevOf(prices []decimal.Decimal, mean decimal.Decimal) decimal.Decimal {
	if len(prices) < 2 {
		return decimal.Zero
	}
	sumSq := decimal.Zero
	for _, p := range prices {
		d := p.Sub(mean)
		sumSq = sumSq.Add(d.Mul(d))
	}
	variance := sumSq.Div(decimal.NewFromInt(int64(len(prices))))
	f, _ := variance.Float64()
	if f < 0 {
		f = 0
	}
	return decimal.NewFromFloat(math.Sqrt(f))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
