// Package alert implements the DSL parser and matcher of §4.9: a
// whitespace-separated, case-insensitive query language that compiles
// to a fixed-shape domain.AlertFilters, plus the per-listing matcher and
// plan-gated delivery scheduling that consumes it.
package alert

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/carscout-ai/carscout/internal/domain"
	"github.com/carscout-ai/carscout/internal/normalize"
)

var (
	priceRangeRe   = regexp.MustCompile(`^(<=|>=|<|>)(\d+)$`)
	yearPlusRe     = regexp.MustCompile(`^(\d{4})\+$`)
	yearRangeRe    = regexp.MustCompile(`^(\d{4})-(\d{4})$`)
	mileageRangeRe = regexp.MustCompile(`^(<|>)(\d+)(km|к\.м|км)$`)
	powerRangeRe   = regexp.MustCompile(`^(<|>)(\d+)(hp|к\.с\.|кс)$`)
)

var (
	fuelTokens = map[string]domain.Fuel{
		"diesel": domain.FuelDiesel, "дизел": domain.FuelDiesel,
		"petrol": domain.FuelPetrol, "gasoline": domain.FuelPetrol, "бензин": domain.FuelPetrol,
		"hybrid": domain.FuelHybrid, "хибрид": domain.FuelHybrid,
		"electric": domain.FuelElectric, "електрически": domain.FuelElectric,
		"lpg": domain.FuelLPG, "газ": domain.FuelLPG,
		"cng": domain.FuelCNG,
	}
	gearboxTokens = map[string]domain.Gearbox{
		"automatic": domain.GearboxAutomatic, "auto": domain.GearboxAutomatic, "автомат": domain.GearboxAutomatic, "автоматик": domain.GearboxAutomatic,
		"manual": domain.GearboxManual, "ръчна": domain.GearboxManual,
	}
	bodyTokens = map[string]domain.Body{
		"sedan": domain.BodySedan, "седан": domain.BodySedan,
		"hatchback": domain.BodyHatchback, "хечбек": domain.BodyHatchback,
		"suv": domain.BodySUV, "джип": domain.BodySUV,
		"estate": domain.BodyEstate, "комби": domain.BodyEstate,
		"coupe": domain.BodyCoupe, "купе": domain.BodyCoupe,
	}
)

// Warning is an unrecognized token: it is reported but never fails the
// parse (§4.9 "Unknown tokens are warnings, not errors").
type Warning struct {
	Token string
}

// Parse compiles a raw DSL query into its normalized filters form plus a
// warning for each token it cannot classify. The matcher supplies the
// brand/model alias table used to greedily match multi-word brand/model
// tokens the same way normalize does.
func Parse(query string, matcher *normalize.BrandMatcher) (domain.AlertFilters, []Warning) {
	var f domain.AlertFilters
	var warnings []Warning

	tokens := strings.Fields(query)
	for i := 0; i < len(tokens); i++ {
		tok := strings.ToLower(tokens[i])

		if bm, ok := tryBrandModel(tokens, &i, matcher); ok {
			f.BrandID = bm.BrandID
			f.ModelID = bm.ModelID
			continue
		}
		if fuel, ok := fuelTokens[tok]; ok {
			f.Fuel = fuel
			continue
		}
		if gb, ok := gearboxTokens[tok]; ok {
			f.Gearbox = gb
			continue
		}
		if body, ok := bodyTokens[tok]; ok {
			f.Body = body
			continue
		}
		if region, ok := normalize.MatchRegion(tok); ok {
			f.Region = region
			continue
		}
		if applyPriceRange(&f, tok) {
			continue
		}
		if applyYearRange(&f, tok) {
			continue
		}
		if applyMileageRange(&f, tok) {
			continue
		}
		if applyPowerRange(&f, tok) {
			continue
		}
		warnings = append(warnings, Warning{Token: tokens[i]})
	}

	return f, warnings
}

// tryBrandModel greedily consumes up to three consecutive tokens (e.g.
// "bmw x5" or "mercedes benz e class") looking for the longest alias
// match, advancing i past whatever it consumes.
func tryBrandModel(tokens []string, i *int, matcher *normalize.BrandMatcher) (domain.BrandModel, bool) {
	if matcher == nil {
		return domain.BrandModel{}, false
	}
	maxSpan := 3
	for span := maxSpan; span >= 1; span-- {
		if *i+span > len(tokens) {
			continue
		}
		candidate := strings.Join(tokens[*i:*i+span], " ")
		if bm, ok := matcher.Match(candidate); ok {
			*i += span - 1
			return bm, true
		}
	}
	return domain.BrandModel{}, false
}

func applyPriceRange(f *domain.AlertFilters, tok string) bool {
	m := priceRangeRe.FindStringSubmatch(tok)
	if m == nil {
		return false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return false
	}
	v := decimal.NewFromInt(int64(n))
	switch m[1] {
	case "<", "<=":
		f.MaxPrice = &v
	case ">", ">=":
		f.MinPrice = &v
	}
	return true
}

func applyYearRange(f *domain.AlertFilters, tok string) bool {
	if m := yearPlusRe.FindStringSubmatch(tok); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return false
		}
		f.MinYear = &n
		return true
	}
	if m := yearRangeRe.FindStringSubmatch(tok); m != nil {
		lo, err1 := strconv.Atoi(m[1])
		hi, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil {
			return false
		}
		f.MinYear = &lo
		f.MaxYear = &hi
		return true
	}
	return false
}

func applyMileageRange(f *domain.AlertFilters, tok string) bool {
	m := mileageRangeRe.FindStringSubmatch(tok)
	if m == nil {
		return false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return false
	}
	switch m[1] {
	case "<":
		f.MaxMileage = &n
	case ">":
		f.MinMileage = &n
	}
	return true
}

func applyPowerRange(f *domain.AlertFilters, tok string) bool {
	m := powerRangeRe.FindStringSubmatch(tok)
	if m == nil {
		return false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return false
	}
	switch m[1] {
	case "<":
		f.MaxPower = &n
	case ">":
		f.MinPower = &n
	}
	return true
}
