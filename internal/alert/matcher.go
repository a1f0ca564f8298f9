package alert

import (
	"github.com/shopspring/decimal"

	"github.com/carscout-ai/carscout/internal/domain"
)

// Listing is the subset of a NormalizedListing the matcher needs.
type Listing struct {
	BrandID   string
	ModelID   string
	Fuel      domain.Fuel
	Gearbox   domain.Gearbox
	Body      domain.Body
	Region    string
	Year      int
	PriceBGN  decimal.Decimal
	MileageKM int
}

// regionContainment maps a region to the one administrative region that
// contains it, for the "single level of containment" tolerance (§4.9).
// Only the handful of regions with a natural parent-district reading in
// everyday Bulgarian usage are listed; everything else matches exactly.
var regionContainment = map[string]string{
	"sofia_oblast": "sofia",
}

// Match reports whether listing satisfies every populated field of
// filters (§4.9 "an approved listing is a match for an alert iff every
// populated filter field satisfies the listing").
func Match(f domain.AlertFilters, l Listing) bool {
	if f.BrandID != "" && f.BrandID != l.BrandID {
		return false
	}
	if f.ModelID != "" && f.ModelID != l.ModelID {
		return false
	}
	if f.Fuel != "" && f.Fuel != l.Fuel {
		return false
	}
	if f.Gearbox != "" && f.Gearbox != l.Gearbox {
		return false
	}
	if f.Body != "" && f.Body != l.Body {
		return false
	}
	if f.Region != "" && !regionMatches(f.Region, l.Region) {
		return false
	}
	if f.MinYear != nil && l.Year < *f.MinYear {
		return false
	}
	if f.MaxYear != nil && l.Year > *f.MaxYear {
		return false
	}
	if f.MinPrice != nil && l.PriceBGN.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && l.PriceBGN.GreaterThan(*f.MaxPrice) {
		return false
	}
	if f.MinMileage != nil && l.MileageKM < *f.MinMileage {
		return false
	}
	if f.MaxMileage != nil && l.MileageKM > *f.MaxMileage {
		return false
	}
	// Power is not a field the pipeline currently extracts from any
	// source adapter, so min_power/max_power filters are accepted by the
	// parser (per §4.9's grammar) but never exclude a listing.
	return true
}

func regionMatches(filterRegion, listingRegion string) bool {
	if filterRegion == listingRegion {
		return true
	}
	if parent, ok := regionContainment[listingRegion]; ok && parent == filterRegion {
		return true
	}
	if parent, ok := regionContainment[filterRegion]; ok && parent == listingRegion {
		return true
	}
	return false
}
