package price

import "time"

// Filter describes one progressive-relaxation step's constraints
// (§4.5). BrandID/ModelID are always held fixed.
type Filter struct {
	YearSpread    int
	MileagePct    float64
	RequireFuel   bool
	RequireGearbox bool
	WindowDays    int
}

// RelaxationSteps is the fixed sequence §4.5 specifies, stopping at the
// first step yielding sample >= 30.
func RelaxationSteps() []Filter {
	return []Filter{
		{YearSpread: 2, MileagePct: 0.30, RequireFuel: true, RequireGearbox: true, WindowDays: 180},
		{YearSpread: 2, MileagePct: 0.50, RequireFuel: true, RequireGearbox: true, WindowDays: 180},
		{YearSpread: 2, MileagePct: 0.50, RequireFuel: true, RequireGearbox: false, WindowDays: 180},
		{YearSpread: 2, MileagePct: 0.50, RequireFuel: false, RequireGearbox: false, WindowDays: 180},
		{YearSpread: 4, MileagePct: 0.50, RequireFuel: false, RequireGearbox: false, WindowDays: 180},
	}
}

const maxComparables = 200

// WindowStart returns the earliest first_seen the filter accepts.
func (f Filter) WindowStart(now time.Time) time.Time {
	return now.AddDate(0, 0, -f.WindowDays)
}
