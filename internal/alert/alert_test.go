package alert

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carscout-ai/carscout/internal/domain"
	"github.com/carscout-ai/carscout/internal/normalize"
)

func testMatcher() *normalize.BrandMatcher {
	return normalize.NewBrandMatcher([]domain.BrandModel{
		{BrandID: "bmw", ModelID: "x5", Aliases: []string{"bmw x5"}, Active: true},
	})
}

func TestParse_FullQuery(t *testing.T) {
	f, warnings := Parse("bmw x5 diesel automatic <25000 2018+", testMatcher())
	assert.Empty(t, warnings)
	assert.Equal(t, "bmw", f.BrandID)
	assert.Equal(t, "x5", f.ModelID)
	assert.Equal(t, domain.FuelDiesel, f.Fuel)
	assert.Equal(t, domain.GearboxAutomatic, f.Gearbox)
	require.NotNil(t, f.MaxPrice)
	assert.True(t, f.MaxPrice.Equal(decimal.NewFromInt(25000)))
	require.NotNil(t, f.MinYear)
	assert.Equal(t, 2018, *f.MinYear)
}

func TestParse_YearRange(t *testing.T) {
	f, _ := Parse("2015-2019", testMatcher())
	require.NotNil(t, f.MinYear)
	require.NotNil(t, f.MaxYear)
	assert.Equal(t, 2015, *f.MinYear)
	assert.Equal(t, 2019, *f.MaxYear)
}

func TestParse_MileageAndPower(t *testing.T) {
	f, _ := Parse("<150000km >120hp", testMatcher())
	require.NotNil(t, f.MaxMileage)
	assert.Equal(t, 150000, *f.MaxMileage)
	require.NotNil(t, f.MinPower)
	assert.Equal(t, 120, *f.MinPower)
}

func TestParse_UnknownTokenIsWarningNotError(t *testing.T) {
	f, warnings := Parse("bmw x5 flying-car-mode", testMatcher())
	assert.Equal(t, "bmw", f.BrandID)
	require.Len(t, warnings, 1)
	assert.Equal(t, "flying-car-mode", warnings[0].Token)
}

func TestMatch_AllPopulatedFieldsMustSatisfy(t *testing.T) {
	price := decimal.NewFromInt(25000)
	f := domain.AlertFilters{BrandID: "bmw", ModelID: "x5", Fuel: domain.FuelDiesel, MaxPrice: &price}

	good := Listing{BrandID: "bmw", ModelID: "x5", Fuel: domain.FuelDiesel, PriceBGN: decimal.NewFromInt(24000)}
	assert.True(t, Match(f, good))

	tooExpensive := good
	tooExpensive.PriceBGN = decimal.NewFromInt(26000)
	assert.False(t, Match(f, tooExpensive))

	wrongFuel := good
	wrongFuel.Fuel = domain.FuelPetrol
	assert.False(t, Match(f, wrongFuel))
}

func TestMatch_EmptyFiltersMatchAnything(t *testing.T) {
	assert.True(t, Match(domain.AlertFilters{}, Listing{BrandID: "audi", ModelID: "a4"}))
}

func TestMatch_RegionContainmentOneLevel(t *testing.T) {
	f := domain.AlertFilters{Region: "sofia"}
	assert.True(t, Match(f, Listing{Region: "sofia_oblast"}))
	assert.False(t, Match(f, Listing{Region: "plovdiv"}))
}

func TestMatch_YearRange(t *testing.T) {
	minYear, maxYear := 2015, 2019
	f := domain.AlertFilters{MinYear: &minYear, MaxYear: &maxYear}
	assert.True(t, Match(f, Listing{Year: 2017}))
	assert.False(t, Match(f, Listing{Year: 2020}))
}
