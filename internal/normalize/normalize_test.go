package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/carscout-ai/carscout/internal/domain"
)

func TestFold_CaseAndAccent(t *testing.T) {
	assert.Equal(t, "sofia", Fold("SOFIA"))
	assert.Equal(t, Fold("софия"), Fold("СОФИЯ"))
}

func TestNormalizeWhitespace_Collapses(t *testing.T) {
	assert.Equal(t, "a b c", NormalizeWhitespace("  a   b\n\tc  "))
}

func TestDescriptionHash_Deterministic(t *testing.T) {
	a := DescriptionHash("Great car, low mileage")
	b := DescriptionHash("  Great   car, low   mileage ")
	assert.Equal(t, a, b)
}

func TestBrandMatcher_ExactAndAlias(t *testing.T) {
	m := NewBrandMatcher([]domain.BrandModel{
		{BrandID: "bmw", ModelID: "x5", Aliases: []string{"BMW X5", "бмв х5"}, Active: true},
	})

	bm, ok := m.Match("bmw x5")
	assert.True(t, ok)
	assert.Equal(t, "bmw", bm.BrandID)

	bm, ok = m.Match("БМВ Х5")
	assert.True(t, ok)
	assert.Equal(t, "x5", bm.ModelID)
}

func TestBrandMatcher_FuzzyWithinDistance(t *testing.T) {
	m := NewBrandMatcher([]domain.BrandModel{
		{BrandID: "bmw", ModelID: "x5", Aliases: []string{"bmw x5"}, Active: true},
	})
	_, ok := m.Match("bmv x5")
	assert.True(t, ok)
}

func TestBrandMatcher_NoMatchTooFar(t *testing.T) {
	m := NewBrandMatcher([]domain.BrandModel{
		{BrandID: "bmw", ModelID: "x5", Aliases: []string{"bmw x5"}, Active: true},
	})
	_, ok := m.Match("toyota corolla")
	assert.False(t, ok)
}

func TestMatchFuel_BulgarianAndEnglish(t *testing.T) {
	assert.Equal(t, domain.FuelDiesel, MatchFuel("дизел"))
	assert.Equal(t, domain.FuelPetrol, MatchFuel("Petrol"))
	assert.Equal(t, domain.FuelOther, MatchFuel("unicorn"))
}

func TestMatchGearbox(t *testing.T) {
	assert.Equal(t, domain.GearboxAutomatic, MatchGearbox("автоматик"))
	assert.Equal(t, domain.GearboxManual, MatchGearbox("Manual"))
}

func TestMatchRegion_KnownAndUnknown(t *testing.T) {
	r, ok := MatchRegion("София")
	assert.True(t, ok)
	assert.Equal(t, "sofia", r)

	_, ok = MatchRegion("Atlantis")
	assert.False(t, ok)
}

func TestExtractYear_PlausibilityBounds(t *testing.T) {
	y, ok := ExtractYear("year 2019")
	assert.True(t, ok)
	assert.Equal(t, 2019, y)

	_, ok = ExtractYear("year 1899")
	assert.False(t, ok)

	_, ok = ExtractYear("year 2099")
	assert.False(t, ok)
}

func TestExtractMileage_HandlesSeparators(t *testing.T) {
	m, ok := ExtractMileage("45,000 km")
	assert.True(t, ok)
	assert.Equal(t, 45000, m)

	_, ok = ExtractMileage("2,000,000 km")
	assert.False(t, ok)
}

func TestPhoneHash_DeterministicAndSalted(t *testing.T) {
	salt := []byte("salt-a")
	h1 := PhoneHash("+359 88 123 4567", salt)
	h2 := PhoneHash("0888 1234567", salt)
	assert.NotEqual(t, h1, h2) // different digit strings never collide by design

	h3 := PhoneHash("+359881234567", salt)
	h4 := PhoneHash("+359 88 123 4567", salt)
	assert.Equal(t, h3, h4)

	otherSalt := PhoneHash("+359881234567", []byte("salt-b"))
	assert.NotEqual(t, h3, otherSalt)
}

func TestParsePrice_CurrencyDetection(t *testing.T) {
	amt, cur := parsePrice("28500", "лв")
	assert.Equal(t, "BGN", cur)
	assert.True(t, amt.Equal(amt))

	_, cur = parsePrice("14000", "EUR")
	assert.Equal(t, "EUR", cur)
}
