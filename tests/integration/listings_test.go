package integration

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carscout-ai/carscout/internal/handler"
	"github.com/carscout-ai/carscout/tests/fixtures"
)

func TestListingsList_ReturnsOnlyApprovedNonDuplicates(t *testing.T) {
	db := fixtures.SetupTestDBWithMigrations(t)
	h := handler.NewListingHandler(db, testLogger())

	source := fixtures.TestSource(t, db, "mobile.bg")
	raw := fixtures.TestRawListing(t, db, source, "ext-1", "blob/1")
	listingID := fixtures.TestNormalizedListing(t, db, raw, "bmw", "x5", 2019, 90000, decimal.NewFromInt(35000), "sofia")
	fixtures.TestScore(t, db, listingID, 8.2, 7.9, "approved")
	fixtures.TestCompCache(t, db, listingID, 12.5, 40)

	req := httptest.NewRequest("GET", "/api/listings", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Items []handler.ListingSummary `json:"items"`
		Total int64                    `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.GreaterOrEqual(t, len(resp.Items), 1)
	assert.Equal(t, "bmw", resp.Items[0].BrandID)
}

func TestListingsGet_NotFoundForUnapproved(t *testing.T) {
	db := fixtures.SetupTestDBWithMigrations(t)
	h := handler.NewListingHandler(db, testLogger())

	source := fixtures.TestSource(t, db, "cars.bg")
	raw := fixtures.TestRawListing(t, db, source, "ext-2", "blob/2")
	listingID := fixtures.TestNormalizedListing(t, db, raw, "audi", "a4", 2020, 60000, decimal.NewFromInt(42000), "plovdiv")
	fixtures.TestScore(t, db, listingID, 5.0, 5.0, "pending")

	r := chi.NewRouter()
	r.Get("/api/listings/{id}", h.Get)

	req := httptest.NewRequest("GET", "/api/listings/"+listingID.String(), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
