package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carscout-ai/carscout/internal/alert"
	"github.com/carscout-ai/carscout/internal/entitlements"
	"github.com/carscout-ai/carscout/internal/handler"
	"github.com/carscout-ai/carscout/internal/normalize"
	"github.com/carscout-ai/carscout/internal/ratelimit"
	"github.com/carscout-ai/carscout/tests/fixtures"
)

func TestAlertCreate_PersistsFiltersAndWarnings(t *testing.T) {
	db := fixtures.SetupTestDBWithMigrations(t)
	userID := fixtures.TestUser(t, db)

	store := alert.NewStore(db, ratelimit.NewCounter(nil))
	matcher := normalize.NewBrandMatcher(nil)
	h := handler.NewAlertHandler(store, matcher, testLogger())

	body := `{"query":"bmw x5 2015-2020 under 40000 lv diesel sofia garbledtoken"}`
	req := httptest.NewRequest("POST", "/api/alerts", stringsReader(body))
	req = withCallerID(req, userID.String())
	rec := httptest.NewRecorder()
	h.Create(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)

	var resp struct {
		ID       string   `json:"id"`
		Warnings []string `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Contains(t, resp.Warnings, "garbledtoken")
}

func TestAlertDeactivate_StopsMatching(t *testing.T) {
	db := fixtures.SetupTestDBWithMigrations(t)
	userID := fixtures.TestUser(t, db)

	store := alert.NewStore(db, ratelimit.NewCounter(nil))
	matcher := normalize.NewBrandMatcher(nil)
	h := handler.NewAlertHandler(store, matcher, testLogger())

	created, _, err := store.CreateAlert(context.Background(), userID, "under 30000 lv", matcher)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Delete("/api/alerts/{id}", h.Deactivate)

	req := httptest.NewRequest("DELETE", "/api/alerts/"+created.ID.String(), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)

	active, err := store.ReloadAlertActive(context.Background(), created.ID)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestEntitlements_ExpiredSubscriptionIsNotActive(t *testing.T) {
	db := fixtures.SetupTestDBWithMigrations(t)
	userID := fixtures.ExpiredUser(t, db)

	ent := entitlements.NewStore(db)
	view, err := ent.For(context.Background(), userID)
	require.NoError(t, err)
	assert.False(t, view.Active())
}

func TestEntitlements_ActivePremiumSubscriptionIsActive(t *testing.T) {
	db := fixtures.SetupTestDBWithMigrations(t)
	userID := fixtures.PremiumUser(t, db)

	ent := entitlements.NewStore(db)
	view, err := ent.For(context.Background(), userID)
	require.NoError(t, err)
	assert.True(t, view.Active())
}
