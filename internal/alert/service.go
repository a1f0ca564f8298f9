package alert

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/carscout-ai/carscout/internal/domain"
	"github.com/carscout-ai/carscout/internal/normalize"
)

// CreateAlert parses the user's raw DSL query and persists both forms
// (§4.9 "Stored on Alert in both raw (dsl_query) and normalized
// (filters) forms").
func (s *Store) CreateAlert(ctx context.Context, userID uuid.UUID, dslQuery string, matcher *normalize.BrandMatcher) (domain.Alert, []Warning, error) {
	filters, warnings := Parse(dslQuery, matcher)

	filtersJSON, err := json.Marshal(filters)
	if err != nil {
		return domain.Alert{}, nil, err
	}

	var a domain.Alert
	a.Filters = filters
	a.DSLQuery = dslQuery
	a.UserID = userID
	a.Active = true

	err = s.db.QueryRow(ctx, `
		INSERT INTO alerts (id, user_id, dsl_query, filters, active, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, true, now())
		RETURNING id, created_at
	`, userID, dslQuery, filtersJSON).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return domain.Alert{}, nil, err
	}
	return a, warnings, nil
}

// Deactivate stops an alert from matching further listings.
func (s *Store) Deactivate(ctx context.Context, alertID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `UPDATE alerts SET active = false WHERE id = $1`, alertID)
	return err
}
