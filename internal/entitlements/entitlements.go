// Package entitlements is a thin read-only view of what a user's
// subscription currently grants: their plan name, billing status, and
// current period end. Nothing downstream of this package mutates
// billing state — it is a reader over the `users`/`plans` tables other
// packages (primarily `internal/alert`'s delay/cap enforcement and the
// API handlers) already populate.
package entitlements

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carscout-ai/carscout/internal/domain"
)

// View is what a user's subscription currently grants. Notification delay
// is enforced entirely inside internal/alert's DueMatches SQL and is never
// read back into Go, so it isn't modeled here.
type View struct {
	UserID           uuid.UUID
	Plan             domain.PlanName
	Status           string
	CurrentPeriodEnd time.Time
	MaxAlerts        int
	DailyCap         int
}

// Store reads entitlement views.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// For returns the current entitlement view for a single user.
func (s *Store) For(ctx context.Context, userID uuid.UUID) (View, error) {
	var v View
	v.UserID = userID
	err := s.db.QueryRow(ctx, `
		SELECT p.name, u.status, u.current_period_end, p.max_alerts, p.daily_cap
		FROM users u JOIN plans p ON p.id = u.plan_id
		WHERE u.id = $1
	`, userID).Scan(&v.Plan, &v.Status, &v.CurrentPeriodEnd, &v.MaxAlerts, &v.DailyCap)
	return v, err
}

// Active reports whether the user's subscription currently allows
// delivery (status=active and the current period hasn't lapsed).
func (v View) Active() bool {
	return v.Status == "active" && time.Now().UTC().Before(v.CurrentPeriodEnd)
}
