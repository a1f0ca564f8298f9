package alert

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carscout-ai/carscout/internal/domain"
	"github.com/carscout-ai/carscout/internal/ratelimit"
)

// Store is the Postgres boundary for alert matching and delivery.
type Store struct {
	db      *pgxpool.Pool
	counter *ratelimit.Counter
}

func NewStore(db *pgxpool.Pool, counter *ratelimit.Counter) *Store {
	return &Store{db: db, counter: counter}
}

// LoadListing fetches the matcher-relevant fields of an approved
// listing.
func (s *Store) LoadListing(ctx context.Context, id uuid.UUID) (Listing, error) {
	var l Listing
	err := s.db.QueryRow(ctx, `
		SELECT brand_id, model_id, fuel, gearbox, body, region, year, price_bgn, mileage_km
		FROM normalized_listings WHERE id = $1
	`, id).Scan(&l.BrandID, &l.ModelID, &l.Fuel, &l.Gearbox, &l.Body, &l.Region, &l.Year, &l.PriceBGN, &l.MileageKM)
	return l, err
}

// ActiveAlerts returns every Alert currently eligible to be matched
// against (active=true, owning user's subscription active).
func (s *Store) ActiveAlerts(ctx context.Context) ([]domain.Alert, error) {
	rows, err := s.db.Query(ctx, `
		SELECT a.id, a.user_id, a.dsl_query, a.filters, a.active, a.created_at
		FROM alerts a
		JOIN users u ON u.id = a.user_id
		WHERE a.active = true AND u.status = 'active'
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Alert
	for rows.Next() {
		var a domain.Alert
		var rawFilters []byte
		if err := rows.Scan(&a.ID, &a.UserID, &a.DSLQuery, &rawFilters, &a.Active, &a.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(rawFilters, &a.Filters); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CreateMatch inserts an AlertMatch row, relying on the unique
// (alert_id, listing_id) constraint to collapse concurrent duplicates
// (§4.9 "Create AlertMatch (unique, so concurrent duplicates collapse)").
// Returns created=false when the row already existed.
func (s *Store) CreateMatch(ctx context.Context, alertID, listingID uuid.UUID, matchedAt time.Time) (uuid.UUID, bool, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `
		INSERT INTO alert_matches (id, alert_id, listing_id, matched_at, status)
		VALUES (gen_random_uuid(), $1, $2, $3, 'pending')
		ON CONFLICT (alert_id, listing_id) DO NOTHING
		RETURNING id
	`, alertID, listingID, matchedAt).Scan(&id)
	if err != nil {
		existing, lookupErr := s.existingMatchID(ctx, alertID, listingID)
		if lookupErr == nil {
			return existing, false, nil
		}
		return uuid.Nil, false, err
	}
	return id, true, nil
}

func (s *Store) existingMatchID(ctx context.Context, alertID, listingID uuid.UUID) (uuid.UUID, error) {
	var id uuid.UUID
	err := s.db.QueryRow(ctx, `
		SELECT id FROM alert_matches WHERE alert_id = $1 AND listing_id = $2
	`, alertID, listingID).Scan(&id)
	return id, err
}

// PlanFor returns the owning user's plan and subscription status for
// cap enforcement. Delay itself is enforced entirely in DueMatches' SQL
// (matched_at + notification_delay <= now), so it's never scanned here.
func (s *Store) PlanFor(ctx context.Context, userID uuid.UUID) (domain.Plan, string, error) {
	var p domain.Plan
	var status string
	err := s.db.QueryRow(ctx, `
		SELECT p.id, p.name, p.max_alerts, p.daily_cap, u.status
		FROM users u JOIN plans p ON p.id = u.plan_id
		WHERE u.id = $1
	`, userID).Scan(&p.ID, &p.Name, &p.MaxAlerts, &p.DailyCap, &status)
	return p, status, err
}

// MarkSkipped sets a match's status to skipped (daily cap reached, or
// the alert/subscription is no longer active at delivery time).
func (s *Store) MarkSkipped(ctx context.Context, matchID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `UPDATE alert_matches SET status = 'skipped' WHERE id = $1`, matchID)
	return err
}

// MarkNotified records a successful delivery, transactionally with the
// caller's own send acknowledgment semantics (the caller calls this only
// after the transport confirms delivery).
func (s *Store) MarkNotified(ctx context.Context, matchID uuid.UUID, notifiedAt time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE alert_matches SET status = 'notified', notified_at = $2 WHERE id = $1
	`, matchID, notifiedAt)
	return err
}

// MarkFailed records a permanent delivery failure; failed matches are
// never retried (§7 "if send fails permanently the AlertMatch is marked
// failed and never retried").
func (s *Store) MarkFailed(ctx context.Context, matchID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `UPDATE alert_matches SET status = 'failed' WHERE id = $1`, matchID)
	return err
}

// ReloadAlertActive re-checks alert.active at delivery time (§4.9 "at
// delivery time, re-check alert active and subscription status=active").
func (s *Store) ReloadAlertActive(ctx context.Context, alertID uuid.UUID) (bool, error) {
	var active bool
	err := s.db.QueryRow(ctx, `SELECT active FROM alerts WHERE id = $1`, alertID).Scan(&active)
	return active, err
}

// DueMatch is a pending AlertMatch whose plan delay has elapsed.
type DueMatch struct {
	MatchID        uuid.UUID
	AlertID        uuid.UUID
	ListingID      uuid.UUID
	UserID         uuid.UUID
	TelegramUserID int64
	PlanName       domain.PlanName
	DailyCap       int
}

// DueMatches returns pending matches ready for delivery: matched_at plus
// the owning user's plan delay has elapsed (§4.9 "Delivery is scheduled
// for matched_at + delay").
func (s *Store) DueMatches(ctx context.Context, now time.Time, limit int) ([]DueMatch, error) {
	rows, err := s.db.Query(ctx, `
		SELECT am.id, am.alert_id, am.listing_id, u.id, u.telegram_user_id, p.name, p.daily_cap
		FROM alert_matches am
		JOIN alerts a ON a.id = am.alert_id
		JOIN users u ON u.id = a.user_id
		JOIN plans p ON p.id = u.plan_id
		WHERE am.status = 'pending' AND am.matched_at + p.notification_delay <= $1
		ORDER BY am.matched_at
		LIMIT $2
	`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DueMatch
	for rows.Next() {
		var d DueMatch
		if err := rows.Scan(&d.MatchID, &d.AlertID, &d.ListingID, &d.UserID, &d.TelegramUserID, &d.PlanName, &d.DailyCap); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DailyCapKey and CountToday implement the per-user-per-UTC-day counter
// backing the plan's daily notification cap.
func (s *Store) CountToday(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	return s.counter.Get(ctx, ratelimit.DailyCapKey("alert_notify", userID.String(), now))
}

func (s *Store) IncrementToday(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	return s.counter.Increment(ctx, ratelimit.DailyCapKey("alert_notify", userID.String(), now), 25*time.Hour)
}
