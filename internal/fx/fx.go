// Package fx holds the daily BGN exchange-rate table normalize uses to
// compute NormalizedListing.price_bgn (§3 invariant: price_bgn =
// convert(price, currency, fx_daily); rates are versioned daily).
package fx

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Rate is one currency's BGN conversion factor for a given day.
type Rate struct {
	Currency  string
	Day       time.Time // truncated to UTC midnight
	PerBGN    decimal.Decimal
	FetchedAt time.Time
}

// Table is a cached, DB-backed daily FX rate table. BGN is pegged to EUR
// (1.95583) by law, so EUR is hardcoded; other currencies are loaded from
// the fx_rates table, refreshed once per day.
type Table struct {
	db *pgxpool.Pool

	mu    sync.RWMutex
	cache map[string]Rate // key: currency + "|" + day RFC3339 date
}

// bgnPerEUR is the fixed currency-board peg; it never changes.
var bgnPerEUR = decimal.RequireFromString("1.95583")

func NewTable(db *pgxpool.Pool) *Table {
	return &Table{db: db, cache: make(map[string]Rate)}
}

// Convert converts amount from currency to BGN using the rate in effect on
// day (truncated to UTC midnight, matching §3's daily versioning).
func (t *Table) Convert(ctx context.Context, amount decimal.Decimal, currency string, day time.Time) (decimal.Decimal, error) {
	if currency == "BGN" {
		return amount.Round(2), nil
	}
	if currency == "EUR" {
		return amount.Mul(bgnPerEUR).Round(2), nil
	}

	rate, err := t.rateFor(ctx, currency, day)
	if err != nil {
		return decimal.Decimal{}, err
	}
	return amount.Mul(rate.PerBGN).Round(2), nil
}

func (t *Table) rateFor(ctx context.Context, currency string, day time.Time) (Rate, error) {
	day = day.UTC().Truncate(24 * time.Hour)
	key := currency + "|" + day.Format(time.RFC3339)

	t.mu.RLock()
	if r, ok := t.cache[key]; ok {
		t.mu.RUnlock()
		return r, nil
	}
	t.mu.RUnlock()

	var perBGN decimal.Decimal
	err := t.db.QueryRow(ctx, `
		SELECT per_bgn FROM fx_rates WHERE currency = $1 AND day = $2
	`, currency, day).Scan(&perBGN)
	if err != nil {
		return Rate{}, fmt.Errorf("fx rate not found for %s on %s: %w", currency, day.Format("2006-01-02"), err)
	}

	r := Rate{Currency: currency, Day: day, PerBGN: perBGN, FetchedAt: time.Now()}
	t.mu.Lock()
	t.cache[key] = r
	t.mu.Unlock()
	return r, nil
}

// Seed inserts or updates a day's rate (used by the daily rate-loader
// job and by tests).
func (t *Table) Seed(ctx context.Context, currency string, day time.Time, perBGN decimal.Decimal) error {
	day = day.UTC().Truncate(24 * time.Hour)
	_, err := t.db.Exec(ctx, `
		INSERT INTO fx_rates (currency, day, per_bgn)
		VALUES ($1, $2, $3)
		ON CONFLICT (currency, day) DO UPDATE SET per_bgn = EXCLUDED.per_bgn
	`, currency, day, perBGN)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.cache[currency+"|"+day.Format(time.RFC3339)] = Rate{Currency: currency, Day: day, PerBGN: perBGN, FetchedAt: time.Now()}
	t.mu.Unlock()
	return nil
}
