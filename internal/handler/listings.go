package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/carscout-ai/carscout/internal/domain"
)

// ListingHandler serves the public read surface over scored listings:
// the "public broadcast channel" spec.md §OVERVIEW describes, mirrored
// onto an HTTP API for anything that isn't the broadcast bot itself.
type ListingHandler struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewListingHandler(db *pgxpool.Pool, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{db: db, logger: logger}
}

type ListingSummary struct {
	ID          uuid.UUID       `json:"id"`
	BrandID     string          `json:"brand_id"`
	ModelID     string          `json:"model_id"`
	Year        int             `json:"year"`
	MileageKM   int             `json:"mileage_km"`
	Fuel        domain.Fuel     `json:"fuel"`
	Gearbox     domain.Gearbox  `json:"gearbox"`
	Body        domain.Body     `json:"body"`
	PriceBGN    decimal.Decimal `json:"price_bgn"`
	Region      string          `json:"region"`
	Title       string          `json:"title"`
	Score       float64         `json:"score"`
	DiscountPct float64         `json:"discount_pct"`
	FirstSeen   time.Time       `json:"first_seen"`
}

// List returns paginated, approved (score.state='approved') listings,
// newest first.
func (h *ListingHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, offset := parsePagination(r)

	rows, err := h.db.Query(ctx, `
		SELECT nl.id, nl.brand_id, nl.model_id, nl.year, nl.mileage_km, nl.fuel,
		       nl.gearbox, nl.body, nl.price_bgn, nl.region, nl.title,
		       s.score, cc.discount_pct, rl.first_seen
		FROM normalized_listings nl
		JOIN scores s ON s.listing_id = nl.id
		JOIN comp_cache cc ON cc.listing_id = nl.id
		JOIN raw_listings rl ON rl.id = nl.raw_id
		WHERE s.state = 'approved' AND nl.is_duplicate = false
		ORDER BY rl.first_seen DESC
		LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		h.logger.Error("list listings query failed", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	var items []ListingSummary
	for rows.Next() {
		var s ListingSummary
		if err := rows.Scan(&s.ID, &s.BrandID, &s.ModelID, &s.Year, &s.MileageKM, &s.Fuel,
			&s.Gearbox, &s.Body, &s.PriceBGN, &s.Region, &s.Title, &s.Score, &s.DiscountPct, &s.FirstSeen); err != nil {
			h.logger.Error("scan listing row failed", slog.String("error", err.Error()))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		items = append(items, s)
	}

	var total int64
	if err := h.db.QueryRow(ctx, `
		SELECT count(*) FROM normalized_listings nl JOIN scores s ON s.listing_id = nl.id
		WHERE s.state = 'approved' AND nl.is_duplicate = false
	`).Scan(&total); err != nil {
		h.logger.Error("count listings failed", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, domain.PaginatedResponse[ListingSummary]{
		Items: items, Total: total, Limit: limit, Offset: offset, HasMore: int64(offset+len(items)) < total,
	})
}

type ListingDetail struct {
	ListingSummary
	Description string   `json:"description"`
	Features    []string `json:"features"`
	RiskLevel   string   `json:"risk_level"`
	PriceScore  float64  `json:"price_score"`
	SampleSize  int      `json:"sample_size"`
}

// Get returns a single approved listing's full detail.
func (h *ListingHandler) Get(w http.ResponseWriter, r *http.Request) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		http.Error(w, "invalid listing id", http.StatusBadRequest)
		return
	}

	var d ListingDetail
	err = h.db.QueryRow(r.Context(), `
		SELECT nl.id, nl.brand_id, nl.model_id, nl.year, nl.mileage_km, nl.fuel,
		       nl.gearbox, nl.body, nl.price_bgn, nl.region, nl.title, nl.description, nl.features,
		       s.score, s.price_score, cc.discount_pct, cc.sample_size, re.risk_level, rl.first_seen
		FROM normalized_listings nl
		JOIN scores s ON s.listing_id = nl.id
		JOIN comp_cache cc ON cc.listing_id = nl.id
		JOIN risk_evaluations re ON re.listing_id = nl.id
		JOIN raw_listings rl ON rl.id = nl.raw_id
		WHERE nl.id = $1 AND s.state = 'approved'
	`, id).Scan(&d.ID, &d.BrandID, &d.ModelID, &d.Year, &d.MileageKM, &d.Fuel, &d.Gearbox, &d.Body,
		&d.PriceBGN, &d.Region, &d.Title, &d.Description, &d.Features,
		&d.Score, &d.PriceScore, &d.DiscountPct, &d.SampleSize, &d.RiskLevel, &d.FirstSeen)
	if err != nil {
		http.Error(w, "listing not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, d)
}

func parsePagination(r *http.Request) (limit, offset int) {
	limit, offset = 20, 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}
	return limit, offset
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
