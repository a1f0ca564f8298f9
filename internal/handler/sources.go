package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SourceHandler is the internal admin surface over scrape sources
// (enable/disable), replacing the teacher's auction admin surface.
type SourceHandler struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

func NewSourceHandler(db *pgxpool.Pool, logger *slog.Logger) *SourceHandler {
	return &SourceHandler{db: db, logger: logger}
}

type SourceView struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	BaseURL      string    `json:"base_url"`
	Enabled      bool      `json:"enabled"`
	CrawlInterval string   `json:"crawl_interval"`
}

// List returns every configured source and its current state.
func (h *SourceHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.Query(r.Context(), `
		SELECT id, name, base_url, enabled, crawl_interval_seconds FROM sources ORDER BY name
	`)
	if err != nil {
		h.logger.Error("list sources failed", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	var out []SourceView
	for rows.Next() {
		var s SourceView
		var intervalSeconds int
		if err := rows.Scan(&s.ID, &s.Name, &s.BaseURL, &s.Enabled, &intervalSeconds); err != nil {
			h.logger.Error("scan source failed", slog.String("error", err.Error()))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		s.CrawlInterval = (time.Duration(intervalSeconds) * time.Second).String()
		out = append(out, s)
	}
	writeJSON(w, http.StatusOK, out)
}

// SetEnabled manually enables or disables a source, overriding the
// scheduler's automatic error-rate pause (§4.1 "pause the source on high
// error rate") which flips the same column.
func (h *SourceHandler) SetEnabled(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid source id", http.StatusBadRequest)
		return
	}
	enabled := r.URL.Query().Get("enabled") == "true"

	if _, err := h.db.Exec(r.Context(), `UPDATE sources SET enabled = $2 WHERE id = $1`, id, enabled); err != nil {
		h.logger.Error("set source enabled failed", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
