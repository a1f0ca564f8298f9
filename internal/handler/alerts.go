package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carscout-ai/carscout/internal/alert"
	"github.com/carscout-ai/carscout/internal/middleware"
	"github.com/carscout-ai/carscout/internal/normalize"
)

// AlertHandler lets a user manage saved-search alerts (§4.9), replacing
// the teacher's watchlist/notifications handlers.
type AlertHandler struct {
	store   *alert.Store
	matcher *normalize.BrandMatcher
	logger  *slog.Logger
}

func NewAlertHandler(store *alert.Store, matcher *normalize.BrandMatcher, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{store: store, matcher: matcher, logger: logger}
}

type createAlertRequest struct {
	Query string `json:"query"`
}

type createAlertResponse struct {
	ID       uuid.UUID `json:"id"`
	Query    string    `json:"query"`
	Warnings []string  `json:"warnings,omitempty"`
}

// Create parses and saves a new alert for the authenticated user.
func (h *AlertHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetCallerID(r.Context())
	uid, err := uuid.Parse(userID)
	if err != nil {
		http.Error(w, "unauthenticated", http.StatusUnauthorized)
		return
	}

	var req createAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	a, warnings, err := h.store.CreateAlert(r.Context(), uid, req.Query, h.matcher)
	if err != nil {
		h.logger.Error("create alert failed", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	resp := createAlertResponse{ID: a.ID, Query: a.DSLQuery}
	for _, wn := range warnings {
		resp.Warnings = append(resp.Warnings, wn.Token)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Deactivate marks an alert inactive; it stops matching immediately and
// any already-pending AlertMatch is caught by the delivery-time re-check
// (§4.9).
func (h *AlertHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid alert id", http.StatusBadRequest)
		return
	}
	if err := h.store.Deactivate(r.Context(), id); err != nil {
		h.logger.Error("deactivate alert failed", slog.String("error", err.Error()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
