package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/carscout-ai/carscout/internal/config"
	"github.com/carscout-ai/carscout/internal/events"
	"github.com/carscout-ai/carscout/internal/middleware"
)

// SSEHandler streams a listing's pipeline stage transitions for the
// /internal debug surface — "watch a listing move through the pipeline
// live" (§5), not an end-user feature.
type SSEHandler struct {
	bus    *events.Bus
	logger *slog.Logger
	cfg    *config.Config
}

func NewSSEHandler(bus *events.Bus, logger *slog.Logger, cfg *config.Config) *SSEHandler {
	return &SSEHandler{bus: bus, logger: logger, cfg: cfg}
}

// StreamListing handles SSE connections for a single listing's pipeline
// stage events.
func (h *SSEHandler) StreamListing(w http.ResponseWriter, r *http.Request) {
	listingID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid listing id", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := &events.Subscriber{
		ID:       uuid.New().String(),
		Messages: make(chan []byte, 100),
		Done:     make(chan struct{}),
	}

	h.bus.Subscribe(listingID, sub)
	defer h.bus.Unsubscribe(listingID, sub)

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	h.logger.Info("sse_connection_opened",
		slog.String("subscriber_id", sub.ID),
		slog.String("listing_id", listingID.String()),
		slog.String("request_id", middleware.GetRequestID(r.Context())),
	)

	w.Write([]byte("event: connected\ndata: {\"listing_id\":\"" + listingID.String() + "\"}\n\n"))
	flusher.Flush()

	keepalive := time.NewTicker(h.cfg.SSEKeepaliveInterval)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			h.logger.Info("sse_connection_closed",
				slog.String("subscriber_id", sub.ID),
				slog.String("listing_id", listingID.String()),
			)
			return

		case msg := <-sub.Messages:
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()

		case <-keepalive.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
