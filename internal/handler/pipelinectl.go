package handler

import (
	"log/slog"
	"net/http"

	"github.com/carscout-ai/carscout/internal/events"
	"github.com/carscout-ai/carscout/internal/pipeline"
)

// PipelineCtlHandler exposes pipeline engine and debug-event-bus
// statistics, replacing the teacher's bid engine admin surface.
type PipelineCtlHandler struct {
	engine *pipeline.Engine
	bus    *events.Bus
	logger *slog.Logger
}

func NewPipelineCtlHandler(engine *pipeline.Engine, bus *events.Bus, logger *slog.Logger) *PipelineCtlHandler {
	return &PipelineCtlHandler{engine: engine, bus: bus, logger: logger}
}

// Stats returns current pipeline engine statistics.
func (h *PipelineCtlHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.engine.Stats())
}

// EventBusStats returns the debug event bus's subscriber counts.
func (h *PipelineCtlHandler) EventBusStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.bus.Stats())
}

// AllStats returns combined pipeline + event bus information.
func (h *PipelineCtlHandler) AllStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"pipeline":   h.engine.Stats(),
		"event_bus":  h.bus.Stats(),
	})
}
