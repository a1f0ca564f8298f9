// Package events repurposes the teacher's SSE broadcaster into an
// internal, ops-facing stream of pipeline stage transitions — used by the
// /internal debug surface to watch a listing move through the pipeline
// live, not by any end-user client.
package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carscout-ai/carscout/internal/metrics"
	"github.com/carscout-ai/carscout/internal/queue"
)

// StageEvent describes a pipeline stage finishing for a listing.
// Subscribers receive only the events passed to Bus.Publish; the pipeline
// engine and its workers do not call Publish.
type StageEvent struct {
	Type      string       `json:"type"`
	ListingID uuid.UUID    `json:"listing_id"`
	Stage     queue.Stage  `json:"stage"`
	Outcome   queue.Outcome `json:"outcome"`
	Reason    string       `json:"reason,omitempty"`
	TraceID   string       `json:"trace_id,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Bus fans StageEvents out to debug-stream subscribers, keyed by listing.
type Bus struct {
	logger *slog.Logger

	subscribers map[uuid.UUID]map[*Subscriber]struct{}
	mu          sync.RWMutex

	events chan StageEvent
	done   chan struct{}
}

// Subscriber represents one SSE debug-stream client.
type Subscriber struct {
	ID       string
	Messages chan []byte
	Done     chan struct{}
}

func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		logger:      logger,
		subscribers: make(map[uuid.UUID]map[*Subscriber]struct{}),
		events:      make(chan StageEvent, 1000),
		done:        make(chan struct{}),
	}
}

func (b *Bus) Start() {
	go b.broadcastLoop()
	b.logger.Info("events_bus_started")
}

func (b *Bus) Stop() {
	close(b.done)
	b.logger.Info("events_bus_stopped")
}

func (b *Bus) Subscribe(listingID uuid.UUID, sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subscribers[listingID] == nil {
		b.subscribers[listingID] = make(map[*Subscriber]struct{})
	}
	b.subscribers[listingID][sub] = struct{}{}

	b.logger.Debug("events_subscriber_added",
		slog.String("listing_id", listingID.String()),
		slog.String("subscriber_id", sub.ID),
	)
}

func (b *Bus) Unsubscribe(listingID uuid.UUID, sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subs, ok := b.subscribers[listingID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.subscribers, listingID)
		}
	}

	b.logger.Debug("events_subscriber_removed",
		slog.String("listing_id", listingID.String()),
		slog.String("subscriber_id", sub.ID),
	)
}

// Publish queues a stage event for broadcast, dropping it if the bus is
// backed up rather than blocking a pipeline worker.
func (b *Bus) Publish(event StageEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case b.events <- event:
	default:
		b.logger.Warn("events_dropped_queue_full",
			slog.String("listing_id", event.ListingID.String()),
		)
	}
}

func (b *Bus) broadcastLoop() {
	for {
		select {
		case <-b.done:
			return
		case event := <-b.events:
			b.broadcastEvent(event)
		}
	}
}

func (b *Bus) broadcastEvent(event StageEvent) {
	b.mu.RLock()
	subs := b.subscribers[event.ListingID]
	count := len(subs)
	b.mu.RUnlock()

	if count == 0 {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Error("events_marshal_error", slog.String("error", err.Error()))
		return
	}

	message := formatSSE(string(event.Stage), data)

	b.mu.RLock()
	for sub := range b.subscribers[event.ListingID] {
		select {
		case sub.Messages <- message:
		default:
		}
	}
	b.mu.RUnlock()

	metrics.SSESubscribersPerListing.Observe(float64(count))

	b.logger.Debug("events_broadcast",
		slog.String("listing_id", event.ListingID.String()),
		slog.String("stage", string(event.Stage)),
		slog.Int("subscribers", count),
	)
}

func formatSSE(eventType string, data []byte) []byte {
	result := make([]byte, 0, len(eventType)+len(data)+20)
	result = append(result, "event: "...)
	result = append(result, eventType...)
	result = append(result, '\n')
	result = append(result, "data: "...)
	result = append(result, data...)
	result = append(result, '\n', '\n')
	return result
}

// Stats returns bus statistics for the /internal debug surface.
func (b *Bus) Stats() BusStats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	total := 0
	listingStats := make([]ListingSubscribers, 0, len(b.subscribers))

	for listingID, subs := range b.subscribers {
		count := len(subs)
		total += count
		listingStats = append(listingStats, ListingSubscribers{
			ListingID:   listingID.String(),
			Subscribers: count,
		})
	}

	return BusStats{
		TotalConnections: total,
		Listings:         listingStats,
	}
}

type BusStats struct {
	TotalConnections int                  `json:"total_connections"`
	Listings         []ListingSubscribers `json:"listings"`
}

type ListingSubscribers struct {
	ListingID   string `json:"listing_id"`
	Subscribers int    `json:"subscribers"`
}
