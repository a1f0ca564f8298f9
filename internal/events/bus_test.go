package events

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/carscout-ai/carscout/internal/queue"
)

func newTestBus() *Bus {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewBus(logger)
}

func TestBus_StartStop(t *testing.T) {
	bus := newTestBus()
	bus.Start()
	bus.Stop()
}

func TestBus_Subscribe(t *testing.T) {
	bus := newTestBus()
	bus.Start()
	defer bus.Stop()

	listingID := uuid.New()
	sub := &Subscriber{ID: uuid.New().String(), Messages: make(chan []byte, 10), Done: make(chan struct{})}

	bus.Subscribe(listingID, sub)

	bus.mu.RLock()
	subs := bus.subscribers[listingID]
	bus.mu.RUnlock()
	assert.Len(t, subs, 1)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := newTestBus()
	bus.Start()
	defer bus.Stop()

	listingID := uuid.New()
	sub := &Subscriber{ID: uuid.New().String(), Messages: make(chan []byte, 10), Done: make(chan struct{})}

	bus.Subscribe(listingID, sub)
	bus.Unsubscribe(listingID, sub)

	bus.mu.RLock()
	subs := bus.subscribers[listingID]
	bus.mu.RUnlock()
	assert.Len(t, subs, 0)
}

func TestBus_Publish(t *testing.T) {
	bus := newTestBus()
	bus.Start()
	defer bus.Stop()

	listingID := uuid.New()
	sub := &Subscriber{ID: uuid.New().String(), Messages: make(chan []byte, 10), Done: make(chan struct{})}
	bus.Subscribe(listingID, sub)

	bus.Publish(StageEvent{
		Type:      "stage_completed",
		ListingID: listingID,
		Stage:     queue.StageScore,
		Outcome:   queue.OutcomeDone,
	})

	select {
	case received := <-sub.Messages:
		assert.Contains(t, string(received), "score")
	case <-time.After(200 * time.Millisecond):
		t.Fatal("did not receive event")
	}
}

func TestBus_PublishOnlyToTargetListing(t *testing.T) {
	bus := newTestBus()
	bus.Start()
	defer bus.Stop()

	listingA := uuid.New()
	listingB := uuid.New()

	subA := &Subscriber{ID: uuid.New().String(), Messages: make(chan []byte, 10), Done: make(chan struct{})}
	subB := &Subscriber{ID: uuid.New().String(), Messages: make(chan []byte, 10), Done: make(chan struct{})}

	bus.Subscribe(listingA, subA)
	bus.Subscribe(listingB, subB)

	bus.Publish(StageEvent{ListingID: listingA, Stage: queue.StageDedupe, Outcome: queue.OutcomeDone})

	select {
	case <-subA.Messages:
	case <-time.After(200 * time.Millisecond):
		t.Fatal("listing A did not receive")
	}

	select {
	case <-subB.Messages:
		t.Fatal("listing B should not receive")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_Stats(t *testing.T) {
	bus := newTestBus()
	bus.Start()
	defer bus.Stop()

	listingA := uuid.New()
	for i := 0; i < 2; i++ {
		sub := &Subscriber{ID: uuid.New().String(), Messages: make(chan []byte, 10), Done: make(chan struct{})}
		bus.Subscribe(listingA, sub)
	}

	listingB := uuid.New()
	subB := &Subscriber{ID: uuid.New().String(), Messages: make(chan []byte, 10), Done: make(chan struct{})}
	bus.Subscribe(listingB, subB)

	stats := bus.Stats()

	assert.Equal(t, 3, stats.TotalConnections)
	assert.Len(t, stats.Listings, 2)
}

func TestBus_SlowSubscriberDoesNotBlock(t *testing.T) {
	bus := newTestBus()
	bus.Start()
	defer bus.Stop()

	listingID := uuid.New()
	sub := &Subscriber{ID: uuid.New().String(), Messages: make(chan []byte, 5), Done: make(chan struct{})}
	bus.Subscribe(listingID, sub)

	for i := 0; i < 20; i++ {
		bus.Publish(StageEvent{ListingID: listingID, Stage: queue.StagePrice, Outcome: queue.OutcomeDone})
	}

	time.Sleep(100 * time.Millisecond)

	count := 0
loop:
	for {
		select {
		case <-sub.Messages:
			count++
		case <-time.After(50 * time.Millisecond):
			break loop
		}
	}
	assert.True(t, count > 0)
}
