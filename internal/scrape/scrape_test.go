package scrape

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTickBucket_StableWithinInterval(t *testing.T) {
	interval := 10 * time.Minute
	t1 := time.Date(2026, 7, 30, 12, 3, 0, 0, time.UTC)
	t2 := time.Date(2026, 7, 30, 12, 7, 0, 0, time.UTC)
	assert.Equal(t, TickBucket(t1, interval), TickBucket(t2, interval))
}

func TestTickBucket_DiffersAcrossIntervals(t *testing.T) {
	interval := 10 * time.Minute
	t1 := time.Date(2026, 7, 30, 12, 3, 0, 0, time.UTC)
	t2 := time.Date(2026, 7, 30, 12, 13, 0, 0, time.UTC)
	assert.NotEqual(t, TickBucket(t1, interval), TickBucket(t2, interval))
}

func TestTickBucket_DefaultsZeroInterval(t *testing.T) {
	now := time.Date(2026, 7, 30, 12, 3, 30, 0, time.UTC)
	assert.NotPanics(t, func() { TickBucket(now, 0) })
}

func TestContentHash_Deterministic(t *testing.T) {
	a := ContentHash([]byte("hello"))
	b := ContentHash([]byte("hello"))
	c := ContentHash([]byte("world"))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestDefaultConfig_Sane(t *testing.T) {
	cfg := DefaultConfig()
	assert.Greater(t, cfg.PerSourceConcurrency, 0)
	assert.Greater(t, cfg.MaxRetries, 0)
	assert.Greater(t, cfg.ErrorPauseRate, 0.0)
	assert.LessOrEqual(t, cfg.ErrorPauseRate, 1.0)
}
