// Package scrape implements the scheduler and scrape-adapter contract of
// §4.1. Site-specific HTML extractors are out-of-scope external
// collaborators (§1); this package only defines the boundary they
// plug into, plus the upsert/backoff/pause machinery the core owns.
package scrape

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is what an Adapter hands the core for one observed ad (§4.1).
type Record struct {
	SourceID   uuid.UUID
	SiteAdID   string
	URL        string
	RawBlobKey string
	ObservedAt time.Time
	HTTPStatus int
	ETag       string
	LastMod    string
}

// Adapter is the capability interface every source plugs into. Per-source
// concurrency and delay budgets are the adapter's own responsibility; the
// core only calls these two methods (§4.1).
type Adapter interface {
	ListRecent(ctx context.Context, cursor string) (records []Record, nextCursor string, err error)
	FetchDetail(ctx context.Context, url string) (rawBlob []byte, err error)
}

// Config mirrors the teacher-pack's scraper config shape (Workers,
// RateLimit, ...), extended with the per-source pause thresholds §4.1
// and §5 require.
type Config struct {
	PerSourceConcurrency int
	MaxRetries           int
	RetryBackoff         time.Duration
	ErrorWindow          time.Duration
	ErrorPauseRate       float64 // pause the source once its error rate over ErrorWindow exceeds this
}

func DefaultConfig() Config {
	return Config{
		PerSourceConcurrency: 4,
		MaxRetries:           5,
		RetryBackoff:         500 * time.Millisecond,
		ErrorWindow:          15 * time.Minute,
		ErrorPauseRate:       0.5,
	}
}
