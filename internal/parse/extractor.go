// Package parse turns a RawListing's opaque blob into a draft
// NormalizedListing (§4.2, is_normalized=false until normalize completes).
// Field extractors are registered per source since each site's HTML/JSON
// shape differs; the registry itself stays source-agnostic.
package parse

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Draft is the source-specific extractor's output: whatever fields it
// could find, with missing fields left as the zero value (§4.2 "missing
// fields are null, never guessed").
type Draft struct {
	Title       string
	Description string
	PriceRaw    string
	CurrencyRaw string
	YearRaw     string
	MileageRaw  string
	FuelRaw     string
	GearboxRaw  string
	BodyRaw     string
	RegionRaw   string
	PhoneRaw    string
	SellerURL   string
	Features    []string
	ImageURLs   []string
}

// Extractor is implemented once per source.
type Extractor interface {
	Extract(ctx context.Context, rawBlob []byte) (Draft, error)
}

// Registry maps a source ID to its Extractor.
type Registry struct {
	extractors map[uuid.UUID]Extractor
}

func NewRegistry() *Registry {
	return &Registry{extractors: make(map[uuid.UUID]Extractor)}
}

func (r *Registry) Register(sourceID uuid.UUID, e Extractor) {
	r.extractors[sourceID] = e
}

func (r *Registry) Get(sourceID uuid.UUID) (Extractor, bool) {
	e, ok := r.extractors[sourceID]
	return e, ok
}

// ErrNoExtractor is a permanent failure: there's no source-specific
// extractor registered, so retrying will never help.
type ErrNoExtractor struct {
	SourceID uuid.UUID
}

func (e ErrNoExtractor) Error() string {
	return fmt.Sprintf("parse: no extractor registered for source %s", e.SourceID)
}
