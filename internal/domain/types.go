// Package domain holds the entities shared across every pipeline stage.
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Fuel string

const (
	FuelPetrol   Fuel = "petrol"
	FuelDiesel   Fuel = "diesel"
	FuelHybrid   Fuel = "hybrid"
	FuelElectric Fuel = "electric"
	FuelLPG      Fuel = "lpg"
	FuelCNG      Fuel = "cng"
	FuelOther    Fuel = "other"
)

type Gearbox string

const (
	GearboxManual    Gearbox = "manual"
	GearboxAutomatic Gearbox = "automatic"
	GearboxSemiAuto  Gearbox = "semi_auto"
	GearboxOther     Gearbox = "other"
)

type Body string

const (
	BodySedan       Body = "sedan"
	BodyHatchback   Body = "hatchback"
	BodyEstate      Body = "estate"
	BodySUV         Body = "suv"
	BodyCoupe       Body = "coupe"
	BodyConvertible Body = "convertible"
	BodyVan         Body = "van"
	BodyPickup      Body = "pickup"
	BodyOther       Body = "other"
)

type RiskLevel string

const (
	RiskGreen  RiskLevel = "green"
	RiskYellow RiskLevel = "yellow"
	RiskRed    RiskLevel = "red"
)

type ScoreState string

const (
	ScoreDraft    ScoreState = "draft"
	ScoreApproved ScoreState = "approved"
	ScoreRejected ScoreState = "rejected"
)

type DuplicateMethod string

const (
	DupMethodPhone     DuplicateMethod = "phone"
	DupMethodText      DuplicateMethod = "text"
	DupMethodImage     DuplicateMethod = "image"
	DupMethodEmbedding DuplicateMethod = "embedding"
)

type AlertMatchStatus string

const (
	AlertMatchPending  AlertMatchStatus = "pending"
	AlertMatchNotified AlertMatchStatus = "notified"
	AlertMatchSkipped  AlertMatchStatus = "skipped"
	AlertMatchFailed   AlertMatchStatus = "failed"
)

type PlanName string

const (
	PlanFree    PlanName = "free"
	PlanPremium PlanName = "premium"
	PlanPro     PlanName = "pro"
)

// Source is an admin-created, read-mostly marketplace adapter configuration.
type Source struct {
	ID            uuid.UUID
	Name          string
	BaseURL       string
	Enabled       bool
	CrawlInterval time.Duration
}

// RawListing is the scraper's upserted view of a single classified ad.
type RawListing struct {
	ID          uuid.UUID
	SourceID    uuid.UUID
	SiteAdID    string
	URL         string
	RawBlobKey  string
	HTTPStatus  int
	FirstSeen   time.Time
	LastSeen    time.Time
	IsActive    bool
	Version     int
	ParseErrors int
}

// NormalizedListing is the canonical, enum-standardized view of a listing.
type NormalizedListing struct {
	ID              uuid.UUID
	RawID           uuid.UUID
	BrandID         string
	ModelID         string
	Year            int
	MileageKM       int
	Fuel            Fuel
	Gearbox         Gearbox
	Body            Body
	Price           decimal.Decimal
	Currency        string
	PriceBGN        decimal.Decimal
	Region          string
	Title           string
	Description     string
	DescriptionHash string
	Features        []string
	FirstImageHash  string
	Version         int
	IsDuplicate     bool
	CanonicalOf     *uuid.UUID
	IsNormalized    bool
	SellerID        *uuid.UUID
	FirstSeen       time.Time
}

// BrandModel is seed alias data for the brand/model fuzzy matcher.
type BrandModel struct {
	BrandID string
	ModelID string
	Aliases []string
	Locale  string
	Active  bool
}

// Image is one of up to 5 photos attached to a listing.
type Image struct {
	ID          uuid.UUID
	ListingID   uuid.UUID
	URL         string
	ContentHash string
	Width       int
	Height      int
	Index       int
}

// Seller is keyed by an HMAC of the normalized phone digits; the raw number
// is never persisted.
type Seller struct {
	ID           uuid.UUID
	PhoneHash    string
	ProfileURL   string
	ContactCount int
	Blacklisted  bool
}

// PriceHistoryEntry is an append-only ledger row of an observed BGN price.
type PriceHistoryEntry struct {
	ListingID uuid.UUID
	PriceBGN  decimal.Decimal
	SeenAt    time.Time
}

// CompCache is the cached output of the price stage's comparable analysis.
type CompCache struct {
	ListingID      uuid.UUID
	P10            decimal.Decimal
	P25            decimal.Decimal
	P50            decimal.Decimal
	P75            decimal.Decimal
	P90            decimal.Decimal
	Mean           decimal.Decimal
	StdDev         decimal.Decimal
	PredictedPrice decimal.Decimal
	DiscountPct    float64
	SampleSize     int
	Confidence     float64
	ComputedAt     time.Time
	ModelVersion   string
}

// RiskEvaluation is the merged rule+LLM risk verdict for a listing.
type RiskEvaluation struct {
	ListingID      uuid.UUID
	Flags          map[string][]string
	RiskLevel      RiskLevel
	RuleConfidence float64
	LLMUsed        bool
	LLMUnavailable bool
	LLMSummary     string
	LLMReasons     []string
	LLMConfidence  float64
	EvaluatedAt    time.Time
}

// Score is the final additive score and approval decision for a listing.
type Score struct {
	ListingID   uuid.UUID
	Score       float64
	PriceScore  float64
	RiskPenalty float64
	Freshness   float64
	Liquidity   float64
	Reasons     []string
	State       ScoreState
	ScoredAt    time.Time
}

// DedupeSignature is the persisted fingerprint set used by future listings
// to detect duplicates of this one.
type DedupeSignature struct {
	ListingID       uuid.UUID
	TitleTrigrams   []string
	DescMinHash     []uint64
	FirstImagePHash uint64
	Embedding       []float32
}

// DuplicateLog records a single dedupe decision.
type DuplicateLog struct {
	ListingID   uuid.UUID
	DuplicateOf uuid.UUID
	Method      DuplicateMethod
	Confidence  float64
	DecidedAt   time.Time
}

// User is a Telegram-identified subscriber.
type User struct {
	ID             uuid.UUID
	TelegramUserID int64
	PlanID         uuid.UUID
	Status         string
}

// Plan defines the entitlements governing alert delivery. The delay itself
// is only ever used inside the DueMatches SQL (matched_at + delay <= now)
// and is never scanned into Go, so it isn't modeled as a field here.
type Plan struct {
	ID        uuid.UUID
	Name      PlanName
	MaxAlerts int
	DailyCap  int // 0 == unlimited
}

// Alert is a user's saved DSL query plus its normalized filter form.
type Alert struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	DSLQuery  string
	Filters   AlertFilters
	Active    bool
	CreatedAt time.Time
}

// AlertFilters is the fixed-shape parsed form of an Alert's DSL query.
// Unknown tokens never land here; they surface as warnings instead.
type AlertFilters struct {
	BrandID    string
	ModelID    string
	Fuel       Fuel
	Gearbox    Gearbox
	Body       Body
	Region     string
	MinYear    *int
	MaxYear    *int
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	MinMileage *int
	MaxMileage *int
	MinPower   *int
	MaxPower   *int
}

// AlertMatch records a single (alert, listing) pairing and its delivery
// lifecycle.
type AlertMatch struct {
	ID         uuid.UUID
	AlertID    uuid.UUID
	ListingID  uuid.UUID
	MatchedAt  time.Time
	NotifiedAt *time.Time
	Status     AlertMatchStatus
}

// ChannelPost tracks the single broadcast message for a (channel, listing)
// pair so re-observation edits instead of duplicating.
type ChannelPost struct {
	ListingID    uuid.UUID
	Channel      string
	MessageID    string
	PostedAt     time.Time
	LastPriceBGN decimal.Decimal
}

// Pagination is a generic limit/offset request.
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// PaginatedResponse is a generic paginated API envelope.
type PaginatedResponse[T any] struct {
	Items   []T   `json:"items"`
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"has_more"`
}

// APIResponse is the generic admin-API response envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}
