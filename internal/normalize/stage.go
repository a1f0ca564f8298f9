package normalize

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/carscout-ai/carscout/internal/queue"
)

// fxConverter is the subset of fx.Table the stage needs.
type fxConverter interface {
	Convert(ctx context.Context, amount decimal.Decimal, currency string, day time.Time) (decimal.Decimal, error)
}

// Stage implements pipeline.Stage for normalize (§4.3): brand/model
// matching, enum mapping, numeric extraction, FX conversion, region
// canonicalization, description hashing, and seller upsert.
type Stage struct {
	store    *Store
	fx       fxConverter
	deadline time.Duration
}

func NewStage(store *Store, fx fxConverter) *Stage {
	return &Stage{store: store, fx: fx, deadline: 10 * time.Second}
}

func (s *Stage) Name() queue.Stage      { return queue.StageNormalize }
func (s *Stage) Deadline() time.Duration { return s.deadline }

func (s *Stage) Run(ctx context.Context, listingID uuid.UUID) queue.Result {
	draft, err := s.store.loadDraft(ctx, listingID)
	if err != nil {
		return queue.Result{Outcome: queue.OutcomeDeadLetter, Reason: err.Error()}
	}

	brandModels, err := s.store.LoadBrandModels(ctx)
	if err != nil {
		return queue.Result{Outcome: queue.OutcomeRetry, Reason: "load brand models: " + err.Error()}
	}
	matcher := NewBrandMatcher(brandModels)

	bm, matched := matcher.Match(draft.Title)
	if !matched {
		// No confident brand/model mapping: the listing stays draft and
		// is not forwarded. The task completes with a skip outcome;
		// nothing re-enqueues it when the alias table changes.
		return queue.Result{Outcome: queue.OutcomeSkip, Reason: "no confident brand/model match"}
	}
	brandID, modelID := bm.BrandID, bm.ModelID

	year, _ := ExtractYear(draft.YearRaw)
	if year == 0 {
		year, _ = ExtractYear(draft.Title)
	}
	mileage, _ := ExtractMileage(draft.MileageRaw)

	fuel := MatchFuel(draft.FuelRaw)
	gearbox := MatchGearbox(draft.GearboxRaw)
	body := MatchBody(draft.BodyRaw)
	region, ok := MatchRegion(draft.RegionRaw)
	if !ok {
		region = "unknown"
	}

	price, currency := parsePrice(draft.PriceRaw, draft.CurrencyRaw)
	priceBGN := price
	if currency != "BGN" {
		converted, err := s.fx.Convert(ctx, price, currency, time.Now().UTC())
		if err != nil {
			return queue.Result{Outcome: queue.OutcomeRetry, Reason: "fx convert: " + err.Error()}
		}
		priceBGN = converted
	}

	final := Finalized{
		BrandID:         brandID,
		ModelID:         modelID,
		Year:            year,
		MileageKM:       mileage,
		Fuel:            fuel,
		Gearbox:         gearbox,
		Body:            body,
		Price:           price,
		Currency:        currency,
		PriceBGN:        priceBGN,
		Region:          region,
		DescriptionHash: DescriptionHash(draft.Description),
	}

	if err := s.store.SaveFinal(ctx, listingID, draft.SellerPhoneRaw, draft.SellerURL, final); err != nil {
		return queue.Result{Outcome: queue.OutcomeRetry, Reason: "save final: " + err.Error()}
	}

	return queue.Result{Outcome: queue.OutcomeDone, NextStage: queue.StageDedupe}
}

// parsePrice splits a free-form price string into amount + ISO currency
// code, defaulting to BGN when no currency could be identified.
func parsePrice(raw, currencyHint string) (decimal.Decimal, string) {
	currency := "BGN"
	switch Fold(currencyHint) {
	case "eur", "€", "евро":
		currency = "EUR"
	case "usd", "$":
		currency = "USD"
	case "bgn", "лв", "лв.", "leva":
		currency = "BGN"
	}

	amount, err := decimal.NewFromString(cleanPriceDigits(raw))
	if err != nil {
		amount = decimal.Zero
	}
	return amount, currency
}
