package channel

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/carscout-ai/carscout/internal/messaging"
)

func TestCaption_IncludesPriceAndRegion(t *testing.T) {
	l := ListingPost{
		Title:       "BMW X5 3.0d",
		Description: "Добре поддържан автомобил.",
		PriceBGN:    decimal.NewFromInt(24000),
		Region:      "sofia",
	}
	c := caption(l)
	assert.Contains(t, c, "BMW X5 3.0d")
	assert.Contains(t, c, "24000 BGN")
	assert.Contains(t, c, "sofia")
	assert.Contains(t, c, "Добре поддържан")
}

func TestClassifyDeliveryErr_TransientRetries(t *testing.T) {
	res := classifyDeliveryErr(&messaging.TransientError{Cause: errors.New("boom")})
	assert.Equal(t, "retry", string(res.Outcome))
}

func TestClassifyDeliveryErr_RateLimitedRetries(t *testing.T) {
	res := classifyDeliveryErr(&messaging.RateLimitedError{RetryAfter: 5 * time.Second})
	assert.Equal(t, "retry", string(res.Outcome))
}

func TestClassifyDeliveryErr_PermanentSkips(t *testing.T) {
	res := classifyDeliveryErr(&messaging.PermanentError{Reason: "bad request"})
	assert.Equal(t, "skip", string(res.Outcome))
}

func TestClassifyDeliveryErr_InvalidRecipientSkips(t *testing.T) {
	res := classifyDeliveryErr(&messaging.InvalidRecipientError{Recipient: "x"})
	assert.Equal(t, "skip", string(res.Outcome))
}
