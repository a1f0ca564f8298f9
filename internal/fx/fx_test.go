package fx

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestConvert_BGNPassesThrough(t *testing.T) {
	table := &Table{cache: make(map[string]Rate)}
	got, err := table.Convert(nil, decimal.NewFromInt(1000), "BGN", time.Now())
	assert.NoError(t, err)
	assert.True(t, got.Equal(decimal.NewFromInt(1000)))
}

func TestConvert_EURUsesFixedPeg(t *testing.T) {
	table := &Table{cache: make(map[string]Rate)}
	got, err := table.Convert(nil, decimal.NewFromInt(100), "EUR", time.Now())
	assert.NoError(t, err)
	assert.True(t, got.Equal(decimal.RequireFromString("195.58")))
}
