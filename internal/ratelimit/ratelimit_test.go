package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDailyCapKey_StableFormat(t *testing.T) {
	day := time.Date(2026, 7, 30, 14, 0, 0, 0, time.UTC)
	assert.Equal(t, "alert_cap:user-1:2026-07-30", DailyCapKey("alert_cap", "user-1", day))
}

func TestDailyCapKey_TimeOfDayDoesNotAffectKey(t *testing.T) {
	morning := time.Date(2026, 7, 30, 1, 0, 0, 0, time.UTC)
	night := time.Date(2026, 7, 30, 23, 59, 0, 0, time.UTC)
	assert.Equal(t, DailyCapKey("alert_cap", "user-1", morning), DailyCapKey("alert_cap", "user-1", night))
}

func TestDiversityKey_IncludesBucket(t *testing.T) {
	k1 := DiversityKey("tg-main", "bmw", "x5", 100)
	k2 := DiversityKey("tg-main", "bmw", "x5", 101)
	assert.NotEqual(t, k1, k2)
}
