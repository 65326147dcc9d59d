package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIDDeterministic(t *testing.T) {
	date := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	amount := decimal.NewFromFloat(-42.50)

	first := GenerateID("chase", date, "STARBUCKS #1234", amount, 0)
	second := GenerateID("chase", date, "STARBUCKS #1234", amount, 0)

	assert.Equal(t, first, second)
	assert.Len(t, first, 12)
}

func TestGenerateIDMerchantNormalization(t *testing.T) {
	date := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	amount := decimal.NewFromFloat(-42.50)

	base := GenerateID("chase", date, "STARBUCKS #1234", amount, 0)

	// Case and surrounding whitespace must not change the ID.
	assert.Equal(t, base, GenerateID("chase", date, "starbucks #1234", amount, 0))
	assert.Equal(t, base, GenerateID("chase", date, "  STARBUCKS #1234  ", amount, 0))
}

func TestGenerateIDVariesWithEachField(t *testing.T) {
	date := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	amount := decimal.NewFromFloat(-42.50)

	base := GenerateID("chase", date, "STARBUCKS", amount, 0)

	assert.NotEqual(t, base, GenerateID("capital_one", date, "STARBUCKS", amount, 0))
	assert.NotEqual(t, base, GenerateID("chase", date.AddDate(0, 0, 1), "STARBUCKS", amount, 0))
	assert.NotEqual(t, base, GenerateID("chase", date, "DUNKIN", amount, 0))
	assert.NotEqual(t, base, GenerateID("chase", date, "STARBUCKS", decimal.NewFromFloat(-42.51), 0))
	assert.NotEqual(t, base, GenerateID("chase", date, "STARBUCKS", amount, 1))
}

func TestMonthRange(t *testing.T) {
	first, last, err := MonthRange("2026-02")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), first)
	assert.Equal(t, time.Date(2026, 2, 28, 0, 0, 0, 0, time.UTC), last)
}

func TestMonthRangeDecemberRollover(t *testing.T) {
	first, last, err := MonthRange("2025-12")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC), first)
	assert.Equal(t, time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), last)
}

func TestMonthRangeInvalid(t *testing.T) {
	for _, month := range []string{"February 2026", "2026-13", "2026-00", "2026"} {
		_, _, err := MonthRange(month)
		assert.Error(t, err, month)
	}
}
