package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeCycleBasics(t *testing.T) {
	start := time.Date(2025, 3, 10, 14, 30, 0, 0, BillingLocation())
	dates := ComputeCycle(start)

	assert.Equal(t, start, dates.CycleStart)
	assert.Equal(t, start.AddDate(0, 0, 30), dates.CycleEnd)

	require.Equal(t, time.April, dates.DueDate.Month())
	assert.Equal(t, 10, dates.DueDate.Day())
	assert.Equal(t, 23, dates.DueDate.Hour())
	assert.Equal(t, 59, dates.DueDate.Minute())
}

func TestComputeCycleClampsShortMonths(t *testing.T) {
	// Jan 31 + 1 month must land on the last day of February, not March.
	start := time.Date(2025, 1, 31, 10, 0, 0, 0, BillingLocation())
	dates := ComputeCycle(start)

	assert.Equal(t, time.February, dates.DueDate.Month())
	assert.Equal(t, 28, dates.DueDate.Day())

	leap := ComputeCycle(time.Date(2024, 1, 31, 10, 0, 0, 0, BillingLocation()))
	assert.Equal(t, 29, leap.DueDate.Day())
}

func TestComputeCycleNormalizesLocation(t *testing.T) {
	utc := time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC)
	dates := ComputeCycle(utc)

	assert.Equal(t, BillingLocation(), dates.CycleStart.Location())
	assert.True(t, dates.CycleStart.Equal(utc))
}

func TestValidateCycle(t *testing.T) {
	start := time.Date(2025, 3, 1, 0, 0, 0, 0, BillingLocation())

	t.Run("valid thirty day cycle", func(t *testing.T) {
		v := ValidateCycle(start, start.AddDate(0, 0, 30), start.AddDate(0, 1, 0))
		assert.True(t, v.Valid)
		assert.Empty(t, v.Errors)
		assert.Empty(t, v.Warnings)
	})

	t.Run("end before start", func(t *testing.T) {
		v := ValidateCycle(start, start.AddDate(0, 0, -1), time.Time{})
		assert.False(t, v.Valid)
		assert.NotEmpty(t, v.Errors)
	})

	t.Run("due before start", func(t *testing.T) {
		v := ValidateCycle(start, start.AddDate(0, 0, 30), start.AddDate(0, 0, -5))
		assert.False(t, v.Valid)
	})

	t.Run("zero start", func(t *testing.T) {
		v := ValidateCycle(time.Time{}, start, start)
		assert.False(t, v.Valid)
	})

	t.Run("suspiciously short cycle warns", func(t *testing.T) {
		v := ValidateCycle(start, start.AddDate(0, 0, 3), time.Time{})
		assert.True(t, v.Valid)
		assert.NotEmpty(t, v.Warnings)
	})

	t.Run("suspiciously long cycle warns", func(t *testing.T) {
		v := ValidateCycle(start, start.AddDate(2, 0, 0), time.Time{})
		assert.True(t, v.Valid)
		assert.NotEmpty(t, v.Warnings)
	})
}

func TestStartAndEndOfDay(t *testing.T) {
	at := time.Date(2025, 7, 15, 13, 45, 12, 0, BillingLocation())

	sod := StartOfDay(at)
	assert.Equal(t, 0, sod.Hour())
	assert.Equal(t, 15, sod.Day())

	eod := EndOfDay(at)
	assert.Equal(t, 23, eod.Hour())
	assert.Equal(t, 59, eod.Minute())
	assert.Equal(t, 59, eod.Second())
	assert.Equal(t, 15, eod.Day())
}
