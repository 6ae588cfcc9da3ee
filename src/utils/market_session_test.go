package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarketSessionIsOpen(t *testing.T) {
	ms := NewMarketSession()
	require.NotNil(t, ms.Timezone)

	at := func(day, hour int) time.Time {
		return time.Date(2024, time.June, day, hour, 0, 0, 0, ms.Timezone)
	}

	// June 2024: 7th Friday, 8th Saturday, 9th Sunday, 11th Tuesday.
	assert.True(t, ms.IsOpen(at(11, 12)), "midweek")
	assert.True(t, ms.IsOpen(at(7, 16)), "Friday before NY close")
	assert.False(t, ms.IsOpen(at(7, 18)), "Friday after NY close")
	assert.False(t, ms.IsOpen(at(8, 12)), "Saturday")
	assert.False(t, ms.IsOpen(at(9, 16)), "Sunday before Sydney open")
	assert.True(t, ms.IsOpen(at(9, 18)), "Sunday after Sydney open")
}

func TestMarketSessionThinLiquidity(t *testing.T) {
	ms := NewMarketSession()

	saturday := time.Date(2024, time.June, 8, 12, 0, 0, 0, ms.Timezone)
	assert.True(t, ms.IsThinLiquidity(saturday), "closed market is always thin")

	tuesday := time.Date(2024, time.June, 11, 12, 0, 0, 0, ms.Timezone)
	assert.False(t, ms.IsThinLiquidity(tuesday), "ordinary business day")

	if !ms.Fallback {
		// July 4, 2024 is a Thursday: FX stays open but liquidity thins.
		holiday := time.Date(2024, time.July, 4, 12, 0, 0, 0, ms.Timezone)
		assert.True(t, ms.IsOpen(holiday))
		assert.True(t, ms.IsThinLiquidity(holiday))
	}
}
