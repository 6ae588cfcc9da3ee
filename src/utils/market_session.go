package utils

import (
	"time"

	"github.com/scmhub/calendar"
)

// -----------------------------------------------------------------------------
// MarketSession answers "is the FX market trading right now". Used to tune
// sweep logging and the health endpoint: a silent fleet on a Saturday is
// normal, the same silence on a Tuesday is not.
//
// FX trades continuously from the Sydney open (Sunday 17:00 New York time)
// to the New York close (Friday 17:00). Bank holidays thin liquidity but do
// not close the market, so only the NYSE holiday calendar is consulted for
// the degraded-liquidity flag.
// -----------------------------------------------------------------------------

type MarketSession struct {
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// -----------------------------------------------------------------------------

func NewMarketSession() *MarketSession {
	cal := calendar.GetCalendar("xnys")
	if cal == nil {
		// Worst case: plain weekday arithmetic in New York time.
		nyLoc, _ := time.LoadLocation("America/New_York")
		if nyLoc == nil {
			nyLoc = time.UTC
		}
		return &MarketSession{Fallback: true, Timezone: nyLoc}
	}
	return &MarketSession{Calendar: cal, Fallback: false, Timezone: cal.Loc}
}

// -----------------------------------------------------------------------------

// IsOpen reports whether the FX week is in session at t.
func (ms *MarketSession) IsOpen(t time.Time) bool {
	t = t.In(ms.Timezone)

	switch t.Weekday() {
	case time.Saturday:
		return false
	case time.Sunday:
		return t.Hour() >= 17
	case time.Friday:
		return t.Hour() < 17
	default:
		return true
	}
}

// -----------------------------------------------------------------------------

// IsThinLiquidity reports whether t falls on a major bank holiday, when
// spreads widen fleet-wide and manipulation flags are expected to be noisy.
func (ms *MarketSession) IsThinLiquidity(t time.Time) bool {
	if !ms.IsOpen(t) {
		return true
	}
	if ms.Fallback {
		return false
	}
	return !ms.Calendar.IsBusinessDay(t.In(ms.Timezone))
}
