// Package session derives the US equity market trading phase from a
// wall-clock instant. The phase drives both the quote waterfall ordering
// and batch pacing, so it is a pure function of the evaluation time:
// callers always pass the instant in, nothing here reads the clock.
package session

import (
	"time"
	_ "time/tzdata"
)

// State is the market trading phase at an instant.
type State int

const (
	Open State = iota
	Extended
	ClosedWeekend
	ClosedOvernight
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Extended:
		return "extended"
	case ClosedWeekend:
		return "closed-weekend"
	case ClosedOvernight:
		return "closed-overnight"
	}
	return "unknown"
}

// marketTZ is the exchange-local zone. tzdata is compiled in so stripped
// containers without /usr/share/zoneinfo still resolve it; if lookup fails
// anyway we fall back to fixed EST, which only shifts DST edge hours.
var marketTZ = loadMarketTZ()

func loadMarketTZ() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.FixedZone("EST", -5*3600)
	}
	return loc
}

// StateAt reports the trading phase at t.
// Regular session: weekdays 09:30-16:00 ET. Extended covers pre-market
// 04:00-09:30 and after-hours 16:00-20:00.
func StateAt(t time.Time) State {
	et := t.In(marketTZ)
	switch et.Weekday() {
	case time.Saturday, time.Sunday:
		return ClosedWeekend
	}

	mins := et.Hour()*60 + et.Minute()
	const (
		preOpen   = 4 * 60
		openBell  = 9*60 + 30
		closeBell = 16 * 60
		afterEnd  = 20 * 60
	)
	switch {
	case mins >= openBell && mins < closeBell:
		return Open
	case mins >= preOpen && mins < openBell:
		return Extended
	case mins >= closeBell && mins < afterEnd:
		return Extended
	default:
		return ClosedOvernight
	}
}

// Location returns the exchange-local zone, for callers that need to
// render timestamps the way the market sees them.
func Location() *time.Location { return marketTZ }
