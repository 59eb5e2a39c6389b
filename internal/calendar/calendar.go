// Package calendar computes the non-business-day calendar used to constrain
// pickup schedules. All arithmetic is calendar-day granularity in a single
// fixed locale; no timezone conversion is performed.
package calendar

import (
	"sync"
	"time"
)

// HolidaySet is the set of holiday dates for one year, keyed by
// midnight-normalised dates.
type HolidaySet map[time.Time]struct{}

// Contains reports whether the date (any time of day) is in the set.
func (s HolidaySet) Contains(date time.Time) bool {
	_, ok := s[DateOnly(date)]
	return ok
}

// DateOnly truncates a timestamp to its calendar date.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Engine resolves business days against the national holiday calendar.
// Holiday sets are memoised per year behind the engine, never shared
// process-wide.
type Engine struct {
	mu    sync.Mutex
	cache map[int]HolidaySet
}

// NewEngine constructs an engine with an empty year cache.
func NewEngine() *Engine {
	return &Engine{cache: make(map[int]HolidaySet)}
}

// fixedHolidays are the nine fixed-date national holidays, recomputed for
// each requested year.
var fixedHolidays = []struct {
	month time.Month
	day   int
}{
	{time.January, 1},    // New Year's Day
	{time.April, 9},      // Araw ng Kagitingan
	{time.May, 1},        // Labor Day
	{time.June, 12},      // Independence Day
	{time.August, 21},    // Ninoy Aquino Day
	{time.November, 1},   // All Saints' Day
	{time.November, 30},  // Bonifacio Day
	{time.December, 25},  // Christmas Day
	{time.December, 30},  // Rizal Day
}

// chineseNewYearByYear covers the proclaimed special holiday for the bounded
// range of years the registrar publishes. Years outside the table are
// unknown, not absent.
var chineseNewYearByYear = map[int]struct {
	month time.Month
	day   int
}{
	2019: {time.February, 5},
	2020: {time.January, 25},
	2021: {time.February, 12},
	2022: {time.February, 1},
	2023: {time.January, 22},
	2024: {time.February, 10},
	2025: {time.January, 29},
	2026: {time.February, 17},
	2027: {time.February, 6},
	2028: {time.January, 26},
	2029: {time.February, 13},
	2030: {time.February, 3},
	2031: {time.January, 23},
	2032: {time.February, 11},
}

// ChineseNewYear returns the proclaimed Chinese New Year holiday for the
// year. The second result is false when the year is outside the published
// table.
func ChineseNewYear(year int) (time.Time, bool) {
	entry, ok := chineseNewYearByYear[year]
	if !ok {
		return time.Time{}, false
	}
	return time.Date(year, entry.month, entry.day, 0, 0, 0, 0, time.UTC), true
}

// HolidaySetFor returns the full holiday set for the given year: the nine
// fixed national holidays, the Chinese New Year lookup where known, and the
// four Holy Week dates anchored on Easter Sunday.
func (e *Engine) HolidaySetFor(year int) HolidaySet {
	e.mu.Lock()
	defer e.mu.Unlock()
	if set, ok := e.cache[year]; ok {
		return set
	}

	set := make(HolidaySet, len(fixedHolidays)+5)
	for _, h := range fixedHolidays {
		set[time.Date(year, h.month, h.day, 0, 0, 0, 0, time.UTC)] = struct{}{}
	}
	if cny, ok := ChineseNewYear(year); ok {
		set[cny] = struct{}{}
	}
	easter := EasterSunday(year)
	for offset := 0; offset <= 3; offset++ {
		set[easter.AddDate(0, 0, -offset)] = struct{}{}
	}

	e.cache[year] = set
	return set
}

// IsBusinessDay reports whether the date is neither a weekend day nor a
// holiday for its year.
func (e *Engine) IsBusinessDay(date time.Time) bool {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !e.HolidaySetFor(date.Year()).Contains(date)
}

// NextBusinessDay returns the first business day strictly after from.
func (e *Engine) NextBusinessDay(from time.Time) time.Time {
	day := DateOnly(from).AddDate(0, 0, 1)
	for !e.IsBusinessDay(day) {
		day = day.AddDate(0, 0, 1)
	}
	return day
}
