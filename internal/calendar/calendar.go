// Package calendar holds proleptic Gregorian arithmetic on day numbers.
//
// A day number counts days since 1970-01-01 (day 0). Weekdays are indexed
// Monday=0 through Sunday=6, the order used by RFC 5545 BYDAY and WKST.
package calendar

import "time"

const (
	// MinYear and MaxYear bound the years iCalendar can represent.
	MinYear = 1
	MaxYear = 9999

	// DaysPer400Years is the length of the Gregorian cycle.
	DaysPer400Years = 146097
	// WeeksPer400Years is DaysPer400Years / 7.
	WeeksPer400Years = 20871
)

// IsLeap reports whether year has a February 29th.
func IsLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// DaysInMonth returns the number of days of month (1-12) in year.
func DaysInMonth(year, month int) int {
	switch month {
	case 2:
		if IsLeap(year) {
			return 29
		}
		return 28
	case 4, 6, 9, 11:
		return 30
	default:
		return 31
	}
}

// DaysInYear returns 366 for leap years and 365 otherwise.
func DaysInYear(year int) int {
	if IsLeap(year) {
		return 366
	}
	return 365
}

// DayNumber returns the day number of the given date.
func DayNumber(year, month, day int) int64 {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).Unix() / secondsPerDay
}

// FromDayNumber is the inverse of DayNumber.
func FromDayNumber(n int64) (year, month, day int) {
	y, m, d := time.Unix(n*secondsPerDay, 0).UTC().Date()
	return y, int(m), d
}

// Weekday returns the weekday of day number n, Monday=0.
func Weekday(n int64) int {
	// 1970-01-01 was a Thursday.
	return int(FloorMod(n+3, 7))
}

// DayOfYear returns the 1-based ordinal of the date within its year.
func DayOfYear(year, month, day int) int {
	return int(DayNumber(year, month, day)-DayNumber(year, 1, 1)) + 1
}

// WeekStart returns the day number of the first day of the week containing
// day number n, for weeks beginning on weekStart.
func WeekStart(n int64, weekStart int) int64 {
	return n - FloorMod(int64(Weekday(n)-weekStart), 7)
}

// FirstWeekStart returns the day number on which week 1 of year begins.
// Week 1 is the first week with at least four days in the year, which is
// always the week containing January 4th.
func FirstWeekStart(year, weekStart int) int64 {
	return WeekStart(DayNumber(year, 1, 4), weekStart)
}

// WeeksInYear returns 52 or 53 depending on year and week start.
func WeeksInYear(year, weekStart int) int {
	return int((FirstWeekStart(year+1, weekStart) - FirstWeekStart(year, weekStart)) / 7)
}

// WeekNumber returns the week-numbering year and the 1-based week number of
// day number n. Days near a year boundary may belong to an adjacent year.
func WeekNumber(n int64, weekStart int) (weekYear, week int) {
	year, _, _ := FromDayNumber(n)
	switch {
	case n >= FirstWeekStart(year+1, weekStart):
		year++
	case n < FirstWeekStart(year, weekStart):
		year--
	}
	return year, int((n-FirstWeekStart(year, weekStart))/7) + 1
}

// FloorDiv divides rounding toward negative infinity.
func FloorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// FloorMod returns a modulo b with the sign of b.
func FloorMod(a, b int64) int64 {
	m := a % b
	if m != 0 && ((m < 0) != (b < 0)) {
		m += b
	}
	return m
}

const secondsPerDay = 24 * 60 * 60
