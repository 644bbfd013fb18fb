package calendar

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDaysInMonth(t *testing.T) {
	tests := []struct {
		name     string
		year     int
		month    int
		expected int
	}{
		{"January", 2023, 1, 31},
		{"April", 2023, 4, 30},
		{"February common year", 2023, 2, 28},
		{"February leap year", 2024, 2, 29},
		{"February century", 1900, 2, 28},
		{"February 400-year", 2000, 2, 29},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DaysInMonth(tt.year, tt.month))
		})
	}
}

func TestDayNumberRoundTrip(t *testing.T) {
	assert.Equal(t, int64(0), DayNumber(1970, 1, 1))
	assert.Equal(t, int64(-1), DayNumber(1969, 12, 31))

	for _, n := range []int64{-719162, -1, 0, 1, 19723, 2932896} {
		y, m, d := FromDayNumber(n)
		assert.Equal(t, n, DayNumber(y, m, d))
	}
}

func TestWeekday(t *testing.T) {
	// 2024-01-01 was a Monday, 1970-01-01 a Thursday.
	assert.Equal(t, 0, Weekday(DayNumber(2024, 1, 1)))
	assert.Equal(t, 3, Weekday(0))
	assert.Equal(t, 6, Weekday(DayNumber(2024, 1, 7)))
	assert.Equal(t, 2, Weekday(-1))
}

func TestDayOfYear(t *testing.T) {
	assert.Equal(t, 1, DayOfYear(2024, 1, 1))
	assert.Equal(t, 60, DayOfYear(2024, 2, 29))
	assert.Equal(t, 366, DayOfYear(2024, 12, 31))
	assert.Equal(t, 365, DayOfYear(2023, 12, 31))
}

func TestWeekNumber(t *testing.T) {
	tests := []struct {
		name      string
		y, m, d   int
		weekStart int
		weekYear  int
		week      int
	}{
		// ISO weeks (Monday start).
		{"2024 starts on Monday", 2024, 1, 1, 0, 2024, 1},
		{"2021-01-03 belongs to 2020", 2021, 1, 3, 0, 2020, 53},
		{"2019-12-30 belongs to 2020", 2019, 12, 30, 0, 2020, 1},
		{"mid year", 2024, 7, 4, 0, 2024, 27},
		// Sunday start shifts the boundary.
		{"2021-01-03 with Sunday start", 2021, 1, 3, 6, 2021, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wy, wn := WeekNumber(DayNumber(tt.y, tt.m, tt.d), tt.weekStart)
			assert.Equal(t, tt.weekYear, wy)
			assert.Equal(t, tt.week, wn)
		})
	}

	assert.Equal(t, 53, WeeksInYear(2020, 0))
	assert.Equal(t, 52, WeeksInYear(2021, 0))
}

func TestFloorDivMod(t *testing.T) {
	assert.Equal(t, int64(-1), FloorDiv(-1, 7))
	assert.Equal(t, int64(6), FloorMod(-1, 7))
	assert.Equal(t, int64(2), FloorDiv(14, 7))
	assert.Equal(t, int64(0), FloorMod(14, 7))
	assert.Equal(t, int64(-2), FloorDiv(-14, 7))
}
