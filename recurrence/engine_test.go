package recurrence

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_HasOccurrenceInRange(t *testing.T) {
	engine := NewEngine()
	defer engine.Close()

	// Base event: daily meeting from 9-10 AM starting Jan 1, 2024
	master := func(rules string, extra func(*EventRecurrence)) *EventRecurrence {
		ev := &EventRecurrence{Start: utcAt(2024, 1, 1, 9, 0, 0), Duration: time.Hour}
		if rules != "" {
			ev.RRules = []*Rule{mustRule(t, rules)}
		}
		if extra != nil {
			extra(ev)
		}
		return ev
	}

	tests := []struct {
		name       string
		ev         *EventRecurrence
		rangeStart time.Time
		rangeEnd   time.Time
		expected   bool
	}{
		{
			name:       "Non-recurring event in range",
			ev:         master("", nil),
			rangeStart: time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
			rangeEnd:   time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			expected:   true,
		},
		{
			name:       "Non-recurring event out of range",
			ev:         master("", nil),
			rangeStart: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			rangeEnd:   time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
			expected:   false,
		},
		{
			name:       "Daily recurring event with occurrence in range",
			ev:         master("FREQ=DAILY;COUNT=7", nil),
			rangeStart: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
			rangeEnd:   time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
			expected:   true,
		},
		{
			name:       "Daily recurring event with no occurrence in range",
			ev:         master("FREQ=DAILY;COUNT=3", nil),
			rangeStart: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
			rangeEnd:   time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC),
			expected:   false,
		},
		{
			name:       "Range touching the end of an occurrence",
			ev:         master("FREQ=DAILY", nil),
			rangeStart: time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC),
			rangeEnd:   time.Date(2024, 1, 5, 11, 0, 0, 0, time.UTC),
			expected:   true,
		},
		{
			name:       "Range between occurrences",
			ev:         master("FREQ=DAILY", nil),
			rangeStart: time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC),
			rangeEnd:   time.Date(2024, 1, 6, 8, 30, 0, 0, time.UTC),
			expected:   false,
		},
		{
			name: "Only occurrence in range is excluded",
			ev: master("FREQ=WEEKLY", func(ev *EventRecurrence) {
				ev.ExDates = []DateValue{utcAt(2024, 1, 8, 9, 0, 0)}
			}),
			rangeStart: time.Date(2024, 1, 7, 0, 0, 0, 0, time.UTC),
			rangeEnd:   time.Date(2024, 1, 9, 0, 0, 0, 0, time.UTC),
			expected:   false,
		},
		{
			name: "RDATE within range",
			ev: master("", func(ev *EventRecurrence) {
				ev.RDates = []DateValue{utcAt(2024, 1, 15, 10, 0, 0)}
			}),
			rangeStart: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
			rangeEnd:   time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC),
			expected:   true,
		},
		{
			name:       "Open-ended rule decades later",
			ev:         master("FREQ=YEARLY;BYMONTH=6;BYDAY=1SU", nil),
			rangeStart: time.Date(2080, 6, 1, 0, 0, 0, 0, time.UTC),
			rangeEnd:   time.Date(2080, 6, 8, 0, 0, 0, 0, time.UTC),
			expected:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := engine.HasOccurrenceInRange(tt.ev, tt.rangeStart, tt.rangeEnd)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestEngine_Expand(t *testing.T) {
	engine := NewEngineWithoutCache()

	ev := &EventRecurrence{
		Start:    utcAt(2024, 1, 1, 9, 0, 0),
		Duration: time.Hour,
		RRules:   []*Rule{mustRule(t, "FREQ=DAILY")},
		ExDates:  []DateValue{utcAt(2024, 1, 3, 9, 0, 0)},
	}

	t.Run("occurrences in range", func(t *testing.T) {
		result, err := engine.Expand(ev,
			time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
			DefaultExpansionOptions)
		require.NoError(t, err)
		assert.False(t, result.Truncated)
		require.Len(t, result.Occurrences, 2)
		assert.Equal(t, time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), result.Occurrences[0].Start)
		assert.Equal(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), result.Occurrences[0].End)
		assert.Equal(t, time.Date(2024, 1, 4, 9, 0, 0, 0, time.UTC), result.Occurrences[1].Start)
		assert.False(t, result.Occurrences[0].IsException)
	})

	t.Run("range end is exclusive", func(t *testing.T) {
		result, err := engine.Expand(ev,
			time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 4, 9, 0, 0, 0, time.UTC),
			DefaultExpansionOptions)
		require.NoError(t, err)
		assert.Len(t, result.Occurrences, 1)
	})

	t.Run("occurrence cap", func(t *testing.T) {
		result, err := engine.Expand(ev,
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			ExpansionOptions{MaxOccurrences: 5})
		require.NoError(t, err)
		assert.True(t, result.Truncated)
		assert.Len(t, result.Occurrences, 5)
	})

	t.Run("time span cap", func(t *testing.T) {
		result, err := engine.Expand(ev,
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
			ExpansionOptions{MaxOccurrences: 100, MaxTimeSpan: 72 * time.Hour})
		require.NoError(t, err)
		assert.True(t, result.Truncated)
		assert.Len(t, result.Occurrences, 2) // Jan 1 and Jan 2; Jan 3 is excluded
	})

	t.Run("large range falls back to the engine limit", func(t *testing.T) {
		config := DisabledCacheConfig
		config.LargeRangeThreshold = 10 * 24 * time.Hour
		config.LargeRangeLimit = 7 * 24 * time.Hour
		limited := NewEngineWithConfig(config)

		result, err := limited.Expand(ev,
			time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			ExpansionOptions{})
		require.NoError(t, err)
		assert.True(t, result.Truncated)
		assert.Len(t, result.Occurrences, 6)
	})

	t.Run("override instance", func(t *testing.T) {
		override := &EventRecurrence{
			Start:        utcAt(2024, 1, 3, 15, 0, 0),
			Duration:     time.Hour,
			RecurrenceID: mo.Some(utcAt(2024, 1, 3, 9, 0, 0)),
		}
		result, err := engine.Expand(override,
			time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
			DefaultExpansionOptions)
		require.NoError(t, err)
		require.Len(t, result.Occurrences, 1)
		assert.True(t, result.Occurrences[0].IsException)
	})

	t.Run("date-only events", func(t *testing.T) {
		allDay := &EventRecurrence{
			Start:    MustDate(2024, 1, 1),
			Duration: 24 * time.Hour,
			RRules:   []*Rule{mustRule(t, "FREQ=WEEKLY;COUNT=4")},
		}
		result, err := engine.Expand(allDay,
			time.Date(2024, 1, 8, 12, 0, 0, 0, time.UTC),
			time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC),
			DefaultExpansionOptions)
		require.NoError(t, err)
		require.Len(t, result.Occurrences, 2)
		assert.Equal(t, "20240108", result.Occurrences[0].Value.String())
		assert.Equal(t, "20240115", result.Occurrences[1].Value.String())
	})
}

func TestEngine_NextOccurrenceAndOccursOn(t *testing.T) {
	engine := NewEngineWithoutCache()
	ev := &EventRecurrence{
		Start:  utcAt(2024, 1, 1, 9, 0, 0),
		RRules: []*Rule{mustRule(t, "FREQ=MONTHLY;BYDAY=2TU")},
	}

	next, err := engine.NextOccurrence(ev, time.Date(2024, 1, 9, 9, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	v, ok := next.Get()
	require.True(t, ok)
	assert.Equal(t, "20240213T090000Z", v.String())

	bounded := &EventRecurrence{Start: utcAt(2024, 1, 1, 9, 0, 0), RRules: []*Rule{mustRule(t, "FREQ=DAILY;COUNT=2")}}
	next, err = engine.NextOccurrence(bounded, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, next.IsAbsent())

	on, err := engine.OccursOn(ev, utcAt(2024, 3, 12, 9, 0, 0))
	require.NoError(t, err)
	assert.True(t, on)

	on, err = engine.OccursOn(ev, utcAt(2024, 3, 13, 9, 0, 0))
	require.NoError(t, err)
	assert.False(t, on)
}

func TestEngine_OccursOnNegativeOffset(t *testing.T) {
	engine := NewEngineWithoutCache()
	eastern := FixedOffset(-5 * 60)
	ev := &EventRecurrence{
		Start:  MustDateTime(2024, 3, 1, 22, 0, 0, eastern),
		RRules: []*Rule{mustRule(t, "FREQ=DAILY")},
	}

	tests := []struct {
		name   string
		target DateValue
		want   bool
	}{
		{"same offset", MustDateTime(2024, 3, 4, 22, 0, 0, eastern), true},
		{"utc instant", utcAt(2024, 3, 5, 3, 0, 0), true},
		{"floating read as utc", MustDateTime(2024, 3, 5, 3, 0, 0, Floating), true},
		{"off by an hour", utcAt(2024, 3, 5, 4, 0, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			on, err := engine.OccursOn(ev, tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, on)
		})
	}
}

func TestEngine_ExpandCacheIsolation(t *testing.T) {
	engine := NewEngine()
	defer engine.Close()

	ev := &EventRecurrence{
		Start:    utcAt(2024, 1, 1, 9, 0, 0),
		Duration: time.Hour,
		RRules:   []*Rule{mustRule(t, "FREQ=DAILY;COUNT=3")},
	}
	rangeStart := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rangeEnd := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	first, err := engine.Expand(ev, rangeStart, rangeEnd, DefaultExpansionOptions)
	require.NoError(t, err)
	require.Len(t, first.Occurrences, 3)
	first.Occurrences[0].Start = time.Time{}

	second, err := engine.Expand(ev, rangeStart, rangeEnd, DefaultExpansionOptions)
	require.NoError(t, err)
	require.Len(t, second.Occurrences, 3)
	assert.Equal(t, rangeStart.Add(9*time.Hour), second.Occurrences[0].Start)
	second.Occurrences[1].Start = time.Time{}

	third, err := engine.Expand(ev, rangeStart, rangeEnd, DefaultExpansionOptions)
	require.NoError(t, err)
	assert.Equal(t, rangeStart.Add(33*time.Hour), third.Occurrences[1].Start)
}

func TestEngine_InvalidRecurrence(t *testing.T) {
	engine := NewEngine()
	defer engine.Close()

	ev := &EventRecurrence{Start: MustDate(2024, 1, 1), RRules: []*Rule{mustRule(t, "FREQ=MINUTELY")}}
	_, err := engine.HasOccurrenceInRange(ev, time.Now(), time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, ErrMalformedRule)

	_, err = engine.Expand(ev, time.Now(), time.Now().Add(time.Hour), DefaultExpansionOptions)
	assert.ErrorIs(t, err, ErrMalformedRule)

	_, err = engine.NextOccurrence(ev, time.Now())
	assert.ErrorIs(t, err, ErrMalformedRule)
}

func TestEngine_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	engine := NewEngine(WithLogger(logger))
	defer engine.Close()

	ev := &EventRecurrence{Start: utcAt(2024, 1, 1, 9, 0, 0), RRules: []*Rule{mustRule(t, "FREQ=DAILY")}}
	rangeStart := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rangeEnd := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	_, err := engine.Expand(ev, rangeStart, rangeEnd, ExpansionOptions{MaxOccurrences: 3})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "recurrence expansion truncated")

	_, err = engine.Expand(ev, rangeStart, rangeEnd, ExpansionOptions{MaxOccurrences: 3})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "recurrence cache hit")
}

func TestEngineConfiguration_LogicalCorrectness(t *testing.T) {
	configs := []struct {
		name   string
		config EngineConfig
	}{
		{"Default", DefaultEngineConfig},
		{"HighPerformance", HighPerformanceConfig},
		{"LowMemory", LowMemoryConfig},
		{"DisabledCache", DisabledCacheConfig},
	}

	ev := &EventRecurrence{
		Start:    utcAt(2024, 1, 1, 10, 0, 0),
		Duration: time.Hour,
		RRules:   []*Rule{mustRule(t, "FREQ=WEEKLY;BYDAY=MO,WE,FR;COUNT=20")},
	}
	rangeStart := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rangeEnd := time.Date(2024, 3, 31, 23, 59, 59, 0, time.UTC)

	for _, c := range configs {
		t.Run(c.name, func(t *testing.T) {
			engine := NewEngineWithConfig(c.config)
			defer engine.Close()

			for i := 0; i < 2; i++ {
				has, err := engine.HasOccurrenceInRange(ev, rangeStart, rangeEnd)
				require.NoError(t, err)
				assert.True(t, has)

				result, err := engine.Expand(ev, rangeStart, rangeEnd, DefaultExpansionOptions)
				require.NoError(t, err)
				assert.Len(t, result.Occurrences, 20)
			}
		})
	}
}
