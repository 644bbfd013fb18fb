package recurrence

import (
	"fmt"
	"time"

	"github.com/cyp0633/librecur/internal/calendar"
)

// ZoneKind tells how a date-time relates to UTC.
type ZoneKind int

const (
	ZoneUTC      ZoneKind = iota // Absolute instant in UTC
	ZoneFixed                    // Absolute instant with a fixed UTC offset
	ZoneFloating                 // Local wall-clock time, not bound to any offset
)

// Zone is the already-resolved zone of a date-time value. Time-zone database
// lookups happen before a value reaches this package.
type Zone struct {
	Kind ZoneKind
	// OffsetMinutes is east of UTC and only meaningful for ZoneFixed.
	OffsetMinutes int
}

var (
	// UTC is the zone of values ending in "Z".
	UTC = Zone{Kind: ZoneUTC}
	// Floating is the zone of local times without TZID.
	Floating = Zone{Kind: ZoneFloating}
)

// FixedOffset returns a zone with the given offset east of UTC.
func FixedOffset(minutes int) Zone {
	if minutes == 0 {
		return UTC
	}
	return Zone{Kind: ZoneFixed, OffsetMinutes: minutes}
}

func (z Zone) offset() time.Duration {
	if z.Kind == ZoneFixed {
		return time.Duration(z.OffsetMinutes) * time.Minute
	}
	return 0
}

// DateValue is either a pure date or a date-time with a zone. Values are
// immutable; the zero value is not a valid date.
type DateValue struct {
	year, month, day     int
	hour, minute, second int
	hasTime              bool
	zone                 Zone
}

// NewDate returns a date-only value.
func NewDate(year, month, day int) (DateValue, error) {
	if err := checkDate(year, month, day); err != nil {
		return DateValue{}, err
	}
	return DateValue{year: year, month: month, day: day}, nil
}

// NewDateTime returns a date-time value in zone.
func NewDateTime(year, month, day, hour, minute, second int, zone Zone) (DateValue, error) {
	if err := checkDate(year, month, day); err != nil {
		return DateValue{}, err
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return DateValue{}, fmt.Errorf("invalid time %02d:%02d:%02d", hour, minute, second)
	}
	if zone.Kind == ZoneFixed && (zone.OffsetMinutes <= -24*60 || zone.OffsetMinutes >= 24*60) {
		return DateValue{}, fmt.Errorf("invalid UTC offset %d minutes", zone.OffsetMinutes)
	}
	return DateValue{
		year: year, month: month, day: day,
		hour: hour, minute: minute, second: second,
		hasTime: true,
		zone:    zone,
	}, nil
}

// MustDate is like NewDate but panics on invalid input.
func MustDate(year, month, day int) DateValue {
	v, err := NewDate(year, month, day)
	if err != nil {
		panic(err)
	}
	return v
}

// MustDateTime is like NewDateTime but panics on invalid input.
func MustDateTime(year, month, day, hour, minute, second int, zone Zone) DateValue {
	v, err := NewDateTime(year, month, day, hour, minute, second, zone)
	if err != nil {
		panic(err)
	}
	return v
}

// FromTime converts t to a date-time keeping its wall clock and offset.
// Locations with daylight saving time are pinned to the offset in effect at t.
func FromTime(t time.Time) DateValue {
	_, offset := t.Zone()
	zone := FixedOffset(offset / 60)
	return DateValue{
		year: t.Year(), month: int(t.Month()), day: t.Day(),
		hour: t.Hour(), minute: t.Minute(), second: t.Second(),
		hasTime: true,
		zone:    zone,
	}
}

// FloatingFromTime converts the wall clock of t to a floating date-time.
func FloatingFromTime(t time.Time) DateValue {
	v := FromTime(t)
	v.zone = Floating
	return v
}

// DateFromTime returns the calendar date of t's wall clock.
func DateFromTime(t time.Time) DateValue {
	return DateValue{year: t.Year(), month: int(t.Month()), day: t.Day()}
}

func checkDate(year, month, day int) error {
	if year < calendar.MinYear || year > calendar.MaxYear {
		return fmt.Errorf("invalid year %d", year)
	}
	if month < 1 || month > 12 {
		return fmt.Errorf("invalid month %d", month)
	}
	if day < 1 || day > calendar.DaysInMonth(year, month) {
		return fmt.Errorf("invalid day %d for %04d-%02d", day, year, month)
	}
	return nil
}

func (v DateValue) Year() int   { return v.year }
func (v DateValue) Month() int  { return v.month }
func (v DateValue) Day() int    { return v.day }
func (v DateValue) Hour() int   { return v.hour }
func (v DateValue) Minute() int { return v.minute }
func (v DateValue) Second() int { return v.second }

// HasTime reports whether v is a date-time rather than a pure date.
func (v DateValue) HasTime() bool { return v.hasTime }

// Zone returns the zone of a date-time. Pure dates report Floating.
func (v DateValue) Zone() Zone {
	if !v.hasTime {
		return Floating
	}
	return v.zone
}

// IsZero reports whether v is the zero value.
func (v DateValue) IsZero() bool { return v.year == 0 }

// Time returns v as a time.Time. Pure dates become midnight UTC, matching how
// VALUE=DATE properties are stored elsewhere; floating times are read as UTC.
func (v DateValue) Time() time.Time {
	switch {
	case !v.hasTime:
		return time.Date(v.year, time.Month(v.month), v.day, 0, 0, 0, 0, time.UTC)
	case v.zone.Kind == ZoneFixed:
		loc := time.FixedZone("", v.zone.OffsetMinutes*60)
		return time.Date(v.year, time.Month(v.month), v.day, v.hour, v.minute, v.second, 0, loc)
	default:
		return time.Date(v.year, time.Month(v.month), v.day, v.hour, v.minute, v.second, 0, time.UTC)
	}
}

// TimeIn returns v as a time.Time, reading pure dates and floating times as
// wall clock in loc.
func (v DateValue) TimeIn(loc *time.Location) time.Time {
	if v.hasTime && v.zone.Kind != ZoneFloating {
		return v.Time().In(loc)
	}
	return time.Date(v.year, time.Month(v.month), v.day, v.hour, v.minute, v.second, 0, loc)
}

// utc returns v's fields normalized to UTC.
func (v DateValue) utc() DateValue {
	if !v.hasTime || v.zone.Kind != ZoneFixed {
		return v
	}
	t := time.Date(v.year, time.Month(v.month), v.day, v.hour, v.minute, v.second, 0, time.UTC).Add(-v.zone.offset())
	return DateValue{
		year: t.Year(), month: int(t.Month()), day: t.Day(),
		hour: t.Hour(), minute: t.Minute(), second: t.Second(),
		hasTime: true,
		zone:    UTC,
	}
}

// wallIn returns the wall-clock fields of v in zone. Pure dates and floating
// values are read as UTC, matching Comparable, so a date becomes its midnight
// UTC instant. Only fixed zones shift the fields.
func (v DateValue) wallIn(zone Zone) DateValue {
	u := v.utc()
	if zone.Kind != ZoneFixed {
		return u
	}
	t := time.Date(u.year, time.Month(u.month), u.day, u.hour, u.minute, u.second, 0, time.UTC).Add(zone.offset())
	return DateValue{
		year: t.Year(), month: int(t.Month()), day: t.Day(),
		hour: t.Hour(), minute: t.Minute(), second: t.Second(),
		hasTime: true,
		zone:    zone,
	}
}

// Comparable returns the ordinal used to order and compare values of mixed
// kinds. It is computed on the UTC-normalized value; a pure date orders as
// midnight but stays distinct from, and just before, a date-time at 00:00:00.
func (v DateValue) Comparable() int64 {
	u := v.utc()
	c := ((int64(u.year)<<4)+int64(u.month))<<5 + int64(u.day)
	if !u.hasTime {
		return c << 17
	}
	return ((((c<<5)+int64(u.hour))<<6+int64(u.minute))<<6 + int64(u.second)) + 1
}

// Compare returns -1, 0 or +1 comparing v and o by Comparable.
func (v DateValue) Compare(o DateValue) int {
	a, b := v.Comparable(), o.Comparable()
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Before reports whether v orders before o.
func (v DateValue) Before(o DateValue) bool { return v.Comparable() < o.Comparable() }

// After reports whether v orders after o.
func (v DateValue) After(o DateValue) bool { return v.Comparable() > o.Comparable() }

// Equal reports whether v and o denote the same instant and kind.
func (v DateValue) Equal(o DateValue) bool { return v.Comparable() == o.Comparable() }

// dayNumber returns the day number of v's own calendar fields.
func (v DateValue) dayNumber() int64 {
	return calendar.DayNumber(v.year, v.month, v.day)
}

// String formats v in iCalendar basic format, with fixed offsets appended as
// ±hhmm.
func (v DateValue) String() string {
	date := fmt.Sprintf("%04d%02d%02d", v.year, v.month, v.day)
	if !v.hasTime {
		return date
	}
	s := fmt.Sprintf("%sT%02d%02d%02d", date, v.hour, v.minute, v.second)
	switch v.zone.Kind {
	case ZoneUTC:
		return s + "Z"
	case ZoneFixed:
		off := v.zone.OffsetMinutes
		sign := '+'
		if off < 0 {
			sign = '-'
			off = -off
		}
		return fmt.Sprintf("%s%c%02d%02d", s, sign, off/60, off%60)
	default:
		return s
	}
}
