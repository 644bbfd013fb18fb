package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/samber/mo"
)

// ZoneResolver maps a TZID parameter to a location. Resolved date-times are
// pinned to the offset in effect at that instant, except values sharing the
// TZID of DTSTART, which take the offset DTSTART resolved to.
type ZoneResolver func(tzid string) (*time.Location, error)

type decodeOptions struct {
	resolve ZoneResolver

	// set once DTSTART is decoded
	anchorTZID string
	anchorZone Zone
}

// DecodeOption configures FromComponent and FromVEvent.
type DecodeOption func(*decodeOptions)

// WithZoneResolver replaces time.LoadLocation as the TZID resolver. A nil
// resolver reads every TZID-qualified value as floating.
func WithZoneResolver(resolve ZoneResolver) DecodeOption {
	return func(o *decodeOptions) { o.resolve = resolve }
}

func newDecodeOptions(opts []DecodeOption) decodeOptions {
	o := decodeOptions{resolve: time.LoadLocation}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// property is one raw property value with its parameters, independent of the
// iCalendar library it came from.
type property struct {
	value  string
	params map[string][]string
}

func (p property) param(name string) string {
	if vs := p.params[name]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// FromComponent extracts recurrence information from a VEVENT, VTODO or
// VJOURNAL. DTSTART is required. The occurrence length comes from DTEND,
// DURATION or DUE, in that order; a date-only start without any of them lasts
// one day.
func FromComponent(comp *ical.Component, opts ...DecodeOption) (*EventRecurrence, error) {
	return decodeRecurrence(func(name string) []property {
		var out []property
		for _, p := range comp.Props.Values(name) {
			out = append(out, property{value: p.Value, params: p.Params})
		}
		return out
	}, newDecodeOptions(opts))
}

func decodeRecurrence(get func(name string) []property, o decodeOptions) (*EventRecurrence, error) {
	starts := get(ical.PropDateTimeStart)
	if len(starts) == 0 {
		return nil, fmt.Errorf("%w: missing DTSTART", ErrInvalidProperty)
	}
	start, err := o.parseValue(starts[0].value, starts[0])
	if err != nil {
		return nil, fmt.Errorf("DTSTART: %w", err)
	}
	ev := &EventRecurrence{Start: start}

	if ev.Duration, err = o.duration(get, start); err != nil {
		return nil, err
	}

	// Rules produce every occurrence at the offset of DTSTART, so dates in
	// the same zone must use it too or they miss across a DST change.
	if tzid := starts[0].param("TZID"); tzid != "" && start.HasTime() {
		o.anchorTZID, o.anchorZone = tzid, start.Zone()
	}

	for _, p := range get(ical.PropRecurrenceRule) {
		r, err := ParseRule(p.value)
		if err != nil {
			return nil, fmt.Errorf("RRULE: %w", err)
		}
		ev.RRules = append(ev.RRules, r)
	}
	for _, p := range get("EXRULE") {
		r, err := ParseRule(p.value)
		if err != nil {
			return nil, fmt.Errorf("EXRULE: %w", err)
		}
		ev.ExRules = append(ev.ExRules, r)
	}

	for _, p := range get(ical.PropRecurrenceDates) {
		dates, err := o.parseList(p)
		if err != nil {
			return nil, fmt.Errorf("RDATE: %w", err)
		}
		ev.RDates = append(ev.RDates, dates...)
	}
	for _, p := range get(ical.PropExceptionDates) {
		dates, err := o.parseList(p)
		if err != nil {
			return nil, fmt.Errorf("EXDATE: %w", err)
		}
		ev.ExDates = append(ev.ExDates, dates...)
	}

	if ids := get("RECURRENCE-ID"); len(ids) > 0 {
		id, err := o.parseValue(ids[0].value, ids[0])
		if err != nil {
			return nil, fmt.Errorf("RECURRENCE-ID: %w", err)
		}
		ev.RecurrenceID = mo.Some(id)
	}

	return ev, nil
}

func (o decodeOptions) duration(get func(name string) []property, start DateValue) (time.Duration, error) {
	if ends := get(ical.PropDateTimeEnd); len(ends) > 0 {
		end, err := o.parseValue(ends[0].value, ends[0])
		if err != nil {
			return 0, fmt.Errorf("DTEND: %w", err)
		}
		d := end.Time().Sub(start.Time())
		// A date-only event ending on its own start date still lasts the day.
		if !start.HasTime() && d <= 0 {
			return 24 * time.Hour, nil
		}
		if d < 0 {
			return 0, fmt.Errorf("%w: DTEND %s before DTSTART %s", ErrInvalidProperty, end, start)
		}
		return d, nil
	}

	if durs := get(ical.PropDuration); len(durs) > 0 {
		prop := ical.NewProp(ical.PropDuration)
		prop.Value = strings.TrimSpace(durs[0].value)
		d, err := prop.Duration()
		if err != nil {
			return 0, fmt.Errorf("%w: DURATION %q: %v", ErrInvalidProperty, durs[0].value, err)
		}
		return d, nil
	}

	if dues := get(ical.PropDue); len(dues) > 0 {
		due, err := o.parseValue(dues[0].value, dues[0])
		if err != nil {
			return 0, fmt.Errorf("DUE: %w", err)
		}
		if d := due.Time().Sub(start.Time()); d > 0 {
			return d, nil
		}
		return 0, nil
	}

	if !start.HasTime() {
		return 24 * time.Hour, nil
	}
	return 0, nil
}

// parseList splits a comma separated RDATE or EXDATE value. PERIOD values
// contribute their start.
func (o decodeOptions) parseList(p property) ([]DateValue, error) {
	var out []DateValue
	for _, raw := range strings.Split(p.value, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if strings.EqualFold(p.param("VALUE"), "PERIOD") {
			raw, _, _ = strings.Cut(raw, "/")
		}
		v, err := o.parseValue(raw, p)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (o decodeOptions) parseValue(raw string, p property) (DateValue, error) {
	raw = strings.TrimSpace(raw)

	if strings.EqualFold(p.param("VALUE"), "DATE") || len(raw) == len("20060102") {
		t, err := time.Parse("20060102", raw)
		if err != nil {
			return DateValue{}, fmt.Errorf("%w: invalid date %q", ErrInvalidProperty, raw)
		}
		return DateFromTime(t), nil
	}

	if strings.HasSuffix(raw, "Z") {
		t, err := time.Parse("20060102T150405Z", raw)
		if err != nil {
			return DateValue{}, fmt.Errorf("%w: invalid date-time %q", ErrInvalidProperty, raw)
		}
		return FromTime(t), nil
	}

	tzid := p.param("TZID")
	if tzid != "" && tzid == o.anchorTZID {
		t, err := time.Parse("20060102T150405", raw)
		if err != nil {
			return DateValue{}, fmt.Errorf("%w: invalid date-time %q", ErrInvalidProperty, raw)
		}
		v := FloatingFromTime(t)
		v.zone = o.anchorZone
		return v, nil
	}
	if tzid != "" && o.resolve != nil {
		if loc, err := o.resolve(tzid); err == nil {
			t, err := time.ParseInLocation("20060102T150405", raw, loc)
			if err != nil {
				return DateValue{}, fmt.Errorf("%w: invalid date-time %q", ErrInvalidProperty, raw)
			}
			return FromTime(t), nil
		}
	}

	t, err := time.Parse("20060102T150405", raw)
	if err != nil {
		return DateValue{}, fmt.Errorf("%w: invalid date-time %q", ErrInvalidProperty, raw)
	}
	return FloatingFromTime(t), nil
}
