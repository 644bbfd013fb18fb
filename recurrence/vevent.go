package recurrence

import (
	ics "github.com/arran4/golang-ical"
)

// FromVEvent is FromComponent for events parsed with arran4/golang-ical.
func FromVEvent(ve *ics.VEvent, opts ...DecodeOption) (*EventRecurrence, error) {
	return decodeRecurrence(func(name string) []property {
		var out []property
		for _, p := range ve.GetProperties(ics.ComponentProperty(name)) {
			out = append(out, property{value: p.Value, params: p.ICalParameters})
		}
		return out
	}, newDecodeOptions(opts))
}
