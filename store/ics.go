package store

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-ical"
)

// ProductID is written to every VCALENDAR this package encodes.
const ProductID = "-//librecur//Recurrence Store//EN"

// EncodeComponent wraps comp in a VCALENDAR and returns its iCalendar text.
// A missing DTSTAMP is set to the current time.
func EncodeComponent(comp *ical.Component) (string, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)

	if comp.Props.Get(ical.PropDateTimeStamp) == nil {
		comp.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	}

	cal.Children = append(cal.Children, comp)

	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return "", fmt.Errorf("failed to encode calendar: %w", err)
	}
	return buf.String(), nil
}

// DecodeComponent parses iCalendar text holding exactly one VEVENT, VTODO or
// VJOURNAL. VTIMEZONE components are skipped.
func DecodeComponent(ics string) (*ical.Component, error) {
	cal, err := ical.NewDecoder(strings.NewReader(ics)).Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode calendar: %w", err)
	}

	var found *ical.Component
	for _, child := range cal.Children {
		switch child.Name {
		case ical.CompEvent, ical.CompToDo, ical.CompJournal:
			if found != nil {
				return nil, fmt.Errorf("multiple components found in calendar")
			}
			found = child
		}
	}
	if found == nil {
		return nil, fmt.Errorf("no event, todo or journal found in calendar")
	}
	return found, nil
}
