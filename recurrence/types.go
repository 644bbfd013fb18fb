package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/mo"
)

// EventRecurrence contains all recurrence-related information for one
// calendar component.
type EventRecurrence struct {
	Start        DateValue     // DTSTART, the anchor of every rule
	Duration     time.Duration // Length of each occurrence
	RRules       []*Rule
	ExRules      []*Rule
	RDates       []DateValue // Additional recurrence dates
	ExDates      []DateValue // Exception dates (excluded occurrences)
	RecurrenceID mo.Option[DateValue] // For override instances - which occurrence this replaces
}

// IsRecurring reports whether the component produces more than its start.
func (e *EventRecurrence) IsRecurring() bool {
	return len(e.RRules) > 0 || len(e.RDates) > 0
}

// Iterator builds the occurrence stream of the component. The start is the
// first instance and is produced even when no rule matches it, unless an
// EXDATE or EXRULE removes it.
func (e *EventRecurrence) Iterator() (*CompoundIterator, error) {
	if e.Start.IsZero() {
		return nil, ruleErr("DTSTART", "missing anchor")
	}

	inclusions := []Iterator{NewListIterator(append([]DateValue{e.Start}, e.RDates...)...)}
	for i, r := range e.RRules {
		g, err := NewGenerator(r, e.Start)
		if err != nil {
			return nil, fmt.Errorf("RRULE %d: %w", i, err)
		}
		inclusions = append(inclusions, g)
	}

	var exclusions []Iterator
	if len(e.ExDates) > 0 {
		exclusions = append(exclusions, NewListIterator(e.ExDates...))
	}
	for i, r := range e.ExRules {
		g, err := NewGenerator(r, e.Start)
		if err != nil {
			return nil, fmt.Errorf("EXRULE %d: %w", i, err)
		}
		exclusions = append(exclusions, g)
	}

	return NewCompoundIterator(inclusions, exclusions), nil
}

// Warnings lists problems that do not prevent iteration.
func (e *EventRecurrence) Warnings() []string {
	var warnings []string
	if len(e.RRules) > 1 {
		warnings = append(warnings, fmt.Sprintf("%d RRULE properties found, at most one is recommended", len(e.RRules)))
	}
	if len(e.ExRules) > 0 {
		warnings = append(warnings, "EXRULE is deprecated in the latest iCalendar specification")
	}
	for _, r := range e.RRules {
		warnings = append(warnings, r.Warnings()...)
	}
	for _, r := range e.ExRules {
		warnings = append(warnings, r.Warnings()...)
	}
	return warnings
}

// canonical returns a stable text form of e, used for cache keys.
func (e *EventRecurrence) canonical() string {
	var b strings.Builder
	fmt.Fprintf(&b, "DTSTART:%s\nDURATION:%s\n", e.Start, e.Duration)
	for _, r := range e.RRules {
		b.WriteString("RRULE:" + r.String() + "\n")
	}
	for _, r := range e.ExRules {
		b.WriteString("EXRULE:" + r.String() + "\n")
	}
	writeDates(&b, "RDATE", e.RDates)
	writeDates(&b, "EXDATE", e.ExDates)
	if id, ok := e.RecurrenceID.Get(); ok {
		b.WriteString("RECURRENCE-ID:" + id.String() + "\n")
	}
	return b.String()
}

func writeDates(b *strings.Builder, name string, dates []DateValue) {
	if len(dates) == 0 {
		return
	}
	parts := make([]string, len(dates))
	for i, d := range dates {
		parts[i] = d.String()
	}
	b.WriteString(name + ":" + strings.Join(parts, ",") + "\n")
}

// TimeOccurrence represents a single occurrence of an event in time
type TimeOccurrence struct {
	Value       DateValue // The occurrence as produced by the iterator
	Start       time.Time // Start time of this occurrence
	End         time.Time // End time of this occurrence
	IsException bool      // True if this is an override instance
}

// ExpansionOptions controls how recurrence expansion behaves
type ExpansionOptions struct {
	MaxOccurrences int           // Maximum number of occurrences to expand (0 = engine default)
	MaxTimeSpan    time.Duration // Maximum time span to expand (0 = unlimited)
}

// DefaultExpansionOptions provides sensible defaults for expansion
var DefaultExpansionOptions = ExpansionOptions{
	MaxOccurrences: 1000,                     // Reasonable limit to prevent infinite expansion
	MaxTimeSpan:    365 * 24 * time.Hour * 2, // 2 years
}

// ExpansionResult is the outcome of Engine.Expand.
type ExpansionResult struct {
	Occurrences []TimeOccurrence
	Truncated   bool // More occurrences exist in the range than were returned
}
