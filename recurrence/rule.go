package recurrence

import (
	"fmt"
	"strings"

	"github.com/samber/mo"
)

// Frequency is the FREQ rule part. The set is closed; non-standard parts
// travel as Extensions on the Rule instead.
type Frequency int

const (
	Secondly Frequency = iota
	Minutely
	Hourly
	Daily
	Weekly
	Monthly
	Yearly
)

var frequencyNames = [...]string{"SECONDLY", "MINUTELY", "HOURLY", "DAILY", "WEEKLY", "MONTHLY", "YEARLY"}

func (f Frequency) String() string {
	if f < Secondly || f > Yearly {
		return fmt.Sprintf("Frequency(%d)", int(f))
	}
	return frequencyNames[f]
}

// ParseFrequency parses a FREQ value such as "WEEKLY".
func ParseFrequency(s string) (Frequency, error) {
	for i, name := range frequencyNames {
		if strings.EqualFold(s, name) {
			return Frequency(i), nil
		}
	}
	return 0, ruleErr("FREQ", "unknown frequency %q", s)
}

// Weekday is a day of the week, Monday=0 as in RFC 5545 ordering.
type Weekday int

const (
	Monday Weekday = iota
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"MO", "TU", "WE", "TH", "FR", "SA", "SU"}

func (d Weekday) String() string {
	if d < Monday || d > Sunday {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayNames[d]
}

// ParseWeekday parses a two-letter weekday such as "MO".
func ParseWeekday(s string) (Weekday, error) {
	for i, name := range weekdayNames {
		if strings.EqualFold(s, name) {
			return Weekday(i), nil
		}
	}
	return 0, ruleErr("BYDAY", "unknown weekday %q", s)
}

// WeekdayNum is one BYDAY entry: a weekday with an optional ordinal.
// N == 0 means every such weekday; N > 0 counts from the start of the month
// or year, N < 0 from its end.
type WeekdayNum struct {
	N   int
	Day Weekday
}

func (w WeekdayNum) String() string {
	if w.N == 0 {
		return w.Day.String()
	}
	return fmt.Sprintf("%d%s", w.N, w.Day)
}

// Extension is a non-standard rule part such as "X-NAME=value".
type Extension struct {
	Name  string
	Value string
}

// Rule is a parsed RRULE or EXRULE value. A Rule is never modified by this
// package and may be shared freely once validated.
type Rule struct {
	Freq      Frequency
	Interval  int // 0 means the default of 1
	Count     mo.Option[int]
	Until     mo.Option[DateValue]
	WeekStart Weekday

	BySecond   []int
	ByMinute   []int
	ByHour     []int
	ByDay      []WeekdayNum
	ByMonthDay []int
	ByYearDay  []int
	ByWeekNo   []int
	ByMonth    []int
	BySetPos   []int

	Extensions []Extension
}

// NewRule validates r and returns it.
func NewRule(r Rule) (*Rule, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// interval returns the effective INTERVAL.
func (r *Rule) interval() int {
	if r.Interval == 0 {
		return 1
	}
	return r.Interval
}

// Validate checks the rule on its own, without an anchor. Anchor-dependent
// checks run when a generator is built.
func (r *Rule) Validate() error {
	if r.Freq < Secondly || r.Freq > Yearly {
		return ruleErr("FREQ", "unknown frequency %d", int(r.Freq))
	}
	if r.Interval < 0 {
		return ruleErr("INTERVAL", "must be positive, got %d", r.Interval)
	}
	if r.Count.IsPresent() && r.Until.IsPresent() {
		return ruleErr("COUNT", "COUNT and UNTIL are mutually exclusive")
	}
	if n, ok := r.Count.Get(); ok && n < 1 {
		return ruleErr("COUNT", "must be positive, got %d", n)
	}
	if u, ok := r.Until.Get(); ok && u.IsZero() {
		return ruleErr("UNTIL", "empty date")
	}
	if r.WeekStart < Monday || r.WeekStart > Sunday {
		return ruleErr("WKST", "unknown weekday %d", int(r.WeekStart))
	}

	checks := []struct {
		part     string
		values   []int
		min, max int
		signed   bool
	}{
		{"BYSECOND", r.BySecond, 0, 59, false},
		{"BYMINUTE", r.ByMinute, 0, 59, false},
		{"BYHOUR", r.ByHour, 0, 23, false},
		{"BYMONTHDAY", r.ByMonthDay, 1, 31, true},
		{"BYYEARDAY", r.ByYearDay, 1, 366, true},
		{"BYWEEKNO", r.ByWeekNo, 1, 53, true},
		{"BYMONTH", r.ByMonth, 1, 12, false},
		{"BYSETPOS", r.BySetPos, 1, 366, true},
	}
	for _, c := range checks {
		for _, v := range c.values {
			abs := v
			if c.signed && v < 0 {
				abs = -v
			}
			if abs < c.min || abs > c.max {
				return ruleErr(c.part, "value %d out of range", v)
			}
		}
	}

	for _, wd := range r.ByDay {
		if wd.Day < Monday || wd.Day > Sunday {
			return ruleErr("BYDAY", "unknown weekday %d", int(wd.Day))
		}
		if wd.N < -53 || wd.N > 53 {
			return ruleErr("BYDAY", "ordinal %d out of range", wd.N)
		}
		if wd.N != 0 {
			if r.Freq != Monthly && r.Freq != Yearly {
				return ruleErr("BYDAY", "ordinal %s requires MONTHLY or YEARLY", wd)
			}
			if r.Freq == Yearly && len(r.ByWeekNo) > 0 {
				return ruleErr("BYDAY", "ordinal %s cannot be combined with BYWEEKNO", wd)
			}
		}
	}

	if len(r.ByWeekNo) > 0 && r.Freq != Yearly {
		return ruleErr("BYWEEKNO", "only valid with YEARLY, got %s", r.Freq)
	}
	if len(r.ByYearDay) > 0 && (r.Freq == Daily || r.Freq == Weekly || r.Freq == Monthly) {
		return ruleErr("BYYEARDAY", "not valid with %s", r.Freq)
	}
	if len(r.ByMonthDay) > 0 && r.Freq == Weekly {
		return ruleErr("BYMONTHDAY", "not valid with WEEKLY")
	}
	if len(r.BySetPos) > 0 && !r.hasByRule() {
		return ruleErr("BYSETPOS", "requires another BYxxx rule part")
	}
	return nil
}

func (r *Rule) hasByRule() bool {
	return len(r.BySecond) > 0 || len(r.ByMinute) > 0 || len(r.ByHour) > 0 ||
		len(r.ByDay) > 0 || len(r.ByMonthDay) > 0 || len(r.ByYearDay) > 0 ||
		len(r.ByWeekNo) > 0 || len(r.ByMonth) > 0
}

// Warnings lists parts that are accepted but not part of RFC 5545.
func (r *Rule) Warnings() []string {
	var warnings []string
	for _, ext := range r.Extensions {
		warnings = append(warnings, fmt.Sprintf("non-standard rule part %s is not allowed in the latest iCalendar specification", ext.Name))
	}
	return warnings
}
