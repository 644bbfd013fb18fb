package recurrence

import (
	"strings"
	"time"

	"github.com/samber/mo"
	"github.com/teambition/rrule-go"
)

var toRRuleFreq = map[Frequency]rrule.Frequency{
	Secondly: rrule.SECONDLY,
	Minutely: rrule.MINUTELY,
	Hourly:   rrule.HOURLY,
	Daily:    rrule.DAILY,
	Weekly:   rrule.WEEKLY,
	Monthly:  rrule.MONTHLY,
	Yearly:   rrule.YEARLY,
}

var rruleWeekdays = [...]rrule.Weekday{rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU}

// ParseRule parses an RRULE or EXRULE value such as
// "FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE". A leading "RRULE:" or "EXRULE:" is
// accepted. The returned rule is validated.
func ParseRule(s string) (*Rule, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ':'); i >= 0 {
		switch strings.ToUpper(s[:i]) {
		case "RRULE", "EXRULE":
			s = s[i+1:]
		}
	}

	var (
		standard   []string
		extensions []Extension
		untilRaw   string
		hasCount   bool
	)
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, ruleErr("RRULE", "part %q has no value", part)
		}
		key = strings.ToUpper(key)
		switch {
		case strings.HasPrefix(key, "X-"), key == "BYEASTER":
			extensions = append(extensions, Extension{Name: key, Value: value})
			continue
		case key == "UNTIL":
			untilRaw = value
		case key == "COUNT":
			hasCount = true
		}
		standard = append(standard, key+"="+value)
	}

	opt, err := rrule.StrToROption(strings.Join(standard, ";"))
	if err != nil {
		return nil, ruleErr("RRULE", "%v", err)
	}

	freq := Yearly
	for f, rf := range toRRuleFreq {
		if rf == opt.Freq {
			freq = f
		}
	}

	r := Rule{
		Freq:       freq,
		Interval:   opt.Interval,
		WeekStart:  Weekday(opt.Wkst.Day()),
		BySecond:   opt.Bysecond,
		ByMinute:   opt.Byminute,
		ByHour:     opt.Byhour,
		ByMonthDay: opt.Bymonthday,
		ByYearDay:  opt.Byyearday,
		ByWeekNo:   opt.Byweekno,
		ByMonth:    opt.Bymonth,
		BySetPos:   opt.Bysetpos,
		Extensions: extensions,
	}
	if hasCount {
		r.Count = mo.Some(opt.Count)
	}
	if untilRaw != "" {
		until, err := parseUntil(untilRaw)
		if err != nil {
			return nil, err
		}
		r.Until = mo.Some(until)
	}
	for i := range opt.Byweekday {
		wd := opt.Byweekday[i]
		r.ByDay = append(r.ByDay, WeekdayNum{N: wd.N(), Day: Weekday(wd.Day())})
	}

	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func parseUntil(value string) (DateValue, error) {
	value = strings.TrimSpace(value)
	if len(value) == 8 {
		t, err := time.Parse("20060102", value)
		if err != nil {
			return DateValue{}, ruleErr("UNTIL", "invalid date %q", value)
		}
		return DateFromTime(t), nil
	}
	if strings.HasSuffix(value, "Z") {
		t, err := time.Parse("20060102T150405Z", value)
		if err != nil {
			return DateValue{}, ruleErr("UNTIL", "invalid date-time %q", value)
		}
		return FromTime(t), nil
	}
	t, err := time.Parse("20060102T150405", value)
	if err != nil {
		return DateValue{}, ruleErr("UNTIL", "invalid date-time %q", value)
	}
	return FloatingFromTime(t), nil
}

// String formats the rule as an RRULE value without the "RRULE:" prefix.
func (r *Rule) String() string {
	opt := rrule.ROption{
		Freq:       toRRuleFreq[r.Freq],
		Interval:   r.Interval,
		Wkst:       rruleWeekdays[r.WeekStart],
		Bysecond:   r.BySecond,
		Byminute:   r.ByMinute,
		Byhour:     r.ByHour,
		Bymonthday: r.ByMonthDay,
		Byyearday:  r.ByYearDay,
		Byweekno:   r.ByWeekNo,
		Bymonth:    r.ByMonth,
		Bysetpos:   r.BySetPos,
	}
	if n, ok := r.Count.Get(); ok {
		opt.Count = n
	}
	for _, wd := range r.ByDay {
		opt.Byweekday = append(opt.Byweekday, rruleWeekdays[wd.Day].Nth(wd.N))
	}

	var b strings.Builder
	b.WriteString(opt.RRuleString())
	if until, ok := r.Until.Get(); ok {
		b.WriteString(";UNTIL=")
		b.WriteString(until.utc().String())
	}
	for _, ext := range r.Extensions {
		b.WriteString(";" + ext.Name + "=" + ext.Value)
	}
	return b.String()
}
