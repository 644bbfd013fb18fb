package recurrence

import (
	"slices"

	"github.com/samber/mo"

	"github.com/cyp0633/librecur/internal/calendar"
)

// Generator produces the occurrences of a single rule, ascending, starting
// from an anchor (the DTSTART of the component). It works one period at a
// time, where a period is one FREQ unit: a year for YEARLY, a week beginning
// on WKST for WEEKLY, an hour for HOURLY and so on.
//
// Candidates before the anchor are neither produced nor counted. The anchor
// itself is produced only when it matches the rule.
type Generator struct {
	rule   Rule
	anchor DateValue
	zone   Zone
	dated  bool

	stride int64 // period key units between visited periods
	first  int64 // period key of the anchor
	period int64 // next period to expand

	byMonth    []int
	byMonthDay []int
	byYearDay  []int
	byWeekNo   []int
	byDay      bool
	plainDays  [7]bool
	nthDays    []WeekdayNum

	hours, minutes, seconds []int
	times                   []clock

	anchorCmp int64
	until     mo.Option[int64]
	count     mo.Option[int]

	buf      []DateValue
	pos      int
	emitted  int
	emptyRun int
	emptyDay int64
	maxEmpty int
	done     bool
}

type clock struct{ hour, minute, second int }

// NewGenerator validates rule against anchor and returns a generator
// positioned before the first occurrence.
func NewGenerator(rule *Rule, anchor DateValue) (*Generator, error) {
	if rule == nil {
		return nil, ruleErr("RRULE", "missing rule")
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if anchor.IsZero() {
		return nil, ruleErr("DTSTART", "missing anchor")
	}

	g := &Generator{
		rule:      *rule,
		anchor:    anchor,
		zone:      anchor.Zone(),
		dated:     !anchor.HasTime(),
		anchorCmp: anchor.Comparable(),
		count:     rule.Count,
	}

	if g.dated {
		if rule.Freq < Daily {
			return nil, ruleErr("FREQ", "%s requires a date-time anchor", rule.Freq)
		}
		if len(rule.ByHour) > 0 || len(rule.ByMinute) > 0 || len(rule.BySecond) > 0 {
			return nil, ruleErr("BYHOUR", "time rule parts are not valid with a date-only anchor")
		}
	}

	g.setupDays()
	g.setupTimes()
	g.setupPeriods()
	if u, ok := rule.Until.Get(); ok {
		g.until = mo.Some(g.untilBound(u))
	}
	return g, nil
}

func (g *Generator) setupDays() {
	r := &g.rule
	g.byMonth = sortedUnique(r.ByMonth)
	g.byMonthDay = sortedUnique(r.ByMonthDay)
	g.byYearDay = sortedUnique(r.ByYearDay)
	g.byWeekNo = sortedUnique(r.ByWeekNo)

	anchorWeekday := Weekday(calendar.Weekday(g.anchor.dayNumber()))
	byDay := r.ByDay

	// Without any day-level rule part, the anchor supplies the natural field
	// of the frequency.
	if len(r.ByWeekNo) == 0 && len(r.ByYearDay) == 0 && len(r.ByMonthDay) == 0 && len(r.ByDay) == 0 {
		switch r.Freq {
		case Yearly:
			if len(g.byMonth) == 0 {
				g.byMonth = []int{g.anchor.month}
			}
			g.byMonthDay = []int{g.anchor.day}
		case Monthly:
			g.byMonthDay = []int{g.anchor.day}
		case Weekly:
			byDay = []WeekdayNum{{Day: anchorWeekday}}
		}
	}

	for _, wd := range byDay {
		g.byDay = true
		if wd.N != 0 && (r.Freq == Monthly || r.Freq == Yearly) {
			g.nthDays = append(g.nthDays, wd)
			continue
		}
		g.plainDays[wd.Day] = true
	}
}

func (g *Generator) setupTimes() {
	if g.dated {
		return
	}
	r := &g.rule
	g.hours = sortedUnique(r.ByHour)
	if len(g.hours) == 0 {
		g.hours = []int{g.anchor.hour}
	}
	g.minutes = sortedUnique(r.ByMinute)
	if len(g.minutes) == 0 {
		g.minutes = []int{g.anchor.minute}
	}
	g.seconds = sortedUnique(r.BySecond)
	if len(g.seconds) == 0 {
		g.seconds = []int{g.anchor.second}
	}
	if r.Freq >= Daily {
		g.times = crossTimes(g.hours, g.minutes, g.seconds)
	}
}

func (g *Generator) setupPeriods() {
	interval := int64(g.rule.interval())
	g.stride = interval
	switch g.rule.Freq {
	case Yearly:
		g.maxEmpty = 400 + 1
	case Monthly:
		g.maxEmpty = 400*12 + 1
	case Weekly:
		g.stride = 7 * interval
		g.maxEmpty = calendar.WeeksPer400Years + 1
	case Daily:
		g.maxEmpty = calendar.DaysPer400Years + 1
	}
	g.first = g.periodKey(g.anchor)
	g.period = g.first
	if g.rule.Freq < Daily {
		g.setupSubDailyLimit()
	}
}

// setupSubDailyLimit bounds the empty run of a sub-daily rule. Visited keys
// are first + k*stride, so the reachable times of day are exactly those
// congruent to first modulo gcd(stride, unitsPerDay), and each of them recurs
// every stride/gcd days. Day filters repeat with the Gregorian cycle, so a
// rule that stays empty for stride/gcd cycles never matches again.
func (g *Generator) setupSubDailyLimit() {
	perDay := g.unitsPerDay()
	step := gcd(g.stride, perDay)
	reachable := false
	for r := calendar.FloorMod(g.first, step); r < perDay; r += step {
		if g.timeAllowed(r) {
			reachable = true
			break
		}
	}
	if !reachable {
		g.done = true
		return
	}
	g.maxEmpty = int(calendar.DaysPer400Years*(g.stride/step)) + 1
}

// timeAllowed reports whether the time of day at offset r, in units of the
// rule's frequency, passes BYHOUR, BYMINUTE and BYSECOND.
func (g *Generator) timeAllowed(r int64) bool {
	rule := &g.rule
	switch rule.Freq {
	case Hourly:
		return allows(rule.ByHour, int(r))
	case Minutely:
		return allows(rule.ByHour, int(r/60)) && allows(rule.ByMinute, int(r%60))
	default:
		return allows(rule.ByHour, int(r/3600)) && allows(rule.ByMinute, int(r/60%60)) &&
			allows(rule.BySecond, int(r%60))
	}
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// untilBound returns the comparable of the last instant UNTIL admits, in the
// kind of value this generator produces.
func (g *Generator) untilBound(u DateValue) int64 {
	switch {
	case g.dated && u.HasTime():
		utc := u.utc()
		return DateValue{year: utc.year, month: utc.month, day: utc.day}.Comparable()
	case !g.dated && !u.HasTime():
		return DateValue{
			year: u.year, month: u.month, day: u.day,
			hour: 23, minute: 59, second: 59,
			hasTime: true,
			zone:    g.zone,
		}.Comparable()
	default:
		return u.Comparable()
	}
}

// unitsPerDay is the number of period key units in one day for sub-daily
// frequencies.
func (g *Generator) unitsPerDay() int64 {
	switch g.rule.Freq {
	case Hourly:
		return 24
	case Minutely:
		return 24 * 60
	case Secondly:
		return 24 * 60 * 60
	default:
		return 1
	}
}

// periodKey maps a wall-clock value to the key of the period containing it.
func (g *Generator) periodKey(v DateValue) int64 {
	day := v.dayNumber()
	switch g.rule.Freq {
	case Yearly:
		return int64(v.year)
	case Monthly:
		return int64(v.year)*12 + int64(v.month-1)
	case Weekly:
		return calendar.WeekStart(day, int(g.rule.WeekStart))
	case Daily:
		return day
	case Hourly:
		return day*24 + int64(v.hour)
	case Minutely:
		return (day*24+int64(v.hour))*60 + int64(v.minute)
	default:
		return ((day*24+int64(v.hour))*60+int64(v.minute))*60 + int64(v.second)
	}
}

// periodDays returns the first day number and day count of period p.
func (g *Generator) periodDays(p int64) (int64, int) {
	switch g.rule.Freq {
	case Yearly:
		return calendar.DayNumber(int(p), 1, 1), calendar.DaysInYear(int(p))
	case Monthly:
		y, m := int(calendar.FloorDiv(p, 12)), int(calendar.FloorMod(p, 12))+1
		return calendar.DayNumber(y, m, 1), calendar.DaysInMonth(y, m)
	case Weekly:
		return p, 7
	default:
		return calendar.FloorDiv(p, g.unitsPerDay()), 1
	}
}

func (g *Generator) periodYear(p int64) int {
	switch g.rule.Freq {
	case Yearly:
		return int(p)
	case Monthly:
		return int(calendar.FloorDiv(p, 12))
	}
	start, _ := g.periodDays(p)
	y, _, _ := calendar.FromDayNumber(start)
	return y
}

// HasNext reports whether another occurrence exists.
func (g *Generator) HasNext() bool {
	if n, ok := g.count.Get(); ok && g.emitted >= n {
		return false
	}
	return g.fill()
}

// Next returns the next occurrence or ErrExhausted.
func (g *Generator) Next() (DateValue, error) {
	if !g.HasNext() {
		return DateValue{}, ErrExhausted
	}
	v := g.buf[g.pos]
	g.pos++
	g.emitted++
	return v, nil
}

// AdvanceTo positions the generator so that the next occurrence is the first
// one at or after target. Whole periods are skipped arithmetically unless the
// rule has a COUNT, in which case every skipped occurrence must be counted.
func (g *Generator) AdvanceTo(target DateValue) {
	tc := target.Comparable()
	if tc <= g.anchorCmp {
		return
	}

	if g.count.IsPresent() {
		for g.HasNext() && g.buf[g.pos].Comparable() < tc {
			g.pos++
			g.emitted++
		}
		return
	}

	for g.pos < len(g.buf) && g.buf[g.pos].Comparable() < tc {
		g.pos++
	}
	if g.pos < len(g.buf) || g.done {
		return
	}

	if pt := g.periodKey(target.wallIn(g.zone)); pt > g.period {
		k := calendar.FloorDiv(pt-g.first, g.stride)
		if next := g.first + k*g.stride; next > g.period {
			g.period = next
			g.emptyRun = 0
		}
	}
	for g.fill() {
		if g.buf[g.pos].Comparable() >= tc {
			return
		}
		g.pos++
	}
}

// Remove always fails; generators are forward-only.
func (g *Generator) Remove() error { return ErrUnsupportedOperation }

// fill makes sure a buffered candidate is available, expanding periods as
// needed. It reports false once the rule is exhausted.
func (g *Generator) fill() bool {
	for g.pos >= len(g.buf) {
		if g.done {
			return false
		}
		g.expandPeriod()
	}
	return true
}

func (g *Generator) expandPeriod() {
	p := g.period
	if g.periodYear(p) > calendar.MaxYear {
		g.done = true
		g.buf, g.pos = nil, 0
		return
	}

	candidates, dayRejected := g.expand(p)
	g.advancePeriod(dayRejected)

	kept := candidates[:0]
	for _, c := range candidates {
		cc := c.Comparable()
		if cc < g.anchorCmp {
			continue
		}
		if u, ok := g.until.Get(); ok && cc > u {
			g.done = true
			break
		}
		kept = append(kept, c)
	}
	g.buf, g.pos = kept, 0

	if len(kept) > 0 {
		g.emptyRun = 0
		return
	}
	if g.maxEmpty == 0 {
		return
	}
	if g.rule.Freq < Daily {
		// Sub-daily runs are counted in days.
		day := calendar.FloorDiv(p, g.unitsPerDay())
		if g.emptyRun > 0 && day == g.emptyDay {
			return
		}
		g.emptyDay = day
	}
	g.emptyRun++
	if g.emptyRun >= g.maxEmpty {
		g.done = true
	}
}

// advancePeriod moves to the next visited period. When a sub-daily period was
// rejected at day level, every remaining period of that day is rejected too,
// so it jumps to the first visited period of a later day.
func (g *Generator) advancePeriod(dayRejected bool) {
	if !dayRejected {
		g.period += g.stride
		return
	}
	perDay := g.unitsPerDay()
	nextDay := (calendar.FloorDiv(g.period, perDay) + 1) * perDay
	k := -calendar.FloorDiv(g.first-nextDay, g.stride)
	g.period = g.first + k*g.stride
}

// expand returns the sorted candidates of period p after BYSETPOS.
func (g *Generator) expand(p int64) (candidates []DateValue, dayRejected bool) {
	start, n := g.periodDays(p)

	var nth map[int64]bool
	if len(g.nthDays) > 0 {
		nth = g.nthMatches(p)
	}

	var days []int64
	for d := start; d < start+int64(n); d++ {
		if g.dayMatches(d, nth) {
			days = append(days, d)
		}
	}
	if len(days) == 0 {
		return nil, g.rule.Freq < Daily
	}

	times := g.times
	if g.rule.Freq < Daily {
		times = g.subDailyTimes(p)
	}

	for _, d := range days {
		y, m, dd := calendar.FromDayNumber(d)
		if y > calendar.MaxYear {
			break
		}
		if g.dated {
			candidates = append(candidates, DateValue{year: y, month: m, day: dd})
			continue
		}
		for _, t := range times {
			candidates = append(candidates, DateValue{
				year: y, month: m, day: dd,
				hour: t.hour, minute: t.minute, second: t.second,
				hasTime: true,
				zone:    g.zone,
			})
		}
	}

	if len(g.rule.BySetPos) > 0 {
		candidates = selectPositions(candidates, g.rule.BySetPos)
	}
	return candidates, false
}

// subDailyTimes returns the times within sub-daily period p. The period's own
// unit is filtered by its BY part while finer units expand.
func (g *Generator) subDailyTimes(p int64) []clock {
	r := &g.rule
	switch r.Freq {
	case Hourly:
		h := int(calendar.FloorMod(p, 24))
		if !allows(r.ByHour, h) {
			return nil
		}
		return crossTimes([]int{h}, g.minutes, g.seconds)
	case Minutely:
		mod := int(calendar.FloorMod(p, 24*60))
		h, m := mod/60, mod%60
		if !allows(r.ByHour, h) || !allows(r.ByMinute, m) {
			return nil
		}
		return crossTimes([]int{h}, []int{m}, g.seconds)
	default:
		mod := int(calendar.FloorMod(p, 24*60*60))
		h, m, s := mod/3600, mod/60%60, mod%60
		if !allows(r.ByHour, h) || !allows(r.ByMinute, m) || !allows(r.BySecond, s) {
			return nil
		}
		return []clock{{h, m, s}}
	}
}

func (g *Generator) dayMatches(d int64, nth map[int64]bool) bool {
	y, m, dom := calendar.FromDayNumber(d)

	if len(g.byMonth) > 0 && !slices.Contains(g.byMonth, m) {
		return false
	}
	if len(g.byWeekNo) > 0 {
		wy, wn := calendar.WeekNumber(d, int(g.rule.WeekStart))
		neg := wn - calendar.WeeksInYear(wy, int(g.rule.WeekStart)) - 1
		if !slices.Contains(g.byWeekNo, wn) && !slices.Contains(g.byWeekNo, neg) {
			return false
		}
	}
	if len(g.byYearDay) > 0 {
		doy := int(d-calendar.DayNumber(y, 1, 1)) + 1
		neg := doy - calendar.DaysInYear(y) - 1
		if !slices.Contains(g.byYearDay, doy) && !slices.Contains(g.byYearDay, neg) {
			return false
		}
	}
	if len(g.byMonthDay) > 0 {
		neg := dom - calendar.DaysInMonth(y, m) - 1
		if !slices.Contains(g.byMonthDay, dom) && !slices.Contains(g.byMonthDay, neg) {
			return false
		}
	}
	if g.byDay && !g.plainDays[calendar.Weekday(d)] && !nth[d] {
		return false
	}
	return true
}

// nthMatches returns the days of period p picked by ordinal BYDAY entries.
// Ordinals count within the month for MONTHLY, and for YEARLY within each
// BYMONTH month if given, else within the year.
func (g *Generator) nthMatches(p int64) map[int64]bool {
	type span struct{ first, last int64 }
	var spans []span

	switch g.rule.Freq {
	case Monthly:
		start, n := g.periodDays(p)
		spans = append(spans, span{start, start + int64(n) - 1})
	case Yearly:
		year := int(p)
		if len(g.byMonth) > 0 {
			for _, m := range g.byMonth {
				start := calendar.DayNumber(year, m, 1)
				spans = append(spans, span{start, start + int64(calendar.DaysInMonth(year, m)) - 1})
			}
		} else {
			start := calendar.DayNumber(year, 1, 1)
			spans = append(spans, span{start, start + int64(calendar.DaysInYear(year)) - 1})
		}
	}

	matches := make(map[int64]bool)
	for _, s := range spans {
		for _, wd := range g.nthDays {
			var d int64
			if wd.N > 0 {
				d = s.first + int64(wd.N-1)*7
				d += calendar.FloorMod(int64(int(wd.Day)-calendar.Weekday(d)), 7)
			} else {
				d = s.last + int64(wd.N+1)*7
				d -= calendar.FloorMod(int64(calendar.Weekday(d)-int(wd.Day)), 7)
			}
			if d >= s.first && d <= s.last {
				matches[d] = true
			}
		}
	}
	return matches
}

// selectPositions keeps the BYSETPOS-selected members of a sorted period.
func selectPositions(candidates []DateValue, positions []int) []DateValue {
	n := len(candidates)
	keep := make([]bool, n)
	for _, pos := range positions {
		i := pos - 1
		if pos < 0 {
			i = n + pos
		}
		if i >= 0 && i < n {
			keep[i] = true
		}
	}
	out := candidates[:0]
	for i, c := range candidates {
		if keep[i] {
			out = append(out, c)
		}
	}
	return out
}

func crossTimes(hours, minutes, seconds []int) []clock {
	out := make([]clock, 0, len(hours)*len(minutes)*len(seconds))
	for _, h := range hours {
		for _, m := range minutes {
			for _, s := range seconds {
				out = append(out, clock{h, m, s})
			}
		}
	}
	return out
}

func allows(values []int, v int) bool {
	return len(values) == 0 || slices.Contains(values, v)
}

func sortedUnique(values []int) []int {
	if len(values) == 0 {
		return nil
	}
	out := slices.Clone(values)
	slices.Sort(out)
	return slices.Compact(out)
}
