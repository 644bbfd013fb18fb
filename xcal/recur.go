// Package xcal converts recurrence rules to and from the xCal <recur>
// element of RFC 6321.
package xcal

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/cyp0633/librecur/recurrence"
	"github.com/samber/mo"
)

// Namespace is the xCal namespace
const Namespace = "urn:ietf:params:xml:ns:icalendar-2.0"

// Element names inside <recur>, in the order RFC 6321 lists them
const (
	TagRecur      = "recur"
	TagFreq       = "freq"
	TagUntil      = "until"
	TagCount      = "count"
	TagInterval   = "interval"
	TagBySecond   = "bysecond"
	TagByMinute   = "byminute"
	TagByHour     = "byhour"
	TagByDay      = "byday"
	TagByMonthDay = "bymonthday"
	TagByYearDay  = "byyearday"
	TagByWeekNo   = "byweekno"
	TagByMonth    = "bymonth"
	TagBySetPos   = "bysetpos"
	TagWkst       = "wkst"
)

const (
	dateLayout     = "2006-01-02"
	utcLayout      = "2006-01-02T15:04:05Z"
	floatingLayout = "2006-01-02T15:04:05"
)

// EncodeRecur builds a <recur> element for r. Each list entry becomes its own
// child element, as RFC 6321 requires.
func EncodeRecur(r *recurrence.Rule) *etree.Element {
	elem := etree.NewElement(TagRecur)
	add := func(tag, text string) {
		elem.CreateElement(tag).SetText(text)
	}
	addInts := func(tag string, values []int) {
		for _, v := range values {
			add(tag, strconv.Itoa(v))
		}
	}

	add(TagFreq, r.Freq.String())
	if u, ok := r.Until.Get(); ok {
		add(TagUntil, formatUntil(u))
	}
	if n, ok := r.Count.Get(); ok {
		add(TagCount, strconv.Itoa(n))
	}
	if r.Interval > 1 {
		add(TagInterval, strconv.Itoa(r.Interval))
	}
	addInts(TagBySecond, r.BySecond)
	addInts(TagByMinute, r.ByMinute)
	addInts(TagByHour, r.ByHour)
	for _, wd := range r.ByDay {
		add(TagByDay, wd.String())
	}
	addInts(TagByMonthDay, r.ByMonthDay)
	addInts(TagByYearDay, r.ByYearDay)
	addInts(TagByWeekNo, r.ByWeekNo)
	addInts(TagByMonth, r.ByMonth)
	addInts(TagBySetPos, r.BySetPos)
	if r.WeekStart != recurrence.Monday {
		add(TagWkst, r.WeekStart.String())
	}
	for _, ext := range r.Extensions {
		add(strings.ToLower(ext.Name), ext.Value)
	}
	return elem
}

// DecodeRecur reads a <recur> element into a validated rule. Unknown x-
// elements are kept as extensions; any other unknown element is an error.
func DecodeRecur(elem *etree.Element) (*recurrence.Rule, error) {
	if elem == nil || elem.Tag != TagRecur {
		return nil, fmt.Errorf("%w: expected <%s> element", recurrence.ErrMalformedRule, TagRecur)
	}

	var r recurrence.Rule
	seenFreq := false
	for _, child := range elem.ChildElements() {
		text := strings.TrimSpace(child.Text())
		var err error
		switch child.Tag {
		case TagFreq:
			seenFreq = true
			r.Freq, err = recurrence.ParseFrequency(text)
		case TagUntil:
			var u recurrence.DateValue
			u, err = parseUntil(text)
			r.Until = mo.Some(u)
		case TagCount:
			var n int
			n, err = parseInt(child.Tag, text)
			r.Count = mo.Some(n)
		case TagInterval:
			r.Interval, err = parseInt(child.Tag, text)
		case TagBySecond:
			r.BySecond, err = appendInt(r.BySecond, child.Tag, text)
		case TagByMinute:
			r.ByMinute, err = appendInt(r.ByMinute, child.Tag, text)
		case TagByHour:
			r.ByHour, err = appendInt(r.ByHour, child.Tag, text)
		case TagByDay:
			var wd recurrence.WeekdayNum
			wd, err = parseWeekdayNum(text)
			r.ByDay = append(r.ByDay, wd)
		case TagByMonthDay:
			r.ByMonthDay, err = appendInt(r.ByMonthDay, child.Tag, text)
		case TagByYearDay:
			r.ByYearDay, err = appendInt(r.ByYearDay, child.Tag, text)
		case TagByWeekNo:
			r.ByWeekNo, err = appendInt(r.ByWeekNo, child.Tag, text)
		case TagByMonth:
			r.ByMonth, err = appendInt(r.ByMonth, child.Tag, text)
		case TagBySetPos:
			r.BySetPos, err = appendInt(r.BySetPos, child.Tag, text)
		case TagWkst:
			r.WeekStart, err = recurrence.ParseWeekday(text)
		default:
			if !strings.HasPrefix(strings.ToLower(child.Tag), "x-") {
				return nil, fmt.Errorf("%w: unknown element <%s>", recurrence.ErrMalformedRule, child.Tag)
			}
			r.Extensions = append(r.Extensions, recurrence.Extension{Name: strings.ToUpper(child.Tag), Value: text})
		}
		if err != nil {
			return nil, err
		}
	}
	if !seenFreq {
		return nil, fmt.Errorf("%w: missing <%s>", recurrence.ErrMalformedRule, TagFreq)
	}
	return recurrence.NewRule(r)
}

// ParseRecur reads an XML document whose root is a <recur> element.
func ParseRecur(data []byte) (*recurrence.Rule, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("%w: %v", recurrence.ErrMalformedRule, err)
	}
	return DecodeRecur(doc.Root())
}

// MarshalRecur writes r as a standalone <recur> document in the xCal
// namespace.
func MarshalRecur(r *recurrence.Rule) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := EncodeRecur(r)
	root.CreateAttr("xmlns", Namespace)
	doc.SetRoot(root)
	doc.Indent(2)
	return doc.WriteToBytes()
}

func formatUntil(u recurrence.DateValue) string {
	switch {
	case !u.HasTime():
		return u.Time().Format(dateLayout)
	case u.Zone().Kind == recurrence.ZoneFloating:
		return u.Time().Format(floatingLayout)
	default:
		return u.Time().UTC().Format(utcLayout)
	}
}

func parseUntil(text string) (recurrence.DateValue, error) {
	if t, err := time.Parse(dateLayout, text); err == nil {
		return recurrence.DateFromTime(t), nil
	}
	if t, err := time.Parse(utcLayout, text); err == nil {
		return recurrence.FromTime(t), nil
	}
	if t, err := time.Parse(floatingLayout, text); err == nil {
		return recurrence.FloatingFromTime(t), nil
	}
	return recurrence.DateValue{}, &recurrence.RuleError{Part: "UNTIL", Reason: fmt.Sprintf("invalid value %q", text)}
}

func parseInt(tag, text string) (int, error) {
	n, err := strconv.Atoi(text)
	if err != nil {
		return 0, &recurrence.RuleError{Part: strings.ToUpper(tag), Reason: fmt.Sprintf("invalid integer %q", text)}
	}
	return n, nil
}

func appendInt(values []int, tag, text string) ([]int, error) {
	n, err := parseInt(tag, text)
	if err != nil {
		return values, err
	}
	return append(values, n), nil
}

func parseWeekdayNum(text string) (recurrence.WeekdayNum, error) {
	if len(text) < 2 {
		return recurrence.WeekdayNum{}, &recurrence.RuleError{Part: "BYDAY", Reason: fmt.Sprintf("invalid value %q", text)}
	}
	day, err := recurrence.ParseWeekday(text[len(text)-2:])
	if err != nil {
		return recurrence.WeekdayNum{}, err
	}
	wd := recurrence.WeekdayNum{Day: day}
	if prefix := text[:len(text)-2]; prefix != "" {
		if wd.N, err = parseInt("byday", prefix); err != nil {
			return recurrence.WeekdayNum{}, err
		}
	}
	return wd, nil
}
