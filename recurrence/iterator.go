package recurrence

import (
	"iter"
	"sort"

	"github.com/emirpasic/gods/sets/treeset"
)

// Iterator is a forward-only, possibly infinite, ascending sequence of dates.
// Iterators are not safe for concurrent use; build one per goroutine.
type Iterator interface {
	// HasNext reports whether Next will return a value.
	HasNext() bool
	// Next returns the next value, or ErrExhausted.
	Next() (DateValue, error)
	// AdvanceTo skips values before target. It is a no-op when the next
	// value is already at or after target.
	AdvanceTo(target DateValue)
	// Remove always fails with ErrUnsupportedOperation.
	Remove() error
}

// All adapts it to a range-over-func sequence. Ranging consumes it.
func All(it Iterator) iter.Seq[DateValue] {
	return func(yield func(DateValue) bool) {
		for it.HasNext() {
			v, err := it.Next()
			if err != nil || !yield(v) {
				return
			}
		}
	}
}

// Take returns up to n values from it.
func Take(it Iterator, n int) []DateValue {
	out := make([]DateValue, 0, n)
	for len(out) < n && it.HasNext() {
		v, err := it.Next()
		if err != nil {
			break
		}
		out = append(out, v)
	}
	return out
}

// OccursOn reports whether it produces d, consuming values before d.
func OccursOn(it Iterator, d DateValue) bool {
	it.AdvanceTo(d)
	if !it.HasNext() {
		return false
	}
	v, err := it.Next()
	return err == nil && v.Equal(d)
}

func compareDates(a, b interface{}) int {
	return a.(DateValue).Compare(b.(DateValue))
}

// ListIterator walks an explicit set of dates such as RDATE or EXDATE.
type ListIterator struct {
	values []DateValue
	pos    int
}

// NewListIterator sorts and deduplicates values. Values with the same
// comparable projection collapse into one.
func NewListIterator(values ...DateValue) *ListIterator {
	set := treeset.NewWith(compareDates)
	for _, v := range values {
		if !v.IsZero() {
			set.Add(v)
		}
	}
	sorted := make([]DateValue, 0, set.Size())
	for _, v := range set.Values() {
		sorted = append(sorted, v.(DateValue))
	}
	return &ListIterator{values: sorted}
}

func (l *ListIterator) HasNext() bool { return l.pos < len(l.values) }

func (l *ListIterator) Next() (DateValue, error) {
	if l.pos >= len(l.values) {
		return DateValue{}, ErrExhausted
	}
	v := l.values[l.pos]
	l.pos++
	return v, nil
}

func (l *ListIterator) AdvanceTo(target DateValue) {
	tc := target.Comparable()
	rest := l.values[l.pos:]
	l.pos += sort.Search(len(rest), func(i int) bool {
		return rest[i].Comparable() >= tc
	})
}

func (l *ListIterator) Remove() error { return ErrUnsupportedOperation }
