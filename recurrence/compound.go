package recurrence

import (
	"cmp"

	"github.com/emirpasic/gods/trees/binaryheap"
	"github.com/samber/mo"
)

type role int

const (
	inclusion role = iota
	exclusion
)

// source is one iterator feeding a CompoundIterator together with its
// current head.
type source struct {
	it   Iterator
	role role
	head DateValue
	key  int64
}

// CompoundIterator merges inclusion and exclusion iterators into a single
// ascending stream without duplicates. A value is produced when at least one
// inclusion produces it and no exclusion produces the same instant. Values are
// matched by Comparable, so a pure date never excludes a date-time.
type CompoundIterator struct {
	sources    []source
	queue      *binaryheap.Heap // indices into sources, ordered by head
	inclusions int              // inclusion sources not yet exhausted
	pending    int              // index of the next result, or -1
	last       mo.Option[int64]
}

// NewCompoundIterator primes every source. Nil iterators are ignored.
func NewCompoundIterator(inclusions, exclusions []Iterator) *CompoundIterator {
	c := &CompoundIterator{pending: -1}
	c.queue = binaryheap.NewWith(func(a, b interface{}) int {
		return cmp.Compare(c.sources[a.(int)].key, c.sources[b.(int)].key)
	})
	for _, it := range inclusions {
		if it != nil {
			c.sources = append(c.sources, source{it: it, role: inclusion})
			c.inclusions++
		}
	}
	for _, it := range exclusions {
		if it != nil {
			c.sources = append(c.sources, source{it: it, role: exclusion})
		}
	}
	for i := range c.sources {
		c.reattach(i)
	}
	return c
}

func (c *CompoundIterator) HasNext() bool {
	c.requirePending()
	return c.pending >= 0
}

func (c *CompoundIterator) Next() (DateValue, error) {
	c.requirePending()
	if c.pending < 0 {
		return DateValue{}, ErrExhausted
	}
	i := c.pending
	c.pending = -1
	v := c.sources[i].head
	c.last = mo.Some(c.sources[i].key)
	c.reattach(i)
	return v, nil
}

// AdvanceTo moves every source whose head is before target, so skipping far
// ahead costs one AdvanceTo per source rather than a step per value.
func (c *CompoundIterator) AdvanceTo(target DateValue) {
	tc := target.Comparable()
	if c.pending >= 0 {
		if c.sources[c.pending].key >= tc {
			return
		}
		i := c.pending
		c.pending = -1
		c.sources[i].it.AdvanceTo(target)
		c.reattach(i)
	}
	for !c.queue.Empty() {
		top, _ := c.queue.Peek()
		i := top.(int)
		if c.sources[i].key >= tc {
			return
		}
		c.queue.Pop()
		c.sources[i].it.AdvanceTo(target)
		c.reattach(i)
	}
}

func (c *CompoundIterator) Remove() error { return ErrUnsupportedOperation }

// requirePending computes the next result unless one is already held.
func (c *CompoundIterator) requirePending() {
	var marker mo.Option[int64]
	for c.pending < 0 && c.inclusions > 0 {
		candidate := -1
		for candidate < 0 && c.inclusions > 0 && !c.queue.Empty() {
			top, _ := c.queue.Pop()
			i := top.(int)
			s := &c.sources[i]
			if s.role == exclusion {
				marker = mo.Some(s.key)
				c.reattach(i)
				continue
			}
			if m, ok := marker.Get(); ok && m == s.key {
				c.reattach(i)
				continue
			}
			if l, ok := c.last.Get(); ok && s.key <= l {
				c.reattach(i)
				continue
			}
			candidate = i
		}
		if candidate < 0 {
			return
		}

		// Drain every other source sitting on the same instant.
		key := c.sources[candidate].key
		excluded := false
		for !c.queue.Empty() {
			top, _ := c.queue.Peek()
			i := top.(int)
			if c.sources[i].key != key {
				break
			}
			c.queue.Pop()
			if c.sources[i].role == exclusion {
				excluded = true
			}
			c.reattach(i)
		}
		if excluded {
			c.reattach(candidate)
			continue
		}
		c.pending = candidate
	}
}

// reattach pulls the next head of source i and queues it again, or drops it
// once it is exhausted. Losing the last inclusion empties the queue.
func (c *CompoundIterator) reattach(i int) {
	if c.inclusions == 0 {
		return
	}
	s := &c.sources[i]
	if s.it.HasNext() {
		if v, err := s.it.Next(); err == nil {
			s.head, s.key = v, v.Comparable()
			c.queue.Push(i)
			return
		}
	}
	if s.role == inclusion {
		c.inclusions--
		if c.inclusions == 0 {
			c.queue.Clear()
		}
	}
}
