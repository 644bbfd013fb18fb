package recurrence

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/samber/mo"
)

// lookBehind widens every search window so that floating and date-only
// values, which are read as UTC, are not skipped for any real offset.
const lookBehind = 24 * time.Hour

// Engine answers range questions about recurring components. It is safe for
// concurrent use; every call builds its own iterators.
type Engine struct {
	cache  *RecurrenceCache
	config EngineConfig
	logger *slog.Logger
}

// NewEngine creates an engine with DefaultEngineConfig.
func NewEngine(opts ...Option) *Engine {
	return NewEngineWithConfig(DefaultEngineConfig, opts...)
}

// NewEngineWithoutCache creates an engine that never caches.
func NewEngineWithoutCache(opts ...Option) *Engine {
	config := DefaultEngineConfig
	config.CacheEnabled = false
	return NewEngineWithConfig(config, opts...)
}

// Close releases the cache, if any.
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() EngineConfig { return e.config }

// HasOccurrenceInRange reports whether any occurrence overlaps
// [rangeStart, rangeEnd], bounds inclusive. It skips ahead instead of
// expanding every earlier occurrence.
func (e *Engine) HasOccurrenceInRange(ev *EventRecurrence, rangeStart, rangeEnd time.Time) (bool, error) {
	if e.cache != nil {
		if cached, ok := e.cache.Get("has", ev, rangeStart, rangeEnd); ok {
			e.logger.Debug("recurrence cache hit", "operation", "has", "start", ev.Start)
			return cached.(bool), nil
		}
	}

	it, err := ev.Iterator()
	if err != nil {
		e.logger.Warn("invalid recurrence", "start", ev.Start, "error", err)
		return false, fmt.Errorf("failed to check occurrences: %w", err)
	}

	found := false
	it.AdvanceTo(FromTime(rangeStart.Add(-ev.Duration - lookBehind).UTC()))
	for it.HasNext() {
		v, err := it.Next()
		if err != nil {
			break
		}
		start := v.Time()
		if start.After(rangeEnd) {
			break
		}
		if !start.Add(ev.Duration).Before(rangeStart) {
			found = true
			break
		}
	}

	if e.cache != nil {
		e.cache.Set("has", ev, rangeStart, rangeEnd, found)
	}
	return found, nil
}

// Expand returns the occurrences overlapping [rangeStart, rangeEnd). A
// zero-length occurrence at rangeStart counts. The range is cut to
// opts.MaxTimeSpan, or to the engine's large range limit when the caller set
// no span, and at most opts.MaxOccurrences (or the engine default) are
// returned. Truncated reports whether either bound dropped anything.
func (e *Engine) Expand(ev *EventRecurrence, rangeStart, rangeEnd time.Time, opts ExpansionOptions) (ExpansionResult, error) {
	limit := opts.MaxOccurrences
	if limit <= 0 {
		limit = e.config.MaxExpansionOccurrences
	}

	end := rangeEnd
	span := opts.MaxTimeSpan
	if span <= 0 && e.config.LargeRangeThreshold > 0 && rangeEnd.Sub(rangeStart) > e.config.LargeRangeThreshold {
		span = e.config.LargeRangeLimit
	}
	if span > 0 && end.Sub(rangeStart) > span {
		end = rangeStart.Add(span)
	}

	operation := fmt.Sprintf("expand:%d:%s", limit, end.Format(time.RFC3339Nano))
	if e.cache != nil {
		if cached, ok := e.cache.Get(operation, ev, rangeStart, rangeEnd); ok {
			e.logger.Debug("recurrence cache hit", "operation", "expand", "start", ev.Start)
			return cached.(ExpansionResult).clone(), nil
		}
	}

	it, err := ev.Iterator()
	if err != nil {
		e.logger.Warn("invalid recurrence", "start", ev.Start, "error", err)
		return ExpansionResult{}, fmt.Errorf("failed to expand occurrences: %w", err)
	}

	var result ExpansionResult
	it.AdvanceTo(FromTime(rangeStart.Add(-ev.Duration - lookBehind).UTC()))
	for it.HasNext() {
		v, err := it.Next()
		if err != nil {
			break
		}
		start := v.Time()
		if !start.Before(end) {
			result.Truncated = end.Before(rangeEnd) && start.Before(rangeEnd)
			break
		}
		stop := start.Add(ev.Duration)
		if !stop.After(rangeStart) && !start.Equal(rangeStart) {
			continue
		}
		if len(result.Occurrences) == limit {
			result.Truncated = true
			break
		}
		result.Occurrences = append(result.Occurrences, TimeOccurrence{
			Value:       v,
			Start:       start,
			End:         stop,
			IsException: ev.RecurrenceID.IsPresent(),
		})
	}

	if result.Truncated {
		e.logger.Warn("recurrence expansion truncated",
			"start", ev.Start,
			"occurrences", len(result.Occurrences),
			"limit", limit)
	}
	if e.cache != nil {
		e.cache.Set(operation, ev, rangeStart, rangeEnd, result.clone())
	}
	return result, nil
}

// NextOccurrence returns the first occurrence starting strictly after after.
func (e *Engine) NextOccurrence(ev *EventRecurrence, after time.Time) (mo.Option[DateValue], error) {
	it, err := ev.Iterator()
	if err != nil {
		return mo.None[DateValue](), err
	}
	it.AdvanceTo(FromTime(after.Add(-lookBehind).UTC()))
	for it.HasNext() {
		v, err := it.Next()
		if err != nil {
			break
		}
		if v.Time().After(after) {
			return mo.Some(v), nil
		}
	}
	return mo.None[DateValue](), nil
}

// OccursOn reports whether the component has an occurrence equal to d.
func (e *Engine) OccursOn(ev *EventRecurrence, d DateValue) (bool, error) {
	it, err := ev.Iterator()
	if err != nil {
		return false, err
	}
	return OccursOn(it, d), nil
}

// clone copies the occurrence slice so cached results never share memory
// with callers.
func (r ExpansionResult) clone() ExpansionResult {
	r.Occurrences = slices.Clone(r.Occurrences)
	return r
}
