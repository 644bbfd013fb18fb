// memory based implementation for testing and small deployments
package memory

import (
	"cmp"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/cyp0633/librecur/internal/calendar"
	"github.com/cyp0633/librecur/recurrence"
	"github.com/cyp0633/librecur/store"
	"github.com/google/uuid"
)

// Store implements store.Storage using in-memory maps
type Store struct {
	mu      sync.RWMutex
	objects map[string]*record // key: calendarID/objectID

	engine     *recurrence.Engine
	decode     []recurrence.DecodeOption
	logger     *slog.Logger
	ownsEngine bool
}

// Option represents a configuration option for the Store
type Option func(*Store)

// WithLogger sets the logger for the store
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEngine sets the engine used for time-range queries. The caller keeps
// ownership and closes it.
func WithEngine(engine *recurrence.Engine) Option {
	return func(s *Store) {
		if engine != nil {
			s.engine = engine
			s.ownsEngine = false
		}
	}
}

// WithDecodeOptions sets the options passed to recurrence.FromComponent on Put.
func WithDecodeOptions(opts ...recurrence.DecodeOption) Option {
	return func(s *Store) {
		s.decode = opts
	}
}

// New creates a new in-memory storage
func New(opts ...Option) *Store {
	s := &Store{
		objects:    make(map[string]*record),
		engine:     recurrence.NewEngineWithoutCache(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		ownsEngine: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases the engine if the store created it.
func (s *Store) Close() {
	if s.ownsEngine {
		s.engine.Close()
	}
}

func objectKey(calendarID, objectID string) string {
	return fmt.Sprintf("%s/%s", calendarID, objectID)
}

// record is the stored form of an object. The component is kept as text so
// that every read decodes a private copy.
type record struct {
	obj  store.Object
	data string
}

// object returns a copy of the stored object that shares nothing mutable
// with the store.
func (r *record) object() (*store.Object, error) {
	comp, err := store.DecodeComponent(r.data)
	if err != nil {
		return nil, &store.Error{
			Type:    store.ErrInternal,
			Message: "stored component cannot be decoded",
			Err:     err,
		}
	}
	obj := r.obj
	obj.Component = comp
	obj.Recurrence = cloneRecurrence(r.obj.Recurrence)
	return &obj, nil
}

// cloneRecurrence copies the slices of ev. Rules are immutable once parsed.
func cloneRecurrence(ev *recurrence.EventRecurrence) *recurrence.EventRecurrence {
	cp := *ev
	cp.RRules = slices.Clone(ev.RRules)
	cp.ExRules = slices.Clone(ev.ExRules)
	cp.RDates = slices.Clone(ev.RDates)
	cp.ExDates = slices.Clone(ev.ExDates)
	return &cp
}

func generateETag(data []byte) string {
	hash := sha1.Sum(data)
	return `"` + hex.EncodeToString(hash[:]) + `"`
}

// Put implements store.Storage. A non-empty obj.ETag must match the stored
// object's ETag, which also means the object must already exist.
func (s *Store) Put(ctx context.Context, obj *store.Object) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if obj == nil || obj.Component == nil || obj.CalendarID == "" {
		return "", &store.Error{
			Type:    store.ErrInvalidInput,
			Message: "object needs a calendar and a component",
		}
	}

	ev, err := recurrence.FromComponent(obj.Component, s.decode...)
	if err != nil {
		s.logger.Debug("rejected object with invalid recurrence",
			"calendar", obj.CalendarID,
			"error", err)
		return "", &store.Error{
			Type:    store.ErrInvalidInput,
			Message: "invalid recurrence",
			Err:     err,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if obj.ID == "" {
		obj.ID = uuid.NewString()
	}
	key := objectKey(obj.CalendarID, obj.ID)
	old, exists := s.objects[key]
	if obj.ETag != "" && (!exists || old.obj.ETag != obj.ETag) {
		return "", &store.Error{
			Type:    store.ErrConflict,
			Message: "etag does not match",
		}
	}

	data, err := store.EncodeComponent(obj.Component)
	if err != nil {
		return "", &store.Error{
			Type:    store.ErrInvalidInput,
			Message: "component cannot be encoded",
			Err:     err,
		}
	}

	now := time.Now()
	obj.Created = now
	if exists {
		obj.Created = old.obj.Created
	}
	obj.Modified = now
	obj.ComponentType = obj.Component.Name
	obj.Recurrence = ev
	obj.ETag = generateETag([]byte(data))
	stored := *obj
	stored.Component = nil
	stored.Recurrence = cloneRecurrence(ev)
	s.objects[key] = &record{obj: stored, data: data}

	s.logger.Debug("stored object",
		"calendar", obj.CalendarID,
		"id", obj.ID,
		"etag", obj.ETag,
		"recurring", ev.IsRecurring())
	return obj.ETag, nil
}

// Get implements store.Storage.
func (s *Store) Get(_ context.Context, calendarID, objectID string) (*store.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.objects[objectKey(calendarID, objectID)]
	if !ok {
		return nil, &store.Error{
			Type:    store.ErrNotFound,
			Message: "object not found",
		}
	}
	return rec.object()
}

// Delete implements store.Storage.
func (s *Store) Delete(_ context.Context, calendarID, objectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := objectKey(calendarID, objectID)
	if _, exists := s.objects[key]; !exists {
		return &store.Error{
			Type:    store.ErrNotFound,
			Message: "object not found",
		}
	}

	delete(s.objects, key)
	s.logger.Debug("deleted object", "calendar", calendarID, "id", objectID)
	return nil
}

// List implements store.Storage. Objects are ordered by ID.
func (s *Store) List(ctx context.Context, calendarID string) ([]*store.Object, error) {
	return s.Query(ctx, calendarID, nil)
}

// Query implements store.Storage. Objects are ordered by ID.
func (s *Store) Query(ctx context.Context, calendarID string, filter *store.Filter) ([]*store.Object, error) {
	s.mu.RLock()
	candidates := make([]*record, 0, len(s.objects))
	for _, rec := range s.objects {
		if rec.obj.CalendarID != calendarID {
			continue
		}
		if filter != nil && len(filter.ComponentTypes) > 0 && !slices.Contains(filter.ComponentTypes, rec.obj.ComponentType) {
			continue
		}
		candidates = append(candidates, rec)
	}
	s.mu.RUnlock()

	var objects []*store.Object
	for _, rec := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if filter != nil && filter.TimeRange != nil {
			ok, err := s.inRange(rec.obj.Recurrence, filter.TimeRange)
			if err != nil {
				s.logger.Warn("skipping object in time-range query",
					"calendar", calendarID,
					"id", rec.obj.ID,
					"error", err)
				continue
			}
			if !ok {
				continue
			}
		}
		obj, err := rec.object()
		if err != nil {
			return nil, err
		}
		objects = append(objects, obj)
	}

	slices.SortFunc(objects, func(a, b *store.Object) int { return cmp.Compare(a.ID, b.ID) })
	return objects, nil
}

func (s *Store) inRange(ev *recurrence.EventRecurrence, tr *store.TimeRange) (bool, error) {
	start := earliest(ev)
	if tr.Start != nil {
		start = *tr.Start
	}
	end := time.Date(calendar.MaxYear, time.December, 31, 23, 59, 59, 0, time.UTC)
	if tr.End != nil {
		end = *tr.End
	}
	if end.Before(start) {
		return false, nil
	}
	return s.engine.HasOccurrenceInRange(ev, start, end)
}

// earliest returns the first instant any occurrence of ev can start at.
func earliest(ev *recurrence.EventRecurrence) time.Time {
	t := ev.Start.Time()
	for _, d := range ev.RDates {
		if d.Time().Before(t) {
			t = d.Time()
		}
	}
	return t
}
