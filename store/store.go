// Package store defines storage for recurring calendar objects.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cyp0633/librecur/recurrence"
	"github.com/emersion/go-ical"
)

// Error types
type ErrorType string

const (
	ErrNotFound     ErrorType = "not_found"
	ErrConflict     ErrorType = "conflict"
	ErrInvalidInput ErrorType = "invalid_input"
	ErrInternal     ErrorType = "internal"
)

// Error represents a storage-related error
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsType reports whether err is a storage Error of type t.
func IsType(err error, t ErrorType) bool {
	var se *Error
	return errors.As(err, &se) && se.Type == t
}

// Object is one stored VEVENT, VTODO or VJOURNAL together with its decoded
// recurrence.
type Object struct {
	ID            string
	CalendarID    string
	ETag          string
	ComponentType string // VEVENT, VTODO, etc.
	Created       time.Time
	Modified      time.Time

	Component  *ical.Component
	Recurrence *recurrence.EventRecurrence
}

// TimeRange bounds a query. A nil bound is open.
type TimeRange struct {
	Start *time.Time
	End   *time.Time
}

// Filter selects objects in Query. The zero value matches everything.
type Filter struct {
	ComponentTypes []string
	TimeRange      *TimeRange
}

// Storage is the interface that must be implemented by storage backends.
// Time-range queries match an object when any of its occurrences overlaps
// the range, not only the first one.
type Storage interface {
	// Put creates or replaces an object and returns its new ETag. An empty
	// ID is assigned by the store.
	Put(ctx context.Context, obj *Object) (etag string, err error)
	Get(ctx context.Context, calendarID, objectID string) (*Object, error)
	Delete(ctx context.Context, calendarID, objectID string) error
	List(ctx context.Context, calendarID string) ([]*Object, error)
	Query(ctx context.Context, calendarID string, filter *Filter) ([]*Object, error)
}
