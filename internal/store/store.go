package store

import (
	"context"
	"errors"
	"time"

	"eventcal/internal/model"
)

var (
	// ErrNotFound is returned when a row addressed by id does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrUnavailable is returned when the database handle is not usable.
	ErrUnavailable = errors.New("store: unavailable")
)

// Store is the database surface the calendar consumes: a categories table
// keyed by name and an events table filtered by status and start time.
type Store interface {
	Ping(ctx context.Context) error

	// UpsertCategories inserts each category or overwrites the color of an
	// existing row with the same name.
	UpsertCategories(ctx context.Context, cats []model.Category) error
	// ListCategories returns all categories ordered by creation time.
	ListCategories(ctx context.Context) ([]model.Category, error)

	InsertEvent(ctx context.Context, ev model.Event) (model.Event, error)
	GetEvent(ctx context.Context, id int64) (model.Event, error)
	// ListPublished returns published events with from <= start < to,
	// ascending by start.
	ListPublished(ctx context.Context, from, to time.Time) ([]model.Event, error)
	// NextPublished returns the earliest published event starting at or
	// after now, or nil when there is none.
	NextPublished(ctx context.Context, now time.Time) (*model.Event, error)

	Close() error
}
