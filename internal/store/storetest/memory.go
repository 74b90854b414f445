// Package storetest provides an in-memory store.Store with failure hooks
// for tests.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"eventcal/internal/model"
	"eventcal/internal/store"
)

type Memory struct {
	mu     sync.Mutex
	cats   []model.Category
	events []model.Event
	nextID int64

	// Errors returned by the matching operation when non-nil.
	PingErr   error
	UpsertErr error
	ListErr   error
	InsertErr error
	QueryErr  error

	Inserts int
}

var _ store.Store = (*Memory)(nil)

func New() *Memory {
	return &Memory{}
}

func (m *Memory) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PingErr
}

func (m *Memory) SetPingErr(err error) {
	m.mu.Lock()
	m.PingErr = err
	m.mu.Unlock()
}

func (m *Memory) UpsertCategories(_ context.Context, cats []model.Category) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpsertErr != nil {
		return m.UpsertErr
	}
	for _, c := range cats {
		found := false
		for i := range m.cats {
			if m.cats[i].Name == c.Name {
				m.cats[i].Color = c.Color
				found = true
			}
		}
		if !found {
			c.ID = int64(len(m.cats) + 1)
			m.cats = append(m.cats, c)
		}
	}
	return nil
}

func (m *Memory) ListCategories(context.Context) ([]model.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return append([]model.Category(nil), m.cats...), nil
}

func (m *Memory) InsertEvent(_ context.Context, ev model.Event) (model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.InsertErr != nil {
		return model.Event{}, m.InsertErr
	}
	m.nextID++
	ev.ID = m.nextID
	if ev.Status == "" {
		ev.Status = model.StatusPublished
	}
	m.events = append(m.events, ev)
	m.Inserts++
	return ev, nil
}

func (m *Memory) GetEvent(_ context.Context, id int64) (model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ev := range m.events {
		if ev.ID == id {
			return ev, nil
		}
	}
	return model.Event{}, store.ErrNotFound
}

func (m *Memory) ListPublished(_ context.Context, from, to time.Time) ([]model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	var out []model.Event
	for _, ev := range m.events {
		if ev.Published() && !ev.Start.Before(from) && ev.Start.Before(to) {
			out = append(out, ev)
		}
	}
	sortByStart(out)
	return out, nil
}

func (m *Memory) NextPublished(_ context.Context, now time.Time) (*model.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	var out []model.Event
	for _, ev := range m.events {
		if ev.Published() && !ev.Start.Before(now) {
			out = append(out, ev)
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	sortByStart(out)
	return &out[0], nil
}

func (m *Memory) Close() error { return nil }

// Events returns a copy of every stored event.
func (m *Memory) Events() []model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Event(nil), m.events...)
}

func sortByStart(evs []model.Event) {
	sort.SliceStable(evs, func(i, j int) bool {
		if evs[i].Start.Equal(evs[j].Start) {
			return evs[i].ID < evs[j].ID
		}
		return evs[i].Start.Before(evs[j].Start)
	})
}
