// Package holiday loads per-year holiday sets and caches them for the life
// of the process. A year without a resource has no holidays; a broken
// resource is logged and also treated as empty.
package holiday

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"eventcal/internal/ics"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

// Set maps YYYY-MM-DD to an optional holiday name.
type Set map[string]string

func (s Set) Has(date string) bool {
	_, ok := s[date]
	return ok
}

// Name returns the holiday name for date, or "".
func (s Set) Name(date string) string {
	return s[date]
}

// Dates returns the holiday dates in ascending order.
func (s Set) Dates() []string {
	out := make([]string, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Loader resolves and caches holiday sets per year.
type Loader struct {
	source    Source
	recurring []string

	mu    sync.Mutex
	cache map[int]Set
}

func NewLoader(source Source, recurring []string) *Loader {
	return &Loader{
		source:    source,
		recurring: recurring,
		cache:     make(map[int]Set),
	}
}

// Year returns the holiday set for year. It never fails: missing or invalid
// resources degrade to an empty (or recurring-only) set.
func (l *Loader) Year(ctx context.Context, year int) Set {
	l.mu.Lock()
	if s, ok := l.cache[year]; ok {
		l.mu.Unlock()
		return s
	}
	l.mu.Unlock()

	set, cacheable := l.load(ctx, year)

	if cacheable {
		l.mu.Lock()
		if existing, ok := l.cache[year]; ok {
			set = existing
		} else {
			l.cache[year] = set
		}
		l.mu.Unlock()
	}
	return set
}

func (l *Loader) load(ctx context.Context, year int) (Set, bool) {
	set := make(Set)
	cacheable := true

	if l.source != nil {
		res, err := l.source.Open(ctx, year)
		switch {
		case errors.Is(err, ErrNoResource):
			appLog.Debug("holiday resource absent", "year", year)
		case err != nil:
			// Transport trouble is not cached so a later request can retry.
			appLog.Error("holiday resource unavailable", err, "year", year)
			cacheable = false
		default:
			if perr := parseInto(set, res, year); perr != nil {
				appLog.Error("holiday resource invalid; using empty set", perr, "year", year, "name", res.Name)
				set = make(Set)
			}
		}
	}

	for date, name := range expandRecurring(l.recurring, year) {
		if _, ok := set[date]; !ok {
			set[date] = name
		}
	}
	return set, cacheable
}

func parseInto(set Set, res Resource, year int) error {
	switch res.Format {
	case FormatICS:
		entries, err := ics.ParseDates(res.Body)
		if err != nil {
			return err
		}
		for _, e := range entries {
			addDate(set, e.Date, e.Summary, year)
		}
		return nil
	default:
		return parseJSON(set, res.Body, year)
	}
}

// parseJSON accepts either ["2026-01-01", ...] or {"2026-01-01": "元日", ...}.
func parseJSON(set Set, body []byte, year int) error {
	var list []string
	if err := json.Unmarshal(body, &list); err == nil {
		for _, d := range list {
			addDate(set, d, "", year)
		}
		return nil
	}

	var named map[string]string
	if err := json.Unmarshal(body, &named); err != nil {
		return fmt.Errorf("holiday json: %w", err)
	}
	for d, name := range named {
		addDate(set, d, name, year)
	}
	return nil
}

func addDate(set Set, date, name string, year int) {
	t, err := time.Parse(model.DayKeyLayout, date)
	if err != nil {
		appLog.Debug("holiday entry skipped", "date", date, "err", err)
		return
	}
	if t.Year() != year {
		appLog.Debug("holiday entry outside year", "date", date, "year", year)
		return
	}
	set[t.Format(model.DayKeyLayout)] = name
}
