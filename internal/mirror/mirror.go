// Package mirror keeps a best-effort local copy of the day buckets so the
// calendar can still render something while the store is unreachable. The
// store stays the source of truth; nothing here is ever written back.
package mirror

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	appLog "eventcal/internal/log"
	"eventcal/internal/model"
)

// Days maps a YYYY-MM-DD day key to that day's events.
type Days map[string][]model.Event

// File is the on-disk mirror. A zero path disables it.
type File struct {
	path string
	mu   sync.Mutex
}

func NewFile(path string) *File {
	return &File{path: path}
}

func (f *File) Enabled() bool { return f != nil && f.path != "" }

// Month returns the mirrored buckets of year/month. A missing or unreadable
// file yields an empty result.
func (f *File) Month(year int, month time.Month) Days {
	out := Days{}
	if !f.Enabled() {
		return out
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.read()
	if err != nil {
		appLog.Warn("mirror read failed", "path", f.path, "error", err.Error())
		return out
	}
	prefix := monthPrefix(year, month)
	for k, evs := range all {
		if strings.HasPrefix(k, prefix) {
			out[k] = evs
		}
	}
	return out
}

// Merge replaces every key of year/month with days. Keys outside the month
// are ignored.
func (f *File) Merge(year int, month time.Month, days Days) error {
	if !f.Enabled() {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	all, err := f.read()
	if err != nil {
		// A corrupt mirror is rebuilt from scratch.
		appLog.Warn("mirror unreadable, rewriting", "path", f.path, "error", err.Error())
		all = Days{}
	}

	prefix := monthPrefix(year, month)
	for k := range all {
		if strings.HasPrefix(k, prefix) {
			delete(all, k)
		}
	}
	for k, evs := range days {
		if strings.HasPrefix(k, prefix) && len(evs) > 0 {
			all[k] = evs
		}
	}
	if err := f.write(all); err != nil {
		return fmt.Errorf("mirror: write %s: %w", f.path, err)
	}
	appLog.Debug("mirror merged", "month", prefix[:7], "days", len(days))
	return nil
}

func (f *File) read() (Days, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Days{}, nil
	}
	if err != nil {
		return nil, err
	}
	var all Days
	if err := json.Unmarshal(b, &all); err != nil {
		return nil, err
	}
	if all == nil {
		all = Days{}
	}
	return all, nil
}

func (f *File) write(all Days) error {
	for _, evs := range all {
		sort.SliceStable(evs, func(i, j int) bool { return evs[i].Start.Before(evs[j].Start) })
	}
	b, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".eventcal-mirror-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, f.path)
}

func monthPrefix(year int, month time.Month) string {
	return fmt.Sprintf("%04d-%02d-", year, int(month))
}

// Schedule runs refresh on spec. An empty spec registers nothing.
func Schedule(c *cron.Cron, spec string, refresh func()) (cron.EntryID, error) {
	if spec == "" {
		return 0, nil
	}
	id, err := c.AddFunc(spec, refresh)
	if err != nil {
		return 0, fmt.Errorf("mirror: schedule %q: %w", spec, err)
	}
	return id, nil
}
