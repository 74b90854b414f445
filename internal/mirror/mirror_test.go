package mirror

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/robfig/cron/v3"

	"eventcal/internal/model"
)

func ev(id int64, title string, start time.Time) model.Event {
	return model.Event{ID: id, Title: title, Start: start, Status: model.StatusPublished}
}

func TestMergeReplacesOnlyThatMonth(t *testing.T) {
	f := NewFile(filepath.Join(t.TempDir(), "sub", "mirror.json"))
	jan := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)

	if err := f.Merge(2026, time.January, Days{"2026-01-05": {ev(1, "a", jan)}, "2026-01-06": {ev(2, "b", jan)}}); err != nil {
		t.Fatal(err)
	}
	if err := f.Merge(2026, time.February, Days{"2026-02-03": {ev(3, "c", feb)}, "2026-03-01": {ev(4, "stray", feb)}}); err != nil {
		t.Fatal(err)
	}
	if err := f.Merge(2026, time.January, Days{"2026-01-06": {ev(2, "b2", jan)}}); err != nil {
		t.Fatal(err)
	}

	got := f.Month(2026, time.January)
	if len(got) != 1 || got["2026-01-06"][0].Title != "b2" {
		t.Fatalf("january = %+v", got)
	}
	if got := f.Month(2026, time.February); len(got) != 1 {
		t.Fatalf("february = %+v", got)
	}
	if got := f.Month(2026, time.March); len(got) != 0 {
		t.Fatalf("keys outside the merged month must be dropped: %+v", got)
	}
}

func TestMonthOnMissingOrCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.json")
	f := NewFile(path)
	if got := f.Month(2026, time.May); len(got) != 0 {
		t.Fatalf("missing file should be empty, got %+v", got)
	}

	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if got := f.Month(2026, time.May); len(got) != 0 {
		t.Fatalf("corrupt file should be empty, got %+v", got)
	}

	day := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	if err := f.Merge(2026, time.May, Days{"2026-05-01": {ev(1, "x", day)}}); err != nil {
		t.Fatalf("merge should rewrite a corrupt mirror: %v", err)
	}
	if got := f.Month(2026, time.May); len(got["2026-05-01"]) != 1 {
		t.Fatalf("month = %+v", got)
	}
}

func TestDisabled(t *testing.T) {
	f := NewFile("")
	if f.Enabled() {
		t.Fatal("empty path should disable the mirror")
	}
	if err := f.Merge(2026, time.May, Days{"2026-05-01": nil}); err != nil {
		t.Fatal(err)
	}
	if len(f.Month(2026, time.May)) != 0 {
		t.Fatal("disabled mirror returns nothing")
	}
}

func TestSchedule(t *testing.T) {
	c := cron.New()
	id, err := Schedule(c, "*/15 * * * *", func() {})
	if err != nil || id == 0 {
		t.Fatalf("id=%d err=%v", id, err)
	}
	if _, err := Schedule(c, "not a spec", func() {}); err == nil {
		t.Fatal("bad spec should fail")
	}
	if id, err := Schedule(c, "", func() {}); err != nil || id != 0 {
		t.Fatalf("empty spec should be a no-op, id=%d err=%v", id, err)
	}
}
