package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"eventcal/internal/calendar"
	"eventcal/internal/grid"
	"eventcal/internal/holiday"
	"eventcal/internal/model"
)

type fakeLoader struct {
	days  map[string][]model.Event
	calls []calendar.Month
}

func (f *fakeLoader) Load(_ context.Context, m calendar.Month) calendar.MonthData {
	f.calls = append(f.calls, m)
	return calendar.MonthData{
		Month:    m,
		Days:     f.days,
		Colors:   map[string]string{"work": "#ff0000", "home": "#00ff00"},
		Holidays: holiday.Set{"2026-01-01": "元日"},
	}
}

func event(id int64, title string, day, hour int, tags ...string) model.Event {
	return model.Event{
		ID:     id,
		Title:  title,
		Start:  time.Date(2026, 1, day, hour, 0, 0, 0, time.UTC),
		Tags:   tags,
		Status: model.StatusPublished,
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// loaded returns a model that has already received its first month.
func loaded(t *testing.T, f *fakeLoader) *Model {
	t.Helper()
	m := New(f, grid.Monday, time.UTC, time.Date(2026, 1, 15, 9, 0, 0, 0, time.UTC))
	cmd := m.Init()
	if cmd == nil {
		t.Fatal("Init returned no command")
	}
	m.Update(cmd())
	if !m.loaded {
		t.Fatal("first month not applied")
	}
	return m
}

func TestRenderShowsDotsOverflowAndHiddenCount(t *testing.T) {
	days := map[string][]model.Event{}
	for i := 0; i < 6; i++ {
		days["2026-01-03"] = append(days["2026-01-03"], event(int64(i+1), "会議", 3, 9+i, "work"))
	}
	days["2026-01-05"] = []model.Event{event(10, "tagged", 5, 10, "a", "b", "c", "d", "e")}

	data := calendar.MonthData{
		Month:    calendar.Month{Year: 2026, Month: time.January},
		Days:     days,
		Colors:   map[string]string{"work": "#ff0000", "a": "#00ff00"},
		Holidays: holiday.Set{"2026-01-01": "元日"},
	}
	out := Render(grid.Build(data, grid.Monday, time.UTC), 0, 98, NewStyles())

	for _, want := range []string{"2026年1月", "月", "日", "会議", dot, "+2", "他2件"} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q\n%s", want, out)
		}
	}
}

func TestRenderDegradedNotice(t *testing.T) {
	g := grid.Grid{
		Label:    "2026年1月",
		Weekdays: grid.Weekdays(grid.Sunday),
		Notice:   calendar.MsgStoreUnavailable,
	}
	if out := Render(g, 0, 0, NewStyles()); !strings.Contains(out, calendar.MsgStoreUnavailable) {
		t.Fatalf("notice not rendered:\n%s", out)
	}
}

func TestMonthNavigationReloads(t *testing.T) {
	f := &fakeLoader{}
	m := loaded(t, f)

	_, cmd := m.Update(runes("l"))
	if cmd == nil {
		t.Fatal("next month should load")
	}
	if m.Month() != (calendar.Month{Year: 2026, Month: time.February}) {
		t.Fatalf("month = %+v", m.Month())
	}
	if m.loaded {
		t.Fatal("grid should be pending until the load returns")
	}
	m.Update(cmd())
	if !m.loaded || m.grid.Label != "2026年2月" {
		t.Fatalf("february not applied: %q", m.grid.Label)
	}

	m.Update(runes("h"))
	m.Update(runes("h"))
	if m.Month() != (calendar.Month{Year: 2025, Month: time.December}) {
		t.Fatalf("month = %+v", m.Month())
	}

	m.Update(runes("t"))
	if m.Month() != (calendar.Month{Year: 2026, Month: time.January}) {
		t.Fatalf("today went to %+v", m.Month())
	}
}

func TestStaleMonthIsDropped(t *testing.T) {
	f := &fakeLoader{}
	m := loaded(t, f)

	_, toFeb := m.Update(runes("l"))
	_, toMar := m.Update(runes("l"))

	m.Update(toMar())
	m.Update(toFeb())
	if m.grid.Label != "2026年3月" {
		t.Fatalf("late february response replaced march: %q", m.grid.Label)
	}
}

func TestCursorMovementClamps(t *testing.T) {
	m := loaded(t, &fakeLoader{})
	if m.Cursor() != 15 {
		t.Fatalf("cursor starts at %d", m.Cursor())
	}
	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if m.Cursor() != 23 {
		t.Fatalf("cursor = %d", m.Cursor())
	}
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if m.Cursor() != 30 {
		t.Fatalf("cursor should stop inside the month, got %d", m.Cursor())
	}
	for i := 0; i < 5; i++ {
		m.Update(tea.KeyMsg{Type: tea.KeyUp})
	}
	if m.Cursor() != 2 {
		t.Fatalf("cursor = %d", m.Cursor())
	}
}

func TestCursorShrinksWithShorterMonth(t *testing.T) {
	m := New(&fakeLoader{}, grid.Monday, time.UTC, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC))
	m.Update(runes("l"))
	if m.Cursor() != 28 {
		t.Fatalf("cursor = %d", m.Cursor())
	}
}

func TestPopupOpensOnlyOnDaysWithEvents(t *testing.T) {
	f := &fakeLoader{days: map[string][]model.Event{
		"2026-01-15": {event(2, "late", 15, 18, "home"), event(1, "early", 15, 8, "work")},
	}}
	m := loaded(t, f)

	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !m.PopupOpen() {
		t.Fatal("popup should open on a day with events")
	}
	view := m.View()
	i := strings.Index(view, "1月15日")
	if i < 0 {
		t.Fatalf("popup label missing:\n%s", view)
	}
	popup := view[i:]
	if strings.Index(popup, "early") > strings.Index(popup, "late") {
		t.Fatalf("popup not sorted by time:\n%s", popup)
	}
	if !strings.Contains(popup, "/events/1") {
		t.Fatalf("popup missing detail link:\n%s", popup)
	}

	// Month keys are ignored while the popup is up.
	m.Update(runes("l"))
	if m.Month().Month != time.January {
		t.Fatal("month changed under the popup")
	}

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if m.PopupOpen() {
		t.Fatal("esc should close the popup")
	}

	m.Update(tea.KeyMsg{Type: tea.KeyRight})
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.PopupOpen() {
		t.Fatal("empty day should not open a popup")
	}
}

func TestQuit(t *testing.T) {
	m := loaded(t, &fakeLoader{})
	_, cmd := m.Update(runes("q"))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q should quit")
	}
}

func TestViewWhileLoading(t *testing.T) {
	m := New(&fakeLoader{}, grid.Sunday, time.UTC, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if v := m.View(); !strings.Contains(v, "読み込み中") {
		t.Fatalf("view = %q", v)
	}
}
