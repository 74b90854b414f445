package grid

import (
	"fmt"
	"testing"
	"time"

	"eventcal/internal/calendar"
	"eventcal/internal/holiday"
	"eventcal/internal/model"
)

func at(day, hour int) time.Time {
	return time.Date(2026, 1, day, hour, 0, 0, 0, time.UTC)
}

func monthData(days map[string][]model.Event) calendar.MonthData {
	return calendar.MonthData{
		Month:    calendar.Month{Year: 2026, Month: time.January},
		Days:     days,
		Colors:   map[string]string{"a": "#aaa", "b": "#bbb", "c": "#ccc", "d": "#ddd"},
		Holidays: holiday.Set{"2026-01-01": "元日"},
	}
}

func TestLeadingBlanks(t *testing.T) {
	cases := []struct {
		first time.Weekday
		ws    WeekStart
		want  int
	}{
		{time.Monday, Monday, 0},
		{time.Sunday, Monday, 6},
		{time.Thursday, Monday, 3},
		{time.Sunday, Sunday, 0},
		{time.Thursday, Sunday, 4},
		{time.Saturday, Sunday, 6},
	}
	for _, tc := range cases {
		if got := LeadingBlanks(tc.first, tc.ws); got != tc.want {
			t.Errorf("LeadingBlanks(%s, %s) = %d, want %d", tc.first, tc.ws, got, tc.want)
		}
	}
}

func TestWeekdays(t *testing.T) {
	if w := Weekdays(Monday); w[0] != "月" || w[6] != "日" {
		t.Fatalf("monday header = %v", w)
	}
	if w := Weekdays(Sunday); w[0] != "日" || w[6] != "土" {
		t.Fatalf("sunday header = %v", w)
	}
}

func TestBuildShape(t *testing.T) {
	g := Build(monthData(nil), Monday, time.UTC)
	// 2026-01-01 is a Thursday.
	if g.Leading != 3 {
		t.Fatalf("leading = %d", g.Leading)
	}
	if len(g.Cells) != 31 || len(g.Blanks()) != 3 {
		t.Fatalf("cells = %d blanks = %d", len(g.Cells), len(g.Blanks()))
	}
	if g.Label != "2026年1月" || g.Prev != (calendar.Month{Year: 2025, Month: time.December}) {
		t.Fatalf("grid = %+v", g)
	}
	if g2 := Build(monthData(nil), Sunday, time.UTC); g2.Leading != 4 {
		t.Fatalf("sunday leading = %d", g2.Leading)
	}
}

func TestHolidayMarker(t *testing.T) {
	g := Build(monthData(nil), Monday, time.UTC)
	c, _ := g.Cell(1)
	if !c.Holiday || c.HolidayName != "元日" {
		t.Fatalf("jan 1 = %+v", c)
	}
	for d := 2; d <= 31; d++ {
		if c, _ := g.Cell(d); c.Holiday {
			t.Fatalf("day %d unexpectedly marked", d)
		}
	}
}

func TestRowsAreCappedAtFour(t *testing.T) {
	for n := 0; n <= 7; n++ {
		var evs []model.Event
		for i := 0; i < n; i++ {
			evs = append(evs, model.Event{ID: int64(i + 1), Title: fmt.Sprint("e", i), Start: at(5, 9+i)})
		}
		g := Build(monthData(map[string][]model.Event{"2026-01-05": evs}), Monday, time.UTC)
		c, _ := g.Cell(5)
		want := n
		if want > MaxRows {
			want = MaxRows
		}
		if len(c.Rows) != want || c.Total != n || c.More() != n-want {
			t.Fatalf("n=%d rows=%d total=%d more=%d", n, len(c.Rows), c.Total, c.More())
		}
		if p := BuildPopup(c.Date, evs, time.UTC); len(p.Items) != n {
			t.Fatalf("popup lists %d of %d", len(p.Items), n)
		}
	}
}

func TestDotsAndOverflow(t *testing.T) {
	cases := []struct {
		tags     []string
		dots     int
		overflow int
	}{
		{nil, 0, 0},
		{[]string{"a"}, 1, 0},
		{[]string{"a", "b", "c"}, 3, 0},
		{[]string{"a", "b", "c", "d"}, 3, 1},
		{[]string{"a", "b", "c", "d", "x", "y"}, 3, 3},
		{[]string{"unknown", "a"}, 1, 0},
	}
	for _, tc := range cases {
		ev := model.Event{ID: 1, Title: "t", Start: at(2, 10), Tags: tc.tags}
		g := Build(monthData(map[string][]model.Event{"2026-01-02": {ev}}), Monday, time.UTC)
		c, _ := g.Cell(2)
		r := c.Rows[0]
		if len(r.Dots) != tc.dots || r.Overflow != tc.overflow {
			t.Errorf("tags %v: dots=%v overflow=%d", tc.tags, r.Dots, r.Overflow)
		}
	}
}

func TestPopupSortsUntimedLast(t *testing.T) {
	evs := []model.Event{
		{ID: 1, Title: "afternoon", Start: at(3, 15)},
		{ID: 2, Title: "untimed"},
		{ID: 3, Title: "morning", Start: at(3, 9)},
		{ID: 4, Title: "also afternoon", Start: at(3, 15)},
	}
	p := BuildPopup("2026-01-03", evs, time.UTC)
	var got []int64
	for _, it := range p.Items {
		got = append(got, it.ID)
	}
	want := []int64{3, 1, 4, 2}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("order = %v, want %v", got, want)
	}
	if p.Items[0].URL != "/events/3" || p.Label != "1月3日（土）" {
		t.Fatalf("popup = %+v", p)
	}
	if p.NewEventURL != "/events/new?date=2026-01-03" {
		t.Fatalf("new url = %q", p.NewEventURL)
	}
}

func TestURLs(t *testing.T) {
	if u := MonthURL(calendar.Month{Year: 2026, Month: time.March}); u != "/calendar?year=2026&month=3#calendar" {
		t.Fatalf("month url = %q", u)
	}
	if u := NewEventURL(""); u != "/events/new" {
		t.Fatalf("new url = %q", u)
	}
}
