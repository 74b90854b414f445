// Package grid lays a month out as a 7-column calendar. It only shapes
// data; HTML and terminal rendering live elsewhere.
package grid

import (
	"fmt"
	"net/url"
	"sort"
	"time"

	"eventcal/internal/calendar"
	"eventcal/internal/model"
)

const (
	// MaxRows is how many events a day cell shows before the popup is needed.
	MaxRows = 4
	// MaxDots is how many tag dots a row shows before "+N".
	MaxDots = 3
	// untimed sorts events without a start time after every real time.
	untimed = "99:99"
)

type WeekStart string

const (
	Monday WeekStart = "monday"
	Sunday WeekStart = "sunday"
)

var weekdayNames = [7]string{"日", "月", "火", "水", "木", "金", "土"}

// Row is one compact event line inside a day cell.
type Row struct {
	Event    model.Event
	Time     string
	Label    string
	Dots     []string // tag colors, at most MaxDots
	Overflow int      // tags beyond MaxDots
	URL      string
}

type Cell struct {
	Day         int
	Date        string
	Weekday     time.Weekday
	Holiday     bool
	HolidayName string
	Rows        []Row
	Total       int
}

// More is the number of events hidden from the cell.
func (c Cell) More() int {
	return c.Total - len(c.Rows)
}

func (c Cell) Empty() bool { return c.Total == 0 }

// NewEventURL is where a double click on the cell leads.
func (c Cell) NewEventURL() string {
	return NewEventURL(c.Date)
}

// Grid is a month ready to render.
type Grid struct {
	Month    calendar.Month
	Label    string
	Prev     calendar.Month
	Next     calendar.Month
	Leading  int
	Weekdays []string
	Cells    []Cell

	Degraded bool
	Notice   string
}

// Blanks returns Leading as a range-able slice for templates.
func (g Grid) Blanks() []struct{} {
	return make([]struct{}, g.Leading)
}

// Cell returns the cell of day (1-based) or false.
func (g Grid) Cell(day int) (Cell, bool) {
	if day < 1 || day > len(g.Cells) {
		return Cell{}, false
	}
	return g.Cells[day-1], true
}

// LeadingBlanks is the number of empty cells before day 1.
func LeadingBlanks(first time.Weekday, ws WeekStart) int {
	if ws == Sunday {
		return int(first)
	}
	return (int(first) + 6) % 7
}

// Weekdays returns the header labels starting at ws.
func Weekdays(ws WeekStart) []string {
	start := 1
	if ws == Sunday {
		start = 0
	}
	out := make([]string, 7)
	for i := range out {
		out[i] = weekdayNames[(start+i)%7]
	}
	return out
}

// Build lays out data under ws. Times and day keys are read in loc.
func Build(data calendar.MonthData, ws WeekStart, loc *time.Location) Grid {
	if loc == nil {
		loc = time.Local
	}
	m := data.Month
	first := m.First(loc)

	g := Grid{
		Month:    m,
		Label:    m.Label(),
		Prev:     m.Prev(),
		Next:     m.Next(),
		Leading:  LeadingBlanks(first.Weekday(), ws),
		Weekdays: Weekdays(ws),
		Cells:    make([]Cell, 0, m.Days()),
		Degraded: data.Degraded,
		Notice:   data.Notice,
	}

	for d := 1; d <= m.Days(); d++ {
		day := time.Date(m.Year, m.Month, d, 0, 0, 0, 0, loc)
		key := day.Format(model.DayKeyLayout)
		events := data.Days[key]

		cell := Cell{
			Day:         d,
			Date:        key,
			Weekday:     day.Weekday(),
			Holiday:     data.Holidays.Has(key),
			HolidayName: data.Holidays.Name(key),
			Total:       len(events),
		}
		for i, ev := range events {
			if i == MaxRows {
				break
			}
			cell.Rows = append(cell.Rows, buildRow(ev, data.Colors, loc))
		}
		g.Cells = append(g.Cells, cell)
	}
	return g
}

func buildRow(ev model.Event, colors map[string]string, loc *time.Location) Row {
	r := Row{
		Event: ev,
		Time:  clock(ev, loc),
		Label: ev.Title,
		URL:   DetailURL(ev.ID),
	}
	for i, tag := range ev.Tags {
		if i == MaxDots {
			r.Overflow = len(ev.Tags) - MaxDots
			break
		}
		if c, ok := colors[tag]; ok && c != "" {
			r.Dots = append(r.Dots, c)
		}
	}
	return r
}

func clock(ev model.Event, loc *time.Location) string {
	if ev.Start.IsZero() {
		return ""
	}
	return ev.Start.In(loc).Format("15:04")
}

// PopupItem is one line of the day popup.
type PopupItem struct {
	ID    int64
	Time  string
	Title string
	Tags  []string
	URL   string
}

// Popup lists every event of one day.
type Popup struct {
	Date        string
	Label       string
	HolidayName string
	Items       []PopupItem
	NewEventURL string
}

// BuildPopup lists all events sorted by start time; events without a time
// go last and ties keep their input order.
func BuildPopup(date string, events []model.Event, loc *time.Location) Popup {
	if loc == nil {
		loc = time.Local
	}
	p := Popup{
		Date:        date,
		Label:       popupLabel(date, loc),
		NewEventURL: NewEventURL(date),
		Items:       make([]PopupItem, 0, len(events)),
	}
	for _, ev := range events {
		p.Items = append(p.Items, PopupItem{
			ID:    ev.ID,
			Time:  clock(ev, loc),
			Title: ev.Title,
			Tags:  ev.Tags,
			URL:   DetailURL(ev.ID),
		})
	}
	sort.SliceStable(p.Items, func(i, j int) bool {
		return sortKey(p.Items[i].Time) < sortKey(p.Items[j].Time)
	})
	return p
}

func sortKey(t string) string {
	if t == "" {
		return untimed
	}
	return t
}

func popupLabel(date string, loc *time.Location) string {
	d, err := time.ParseInLocation(model.DayKeyLayout, date, loc)
	if err != nil {
		return date
	}
	return fmt.Sprintf("%d月%d日（%s）", int(d.Month()), d.Day(), weekdayNames[d.Weekday()])
}

// DetailURL addresses an event by its stable id.
func DetailURL(id int64) string {
	return fmt.Sprintf("/events/%d", id)
}

// NewEventURL opens the creation form with date pre-filled.
func NewEventURL(date string) string {
	if date == "" {
		return "/events/new"
	}
	return "/events/new?date=" + url.QueryEscape(date)
}

// MonthURL links the grid page of m.
func MonthURL(m calendar.Month) string {
	return fmt.Sprintf("/calendar?year=%d&month=%d#calendar", m.Year, int(m.Month))
}
