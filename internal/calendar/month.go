package calendar

import (
	"fmt"
	"strconv"
	"time"
)

// Month is the visible calendar month.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the month containing t in loc.
func MonthOf(t time.Time, loc *time.Location) Month {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth reads ?year=&month= style values. Anything missing or out of
// range falls back to def.
func ParseMonth(year, month string, def Month) Month {
	y, err := strconv.Atoi(year)
	if err != nil || y < 1 || y > 9999 {
		return def
	}
	m, err := strconv.Atoi(month)
	if err != nil || m < 1 || m > 12 {
		return def
	}
	return Month{Year: y, Month: time.Month(m)}
}

func (m Month) Prev() Month {
	if m.Month == time.January {
		return Month{Year: m.Year - 1, Month: time.December}
	}
	return Month{Year: m.Year, Month: m.Month - 1}
}

func (m Month) Next() Month {
	if m.Month == time.December {
		return Month{Year: m.Year + 1, Month: time.January}
	}
	return Month{Year: m.Year, Month: m.Month + 1}
}

// First is midnight on the first day of the month in loc.
func (m Month) First(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, loc)
}

// Range is the half-open interval [first of month, first of next month).
func (m Month) Range(loc *time.Location) (from, to time.Time) {
	return m.First(loc), m.Next().First(loc)
}

// Days is the number of days in the month.
func (m Month) Days() int {
	return time.Date(m.Year, m.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Label is the heading shown above the grid, e.g. "2026年3月".
func (m Month) Label() string {
	return fmt.Sprintf("%d年%d月", m.Year, int(m.Month))
}

// Key is YYYY-MM.
func (m Month) Key() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}
