package ics

import (
	"bytes"
	"errors"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "eventcal/internal/log"
)

// DatedEntry is a VEVENT reduced to the calendar date it starts on.
type DatedEntry struct {
	Date    string // YYYY-MM-DD in the event's own timezone
	Summary string
}

// ParseDates parses an ICS payload and returns one entry per VEVENT that has
// a usable DTSTART. Events that fail to parse are logged and skipped.
func ParseDates(body []byte) ([]DatedEntry, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	entries := make([]DatedEntry, 0)
	for _, ve := range cal.Events() {
		entry, perr := parseVEvent(ve)
		if perr != nil {
			appLog.Debug("ics vevent skipped", "err", perr)
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func parseVEvent(ve *ical.VEvent) (DatedEntry, error) {
	var out DatedEntry

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil || strings.TrimSpace(dtStart.Value) == "" {
		return out, errors.New("missing DTSTART")
	}

	loc := time.Local
	if params := dtStart.ICalParameters; params != nil {
		if tzs, ok := params["TZID"]; ok && len(tzs) > 0 {
			if l, err := time.LoadLocation(tzs[0]); err == nil {
				loc = l
			}
		}
	}

	t, err := parseICSTime(dtStart.Value, loc)
	if err != nil {
		return out, err
	}
	out.Date = t.Format("2006-01-02")
	return out, nil
}

// parseICSTime parses DATE, local DATE-TIME and UTC DATE-TIME values.
// UTC values are kept in UTC; the other forms are read in loc.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	// 20260101T090000Z
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}
	// 20260101T090000
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}
	// 20260101
	return time.ParseInLocation("20060102", v, loc)
}
