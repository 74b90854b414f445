package ics

import (
	"fmt"
	"io"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"eventcal/internal/model"
)

const ProductID = "-//eventcal//Event Calendar//JA"

// ExportOptions controls the generated feed.
type ExportOptions struct {
	// Name is written as X-WR-CALNAME.
	Name string
	// Host qualifies event UIDs (<id>@<host>).
	Host string
	// EventURL, when set, builds the URL property for each event.
	EventURL func(id int64) string
	// Now stamps DTSTAMP; time.Now when nil.
	Now func() time.Time
}

// WriteCalendar serialises events as a VCALENDAR. Events without an end are
// written with a one-hour duration.
func WriteCalendar(w io.Writer, events []model.Event, opts ExportOptions) error {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	host := opts.Host
	if host == "" {
		host = "eventcal"
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId(ProductID)
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	stamp := now().UTC()
	for _, ev := range events {
		if !ev.Published() {
			continue
		}
		ve := cal.AddEvent(fmt.Sprintf("%d@%s", ev.ID, host))
		ve.SetDtStampTime(stamp)
		ve.SetStartAt(ev.Start.UTC())
		end := ev.Start.Add(time.Hour)
		if ev.End != nil {
			end = *ev.End
		}
		ve.SetEndAt(end.UTC())
		ve.SetSummary(ev.Title)
		if ev.Detail != "" {
			ve.SetDescription(ev.Detail)
		}
		if len(ev.Tags) > 0 {
			ve.SetProperty(ical.ComponentPropertyCategories, strings.Join(ev.Tags, ","))
		}
		if opts.EventURL != nil {
			ve.SetURL(opts.EventURL(ev.ID))
		}
	}

	_, err := io.WriteString(w, cal.Serialize())
	return err
}
