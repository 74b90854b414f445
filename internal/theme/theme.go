package theme

import (
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	appLog "eventcal/internal/log"
)

type Theme string

const (
	Morning Theme = "morning"
	Day     Theme = "day"
	Evening Theme = "evening"
	Night   Theme = "night"
)

// All lists every theme class; a page body carries exactly one of them.
var All = []Theme{Morning, Day, Evening, Night}

// ForHour maps a local hour (0-23) to its theme:
// 5-8 morning, 9-15 day, 16-18 evening, otherwise night.
func ForHour(h int) Theme {
	switch {
	case h >= 5 && h <= 8:
		return Morning
	case h >= 9 && h <= 15:
		return Day
	case h >= 16 && h <= 18:
		return Evening
	default:
		return Night
	}
}

// At evaluates the theme for t in loc.
func At(t time.Time, loc *time.Location) Theme {
	if loc == nil {
		loc = time.Local
	}
	return ForHour(t.In(loc).Hour())
}

// Applier holds the current theme and re-evaluates it once a minute.
type Applier struct {
	loc     *time.Location
	now     func() time.Time
	current atomic.Value // Theme
}

func NewApplier(loc *time.Location) *Applier {
	a := &Applier{loc: loc, now: time.Now}
	a.Apply()
	return a
}

// Apply recomputes the theme from the wall clock and returns it.
func (a *Applier) Apply() Theme {
	t := At(a.now(), a.loc)
	if prev, _ := a.current.Load().(Theme); prev != t {
		appLog.Debug("theme changed", "from", string(prev), "to", string(t))
	}
	a.current.Store(t)
	return t
}

func (a *Applier) Current() Theme {
	if t, ok := a.current.Load().(Theme); ok {
		return t
	}
	return a.Apply()
}

// Schedule registers the one-minute re-evaluation on c.
func (a *Applier) Schedule(c *cron.Cron) (cron.EntryID, error) {
	return c.AddFunc("@every 1m", func() { a.Apply() })
}
