// Package calendar gathers everything one month view needs: the published
// events bucketed by day, tag colors, holidays and the next upcoming event.
// Store trouble never escapes as an error; the result is marked degraded
// and carries a notice for the page instead.
package calendar

import (
	"context"
	"fmt"
	"time"

	"eventcal/internal/category"
	"eventcal/internal/holiday"
	appLog "eventcal/internal/log"
	"eventcal/internal/media"
	"eventcal/internal/mirror"
	"eventcal/internal/model"
	"eventcal/internal/store"
)

// Notices shown in place of data.
const (
	MsgStoreUnavailable = "DB未接続のためイベントを表示できません"
	MsgEventsFailed     = "イベントの取得に失敗しました"
	MsgMirrorFallback   = "保存済みのデータを表示しています"

	MsgNextUnavailable = "DB未接続のため直近イベントを表示できません"
	MsgNextFailed      = "直近イベントの取得に失敗しました"
	MsgNextNone        = "直近イベントはありません"
)

// Pinger reports whether the store handle is usable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WaitReady polls p every poll until it answers or wait elapses.
func WaitReady(ctx context.Context, p Pinger, wait, poll time.Duration) bool {
	if p == nil {
		return false
	}
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		if err := p.Ping(ctx); err == nil {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}
	}
}

// MonthData is the aggregated view model of one month.
type MonthData struct {
	Month    Month
	Days     map[string][]model.Event
	Colors   map[string]string
	Holidays holiday.Set
	Degraded bool
	Notice   string
}

// Events returns the bucket for a YYYY-MM-DD key.
func (d MonthData) Events(day string) []model.Event {
	return d.Days[day]
}

// Total counts every bucketed event.
func (d MonthData) Total() int {
	n := 0
	for _, evs := range d.Days {
		n += len(evs)
	}
	return n
}

type Options struct {
	Store    store.Store
	Holidays *holiday.Loader
	Mirror   *mirror.File
	Bucket   media.Bucket
	Location *time.Location
	Wait     time.Duration
	Poll     time.Duration
}

// Aggregator loads month data. It holds no per-month state; each Load is
// a fresh read.
type Aggregator struct {
	store    store.Store
	holidays *holiday.Loader
	mirror   *mirror.File
	bucket   media.Bucket
	loc      *time.Location
	wait     time.Duration
	poll     time.Duration
	now      func() time.Time
}

func New(opts Options) *Aggregator {
	a := &Aggregator{
		store:    opts.Store,
		holidays: opts.Holidays,
		mirror:   opts.Mirror,
		bucket:   opts.Bucket,
		loc:      opts.Location,
		wait:     opts.Wait,
		poll:     opts.Poll,
		now:      time.Now,
	}
	if a.loc == nil {
		a.loc = time.Local
	}
	if a.wait <= 0 {
		a.wait = 3 * time.Second
	}
	return a
}

func (a *Aggregator) Location() *time.Location { return a.loc }

// CurrentMonth is the month containing now.
func (a *Aggregator) CurrentMonth() Month {
	return MonthOf(a.now(), a.loc)
}

// Load fetches colors, events and holidays for m.
func (a *Aggregator) Load(ctx context.Context, m Month) MonthData {
	data := MonthData{
		Month:    m,
		Days:     map[string][]model.Event{},
		Colors:   map[string]string{},
		Holidays: holiday.Set{},
	}
	if a.holidays != nil {
		data.Holidays = a.holidays.Year(ctx, m.Year)
	}

	if !WaitReady(ctx, a.store, a.wait, a.poll) {
		appLog.Warn("store not ready, rendering degraded month", "month", m.Key(), "wait", a.wait.String())
		a.degrade(&data, MsgStoreUnavailable)
		return data
	}

	cats, err := a.store.ListCategories(ctx)
	if err != nil {
		appLog.Error("load category colors failed", err, "month", m.Key())
	} else {
		data.Colors = category.Colors(cats)
	}

	from, to := m.Range(a.loc)
	events, err := a.store.ListPublished(ctx, from, to)
	if err != nil {
		appLog.Error("load month events failed", err, "month", m.Key())
		a.degrade(&data, MsgEventsFailed)
		return data
	}
	for _, ev := range events {
		key := model.DayKey(ev.Start, a.loc)
		data.Days[key] = append(data.Days[key], ev)
	}
	appLog.Debug("month loaded", "month", m.Key(), "events", len(events), "holidays", len(data.Holidays))

	if err := a.mirror.Merge(m.Year, m.Month, data.Days); err != nil {
		appLog.Warn("mirror update failed", "month", m.Key(), "error", err.Error())
	}
	return data
}

// degrade marks data degraded and fills the days from the mirror if it has
// anything for the month.
func (a *Aggregator) degrade(data *MonthData, notice string) {
	data.Degraded = true
	data.Notice = notice
	days := a.mirror.Month(data.Month.Year, data.Month.Month)
	if len(days) == 0 {
		return
	}
	data.Days = days
	data.Notice = notice + "（" + MsgMirrorFallback + "）"
}

// RefreshMirror reloads the current month so the mirror follows the store.
func (a *Aggregator) RefreshMirror(ctx context.Context) {
	if !a.mirror.Enabled() {
		return
	}
	m := a.CurrentMonth()
	if d := a.Load(ctx, m); d.Degraded {
		appLog.Warn("mirror refresh skipped", "month", m.Key(), "notice", d.Notice)
	}
}

// NextEventView is the landing page widget.
type NextEventView struct {
	Text     string
	ImageURL string
	Event    *model.Event
}

// NextEvent finds the nearest published event starting at or after now.
func (a *Aggregator) NextEvent(ctx context.Context, now time.Time) NextEventView {
	if !WaitReady(ctx, a.store, a.wait, a.poll) {
		appLog.Warn("store not ready for next event")
		return NextEventView{Text: MsgNextUnavailable}
	}
	ev, err := a.store.NextPublished(ctx, now)
	if err != nil {
		appLog.Error("next event query failed", err)
		return NextEventView{Text: MsgNextFailed}
	}
	if ev == nil {
		return NextEventView{Text: MsgNextNone}
	}

	view := NextEventView{
		Text:  FormatNext(*ev, a.loc),
		Event: ev,
	}
	if ev.ImagePath != "" && a.bucket != nil {
		view.ImageURL = a.bucket.PublicURL(ev.ImagePath)
		if view.ImageURL == "" {
			appLog.Warn("next event image unresolved", "id", ev.ID, "path", ev.ImagePath)
		}
	}
	return view
}

// FormatNext renders "YYYY/MM/DD HH:MM  title" in loc.
func FormatNext(ev model.Event, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return fmt.Sprintf("%s  %s", ev.Start.In(loc).Format("2006/01/02 15:04"), ev.Title)
}
