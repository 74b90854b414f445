package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"sort"
	"strings"
	"time"

	"eventcal/internal/calendar"
	"eventcal/internal/category"
	"eventcal/internal/grid"
	"eventcal/internal/ics"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
	"eventcal/internal/theme"
)

type categoriesResponse struct {
	Categories []model.Category `json:"categories"`
	Selection  string           `json:"selection"`
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.deps.Categories.List(r.Context())
	if err != nil {
		appLog.Error("api categories: list failed", err)
		writeError(w, http.StatusBadGateway, msgCategoryListFailed)
		return
	}
	if cats == nil {
		cats = []model.Category{}
	}
	writeJSON(w, http.StatusOK, categoriesResponse{Categories: cats, Selection: s.cfg.TagSelection})
}

type categoryRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// handleCreateCategory upserts one category from a JSON body or form fields.
func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "application/json" {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	} else {
		req.Name = r.FormValue("name")
		req.Color = r.FormValue("color")
	}

	c, err := s.deps.Categories.Create(r.Context(), req.Name, req.Color)
	switch {
	case errors.Is(err, category.ErrEmptyName):
		writeError(w, http.StatusBadRequest, msgCategoryNameEmpty)
	case errors.Is(err, category.ErrInvalidName):
		writeError(w, http.StatusBadRequest, msgCategoryNameBad)
	case errors.Is(err, category.ErrInvalidColor):
		writeError(w, http.StatusBadRequest, msgCategoryColorBad)
	case err != nil:
		writeError(w, http.StatusBadGateway, category.CreateFailedMessage)
	default:
		writeJSON(w, http.StatusCreated, c)
	}
}

type monthResponse struct {
	Month     string                   `json:"month"`
	Label     string                   `json:"label"`
	RangeFrom string                   `json:"range_start"`
	RangeTo   string                   `json:"range_end"`
	Timezone  string                   `json:"timezone"`
	WeekStart string                   `json:"week_start"`
	Days      map[string][]model.Event `json:"days"`
	Colors    map[string]string        `json:"colors"`
	Holidays  []string                 `json:"holidays"`
	Degraded  bool                     `json:"degraded"`
	Notice    string                   `json:"notice,omitempty"`
}

// handleMonthEvents returns the day buckets of a month.
//
// GET /api/events?year=2026&month=3
func (s *Server) handleMonthEvents(w http.ResponseWriter, r *http.Request) {
	m := s.requestMonth(r)
	data := s.deps.Calendar.Load(r.Context(), m)
	from, to := m.Range(s.loc)

	appLog.Debug("api events request", "month", m.Key(), "degraded", data.Degraded)

	writeJSON(w, http.StatusOK, monthResponse{
		Month:     m.Key(),
		Label:     m.Label(),
		RangeFrom: from.Format(time.RFC3339),
		RangeTo:   to.Format(time.RFC3339),
		Timezone:  s.loc.String(),
		WeekStart: string(s.weekStart()),
		Days:      data.Days,
		Colors:    data.Colors,
		Holidays:  data.Holidays.Dates(),
		Degraded:  data.Degraded,
		Notice:    data.Notice,
	})
}

type themeResponse struct {
	Theme   theme.Theme   `json:"theme"`
	Classes []theme.Theme `json:"classes"`
}

func (s *Server) handleTheme(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, themeResponse{Theme: s.currentTheme(), Classes: theme.All})
}

// handleICS exports one month as an iCalendar feed.
//
// GET /calendar.ics?year=2026&month=3
func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	m := s.requestMonth(r)
	data := s.deps.Calendar.Load(r.Context(), m)
	if data.Degraded && data.Total() == 0 {
		writeError(w, http.StatusServiceUnavailable, data.Notice)
		return
	}

	base := "http://" + r.Host
	if r.TLS != nil {
		base = "https://" + r.Host
	}
	host := r.Host
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="eventcal-%s.ics"`, m.Key()))
	err := ics.WriteCalendar(w, flatten(data), ics.ExportOptions{
		Name:     "eventcal " + m.Label(),
		Host:     host,
		EventURL: func(id int64) string { return base + grid.DetailURL(id) },
		Now:      s.now,
	})
	if err != nil {
		appLog.Error("ics export failed", err, "month", m.Key())
	}
}

// flatten returns the month's events in day order.
func flatten(data calendar.MonthData) []model.Event {
	keys := make([]string, 0, len(data.Days))
	for k := range data.Days {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var out []model.Event
	for _, k := range keys {
		out = append(out, data.Days[k]...)
	}
	return out
}
