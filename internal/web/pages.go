package web

import (
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"eventcal/internal/calendar"
	"eventcal/internal/category"
	"eventcal/internal/form"
	"eventcal/internal/grid"
	appLog "eventcal/internal/log"
	"eventcal/internal/model"
	"eventcal/internal/store"
)

// maxUploadBytes bounds the multipart body of the creation form.
const maxUploadBytes = 10 << 20

const (
	msgCategoryListFailed = "カテゴリの取得に失敗しました"
	msgCategoryNameEmpty  = "カテゴリ名を入力してください"
	msgCategoryNameBad    = "カテゴリ名に「,」は使えません"
	msgCategoryColorBad   = "色は #rgb または #rrggbb で指定してください"
	msgInvalidDate        = "日付の形式が正しくありません"
	msgEventNotFound      = "イベントが見つかりません"
	msgEventLoadFailed    = "イベントの取得に失敗しました"
)

type indexView struct {
	Next      calendar.NextEventView
	MonthURL  string
	NewURL    string
	DetailURL string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	v := indexView{
		Next:     s.deps.Calendar.NextEvent(r.Context(), now),
		MonthURL: grid.MonthURL(calendar.MonthOf(now, s.loc)),
		NewURL:   grid.NewEventURL(""),
	}
	if v.Next.Event != nil {
		v.DetailURL = grid.DetailURL(v.Next.Event.ID)
	}
	s.render(w, http.StatusOK, "index.html", "イベントカレンダー", v)
}

type calendarView struct {
	Grid    grid.Grid
	PrevURL string
	NextURL string
	Today   string
	Popup   *grid.Popup
}

func (s *Server) weekStart() grid.WeekStart {
	if s.cfg.SundayStart() {
		return grid.Sunday
	}
	return grid.Monday
}

func (s *Server) monthView(r *http.Request, m calendar.Month) (calendarView, calendar.MonthData) {
	data := s.deps.Calendar.Load(r.Context(), m)
	g := grid.Build(data, s.weekStart(), s.loc)
	return calendarView{
		Grid:    g,
		PrevURL: grid.MonthURL(g.Prev),
		NextURL: grid.MonthURL(g.Next),
		Today:   model.DayKey(s.now(), s.loc),
	}, data
}

func (s *Server) requestMonth(r *http.Request) calendar.Month {
	q := r.URL.Query()
	return calendar.ParseMonth(q.Get("year"), q.Get("month"), calendar.MonthOf(s.now(), s.loc))
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	v, _ := s.monthView(r, s.requestMonth(r))
	s.render(w, http.StatusOK, "calendar.html", v.Grid.Label, v)
}

// handleDay renders the popup of one day. With ?partial=1 only the popup
// fragment is returned, for the grid's click handler.
func (s *Server) handleDay(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	day, err := time.ParseInLocation(model.DayKeyLayout, date, s.loc)
	if err != nil {
		s.renderNotice(w, http.StatusBadRequest, msgInvalidDate)
		return
	}

	v, data := s.monthView(r, calendar.MonthOf(day, s.loc))
	popup := grid.BuildPopup(date, data.Events(date), s.loc)
	popup.HolidayName = data.Holidays.Name(date)
	v.Popup = &popup

	if r.URL.Query().Get("partial") == "1" {
		s.renderTemplate(w, http.StatusOK, "calendar.html", "popup", popup)
		return
	}
	s.render(w, http.StatusOK, "calendar.html", popup.Label, v)
}

type newEventView struct {
	Form   form.Submission
	Chips  []category.Chip
	Multi  bool
	Token  string
	Alert  string
	Notice string

	// Pending category input, kept when adding a category fails.
	CategoryName  string
	CategoryColor string
}

// newEventView loads the category chips and restores the given selection.
func (s *Server) newEventView(r *http.Request, sub form.Submission, token string) (newEventView, *category.Chips) {
	v := newEventView{
		Form:          sub,
		Token:         token,
		CategoryColor: category.DefaultColor,
	}
	if v.Token == "" {
		v.Token = uuid.NewString()
	}
	cats, err := s.deps.Categories.List(r.Context())
	if err != nil {
		appLog.Error("load categories for form failed", err)
		v.Notice = msgCategoryListFailed
	}
	chips := category.NewChips(cats, s.cfg.MultiSelect())
	chips.Restore(sub.Tags)
	v.Chips = chips.Items()
	v.Multi = chips.Multi()
	return v, chips
}

func (s *Server) handleNewEvent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sub := form.Submission{Tags: q["tag"]}
	if d := q.Get("date"); d != "" {
		if _, err := time.Parse(model.DayKeyLayout, d); err == nil {
			sub.Date = d
		}
	}
	// Seed on every page load; a recolored seed goes back to its default.
	if err := s.deps.Categories.Seed(r.Context()); err != nil {
		appLog.Warn("seeding categories on page load failed", "error", err.Error())
	}
	v, _ := s.newEventView(r, sub, "")
	s.render(w, http.StatusOK, "new.html", "イベント登録", v)
}

// readSubmission parses the creation form. The image part is left open;
// the caller closes it through the returned func.
func readSubmission(w http.ResponseWriter, r *http.Request) (form.Submission, string, func(), error) {
	noop := func() {}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return form.Submission{}, "", noop, err
	}

	sub := form.Submission{
		Title:   r.FormValue("title"),
		Date:    r.FormValue("date"),
		Time:    r.FormValue("time"),
		EndTime: r.FormValue("end_time"),
		Detail:  r.FormValue("detail"),
		Tags:    r.Form["tag"],
	}
	token := r.FormValue("token")

	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
		return sub, token, noop, nil
	case err != nil:
		return sub, token, noop, err
	}
	if header.Size == 0 && header.Filename == "" {
		file.Close()
		return sub, token, noop, nil
	}
	sub.Image = &form.Image{
		Filename:    header.Filename,
		ContentType: contentType(header),
		Body:        file,
	}
	return sub, token, func() { file.Close() }, nil
}

func contentType(h *multipart.FileHeader) string {
	if ct := h.Header.Get("Content-Type"); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	sub, token, closeImage, err := readSubmission(w, r)
	defer closeImage()
	if err != nil {
		appLog.Warn("creation form unreadable", "error", err.Error())
		v, _ := s.newEventView(r, sub.Normalized(), token)
		v.Alert = form.MsgUploadFailed
		s.render(w, http.StatusBadRequest, "new.html", "イベント登録", v)
		return
	}

	ev, err := s.deps.Forms.Submit(r.Context(), token, sub)
	if err != nil {
		status := http.StatusBadGateway
		var ve *form.ValidationError
		switch {
		case errors.As(err, &ve):
			status = http.StatusBadRequest
		case errors.Is(err, form.ErrInFlight):
			status = http.StatusConflict
		}
		sub.Image = nil
		v, _ := s.newEventView(r, sub.Normalized(), token)
		v.Alert = form.AlertMessage(err)
		s.render(w, status, "new.html", "イベント登録", v)
		return
	}

	http.Redirect(w, r, grid.MonthURL(calendar.MonthOf(ev.Start, s.loc)), http.StatusSeeOther)
}

// handleCategoryForm handles the add-category button of the creation form.
// The whole form is posted so every field survives the round trip; the new
// chip is appended (or recolored) and selected.
func (s *Server) handleCategoryForm(w http.ResponseWriter, r *http.Request) {
	sub, token, closeImage, err := readSubmission(w, r)
	defer closeImage()
	sub.Image = nil
	if err != nil {
		appLog.Warn("category form unreadable", "error", err.Error())
	}
	name := r.FormValue("category_name")
	color := r.FormValue("category_color")

	created, err := s.deps.Categories.Create(r.Context(), name, color)
	if err != nil {
		v, _ := s.newEventView(r, sub.Normalized(), token)
		v.CategoryName, v.CategoryColor = name, color
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, category.ErrEmptyName):
			status, v.Alert = http.StatusBadRequest, msgCategoryNameEmpty
		case errors.Is(err, category.ErrInvalidName):
			status, v.Alert = http.StatusBadRequest, msgCategoryNameBad
		case errors.Is(err, category.ErrInvalidColor):
			status, v.Alert = http.StatusBadRequest, msgCategoryColorBad
		default:
			v.Alert = category.CreateFailedMessage
		}
		s.render(w, status, "new.html", "イベント登録", v)
		return
	}

	v, chips := s.newEventView(r, sub.Normalized(), token)
	chips.Apply(created)
	v.Chips = chips.Items()
	s.render(w, http.StatusOK, "new.html", "イベント登録", v)
}

type detailView struct {
	Event    model.Event
	Start    string
	End      string
	Colors   map[string]string
	ImageURL string
	BackURL  string
}

func (s *Server) handleEventDetail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		s.renderNotice(w, http.StatusNotFound, msgEventNotFound)
		return
	}
	ev, err := s.deps.Store.GetEvent(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.renderNotice(w, http.StatusNotFound, msgEventNotFound)
		return
	case err != nil:
		appLog.Error("load event failed", err, "id", id)
		s.renderNotice(w, http.StatusBadGateway, msgEventLoadFailed)
		return
	}

	v := detailView{
		Event:   ev,
		Start:   ev.Start.In(s.loc).Format("2006/01/02 15:04"),
		BackURL: grid.MonthURL(calendar.MonthOf(ev.Start, s.loc)),
	}
	if ev.End != nil {
		v.End = ev.End.In(s.loc).Format("15:04")
	}
	if cats, err := s.deps.Categories.List(r.Context()); err == nil {
		v.Colors = category.Colors(cats)
	}
	if ev.ImagePath != "" && s.deps.Bucket != nil {
		v.ImageURL = s.deps.Bucket.PublicURL(ev.ImagePath)
	}
	s.render(w, http.StatusOK, "detail.html", ev.Title, v)
}

func (s *Server) renderNotice(w http.ResponseWriter, status int, msg string) {
	s.render(w, status, "notice.html", msg, msg)
}
