package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"eventcal/internal/calendar"
	"eventcal/internal/grid"
	appLog "eventcal/internal/log"
)

const loadTimeout = 10 * time.Second

// Loader aggregates one month. *calendar.Aggregator satisfies it.
type Loader interface {
	Load(ctx context.Context, m calendar.Month) calendar.MonthData
}

type monthLoadedMsg struct {
	data calendar.MonthData
}

// Model is the terminal month view.
type Model struct {
	loader Loader
	ws     grid.WeekStart
	loc    *time.Location
	keys   KeyMap
	styles Styles

	month  calendar.Month
	today  calendar.Month
	data   calendar.MonthData
	grid   grid.Grid
	loaded bool
	cursor int
	popup  *grid.Popup

	width int
}

// New starts on the month containing now, with the cursor on today.
func New(loader Loader, ws grid.WeekStart, loc *time.Location, now time.Time) *Model {
	if loc == nil {
		loc = time.Local
	}
	m := calendar.MonthOf(now, loc)
	return &Model{
		loader: loader,
		ws:     ws,
		loc:    loc,
		keys:   DefaultKeyMap(),
		styles: NewStyles(),
		month:  m,
		today:  m,
		cursor: now.In(loc).Day(),
	}
}

func (m *Model) Init() tea.Cmd {
	return m.load()
}

func (m *Model) load() tea.Cmd {
	loader, month := m.loader, m.month
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		return monthLoadedMsg{data: loader.Load(ctx, month)}
	}
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case monthLoadedMsg:
		// A response for a month the user already left is dropped.
		if msg.data.Month != m.month {
			appLog.Debug("tui: dropping stale month", "month", msg.data.Month.Key(), "showing", m.month.Key())
			return m, nil
		}
		m.data = msg.data
		m.grid = grid.Build(msg.data, m.ws, m.loc)
		m.loaded = true
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}

	if m.popup != nil {
		if key.Matches(msg, m.keys.Back) || key.Matches(msg, m.keys.Enter) {
			m.popup = nil
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.PrevMonth):
		return m.showMonth(m.month.Prev())
	case key.Matches(msg, m.keys.NextMonth):
		return m.showMonth(m.month.Next())
	case key.Matches(msg, m.keys.Today):
		return m.showMonth(m.today)
	case key.Matches(msg, m.keys.Left):
		m.moveCursor(-1)
	case key.Matches(msg, m.keys.Right):
		m.moveCursor(1)
	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-7)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(7)
	case key.Matches(msg, m.keys.Enter):
		m.openPopup()
	}
	return m, nil
}

func (m *Model) showMonth(month calendar.Month) (tea.Model, tea.Cmd) {
	m.month = month
	m.loaded = false
	m.popup = nil
	if m.cursor > month.Days() {
		m.cursor = month.Days()
	}
	return m, m.load()
}

func (m *Model) moveCursor(delta int) {
	next := m.cursor + delta
	if next < 1 || next > m.month.Days() {
		return
	}
	m.cursor = next
}

// openPopup shows the cursor day when it has events.
func (m *Model) openPopup() {
	if !m.loaded {
		return
	}
	cell, ok := m.grid.Cell(m.cursor)
	if !ok || cell.Empty() {
		return
	}
	p := grid.BuildPopup(cell.Date, m.data.Events(cell.Date), m.loc)
	p.HolidayName = cell.HolidayName
	m.popup = &p
}

// Month is the month on screen.
func (m *Model) Month() calendar.Month { return m.month }

// Cursor is the highlighted day.
func (m *Model) Cursor() int { return m.cursor }

// PopupOpen reports whether the day list is showing.
func (m *Model) PopupOpen() bool { return m.popup != nil }

func (m *Model) View() string {
	if !m.loaded {
		return m.styles.Muted.Render(m.month.Label()+" を読み込み中...") + "\n"
	}
	body := Render(m.grid, m.cursor, m.width, m.styles)
	if m.popup != nil {
		body = lipgloss.JoinVertical(lipgloss.Left, body, RenderPopup(*m.popup, m.width, m.styles))
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, RenderHelp(m.keys.ShortHelp(), m.styles))
}

// Run blocks until the user quits or ctx is done.
func Run(ctx context.Context, model *Model) error {
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}
