package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"eventcal/internal/grid"
)

// MaxWidth caps the grid on wide terminals.
const MaxWidth = 112

const dot = "●"

var (
	colorFg      = lipgloss.Color("#c0caf5")
	colorDim     = lipgloss.Color("#565f89")
	colorPrimary = lipgloss.Color("#7aa2f7")
	colorHoliday = lipgloss.Color("#f7768e")
	colorBorder  = lipgloss.Color("#3b4261")
	colorSelect  = lipgloss.Color("#33467c")
)

// Styles holds the pre-computed styles of the month view.
type Styles struct {
	Title    lipgloss.Style
	Notice   lipgloss.Style
	Weekday  lipgloss.Style
	Cell     lipgloss.Style
	Cursor   lipgloss.Style
	DayNum   lipgloss.Style
	Holiday  lipgloss.Style
	Muted    lipgloss.Style
	Popup    lipgloss.Style
	HelpKey  lipgloss.Style
	HelpDesc lipgloss.Style
}

func NewStyles() Styles {
	return Styles{
		Title:    lipgloss.NewStyle().Foreground(colorPrimary).Bold(true),
		Notice:   lipgloss.NewStyle().Foreground(colorHoliday),
		Weekday:  lipgloss.NewStyle().Foreground(colorDim).Bold(true).Align(lipgloss.Center),
		Cell:     lipgloss.NewStyle().Foreground(colorFg),
		Cursor:   lipgloss.NewStyle().Foreground(colorFg).Background(colorSelect),
		DayNum:   lipgloss.NewStyle().Foreground(colorFg).Bold(true),
		Holiday:  lipgloss.NewStyle().Foreground(colorHoliday).Bold(true),
		Muted:    lipgloss.NewStyle().Foreground(colorDim),
		Popup:    lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorBorder).Padding(0, 1),
		HelpKey:  lipgloss.NewStyle().Foreground(colorPrimary).Bold(true),
		HelpDesc: lipgloss.NewStyle().Foreground(colorDim),
	}
}

// cellHeight is the day number, MaxRows event lines and the hidden count.
const cellHeight = 1 + grid.MaxRows + 1

// Render draws g at width columns. cursor is the highlighted day (0 for
// none).
func Render(g grid.Grid, cursor, width int, st Styles) string {
	if width <= 0 || width > MaxWidth {
		width = MaxWidth
	}
	cw := width / 7
	if cw < 6 {
		cw = 6
	}

	var b strings.Builder
	b.WriteString(lipgloss.PlaceHorizontal(cw*7, lipgloss.Center, st.Title.Render(g.Label)))
	b.WriteString("\n")
	if g.Notice != "" {
		b.WriteString(st.Notice.Render(g.Notice))
		b.WriteString("\n")
	}

	header := make([]string, 0, 7)
	for _, w := range g.Weekdays {
		header = append(header, st.Weekday.Width(cw).Render(w))
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, header...))
	b.WriteString("\n")

	blank := st.Cell.Width(cw).Height(cellHeight).Render("")
	week := make([]string, 0, 7)
	for i := 0; i < g.Leading; i++ {
		week = append(week, blank)
	}
	for _, c := range g.Cells {
		week = append(week, renderCell(c, c.Day == cursor, cw, st))
		if len(week) == 7 {
			b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, week...))
			b.WriteString("\n")
			week = week[:0]
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, blank)
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, week...))
		b.WriteString("\n")
	}
	return b.String()
}

func renderCell(c grid.Cell, selected bool, cw int, st Styles) string {
	base := st.Cell
	if selected {
		base = st.Cursor
	}
	inner := cw - 1

	num := st.DayNum.Render(fmt.Sprintf("%2d", c.Day))
	if c.Holiday {
		num = st.Holiday.Render(fmt.Sprintf("%2d", c.Day))
	}
	lines := []string{num}

	for _, r := range c.Rows {
		var marks strings.Builder
		used := 0
		for _, color := range r.Dots {
			marks.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(dot))
			used += runewidth.StringWidth(dot)
		}
		if r.Overflow > 0 {
			more := fmt.Sprintf("+%d", r.Overflow)
			marks.WriteString(st.Muted.Render(more))
			used += len(more)
		}
		if used > 0 {
			marks.WriteString(" ")
			used++
		}
		title := runewidth.Truncate(r.Label, max(inner-used, 1), "…")
		lines = append(lines, marks.String()+title)
	}
	if more := c.More(); more > 0 {
		lines = append(lines, st.Muted.Render(fmt.Sprintf("他%d件", more)))
	}

	return base.Width(cw).Height(cellHeight).MaxHeight(cellHeight).Render(strings.Join(lines, "\n"))
}

// RenderPopup lists every event of one day.
func RenderPopup(p grid.Popup, width int, st Styles) string {
	lines := []string{st.Title.Render(p.Label)}
	if p.HolidayName != "" {
		lines = append(lines, st.Holiday.Render(p.HolidayName))
	}
	if len(p.Items) == 0 {
		lines = append(lines, st.Muted.Render("予定はありません"))
	}
	for _, it := range p.Items {
		t := it.Time
		if t == "" {
			t = "--:--"
		}
		lines = append(lines, fmt.Sprintf("%s  %s  %s", t, it.Title, st.Muted.Render(it.URL)))
	}
	lines = append(lines, "", st.Muted.Render("新規: "+p.NewEventURL))

	w := width - 4
	if w > 60 {
		w = 60
	}
	return st.Popup.Width(max(w, 20)).Render(strings.Join(lines, "\n"))
}

// RenderHelp draws the key hints.
func RenderHelp(bindings []key.Binding, st Styles) string {
	parts := make([]string, 0, len(bindings))
	for _, kb := range bindings {
		h := kb.Help()
		parts = append(parts, st.HelpKey.Render(h.Key)+" "+st.HelpDesc.Render(h.Desc))
	}
	return strings.Join(parts, "  ")
}
