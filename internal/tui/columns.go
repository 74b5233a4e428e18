package tui

import (
	"fmt"
	"strings"

	"dispatch-cli/internal/board"
	"dispatch-cli/internal/model"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"
)

type columnKind int

const (
	columnUnassigned columnKind = iota
	columnLane
	columnCompleted
)

type boardColumn struct {
	kind  columnKind
	crew  model.Crew
	label string
	cards []model.WorkOrder
}

// dropTarget reports whether a held card can be dropped on the column.
func (c boardColumn) dropTarget() bool { return c.kind == columnLane }

type boardSelection struct {
	Col int
	Row int
	// ID is the selected work order; it wins over Row after a refresh.
	ID string
}

type boardColumns []boardColumn

// buildColumns lays out Unassigned, one lane per visible crew, then Completed.
func buildColumns(s model.BoardSnapshot) boardColumns {
	lanes := board.VisibleLanes(s)
	cols := make(boardColumns, 0, len(lanes)+2)
	cols = append(cols, boardColumn{kind: columnUnassigned, label: "Unassigned", cards: s.WorkOrders.Unassigned})
	for _, l := range lanes {
		cols = append(cols, boardColumn{kind: columnLane, crew: l.Crew, label: l.Crew.Label(), cards: l.WorkOrders})
	}
	cols = append(cols, boardColumn{kind: columnCompleted, label: "Completed", cards: s.WorkOrders.Completed})
	return cols
}

func (cols boardColumns) indexOf(id string) (int, int, bool) {
	if id == "" {
		return 0, 0, false
	}
	for ci, c := range cols {
		for ri, wo := range c.cards {
			if wo.ID == id {
				return ci, ri, true
			}
		}
	}
	return 0, 0, false
}

// clamp keeps sel inside the board, following the selected id if it moved.
func (cols boardColumns) clamp(sel boardSelection) boardSelection {
	if len(cols) == 0 {
		return boardSelection{}
	}
	if ci, ri, ok := cols.indexOf(sel.ID); ok {
		return boardSelection{Col: ci, Row: ri, ID: sel.ID}
	}
	sel.Col = min(max(sel.Col, 0), len(cols)-1)
	n := len(cols[sel.Col].cards)
	if n == 0 {
		return boardSelection{Col: sel.Col}
	}
	sel.Row = min(max(sel.Row, 0), n-1)
	sel.ID = cols[sel.Col].cards[sel.Row].ID
	return sel
}

func (cols boardColumns) selected(sel boardSelection) (model.WorkOrder, bool) {
	sel = cols.clamp(sel)
	if len(cols) == 0 || len(cols[sel.Col].cards) == 0 {
		return model.WorkOrder{}, false
	}
	return cols[sel.Col].cards[sel.Row], true
}

type boardRender struct {
	cols boardColumns
	sel  boardSelection
	// held is the card being dragged, if any; the selected column is then
	// the drop cursor.
	held *model.WorkOrder
}

func renderBoard(r boardRender, width, height int) string {
	n := len(r.cols)
	if n == 0 || width <= 0 {
		return normalizePane("", width, height)
	}
	sel := r.cols.clamp(r.sel)

	gap := 1
	colW := (width - gap*(n-1)) / n
	if colW < 12 {
		colW = 12
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(colorSurfaceFg).Background(colorControlBg)
	headerSelected := lipgloss.NewStyle().Bold(true).Foreground(colorSelectedFg).Background(colorSelectedBg)
	headerDrop := lipgloss.NewStyle().Bold(true).Foreground(colorAccentFg).Background(colorDropBg)

	renderCol := func(ci int, c boardColumn) string {
		head := fmt.Sprintf("%s (%d)", c.label, len(c.cards))
		if c.kind == columnLane && c.crew.Availability == model.AvailabilityBusy {
			head += " ●"
		}
		hs := headerStyle
		switch {
		case r.held != nil && ci == sel.Col && c.dropTarget():
			hs = headerDrop
			head = "▼ " + head
		case ci == sel.Col:
			hs = headerSelected
		}
		lines := []string{hs.Width(colW).Render(truncateText(head, colW))}

		if len(c.cards) == 0 {
			lines = append(lines, styleMuted().Render("(empty)"))
			return normalizePane(strings.Join(lines, "\n"), colW, height)
		}
		lines = append(lines, "")
		for ri, wo := range c.cards {
			selected := r.held == nil && ci == sel.Col && ri == sel.Row
			held := r.held != nil && r.held.ID == wo.ID
			lines = append(lines, renderCard(wo, colW, selected, held)...)
			if ri < len(c.cards)-1 {
				lines = append(lines, styleMuted().Render(" "+strings.Repeat("─", max(colW-2, 0))))
			}
		}
		return normalizePane(strings.Join(lines, "\n"), colW, height)
	}

	rendered := make([]string, 0, n*2)
	for ci, c := range r.cols {
		if ci > 0 {
			rendered = append(rendered, normalizePane("", gap, height))
		}
		rendered = append(rendered, renderCol(ci, c))
	}
	return normalizePane(lipgloss.JoinHorizontal(lipgloss.Top, rendered...), width, height)
}

// renderCard is two lines: a priority mark with the customer, then the
// schedule and status.
func renderCard(wo model.WorkOrder, colW int, selected, held bool) []string {
	innerW := max(colW-2, 1)

	mark := "  "
	markStyle := lipgloss.NewStyle()
	switch wo.Priority {
	case model.PriorityUrgent:
		mark, markStyle = "!!", markStyle.Foreground(colorUrgent).Bold(true)
	case model.PriorityHigh:
		mark, markStyle = "! ", markStyle.Foreground(colorHigh)
	}
	if held {
		mark, markStyle = "◆ ", markStyle.Foreground(colorAccent).Bold(true)
	}

	title := strings.TrimSpace(wo.CustomerName)
	if title == "" {
		title = wo.ID
	}
	titleStyle := lipgloss.NewStyle().Bold(true)
	if wo.Status == model.StatusCompleted {
		titleStyle = faintIfDark(lipgloss.NewStyle()).Foreground(colorMuted).Strikethrough(true)
	}
	first := markStyle.Render(mark) + titleStyle.Render(truncateText(title, innerW-xansi.StringWidth(mark)))

	meta := cardSchedule(wo)
	metaStyle := styleMuted()
	switch {
	case wo.Status == model.StatusInProgress:
		meta = "▶ " + meta
		metaStyle = lipgloss.NewStyle().Foreground(colorBusy)
	case wo.WeatherTriggered:
		meta = "☂ " + meta
		metaStyle = lipgloss.NewStyle().Foreground(colorWeather)
	}
	second := "  " + metaStyle.Render(truncateText(meta, innerW-2))

	st := lipgloss.NewStyle().Width(colW).Padding(0, 1)
	if selected || held {
		st = st.Foreground(colorSelectedFg).Background(colorSelectedBg)
	}
	return strings.Split(st.Render(normalizePane(first+"\n"+second, innerW, 2)), "\n")
}

func cardSchedule(wo model.WorkOrder) string {
	if !wo.HasSchedule() {
		return fmt.Sprintf("unscheduled · %.1fh", wo.EstimatedDurationHours)
	}
	start := wo.ScheduledStart.Local()
	s := start.Format("Jan 2 15:04")
	if wo.ScheduledEnd != nil {
		s += "–" + wo.ScheduledEnd.Local().Format("15:04")
	}
	return s
}
