package tui

import (
	"fmt"
	"strings"

	"dispatch-cli/internal/board"
	"dispatch-cli/internal/drag"
	"dispatch-cli/internal/format"

	"github.com/charmbracelet/lipgloss"
)

func (m boardModel) View() string {
	w, h := m.width, m.height
	if w <= 0 || h <= 0 {
		w, h = 120, 32
	}

	header := m.viewHeader(w)
	footer := m.viewFooter(w)
	helpView := m.help.View(m.keys)
	bodyH := h - lipgloss.Height(header) - lipgloss.Height(footer) - lipgloss.Height(helpView)
	if bodyH < 3 {
		bodyH = 3
	}

	var body string
	switch {
	case !m.state.Loaded && m.state.Err != nil:
		body = lipgloss.NewStyle().Foreground(colorUrgent).Render("Could not load the board: "+m.state.Err.Error()) +
			"\n" + styleMuted().Render("Press r to retry.")
	case !m.state.Loaded:
		body = m.spin.View() + " Loading board…"
	case m.confirm != nil:
		body = lipgloss.Place(w, bodyH, lipgloss.Center, lipgloss.Center, renderConfirm(m.confirm.prompt, min(60, w-4)))
	default:
		body = m.viewBoard(w, bodyH)
	}
	body = normalizePane(body, w, bodyH)

	return strings.Join([]string{header, body, footer, helpView}, "\n")
}

func (m boardModel) viewHeader(width int) string {
	title := lipgloss.NewStyle().Bold(true).Render(fmt.Sprintf("Dispatch · %s (%s)", m.state.Date, m.state.View))

	var status []string
	if m.state.Loading && m.state.Loaded {
		status = append(status, "refreshing…")
	}
	switch m.ctrl.Phase() {
	case drag.Dragging:
		if wo, ok := m.ctrl.Dragged(); ok {
			status = append(status, "holding "+wo.ID+" · enter to drop, esc to cancel")
		}
	case drag.Submitting:
		status = append(status, fmt.Sprintf("saving (%d)…", m.ctrl.Pending()))
	}
	right := styleMuted().Render(strings.Join(status, " · "))

	gap := width - lipgloss.Width(title) - lipgloss.Width(right)
	if gap < 1 {
		gap = 1
	}
	return truncateText(title+strings.Repeat(" ", gap)+right, width)
}

func (m boardModel) viewBoard(width, height int) string {
	r := boardRender{cols: m.cols, sel: m.sel}
	if wo, ok := m.ctrl.Dragged(); ok {
		r.held = &wo
	}

	wo, ok := m.cols.selected(m.sel)
	if !m.showDetail || !ok || r.held != nil {
		return renderBoard(r, width, height)
	}
	paneW := min(48, width/3)
	detail := lipgloss.NewStyle().
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(colorMuted).
		PaddingLeft(1).
		Render(normalizePane(renderMarkdown(format.WorkOrderMarkdown(wo), paneW-2), paneW-2, height))
	return lipgloss.JoinHorizontal(lipgloss.Top, renderBoard(r, width-paneW, height), detail)
}

func (m boardModel) viewFooter(width int) string {
	lines := []string{}
	if m.state.Loaded {
		summary := format.SummaryLine(m.state.Snapshot.Summary)
		if n := board.HiddenCrews(m.state.Snapshot); n > 0 {
			summary += fmt.Sprintf(" · %d more %s without a lane", n, pluralize(n, "crew", "crews"))
		}
		lines = append(lines, styleMuted().Render(truncateText(summary, width)))
	}
	if n := len(m.state.Warnings); n > 0 {
		warn := "⚠ " + m.state.Warnings[0]
		if n > 1 {
			warn += fmt.Sprintf(" (+%d more)", n-1)
		}
		lines = append(lines, lipgloss.NewStyle().Foreground(colorWarnFg).Render(truncateText(warn, width)))
	}
	if m.state.Loaded && m.state.Err != nil {
		lines = append(lines, lipgloss.NewStyle().Foreground(colorUrgent).Render(truncateText("Refresh failed: "+m.state.Err.Error(), width)))
	}
	if m.note != nil {
		lines = append(lines, renderNote(*m.note, width))
	}
	return strings.Join(lines, "\n")
}

func renderNote(n noteMsg, width int) string {
	st := lipgloss.NewStyle()
	switch n.level {
	case noteAlert:
		st = st.Foreground(colorAccentFg).Background(colorAlertBg).Bold(true).Padding(0, 1)
	case noteWarn:
		st = st.Foreground(colorWarnFg).Bold(true)
	default:
		st = st.Foreground(colorInfoFg)
	}
	return st.Render(truncateText(n.text, width-2))
}

func renderConfirm(prompt string, width int) string {
	if width < 20 {
		width = 20
	}
	btn := lipgloss.NewStyle().Padding(0, 1).Foreground(colorSurfaceFg).Background(colorControlBg)
	btnActive := btn.Foreground(colorSelectedFg).Background(colorSelectedBg).Bold(true)
	controls := lipgloss.JoinHorizontal(lipgloss.Top, btnActive.Render("y: confirm"), " ", btn.Render("n: cancel"))

	body := lipgloss.NewStyle().Width(width - 4).Render(prompt)
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(colorAccent).
		Padding(1, 2).
		Render(lipgloss.NewStyle().Bold(true).Render("Confirm") + "\n\n" + body + "\n\n" + controls)
}

func pluralize(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
