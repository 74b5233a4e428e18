package format

import (
	"fmt"
	"strings"
	"time"

	"dispatch-cli/internal/model"
)

// TimeLayout is how schedule times are shown to people.
const TimeLayout = "Mon Jan 2 15:04"

// Schedule renders a work order's window, or "unscheduled".
func Schedule(wo model.WorkOrder) string {
	if !wo.HasSchedule() {
		return "unscheduled"
	}
	start := wo.ScheduledStart.Local()
	if wo.ScheduledEnd == nil {
		return start.Format(TimeLayout)
	}
	end := wo.ScheduledEnd.Local()
	if sameDay(start, end) {
		return start.Format(TimeLayout) + "–" + end.Format("15:04")
	}
	return start.Format(TimeLayout) + " – " + end.Format(TimeLayout)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// WorkOrderMarkdown is the detail view of one work order.
func WorkOrderMarkdown(wo model.WorkOrder) string {
	var b strings.Builder
	title := strings.TrimSpace(wo.CustomerName)
	if title == "" {
		title = wo.ID
	}
	fmt.Fprintf(&b, "## %s\n\n", title)
	if wo.WeatherTriggered {
		b.WriteString(":cloud_with_rain: **Weather triggered**\n\n")
	}
	rows := [][2]string{
		{"ID", "`" + wo.ID + "`"},
		{"Service", orDash(wo.ServiceType)},
		{"Site", orDash(wo.SiteAddress)},
		{"Status", wo.Status.Label()},
		{"Priority", string(wo.Priority)},
		{"Crew", orDash(crewText(wo))},
		{"Schedule", Schedule(wo)},
		{"Estimate", fmt.Sprintf("%.1f h", wo.EstimatedDurationHours)},
	}
	b.WriteString("| | |\n|---|---|\n")
	for _, r := range rows {
		fmt.Fprintf(&b, "| %s | %s |\n", r[0], escapeCell(r[1]))
	}
	return b.String()
}

// BoardMarkdown is a digest of a whole snapshot: summary, crews, and the
// unassigned queue.
func BoardMarkdown(s model.BoardSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Dispatch board: %s (%s)\n\n", s.Date, s.View)
	fmt.Fprintf(&b, "%s\n\n", SummaryLine(s.Summary))

	b.WriteString("## Crews\n\n")
	if len(s.Crews) == 0 {
		b.WriteString("_No crews._\n\n")
	}
	for _, c := range s.Crews {
		fmt.Fprintf(&b, "- **%s** (%s, %d assigned)\n", c.Label(), c.Availability, c.AssignedWorkOrders)
		for _, wo := range s.CrewWorkOrders(c.ID) {
			fmt.Fprintf(&b, "  - %s: %s, %s\n", wo.ID, orDash(wo.CustomerName), Schedule(wo))
		}
	}
	b.WriteString("\n## Unassigned\n\n")
	if len(s.WorkOrders.Unassigned) == 0 {
		b.WriteString("_Nothing waiting._\n")
	}
	for _, wo := range s.WorkOrders.Unassigned {
		flag := ""
		if wo.WeatherTriggered {
			flag = " :cloud_with_rain:"
		}
		fmt.Fprintf(&b, "- `%s` **%s** %s, %s%s\n", wo.Priority, orDash(wo.CustomerName), orDash(wo.ServiceType), orDash(wo.SiteAddress), flag)
	}
	return b.String()
}

func SummaryLine(s model.Summary) string {
	return fmt.Sprintf("%d unassigned · %d assigned · %d in progress · %d completed · %d crews available",
		s.Unassigned, s.Assigned, s.InProgress, s.Completed, s.AvailableCrews)
}

func crewText(wo model.WorkOrder) string {
	if n := wo.CrewName(); n != "" {
		return n
	}
	return wo.CrewID()
}

func orDash(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "-"
	}
	return s
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}
