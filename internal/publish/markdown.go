package publish

import (
	"bytes"
	"fmt"
	"strings"

	"dispatch-cli/internal/format"
	"dispatch-cli/internal/model"
)

type RenderOptions struct {
	IncludeCompleted bool
}

// RenderIndexMarkdown is the board page: summary, crew lanes and the
// unassigned queue, linking to the per-crew and per-work-order pages.
func RenderIndexMarkdown(snap model.BoardSnapshot, opt RenderOptions) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# Dispatch board: %s (%s)\n\n", snap.Date, snap.View)
	buf.WriteString(format.SummaryLine(snap.Summary) + "\n\n")

	buf.WriteString("## Crews\n\n")
	if len(snap.Crews) == 0 {
		buf.WriteString("_No crews._\n")
	}
	for _, c := range snap.Crews {
		fmt.Fprintf(&buf, "- [%s](crews/%s.md) (%s, %d assigned)\n", c.Label(), c.ID, c.Availability, c.AssignedWorkOrders)
	}

	buf.WriteString("\n## Unassigned\n\n")
	if len(snap.WorkOrders.Unassigned) == 0 {
		buf.WriteString("_Nothing waiting._\n")
	}
	for _, wo := range snap.WorkOrders.Unassigned {
		renderWorkOrderLine(&buf, wo)
	}

	if opt.IncludeCompleted && len(snap.WorkOrders.Completed) > 0 {
		buf.WriteString("\n## Completed\n\n")
		for _, wo := range snap.WorkOrders.Completed {
			renderWorkOrderLine(&buf, wo)
		}
	}
	return buf.String()
}

// RenderCrewMarkdown is one crew lane with its assigned and in-progress work.
func RenderCrewMarkdown(snap model.BoardSnapshot, crewID string) (string, error) {
	crew, ok := snap.FindCrew(crewID)
	if !ok {
		return "", fmt.Errorf("crew not found: %s", crewID)
	}
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# %s\n\n", crew.Label())
	fmt.Fprintf(&buf, "- ID: `%s`\n", crew.ID)
	fmt.Fprintf(&buf, "- Availability: %s\n", crew.Availability)
	if s := strings.TrimSpace(crew.Status); s != "" {
		fmt.Fprintf(&buf, "- Status: %s\n", s)
	}
	fmt.Fprintf(&buf, "- Board: %s (%s)\n\n", snap.Date, snap.View)

	buf.WriteString("## Work orders\n\n")
	wos := snap.CrewWorkOrders(crew.ID)
	if len(wos) == 0 {
		buf.WriteString("_Free._\n")
	}
	for _, wo := range wos {
		fmt.Fprintf(&buf, "- [%s](../work-orders/%s.md) %s, %s (%s)\n", wo.ID, wo.ID, orDash(wo.CustomerName), format.Schedule(wo), wo.Status.Label())
	}
	return buf.String(), nil
}

func renderWorkOrderLine(buf *bytes.Buffer, wo model.WorkOrder) {
	flag := ""
	if wo.WeatherTriggered {
		flag = " :cloud_with_rain:"
	}
	fmt.Fprintf(buf, "- [%s](work-orders/%s.md) `%s` %s, %s%s\n", wo.ID, wo.ID, wo.Priority, orDash(wo.CustomerName), orDash(wo.ServiceType), flag)
}

func orDash(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "-"
	}
	return s
}
