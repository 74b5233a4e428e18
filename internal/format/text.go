package format

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"dispatch-cli/internal/model"
)

// BoardText renders a snapshot as aligned plain-text tables.
func BoardText(s model.BoardSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n%s\n", s.Date, s.View, SummaryLine(s.Summary))

	for _, st := range model.Statuses {
		wos := s.WorkOrders.Bucket(st)
		fmt.Fprintf(&b, "\n%s (%d)\n", st.Label(), len(wos))
		if len(wos) == 0 {
			continue
		}
		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		for _, wo := range wos {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%s\t%s\n", wo.ID, wo.Priority, orDash(wo.CustomerName), orDash(crewText(wo)), Schedule(wo))
		}
		_ = tw.Flush()
	}

	fmt.Fprintf(&b, "\nCrews (%d)\n", len(s.Crews))
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	for _, c := range s.Crews {
		fmt.Fprintf(tw, "  %s\t%s\t%s\t%d assigned\n", c.ID, c.Label(), c.Availability, c.AssignedWorkOrders)
	}
	_ = tw.Flush()
	return b.String()
}

// WorkOrderText renders one work order as key/value lines.
func WorkOrderText(wo model.WorkOrder) string {
	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "id\t%s\n", wo.ID)
	fmt.Fprintf(tw, "customer\t%s\n", orDash(wo.CustomerName))
	fmt.Fprintf(tw, "site\t%s\n", orDash(wo.SiteAddress))
	fmt.Fprintf(tw, "service\t%s\n", orDash(wo.ServiceType))
	fmt.Fprintf(tw, "status\t%s\n", wo.Status)
	fmt.Fprintf(tw, "priority\t%s\n", wo.Priority)
	fmt.Fprintf(tw, "crew\t%s\n", orDash(crewText(wo)))
	fmt.Fprintf(tw, "schedule\t%s\n", Schedule(wo))
	fmt.Fprintf(tw, "estimate\t%.1fh\n", wo.EstimatedDurationHours)
	if wo.WeatherTriggered {
		fmt.Fprintf(tw, "weather\ttriggered\n")
	}
	_ = tw.Flush()
	return b.String()
}
