package board

import (
	"fmt"

	"dispatch-cli/internal/model"
)

// Consistency diffs the server's redundant counters against the lists it sent.
// Nothing here rejects a snapshot; the result is informational.
func Consistency(s model.BoardSnapshot) []string {
	var out []string
	check := func(label string, summary, actual int) {
		if summary != actual {
			out = append(out, fmt.Sprintf("summary %s=%d but %d listed", label, summary, actual))
		}
	}
	check("unassigned", s.Summary.Unassigned, len(s.WorkOrders.Unassigned))
	check("assigned", s.Summary.Assigned, len(s.WorkOrders.Assigned))
	check("in_progress", s.Summary.InProgress, len(s.WorkOrders.InProgress))
	check("completed", s.Summary.Completed, len(s.WorkOrders.Completed))

	available := 0
	for _, c := range s.Crews {
		if c.Availability == model.AvailabilityAvailable {
			available++
		}
		if n := len(s.CrewWorkOrders(c.ID)); n != c.AssignedWorkOrders {
			out = append(out, fmt.Sprintf("crew %s reports %d assigned work orders but %d listed", c.ID, c.AssignedWorkOrders, n))
		}
	}
	if s.Summary.AvailableCrews > available {
		out = append(out, fmt.Sprintf("summary available_crews=%d exceeds %d available crews listed", s.Summary.AvailableCrews, available))
	}
	return out
}
