package board

import (
	"sort"
	"strings"

	"dispatch-cli/internal/model"
)

// MaxLanes is how many crews get a visible lane (and thus a drop target).
// Crews past this are still counted in the summary.
const MaxLanes = 6

type Lane struct {
	Crew       model.Crew
	WorkOrders []model.WorkOrder
}

// VisibleLanes returns one lane per crew for the first MaxLanes crews, in the
// order the server sent them.
func VisibleLanes(s model.BoardSnapshot) []Lane {
	n := len(s.Crews)
	if n > MaxLanes {
		n = MaxLanes
	}
	lanes := make([]Lane, 0, n)
	for _, c := range s.Crews[:n] {
		wos := s.CrewWorkOrders(c.ID)
		SortWorkOrders(wos)
		lanes = append(lanes, Lane{Crew: c, WorkOrders: wos})
	}
	return lanes
}

// HiddenCrews is the number of crews without a lane.
func HiddenCrews(s model.BoardSnapshot) int {
	if len(s.Crews) <= MaxLanes {
		return 0
	}
	return len(s.Crews) - MaxLanes
}

// IsDropTarget reports whether crewID has a visible lane.
func IsDropTarget(s model.BoardSnapshot, crewID string) bool {
	crewID = strings.TrimSpace(crewID)
	if crewID == "" {
		return false
	}
	for _, l := range VisibleLanes(s) {
		if l.Crew.ID == crewID {
			return true
		}
	}
	return false
}

// SortWorkOrders orders by priority (urgent first), then scheduled start, then id.
func SortWorkOrders(wos []model.WorkOrder) {
	sort.SliceStable(wos, func(i, j int) bool {
		a, b := wos[i], wos[j]
		if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
			return ra < rb
		}
		switch {
		case a.HasSchedule() && b.HasSchedule():
			if !a.ScheduledStart.Equal(*b.ScheduledStart) {
				return a.ScheduledStart.Before(*b.ScheduledStart)
			}
		case a.HasSchedule() != b.HasSchedule():
			return a.HasSchedule()
		}
		return a.ID < b.ID
	})
}
