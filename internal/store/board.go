package store

import (
	"time"

	"dispatch-cli/internal/board"
	"dispatch-cli/internal/model"
)

// CrewInactive marks a crew that is listed but never auto-assigned.
const CrewInactive = "inactive"

// Snapshot builds the board for the window selected by date and view.
// Unscheduled work orders appear on every board. Scheduled ones appear when
// their start falls in the window.
func (db *DB) Snapshot(date string, view model.View, loc *time.Location) (model.BoardSnapshot, error) {
	start, end, err := model.Window(date, view, loc)
	if err != nil {
		return model.BoardSnapshot{}, err
	}
	snap := model.BoardSnapshot{Date: date, View: view}

	names := make(map[string]string, len(db.Crews))
	for _, c := range db.Crews {
		names[c.ID] = c.Name
	}
	assigned := map[string]int{}
	busy := map[string]bool{}

	for _, wo := range db.WorkOrders {
		if !InWindow(wo, start, end) {
			continue
		}
		if !wo.Status.HasCrew() {
			wo.AssignedCrewID = nil
			wo.AssignedCrewName = nil
		}
		if id := wo.CrewID(); id != "" {
			if name, ok := names[id]; ok {
				n := name
				wo.AssignedCrewName = &n
			}
			if wo.Status.HasCrew() {
				assigned[id]++
			}
			if wo.Status == model.StatusInProgress {
				busy[id] = true
			}
		}
		switch wo.Status {
		case model.StatusUnassigned:
			snap.WorkOrders.Unassigned = append(snap.WorkOrders.Unassigned, wo)
		case model.StatusAssigned:
			snap.WorkOrders.Assigned = append(snap.WorkOrders.Assigned, wo)
		case model.StatusInProgress:
			snap.WorkOrders.InProgress = append(snap.WorkOrders.InProgress, wo)
		case model.StatusCompleted:
			snap.WorkOrders.Completed = append(snap.WorkOrders.Completed, wo)
		}
	}
	for _, st := range model.Statuses {
		board.SortWorkOrders(snap.WorkOrders.Bucket(st))
	}

	snap.Crews = make([]model.Crew, 0, len(db.Crews))
	for _, c := range db.Crews {
		c.AssignedWorkOrders = assigned[c.ID]
		c.Availability = model.AvailabilityAvailable
		if busy[c.ID] {
			c.Availability = model.AvailabilityBusy
		} else if c.Status != CrewInactive {
			snap.Summary.AvailableCrews++
		}
		snap.Crews = append(snap.Crews, c)
	}

	snap.Summary.Unassigned = len(snap.WorkOrders.Unassigned)
	snap.Summary.Assigned = len(snap.WorkOrders.Assigned)
	snap.Summary.InProgress = len(snap.WorkOrders.InProgress)
	snap.Summary.Completed = len(snap.WorkOrders.Completed)
	return snap, nil
}

// InWindow reports whether wo belongs on a board covering [start, end).
func InWindow(wo model.WorkOrder, start, end time.Time) bool {
	if !wo.HasSchedule() {
		return true
	}
	s := *wo.ScheduledStart
	return !s.Before(start) && s.Before(end)
}
