// Package mutate applies dispatch operations to the sandbox state. Callers
// save the state and publish the resulting events.
package mutate

import (
	"strings"
	"time"

	"dispatch-cli/internal/model"
	"dispatch-cli/internal/store"
)

// DefaultDurationHours is used when neither the request nor the work order
// carries an estimate.
const DefaultDurationHours = 2.0

type AssignInput struct {
	WorkOrderID   string
	CrewID        string
	Start         time.Time
	DurationHours float64
}

type AssignResult struct {
	WorkOrder *model.WorkOrder
	Changed   bool
	// Conflicts counts the crew's other open work orders whose windows
	// overlap the new one. They never block the assignment.
	Conflicts int
}

// AssignCrew puts a work order on a crew's schedule. In-progress work keeps
// its status; anything else open becomes assigned. Repeating an assignment
// with the same crew and window is a no-op.
func AssignCrew(db *store.DB, in AssignInput) (AssignResult, error) {
	woID := strings.TrimSpace(in.WorkOrderID)
	crewID := strings.TrimSpace(in.CrewID)
	if woID == "" {
		return AssignResult{}, InvalidError{Field: "work_order_id", Reason: "required"}
	}
	if crewID == "" {
		return AssignResult{}, InvalidError{Field: "crew_id", Reason: "required"}
	}
	if in.DurationHours < 0 {
		return AssignResult{}, InvalidError{Field: "estimated_duration_hours", Reason: "must not be negative"}
	}

	wo, ok := db.FindWorkOrder(woID)
	if !ok {
		return AssignResult{}, NotFoundError{Kind: "work order", ID: woID}
	}
	if _, ok := db.FindCrew(crewID); !ok {
		return AssignResult{}, NotFoundError{Kind: "crew", ID: crewID}
	}
	if wo.Status == model.StatusCompleted {
		return AssignResult{}, ErrWorkOrderClosed
	}

	start := in.Start
	if start.IsZero() {
		if !wo.HasSchedule() {
			return AssignResult{}, InvalidError{Field: "scheduled_start", Reason: "required for unscheduled work"}
		}
		start = *wo.ScheduledStart
	}
	hours := in.DurationHours
	if hours == 0 {
		hours = wo.EstimatedDurationHours
	}
	if hours <= 0 {
		hours = DefaultDurationHours
	}
	end := start.Add(time.Duration(hours * float64(time.Hour)))

	changed := wo.CrewID() != crewID ||
		!wo.HasSchedule() || !wo.ScheduledStart.Equal(start) ||
		wo.ScheduledEnd == nil || !wo.ScheduledEnd.Equal(end) ||
		wo.EstimatedDurationHours != hours ||
		wo.Status == model.StatusUnassigned

	if changed {
		id := crewID
		wo.AssignedCrewID = &id
		wo.AssignedCrewName = nil
		wo.ScheduledStart = &start
		wo.ScheduledEnd = &end
		wo.EstimatedDurationHours = hours
		if wo.Status != model.StatusInProgress {
			wo.Status = model.StatusAssigned
		}
	}

	return AssignResult{
		WorkOrder: wo,
		Changed:   changed,
		Conflicts: Conflicts(db, *wo),
	}, nil
}

// Conflicts counts open work orders on the same crew whose scheduled windows
// overlap wo's.
func Conflicts(db *store.DB, wo model.WorkOrder) int {
	crewID := wo.CrewID()
	if crewID == "" || !wo.HasSchedule() {
		return 0
	}
	aStart, aEnd := window(wo)
	n := 0
	for _, other := range db.WorkOrders {
		if other.ID == wo.ID || other.CrewID() != crewID || !other.Status.HasCrew() || !other.HasSchedule() {
			continue
		}
		bStart, bEnd := window(other)
		if aStart.Before(bEnd) && bStart.Before(aEnd) {
			n++
		}
	}
	return n
}

func window(wo model.WorkOrder) (time.Time, time.Time) {
	start := *wo.ScheduledStart
	if wo.ScheduledEnd != nil && wo.ScheduledEnd.After(start) {
		return start, *wo.ScheduledEnd
	}
	hours := wo.EstimatedDurationHours
	if hours <= 0 {
		hours = DefaultDurationHours
	}
	return start, start.Add(time.Duration(hours * float64(time.Hour)))
}

type UnassignResult struct {
	WorkOrder *model.WorkOrder
	Changed   bool
}

// UnassignCrew returns an assigned work order to the unassigned pool and
// clears its schedule. Started and completed work cannot be unassigned.
func UnassignCrew(db *store.DB, workOrderID string) (UnassignResult, error) {
	workOrderID = strings.TrimSpace(workOrderID)
	wo, ok := db.FindWorkOrder(workOrderID)
	if !ok {
		return UnassignResult{}, NotFoundError{Kind: "work order", ID: workOrderID}
	}
	switch wo.Status {
	case model.StatusCompleted:
		return UnassignResult{}, ErrWorkOrderClosed
	case model.StatusInProgress:
		return UnassignResult{}, ErrWorkOrderStarted
	case model.StatusUnassigned:
		return UnassignResult{WorkOrder: wo, Changed: false}, nil
	}
	wo.Status = model.StatusUnassigned
	wo.AssignedCrewID = nil
	wo.AssignedCrewName = nil
	wo.ScheduledStart = nil
	wo.ScheduledEnd = nil
	return UnassignResult{WorkOrder: wo, Changed: true}, nil
}
