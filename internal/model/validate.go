package model

import (
	"fmt"
	"strings"
)

// ValidationError lists every invariant a snapshot breaks.
type ValidationError struct {
	Problems []string
}

func (e ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid board snapshot: " + e.Problems[0]
	}
	return fmt.Sprintf("invalid board snapshot: %d problems: %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

// ValidateWorkOrder checks the fields and crew invariant of a single work order.
func ValidateWorkOrder(wo WorkOrder) []string {
	var out []string
	id := strings.TrimSpace(wo.ID)
	if id == "" {
		return []string{"work order with empty id"}
	}
	if _, err := ParseStatus(string(wo.Status)); err != nil {
		out = append(out, fmt.Sprintf("%s: %v", id, err))
	}
	if _, err := ParsePriority(string(wo.Priority)); err != nil {
		out = append(out, fmt.Sprintf("%s: %v", id, err))
	}
	if wo.EstimatedDurationHours < 0 {
		out = append(out, fmt.Sprintf("%s: negative estimated duration %.2f", id, wo.EstimatedDurationHours))
	}
	hasCrew := wo.CrewID() != ""
	if wo.Status.HasCrew() && !hasCrew {
		out = append(out, fmt.Sprintf("%s: status %s without a crew", id, wo.Status))
	}
	if wo.Status == StatusUnassigned && hasCrew {
		out = append(out, fmt.Sprintf("%s: unassigned but references crew %s", id, wo.CrewID()))
	}
	if wo.Status == StatusCompleted && hasCrew {
		out = append(out, fmt.Sprintf("%s: completed but references crew %s", id, wo.CrewID()))
	}
	if wo.ScheduledStart != nil && wo.ScheduledEnd != nil && wo.ScheduledEnd.Before(*wo.ScheduledStart) {
		out = append(out, fmt.Sprintf("%s: scheduled end before start", id))
	}
	return out
}

// Validate enforces the snapshot partition: every work order id appears in
// exactly one bucket, and every bucket only holds work orders of its status.
func Validate(s BoardSnapshot) error {
	var problems []string
	seen := map[string]Status{}
	for _, st := range Statuses {
		for _, wo := range s.WorkOrders.Bucket(st) {
			problems = append(problems, ValidateWorkOrder(wo)...)
			if strings.TrimSpace(wo.ID) == "" {
				continue
			}
			if wo.Status != st {
				problems = append(problems, fmt.Sprintf("%s: status %s listed in %s bucket", wo.ID, wo.Status, st))
			}
			if prev, dup := seen[wo.ID]; dup {
				problems = append(problems, fmt.Sprintf("%s: appears in both %s and %s", wo.ID, prev, st))
				continue
			}
			seen[wo.ID] = st
		}
	}

	crews := map[string]bool{}
	for _, c := range s.Crews {
		id := strings.TrimSpace(c.ID)
		if id == "" {
			problems = append(problems, "crew with empty id")
			continue
		}
		if crews[id] {
			problems = append(problems, fmt.Sprintf("crew %s listed twice", id))
		}
		crews[id] = true
		if c.AssignedWorkOrders < 0 {
			problems = append(problems, fmt.Sprintf("crew %s: negative assigned count", id))
		}
		switch c.Availability {
		case AvailabilityAvailable, AvailabilityBusy:
		default:
			problems = append(problems, fmt.Sprintf("crew %s: unknown availability %q", id, c.Availability))
		}
	}

	if len(problems) > 0 {
		return ValidationError{Problems: problems}
	}
	return nil
}
