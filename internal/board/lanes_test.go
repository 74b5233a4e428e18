package board

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"dispatch-cli/internal/model"
)

func crews(n int) []model.Crew {
	out := make([]model.Crew, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, model.Crew{ID: fmt.Sprintf("crew-%d", i), Name: fmt.Sprintf("Crew %d", i), Availability: model.AvailabilityAvailable})
	}
	return out
}

func TestVisibleLanes_CapsAtSix(t *testing.T) {
	s := model.BoardSnapshot{Crews: crews(9)}
	s.Summary.AvailableCrews = 9

	lanes := VisibleLanes(s)
	if len(lanes) != MaxLanes {
		t.Fatalf("expected %d lanes, got %d", MaxLanes, len(lanes))
	}
	if lanes[5].Crew.ID != "crew-6" {
		t.Fatalf("expected lanes in server order, last=%s", lanes[5].Crew.ID)
	}
	if HiddenCrews(s) != 3 {
		t.Fatalf("expected 3 hidden crews, got %d", HiddenCrews(s))
	}
	if s.Summary.AvailableCrews <= len(lanes) {
		t.Fatalf("summary may exceed rendered lanes")
	}
	if IsDropTarget(s, "crew-7") {
		t.Fatalf("crew-7 has no lane and must not be a drop target")
	}
	if !IsDropTarget(s, "crew-6") {
		t.Fatalf("crew-6 should be a drop target")
	}
}

func TestVisibleLanes_FewerCrews(t *testing.T) {
	s := model.BoardSnapshot{Crews: crews(2)}
	if got := len(VisibleLanes(s)); got != 2 {
		t.Fatalf("expected 2 lanes, got %d", got)
	}
	if HiddenCrews(s) != 0 {
		t.Fatalf("expected no hidden crews")
	}
}

func TestVisibleLanes_GroupsAndSortsCrewWork(t *testing.T) {
	early := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	late := early.Add(3 * time.Hour)
	s := model.BoardSnapshot{Crews: crews(2)}
	s.WorkOrders.Assigned = []model.WorkOrder{
		{ID: "wo-b", Status: model.StatusAssigned, Priority: model.PriorityNormal, AssignedCrewID: strPtr("crew-1"), ScheduledStart: &late},
		{ID: "wo-a", Status: model.StatusAssigned, Priority: model.PriorityNormal, AssignedCrewID: strPtr("crew-1"), ScheduledStart: &early},
		{ID: "wo-c", Status: model.StatusAssigned, Priority: model.PriorityLow, AssignedCrewID: strPtr("crew-2")},
	}
	s.WorkOrders.InProgress = []model.WorkOrder{
		{ID: "wo-u", Status: model.StatusInProgress, Priority: model.PriorityUrgent, AssignedCrewID: strPtr("crew-1")},
	}

	lanes := VisibleLanes(s)
	var ids []string
	for _, wo := range lanes[0].WorkOrders {
		ids = append(ids, wo.ID)
	}
	if got := strings.Join(ids, ","); got != "wo-u,wo-a,wo-b" {
		t.Fatalf("unexpected lane order: %s", got)
	}
	if len(lanes[1].WorkOrders) != 1 || lanes[1].WorkOrders[0].ID != "wo-c" {
		t.Fatalf("unexpected second lane: %+v", lanes[1].WorkOrders)
	}
}

func TestConsistency_ReportsMismatches(t *testing.T) {
	s := model.BoardSnapshot{Crews: []model.Crew{{ID: "crew-1", AssignedWorkOrders: 2, Availability: model.AvailabilityAvailable}}}
	s.WorkOrders.Assigned = []model.WorkOrder{{ID: "wo-1", Status: model.StatusAssigned, Priority: model.PriorityLow, AssignedCrewID: strPtr("crew-1")}}
	s.Summary = model.Summary{Assigned: 1, AvailableCrews: 3}

	got := strings.Join(Consistency(s), "\n")
	if !strings.Contains(got, "crew crew-1 reports 2 assigned work orders but 1 listed") {
		t.Fatalf("missing crew count warning: %q", got)
	}
	if !strings.Contains(got, "summary available_crews=3 exceeds 1 available crews listed") {
		t.Fatalf("missing available crews warning: %q", got)
	}
	if strings.Contains(got, "summary assigned") {
		t.Fatalf("unexpected assigned warning: %q", got)
	}
}
