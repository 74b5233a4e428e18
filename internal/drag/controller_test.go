package drag

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"dispatch-cli/internal/api"
	"dispatch-cli/internal/model"
)

type fakeMutator struct {
	mu          sync.Mutex
	assigns     []api.AssignRequest
	unassigns   []string
	optimizes   []string
	assignErr   error
	conflicts   int
	optimizeMsg string
}

func (f *fakeMutator) AssignCrew(ctx context.Context, req api.AssignRequest) (api.AssignResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigns = append(f.assigns, req)
	if f.assignErr != nil {
		return api.AssignResult{}, f.assignErr
	}
	return api.AssignResult{Conflicts: f.conflicts}, nil
}

func (f *fakeMutator) UnassignCrew(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unassigns = append(f.unassigns, id)
	return nil
}

func (f *fakeMutator) Optimize(ctx context.Context, date string) (api.OptimizeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.optimizes = append(f.optimizes, date)
	return api.OptimizeResult{Message: f.optimizeMsg}, nil
}

func (f *fakeMutator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.assigns) + len(f.unassigns) + len(f.optimizes)
}

type fakeBoard struct {
	snap      model.BoardSnapshot
	date      string
	refreshes int
}

func (b *fakeBoard) Snapshot() (model.BoardSnapshot, bool) { return b.snap, true }
func (b *fakeBoard) Params() (string, model.View)          { return b.date, model.ViewDay }
func (b *fakeBoard) Refresh(ctx context.Context) error {
	b.refreshes++
	return nil
}

type recordingNotifier struct {
	alerts, warns, infos, prompts []string
	confirm                       bool
}

func (n *recordingNotifier) Alert(msg string) { n.alerts = append(n.alerts, msg) }
func (n *recordingNotifier) Warn(msg string)  { n.warns = append(n.warns, msg) }
func (n *recordingNotifier) Info(msg string)  { n.infos = append(n.infos, msg) }
func (n *recordingNotifier) Confirm(ctx context.Context, prompt string) bool {
	n.prompts = append(n.prompts, prompt)
	return n.confirm
}

func strPtr(s string) *string { return &s }

func exampleBoard() *fakeBoard {
	var s model.BoardSnapshot
	s.WorkOrders.Unassigned = []model.WorkOrder{{ID: "wo-1", Status: model.StatusUnassigned, Priority: model.PriorityUrgent}}
	s.WorkOrders.Assigned = []model.WorkOrder{{ID: "wo-2", Status: model.StatusAssigned, Priority: model.PriorityLow, AssignedCrewID: strPtr("crew-A")}}
	s.Crews = []model.Crew{{ID: "crew-A", Name: "Alpha", Availability: model.AvailabilityAvailable}}
	for i := 0; i < 7; i++ {
		s.Crews = append(s.Crews, model.Crew{ID: "crew-" + string(rune('B'+i)), Availability: model.AvailabilityAvailable})
	}
	return &fakeBoard{snap: s, date: "2026-03-10"}
}

var fixedNow = time.Date(2026, 3, 10, 14, 37, 0, 0, time.UTC)

func newController(m *fakeMutator, b *fakeBoard, n *recordingNotifier) *Controller {
	return New(m, b, n, Options{Now: func() time.Time { return fixedNow }})
}

func TestDrop_OnCrewLaneAssignsAndRefreshes(t *testing.T) {
	m, b, n := &fakeMutator{}, exampleBoard(), &recordingNotifier{}
	c := newController(m, b, n)

	wo, _ := b.snap.FindWorkOrder("wo-1")
	c.BeginDrag(wo)
	if c.Phase() != Dragging {
		t.Fatalf("expected dragging, got %s", c.Phase())
	}
	submitted, err := c.Drop(context.Background(), "crew-A")
	if err != nil || !submitted {
		t.Fatalf("Drop: submitted=%v err=%v", submitted, err)
	}
	if len(m.assigns) != 1 {
		t.Fatalf("expected 1 assign call, got %d", len(m.assigns))
	}
	req := m.assigns[0]
	if req.WorkOrderID != "wo-1" || req.CrewID != "crew-A" {
		t.Fatalf("unexpected assign request: %+v", req)
	}
	wantStart := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	if !req.ScheduledStart.Equal(wantStart) || req.EstimatedDurationHours != 2 {
		t.Fatalf("expected default 08:00 + 2h window, got %s + %.1fh", req.ScheduledStart, req.EstimatedDurationHours)
	}
	if b.refreshes != 1 {
		t.Fatalf("expected 1 refresh, got %d", b.refreshes)
	}
	if c.Phase() != Idle {
		t.Fatalf("expected idle after drop, got %s", c.Phase())
	}
	if len(n.alerts)+len(n.warns) != 0 {
		t.Fatalf("unexpected notifications: %+v", n)
	}
}

func TestDrop_KeepsExplicitSchedule(t *testing.T) {
	m, b, n := &fakeMutator{}, exampleBoard(), &recordingNotifier{}
	start := time.Date(2026, 3, 12, 13, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Minute)
	c := newController(m, b, n)

	c.BeginDrag(model.WorkOrder{ID: "wo-1", Status: model.StatusUnassigned, ScheduledStart: &start, ScheduledEnd: &end})
	if _, err := c.Drop(context.Background(), "crew-A"); err != nil {
		t.Fatalf("Drop: %v", err)
	}
	req := m.assigns[0]
	if !req.ScheduledStart.Equal(start) || req.EstimatedDurationHours != 1.5 {
		t.Fatalf("expected explicit schedule kept, got %s + %.2fh", req.ScheduledStart, req.EstimatedDurationHours)
	}
}

func TestDrag_EndWithoutDropIsNoop(t *testing.T) {
	m, b, n := &fakeMutator{}, exampleBoard(), &recordingNotifier{}
	c := newController(m, b, n)

	wo, _ := b.snap.FindWorkOrder("wo-1")
	c.BeginDrag(wo)
	c.EndDrag()

	if m.calls() != 0 || b.refreshes != 0 {
		t.Fatalf("expected no mutation or refresh, got calls=%d refreshes=%d", m.calls(), b.refreshes)
	}
	if c.Phase() != Idle {
		t.Fatalf("expected idle, got %s", c.Phase())
	}
	if _, err := c.Drop(context.Background(), "crew-A"); !errors.Is(err, ErrNotDragging) {
		t.Fatalf("expected ErrNotDragging, got %v", err)
	}
}

func TestRelease_EndsGestureBeforeDrop(t *testing.T) {
	m, b, n := &fakeMutator{}, exampleBoard(), &recordingNotifier{}
	c := newController(m, b, n)

	wo, _ := b.snap.FindWorkOrder("wo-1")
	c.BeginDrag(wo)
	held, ok := c.Release()
	if !ok || held.ID != "wo-1" {
		t.Fatalf("Release: %v %v", held.ID, ok)
	}
	if c.Phase() != Idle {
		t.Fatalf("expected idle once released, got %s", c.Phase())
	}
	if _, ok := c.Release(); ok {
		t.Fatalf("second Release should find nothing held")
	}

	submitted, err := c.DropOnto(context.Background(), held, "crew-B")
	if err != nil || !submitted {
		t.Fatalf("DropOnto: submitted=%v err=%v", submitted, err)
	}
	if len(m.assigns) != 1 || m.assigns[0].WorkOrderID != "wo-1" || m.assigns[0].CrewID != "crew-B" {
		t.Fatalf("unexpected assigns: %+v", m.assigns)
	}
	if b.refreshes != 1 {
		t.Fatalf("expected a refresh after the drop, got %d", b.refreshes)
	}
}

func TestDrop_OutsideVisibleLanesIsNoop(t *testing.T) {
	m, b, n := &fakeMutator{}, exampleBoard(), &recordingNotifier{}
	c := newController(m, b, n)

	wo, _ := b.snap.FindWorkOrder("wo-1")
	for _, target := range []string{"", "crew-unknown", "crew-H"} { // crew-H is the 8th crew: no lane
		c.BeginDrag(wo)
		submitted, err := c.Drop(context.Background(), target)
		if err != nil || submitted {
			t.Fatalf("target %q: submitted=%v err=%v", target, submitted, err)
		}
	}
	if m.calls() != 0 {
		t.Fatalf("expected no mutation, got %d calls", m.calls())
	}
}

func TestAssign_ConflictsWarnWithoutBlocking(t *testing.T) {
	m, b, n := &fakeMutator{conflicts: 2}, exampleBoard(), &recordingNotifier{}
	c := newController(m, b, n)

	if err := c.AssignCrew(context.Background(), "wo-1", "crew-A"); err != nil {
		t.Fatalf("AssignCrew: %v", err)
	}
	if len(n.warns) != 1 || n.warns[0] != "Crew assigned with 2 scheduling conflicts." {
		t.Fatalf("unexpected warnings: %v", n.warns)
	}
	if b.refreshes != 1 {
		t.Fatalf("expected refresh after conflicted assign")
	}
}

func TestAssign_FailureAlertsAndRefreshes(t *testing.T) {
	m, b, n := &fakeMutator{assignErr: errors.New("boom")}, exampleBoard(), &recordingNotifier{}
	c := newController(m, b, n)

	err := c.AssignCrew(context.Background(), "wo-1", "crew-A")
	if err == nil {
		t.Fatalf("expected error")
	}
	if len(n.alerts) != 1 {
		t.Fatalf("expected one alert, got %v", n.alerts)
	}
	if b.refreshes != 1 {
		t.Fatalf("expected refresh after failed assign, got %d", b.refreshes)
	}
	if err := c.AssignCrew(context.Background(), "wo-404", "crew-A"); !errors.Is(err, ErrUnknownWork) {
		t.Fatalf("expected ErrUnknownWork, got %v", err)
	}
}

func TestAssign_SameCrewIsSentAgain(t *testing.T) {
	m, b, n := &fakeMutator{}, exampleBoard(), &recordingNotifier{}
	c := newController(m, b, n)

	wo, _ := b.snap.FindWorkOrder("wo-2")
	c.BeginDrag(wo)
	if submitted, _ := c.Drop(context.Background(), "crew-A"); !submitted {
		t.Fatalf("expected redundant assign to be submitted")
	}
	if len(m.assigns) != 1 || m.assigns[0].CrewID != "crew-A" {
		t.Fatalf("unexpected assigns: %+v", m.assigns)
	}
}

func TestUnassign_NoConfirmation(t *testing.T) {
	m, b, n := &fakeMutator{}, exampleBoard(), &recordingNotifier{}
	c := newController(m, b, n)

	if err := c.UnassignCrew(context.Background(), "wo-2"); err != nil {
		t.Fatalf("UnassignCrew: %v", err)
	}
	if len(m.unassigns) != 1 || m.unassigns[0] != "wo-2" {
		t.Fatalf("unexpected unassigns: %v", m.unassigns)
	}
	if len(n.prompts) != 0 {
		t.Fatalf("unassign must not prompt")
	}
	if b.refreshes != 1 {
		t.Fatalf("expected refresh")
	}
}

func TestOptimize_RequiresConfirmation(t *testing.T) {
	m, b, n := &fakeMutator{optimizeMsg: "Assigned 1 of 1 work orders across 1 crews"}, exampleBoard(), &recordingNotifier{}
	c := newController(m, b, n)

	ran, err := c.Optimize(context.Background())
	if err != nil || ran {
		t.Fatalf("declined optimize: ran=%v err=%v", ran, err)
	}
	if len(m.optimizes) != 0 || b.refreshes != 0 {
		t.Fatalf("declined optimize must not call backend")
	}

	n.confirm = true
	ran, err = c.Optimize(context.Background())
	if err != nil || !ran {
		t.Fatalf("confirmed optimize: ran=%v err=%v", ran, err)
	}
	if len(m.optimizes) != 1 || m.optimizes[0] != "2026-03-10" {
		t.Fatalf("expected optimize for board date, got %v", m.optimizes)
	}
	if len(n.infos) != 1 || n.infos[0] != "Assigned 1 of 1 work orders across 1 crews" {
		t.Fatalf("expected server message surfaced, got %v", n.infos)
	}
	if b.refreshes != 1 {
		t.Fatalf("expected refresh after optimize")
	}
}
