package tui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"dispatch-cli/internal/api"
	"dispatch-cli/internal/board"
	"dispatch-cli/internal/model"

	tea "github.com/charmbracelet/bubbletea"
)

type staticFetcher struct{ snap model.BoardSnapshot }

func (f staticFetcher) FetchBoard(ctx context.Context, date string, view model.View) (model.BoardSnapshot, error) {
	s := f.snap
	s.Date, s.View = date, view
	return s, nil
}

type fakeMutator struct {
	mu        sync.Mutex
	assigns   []api.AssignRequest
	unassigns []string
	optimizes []string
}

func (f *fakeMutator) AssignCrew(ctx context.Context, req api.AssignRequest) (api.AssignResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assigns = append(f.assigns, req)
	return api.AssignResult{}, nil
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
	return api.OptimizeResult{Message: "Assigned 1 of 1 work orders across 1 crews"}, nil
}

func strPtr(s string) *string { return &s }

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func exampleSnapshot() model.BoardSnapshot {
	var s model.BoardSnapshot
	s.WorkOrders.Unassigned = []model.WorkOrder{
		{ID: "wo-1", CustomerName: "Harbor Dental", Status: model.StatusUnassigned, Priority: model.PriorityUrgent, EstimatedDurationHours: 2},
	}
	s.WorkOrders.Assigned = []model.WorkOrder{
		{ID: "wo-2", CustomerName: "Maple Court", Status: model.StatusAssigned, Priority: model.PriorityNormal, AssignedCrewID: strPtr("crew-a"), AssignedCrewName: strPtr("Crew Alpha")},
	}
	s.WorkOrders.Completed = []model.WorkOrder{
		{ID: "wo-3", CustomerName: "Old Mill", Status: model.StatusCompleted, Priority: model.PriorityLow},
	}
	for i, name := range []string{"Alpha", "Bravo", "Charlie", "Delta", "Echo", "Foxtrot", "Golf", "Hotel"} {
		c := model.Crew{ID: "crew-" + strings.ToLower(name[:1]), Name: "Crew " + name, Status: "active", Availability: model.AvailabilityAvailable}
		if i == 0 {
			c.AssignedWorkOrders = 1
		}
		s.Crews = append(s.Crews, c)
	}
	s.Summary = model.Summary{Unassigned: 1, Assigned: 1, Completed: 1, AvailableCrews: 8}
	return s
}

func newTestModel(t *testing.T) (boardModel, *fakeMutator) {
	t.Helper()
	st, err := board.NewStore(staticFetcher{exampleSnapshot()}, board.Options{Date: "2026-03-10", View: model.ViewDay})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(st.Close)
	if err := st.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	mut := &fakeMutator{}
	m := newBoardModel(Options{Board: st, Mutator: mut, Now: func() time.Time { return testNow }})
	t.Cleanup(m.close)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 160, Height: 30})
	next, _ = next.Update(boardChangedMsg{})
	return next.(boardModel), mut
}

func press(t *testing.T, m boardModel, keys ...string) (boardModel, tea.Cmd) {
	t.Helper()
	var cmd tea.Cmd
	for _, k := range keys {
		var msg tea.KeyMsg
		switch k {
		case "space":
			msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
		case "enter":
			msg = tea.KeyMsg{Type: tea.KeyEnter}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		default:
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
		}
		var next tea.Model
		next, cmd = m.Update(msg)
		m = next.(boardModel)
	}
	return m, cmd
}

func TestBoard_KeyboardDragAssignsToLane(t *testing.T) {
	m, mut := newTestModel(t)

	m, _ = press(t, m, "space")
	if wo, ok := m.ctrl.Dragged(); !ok || wo.ID != "wo-1" {
		t.Fatalf("expected wo-1 to be held, got %v %v", wo.ID, ok)
	}
	m, _ = press(t, m, "l", "l")
	if !strings.Contains(m.View(), "▼ Crew Bravo") {
		t.Fatalf("expected Crew Bravo to be the drop target:\n%s", m.View())
	}

	m, cmd := press(t, m, "enter")
	if cmd == nil {
		t.Fatalf("expected a drop command")
	}
	if done, ok := cmd().(opDoneMsg); !ok || done.err != nil {
		t.Fatalf("unexpected drop result: %#v", done)
	}
	if len(mut.assigns) != 1 || mut.assigns[0].WorkOrderID != "wo-1" || mut.assigns[0].CrewID != "crew-b" {
		t.Fatalf("unexpected assigns: %+v", mut.assigns)
	}
	if _, held := m.ctrl.Dragged(); held {
		t.Fatalf("drag should end on drop")
	}
}

// Keys pressed while the drop request is still running act on the board,
// not on the finished gesture.
func TestBoard_DropEndsGestureBeforeRequestRuns(t *testing.T) {
	m, mut := newTestModel(t)

	m, _ = press(t, m, "space", "l", "l")
	m, dropCmd := press(t, m, "enter")
	if dropCmd == nil {
		t.Fatalf("expected a drop command")
	}
	if _, held := m.ctrl.Dragged(); held {
		t.Fatalf("drag should end as soon as the card is dropped")
	}
	if strings.Contains(m.View(), "▼ Crew Bravo") {
		t.Fatalf("drop target should be gone once the card is dropped:\n%s", m.View())
	}

	m, cmd := press(t, m, "h", "x")
	if cmd == nil {
		t.Fatalf("expected x on Crew Alpha to unassign while browsing")
	}
	cmd()
	dropCmd()
	if len(mut.unassigns) != 1 || mut.unassigns[0] != "wo-2" {
		t.Fatalf("unexpected unassigns: %+v", mut.unassigns)
	}
	if len(mut.assigns) != 1 || mut.assigns[0].WorkOrderID != "wo-1" || mut.assigns[0].CrewID != "crew-b" {
		t.Fatalf("unexpected assigns: %+v", mut.assigns)
	}
}

func TestBoard_DropOutsideLanesIsNoop(t *testing.T) {
	m, mut := newTestModel(t)

	m, _ = press(t, m, "space")
	for i := 0; i < 10; i++ {
		m, _ = press(t, m, "l")
	}
	if c := m.cols[m.sel.Col]; c.kind != columnCompleted {
		t.Fatalf("expected cursor on Completed, got %q", c.label)
	}
	m, cmd := press(t, m, "enter")
	if cmd != nil {
		t.Fatalf("drop on Completed must not start a request")
	}
	if _, held := m.ctrl.Dragged(); held {
		t.Fatalf("drop outside a lane should end the drag")
	}
	if len(mut.assigns) != 0 {
		t.Fatalf("drop on Completed must not assign: %+v", mut.assigns)
	}

	m, _ = press(t, m, "space", "l", "esc")
	if _, held := m.ctrl.Dragged(); held {
		t.Fatalf("esc should end the drag")
	}
	if len(mut.assigns) != 0 {
		t.Fatalf("cancel must not assign")
	}
}

func TestBoard_UnassignFromLane(t *testing.T) {
	m, mut := newTestModel(t)

	m, cmd := press(t, m, "x")
	if cmd != nil {
		t.Fatalf("x on the Unassigned column must do nothing")
	}
	m, cmd = press(t, m, "l", "x")
	if cmd == nil {
		t.Fatalf("expected an unassign command")
	}
	cmd()
	if len(mut.unassigns) != 1 || mut.unassigns[0] != "wo-2" {
		t.Fatalf("unexpected unassigns: %v", mut.unassigns)
	}
}

func TestBoard_OptimizeAsksFirst(t *testing.T) {
	m, mut := newTestModel(t)

	_, cmd := press(t, m, "o")
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()

	var prompt confirmMsg
	select {
	case msg := <-m.inbox.notes:
		prompt = msg.(confirmMsg)
	case <-time.After(2 * time.Second):
		t.Fatalf("no confirmation requested")
	}
	if !strings.Contains(prompt.prompt, "2026-03-10") {
		t.Fatalf("unexpected prompt: %q", prompt.prompt)
	}

	next, _ := m.Update(prompt)
	m = next.(boardModel)
	if !strings.Contains(m.View(), "y: confirm") {
		t.Fatalf("expected the confirm modal:\n%s", m.View())
	}
	m, _ = press(t, m, "y")
	if m.confirm != nil {
		t.Fatalf("modal should close after answering")
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("optimize did not finish")
	}
	if len(mut.optimizes) != 1 || mut.optimizes[0] != "2026-03-10" {
		t.Fatalf("unexpected optimize calls: %v", mut.optimizes)
	}
	msg := (<-m.inbox.notes).(noteMsg)
	if msg.level != noteInfo || !strings.HasPrefix(msg.text, "Assigned 1 of 1") {
		t.Fatalf("unexpected note: %+v", msg)
	}
}

func TestBoard_RendersSixLanesAndHiddenCount(t *testing.T) {
	m, _ := newTestModel(t)
	out := m.View()
	for _, want := range []string{"Unassigned (1)", "Crew Alpha (1)", "Crew Foxtrot (0)", "Completed (1)", "2 more crews without a lane"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Crew Golf") {
		t.Fatalf("seventh crew must not get a lane:\n%s", out)
	}
}

func TestBoard_LoadingAndDateKeys(t *testing.T) {
	st, err := board.NewStore(staticFetcher{exampleSnapshot()}, board.Options{Date: "2026-03-10"})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(st.Close)
	m := newBoardModel(Options{Board: st, Mutator: &fakeMutator{}, Now: func() time.Time { return testNow }})
	t.Cleanup(m.close)
	if !strings.Contains(m.View(), "Loading board") {
		t.Fatalf("expected the loading spinner:\n%s", m.View())
	}

	_, cmd := press(t, m, "]")
	cmd()
	if date, _ := st.Params(); date != "2026-03-11" {
		t.Fatalf("expected next day, got %s", date)
	}
	_, cmd = press(t, m, "v")
	cmd()
	if _, view := st.Params(); view != model.ViewWeek {
		t.Fatalf("expected week view, got %s", view)
	}
}
