// Package drag implements crew assignment by drag and drop. It never patches
// the board locally: every mutation is followed by a full board refresh.
package drag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"dispatch-cli/internal/api"
	"dispatch-cli/internal/board"
	"dispatch-cli/internal/model"
)

var (
	ErrNotDragging = errors.New("no work order is being dragged")
	ErrUnknownWork = errors.New("work order not on the board")
)

const (
	// DefaultStartHour is the hour an unscheduled assignment starts at.
	DefaultStartHour = 8
	// DefaultDurationHours is the window length given to unscheduled assignments.
	DefaultDurationHours = 2.0
)

type Phase int

const (
	Idle Phase = iota
	Dragging
	Submitting
)

func (p Phase) String() string {
	switch p {
	case Dragging:
		return "dragging"
	case Submitting:
		return "submitting"
	default:
		return "idle"
	}
}

// Mutator is the subset of the backend client the controller writes through.
type Mutator interface {
	AssignCrew(ctx context.Context, req api.AssignRequest) (api.AssignResult, error)
	UnassignCrew(ctx context.Context, workOrderID string) error
	Optimize(ctx context.Context, date string) (api.OptimizeResult, error)
}

// Board is the store the controller reads targets from and refreshes.
type Board interface {
	Snapshot() (model.BoardSnapshot, bool)
	Params() (string, model.View)
	Refresh(ctx context.Context) error
}

// Notifier surfaces outcomes to the user. Alert is for failures, Warn for
// successful operations with caveats, Info for plain results.
type Notifier interface {
	Alert(msg string)
	Warn(msg string)
	Info(msg string)
	// Confirm blocks until the user answers or ctx ends.
	Confirm(ctx context.Context, prompt string) bool
}

type Options struct {
	Logger *slog.Logger
	Now    func() time.Time
}

type Controller struct {
	mutator  Mutator
	board    Board
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	dragged *model.WorkOrder
	pending int
}

func New(mutator Mutator, b Board, notifier Notifier, opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Controller{mutator: mutator, board: b, notifier: notifier, logger: logger, now: now}
}

// Phase reports Dragging while a gesture holds a work order, otherwise
// Submitting while any mutation is in flight, otherwise Idle.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.dragged != nil:
		return Dragging
	case c.pending > 0:
		return Submitting
	default:
		return Idle
	}
}

// Dragged returns the work order held by the current gesture.
func (c *Controller) Dragged() (model.WorkOrder, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dragged == nil {
		return model.WorkOrder{}, false
	}
	return *c.dragged, true
}

func (c *Controller) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// BeginDrag starts a gesture holding wo. Starting a new gesture replaces any
// gesture that never ended.
func (c *Controller) BeginDrag(wo model.WorkOrder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	held := wo
	c.dragged = &held
}

// EndDrag ends a gesture without a drop. No request is made.
func (c *Controller) EndDrag() {
	c.mu.Lock()
	c.dragged = nil
	c.mu.Unlock()
}

// Drop ends the gesture on a crew lane. If crewID is not a visible lane the
// gesture ends with no mutation and submitted is false. Otherwise the
// assignment is sent and the board refreshed regardless of the outcome.
func (c *Controller) Drop(ctx context.Context, crewID string) (submitted bool, err error) {
	wo, ok := c.Release()
	if !ok {
		return false, ErrNotDragging
	}
	return c.DropOnto(ctx, wo, crewID)
}

// Release ends the gesture and hands back the held card, so a caller can
// leave the dragging state before the drop request runs.
func (c *Controller) Release() (model.WorkOrder, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dragged == nil {
		return model.WorkOrder{}, false
	}
	wo := *c.dragged
	c.dragged = nil
	return wo, true
}

// DropOnto finishes a released gesture. It behaves like Drop for a card
// already taken with Release.
func (c *Controller) DropOnto(ctx context.Context, wo model.WorkOrder, crewID string) (submitted bool, err error) {
	snap, _ := c.board.Snapshot()
	if !board.IsDropTarget(snap, crewID) {
		c.logger.Debug("drop outside a crew lane", "work_order_id", wo.ID, "crew_id", crewID)
		return false, nil
	}
	return true, c.assign(ctx, wo, strings.TrimSpace(crewID))
}

// AssignCrew assigns a work order on the current board to a crew.
func (c *Controller) AssignCrew(ctx context.Context, workOrderID, crewID string) error {
	snap, _ := c.board.Snapshot()
	wo, ok := snap.FindWorkOrder(workOrderID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownWork, workOrderID)
	}
	return c.assign(ctx, wo, strings.TrimSpace(crewID))
}

func (c *Controller) assign(ctx context.Context, wo model.WorkOrder, crewID string) error {
	req := c.assignRequest(wo, crewID)

	c.begin()
	defer c.end()

	res, err := c.mutator.AssignCrew(ctx, req)
	if err != nil {
		c.logger.Error("assign crew failed", "work_order_id", wo.ID, "crew_id", crewID, "error", err)
		c.notifier.Alert("Failed to assign crew. Please try again.")
	} else {
		c.logger.Info("crew assigned", "work_order_id", wo.ID, "crew_id", crewID, "conflicts", res.Conflicts)
		if res.Conflicts > 0 {
			c.notifier.Warn(fmt.Sprintf("Crew assigned with %d scheduling %s.", res.Conflicts, plural(res.Conflicts, "conflict", "conflicts")))
		}
	}
	c.refresh(ctx)
	if err != nil {
		return fmt.Errorf("assigning %s to %s: %w", wo.ID, crewID, err)
	}
	return nil
}

func (c *Controller) assignRequest(wo model.WorkOrder, crewID string) api.AssignRequest {
	return NewAssignRequest(wo, crewID, c.now())
}

// NewAssignRequest keeps an explicit schedule; otherwise the work starts at
// 08:00 on now's day and runs two hours.
func NewAssignRequest(wo model.WorkOrder, crewID string, now time.Time) api.AssignRequest {
	req := api.AssignRequest{WorkOrderID: wo.ID, CrewID: crewID}
	if wo.HasSchedule() {
		req.ScheduledStart = *wo.ScheduledStart
		switch {
		case wo.EstimatedDurationHours > 0:
			req.EstimatedDurationHours = wo.EstimatedDurationHours
		case wo.ScheduledEnd != nil && wo.ScheduledEnd.After(*wo.ScheduledStart):
			req.EstimatedDurationHours = wo.ScheduledEnd.Sub(*wo.ScheduledStart).Hours()
		default:
			req.EstimatedDurationHours = DefaultDurationHours
		}
		return req
	}
	req.ScheduledStart = time.Date(now.Year(), now.Month(), now.Day(), DefaultStartHour, 0, 0, 0, now.Location())
	req.EstimatedDurationHours = DefaultDurationHours
	return req
}

// UnassignCrew removes the crew from a work order. No confirmation.
func (c *Controller) UnassignCrew(ctx context.Context, workOrderID string) error {
	workOrderID = strings.TrimSpace(workOrderID)
	c.begin()
	defer c.end()

	err := c.mutator.UnassignCrew(ctx, workOrderID)
	if err != nil {
		c.logger.Error("unassign crew failed", "work_order_id", workOrderID, "error", err)
		c.notifier.Alert("Failed to unassign crew. Please try again.")
	} else {
		c.logger.Info("crew unassigned", "work_order_id", workOrderID)
	}
	c.refresh(ctx)
	if err != nil {
		return fmt.Errorf("unassigning %s: %w", workOrderID, err)
	}
	return nil
}

// OptimizePrompt is the confirmation shown before a bulk auto-assign.
const OptimizePrompt = "Auto-assign all unassigned work orders for %s? Existing assignments are kept."

// Optimize asks for confirmation, then auto-assigns the board date's work.
// It returns false if the user declined.
func (c *Controller) Optimize(ctx context.Context) (bool, error) {
	date, _ := c.board.Params()
	if !c.notifier.Confirm(ctx, fmt.Sprintf(OptimizePrompt, date)) {
		return false, nil
	}

	c.begin()
	defer c.end()

	res, err := c.mutator.Optimize(ctx, date)
	if err != nil {
		c.logger.Error("optimize schedule failed", "date", date, "error", err)
		c.notifier.Alert("Failed to optimize schedule. Please try again.")
		c.refresh(ctx)
		return true, fmt.Errorf("optimizing %s: %w", date, err)
	}
	c.logger.Info("schedule optimized", "date", date, "message", res.Message)
	msg := strings.TrimSpace(res.Message)
	if msg == "" {
		msg = "Schedule optimized."
	}
	c.notifier.Info(msg)
	c.refresh(ctx)
	return true, nil
}

func (c *Controller) refresh(ctx context.Context) {
	if err := c.board.Refresh(ctx); err != nil {
		c.logger.Warn("board refresh after mutation failed", "error", err)
	}
}

func (c *Controller) begin() {
	c.mu.Lock()
	c.pending++
	c.mu.Unlock()
}

func (c *Controller) end() {
	c.mu.Lock()
	c.pending--
	c.mu.Unlock()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
