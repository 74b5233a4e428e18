package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"dispatch-cli/internal/api"
	"dispatch-cli/internal/board"
	"dispatch-cli/internal/drag"
	"dispatch-cli/internal/model"

	"github.com/spf13/cobra"
)

func newAssignCmd(app *App) *cobra.Command {
	var date, start string
	var hours float64
	cmd := &cobra.Command{
		Use:   "assign <work-order-id> <crew-id>",
		Short: "Assign a crew to a work order",
		Long: strings.TrimSpace(`
Assign a crew to a work order.

Without --start the work order keeps its schedule; unscheduled work starts at
08:00 today and runs two hours.
`),
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			woID, crewID := strings.TrimSpace(args[0]), strings.TrimSpace(args[1])
			snap, err := fetchSnapshot(cmd, app, date, string(model.ViewMonth))
			if err != nil {
				return writeErr(cmd, err)
			}
			wo, ok := snap.FindWorkOrder(woID)
			if !ok {
				return writeErr(cmd, fmt.Errorf("%w: %s", errNoWorkOrder, woID))
			}
			if _, ok := snap.FindCrew(crewID); !ok {
				return writeErr(cmd, fmt.Errorf("crew not found: %s", crewID))
			}

			req := drag.NewAssignRequest(wo, crewID, time.Now())
			if strings.TrimSpace(start) != "" {
				t, err := time.Parse(time.RFC3339, strings.TrimSpace(start))
				if err != nil {
					return writeErr(cmd, fmt.Errorf("invalid --start: %w", err))
				}
				req.ScheduledStart = t
			}
			if cmd.Flags().Changed("hours") {
				if hours <= 0 {
					return writeErr(cmd, errors.New("--hours must be positive"))
				}
				req.EstimatedDurationHours = hours
			}

			res, err := app.client().AssignCrew(cmd.Context(), req)
			if err != nil {
				return writeErr(cmd, err)
			}
			app.logger.Info("crew assigned", "work_order_id", req.WorkOrderID, "crew_id", req.CrewID, "conflicts", res.Conflicts)
			out := assignOut{
				WorkOrderID:            req.WorkOrderID,
				CrewID:                 req.CrewID,
				ScheduledStart:         req.ScheduledStart,
				EstimatedDurationHours: req.EstimatedDurationHours,
				Conflicts:              res.Conflicts,
			}
			var hints []string
			if !board.IsDropTarget(snap, crewID) {
				hints = append(hints, "crew "+crewID+" has no lane on the interactive board")
			}
			return writeOut(cmd, app, out, hints...)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Board date used to look the work order up (default: today)")
	cmd.Flags().StringVar(&start, "start", "", "Scheduled start (RFC 3339)")
	cmd.Flags().Float64Var(&hours, "hours", drag.DefaultDurationHours, "Estimated duration in hours")
	return cmd
}

func newUnassignCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "unassign <work-order-id>",
		Short: "Remove the crew from a work order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if err := app.client().UnassignCrew(cmd.Context(), id); err != nil {
				return writeErr(cmd, err)
			}
			app.logger.Info("crew unassigned", "work_order_id", id)
			return writeOut(cmd, app, messageOut{Message: "Unassigned " + id + "."})
		},
	}
}

func newOptimizeCmd(app *App) *cobra.Command {
	var date string
	var yes bool
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Auto-assign the day's unassigned work orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := app.client()
			st, err := board.NewStore(client, board.Options{Date: strings.TrimSpace(date), Logger: app.logger})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			n := &promptNotifier{in: cmd.InOrStdin(), out: cmd.ErrOrStderr(), yes: yes}
			ctrl := drag.New(client, st, n, drag.Options{Logger: app.logger})
			ran, err := ctrl.Optimize(cmd.Context())
			if err != nil {
				return writeErr(cmd, err)
			}
			if !ran {
				return writeOut(cmd, app, messageOut{Message: "Optimize cancelled."})
			}
			return writeOut(cmd, app, messageOut{Message: n.lastInfo})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Board date YYYY-MM-DD (default: today)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// promptNotifier is the controller's notifier on a plain terminal: alerts
// and warnings go to stderr, confirmations are read from In.
type promptNotifier struct {
	in       io.Reader
	out      io.Writer
	yes      bool
	lastInfo string
}

func (n *promptNotifier) Alert(msg string) { fmt.Fprintln(n.out, "error: "+msg) }
func (n *promptNotifier) Warn(msg string)  { fmt.Fprintln(n.out, "warning: "+msg) }
func (n *promptNotifier) Info(msg string)  { n.lastInfo = msg }

func (n *promptNotifier) Confirm(ctx context.Context, prompt string) bool {
	if n.yes {
		return true
	}
	fmt.Fprint(n.out, prompt+" [y/N] ")
	answer := make(chan string, 1)
	go func() {
		line, _ := bufio.NewReader(n.in).ReadString('\n')
		answer <- strings.ToLower(strings.TrimSpace(line))
	}()
	select {
	case a := <-answer:
		return a == "y" || a == "yes"
	case <-ctx.Done():
		return false
	}
}

var _ drag.Mutator = (*api.Client)(nil)
