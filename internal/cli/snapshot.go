package cli

import (
	"fmt"
	"strings"

	"dispatch-cli/internal/board"
	"dispatch-cli/internal/model"

	"github.com/spf13/cobra"
)

func newSnapshotCmd(app *App) *cobra.Command {
	var date, view string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Print one board snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := fetchSnapshot(cmd, app, date, view)
			if err != nil {
				return writeErr(cmd, err)
			}
			return writeOut(cmd, app, snapshotOut{snap}, board.Consistency(snap)...)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Board date YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&view, "view", "day", "Board view (day|week|month)")
	return cmd
}

func newShowCmd(app *App) *cobra.Command {
	var date, view string
	cmd := &cobra.Command{
		Use:   "show <work-order-id>",
		Short: "Print one work order from the board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := fetchSnapshot(cmd, app, date, view)
			if err != nil {
				return writeErr(cmd, err)
			}
			wo, ok := snap.FindWorkOrder(args[0])
			if !ok {
				return writeErr(cmd, fmt.Errorf("%w: %s (board %s, %s)", errNoWorkOrder, strings.TrimSpace(args[0]), snap.Date, snap.View))
			}
			return writeOut(cmd, app, workOrderOut{wo})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Board date YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&view, "view", "month", "Board view to search (day|week|month)")
	return cmd
}

// fetchSnapshot goes through a board store so the same validation and
// consistency logging apply as in the interactive board.
func fetchSnapshot(cmd *cobra.Command, app *App, date, view string) (model.BoardSnapshot, error) {
	v, err := model.ParseView(view)
	if err != nil {
		return model.BoardSnapshot{}, err
	}
	st, err := board.NewStore(app.client(), board.Options{Date: strings.TrimSpace(date), View: v, Logger: app.logger})
	if err != nil {
		return model.BoardSnapshot{}, err
	}
	defer st.Close()
	if err := st.Refresh(cmd.Context()); err != nil {
		return model.BoardSnapshot{}, err
	}
	snap, _ := st.Snapshot()
	return snap, nil
}
