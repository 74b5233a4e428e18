package cli

import (
	"context"
	"strings"
	"time"

	"dispatch-cli/internal/board"
	"dispatch-cli/internal/format"
	"dispatch-cli/internal/model"
	"dispatch-cli/internal/realtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newWatchCmd(app *App) *cobra.Command {
	var date, view string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow push events and print the board summary after each refresh",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := model.ParseView(view)
			if err != nil {
				return writeErr(cmd, err)
			}
			st, err := board.NewStore(app.client(), board.Options{Date: strings.TrimSpace(date), View: v, Logger: app.logger})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()
			ch, err := app.channel()
			if err != nil {
				return writeErr(cmd, err)
			}

			// Print once per applied snapshot; loading transitions are skipped.
			updates := make(chan board.State, 8)
			unsub := st.Subscribe(func(s board.State) {
				if s.Loading || !s.Loaded {
					return
				}
				select {
				case updates <- s:
				default:
				}
			})
			defer unsub()

			inv := realtime.New(ch, st, realtime.Options{Debounce: app.cfg.Debounce, Logger: app.logger})
			inv.Start()
			defer inv.Stop()

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				return ignoreCanceled(ch.Run(ctx))
			})
			g.Go(func() error {
				if err := st.Refresh(ctx); err != nil {
					app.logger.Warn("initial board fetch failed", "error", err)
				}
				var last model.Summary
				printed := false
				for {
					select {
					case <-ctx.Done():
						return ignoreCanceled(context.Cause(ctx))
					case s := <-updates:
						if printed && s.Snapshot.Summary == last {
							continue
						}
						last, printed = s.Snapshot.Summary, true
						out := summaryOut{At: time.Now(), Date: s.Date, View: s.View, Summary: s.Snapshot.Summary}
						if err := format.Write(cmd.OutOrStdout(), out, app.Format, false); err != nil {
							return err
						}
						for _, w := range s.Warnings {
							app.logger.Warn("board inconsistency", "warning", w)
						}
					}
				}
			})
			if err := g.Wait(); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "Board date YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&view, "view", "day", "Board view (day|week|month)")
	return cmd
}
