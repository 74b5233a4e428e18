package cli

import (
	"context"
	"errors"
	"strings"

	"dispatch-cli/internal/board"
	"dispatch-cli/internal/events"
	"dispatch-cli/internal/model"
	"dispatch-cli/internal/tui"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type boardFlags struct {
	date string
	view string
}

func newBoardCmd(app *App) *cobra.Command {
	var f boardFlags
	cmd := &cobra.Command{
		Use:   "board",
		Short: "Interactive dispatch board (default command)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBoard(cmd, app, f)
		},
	}
	cmd.Flags().StringVar(&f.date, "date", "", "Board date YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&f.view, "view", "day", "Board view (day|week|month)")
	return cmd
}

// runBoard wires the store, the push channel and the controller into the TUI.
// The channel and the program share one lifetime.
func runBoard(cmd *cobra.Command, app *App, f boardFlags) error {
	view, err := model.ParseView(f.view)
	if err != nil {
		return writeErr(cmd, err)
	}
	client := app.client()
	st, err := board.NewStore(client, board.Options{Date: strings.TrimSpace(f.date), View: view, Logger: app.logger})
	if err != nil {
		return writeErr(cmd, err)
	}
	defer st.Close()

	ch, err := app.channel()
	if err != nil {
		return writeErr(cmd, err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ignoreCanceled(ch.Run(gctx))
	})
	g.Go(func() error {
		defer cancel()
		return tui.Run(gctx, tui.Options{
			Board:    st,
			Mutator:  client,
			Source:   ch,
			Debounce: app.cfg.Debounce,
			Logger:   app.logger,
		})
	})
	if err := g.Wait(); err != nil {
		return writeErr(cmd, err)
	}
	return nil
}

func (app *App) channel() (*events.Channel, error) {
	wsURL, err := app.cfg.WebsocketURL()
	if err != nil {
		return nil, err
	}
	return events.NewChannel(events.ChannelConfig{URL: wsURL, Token: app.cfg.Token, Logger: app.logger}), nil
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
