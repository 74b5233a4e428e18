package cli

import (
	"fmt"
	"strings"

	"dispatch-cli/internal/model"
	"dispatch-cli/internal/webtui"

	"github.com/spf13/cobra"
)

func newWebTUICmd(app *App) *cobra.Command {
	var addr string
	var f boardFlags
	cmd := &cobra.Command{
		Use:   "webtui",
		Short: "Serve the interactive board in a browser terminal",
		Long: strings.TrimSpace(`
Serve the interactive board over HTTP. Every browser tab gets its own board
session running in a pseudo-terminal, relayed to xterm.js over a websocket.
Sessions use the same backend settings as this command.
`),
		Example: strings.TrimSpace(`
dispatch webtui --addr 127.0.0.1:8788
dispatch webtui --api-url http://127.0.0.1:8787/api --view week
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := model.ParseView(f.view); err != nil {
				return writeErr(cmd, err)
			}
			srv, err := webtui.NewServer(webtui.ServerConfig{
				Addr:   addr,
				APIURL: app.cfg.APIURL,
				WSURL:  app.cfg.WSURL,
				Token:  app.cfg.Token,
				Date:   f.date,
				View:   f.view,
				Logger: app.logger,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Dispatch web terminal running at http://%s/terminal\n", displayAddr(srv.Addr()))
			if err := srv.ListenAndServe(cmd.Context()); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8788", "Bind address (host:port or :port)")
	cmd.Flags().StringVar(&f.date, "date", "", "Board date YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&f.view, "view", "day", "Board view (day|week|month)")
	return cmd
}
