package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dispatch-cli/internal/store"
	"dispatch-cli/internal/web"

	"github.com/spf13/cobra"
)

func newServeCmd(app *App) *cobra.Command {
	var addr, dbPath string
	var seed bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sandbox dispatch backend (REST API, websocket events, dashboard)",
		Long: strings.TrimSpace(`
Run a local dispatch backend backed by SQLite.

It serves the board API under /api/dispatch-board, push events on /ws and a
live dashboard on /. An empty database is seeded with demo crews and work
orders; --seed replaces whatever is there. With --token set, API and
websocket requests must carry it as a Bearer token.
`),
		Example: strings.TrimSpace(`
dispatch serve --seed
dispatch serve --addr :8787 --db ./sandbox.sqlite --token s3cret
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("addr") {
				addr = app.cfg.Sandbox.Addr
			}
			if !cmd.Flags().Changed("db") {
				dbPath = app.cfg.Sandbox.DB
			}
			if dir := filepath.Dir(dbPath); dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return writeErr(cmd, err)
				}
			}

			ctx := cmd.Context()
			st, err := store.Open(ctx, dbPath)
			if err != nil {
				return writeErr(cmd, err)
			}
			defer st.Close()

			empty, err := st.Empty(ctx)
			if err != nil {
				return writeErr(cmd, err)
			}
			if empty || seed {
				if err := st.Save(ctx, store.Seed(time.Now())); err != nil {
					return writeErr(cmd, fmt.Errorf("seeding sandbox: %w", err))
				}
				app.logger.Info("sandbox seeded", "db", dbPath)
			}

			srv, err := web.NewServer(web.ServerConfig{
				Addr:   addr,
				Store:  st,
				Token:  app.cfg.Token,
				Logger: app.logger,
			})
			if err != nil {
				return writeErr(cmd, err)
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "Dispatch sandbox running at http://%s/ (api: http://%s/api)\n", displayAddr(addr), displayAddr(addr))
			if err := srv.ListenAndServe(ctx); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Bind address (host:port or :port; default from config)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (default from config)")
	cmd.Flags().BoolVar(&seed, "seed", false, "Replace the database contents with demo data")
	return cmd
}

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "127.0.0.1" + addr
	}
	return addr
}
