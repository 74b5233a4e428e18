package cli

import (
	"fmt"
	"strings"

	"dispatch-cli/internal/board"
	"dispatch-cli/internal/publish"

	"github.com/spf13/cobra"
)

type exportOut struct {
	publish.WriteResult `yaml:",inline"`
}

func (e exportOut) Text() string {
	return fmt.Sprintf("Wrote %d file(s):\n%s", len(e.Written), strings.Join(e.Written, "\n"))
}

func newExportCmd(app *App) *cobra.Command {
	var date, view, to string
	var overwrite, completed bool
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the board as linked markdown pages",
		Example: strings.TrimSpace(`
dispatch export --to ./board-pages
dispatch export --to ./board-pages --date 2026-03-10 --view week --completed --overwrite
`),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := fetchSnapshot(cmd, app, date, view)
			if err != nil {
				return writeErr(cmd, err)
			}
			res, err := publish.WriteBoard(snap, to, publish.WriteOptions{IncludeCompleted: completed, Overwrite: overwrite})
			if err != nil {
				return writeErr(cmd, err)
			}
			app.logger.Info("board exported", "date", snap.Date, "view", snap.View, "files", len(res.Written))
			return writeOut(cmd, app, exportOut{res}, board.Consistency(snap)...)
		},
	}
	cmd.Flags().StringVar(&to, "to", "", "Output directory")
	cmd.Flags().StringVar(&date, "date", "", "Board date YYYY-MM-DD (default: today)")
	cmd.Flags().StringVar(&view, "view", "day", "Board view (day|week|month)")
	cmd.Flags().BoolVar(&completed, "completed", false, "Include completed work orders")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace existing files")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}
