package tui

import (
	"context"
	"errors"

	"dispatch-cli/internal/realtime"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the interactive board until the user quits or ctx ends.
func Run(ctx context.Context, opts Options) error {
	applyColorProfilePreference()
	applyThemePreference()

	m := newBoardModel(opts)
	defer m.close()

	if opts.Source != nil {
		inv := realtime.New(opts.Source, opts.Board, realtime.Options{Debounce: opts.Debounce, Logger: opts.Logger})
		inv.Start()
		defer inv.Stop()
	}

	_, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
