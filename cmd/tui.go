package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/usher/internal/repositories"
	"github.com/desertthunder/usher/internal/shared"
	"github.com/desertthunder/usher/internal/ui"
)

// TUI launches the interactive redemption browser. Log output is redirected
// to a file so it doesn't corrupt the terminal state bubbletea owns.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	logger, err := shared.NewFileLogger("./tmp/usher-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}
	r.SetLogger(logger)

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	model := ui.NewModel(ctx, r.newEngine(db),
		repositories.NewInvitationRepository(db),
		repositories.NewMediaServerRepository(db),
		cmd.String("username"), cmd.String("email"))

	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		return fmt.Errorf("tui exited with error: %w", err)
	}
	return nil
}
