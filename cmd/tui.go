package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/setshare/internal/shared"
	"github.com/desertthunder/setshare/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal browser for the owner's sets.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	owner := cmd.String("owner")

	if err := r.ensureStores(); err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/setshare-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	model := ui.NewModel(ctx, r.collections, owner)
	p := tea.NewProgram(model)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
