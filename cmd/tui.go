package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/journeyx/internal/shared"
	"github.com/desertthunder/journeyx/internal/tasks"
	"github.com/desertthunder/journeyx/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive journey browser.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	ref, err := stringArg(cmd, "journey")
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/journeyx-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	w, err := r.workspace(ctx, false)
	if err != nil {
		return err
	}
	defer w.Close()

	if _, err := r.loadJourney(ctx, w, ref); err != nil {
		return err
	}
	r.listen(ctx, w)

	model := ui.NewModel(ctx, w.cache, w.engine, tasks.BulkDeliverOpts{})
	defer model.Close()

	p := tea.NewProgram(model, tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
