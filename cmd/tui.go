package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"

	"github.com/desertthunder/nfcbox/internal/shared"
	"github.com/desertthunder/nfcbox/internal/ui"
)

// TUI launches the interactive control panel.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	if path := r.config.Log.File; path != "" {
		fileLogger, err := shared.NewFileLogger(path)
		if err != nil {
			return fmt.Errorf("failed to create file logger: %w", err)
		}
		fileLogger.SetLevel(r.logger.GetLevel())
		if err := r.SetLogger(fileLogger); err != nil {
			return err
		}
	}

	if r.engine == nil {
		return fmt.Errorf("%w: device client not initialized", shared.ErrServiceUnavailable)
	}
	r.recordOperations()

	model := ui.NewModel(ctx, r.engine, r.logger)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
