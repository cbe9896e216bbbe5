package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/neilberkman/devlog/internal/core/log"
	"github.com/neilberkman/devlog/internal/interface/tui"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch interactive TUI browser",
	Long:  "Launch an interactive terminal UI for browsing sessions and editing their ledgers",
	Args:  cobra.NoArgs,
	RunE:  runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	backend, err := openBackend(ctx)
	if err != nil {
		return err
	}

	opts := tui.Options{
		Backend:        backend,
		Load:           openReader,
		ExportTemplate: cfg.ExportTemplate,
	}
	if database, err := openIndex(); err != nil {
		log.Warn().Err(err).Msg("search index unavailable")
	} else {
		defer func() { _ = database.Close() }()
		opts.DB = database
	}

	p := tea.NewProgram(
		tui.New(opts),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
