package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/neilberkman/devlog/internal/core/config"
	"github.com/neilberkman/devlog/internal/core/log"
	"github.com/spf13/cobra"
)

var (
	cfg         *config.Config
	sessionsDir string
	dbPath      string
	logLevel    string
	versionInfo string
)

// SetVersion sets the version information from build-time ldflags
func SetVersion(version, commit, date string) {
	versionInfo = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date)
	rootCmd.Version = versionInfo
}

// exitCodeError carries a child command's exit status out of RunE so
// deferred cleanup runs before the process exits.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

// exitCode maps an Execute error to the process exit status
func exitCode(err error) int {
	var ec *exitCodeError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &ec):
		return ec.code
	}
	return 1
}

// Execute runs the CLI
func Execute() {
	err := rootCmd.Execute()
	var ec *exitCodeError
	if err != nil && !errors.As(err, &ec) {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	if code := exitCode(err); code != 0 {
		os.Exit(code)
	}
}

var rootCmd = &cobra.Command{
	Use:   "devlog",
	Short: "Record what you did while you worked",
	Long: `devlog - a development session recorder

Start a session with a short description, then work as usual. Commands run
in hooked shells, file edits under a watched directory and notes you add are
appended to the active session's ledger, which you can reorder, prune,
search and export afterwards.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to TUI if no subcommand specified
		return tuiCmd.RunE(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sessionsDir, "sessions-dir", "", "Session record directory (default from config)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Search index path (default from config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	loaded, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if sessionsDir != "" {
		loaded.SessionsDir = sessionsDir
	}
	if dbPath != "" {
		loaded.DBPath = dbPath
	}
	if logLevel != "" {
		loaded.LogLevel = logLevel
	}
	log.SetLevel(loaded.LogLevel)
	cfg = loaded
	return nil
}
