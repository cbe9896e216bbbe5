package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/neilberkman/devlog/internal/core/hostsock"
	"github.com/neilberkman/devlog/internal/core/lifecycle"
	"github.com/neilberkman/devlog/internal/core/terminal"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run -- <command> [args...]",
	Short: "Run a command under a pty and record it",
	Long: `Run a command in a pseudo-terminal, showing its output as usual, and
record it with the last 64 KiB of its output into the active session.

Examples:
  devlog run -- go test ./...
  devlog run -- make deploy`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	backend, err := openBackend(ctx)
	if err != nil {
		return err
	}

	line := terminal.CommandLine(args)
	_, viaRecorder := backend.(*hostsock.Client)
	id := terminal.ID(os.Getpid())
	if viaRecorder {
		if err := backend.TerminalStart(ctx, id, line); err != nil {
			fmt.Fprintf(os.Stderr, "devlog: failed to notify recorder: %v\n", err)
		}
	}

	res, err := terminal.NewRunner().Run(ctx, args)
	if err != nil {
		return err
	}

	if viaRecorder {
		err = backend.TerminalEnd(ctx, id, res.ExitCode, res.Output)
	} else {
		err = backend.RecordCommand(ctx, res.Command, res.Output, res.ExitCode)
	}
	switch {
	case errors.Is(err, lifecycle.ErrNoActiveSession):
		fmt.Fprintln(os.Stderr, "devlog: no active session, command not recorded")
	case err != nil:
		fmt.Fprintf(os.Stderr, "devlog: failed to record command: %v\n", err)
	}

	if res.ExitCode != 0 {
		return &exitCodeError{code: res.ExitCode}
	}
	return nil
}
