package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/neilberkman/devlog/internal/core/hostsock"
	"github.com/neilberkman/devlog/internal/core/models"
	"github.com/neilberkman/devlog/internal/core/terminal"
	"github.com/spf13/cobra"
)

var hookTerminal string

var hookCmd = &cobra.Command{
	Use:   "hook",
	Short: "Shell integration for terminal tracking",
	Long: `Shell hooks report each command's start and end to devlog.

Add this to your shell rc file:
  eval "$(devlog hook init zsh)"    # or bash`,
}

var hookStartCmd = &cobra.Command{
	Use:   "start -- <command line>",
	Short: "Report that a command started",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runHookStart,
}

var hookEndCmd = &cobra.Command{
	Use:   "end <exit-code>",
	Short: "Report that the last command finished",
	Args:  cobra.ExactArgs(1),
	RunE:  runHookEnd,
}

var hookInitCmd = &cobra.Command{
	Use:       "init <bash|zsh>",
	Short:     "Print the shell snippet that installs the hooks",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"bash", "zsh"},
	RunE:      runHookInit,
}

func init() {
	rootCmd.AddCommand(hookCmd)
	hookCmd.AddCommand(hookStartCmd, hookEndCmd, hookInitCmd)
	hookCmd.PersistentFlags().StringVar(&hookTerminal, "terminal", "", "Terminal id (default: $DEVLOG_TERMINAL_ID or the parent shell's pid)")
}

func hookTerminalID() string {
	if hookTerminal != "" {
		return hookTerminal
	}
	if id := os.Getenv("DEVLOG_TERMINAL_ID"); id != "" {
		return id
	}
	return terminal.ID(os.Getppid())
}

func runHookStart(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	line := strings.TrimSpace(strings.Join(args, " "))
	id := hookTerminalID()

	if sock := cfg.SocketPath(); hostsock.Available(sock) {
		return hostsock.NewClient(sock).TerminalStart(ctx, id, line)
	}

	// Without a recorder the start is parked on disk for the matching end
	local, err := openReader(ctx)
	if err != nil {
		return err
	}
	return local.ParkStart(id, line)
}

func runHookEnd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	exitCode, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid exit code %q", args[0])
	}
	id := hookTerminalID()

	if sock := cfg.SocketPath(); hostsock.Available(sock) {
		output := terminal.NewCapturer(cfg.CaptureOutput).Capture()
		return hostsock.NewClient(sock).TerminalEnd(ctx, id, exitCode, output)
	}

	local, err := openReader(ctx)
	if err != nil {
		return err
	}
	parked, ok := local.TakeParked(id)
	if !ok {
		return nil
	}
	output := terminal.NewCapturer(cfg.CaptureOutput).Capture()
	action := models.NewCommand(parked.Command, output, exitCode == 0, time.Now())
	return local.AddAction(ctx, parked.SessionID, action)
}

const zshHook = `# devlog shell integration
export DEVLOG_TERMINAL_ID="pid-$$"
__devlog_preexec() {
  devlog hook start -- "$1" >/dev/null 2>&1
  __devlog_running=1
}
__devlog_precmd() {
  local code=$?
  if [[ -n "$__devlog_running" ]]; then
    devlog hook end "$code" >/dev/null 2>&1
    unset __devlog_running
  fi
}
autoload -Uz add-zsh-hook
add-zsh-hook preexec __devlog_preexec
add-zsh-hook precmd __devlog_precmd
`

const bashHook = `# devlog shell integration
export DEVLOG_TERMINAL_ID="pid-$$"
__devlog_preexec() {
  [[ -n "$COMP_LINE" || -n "$__devlog_running" ]] && return
  case "$BASH_COMMAND" in __devlog_*|devlog\ hook*) return ;; esac
  __devlog_running=1
  devlog hook start -- "$BASH_COMMAND" >/dev/null 2>&1
}
__devlog_precmd() {
  local code=$?
  if [[ -n "$__devlog_running" ]]; then
    devlog hook end "$code" >/dev/null 2>&1
    unset __devlog_running
  fi
}
trap '__devlog_preexec' DEBUG
PROMPT_COMMAND="__devlog_precmd${PROMPT_COMMAND:+;$PROMPT_COMMAND}"
`

func hookSnippet(shell string) (string, error) {
	switch shell {
	case "zsh":
		return zshHook, nil
	case "bash":
		return bashHook, nil
	}
	return "", fmt.Errorf("unsupported shell %q (want bash or zsh)", shell)
}

func runHookInit(cmd *cobra.Command, args []string) error {
	snippet, err := hookSnippet(args[0])
	if err != nil {
		return err
	}
	fmt.Print(snippet)
	return nil
}
