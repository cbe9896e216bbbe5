package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/neilberkman/devlog/internal/core/config"
	"github.com/neilberkman/devlog/internal/core/engine"
	"github.com/neilberkman/devlog/internal/core/metadata"
	"github.com/neilberkman/devlog/internal/core/models"
	"github.com/neilberkman/devlog/internal/core/search"
	"github.com/spf13/cobra"
)

var (
	listSince    string
	listLimit    int
	noteSession  string
	recordOutput string
	recordExit   int
)

var startCmd = &cobra.Command{
	Use:   "start <description>",
	Short: "Start a new session and make it active",
	Long: `Create a session from a short description of what you are about to do.
The session is named from the description and becomes the active session.

Examples:
  devlog start "fix auth bug in login"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runStart,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, newest first",
	Long: `List recorded sessions in reverse chronological order.

Examples:
  devlog list
  devlog list --since yesterday
  devlog list --since 2026-03-01 --limit 5`,
	RunE: runList,
}

var showCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Show a session's ledger (default: the active session)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runShow,
}

var activateCmd = &cobra.Command{
	Use:   "activate <session-id>",
	Short: "Make an existing session the active one",
	Args:  cobra.ExactArgs(1),
	RunE:  runActivate,
}

var closeCmd = &cobra.Command{
	Use:   "close",
	Short: "Stop recording into the active session",
	Args:  cobra.NoArgs,
	RunE:  runClose,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session and its record",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var noteCmd = &cobra.Command{
	Use:   "note <text>",
	Short: "Add a note to the active session",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runNote,
}

var recordCmd = &cobra.Command{
	Use:   "record <command>",
	Short: "Record a command into the active session by hand",
	Long: `Record a command that devlog did not see run. Manual records are
kept even when terminal tracking is disabled.

Examples:
  devlog record "make deploy" --exit 0
  devlog record "go test ./..." --output "$(cat test.log)" --exit 1`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(startCmd, listCmd, showCmd, activateCmd, closeCmd, deleteCmd, noteCmd, recordCmd)

	listCmd.Flags().StringVar(&listSince, "since", "", "Only sessions started after this date (e.g. yesterday, 2026-03-01)")
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "Maximum number of sessions to display")
	noteCmd.Flags().StringVar(&noteSession, "session", "", "Session to add the note to (default: active)")
	recordCmd.Flags().StringVar(&recordOutput, "output", "", "Captured command output")
	recordCmd.Flags().IntVar(&recordExit, "exit", 0, "Exit code")
}

func runStart(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	backend, err := openBackend(ctx)
	if err != nil {
		return err
	}

	var spin *spinner
	if cfg.Namer != config.NamerHeuristic && isTerminal(os.Stderr) {
		spin = newSpinner(os.Stderr, "Naming session...")
		spin.Start()
	}
	sess, err := backend.StartSession(ctx, strings.Join(args, " "))
	if spin != nil {
		spin.Stop()
	}
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}

	fmt.Printf("✓ Started %s\n", sess.Name)
	fmt.Printf("  ID: %s\n", sess.ID)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	var since time.Time
	if listSince != "" {
		t, ok := search.ParseDate(listSince, time.Now())
		if !ok {
			return fmt.Errorf("could not understand --since %q", listSince)
		}
		since = t
	}

	reader, err := openReader(cmd.Context())
	if err != nil {
		return err
	}

	var sessions []models.SessionSummary
	for _, s := range reader.Store.List() {
		if s.StartTime.Before(since) {
			continue
		}
		sessions = append(sessions, s)
	}

	if len(sessions) == 0 {
		fmt.Println("No sessions found. Run 'devlog start <description>' to begin one.")
		return nil
	}

	total := len(sessions)
	if len(sessions) > listLimit {
		sessions = sessions[:listLimit]
	}

	fmt.Printf("Showing %d of %d session(s)\n\n", len(sessions), total)
	for i, s := range sessions {
		marker := " "
		if s.Active {
			marker = "*"
		}
		fmt.Printf("%s[%d] %s\n", marker, i+1, s.Name)
		fmt.Printf("    ID:      %s\n", s.ID)
		if s.Description != "" && s.Description != s.Name {
			fmt.Printf("    About:   %s\n", truncateSummary(s.Description, 80))
		}
		fmt.Printf("    Actions: %d\n", s.ActionCount)
		fmt.Printf("    Started: %s\n", humanize.Time(s.StartTime))
		fmt.Println()
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	reader, err := openReader(cmd.Context())
	if err != nil {
		return err
	}

	id := reader.Lifecycle.ActiveSessionID()
	if len(args) > 0 {
		if id, err = resolveSessionID(reader, args[0]); err != nil {
			return err
		}
	}
	if id == "" {
		return fmt.Errorf("no active session; pass a session id")
	}

	sess, err := reader.Store.Get(id)
	if err != nil {
		return err
	}

	fmt.Printf("%s\n", sess.Name)
	fmt.Printf("ID:      %s\n", sess.ID)
	fmt.Printf("Started: %s (%s)\n", sess.StartTime.Local().Format("2006-01-02 15:04"), humanize.Time(sess.StartTime))
	if sess.Description != "" {
		fmt.Printf("About:   %s\n", sess.Description)
	}
	if strings.TrimSpace(sess.Notes) != "" {
		fmt.Printf("Notes:   %s\n", sess.Notes)
	}
	fmt.Println()

	if len(sess.Actions) == 0 {
		fmt.Println("No actions recorded yet.")
		return nil
	}
	for i := range sess.Actions {
		printAction(i, &sess.Actions[i])
	}

	refs := metadata.Extract(sess.Actions)
	if len(refs.Issues) > 0 {
		ids := make([]string, len(refs.Issues))
		for i, occ := range refs.Issues {
			ids[i] = occ.Value
		}
		fmt.Printf("\nIssues: %s\n", strings.Join(ids, ", "))
	}
	if len(refs.Files) > 0 {
		fmt.Println("\nFiles:")
		for _, occ := range refs.Files {
			mark := " "
			if occ.Modified {
				mark = "M"
			}
			fmt.Printf("  %s %s (%d)\n", mark, occ.Value, occ.Count)
		}
	}
	return nil
}

func printAction(i int, a *models.Action) {
	fmt.Printf("%3d  %s  %-11s %s\n", i, a.Timestamp.Local().Format("15:04:05"), a.Type, a.Summary())
}

func runActivate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := resolveArg(ctx, args[0])
	if err != nil {
		return err
	}
	backend, err := openBackend(ctx)
	if err != nil {
		return err
	}
	if err := backend.ActivateSession(ctx, id); err != nil {
		return fmt.Errorf("failed to activate session: %w", err)
	}
	fmt.Printf("✓ Active session: %s\n", id)
	return nil
}

func runClose(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	backend, err := openBackend(ctx)
	if err != nil {
		return err
	}
	if err := backend.CloseSession(ctx); err != nil {
		return fmt.Errorf("failed to close session: %w", err)
	}
	fmt.Println("✓ No session is active")
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	id, err := resolveArg(ctx, args[0])
	if err != nil {
		return err
	}
	backend, err := openBackend(ctx)
	if err != nil {
		return err
	}
	if err := backend.DeleteSession(ctx, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	fmt.Printf("✓ Deleted %s\n", id)
	return nil
}

func runNote(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	target := ""
	if noteSession != "" {
		id, err := resolveArg(ctx, noteSession)
		if err != nil {
			return err
		}
		target = id
	}
	backend, err := openBackend(ctx)
	if err != nil {
		return err
	}
	note := models.NewNote(strings.Join(args, " "), time.Now())
	if err := backend.AddAction(ctx, target, note); err != nil {
		return fmt.Errorf("failed to add note: %w", err)
	}
	fmt.Println("✓ Note added")
	return nil
}

func runRecord(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	backend, err := openBackend(ctx)
	if err != nil {
		return err
	}
	if err := backend.RecordCommand(ctx, strings.Join(args, " "), recordOutput, recordExit); err != nil {
		return fmt.Errorf("failed to record command: %w", err)
	}
	fmt.Println("✓ Command recorded")
	return nil
}

// resolveArg expands a session id prefix against the persisted records
func resolveArg(ctx context.Context, arg string) (string, error) {
	reader, err := openReader(ctx)
	if err != nil {
		return "", err
	}
	return resolveSessionID(reader, arg)
}

// resolveSessionID accepts a full id or a unique prefix of one
func resolveSessionID(e *engine.Engine, arg string) (string, error) {
	if e.Store.Exists(arg) {
		return arg, nil
	}
	var matches []string
	for _, s := range e.Store.List() {
		if strings.HasPrefix(s.ID, arg) {
			matches = append(matches, s.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("session not found: %s", arg)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("session id %q is ambiguous (%d matches)", arg, len(matches))
}

// truncateSummary truncates long summaries for display
func truncateSummary(summary string, maxLen int) string {
	summary = strings.Join(strings.Fields(summary), " ")
	if len(summary) <= maxLen {
		return summary
	}

	// Find a good break point (end of word)
	truncated := summary[:maxLen]
	lastSpace := strings.LastIndex(truncated, " ")
	if lastSpace > maxLen-20 {
		truncated = truncated[:lastSpace]
	}
	return truncated + "..."
}
