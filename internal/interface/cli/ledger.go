package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:   "rm <session-id> <index>",
	Short: "Remove one action from a session's ledger",
	Long: `Remove the action at <index> (as shown by 'devlog show').

Examples:
  devlog rm 20260301-0930 4`,
	Args: cobra.ExactArgs(2),
	RunE: runRm,
}

var moveCmd = &cobra.Command{
	Use:   "move <src-session> <src-index> <dst-session> <dst-index>",
	Short: "Move an action to a position in the same or another session",
	Long: `Move the action at <src-index> so that it ends up at <dst-index> in the
destination ledger. Within one session the destination index counts
positions before the removal, so moving index 0 to 3 places it just before
the element that was at 3.

Examples:
  devlog move 20260301 2 20260302 0`,
	Args: cobra.ExactArgs(4),
	RunE: runMove,
}

var reorderCmd = &cobra.Command{
	Use:   "reorder <session-id> <old-index> <new-index>",
	Short: "Move an action to a new index within its session",
	Args:  cobra.ExactArgs(3),
	RunE:  runReorder,
}

func init() {
	rootCmd.AddCommand(rmCmd, moveCmd, reorderCmd)
}

func parseIndexes(args ...string) ([]int, error) {
	out := make([]int, len(args))
	for i, a := range args {
		n, err := strconv.Atoi(a)
		if err != nil {
			return nil, fmt.Errorf("invalid index %q", a)
		}
		out[i] = n
	}
	return out, nil
}

func runRm(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	idx, err := parseIndexes(args[1])
	if err != nil {
		return err
	}
	id, err := resolveArg(ctx, args[0])
	if err != nil {
		return err
	}
	backend, err := openBackend(ctx)
	if err != nil {
		return err
	}
	if err := backend.DeleteAction(ctx, id, idx[0]); err != nil {
		return fmt.Errorf("failed to remove action: %w", err)
	}
	fmt.Printf("✓ Removed action %d from %s\n", idx[0], id)
	return nil
}

func runMove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	idx, err := parseIndexes(args[1], args[3])
	if err != nil {
		return err
	}
	src, err := resolveArg(ctx, args[0])
	if err != nil {
		return err
	}
	dst, err := resolveArg(ctx, args[2])
	if err != nil {
		return err
	}
	backend, err := openBackend(ctx)
	if err != nil {
		return err
	}
	if err := backend.MoveAction(ctx, src, idx[0], dst, idx[1]); err != nil {
		return fmt.Errorf("failed to move action: %w", err)
	}
	fmt.Printf("✓ Moved %s[%d] to %s[%d]\n", src, idx[0], dst, idx[1])
	return nil
}

func runReorder(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	idx, err := parseIndexes(args[1], args[2])
	if err != nil {
		return err
	}
	id, err := resolveArg(ctx, args[0])
	if err != nil {
		return err
	}
	backend, err := openBackend(ctx)
	if err != nil {
		return err
	}
	if err := backend.ReorderAction(ctx, id, idx[0], idx[1]); err != nil {
		return fmt.Errorf("failed to reorder: %w", err)
	}
	fmt.Printf("✓ Moved action %d to %d in %s\n", idx[0], idx[1], id)
	return nil
}
