package cli

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/neilberkman/devlog/internal/core/db"
	"github.com/spf13/cobra"
)

var findCmd = &cobra.Command{
	Use:   "find",
	Short: "Find sessions by issue ID or file path",
	Long: `Find sessions whose ledger mentions an issue ID or a file path.
Code changes count as mentions of the changed file.

Examples:
  devlog find --issue ena-6530        Sessions mentioning ENA-6530
  devlog find --file schema.go        Sessions mentioning schema.go
  devlog find --stats                 Show metadata statistics`,
	RunE: runFind,
}

var (
	findIssue string
	findFile  string
	findStats bool
)

func init() {
	rootCmd.AddCommand(findCmd)

	findCmd.Flags().StringVar(&findIssue, "issue", "", "Find sessions by issue ID")
	findCmd.Flags().StringVar(&findFile, "file", "", "Find sessions by file path")
	findCmd.Flags().BoolVar(&findStats, "stats", false, "Show metadata statistics")
}

func runFind(cmd *cobra.Command, args []string) error {
	database, err := openIndex()
	if err != nil {
		return err
	}
	defer func() {
		_ = database.Close()
	}()

	switch {
	case findStats:
		return showMetadataStats(database)
	case findIssue != "":
		sessions, err := database.FindSessionsByIssueID(findIssue)
		if err != nil {
			return fmt.Errorf("failed to find sessions: %w", err)
		}
		printFound(database, sessions, "issue "+findIssue)
		return nil
	case findFile != "":
		sessions, err := database.FindSessionsByFilePath(findFile)
		if err != nil {
			return fmt.Errorf("failed to find sessions: %w", err)
		}
		printFound(database, sessions, findFile)
		return nil
	}

	fmt.Println("Please specify --issue, --file, or --stats")
	fmt.Println()
	return cmd.Help()
}

func showMetadataStats(database *db.DB) error {
	issues, files, sessions, err := database.GetMetadataStats()
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	fmt.Println("Metadata Statistics:")
	fmt.Println("====================")
	fmt.Printf("Unique issue IDs:    %d\n", issues)
	fmt.Printf("Unique file paths:   %d\n", files)
	fmt.Printf("Sessions indexed:    %d\n", sessions)

	if sessions == 0 {
		fmt.Println()
		fmt.Println("No metadata indexed yet. Run 'devlog sync' to build the index.")
	}
	return nil
}

func printFound(database *db.DB, sessions []db.Session, what string) {
	if len(sessions) == 0 {
		fmt.Printf("No sessions found mentioning %s\n", what)
		return
	}

	fmt.Printf("Found %d session(s) mentioning %s:\n\n", len(sessions), what)
	for i, s := range sessions {
		fmt.Printf("%d. %s\n", i+1, s.Name)
		fmt.Printf("   ID:      %s\n", s.SessionID)
		fmt.Printf("   Started: %s (%s)\n", s.StartedAt.Local().Format("2006-01-02 15:04"), humanize.Time(s.StartedAt))
		if s.Description != "" {
			fmt.Printf("   About:   %s\n", truncateSummary(s.Description, 200))
		}

		if _, files, err := database.GetSessionMetadata(s.SessionID); err == nil && len(files) > 0 {
			var changed []string
			for _, f := range files {
				if f.Modified {
					changed = append(changed, f.FilePath)
				}
			}
			if len(changed) > 0 {
				fmt.Printf("   Changed: %s\n", truncateSummary(joinLimit(changed, 5), 200))
			}
		}
		fmt.Println()
	}
}

// joinLimit joins the first n items and counts the rest
func joinLimit(items []string, n int) string {
	if len(items) <= n {
		return strings.Join(items, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(items[:n], ", "), len(items)-n)
}
