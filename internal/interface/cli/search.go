package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/neilberkman/devlog/internal/core/search"
	"github.com/spf13/cobra"
)

var (
	searchLimit int
	searchCode  bool
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search recorded actions using full-text search",
	Long: `Search the actions of every indexed session. Run 'devlog sync' first
if no recorder is keeping the index fresh.

Uses FTS5 full-text search with porter stemming for natural language, or
exact tokens with --code. Queries with punctuation fall back to substring
matching.

Filters can be mixed into the query:
  session:<id>     only this session
  type:<type>      command, consequence, note, codeChange, screenshot
  issue:<id>       sessions that mention an issue, e.g. issue:ENA-6530
  file:<path>      sessions that mention or change a file
  after:<date>     e.g. after:yesterday, after:2026-03-01, after:3-days-ago
  before:<date>

Examples:
  devlog search "migration failed"
  devlog search "ErrNotFound" --code
  devlog search "deploy type:command after:yesterday"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVar(&searchLimit, "limit", 10, "Maximum number of sessions to show")
	searchCmd.Flags().BoolVar(&searchCode, "code", false, "Match identifiers exactly (no stemming)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")

	database, err := openIndex()
	if err != nil {
		return err
	}
	defer func() {
		_ = database.Close()
	}()

	filters := search.ParseQuery(query, time.Now())
	run := search.Search
	if searchCode {
		run = search.SearchCode
	}
	results, err := run(database, filters)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Printf("No results found for: %s\n", query)
		return nil
	}

	groups := groupBySession(results)
	fmt.Printf("Found %d session(s) with %d match(es) for: %s\n\n", len(groups), len(results), query)

	for n, g := range groups {
		if n >= searchLimit {
			fmt.Printf("... and %d more sessions (use --limit to see more)\n", len(groups)-searchLimit)
			break
		}

		fmt.Printf("=== %s ===\n", g[0].SessionName)
		fmt.Printf("ID:      %s\n", g[0].SessionID)
		fmt.Printf("Matches: %d\n\n", len(g))

		// Show up to 3 matches per session
		matchLimit := 3
		if len(g) > matchLimit {
			fmt.Printf("Showing first %d of %d matches:\n", matchLimit, len(g))
		}
		for i, r := range g {
			if i >= matchLimit {
				break
			}
			fmt.Printf("  #%d %s (%s)\n", r.Seq, r.Type, humanize.Time(r.Timestamp))
			fmt.Printf("  %s\n\n", truncateSummary(r.Snippet, 200))
		}
	}
	return nil
}

// groupBySession keeps the first-seen order of sessions
func groupBySession(results []search.Result) [][]search.Result {
	index := make(map[string]int)
	var groups [][]search.Result
	for _, r := range results {
		i, ok := index[r.SessionID]
		if !ok {
			i = len(groups)
			index[r.SessionID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], r)
	}
	return groups
}
