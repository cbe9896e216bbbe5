package cli

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show session and index statistics",
	Long: `Display statistics about recorded sessions and the search index.

Shows session and action counts, action types, date ranges and storage use.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	reader, err := openReader(cmd.Context())
	if err != nil {
		return err
	}

	fmt.Println("Session Statistics")
	fmt.Println("==================")
	fmt.Println()

	sessions := reader.Store.List()
	byType := make(map[string]int)
	totalActions := 0
	for _, s := range sessions {
		sess, err := reader.Store.Get(s.ID)
		if err != nil {
			continue
		}
		for _, a := range sess.Actions {
			byType[string(a.Type)]++
		}
		totalActions += len(sess.Actions)
	}

	fmt.Printf("Total Sessions:    %s\n", humanize.Comma(int64(len(sessions))))
	fmt.Printf("Total Actions:     %s\n", humanize.Comma(int64(totalActions)))
	printByType(byType)
	fmt.Println()

	if len(sessions) > 0 {
		// List is newest first
		fmt.Printf("Oldest Session:    %s\n", sessions[len(sessions)-1].StartTime.Local().Format("Jan 2, 2006 3:04 PM"))
		fmt.Printf("Newest Session:    %s\n", sessions[0].StartTime.Local().Format("Jan 2, 2006 3:04 PM"))
	}
	if active := reader.Lifecycle.ActiveSessionID(); active != "" {
		fmt.Printf("Active Session:    %s\n", active)
	} else {
		fmt.Printf("Active Session:    none\n")
	}
	fmt.Println()

	fmt.Printf("Sessions Location: %s\n", reader.Files.Dir())
	fmt.Printf("Sessions Size:     %s\n", humanize.Bytes(dirSize(reader.Files.Dir())))
	fmt.Println()

	if _, err := os.Stat(cfg.DBPath); err != nil {
		fmt.Println("Search index not built yet (run 'devlog sync')")
		return nil
	}

	database, err := openIndex()
	if err != nil {
		return err
	}
	defer func() {
		_ = database.Close()
	}()

	stats, err := database.GetStats()
	if err != nil {
		return fmt.Errorf("failed to read index stats: %w", err)
	}

	fmt.Println("Search Index")
	fmt.Println("------------")
	fmt.Printf("Indexed Sessions:  %s\n", humanize.Comma(int64(stats.TotalSessions)))
	fmt.Printf("Indexed Actions:   %s\n", humanize.Comma(int64(stats.TotalActions)))
	if stats.BusiestSession != "" {
		fmt.Printf("Busiest Session:   %s (%d actions)\n", stats.BusiestSession, stats.BusiestActionCount)
	}
	if issues, files, _, err := database.GetMetadataStats(); err == nil {
		fmt.Printf("Issues / Files:    %d / %d (see 'devlog find')\n", issues, files)
	}
	if !stats.LastSync.IsZero() {
		fmt.Printf("Last Sync:         %s\n", humanize.Time(stats.LastSync))
	}
	if stale := len(sessions) - stats.TotalSessions; stale != 0 {
		fmt.Printf("Out of date:       %d session(s) differ, run 'devlog sync'\n", abs(stale))
	}

	fileInfo, err := os.Stat(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to stat database file: %w", err)
	}
	fmt.Printf("Index Location:    %s\n", cfg.DBPath)
	fmt.Printf("Index Size:        %s\n", humanize.Bytes(uint64(fileInfo.Size())))
	return nil
}

func printByType(byType map[string]int) {
	types := make([]string, 0, len(byType))
	for t := range byType {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool {
		if byType[types[i]] != byType[types[j]] {
			return byType[types[i]] > byType[types[j]]
		}
		return types[i] < types[j]
	})
	for _, t := range types {
		fmt.Printf("  %-15s %s\n", t+":", humanize.Comma(int64(byType[t])))
	}
}

// dirSize sums regular file sizes under dir
func dirSize(dir string) uint64 {
	var total uint64
	_ = filepath.WalkDir(dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if info, err := d.Info(); err == nil && info.Mode().IsRegular() {
			total += uint64(info.Size())
		}
		return nil
	})
	return total
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
