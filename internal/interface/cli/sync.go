package cli

import (
	"fmt"
	"os"

	"github.com/neilberkman/devlog/internal/core/importer"
	"github.com/neilberkman/devlog/internal/core/store"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Rebuild the search index from session records",
	Long: `Index every session record in the sessions directory into the search
database. Unchanged records are skipped and records that were deleted are
dropped from the index.

A running recorder keeps the index fresh on its own.`,
	Args: cobra.NoArgs,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	files, err := store.NewFileStore(cfg.SessionsDir)
	if err != nil {
		return err
	}

	fmt.Printf("Syncing sessions from: %s\n", files.Dir())
	fmt.Printf("Database: %s\n\n", cfg.DBPath)

	database, err := openIndex()
	if err != nil {
		return err
	}
	defer func() {
		_ = database.Close()
	}()

	paths, err := files.Scan()
	if err != nil {
		return fmt.Errorf("failed to scan sessions: %w", err)
	}

	var progress importer.ProgressCallback
	if len(paths) > 0 {
		progress = importer.NewProgressReporter(os.Stdout, len(paths))
	}

	res, err := importer.New(database).ImportDirectory(files, progress)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	if len(paths) == 0 {
		fmt.Println("No session records found")
	}
	fmt.Printf("Imported %d, unchanged %d, failed %d, removed %d\n",
		res.Imported, res.Skipped, res.Failed, res.Removed)
	return nil
}
