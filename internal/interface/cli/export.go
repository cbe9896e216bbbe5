package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/neilberkman/devlog/internal/core/export"
	"github.com/spf13/cobra"
)

var (
	exportOutput string
	exportFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export [session-id]",
	Short: "Export a session to markdown, YAML or JSON",
	Long: `Render a session (default: the active session) with its notes and
ledger. Markdown uses the export template from the config directory.

By default the export is written to the views directory next to the
session records. Use --output to choose a path, or "-" for stdout.

Examples:
  devlog export
  devlog export 20260301-142233-9f2c --format yaml
  devlog export 20260301 -o ~/notes/auth-fix.md
  devlog export -f json -o - | jq .actions`,
	Args: cobra.MaximumNArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file path, or - for stdout (default: views directory)")
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "md", "Export format: md, yaml or json")
}

func runExport(cmd *cobra.Command, args []string) error {
	format, err := export.ParseFormat(exportFormat)
	if err != nil {
		return err
	}

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

	if exportOutput == "-" {
		data, err := export.Render(&sess, format, cfg.ExportTemplate)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}

	outputPath := exportOutput
	if outputPath == "" {
		outputPath = export.ViewPath(reader.Files.ViewsDir(), sess.ID, format)
	} else if !filepath.IsAbs(outputPath) {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get current directory: %w", err)
		}
		outputPath = filepath.Join(cwd, outputPath)
	}

	if err := export.WriteFile(outputPath, &sess, format, cfg.ExportTemplate); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	fmt.Printf("Exported session to: %s\n", outputPath)
	return nil
}
