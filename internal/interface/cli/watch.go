package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/charmbracelet/x/term"
	"github.com/neilberkman/devlog/internal/core/daemon"
	"github.com/neilberkman/devlog/internal/core/db"
	"github.com/neilberkman/devlog/internal/core/engine"
	"github.com/neilberkman/devlog/internal/core/filewatch"
	"github.com/neilberkman/devlog/internal/core/log"
	"github.com/neilberkman/devlog/internal/core/models"
	"github.com/spf13/cobra"
)

var (
	watchBackground bool
	watchNoFiles    bool
	watchNoIndex    bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Run the recorder in the foreground",
	Long: `Run the recorder: it serves shell hooks and other devlog commands over
a unix socket, watches dir (default: current directory) for file saves and
keeps the search index fresh.

Code changes are confirmed interactively when confirm_code_changes is set
and the recorder runs in a terminal.

Examples:
  devlog watch
  devlog watch ~/src/project --background
  devlog watch --no-files`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&watchBackground, "background", false, "Detach and run as a background recorder")
	watchCmd.Flags().BoolVar(&watchNoFiles, "no-files", false, "Do not watch files; serve terminal events only")
	watchCmd.Flags().BoolVar(&watchNoIndex, "no-index", false, "Do not refresh the search index")
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	dm, err := recorderManager()
	if err != nil {
		return err
	}

	if watchBackground {
		childArgs := []string{"watch", dir, "--sessions-dir", cfg.SessionsDir, "--db", cfg.DBPath, "--log-level", cfg.LogLevel}
		if watchNoFiles {
			childArgs = append(childArgs, "--no-files")
		}
		if watchNoIndex {
			childArgs = append(childArgs, "--no-index")
		}
		if err := dm.StartBackground(dir, childArgs); err != nil {
			return err
		}
		info, _ := dm.GetStatus()
		fmt.Printf("✓ Recorder started (PID %d)\n", info.PID)
		fmt.Printf("  Watching: %s\n", dir)
		fmt.Printf("  Logs: %s\n", dm.LogFile())
		fmt.Println()
		fmt.Println("Use 'devlog recorder status' to check recorder state")
		fmt.Println("Use 'devlog recorder stop' to stop the recorder")
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opts engine.Options
	if cfg.ConfirmCodeChanges {
		if isTerminal(os.Stdin) {
			opts.Confirmer = newPromptConfirmer(os.Stdin, os.Stderr)
		} else {
			log.Warn().Msg("stdin is not a terminal, recording code changes without confirmation")
		}
	}
	eng, err := engine.New(ctx, cfg, opts)
	if err != nil {
		return err
	}

	ropts := daemon.Options{
		PauseFile: dm.PauseFile(),
		Ignore:    cfg.WatchIgnore,
		Exclude:   ownPaths(dm.Dir()),
	}
	if !watchNoFiles {
		ropts.WatchDir = dir
	}
	if !watchNoIndex {
		database, err := db.New(cfg.DBPath)
		if err != nil {
			log.Warn().Err(err).Msg("search index unavailable, continuing without it")
		} else {
			defer func() { _ = database.Close() }()
			ropts.Index = database
		}
	}

	rec, err := daemon.New(eng, cfg.SocketPath(), ropts)
	if err != nil {
		return err
	}

	if err := dm.WritePIDFile(os.Getpid(), dir); err != nil {
		log.Warn().Err(err).Msg("failed to write PID file")
	}
	defer func() { _ = dm.RemovePIDFile() }()

	if active := eng.Lifecycle.ActiveSessionID(); active != "" {
		fmt.Fprintf(os.Stderr, "Recording into %s\n", active)
	} else {
		fmt.Fprintln(os.Stderr, "No active session; run 'devlog start' to begin recording")
	}
	fmt.Fprintf(os.Stderr, "Listening on %s\n", rec.SocketPath())

	err = rec.Start(ctx)
	stats := rec.GetStats()
	log.Info().
		Int("ledger_changes", stats.LedgerChanges).
		Int("index_syncs", stats.IndexSyncs).
		Int("errors", stats.Errors).
		Msg("recorder stopped")
	return err
}

// ownPaths lists the files devlog itself writes while recording. A watched
// tree that contains them must not report those writes back as saves.
func ownPaths(recorderDir string) []string {
	return []string{
		cfg.SessionsDir,
		cfg.DBPath,
		cfg.DBPath + "-wal",
		cfg.DBPath + "-shm",
		cfg.DBPath + "-journal",
		recorderDir,
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(f.Fd())
}

// promptConfirmer asks on the terminal before each code change is recorded.
// Answers are read by a single goroutine so a cancelled prompt does not leak
// a pending read into the next one.
type promptConfirmer struct {
	out   io.Writer
	lines chan string

	once sync.Once
	in   io.Reader
}

func newPromptConfirmer(in io.Reader, out io.Writer) *promptConfirmer {
	return &promptConfirmer{in: in, out: out, lines: make(chan string)}
}

func (p *promptConfirmer) start() {
	go func() {
		defer close(p.lines)
		scanner := bufio.NewScanner(p.in)
		for scanner.Scan() {
			p.lines <- scanner.Text()
		}
	}()
}

func (p *promptConfirmer) Confirm(ctx context.Context, change filewatch.ChangeSummary) (bool, error) {
	p.once.Do(p.start)

	marker := "+"
	if change.Kind == models.HunkRemoval {
		marker = "-"
	}
	fmt.Fprintf(p.out, "\n%s (+%d -%d)\n  %s %s\nRecord this change? [Y/n] ",
		change.File, change.Additions, change.Removals, marker, change.FirstLine)

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case line, ok := <-p.lines:
		if !ok {
			return false, io.EOF
		}
		return parseAnswer(line), nil
	}
}

// parseAnswer treats an empty answer as yes
func parseAnswer(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "", "y", "yes":
		return true
	}
	return false
}
