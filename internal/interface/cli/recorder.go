package cli

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/neilberkman/devlog/internal/core/daemon"
	"github.com/neilberkman/devlog/internal/core/hostsock"
	"github.com/spf13/cobra"
)

var recorderCmd = &cobra.Command{
	Use:   "recorder",
	Short: "Manage the background recorder",
	Long: `Control the recorder started with 'devlog watch --background'.

The recorder handles:
  - Shell hook events for terminal tracking
  - File watching for code changes
  - Periodic search index refresh`,
}

var recorderStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recorder status",
	RunE:  recorderStatus,
}

var recorderStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running recorder",
	RunE:  recorderStop,
}

var recorderPauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause search index refresh (recording continues)",
	RunE:  recorderPause,
}

var recorderResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume search index refresh",
	RunE:  recorderResume,
}

func init() {
	rootCmd.AddCommand(recorderCmd)
	recorderCmd.AddCommand(recorderStatusCmd, recorderStopCmd, recorderPauseCmd, recorderResumeCmd)
}

func recorderStatus(cmd *cobra.Command, args []string) error {
	dm, err := recorderManager()
	if err != nil {
		return err
	}
	info, err := dm.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to check recorder status: %w", err)
	}

	sock := cfg.SocketPath()
	if !info.IsRunning {
		fmt.Println("Recorder Status: NOT RUNNING")
		if hostsock.Available(sock) {
			fmt.Printf("  (a recorder without a PID file is listening on %s)\n", sock)
		}
		fmt.Println()
		fmt.Println("Shell hooks fall back to recording directly into the session files.")
		fmt.Println("Start recorder: devlog watch --background")
		return nil
	}

	fmt.Println("Recorder Status: RUNNING")
	fmt.Println()
	fmt.Printf("  PID:        %d\n", info.PID)
	fmt.Printf("  Watching:   %s\n", info.WatchDir)
	fmt.Printf("  Uptime:     %s\n", daemon.FormatUptime(time.Since(info.StartTime)))
	fmt.Printf("  Started:    %s\n", info.StartTime.Format("2006-01-02 15:04:05"))
	fmt.Printf("  Socket:     %s\n", sock)
	if dm.IsPaused() {
		fmt.Println("  Index:      paused")
	}

	if database, err := openIndex(); err == nil {
		defer func() { _ = database.Close() }()
		if stats, err := database.GetStats(); err == nil && !stats.LastSync.IsZero() {
			fmt.Printf("  Last sync:  %s\n", humanize.Time(stats.LastSync))
		}
	}

	fmt.Println()
	fmt.Printf("  Logs: %s\n", dm.LogFile())
	return nil
}

func recorderStop(cmd *cobra.Command, args []string) error {
	dm, err := recorderManager()
	if err != nil {
		return err
	}
	info, err := dm.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to check recorder status: %w", err)
	}
	if !info.IsRunning {
		fmt.Println("Recorder is not running")
		return nil
	}

	fmt.Printf("Stopping recorder (PID %d)...\n", info.PID)
	if err := dm.Stop(); err != nil {
		return fmt.Errorf("failed to stop recorder: %w", err)
	}
	fmt.Println("✓ Recorder stopped")
	return nil
}

func recorderPause(cmd *cobra.Command, args []string) error {
	dm, err := recorderManager()
	if err != nil {
		return err
	}
	if err := dm.Pause(); err != nil {
		return fmt.Errorf("failed to create pause file: %w", err)
	}
	fmt.Println("✓ Index refresh paused")
	fmt.Println("  (recording continues; pending changes are indexed on shutdown)")
	fmt.Println("  Use 'devlog recorder resume' to resume")
	return nil
}

func recorderResume(cmd *cobra.Command, args []string) error {
	dm, err := recorderManager()
	if err != nil {
		return err
	}
	resumed, err := dm.Resume()
	if err != nil {
		return fmt.Errorf("failed to remove pause file: %w", err)
	}
	if !resumed {
		fmt.Println("Recorder is not paused")
		return nil
	}
	fmt.Println("✓ Index refresh resumed")
	return nil
}
