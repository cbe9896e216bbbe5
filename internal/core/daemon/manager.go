package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Info describes a background recorder
type Info struct {
	PID       int
	WatchDir  string
	StartTime time.Time
	IsRunning bool
}

// Manager starts, inspects and stops the background recorder through a pid file
type Manager struct {
	dir     string
	pidFile string
}

// NewManager keeps its pid, log and pause files in dir
func NewManager(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create recorder dir: %w", err)
	}
	return &Manager{
		dir:     dir,
		pidFile: filepath.Join(dir, "recorder.pid"),
	}, nil
}

// Dir holds the recorder's pid, log and pause files
func (m *Manager) Dir() string {
	return m.dir
}

// PauseFile is the marker that suspends index refresh
func (m *Manager) PauseFile() string {
	return filepath.Join(m.dir, "paused")
}

// LogFile receives the background recorder's output
func (m *Manager) LogFile() string {
	return filepath.Join(m.dir, "recorder.log")
}

// GetStatus reads the pid file. A stale or malformed file is removed.
func (m *Manager) GetStatus() (*Info, error) {
	data, err := os.ReadFile(m.pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return &Info{}, nil
		}
		return nil, fmt.Errorf("failed to read PID file: %w", err)
	}

	// PID|WATCHDIR|TIMESTAMP
	parts := strings.Split(strings.TrimSpace(string(data)), "|")
	if len(parts) != 3 {
		_ = os.Remove(m.pidFile)
		return &Info{}, nil
	}

	pid, err := strconv.Atoi(parts[0])
	if err != nil {
		_ = os.Remove(m.pidFile)
		return &Info{}, nil
	}

	startTime, err := time.Parse(time.RFC3339, parts[2])
	if err != nil {
		startTime = time.Time{}
	}

	if !isProcessRunning(pid) {
		_ = os.Remove(m.pidFile)
		return &Info{}, nil
	}

	return &Info{
		PID:       pid,
		WatchDir:  parts[1],
		StartTime: startTime,
		IsRunning: true,
	}, nil
}

func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 only checks existence
	return process.Signal(syscall.Signal(0)) == nil
}

// WritePIDFile records a running recorder
func (m *Manager) WritePIDFile(pid int, watchDir string) error {
	data := fmt.Sprintf("%d|%s|%s\n", pid, watchDir, time.Now().Format(time.RFC3339))
	return os.WriteFile(m.pidFile, []byte(data), 0644)
}

// RemovePIDFile removes the PID file
func (m *Manager) RemovePIDFile() error {
	err := os.Remove(m.pidFile)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Stop sends SIGTERM, then SIGKILL after five seconds
func (m *Manager) Stop() error {
	info, err := m.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to get recorder status: %w", err)
	}
	if !info.IsRunning {
		return fmt.Errorf("recorder is not running")
	}

	process, err := os.FindProcess(info.PID)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send SIGTERM: %w", err)
	}

	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !isProcessRunning(info.PID) {
			return m.RemovePIDFile()
		}
	}

	if err := process.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("failed to kill recorder: %w", err)
	}
	return m.RemovePIDFile()
}

// StartBackground re-executes the current binary with args, detached, with
// output appended to LogFile.
func (m *Manager) StartBackground(watchDir string, args []string) error {
	info, err := m.GetStatus()
	if err != nil {
		return fmt.Errorf("failed to check recorder status: %w", err)
	}
	if info.IsRunning {
		return fmt.Errorf("recorder already running (PID %d, watching %s)", info.PID, info.WatchDir)
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	cmd := exec.Command(executable, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	f, err := os.OpenFile(m.LogFile(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()
	cmd.Stdout = f
	cmd.Stderr = f

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start recorder: %w", err)
	}

	pid := cmd.Process.Pid
	if err := m.WritePIDFile(pid, watchDir); err != nil {
		_ = cmd.Process.Kill()
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	_ = cmd.Process.Release()

	time.Sleep(100 * time.Millisecond)
	if !isProcessRunning(pid) {
		return fmt.Errorf("recorder failed to start (check %s for errors)", m.LogFile())
	}
	return nil
}

// Pause suspends index refresh in the running recorder
func (m *Manager) Pause() error {
	return os.WriteFile(m.PauseFile(), []byte("paused\n"), 0644)
}

// IsPaused reports whether the pause marker exists
func (m *Manager) IsPaused() bool {
	_, err := os.Stat(m.PauseFile())
	return err == nil
}

// Resume removes the pause marker. It reports false if the recorder was not paused.
func (m *Manager) Resume() (bool, error) {
	err := os.Remove(m.PauseFile())
	if os.IsNotExist(err) {
		return false, nil
	}
	return err == nil, err
}

// FormatUptime formats duration as human-readable uptime
func FormatUptime(d time.Duration) string {
	d = d.Round(time.Second)

	days := d / (24 * time.Hour)
	d -= days * 24 * time.Hour
	hours := d / time.Hour
	d -= hours * time.Hour
	minutes := d / time.Minute
	d -= minutes * time.Minute
	seconds := d / time.Second

	switch {
	case days > 0:
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm", hours, minutes)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
