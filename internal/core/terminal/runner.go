package terminal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/x/term"
	"github.com/creack/pty"
	"github.com/neilberkman/devlog/internal/core/log"
)

// RunResult is the outcome of a command run under a pty
type RunResult struct {
	Command  string
	ExitCode int
	Output   string
	Started  time.Time
	Duration time.Duration
}

// Runner executes commands under a pseudo-terminal so they behave as if run
// interactively, while teeing their output into a bounded buffer.
type Runner struct {
	Stdin  io.Reader
	Stdout io.Writer
	Dir    string
}

// NewRunner returns a runner attached to the process's own stdio
func NewRunner() *Runner {
	return &Runner{Stdin: os.Stdin, Stdout: os.Stdout}
}

// Run starts args[0] with args[1:] and waits for it to exit. A non-zero exit
// is reported in the result, not as an error.
func (r *Runner) Run(ctx context.Context, args []string) (*RunResult, error) {
	if len(args) == 0 {
		return nil, errors.New("no command given")
	}

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = r.Dir

	res := &RunResult{Command: CommandLine(args), Started: time.Now()}

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", args[0], err)
	}
	defer func() { _ = ptmx.Close() }()

	if f, ok := r.Stdin.(*os.File); ok && term.IsTerminal(f.Fd()) {
		if err := pty.InheritSize(f, ptmx); err != nil {
			log.Debug().Err(err).Msg("could not inherit terminal size")
		}
		// The child's pty does the echo and line editing
		state, err := term.MakeRaw(f.Fd())
		if err != nil {
			log.Debug().Err(err).Msg("could not put terminal in raw mode")
		} else {
			defer func() { _ = term.Restore(f.Fd(), state) }()
		}
	}

	stopInput := func() {}
	if r.Stdin != nil {
		in, interrupt, release := interruptibleInput(r.Stdin)
		copied := make(chan struct{})
		go func() {
			defer close(copied)
			_, _ = io.Copy(ptmx, in)
		}()
		stopInput = func() {
			if interrupt == nil {
				return
			}
			interrupt()
			select {
			case <-copied:
				release()
			case <-time.After(time.Second):
				// The reader could not be interrupted; leave it to the pty close
				log.Debug().Msg("stdin relay still blocked after command exit")
			}
		}
	}

	tail := newTailBuffer(MaxOutput)
	var out io.Writer = tail
	if r.Stdout != nil {
		out = io.MultiWriter(r.Stdout, tail)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Reading a pty after the child exits returns EIO on Linux
		_, _ = io.Copy(out, ptmx)
	}()

	waitErr := cmd.Wait()
	wg.Wait()
	stopInput()

	res.Duration = time.Since(res.Started)
	res.Output = CleanOutput(tail.String())

	var exitErr *exec.ExitError
	switch {
	case waitErr == nil:
		res.ExitCode = 0
	case errors.As(waitErr, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		return nil, fmt.Errorf("failed waiting for %s: %w", args[0], waitErr)
	}

	log.Debug().
		Str("command", res.Command).
		Int("exit", res.ExitCode).
		Dur("duration", res.Duration).
		Msg("command finished")
	return res, nil
}

// CommandLine renders args as a shell command line, quoting where needed
func CommandLine(args []string) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = shellQuote(a)
	}
	return strings.Join(parts, " ")
}

// shellQuote wraps s in single quotes when it contains shell metacharacters
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`|&;<>()*?[]{}~#!") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}

// tailBuffer keeps only the last max bytes written to it
type tailBuffer struct {
	mu  sync.Mutex
	buf []byte
	max int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.buf)
}
