package cli

import (
	"fmt"
	"io"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// spinner animates a message on w until stopped
type spinner struct {
	w       io.Writer
	message string
	stop    chan struct{}
	done    chan struct{}
}

func newSpinner(w io.Writer, message string) *spinner {
	return &spinner{
		w:       w,
		message: message,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (s *spinner) Start() {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(80 * time.Millisecond)
		defer ticker.Stop()

		for i := 0; ; i = (i + 1) % len(spinnerFrames) {
			fmt.Fprintf(s.w, "\r%s %s", spinnerFrames[i], s.message)
			select {
			case <-s.stop:
				// Clear the line
				fmt.Fprint(s.w, "\r\033[K")
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop clears the line and waits for the animation to exit
func (s *spinner) Stop() {
	close(s.stop)
	<-s.done
}
