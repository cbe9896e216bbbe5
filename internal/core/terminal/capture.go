package terminal

import (
	"strings"

	"github.com/atotto/clipboard"
	"github.com/neilberkman/devlog/internal/core/config"
	"github.com/neilberkman/devlog/internal/core/log"
)

// MaxOutput caps captured command output
const MaxOutput = 64 * 1024

// OutputCapturer fetches the output of the command that just finished.
// Capture is best effort; failures yield "".
type OutputCapturer interface {
	Capture() string
}

// NoCapture never captures output
type NoCapture struct{}

// Capture implements OutputCapturer
func (NoCapture) Capture() string { return "" }

// ClipboardCapturer reads output the user copied (e.g. with a terminal's
// "copy last output" action).
type ClipboardCapturer struct {
	read func() (string, error)
}

// NewClipboardCapturer returns a capturer backed by the system clipboard
func NewClipboardCapturer() *ClipboardCapturer {
	return &ClipboardCapturer{read: clipboard.ReadAll}
}

// Capture implements OutputCapturer
func (c *ClipboardCapturer) Capture() string {
	if c.read == nil {
		return ""
	}
	text, err := c.read()
	if err != nil {
		log.Debug().Err(err).Msg("clipboard capture failed")
		return ""
	}
	return CleanOutput(text)
}

// NewCapturer returns the capturer for a config capture mode
func NewCapturer(mode string) OutputCapturer {
	switch mode {
	case config.CaptureClipboard:
		return NewClipboardCapturer()
	default:
		return NoCapture{}
	}
}

// CleanOutput normalizes line endings, trims trailing whitespace and keeps
// the last MaxOutput bytes.
func CleanOutput(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.TrimRight(s, " \t\r\n")
	if len(s) > MaxOutput {
		s = s[len(s)-MaxOutput:]
		// Don't start mid-line
		if i := strings.IndexByte(s, '\n'); i >= 0 && i < len(s)-1 {
			s = s[i+1:]
		}
	}
	return s
}
