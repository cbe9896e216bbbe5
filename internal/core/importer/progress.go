package importer

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// ProgressCallback receives one Update per scanned record and a final Finish
type ProgressCallback interface {
	Update(file string, outcome string)
	Finish()
}

// ProgressReporter draws a progress bar for devlog sync
type ProgressReporter struct {
	writer    io.Writer
	total     int
	current   int
	startTime time.Time
}

// NewProgressReporter creates a new progress reporter
func NewProgressReporter(w io.Writer, total int) *ProgressReporter {
	return &ProgressReporter{
		writer:    w,
		total:     total,
		startTime: time.Now(),
	}
}

// Update advances the bar by one record
func (p *ProgressReporter) Update(file string, outcome string) {
	p.current++
	total := p.total
	if total < p.current {
		total = p.current
	}

	const barWidth = 40
	filled := barWidth * p.current / total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)

	label := file
	if len(label) > 40 {
		label = label[:37] + "..."
	}

	_, _ = fmt.Fprintf(p.writer, "\r[%s] %3d%% (%d/%d) %-9s %s",
		bar, 100*p.current/total, p.current, total, outcome, label)
}

// Finish ends the progress line
func (p *ProgressReporter) Finish() {
	elapsed := time.Since(p.startTime)
	_, _ = fmt.Fprintf(p.writer, "\nScanned %d session records in %s\n", p.current, elapsed.Round(time.Millisecond))
}
