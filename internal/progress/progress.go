// Package progress renders terminal progress for long-running analyses.
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"
)

// Bar wraps a terminal progress bar for file processing. A nil *Bar is a
// valid no-op, which keeps quiet mode free of conditionals at call sites.
type Bar struct {
	bar   *progressbar.ProgressBar
	label string
}

// New creates a progress bar with the given label and total count. When out
// is nil the bar writes to stderr.
func New(label string, total int, out io.Writer) *Bar {
	if out == nil {
		out = os.Stderr
	}
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionSetDescription(label),
		progressbar.OptionUseANSICodes(true),
		progressbar.OptionSetElapsedTime(false),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
	return &Bar{bar: bar, label: label}
}

// Tick increments the progress by 1. Safe for concurrent use.
func (b *Bar) Tick() {
	if b == nil {
		return
	}
	b.bar.Add(1)
}

// Grow raises the total count as more work is discovered.
func (b *Bar) Grow(n int) {
	if b == nil {
		return
	}
	b.bar.AddMax(n)
}

// Finish clears the bar completely.
func (b *Bar) Finish() {
	if b == nil {
		return
	}
	b.bar.Finish()
	b.bar.Clear()
}

// FinishError clears the bar and prints an error message to stderr.
func (b *Bar) FinishError(err error) {
	if b == nil {
		return
	}
	b.bar.Finish()
	b.bar.Clear()
	fmt.Fprintf(os.Stderr, "  %s error: %v\n", b.label, err)
}
