package analyzer

import (
	"context"
	"sync/atomic"
)

// ProgressFunc receives pipeline progress: how many files have finished,
// how many are expected, and the file that just completed.
type ProgressFunc func(current, total int, path string)

// Tracker counts files as the resolution pipeline works through them,
// decoupling the pipeline from whatever renders the progress. The expected
// total grows via Add as stages discover work; workers Tick concurrently.
type Tracker struct {
	expected atomic.Int64
	done     atomic.Int64
	notify   ProgressFunc
}

// NewTracker creates a tracker. notify may be nil when nothing renders
// progress; counting still works.
func NewTracker(notify ProgressFunc) *Tracker {
	return &Tracker{notify: notify}
}

// Add grows the expected file count by n. The extraction fan-out calls
// this once it knows how many files it will parse.
func (t *Tracker) Add(n int) {
	t.expected.Add(int64(n))
}

// Tick records one finished file and notifies the callback, if any.
func (t *Tracker) Tick(file string) {
	done := t.done.Add(1)
	if t.notify != nil {
		t.notify(int(done), int(t.expected.Load()), file)
	}
}

// Current returns how many files have finished.
func (t *Tracker) Current() int {
	return int(t.done.Load())
}

// Total returns how many files are expected.
func (t *Tracker) Total() int {
	return int(t.expected.Load())
}

type trackerKey struct{}

// WithTracker attaches a tracker to the context handed to Resolve.
func WithTracker(ctx context.Context, t *Tracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

// TrackerFromContext returns the attached tracker, or nil when the caller
// did not ask for progress.
func TrackerFromContext(ctx context.Context) *Tracker {
	if t, ok := ctx.Value(trackerKey{}).(*Tracker); ok {
		return t
	}
	return nil
}
