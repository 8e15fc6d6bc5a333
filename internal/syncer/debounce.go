package syncer

import (
	"sync"
	"time"
)

// Debouncer coalesces bursts of triggers into one deferred run. Each
// Schedule cancels the pending run and starts the window over, so only the
// last-scheduled function executes once the quiet period elapses.
type Debouncer struct {
	delay time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

func NewDebouncer(delay time.Duration) *Debouncer {
	return &Debouncer{delay: delay}
}

// Schedule replaces any pending run with fn. fn runs on the timer goroutine;
// callers that need loop affinity should hand it a post-to-loop closure.
func (d *Debouncer) Schedule(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Stop cancels any pending run.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
