package watcher

import (
	"context"
	"time"
)

const DefaultDebounce = 500 * time.Millisecond

// Watcher serializes recompute passes. Requests arriving close together
// collapse into one pass; a request that lands while a pass is running
// re-arms the debounce so exactly one fresh pass follows. Passes never
// overlap because Run executes them on its own goroutine.
type Watcher struct {
	pass     func(context.Context)
	debounce time.Duration
	requests chan struct{}
}

func New(pass func(context.Context), debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		pass:     pass,
		debounce: debounce,
		requests: make(chan struct{}, 1),
	}
}

// Request asks for a recompute. Safe from any goroutine; never blocks.
func (w *Watcher) Request() {
	select {
	case w.requests <- struct{}{}:
	default:
	}
}

func (w *Watcher) Run(ctx context.Context) {
	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.requests:
		}

		timer.Reset(w.debounce)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		// Requests made during the debounce window are covered by the
		// pass about to run; drain them so they do not schedule another.
		select {
		case <-w.requests:
		default:
		}

		w.pass(ctx)
	}
}
