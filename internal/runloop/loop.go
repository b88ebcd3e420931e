// Package runloop provides a single-goroutine task loop. Everything posted to
// a Loop runs on the goroutine executing Run, one function at a time, which
// makes the loop the owner of any state only touched from posted functions.
package runloop

import (
	"context"
	"errors"
	"sync"
)

// ErrStopped is returned by Do once the loop has stopped.
var ErrStopped = errors.New("runloop: stopped")

// Loop is a FIFO of functions executed by Run.
type Loop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// New returns a Loop. Functions may be posted before Run starts.
func New() *Loop {
	return &Loop{
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
}

// Post enqueues fn and returns immediately. Functions posted after the loop
// stopped are dropped.
func (l *Loop) Post(fn func()) {
	select {
	case <-l.stopped:
		return
	default:
	}
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Do posts fn and waits for it to finish running.
func (l *Loop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-l.stopped:
		// fn may have completed just before stop.
		select {
		case <-done:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run executes posted functions until ctx is done or Stop is called.
// Functions queued at that point are discarded.
func (l *Loop) Run(ctx context.Context) {
	defer l.Stop()
	for {
		l.mu.Lock()
		batch := l.queue
		l.queue = nil
		l.mu.Unlock()

		for _, fn := range batch {
			if ctx.Err() != nil {
				return
			}
			fn()
		}

		select {
		case <-ctx.Done():
			return
		case <-l.stopped:
			return
		case <-l.wake:
		}
	}
}

// Stopped is closed once Run has returned or Stop was called.
func (l *Loop) Stopped() <-chan struct{} { return l.stopped }

// Wake receives a value whenever functions were queued. With RunPending and
// Stop it lets another event loop host the Loop in place of Run.
func (l *Loop) Wake() <-chan struct{} { return l.wake }

// RunPending runs the functions queued so far on the calling goroutine and
// returns how many ran.
func (l *Loop) RunPending() int {
	select {
	case <-l.stopped:
		return 0
	default:
	}
	l.mu.Lock()
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()

	for _, fn := range batch {
		fn()
	}
	return len(batch)
}

// Stop marks the loop stopped. Queued functions are discarded and waiting
// Do calls return ErrStopped.
func (l *Loop) Stop() {
	l.once.Do(func() { close(l.stopped) })
}
