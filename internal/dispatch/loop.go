// Package dispatch provides the cooperative UI execution context and the
// keyed trailing-edge debouncer used to coalesce high-frequency change
// events.
//
// All mutation of the document model, editing surface, and wiring state runs
// on a single Loop, so those structures need no locking of their own. The
// Loop is passed explicitly to everything that needs to schedule work; there
// is no ambient dispatcher.
package dispatch

import (
	"errors"
	"sync"
)

// ErrStopped is returned when work is posted to a stopped loop.
var ErrStopped = errors.New("dispatch: loop stopped")

// Loop executes posted functions one at a time on a dedicated goroutine.
// Normal-priority work always runs before low-priority work; the low queue
// is the "lower-priority slot" used by the panel discovery retry loop so
// retries never starve user input handling.
type Loop struct {
	mu     sync.Mutex
	normal []func()
	low    []func()
	wake   chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewLoop creates and starts a loop.
func NewLoop() *Loop {
	l := &Loop{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) run() {
	for {
		l.mu.Lock()
		var fn func()
		switch {
		case len(l.normal) > 0:
			fn = l.normal[0]
			l.normal = l.normal[1:]
		case len(l.low) > 0:
			fn = l.low[0]
			l.low = l.low[1:]
		}
		l.mu.Unlock()

		if fn != nil {
			fn()
			continue
		}

		select {
		case <-l.wake:
		case <-l.done:
			return
		}
	}
}

// Post enqueues fn at normal priority. Returns false if the loop has been
// stopped; the work is dropped in that case. Posting from within a running
// action is allowed.
func (l *Loop) Post(fn func()) bool {
	return l.enqueue(fn, false)
}

// PostLow enqueues fn at low priority. Low-priority work runs only when the
// normal queue is empty.
func (l *Loop) PostLow(fn func()) bool {
	return l.enqueue(fn, true)
}

func (l *Loop) enqueue(fn func(), low bool) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	l.mu.Lock()
	if low {
		l.low = append(l.low, fn)
	} else {
		l.normal = append(l.normal, fn)
	}
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// PostWait enqueues fn at normal priority and blocks until it has executed.
// Returns ErrStopped if the loop stops before fn runs. Must not be called
// from within a loop action; that would deadlock.
func (l *Loop) PostWait(fn func()) error {
	ran := make(chan struct{})
	if !l.Post(func() {
		fn()
		close(ran)
	}) {
		return ErrStopped
	}
	select {
	case <-ran:
		return nil
	case <-l.done:
		// The loop may still have executed fn on its way out.
		select {
		case <-ran:
			return nil
		default:
			return ErrStopped
		}
	}
}

// Stop shuts the loop down. Work already queued still runs before the loop
// exits; work posted after Stop is rejected.
func (l *Loop) Stop() {
	l.once.Do(func() {
		close(l.done)
	})
}

// Stopped reports whether the loop has been stopped.
func (l *Loop) Stopped() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}
