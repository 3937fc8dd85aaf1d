package dispatch

import (
	"sync"
	"time"
)

// Priority selects which loop queue a debounced action fires on.
type Priority int

const (
	// PriorityNormal fires the action on the loop's normal queue.
	PriorityNormal Priority = iota
	// PriorityLow fires the action on the loop's low-priority queue.
	PriorityLow
)

// Debouncer schedules at most one pending action per named key, firing it on
// the loop after a quiescence interval (trailing-edge debounce). Scheduling
// under an existing key cancels the previous timer and restarts the delay,
// so rapid repeated events coalesce into a single firing.
//
// Actions should read current state at execution time, not capture values at
// scheduling time; the whole point of the trailing edge is that the firing
// reflects the latest state.
type Debouncer struct {
	mu      sync.Mutex
	loop    *Loop
	pending map[string]*pendingAction
	seq     uint64
}

type pendingAction struct {
	timer  *time.Timer
	seq    uint64
	action func()
}

// NewDebouncer creates a debouncer that fires actions on loop.
func NewDebouncer(loop *Loop) *Debouncer {
	return &Debouncer{
		loop:    loop,
		pending: make(map[string]*pendingAction),
	}
}

// Schedule registers action to run once on the loop after delay elapses with
// no further Schedule call under the same key. Safe to call re-entrantly
// from within a firing action.
func (d *Debouncer) Schedule(key string, delay time.Duration, priority Priority, action func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.pending[key]; ok {
		prev.timer.Stop()
	}

	d.seq++
	seq := d.seq
	p := &pendingAction{seq: seq, action: action}
	p.timer = time.AfterFunc(delay, func() {
		d.fire(key, seq, priority, action)
	})
	d.pending[key] = p
}

func (d *Debouncer) fire(key string, seq uint64, priority Priority, action func()) {
	d.mu.Lock()
	p, ok := d.pending[key]
	if !ok || p.seq != seq {
		// Superseded or cancelled after the timer fired.
		d.mu.Unlock()
		return
	}
	delete(d.pending, key)
	d.mu.Unlock()

	if priority == PriorityLow {
		d.loop.PostLow(action)
	} else {
		d.loop.Post(action)
	}
}

// Flush runs the pending action under key now, on the caller's goroutine,
// instead of waiting out the quiescence interval. Callers are expected to
// be on the loop already; the inline call means the action's effects are
// visible as soon as Flush returns. No-op when nothing is pending.
func (d *Debouncer) Flush(key string) {
	d.mu.Lock()
	p, ok := d.pending[key]
	if !ok {
		d.mu.Unlock()
		return
	}
	p.timer.Stop()
	delete(d.pending, key)
	d.mu.Unlock()

	p.action()
}

// Cancel discards the pending action under key, if any.
func (d *Debouncer) Cancel(key string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p, ok := d.pending[key]; ok {
		p.timer.Stop()
		delete(d.pending, key)
	}
}

// CancelAll discards every pending action. Called on detach so nothing fires
// after teardown.
func (d *Debouncer) CancelAll() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for key, p := range d.pending {
		p.timer.Stop()
		delete(d.pending, key)
	}
}

// Pending reports whether an action is scheduled under key.
func (d *Debouncer) Pending(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.pending[key]
	return ok
}
