// Package panel locates the editor and preview panels after the window
// opens. Panels materialize asynchronously while the layout is restored, so
// discovery retries on the dispatch loop's low-priority queue until the
// editor shows up or the attempt budget runs out.
package panel

import (
	"time"

	"github.com/Mustansir-06/MermaidPad/internal/dispatch"
	"github.com/Mustansir-06/MermaidPad/internal/editor"
	"github.com/Mustansir-06/MermaidPad/internal/log"
	"github.com/Mustansir-06/MermaidPad/internal/render"
)

// DefaultMaxAttempts bounds the retry loop. At the default backoff this is
// several seconds of looking before discovery gives up and logs an error
// instead of spinning for the life of the window.
const DefaultMaxAttempts = 120

// Handle is the pair of panels discovery resolves. Editor is required;
// Preview may be nil when the preview tool was removed from the layout.
type Handle struct {
	Editor  *editor.Surface
	Preview *render.Preview
}

// Backoff maps a 1-based attempt number to the delay before the next try.
// A zero delay reschedules straight onto the low-priority queue.
type Backoff func(attempt int) time.Duration

// DefaultBackoff waits a flat 50ms between attempts.
func DefaultBackoff(int) time.Duration { return 50 * time.Millisecond }

// Locator looks the panels up in the live layout. Called on the dispatch
// loop.
type Locator func() Handle

// Discoverer runs the bounded retry loop. All methods must be called on
// the dispatch loop.
type Discoverer struct {
	loop        *dispatch.Loop
	locate      Locator
	backoff     Backoff
	maxAttempts int

	attempt int
	found   bool
	stopped bool
}

// NewDiscoverer creates a discoverer with the default backoff and attempt
// budget.
func NewDiscoverer(loop *dispatch.Loop, locate Locator) *Discoverer {
	return &Discoverer{
		loop:        loop,
		locate:      locate,
		backoff:     DefaultBackoff,
		maxAttempts: DefaultMaxAttempts,
	}
}

// SetBackoff overrides the retry delay policy.
func (d *Discoverer) SetBackoff(b Backoff) {
	if b != nil {
		d.backoff = b
	}
}

// SetMaxAttempts overrides the attempt budget. Non-positive values keep
// the default.
func (d *Discoverer) SetMaxAttempts(n int) {
	if n > 0 {
		d.maxAttempts = n
	}
}

// Start begins discovery. onFound runs at most once, on the dispatch loop,
// when the editor panel is located. Starting an already-found or stopped
// discoverer is a no-op.
func (d *Discoverer) Start(onFound func(Handle)) {
	if d.found || d.stopped {
		return
	}
	d.try(onFound)
}

// Stop abandons discovery. Pending retries become no-ops. Called on detach
// so a retry scheduled before the window closed cannot wire anything after.
func (d *Discoverer) Stop() {
	d.stopped = true
}

// Found reports whether discovery succeeded.
func (d *Discoverer) Found() bool { return d.found }

// Attempts returns how many lookups ran.
func (d *Discoverer) Attempts() int { return d.attempt }

func (d *Discoverer) try(onFound func(Handle)) {
	if d.found || d.stopped {
		return
	}
	d.attempt++

	h := d.locate()
	if h.Editor != nil {
		d.found = true
		if h.Preview == nil {
			// Preview is optional: sync still works, there is just nothing
			// to render into.
			log.Warn(log.CatPanel, "Preview panel not present, continuing without it")
		}
		log.Debug(log.CatPanel, "Panels discovered", "attempts", d.attempt)
		onFound(h)
		return
	}

	if d.attempt >= d.maxAttempts {
		log.Error(log.CatPanel, "Editor panel never appeared, giving up",
			"attempts", d.attempt)
		return
	}

	d.reschedule(onFound)
}

func (d *Discoverer) reschedule(onFound func(Handle)) {
	delay := d.backoff(d.attempt)
	if delay <= 0 {
		d.loop.PostLow(func() { d.try(onFound) })
		return
	}
	time.AfterFunc(delay, func() {
		d.loop.PostLow(func() { d.try(onFound) })
	})
}
