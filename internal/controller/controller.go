package controller

import (
	"context"
	"errors"
	"time"

	"github.com/atotto/clipboard"

	"github.com/Mustansir-06/MermaidPad/internal/dispatch"
	"github.com/Mustansir-06/MermaidPad/internal/document"
	"github.com/Mustansir-06/MermaidPad/internal/editor"
	"github.com/Mustansir-06/MermaidPad/internal/log"
	"github.com/Mustansir-06/MermaidPad/internal/panel"
	"github.com/Mustansir-06/MermaidPad/internal/pubsub"
	"github.com/Mustansir-06/MermaidPad/internal/render"
	"github.com/Mustansir-06/MermaidPad/internal/wiring"
)

const keyRender = "render"

// Hooks are the window-facing callbacks. All run on the dispatch loop.
type Hooks struct {
	// ConfirmClose is consulted when the window is closing with unsaved
	// changes. Return false to keep the window open. Nil allows the close.
	ConfirmClose func() bool

	// Warn surfaces a non-fatal, user-visible warning (toast).
	Warn func(msg string)

	// Fatal surfaces an error that aborts the open sequence.
	Fatal func(err error)
}

// Controller drives the window lifecycle: attach wires panels and
// subscriptions, open runs the render sequence, closing consults the dirty
// prompt, detach tears everything down. Attach/detach pair across window
// re-openings; every cycle starts clean.
type Controller struct {
	loop      *dispatch.Loop
	debouncer *dispatch.Debouncer
	model     *document.Model
	wiring    *wiring.Manager
	locate    panel.Locator
	hooks     Hooks

	engine     *Engine
	discoverer *panel.Discoverer
	preview    *render.Preview

	textDelay    time.Duration
	stateDelay   time.Duration
	renderDelay  time.Duration
	readyTimeout time.Duration
	maxDiscovery int

	lifeCtx    context.Context
	lifeCancel context.CancelFunc
}

// New creates a controller around the shared loop and model. locate is how
// panels are found in the live layout once they materialize.
func New(loop *dispatch.Loop, model *document.Model, locate panel.Locator) *Controller {
	return &Controller{
		loop:         loop,
		debouncer:    dispatch.NewDebouncer(loop),
		model:        model,
		wiring:       wiring.NewManager(),
		locate:       locate,
		textDelay:    DefaultTextDebounce,
		stateDelay:   DefaultStateDebounce,
		renderDelay:  DefaultTextDebounce,
		readyTimeout: render.DefaultReadyTimeout,
	}
}

// SetHooks installs the window-facing callbacks.
func (c *Controller) SetHooks(h Hooks) { c.hooks = h }

// SetDebounce overrides the propagation quiescence windows.
func (c *Controller) SetDebounce(text, state time.Duration) {
	if text > 0 {
		c.textDelay = text
		c.renderDelay = text
	}
	if state > 0 {
		c.stateDelay = state
	}
	if c.engine != nil {
		c.engine.SetDebounce(text, state)
	}
}

// SetReadyTimeout overrides the first-render readiness ceiling.
func (c *Controller) SetReadyTimeout(d time.Duration) {
	if d > 0 {
		c.readyTimeout = d
	}
}

// SetMaxDiscoveryAttempts overrides the panel discovery budget.
func (c *Controller) SetMaxDiscoveryAttempts(n int) { c.maxDiscovery = n }

// Engine returns the sync engine, nil before panels are wired.
func (c *Controller) Engine() *Engine { return c.engine }

// Wiring exposes the subscription manager for inspection.
func (c *Controller) Wiring() *wiring.Manager { return c.wiring }

// Attach opens a lifecycle: begins the wiring cycle and starts panel
// discovery. Runs on the dispatch loop.
func (c *Controller) Attach() {
	if !c.wiring.Attach() {
		return
	}
	c.lifeCtx, c.lifeCancel = context.WithCancel(context.Background())

	c.discoverer = panel.NewDiscoverer(c.loop, c.locate)
	if c.maxDiscovery > 0 {
		c.discoverer.SetMaxAttempts(c.maxDiscovery)
	}
	c.discoverer.Start(c.onPanelsFound)
}

// onPanelsFound wires subscriptions exactly once per attach cycle, seeds
// the surface from the model, and kicks off the open render sequence.
func (c *Controller) onPanelsFound(h panel.Handle) {
	c.wiring.WirePanels(func() {
		surface := h.Editor
		c.preview = h.Preview

		c.engine = NewEngine(c.loop, c.debouncer, c.model, surface)
		c.engine.SetDebounce(c.textDelay, c.stateDelay)

		c.wiring.Add("surface-text", surface.TextChanges().SubscribeFunc(
			func(pubsub.Event[editor.TextEvent]) { c.engine.OnSurfaceTextChanged() }))
		c.wiring.Add("surface-selection", surface.SelectionChanges().SubscribeFunc(
			func(pubsub.Event[editor.SelectionEvent]) { c.engine.OnSurfaceStateChanged() }))
		c.wiring.Add("surface-caret", surface.CaretMoves().SubscribeFunc(
			func(pubsub.Event[editor.CaretEvent]) { c.engine.OnSurfaceStateChanged() }))
		c.wiring.Add("surface-menu", surface.MenuOpens().SubscribeFunc(
			func(pubsub.Event[editor.MenuEvent]) { c.RefreshClipboard() }))
		c.wiring.Add("model-changes", c.model.Changes().SubscribeFunc(
			func(ev pubsub.Event[document.Change]) { c.onModelChanged(ev.Payload.Prop) }))

		c.engine.InitFromModel()
		c.RefreshClipboard()

		if c.preview != nil {
			go c.runOpenSequence()
		}
	})
}

// onModelChanged fans a model notification out to the sync engine and the
// controller's own concerns: render triggering and warning surfacing.
func (c *Controller) onModelChanged(prop string) {
	c.engine.OnModelChanged(prop)

	switch prop {
	case document.PropText:
		// Render triggering deliberately ignores the echo guards: an engine
		// push into the model is still new content for the preview.
		if c.model.AutoRender() && c.preview != nil {
			c.debouncer.Schedule(keyRender, c.renderDelay, dispatch.PriorityLow, func() {
				text := c.model.Text()
				go c.renderPreview(text)
			})
		}
	case document.PropRenderWarning:
		if msg := c.model.RenderWarning(); msg != "" && c.hooks.Warn != nil {
			c.hooks.Warn(msg)
		}
	}
}

// RenderNow bypasses the debounce and renders the current document text.
// Used by the manual render command and when auto-render is re-enabled.
func (c *Controller) RenderNow() {
	if c.preview == nil {
		return
	}
	c.debouncer.Cancel(keyRender)
	text := c.model.Text()
	go c.renderPreview(text)
}

func (c *Controller) renderPreview(text string) {
	if err := c.preview.Render(text); err != nil {
		log.ErrorErr(log.CatRender, err, "Preview render failed")
	}
}

// runOpenSequence executes the first-render lifecycle off the loop.
func (c *Controller) runOpenSequence() {
	seq := render.NewSequencer(c.loop, c.model, c.preview)
	seq.SetReadyTimeout(c.readyTimeout)

	if err := seq.Run(c.lifeCtx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.ErrorErr(log.CatRender, err, "Open sequence failed")
		c.loop.Post(func() {
			if c.hooks.Fatal != nil {
				c.hooks.Fatal(err)
			}
		})
	}
}

// RefreshClipboard samples the system clipboard off the loop and marshals
// the capability back onto it.
func (c *Controller) RefreshClipboard() {
	go func() {
		text, err := clipboard.ReadAll()
		can := err == nil && text != ""
		c.loop.Post(func() { c.model.SetCanPaste(can) })
	}()
}

// Closing is consulted before the window closes. Pending edits are flushed
// into the model first so the dirty check sees the latest keystrokes.
func (c *Controller) Closing() bool {
	if c.engine != nil {
		c.engine.Flush()
	}
	if c.model.Dirty() && c.hooks.ConfirmClose != nil {
		return c.hooks.ConfirmClose()
	}
	return true
}

// Detach closes the lifecycle: cancels the open sequence, abandons
// discovery, discards pending debounced work, and tears down every
// subscription. Safe to call when already detached.
func (c *Controller) Detach() {
	if c.lifeCancel != nil {
		c.lifeCancel()
		c.lifeCancel = nil
	}
	if c.discoverer != nil {
		c.discoverer.Stop()
	}
	c.debouncer.CancelAll()
	c.wiring.Detach()
	c.engine = nil
	c.preview = nil
	log.Info(log.CatSync, "Controller detached")
}
