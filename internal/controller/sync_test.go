package controller

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mustansir-06/MermaidPad/internal/dispatch"
	"github.com/Mustansir-06/MermaidPad/internal/document"
	"github.com/Mustansir-06/MermaidPad/internal/editor"
	"github.com/Mustansir-06/MermaidPad/internal/panel"
	"github.com/Mustansir-06/MermaidPad/internal/pubsub"
)

// fixture assembles a wired controller with fast debounce windows.
type fixture struct {
	loop    *dispatch.Loop
	model   *document.Model
	surface *editor.Surface
	ctrl    *Controller
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		loop:    dispatch.NewLoop(),
		model:   document.New(),
		surface: editor.NewSurface(),
	}
	t.Cleanup(func() {
		f.loop.Stop()
		f.model.Close()
		f.surface.Close()
	})

	f.ctrl = New(f.loop, f.model, func() panel.Handle {
		return panel.Handle{Editor: f.surface}
	})
	f.ctrl.SetDebounce(30*time.Millisecond, 10*time.Millisecond)

	f.run(func() { f.ctrl.Attach() })
	f.waitWired(t)
	return f
}

// run executes fn on the dispatch loop and waits for it.
func (f *fixture) run(fn func()) { _ = f.loop.PostWait(fn) }

func (f *fixture) waitWired(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		wired := false
		f.run(func() { wired = f.ctrl.Wiring().PanelsWired() })
		return wired
	}, time.Second, 5*time.Millisecond, "panels never wired")
}

// settle waits until no propagation is pending and the loop drained.
func (f *fixture) settle(t *testing.T) {
	t.Helper()
	time.Sleep(120 * time.Millisecond)
	f.run(func() {})
}

func TestEngine_TypingBurstCoalescesIntoOneModelUpdate(t *testing.T) {
	f := newFixture(t)

	var textUpdates atomic.Int32
	f.run(func() {
		f.model.Changes().SubscribeFunc(func(ev pubsub.Event[document.Change]) {
			if ev.Payload.Prop == document.PropText {
				textUpdates.Add(1)
			}
		})
	})

	// Five keystrokes inside the quiescence window.
	for _, ch := range []string{"g", "r", "a", "p", "h"} {
		ch := ch
		f.run(func() { f.surface.InsertText(ch) })
		time.Sleep(5 * time.Millisecond)
	}
	f.settle(t)

	assert.Equal(t, int32(1), textUpdates.Load(), "burst collapses to one model write")
	f.run(func() {
		assert.Equal(t, "graph", f.model.Text())
		assert.Equal(t, 5, f.model.CaretOffset())
	})
}

func TestEngine_CaretSurvivesTextGrowth(t *testing.T) {
	f := newFixture(t)

	// The state channel settles before the text channel, so the caret push
	// lands while the model still holds the old, shorter text and gets
	// clamped to it. The text push must re-assert the surface's caret
	// against the new length.
	f.run(func() { f.surface.InsertText("graph TD") })
	f.settle(t)

	f.run(func() {
		assert.Equal(t, "graph TD", f.model.Text())
		assert.Equal(t, 8, f.model.CaretOffset())
		assert.Equal(t, f.surface.CaretOffset(), f.model.CaretOffset())
	})
}

func TestEngine_NoOscillationSurfaceToModel(t *testing.T) {
	f := newFixture(t)

	var surfaceWrites atomic.Int32
	f.run(func() {
		f.surface.TextChanges().SubscribeFunc(func(pubsub.Event[editor.TextEvent]) {
			surfaceWrites.Add(1)
		})
	})

	f.run(func() { f.surface.InsertText("graph TD") })
	f.settle(t)

	f.run(func() {
		assert.Equal(t, "graph TD", f.model.Text())
		assert.True(t, f.ctrl.Engine().Guards().Idle(), "no guard left set after settling")
	})
	// Exactly the user's edit; the model push back would be an identical
	// no-op and must not re-publish.
	assert.Equal(t, int32(1), surfaceWrites.Load())
}

func TestEngine_NoOscillationModelToSurface(t *testing.T) {
	f := newFixture(t)

	var modelWrites atomic.Int32
	f.run(func() {
		f.model.Changes().SubscribeFunc(func(ev pubsub.Event[document.Change]) {
			if ev.Payload.Prop == document.PropText {
				modelWrites.Add(1)
			}
		})
	})

	f.run(func() { f.model.SetText("sequenceDiagram") })
	f.settle(t)

	f.run(func() {
		assert.Equal(t, "sequenceDiagram", f.surface.Text())
		assert.True(t, f.ctrl.Engine().Guards().Idle())
	})
	assert.Equal(t, int32(1), modelWrites.Load(), "the echo from the surface push is suppressed")
}

func TestEngine_SelectionPropagatesBothWays(t *testing.T) {
	f := newFixture(t)

	f.run(func() { f.model.SetText("graph TD\nA-->B") })
	f.settle(t)

	f.run(func() {
		f.surface.SetSelection(2, 4)
		f.surface.SetCaret(6)
	})
	f.settle(t)
	f.run(func() {
		assert.Equal(t, 2, f.model.SelectionStart())
		assert.Equal(t, 4, f.model.SelectionLength())
		assert.Equal(t, 6, f.model.CaretOffset())
	})

	f.run(func() { f.model.SetSelection(0, 5) })
	f.settle(t)
	f.run(func() {
		start, length := f.surface.Selection()
		assert.Equal(t, 0, start)
		assert.Equal(t, 5, length)
	})
}

func TestEngine_InitFromModelSeedsSurface(t *testing.T) {
	loop := dispatch.NewLoop()
	defer loop.Stop()
	model := document.New()
	defer model.Close()
	surface := editor.NewSurface()
	defer surface.Close()

	_ = loop.PostWait(func() {
		model.SetText("graph LR")
		model.SetCaretOffset(3)
	})

	ctrl := New(loop, model, func() panel.Handle { return panel.Handle{Editor: surface} })
	_ = loop.PostWait(func() { ctrl.Attach() })

	require.Eventually(t, func() bool {
		text := ""
		_ = loop.PostWait(func() { text = surface.Text() })
		return text == "graph LR"
	}, time.Second, 5*time.Millisecond)

	_ = loop.PostWait(func() {
		assert.Equal(t, 3, surface.CaretOffset())
		assert.True(t, ctrl.Engine().Guards().Idle())
	})
}

func TestController_DetachWhilePendingNeverFires(t *testing.T) {
	f := newFixture(t)

	f.run(func() {
		f.surface.InsertText("unsaved burst")
		// Detach lands inside the quiescence window.
		f.ctrl.Detach()
	})

	f.settle(t)
	f.run(func() {
		assert.Equal(t, "", f.model.Text(), "pending push must die with the wiring")
		assert.Equal(t, 0, f.ctrl.Wiring().Count())
	})
}

func TestController_ReattachStartsCleanCycle(t *testing.T) {
	f := newFixture(t)

	f.run(func() { f.ctrl.Detach() })
	f.run(func() { f.ctrl.Attach() })
	f.waitWired(t)

	f.run(func() { f.surface.InsertText("flowchart") })
	f.settle(t)
	f.run(func() {
		assert.Equal(t, "flowchart", f.model.Text(), "second cycle syncs like the first")
	})
}

func TestController_ClosingFlushesAndConsultsPrompt(t *testing.T) {
	f := newFixture(t)

	prompted := false
	f.run(func() {
		f.ctrl.SetHooks(Hooks{ConfirmClose: func() bool {
			prompted = true
			return false
		}})
		f.surface.InsertText("dirty")
	})

	// Closing flushes the pending text push, sees the dirty model, and
	// honors the veto.
	proceed := true
	f.run(func() { proceed = f.ctrl.Closing() })
	f.settle(t)

	assert.False(t, proceed)
	f.run(func() {
		assert.True(t, prompted)
		assert.Equal(t, "dirty", f.model.Text())
	})
}

func TestController_ClosingCleanModelSkipsPrompt(t *testing.T) {
	f := newFixture(t)

	f.run(func() {
		f.ctrl.SetHooks(Hooks{ConfirmClose: func() bool {
			t.Error("prompt must not run for a clean document")
			return false
		}})
	})

	proceed := false
	f.run(func() { proceed = f.ctrl.Closing() })
	assert.True(t, proceed)
}
