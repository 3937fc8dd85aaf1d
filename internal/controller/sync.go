package controller

import (
	"time"

	"github.com/Mustansir-06/MermaidPad/internal/dispatch"
	"github.com/Mustansir-06/MermaidPad/internal/document"
	"github.com/Mustansir-06/MermaidPad/internal/editor"
	"github.com/Mustansir-06/MermaidPad/internal/log"
)

// Debounce keys. Each propagation channel coalesces independently so a
// selection flurry cannot delay a pending text push or vice versa.
const (
	keyEditorText  = "editor-text"  // surface -> model text
	keyEditorState = "editor-state" // surface -> model selection and caret
	keyModelText   = "vm-text"      // model -> surface text
	keyModelState  = "vm-selection" // model -> surface selection and caret
)

// Default quiescence windows. Text waits out a typing burst; selection
// state is cheaper and settles faster.
const (
	DefaultTextDebounce  = 250 * time.Millisecond
	DefaultStateDebounce = 50 * time.Millisecond
)

// Engine performs bidirectional synchronization between an editing surface
// and the document model. Writes in either direction are debounced per
// channel and bracketed with guards so the resulting change notifications
// are recognized as echoes. All methods run on the dispatch loop.
type Engine struct {
	loop      *dispatch.Loop
	debouncer *dispatch.Debouncer
	model     *document.Model
	surface   *editor.Surface
	guards    *Guards

	textDelay  time.Duration
	stateDelay time.Duration
}

// NewEngine creates an engine for the given surface/model pair.
func NewEngine(loop *dispatch.Loop, debouncer *dispatch.Debouncer, model *document.Model, surface *editor.Surface) *Engine {
	return &Engine{
		loop:       loop,
		debouncer:  debouncer,
		model:      model,
		surface:    surface,
		guards:     &Guards{},
		textDelay:  DefaultTextDebounce,
		stateDelay: DefaultStateDebounce,
	}
}

// SetDebounce overrides the quiescence windows. Non-positive values keep
// the current setting.
func (e *Engine) SetDebounce(text, state time.Duration) {
	if text > 0 {
		e.textDelay = text
	}
	if state > 0 {
		e.stateDelay = state
	}
}

// Guards exposes the re-entrancy flags for inspection.
func (e *Engine) Guards() *Guards { return e.guards }

// InitFromModel pushes the model snapshot into the surface immediately, no
// debounce. Runs once after panel wiring so the surface starts from the
// loaded document instead of the other way around.
func (e *Engine) InitFromModel() {
	e.guards.PushToEditor(func() {
		e.surface.SetText(e.model.Text())
		e.surface.SetSelection(e.model.SelectionStart(), e.model.SelectionLength())
		e.surface.SetCaret(e.model.CaretOffset())
	})
}

// OnSurfaceTextChanged handles a raw text notification from the surface.
// Echoes of engine writes are dropped; real edits coalesce on the text
// channel and push the fire-time surface text into the model.
//
// The push carries the selection and caret along with the text. The state
// channel settles faster than the text channel, so a state push landing
// before the text does gets clamped against the old, shorter text; the
// text push re-asserts the surface's state against the new length.
func (e *Engine) OnSurfaceTextChanged() {
	if e.guards.EditorEcho() {
		return
	}
	e.debouncer.Schedule(keyEditorText, e.textDelay, dispatch.PriorityNormal, func() {
		text := e.surface.Text()
		start, length := e.surface.Selection()
		caret := e.surface.CaretOffset()
		e.guards.PushToModel(func() {
			e.model.SetText(text)
			e.model.SetSelection(start, length)
			e.model.SetCaretOffset(caret)
		})
		log.Debug(log.CatSync, "Surface text pushed to model", "runes", e.surface.Length())
	})
}

// OnSurfaceStateChanged handles a selection or caret notification from the
// surface. The state channel fires at low priority since selection echoes
// are cosmetic next to text content.
func (e *Engine) OnSurfaceStateChanged() {
	if e.guards.EditorEcho() {
		return
	}
	e.debouncer.Schedule(keyEditorState, e.stateDelay, dispatch.PriorityLow, func() {
		start, length := e.surface.Selection()
		caret := e.surface.CaretOffset()
		e.guards.PushToModel(func() {
			e.model.SetSelection(start, length)
			e.model.SetCaretOffset(caret)
		})
	})
}

// OnModelChanged handles a property-change notification from the model and
// routes it to the matching propagation channel. Properties that have no
// surface representation are ignored here; the controller watches them
// separately.
func (e *Engine) OnModelChanged(prop string) {
	if e.guards.ModelEcho() {
		return
	}
	switch prop {
	case document.PropText:
		e.debouncer.Schedule(keyModelText, e.textDelay, dispatch.PriorityNormal, func() {
			text := e.model.Text()
			start, length := e.model.SelectionStart(), e.model.SelectionLength()
			caret := e.model.CaretOffset()
			e.guards.PushToEditor(func() {
				e.surface.SetText(text)
				e.surface.SetSelection(start, length)
				e.surface.SetCaret(caret)
			})
			log.Debug(log.CatSync, "Model text pushed to surface", "runes", e.model.Length())
		})
	case document.PropSelectionStart, document.PropSelectionLength, document.PropCaretOffset:
		e.debouncer.Schedule(keyModelState, e.stateDelay, dispatch.PriorityLow, func() {
			start, length := e.model.SelectionStart(), e.model.SelectionLength()
			caret := e.model.CaretOffset()
			e.guards.PushToEditor(func() {
				e.surface.SetSelection(start, length)
				e.surface.SetCaret(caret)
			})
		})
	}
}

// Flush cancels nothing but forces pending pushes to fire now. Used before
// save so the model holds the latest keystrokes.
func (e *Engine) Flush() {
	for _, key := range []string{keyEditorText, keyEditorState, keyModelText, keyModelState} {
		e.debouncer.Flush(key)
	}
}
