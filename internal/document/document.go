// Package document contains the observable document model.
//
// The model is the single source of truth for the Mermaid source text plus
// the selection and caret state shared between the editing surface and the
// preview. Every mutator clamps its inputs, so observers never see a
// selection or caret outside the current text, not even transiently.
// Property changes are published on a broker; the sync engine is the only
// writer back to the editing surface.
//
// The model is confined to the UI dispatch loop and performs no locking of
// its own. Code off the loop must post reads and writes onto it.
package document

import (
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Mustansir-06/MermaidPad/internal/pubsub"
)

// RenderState tracks the preview surface's readiness.
type RenderState int

const (
	// RenderNotStarted means the open sequence has not begun.
	RenderNotStarted RenderState = iota
	// RenderPending means initialization is underway.
	RenderPending
	// RenderReady means the first paint completed within the ceiling.
	RenderReady
	// RenderTimedOut means the readiness signal never arrived. Terminal:
	// a late readiness signal does not promote the state back to Ready.
	RenderTimedOut
)

func (s RenderState) String() string {
	switch s {
	case RenderNotStarted:
		return "not-started"
	case RenderPending:
		return "pending"
	case RenderReady:
		return "ready"
	case RenderTimedOut:
		return "timed-out"
	default:
		return "unknown"
	}
}

// Property names carried by change events.
const (
	PropText            = "Text"
	PropSelectionStart  = "SelectionStart"
	PropSelectionLength = "SelectionLength"
	PropCaretOffset     = "CaretOffset"
	PropAutoRender      = "AutoRender"
	PropRenderState     = "RenderState"
	PropRenderWarning   = "RenderWarning"
	PropRenderUsable    = "RenderUsable"
	PropCanPaste        = "CanPaste"
	PropDirty           = "Dirty"
	PropPath            = "Path"
)

// Change identifies which property of the model mutated.
type Change struct {
	Prop string
}

// Model is the observable document model. All offsets are rune offsets into
// the current text.
type Model struct {
	text            string
	length          int // rune count of text
	selectionStart  int
	selectionLength int
	caretOffset     int

	autoRender    bool
	renderState   RenderState
	renderWarning string
	renderUsable  bool
	canPaste      bool
	dirty         bool
	path          string

	changes *pubsub.Broker[Change]
}

// New creates an empty model with auto-render enabled.
func New() *Model {
	return &Model{
		autoRender: true,
		changes:    pubsub.NewBroker[Change](),
	}
}

// Changes returns the property-change broker.
func (m *Model) Changes() *pubsub.Broker[Change] {
	return m.changes
}

// Close shuts down the change broker.
func (m *Model) Close() {
	m.changes.Close()
}

func (m *Model) publish(prop string) {
	m.changes.Publish(pubsub.ChangedEvent, Change{Prop: prop})
}

// Text returns the document text.
func (m *Model) Text() string { return m.text }

// Length returns the text length in runes.
func (m *Model) Length() int { return m.length }

// SetText replaces the document text, remaps the caret through the edit so
// it stays on the same logical spot, and re-clamps the selection before any
// observer is notified.
func (m *Model) SetText(text string) {
	if text == m.text {
		return
	}
	oldText := m.text
	m.text = text
	m.length = utf8.RuneCountInString(text)

	// Remap the caret through the replacement, then clamp everything so the
	// invariants hold at the instant the change event goes out.
	m.caretOffset = clamp(RemapOffset(oldText, text, m.caretOffset), 0, m.length)
	m.selectionStart = clamp(m.selectionStart, 0, m.length)
	m.selectionLength = clamp(m.selectionLength, 0, m.length-m.selectionStart)

	if !m.dirty {
		m.dirty = true
		defer m.publish(PropDirty)
	}
	m.publish(PropText)
}

// SelectionStart returns the selection anchor in runes.
func (m *Model) SelectionStart() int { return m.selectionStart }

// SelectionLength returns the selection length in runes.
func (m *Model) SelectionLength() int { return m.selectionLength }

// CaretOffset returns the caret position in runes.
func (m *Model) CaretOffset() int { return m.caretOffset }

// SetSelection updates the selection range, clamping silently.
func (m *Model) SetSelection(start, length int) {
	start = clamp(start, 0, m.length)
	length = clamp(length, 0, m.length-start)

	if start != m.selectionStart {
		m.selectionStart = start
		m.publish(PropSelectionStart)
	}
	if length != m.selectionLength {
		m.selectionLength = length
		m.publish(PropSelectionLength)
	}
}

// SetCaretOffset moves the caret, clamping silently.
func (m *Model) SetCaretOffset(offset int) {
	offset = clamp(offset, 0, m.length)
	if offset == m.caretOffset {
		return
	}
	m.caretOffset = offset
	m.publish(PropCaretOffset)
}

// AutoRender reports whether edits trigger preview renders automatically.
func (m *Model) AutoRender() bool { return m.autoRender }

// SetAutoRender toggles automatic preview rendering.
func (m *Model) SetAutoRender(on bool) {
	if on == m.autoRender {
		return
	}
	m.autoRender = on
	m.publish(PropAutoRender)
}

// RenderState returns the preview readiness state.
func (m *Model) RenderState() RenderState { return m.renderState }

// SetRenderState transitions the readiness state. TimedOut is terminal: once
// degraded, a late readiness signal is a no-op.
func (m *Model) SetRenderState(state RenderState) {
	if m.renderState == RenderTimedOut && state == RenderReady {
		return
	}
	if state == m.renderState {
		return
	}
	m.renderState = state
	m.publish(PropRenderState)
}

// RenderWarning returns the user-visible warning recorded on timeout.
func (m *Model) RenderWarning() string { return m.renderWarning }

// SetRenderWarning records a user-visible, non-fatal warning.
func (m *Model) SetRenderWarning(msg string) {
	if msg == m.renderWarning {
		return
	}
	m.renderWarning = msg
	m.publish(PropRenderWarning)
}

// RenderUsable reports whether render-gated commands are allowed. True in
// both the Ready and the degraded TimedOut states.
func (m *Model) RenderUsable() bool { return m.renderUsable }

// SetRenderUsable flips the usable flag consulted by command availability.
func (m *Model) SetRenderUsable(usable bool) {
	if usable == m.renderUsable {
		return
	}
	m.renderUsable = usable
	m.publish(PropRenderUsable)
}

// CanPaste reports the last observed clipboard capability.
func (m *Model) CanPaste() bool { return m.canPaste }

// SetCanPaste records clipboard capability, observed off the UI loop and
// marshaled back before this call.
func (m *Model) SetCanPaste(can bool) {
	if can == m.canPaste {
		return
	}
	m.canPaste = can
	m.publish(PropCanPaste)
}

// Dirty reports whether the text changed since the last save.
func (m *Model) Dirty() bool { return m.dirty }

// MarkSaved clears the dirty flag after a successful save.
func (m *Model) MarkSaved() {
	if !m.dirty {
		return
	}
	m.dirty = false
	m.publish(PropDirty)
}

// Path returns the backing file path, empty for an unsaved document.
func (m *Model) Path() string { return m.path }

// SetPath records the backing file path.
func (m *Model) SetPath(path string) {
	if path == m.path {
		return
	}
	m.path = path
	m.publish(PropPath)
}

// RemapOffset translates a rune offset in oldText to the equivalent offset
// in newText by diffing the two, so the caret survives whole-text
// replacement (external reload, programmatic load).
func RemapOffset(oldText, newText string, offset int) int {
	if oldText == newText {
		return offset
	}
	if offset <= 0 {
		return 0
	}

	byteOff := runeToByteOffset(oldText, offset)

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(oldText, newText, false)
	newByteOff := dmp.DiffXIndex(diffs, byteOff)

	return byteToRuneOffset(newText, newByteOff)
}

func runeToByteOffset(s string, runeOff int) int {
	count := 0
	for i := range s {
		if count == runeOff {
			return i
		}
		count++
	}
	return len(s)
}

func byteToRuneOffset(s string, byteOff int) int {
	if byteOff >= len(s) {
		return utf8.RuneCountInString(s)
	}
	return utf8.RuneCountInString(s[:byteOff])
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
