// Package editor implements the live editing surface: a plain text area
// holding the Mermaid source with a caret and a selection range.
//
// The surface publishes a raw notification for every change, whether the
// change came from a keystroke or from a programmatic write. That mirrors
// how a real text box behaves and is exactly why the sync engine brackets
// its programmatic writes with suppression guards. Offsets are rune
// offsets; out-of-range input to any setter is clamped silently, never
// rejected.
package editor

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/truncate"
	"github.com/rivo/uniseg"

	"github.com/Mustansir-06/MermaidPad/internal/pubsub"
	"github.com/Mustansir-06/MermaidPad/internal/ui/styles"
)

// TextEvent is the raw text-changed notification.
type TextEvent struct {
	Text string
}

// SelectionEvent is the raw selection-changed notification.
type SelectionEvent struct {
	Start  int
	Length int
}

// CaretEvent is the raw caret-moved notification.
type CaretEvent struct {
	Offset int
}

// MenuEvent is the context-menu-opening notification.
type MenuEvent struct{}

// Surface is the editing surface component.
type Surface struct {
	text     []rune
	selStart int
	selLen   int
	caret    int

	focused     bool
	width       int
	height      int
	scroll      int
	placeholder string

	textChanges      *pubsub.Broker[TextEvent]
	selectionChanges *pubsub.Broker[SelectionEvent]
	caretMoves       *pubsub.Broker[CaretEvent]
	menuOpens        *pubsub.Broker[MenuEvent]
}

// NewSurface creates an empty, unfocused surface.
func NewSurface() *Surface {
	return &Surface{
		placeholder:      "Type a Mermaid diagram…",
		textChanges:      pubsub.NewBroker[TextEvent](),
		selectionChanges: pubsub.NewBroker[SelectionEvent](),
		caretMoves:       pubsub.NewBroker[CaretEvent](),
		menuOpens:        pubsub.NewBroker[MenuEvent](),
	}
}

// TextChanges returns the text-changed notification source.
func (s *Surface) TextChanges() *pubsub.Broker[TextEvent] { return s.textChanges }

// SelectionChanges returns the selection-changed notification source.
func (s *Surface) SelectionChanges() *pubsub.Broker[SelectionEvent] { return s.selectionChanges }

// CaretMoves returns the caret-moved notification source.
func (s *Surface) CaretMoves() *pubsub.Broker[CaretEvent] { return s.caretMoves }

// MenuOpens returns the context-menu-opening notification source.
func (s *Surface) MenuOpens() *pubsub.Broker[MenuEvent] { return s.menuOpens }

// Close shuts down all notification sources.
func (s *Surface) Close() {
	s.textChanges.Close()
	s.selectionChanges.Close()
	s.caretMoves.Close()
	s.menuOpens.Close()
}

// Text returns the surface text.
func (s *Surface) Text() string { return string(s.text) }

// Length returns the text length in runes.
func (s *Surface) Length() int { return len(s.text) }

// Selection returns the selection range.
func (s *Surface) Selection() (start, length int) { return s.selStart, s.selLen }

// CaretOffset returns the caret position.
func (s *Surface) CaretOffset() int { return s.caret }

// SetText replaces the whole text. The caret and selection are clamped into
// the new bounds. Publishes a text-changed notification (and selection or
// caret notifications when clamping moved them).
func (s *Surface) SetText(text string) {
	if text == string(s.text) {
		return
	}
	s.text = []rune(text)
	s.clampAll()
	s.textChanges.Publish(pubsub.ChangedEvent, TextEvent{Text: text})
}

// SetSelection sets the selection range, clamped silently.
func (s *Surface) SetSelection(start, length int) {
	start = clamp(start, 0, len(s.text))
	length = clamp(length, 0, len(s.text)-start)
	if start == s.selStart && length == s.selLen {
		return
	}
	s.selStart, s.selLen = start, length
	s.selectionChanges.Publish(pubsub.ChangedEvent, SelectionEvent{Start: start, Length: length})
}

// SetCaret moves the caret, clamped silently.
func (s *Surface) SetCaret(offset int) {
	offset = clamp(offset, 0, len(s.text))
	if offset == s.caret {
		return
	}
	s.caret = offset
	s.caretMoves.Publish(pubsub.ChangedEvent, CaretEvent{Offset: offset})
}

// InsertText inserts text at the caret, replacing any selection.
func (s *Surface) InsertText(text string) {
	if text == "" {
		return
	}
	s.deleteSelectionRunes()
	ins := []rune(text)
	s.text = append(s.text[:s.caret], append(ins, s.text[s.caret:]...)...)
	s.moveCaretInternal(s.caret + len(ins))
	s.textChanges.Publish(pubsub.ChangedEvent, TextEvent{Text: string(s.text)})
}

// Backspace deletes the selection, or the rune before the caret.
func (s *Surface) Backspace() {
	if s.selLen > 0 {
		s.deleteSelectionRunes()
	} else {
		if s.caret == 0 {
			return
		}
		s.text = append(s.text[:s.caret-1], s.text[s.caret:]...)
		s.moveCaretInternal(s.caret - 1)
	}
	s.textChanges.Publish(pubsub.ChangedEvent, TextEvent{Text: string(s.text)})
}

// DeleteForward deletes the selection, or the rune under the caret.
func (s *Surface) DeleteForward() {
	if s.selLen > 0 {
		s.deleteSelectionRunes()
	} else {
		if s.caret >= len(s.text) {
			return
		}
		s.text = append(s.text[:s.caret], s.text[s.caret+1:]...)
	}
	s.textChanges.Publish(pubsub.ChangedEvent, TextEvent{Text: string(s.text)})
}

// MoveCaret moves the caret by delta runes. When selecting, the selection
// extends from its anchor to the new caret; otherwise it collapses.
func (s *Surface) MoveCaret(delta int, selecting bool) {
	s.moveCaretTo(s.caret+delta, selecting)
}

// MoveLine moves the caret dy lines, keeping the column when possible.
func (s *Surface) MoveLine(dy int, selecting bool) {
	row, col := s.caretRowCol()
	lines := s.lines()
	row = clamp(row+dy, 0, len(lines)-1)
	col = clamp(col, 0, len([]rune(lines[row])))
	s.moveCaretTo(s.offsetAt(row, col), selecting)
}

// LineHome moves the caret to the start of the current line.
func (s *Surface) LineHome(selecting bool) {
	row, _ := s.caretRowCol()
	s.moveCaretTo(s.offsetAt(row, 0), selecting)
}

// LineEnd moves the caret to the end of the current line.
func (s *Surface) LineEnd(selecting bool) {
	row, _ := s.caretRowCol()
	lines := s.lines()
	s.moveCaretTo(s.offsetAt(row, len([]rune(lines[row]))), selecting)
}

// SelectAll selects the whole text and moves the caret to the end.
func (s *Surface) SelectAll() {
	s.SetSelection(0, len(s.text))
	s.SetCaret(len(s.text))
}

// SelectedText returns the selected text, empty when nothing is selected.
func (s *Surface) SelectedText() string {
	if s.selLen == 0 {
		return ""
	}
	return string(s.text[s.selStart : s.selStart+s.selLen])
}

// OpenContextMenu publishes the context-menu-opening notification.
func (s *Surface) OpenContextMenu() {
	s.menuOpens.Publish(pubsub.ChangedEvent, MenuEvent{})
}

// Focus gives the surface keyboard focus.
func (s *Surface) Focus() { s.focused = true }

// Blur removes keyboard focus.
func (s *Surface) Blur() { s.focused = false }

// Focused reports focus state.
func (s *Surface) Focused() bool { return s.focused }

// SetSize updates the display dimensions.
func (s *Surface) SetSize(width, height int) {
	s.width = width
	s.height = height
}

// moveCaretTo moves the caret and maintains the selection anchor.
func (s *Surface) moveCaretTo(offset int, selecting bool) {
	offset = clamp(offset, 0, len(s.text))
	if selecting {
		anchor := s.anchor()
		start, length := anchor, 0
		if offset < anchor {
			start, length = offset, anchor-offset
		} else {
			length = offset - anchor
		}
		s.SetSelection(start, length)
	} else if s.selLen > 0 {
		s.SetSelection(offset, 0)
	}
	s.SetCaret(offset)
}

// anchor returns the selection end opposite the caret.
func (s *Surface) anchor() int {
	if s.selLen == 0 {
		return s.caret
	}
	if s.caret == s.selStart {
		return s.selStart + s.selLen
	}
	return s.selStart
}

func (s *Surface) deleteSelectionRunes() {
	if s.selLen == 0 {
		return
	}
	start, length := s.selStart, s.selLen
	s.text = append(s.text[:start], s.text[start+length:]...)
	s.SetSelection(start, 0)
	s.moveCaretInternal(start)
}

// moveCaretInternal clamps and publishes without touching the selection.
func (s *Surface) moveCaretInternal(offset int) {
	offset = clamp(offset, 0, len(s.text))
	if offset == s.caret {
		return
	}
	s.caret = offset
	s.caretMoves.Publish(pubsub.ChangedEvent, CaretEvent{Offset: offset})
}

func (s *Surface) clampAll() {
	n := len(s.text)
	start := clamp(s.selStart, 0, n)
	length := clamp(s.selLen, 0, n-start)
	if start != s.selStart || length != s.selLen {
		s.selStart, s.selLen = start, length
		s.selectionChanges.Publish(pubsub.ChangedEvent, SelectionEvent{Start: start, Length: length})
	}
	if s.caret > n {
		s.caret = n
		s.caretMoves.Publish(pubsub.ChangedEvent, CaretEvent{Offset: n})
	}
}

func (s *Surface) lines() []string {
	return strings.Split(string(s.text), "\n")
}

// caretRowCol converts the caret offset to a row and rune column.
func (s *Surface) caretRowCol() (row, col int) {
	for i := 0; i < s.caret && i < len(s.text); i++ {
		if s.text[i] == '\n' {
			row++
			col = 0
		} else {
			col++
		}
	}
	return row, col
}

// offsetAt converts a row and rune column back to a rune offset.
func (s *Surface) offsetAt(row, col int) int {
	off := 0
	lines := s.lines()
	for r := 0; r < row && r < len(lines); r++ {
		off += len([]rune(lines[r])) + 1
	}
	return off + col
}

// CaretPosition returns the 1-based line and grapheme column for display.
func (s *Surface) CaretPosition() (line, column int) {
	row, col := s.caretRowCol()
	lineText := s.lines()[row]
	prefix := string([]rune(lineText)[:clamp(col, 0, len([]rune(lineText)))])
	return row + 1, uniseg.GraphemeClusterCount(prefix) + 1
}

// View renders the visible text window with the selection highlighted and,
// when focused, a block cursor at the caret.
func (s *Surface) View() string {
	if len(s.text) == 0 && !s.focused {
		return styles.Placeholder.Render(s.placeholder)
	}

	lines := s.lines()
	caretRow, _ := s.caretRowCol()

	height := s.height
	if height <= 0 {
		height = len(lines)
	}
	s.scrollTo(caretRow, height)

	var b strings.Builder
	off := 0
	for r := 0; r < s.scroll && r < len(lines); r++ {
		off += len([]rune(lines[r])) + 1
	}
	for r := s.scroll; r < len(lines) && r < s.scroll+height; r++ {
		if r > s.scroll {
			b.WriteByte('\n')
		}
		b.WriteString(s.renderLine(lines[r], off))
		off += len([]rune(lines[r])) + 1
	}
	return b.String()
}

// scrollTo keeps the caret row inside the visible window.
func (s *Surface) scrollTo(caretRow, height int) {
	if caretRow < s.scroll {
		s.scroll = caretRow
	}
	if caretRow >= s.scroll+height {
		s.scroll = caretRow - height + 1
	}
	if s.scroll < 0 {
		s.scroll = 0
	}
}

// renderLine styles one line given the rune offset of its first character.
func (s *Surface) renderLine(line string, lineStart int) string {
	runes := []rune(line)
	selEnd := s.selStart + s.selLen

	var b strings.Builder
	for i, r := range runes {
		off := lineStart + i
		cell := string(r)
		switch {
		case s.focused && off == s.caret:
			cell = styles.Cursor.Render(cell)
		case s.selLen > 0 && off >= s.selStart && off < selEnd:
			cell = styles.Selection.Render(cell)
		}
		b.WriteString(cell)
	}
	// Caret sitting past the end of the line renders as a highlighted space.
	if s.focused && s.caret == lineStart+len(runes) {
		b.WriteString(styles.Cursor.Render(" "))
	}

	rendered := b.String()
	if s.width > 0 {
		pad := s.width - lipgloss.Width(rendered)
		if pad > 0 {
			b.WriteString(strings.Repeat(" ", pad))
			rendered = b.String()
		}
	}
	return rendered
}

// StatusLine renders the caret position summary, truncated to width.
func (s *Surface) StatusLine(width int) string {
	line, column := s.CaretPosition()
	status := lineColStatus(line, column, s.selLen)
	if width > 0 && runewidth.StringWidth(status) > width {
		status = truncate.StringWithTail(status, uint(width), "…")
	}
	return styles.StatusBar.Render(status)
}

// lineColStatus formats the 1-based caret position for the status bar,
// with the selection size appended while a selection is active.
func lineColStatus(line, column, selected int) string {
	if selected > 0 {
		return fmt.Sprintf("Ln %d, Col %d (%d selected)", line, column, selected)
	}
	return fmt.Sprintf("Ln %d, Col %d", line, column)
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
