package document

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/Mustansir-06/MermaidPad/internal/pubsub"
)

func collectChanges(t *testing.T, m *Model) (<-chan pubsub.Event[Change], context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	return m.Changes().Subscribe(ctx), cancel
}

func drainProps(ch <-chan pubsub.Event[Change]) []string {
	var props []string
	for {
		select {
		case ev := <-ch:
			props = append(props, ev.Payload.Prop)
		case <-time.After(50 * time.Millisecond):
			return props
		}
	}
}

func TestSetText_PublishesTextAndDirty(t *testing.T) {
	m := New()
	defer m.Close()
	ch, cancel := collectChanges(t, m)
	defer cancel()

	m.SetText("flowchart TD\nA-->B")

	props := drainProps(ch)
	assert.Contains(t, props, PropText)
	assert.Contains(t, props, PropDirty)
	assert.True(t, m.Dirty())
	assert.Equal(t, "flowchart TD\nA-->B", m.Text())
}

func TestSetText_SameValueIsSilent(t *testing.T) {
	m := New()
	defer m.Close()
	m.SetText("graph LR")
	ch, cancel := collectChanges(t, m)
	defer cancel()

	m.SetText("graph LR")
	assert.Empty(t, drainProps(ch), "unchanged text must not notify")
}

func TestSetText_ReclampsSelectionAndCaret(t *testing.T) {
	m := New()
	defer m.Close()

	m.SetText("flowchart TD\nA-->B")
	m.SetSelection(5, 10)
	m.SetCaretOffset(15)

	m.SetText("ok")

	length := m.Length()
	assert.LessOrEqual(t, m.SelectionStart(), length)
	assert.LessOrEqual(t, m.SelectionStart()+m.SelectionLength(), length)
	assert.LessOrEqual(t, m.CaretOffset(), length)
}

func TestSetSelection_ClampsSilently(t *testing.T) {
	m := New()
	defer m.Close()
	m.SetText("hello") // length 5

	m.SetSelection(-3, 99)
	assert.Equal(t, 0, m.SelectionStart())
	assert.Equal(t, 5, m.SelectionLength())

	m.SetSelection(4, 99)
	assert.Equal(t, 4, m.SelectionStart())
	assert.Equal(t, 1, m.SelectionLength())

	m.SetCaretOffset(-1)
	assert.Equal(t, 0, m.CaretOffset())
	m.SetCaretOffset(100)
	assert.Equal(t, 5, m.CaretOffset())
}

func TestClampInvariants_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := New()
		defer m.Close()

		text := rapid.StringN(0, 64, -1).Draw(t, "text")
		m.SetText(text)

		start := rapid.IntRange(-100, 200).Draw(t, "start")
		length := rapid.IntRange(-100, 200).Draw(t, "length")
		caret := rapid.IntRange(-100, 200).Draw(t, "caret")

		m.SetSelection(start, length)
		m.SetCaretOffset(caret)

		n := m.Length()
		if m.SelectionStart() < 0 || m.SelectionStart() > n {
			t.Fatalf("selectionStart %d out of [0,%d]", m.SelectionStart(), n)
		}
		if m.SelectionLength() < 0 || m.SelectionStart()+m.SelectionLength() > n {
			t.Fatalf("selection %d+%d exceeds %d", m.SelectionStart(), m.SelectionLength(), n)
		}
		if m.CaretOffset() < 0 || m.CaretOffset() > n {
			t.Fatalf("caretOffset %d out of [0,%d]", m.CaretOffset(), n)
		}
	})
}

func TestRenderState_TimedOutIsTerminal(t *testing.T) {
	m := New()
	defer m.Close()

	m.SetRenderState(RenderPending)
	m.SetRenderState(RenderTimedOut)

	// Late readiness signal after the timeout already degraded the state.
	m.SetRenderState(RenderReady)
	assert.Equal(t, RenderTimedOut, m.RenderState())
}

func TestMarkSaved_ClearsDirty(t *testing.T) {
	m := New()
	defer m.Close()

	m.SetText("graph TD")
	require.True(t, m.Dirty())

	m.MarkSaved()
	assert.False(t, m.Dirty())
}

func TestRemapOffset_CaretSurvivesInsertion(t *testing.T) {
	oldText := "flowchart TD\nA-->B"
	newText := "flowchart TD\nX-->Y\nA-->B"

	// Caret at the start of "A-->B" in the old text.
	off := RemapOffset(oldText, newText, 13)
	assert.Equal(t, "A-->B", newText[runeToByteOffset(newText, off):])
}

func TestRemapOffset_IdenticalTextIsIdentity(t *testing.T) {
	assert.Equal(t, 7, RemapOffset("graph LR", "graph LR", 7))
}

func TestRemapOffset_DeletionClampsIntoRange(t *testing.T) {
	off := RemapOffset("hello world", "hello", 11)
	assert.LessOrEqual(t, off, 5)
	assert.GreaterOrEqual(t, off, 0)
}
