package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mustansir-06/MermaidPad/internal/layout"
	"github.com/Mustansir-06/MermaidPad/internal/settings"
)

func newTestApp(t *testing.T, filePath string) *Model {
	t.Helper()

	prefs := settings.Defaults()
	prefs.DebounceMS = 20
	prefs.StateDebounceMS = 10
	prefs.RenderTimeoutSec = 1

	store, err := settings.NewStore(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	m, err := New(Config{Store: store, Prefs: prefs, FilePath: filePath})
	require.NoError(t, err)
	t.Cleanup(func() {
		if !m.quitting {
			_ = m.shutdown()
		}
	})
	return m
}

func sizeApp(m *Model) {
	_, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
}

func TestApp_OpensFileIntoModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.mmd")
	require.NoError(t, os.WriteFile(path, []byte("graph TD\nA-->B"), 0600))

	m := newTestApp(t, path)
	sizeApp(m)

	var text string
	var dirty bool
	_ = m.loop.PostWait(func() {
		text = m.doc.Text()
		dirty = m.doc.Dirty()
	})
	assert.Equal(t, "graph TD\nA-->B", text)
	assert.False(t, dirty, "freshly opened document is clean")
}

func TestApp_TypingSyncsToModel(t *testing.T) {
	m := newTestApp(t, "")
	sizeApp(m)

	for _, r := range "graph" {
		_, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}

	require.Eventually(t, func() bool {
		text := ""
		_ = m.loop.PostWait(func() { text = m.doc.Text() })
		return text == "graph"
	}, 2*time.Second, 20*time.Millisecond, "keystrokes reach the model after the debounce")
}

func TestApp_QuitWithUnsavedChangesPrompts(t *testing.T) {
	m := newTestApp(t, "")
	sizeApp(m)

	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlQ})

	assert.Nil(t, cmd, "dirty quit must not quit immediately")
	assert.True(t, m.confirmingQuit)
	assert.Contains(t, m.View(), "Unsaved changes")

	// Declining keeps the session alive.
	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'n'}})
	assert.False(t, m.confirmingQuit)
}

func TestApp_QuitCleanSessionExits(t *testing.T) {
	m := newTestApp(t, "")
	sizeApp(m)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlQ})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd(), "clean session quits without prompting")
}

func TestApp_TabSwitchesFocus(t *testing.T) {
	m := newTestApp(t, "")
	sizeApp(m)
	require.Equal(t, layout.ToolEditor, m.focus)

	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, layout.ToolPreview, m.focus)

	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, layout.ToolEditor, m.focus)
}

func TestApp_ViewShowsPanesAndStatus(t *testing.T) {
	m := newTestApp(t, "")
	sizeApp(m)

	view := m.View()
	assert.Contains(t, view, "Editor")
	assert.Contains(t, view, "Preview")
	assert.Contains(t, view, "[untitled]")
	assert.Contains(t, view, "auto-render")
}

func TestApp_ManualRenderGatedOnReadiness(t *testing.T) {
	m := newTestApp(t, "")
	sizeApp(m)

	_ = m.loop.PostWait(func() { m.doc.SetRenderUsable(false) })
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlE})

	require.NotNil(t, cmd, "gated render schedules the notice dismissal")
	assert.Contains(t, m.View(), "still starting")
}

func TestApp_ToggleAutoRenderReflectsInStatus(t *testing.T) {
	m := newTestApp(t, "")
	sizeApp(m)

	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	assert.Contains(t, m.View(), "manual render")
}
