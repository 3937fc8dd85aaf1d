// Package app assembles the terminal shell: the editor pane, the preview
// pane, the status bar, and the glue between the Bubble Tea event loop and
// the dispatch loop everything else runs on.
package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"

	"github.com/Mustansir-06/MermaidPad/internal/controller"
	"github.com/Mustansir-06/MermaidPad/internal/dispatch"
	"github.com/Mustansir-06/MermaidPad/internal/document"
	"github.com/Mustansir-06/MermaidPad/internal/editor"
	"github.com/Mustansir-06/MermaidPad/internal/infrastructure/sqlite"
	"github.com/Mustansir-06/MermaidPad/internal/layout"
	"github.com/Mustansir-06/MermaidPad/internal/log"
	"github.com/Mustansir-06/MermaidPad/internal/panel"
	"github.com/Mustansir-06/MermaidPad/internal/pubsub"
	"github.com/Mustansir-06/MermaidPad/internal/render"
	"github.com/Mustansir-06/MermaidPad/internal/settings"
	"github.com/Mustansir-06/MermaidPad/internal/ui/overlay"
	"github.com/Mustansir-06/MermaidPad/internal/ui/styles"
	"github.com/Mustansir-06/MermaidPad/internal/ui/toaster"
	"github.com/Mustansir-06/MermaidPad/internal/watcher"
)

// Zone identifiers for mouse targets.
const (
	zoneEditor  = "pane/editor"
	zonePreview = "pane/preview"
)

// Notice is a user-visible notification routed from the dispatch loop into
// the Bubble Tea loop.
type Notice struct {
	Text  string
	Style toaster.Style
}

type pasteMsg struct {
	text string
	err  error
}

// Config configures the shell.
type Config struct {
	Store    *settings.Store
	Prefs    settings.Settings
	FilePath string
	Recents  *sqlite.RecentRepository
}

// Model is the root Bubble Tea model.
type Model struct {
	cfg Config

	loop    *dispatch.Loop
	doc     *document.Model
	surface *editor.Surface
	preview *render.Preview
	ctrl    *controller.Controller
	root    *layout.Node

	zones *zone.Manager
	keys  KeyMap
	toast toaster.Model

	notices        *pubsub.Broker[Notice]
	noticeListener *pubsub.ContinuousListener[Notice]
	docListener    *pubsub.ContinuousListener[document.Change]

	watch     *watcher.Watcher
	lifecycle context.CancelFunc

	width, height  int
	focus          string
	confirmingQuit bool
	quitting       bool
}

// New builds the whole application: model, surfaces, controller, and the
// shell around them.
func New(cfg Config) (*Model, error) {
	loop := dispatch.NewLoop()
	doc := document.New()
	surface := editor.NewSurface()
	preview := render.NewPreview(styles.DefaultPreviewStyle(cfg.Prefs.Theme))

	root := restoreLayout(cfg.Prefs.Layout, surface, preview)

	ctrl := controller.New(loop, doc, func() panel.Handle {
		return locatePanels(root)
	})
	ctrl.SetDebounce(
		time.Duration(cfg.Prefs.DebounceMS)*time.Millisecond,
		time.Duration(cfg.Prefs.StateDebounceMS)*time.Millisecond,
	)
	ctrl.SetReadyTimeout(time.Duration(cfg.Prefs.RenderTimeoutSec) * time.Second)
	if cfg.Prefs.DiscoveryMaxAttempts > 0 {
		ctrl.SetMaxDiscoveryAttempts(cfg.Prefs.DiscoveryMaxAttempts)
	}

	ctx, cancel := context.WithCancel(context.Background())

	m := &Model{
		cfg:       cfg,
		loop:      loop,
		doc:       doc,
		surface:   surface,
		preview:   preview,
		ctrl:      ctrl,
		root:      root,
		zones:     zone.New(),
		keys:      DefaultKeyMap(),
		toast:     toaster.New(),
		notices:   pubsub.NewBroker[Notice](),
		lifecycle: cancel,
		focus:     layout.ToolEditor,
	}
	m.noticeListener = pubsub.NewContinuousListener(ctx, m.notices)
	m.docListener = pubsub.NewContinuousListener(ctx, doc.Changes())

	ctrl.SetHooks(controller.Hooks{
		Warn: func(msg string) {
			m.notices.Publish(pubsub.ChangedEvent, Notice{Text: msg, Style: toaster.StyleWarn})
		},
		Fatal: func(err error) {
			m.notices.Publish(pubsub.ErrorEvent, Notice{Text: err.Error(), Style: toaster.StyleError})
		},
	})

	if err := m.loadInitialDocument(); err != nil {
		cancel()
		loop.Stop()
		return nil, err
	}

	_ = loop.PostWait(func() {
		doc.SetAutoRender(cfg.Prefs.AutoRender)
		surface.Focus()
		ctrl.Attach()
	})

	m.startWatcher()
	return m, nil
}

// loadInitialDocument reads the file named on the command line, or the last
// session's file, into the model.
func (m *Model) loadInitialDocument() error {
	path := m.cfg.FilePath
	if path == "" {
		path = m.cfg.Prefs.LastFile
	}
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path) // #nosec G304 -- user-supplied document path
	if err != nil {
		if m.cfg.FilePath == "" && os.IsNotExist(err) {
			// A vanished last-session file is not fatal; start empty.
			log.Warn(log.CatStore, "Last session file gone", "path", path)
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}

	return m.loop.PostWait(func() {
		m.doc.SetText(string(data))
		m.doc.MarkSaved()
		m.doc.SetPath(path)
		if m.cfg.Recents != nil {
			if doc, err := m.cfg.Recents.Get(path); err == nil {
				m.doc.SetSelection(doc.SelectionStart, doc.SelectionLength)
				m.doc.SetCaretOffset(doc.CaretOffset)
			}
		}
	})
}

// startWatcher begins watching the open file for external edits.
func (m *Model) startWatcher() {
	path := m.docPath()
	if path == "" {
		return
	}

	w, err := watcher.New(watcher.DefaultConfig(path))
	if err != nil {
		log.ErrorErr(log.CatWatcher, err, "Creating file watcher")
		return
	}
	ch, err := w.Start()
	if err != nil {
		log.ErrorErr(log.CatWatcher, err, "Starting file watcher")
		return
	}
	m.watch = w

	go func() {
		for range ch {
			m.reloadFromDisk(path)
		}
	}()
}

// reloadFromDisk replaces the model text with the file's current content.
// The caret survives the replacement via diff-based remapping.
func (m *Model) reloadFromDisk(path string) {
	data, err := os.ReadFile(path) // #nosec G304 -- path of the open document
	if err != nil {
		log.ErrorErr(log.CatWatcher, err, "Reloading changed file")
		return
	}
	m.loop.Post(func() {
		if m.doc.Dirty() {
			// Never clobber unsaved edits; tell the user instead.
			m.notices.Publish(pubsub.ChangedEvent, Notice{
				Text:  "File changed on disk; save to overwrite or reopen to reload",
				Style: toaster.StyleWarn,
			})
			return
		}
		m.doc.SetText(string(data))
		m.doc.MarkSaved()
		m.notices.Publish(pubsub.ChangedEvent, Notice{
			Text:  "Reloaded external changes",
			Style: toaster.StyleInfo,
		})
	})
}

func (m *Model) docPath() string {
	path := ""
	_ = m.loop.PostWait(func() { path = m.doc.Path() })
	return path
}

// Init starts the event listeners.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.docListener.Listen(), m.noticeListener.Listen())
}

// Update handles Bubble Tea messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.applySizes()
		return m, nil

	case tea.MouseMsg:
		return m.handleMouse(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case pubsub.Event[document.Change]:
		// Model state changed; the next View picks it up.
		return m, m.docListener.Listen()

	case pubsub.Event[Notice]:
		m.toast = m.toast.Show(msg.Payload.Text, msg.Payload.Style)
		return m, tea.Batch(m.noticeListener.Listen(), toaster.ScheduleDismiss(toaster.DefaultTTL))

	case toaster.DismissMsg:
		m.toast = m.toast.Hide()
		return m, nil

	case pasteMsg:
		if msg.err == nil && msg.text != "" {
			_ = m.loop.PostWait(func() { m.surface.InsertText(msg.text) })
		}
		return m, nil
	}

	return m, nil
}

func (m *Model) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return m, nil
	}
	switch {
	case m.zones.Get(zoneEditor).InBounds(msg):
		m.setFocus(layout.ToolEditor)
	case m.zones.Get(zonePreview).InBounds(msg):
		m.setFocus(layout.ToolPreview)
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.confirmingQuit {
		switch msg.String() {
		case "y", "Y":
			return m, m.shutdown()
		case "n", "N", "esc":
			m.confirmingQuit = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m.requestQuit()

	case key.Matches(msg, m.keys.Save):
		return m, m.save()

	case key.Matches(msg, m.keys.Render):
		usable := false
		_ = m.loop.PostWait(func() {
			usable = m.doc.RenderUsable()
			if usable {
				m.ctrl.RenderNow()
			}
		})
		if !usable {
			m.toast = m.toast.Show("Preview is still starting; render unavailable", toaster.StyleInfo)
			return m, toaster.ScheduleDismiss(toaster.DefaultTTL)
		}
		return m, nil

	case key.Matches(msg, m.keys.ToggleAuto):
		_ = m.loop.PostWait(func() {
			on := !m.doc.AutoRender()
			m.doc.SetAutoRender(on)
			if on && m.doc.RenderUsable() {
				m.ctrl.RenderNow()
			}
		})
		return m, nil

	case key.Matches(msg, m.keys.NextPane):
		if m.focus == layout.ToolEditor {
			m.setFocus(layout.ToolPreview)
		} else {
			m.setFocus(layout.ToolEditor)
		}
		return m, nil

	case key.Matches(msg, m.keys.SelectAll):
		_ = m.loop.PostWait(func() { m.surface.SelectAll() })
		return m, nil

	case key.Matches(msg, m.keys.Paste):
		return m, readClipboard
	}

	if m.focus == layout.ToolEditor {
		m.handleEditKey(msg)
	}
	return m, nil
}

// handleEditKey routes plain editing keys into the surface on the loop.
func (m *Model) handleEditKey(msg tea.KeyMsg) {
	_ = m.loop.PostWait(func() {
		switch msg.Type {
		case tea.KeyRunes:
			m.surface.InsertText(string(msg.Runes))
		case tea.KeySpace:
			m.surface.InsertText(" ")
		case tea.KeyEnter:
			m.surface.InsertText("\n")
		case tea.KeyBackspace:
			m.surface.Backspace()
		case tea.KeyDelete:
			m.surface.DeleteForward()
		case tea.KeyLeft:
			m.surface.MoveCaret(-1, false)
		case tea.KeyRight:
			m.surface.MoveCaret(1, false)
		case tea.KeyShiftLeft:
			m.surface.MoveCaret(-1, true)
		case tea.KeyShiftRight:
			m.surface.MoveCaret(1, true)
		case tea.KeyUp:
			m.surface.MoveLine(-1, false)
		case tea.KeyDown:
			m.surface.MoveLine(1, false)
		case tea.KeyShiftUp:
			m.surface.MoveLine(-1, true)
		case tea.KeyShiftDown:
			m.surface.MoveLine(1, true)
		case tea.KeyHome:
			m.surface.LineHome(false)
		case tea.KeyEnd:
			m.surface.LineEnd(false)
		}
	})
}

// requestQuit consults the controller; unsaved changes raise the prompt.
func (m *Model) requestQuit() (tea.Model, tea.Cmd) {
	proceed := false
	_ = m.loop.PostWait(func() { proceed = m.ctrl.Closing() })
	if !proceed || m.dirty() {
		m.confirmingQuit = true
		return m, nil
	}
	return m, m.shutdown()
}

func (m *Model) dirty() bool {
	dirty := false
	_ = m.loop.PostWait(func() { dirty = m.doc.Dirty() })
	return dirty
}

// shutdown persists session state and tears the lifecycle down.
func (m *Model) shutdown() tea.Cmd {
	m.quitting = true
	m.persistSession()

	if m.watch != nil {
		_ = m.watch.Stop()
	}
	m.lifecycle()
	_ = m.loop.PostWait(func() { m.ctrl.Detach() })
	m.loop.Stop()
	return tea.Quit
}

// persistSession saves settings, layout, and recent-document state.
func (m *Model) persistSession() {
	prefs := m.cfg.Prefs
	var path string
	var caret, selStart, selLen int
	_ = m.loop.PostWait(func() {
		prefs.AutoRender = m.doc.AutoRender()
		path = m.doc.Path()
		caret = m.doc.CaretOffset()
		selStart = m.doc.SelectionStart()
		selLen = m.doc.SelectionLength()
	})
	prefs.LastFile = path

	if text, err := layout.Serialize(m.root); err == nil {
		prefs.Layout = text
	}
	if m.cfg.Store != nil {
		m.cfg.Store.Save(prefs)
	}
	if m.cfg.Recents != nil && path != "" {
		if err := m.cfg.Recents.Touch(path, caret, selStart, selLen); err != nil {
			log.ErrorErr(log.CatStore, err, "Recording recent document")
		}
	}
}

// save flushes pending edits and writes the document to disk.
func (m *Model) save() tea.Cmd {
	var text, path string
	_ = m.loop.PostWait(func() {
		if e := m.ctrl.Engine(); e != nil {
			e.Flush()
		}
		text = m.doc.Text()
		path = m.doc.Path()
	})
	if path == "" {
		m.toast = m.toast.Show("No file to save to; start with a file argument", toaster.StyleWarn)
		return toaster.ScheduleDismiss(toaster.DefaultTTL)
	}

	if err := os.WriteFile(path, []byte(text), 0600); err != nil {
		log.ErrorErr(log.CatStore, err, "Saving document")
		m.toast = m.toast.Show("Save failed: "+err.Error(), toaster.StyleError)
		return toaster.ScheduleDismiss(toaster.DefaultTTL)
	}

	_ = m.loop.PostWait(func() { m.doc.MarkSaved() })
	m.toast = m.toast.Show("Saved "+path, toaster.StyleSuccess)
	return toaster.ScheduleDismiss(toaster.DefaultTTL)
}

func readClipboard() tea.Msg {
	text, err := clipboard.ReadAll()
	return pasteMsg{text: text, err: err}
}

func (m *Model) setFocus(tool string) {
	m.focus = tool
	_ = m.loop.PostWait(func() {
		if tool == layout.ToolEditor {
			m.surface.Focus()
		} else {
			m.surface.Blur()
		}
	})
}

// applySizes distributes the viewport across the layout's panes.
func (m *Model) applySizes() {
	editorW, _ := m.paneWidths()
	contentH := m.height - 4 // borders and status bar
	if contentH < 1 {
		contentH = 1
	}
	_ = m.loop.PostWait(func() { m.surface.SetSize(editorW-2, contentH) })
	_, previewW := m.paneWidths()
	m.preview.SetWrap(previewW - 2)
}

// paneWidths splits the width per the layout proportions.
func (m *Model) paneWidths() (editorW, previewW int) {
	prop := 0.5
	if m.root != nil && m.root.Split != nil && len(m.root.Split.Proportions) == 2 {
		prop = m.root.Split.Proportions[0]
	}
	editorW = int(float64(m.width) * prop)
	if editorW < 10 {
		editorW = 10
	}
	previewW = m.width - editorW
	if previewW < 10 {
		previewW = 10
	}
	return editorW, previewW
}

// View renders the two panes, the status bar, and any overlays.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "loading..."
	}

	editorW, previewW := m.paneWidths()
	contentH := m.height - 4
	if contentH < 1 {
		contentH = 1
	}

	var editorBody, status string
	_ = m.loop.PostWait(func() {
		editorBody = m.surface.View()
		status = m.statusLine()
	})

	editorPane := m.pane(zoneEditor, "Editor", editorBody, editorW, contentH, m.focus == layout.ToolEditor)
	previewPane := m.pane(zonePreview, "Preview", m.preview.View(), previewW, contentH, m.focus == layout.ToolPreview)

	body := lipgloss.JoinHorizontal(lipgloss.Top, editorPane, previewPane)
	view := lipgloss.JoinVertical(lipgloss.Left, body, status)

	if m.confirmingQuit {
		prompt := styles.PaneBorderFocused.Padding(0, 2).Render(
			"Unsaved changes. Quit anyway? (y/n)")
		view = overlay.Place(overlay.Config{
			Width: m.width, Height: m.height, Position: overlay.Center,
		}, prompt, view)
	}

	view = m.toast.Overlay(view, m.width, m.height)
	return m.zones.Scan(view)
}

// pane draws one bordered pane with a marked, clickable title.
func (m *Model) pane(id, title, body string, width, height int, focused bool) string {
	border := styles.PaneBorder
	if focused {
		border = styles.PaneBorderFocused
	}
	head := m.zones.Mark(id, styles.PaneTitle.Render(title))
	content := lipgloss.JoinVertical(lipgloss.Left, head, body)
	return border.Width(width - 2).Height(height).Render(content)
}

// statusLine summarizes the session. Runs on the dispatch loop.
func (m *Model) statusLine() string {
	var parts []string

	path := m.doc.Path()
	if path == "" {
		path = "[untitled]"
	}
	if m.doc.Dirty() {
		path += " *"
	}
	parts = append(parts, path)

	if m.doc.AutoRender() {
		parts = append(parts, "auto-render")
	} else {
		parts = append(parts, "manual render")
	}

	state := m.doc.RenderState()
	parts = append(parts, "preview "+state.String())

	line := styles.StatusBar.Render(strings.Join(parts, "  |  "))
	if state == document.RenderTimedOut {
		line += "  " + styles.StatusWarning.Render("degraded")
	}
	return line
}

// restoreLayout parses the persisted layout, falling back to the default,
// and reattaches the live components to their tools.
func restoreLayout(serialized string, surface *editor.Surface, preview *render.Preview) *layout.Node {
	root, err := layout.Deserialize(serialized)
	if err != nil || root == nil {
		if err != nil {
			log.Warn(log.CatLayout, "Persisted layout unreadable, using default", "error", err.Error())
		}
		root = layout.NewDefaultLayout()
	}
	layout.RestoreContexts(root, map[string]layout.ContextProvider{
		layout.ToolEditor:  func() any { return surface },
		layout.ToolPreview: func() any { return preview },
	})
	return root
}

// locatePanels resolves the live components out of the layout tree.
func locatePanels(root *layout.Node) panel.Handle {
	var h panel.Handle
	if tool := layout.FindTool(root, layout.ToolEditor); tool != nil {
		if s, ok := tool.Context.(*editor.Surface); ok {
			h.Editor = s
		}
	}
	if tool := layout.FindTool(root, layout.ToolPreview); tool != nil {
		if p, ok := tool.Context.(*render.Preview); ok {
			h.Preview = p
		}
	}
	return h
}
