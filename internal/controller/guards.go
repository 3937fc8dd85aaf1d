// Package controller glues the editing surface, the document model, the
// preview, and the window lifecycle together. The sync engine propagates
// text and selection state in both directions without oscillating; the
// controller owns attach/open/close/detach.
package controller

// Guards are the re-entrancy flags that keep bidirectional sync from
// feeding back on itself. While the engine pushes state in one direction,
// change notifications arriving from that write are recognized as echoes
// and dropped. All access is on the dispatch loop.
type Guards struct {
	toEditor bool // engine is writing surface state from the model
	toModel  bool // engine is writing model state from the surface
}

// PushToEditor runs fn with the editor-write flag set. The flag clears on
// every exit path, including panics, so a failed write can never wedge
// propagation.
func (g *Guards) PushToEditor(fn func()) {
	g.toEditor = true
	defer func() { g.toEditor = false }()
	fn()
}

// PushToModel runs fn with the model-write flag set.
func (g *Guards) PushToModel(fn func()) {
	g.toModel = true
	defer func() { g.toModel = false }()
	fn()
}

// EditorEcho reports whether a surface notification is an echo of an
// engine write and should be dropped.
func (g *Guards) EditorEcho() bool { return g.toEditor }

// ModelEcho reports whether a model notification is an echo of an engine
// write and should be dropped.
func (g *Guards) ModelEcho() bool { return g.toModel }

// Idle reports that no guarded write is in flight. Both flags are false
// outside the engine's write brackets.
func (g *Guards) Idle() bool { return !g.toEditor && !g.toModel }
