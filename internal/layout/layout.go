// Package layout models the dock panel layout: a tree of splits whose
// leaves are tool panels. The tree serializes to YAML for persistence in
// the settings file. Context objects (live component references) are
// deliberately excluded from the serialized form and are re-attached after
// every deserialize by an id-keyed restoration pass.
package layout

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Orientation is the split direction of a container node.
type Orientation string

const (
	Horizontal Orientation = "horizontal"
	Vertical   Orientation = "vertical"
)

// Well-known tool ids.
const (
	ToolEditor  = "editor"
	ToolPreview = "preview"
)

// Node is one node of the dock tree. Exactly one of Split or Tool is set.
type Node struct {
	Split *Split `yaml:"split,omitempty"`
	Tool  *Tool  `yaml:"tool,omitempty"`
}

// Split is a container dividing its area among child nodes.
type Split struct {
	Orientation Orientation `yaml:"orientation"`
	Children    []*Node     `yaml:"children"`
	Proportions []float64   `yaml:"proportions,omitempty"`
}

// Tool is a dockable panel leaf. Context holds the live component behind
// the panel (the editing surface, the preview renderer); it is nil until
// the layout engine materializes the panel, and never serialized.
type Tool struct {
	ID      string `yaml:"id"`
	Title   string `yaml:"title"`
	Context any    `yaml:"-"`
}

// ContextProvider produces the live context for a tool id during the
// restoration pass.
type ContextProvider func() any

// NewDefaultLayout returns the stock editor|preview side-by-side layout.
func NewDefaultLayout() *Node {
	return &Node{
		Split: &Split{
			Orientation: Horizontal,
			Children: []*Node{
				{Tool: &Tool{ID: ToolEditor, Title: "Editor"}},
				{Tool: &Tool{ID: ToolPreview, Title: "Preview"}},
			},
			Proportions: []float64{0.5, 0.5},
		},
	}
}

// Serialize renders the tree as YAML. Contexts are excluded. Returns ""
// for a nil tree.
func Serialize(root *Node) (string, error) {
	if root == nil {
		return "", nil
	}
	out, err := yaml.Marshal(root)
	if err != nil {
		return "", fmt.Errorf("serializing layout: %w", err)
	}
	return string(out), nil
}

// Deserialize parses a YAML layout. Returns nil for empty input. All tool
// contexts in the result are nil until RestoreContexts runs.
func Deserialize(text string) (*Node, error) {
	if text == "" {
		return nil, nil
	}
	var root Node
	if err := yaml.Unmarshal([]byte(text), &root); err != nil {
		return nil, fmt.Errorf("deserializing layout: %w", err)
	}
	if root.Split == nil && root.Tool == nil {
		return nil, fmt.Errorf("deserializing layout: empty tree")
	}
	return &root, nil
}

// RestoreContexts walks the tree and re-attaches live contexts from the
// id-keyed provider map. Tools without a provider keep a nil context.
func RestoreContexts(root *Node, providers map[string]ContextProvider) {
	Walk(root, func(tool *Tool) {
		if provider, ok := providers[tool.ID]; ok {
			tool.Context = provider()
		}
	})
}

// Walk visits every tool leaf in depth-first order.
func Walk(root *Node, visit func(*Tool)) {
	if root == nil {
		return
	}
	if root.Tool != nil {
		visit(root.Tool)
	}
	if root.Split != nil {
		for _, child := range root.Split.Children {
			Walk(child, visit)
		}
	}
}

// FindTool returns the tool leaf with the given id, or nil when the layout
// does not contain it.
func FindTool(root *Node, id string) *Tool {
	var found *Tool
	Walk(root, func(tool *Tool) {
		if found == nil && tool.ID == id {
			found = tool
		}
	})
	return found
}

// ToolIDs returns the ids of all tool leaves in depth-first order.
func ToolIDs(root *Node) []string {
	var ids []string
	Walk(root, func(tool *Tool) {
		ids = append(ids, tool.ID)
	})
	return ids
}
