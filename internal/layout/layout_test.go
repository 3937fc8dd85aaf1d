package layout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialize_RoundTripPreservesStructure(t *testing.T) {
	root := NewDefaultLayout()

	text, err := Serialize(root)
	require.NoError(t, err)
	require.NotEmpty(t, text)

	parsed, err := Deserialize(text)
	require.NoError(t, err)

	assert.Equal(t, ToolIDs(root), ToolIDs(parsed))
	require.NotNil(t, parsed.Split)
	assert.Equal(t, Horizontal, parsed.Split.Orientation)
	assert.Equal(t, []float64{0.5, 0.5}, parsed.Split.Proportions)
}

func TestSerialize_ContextsExcluded(t *testing.T) {
	root := NewDefaultLayout()
	secret := "live-component-reference"
	FindTool(root, ToolEditor).Context = secret

	text, err := Serialize(root)
	require.NoError(t, err)

	assert.False(t, strings.Contains(text, secret), "contexts must never be serialized")

	parsed, err := Deserialize(text)
	require.NoError(t, err)
	assert.Nil(t, FindTool(parsed, ToolEditor).Context, "deserialized tools start without context")
}

func TestRestoreContexts_ReattachesById(t *testing.T) {
	text, err := Serialize(NewDefaultLayout())
	require.NoError(t, err)
	parsed, err := Deserialize(text)
	require.NoError(t, err)

	type surface struct{ name string }
	editorCtx := &surface{name: "editor"}
	previewCtx := &surface{name: "preview"}

	RestoreContexts(parsed, map[string]ContextProvider{
		ToolEditor:  func() any { return editorCtx },
		ToolPreview: func() any { return previewCtx },
	})

	assert.Same(t, editorCtx, FindTool(parsed, ToolEditor).Context)
	assert.Same(t, previewCtx, FindTool(parsed, ToolPreview).Context)
}

func TestRestoreContexts_RecursesNestedSplits(t *testing.T) {
	root := &Node{
		Split: &Split{
			Orientation: Vertical,
			Children: []*Node{
				{Tool: &Tool{ID: "console", Title: "Console"}},
				NewDefaultLayout(),
			},
		},
	}

	text, err := Serialize(root)
	require.NoError(t, err)
	parsed, err := Deserialize(text)
	require.NoError(t, err)

	restored := map[string]bool{}
	providers := map[string]ContextProvider{}
	for _, id := range []string{"console", ToolEditor, ToolPreview} {
		id := id
		providers[id] = func() any {
			restored[id] = true
			return id
		}
	}
	RestoreContexts(parsed, providers)

	assert.Equal(t, map[string]bool{"console": true, ToolEditor: true, ToolPreview: true}, restored)
}

func TestDeserialize_EmptyAndInvalid(t *testing.T) {
	parsed, err := Deserialize("")
	require.NoError(t, err)
	assert.Nil(t, parsed)

	_, err = Deserialize(":\nnot yaml {{{")
	assert.Error(t, err)

	_, err = Deserialize("unrelated: true\n")
	assert.Error(t, err, "a document with no split or tool is not a layout")
}

func TestFindTool_MissingReturnsNil(t *testing.T) {
	root := NewDefaultLayout()
	assert.Nil(t, FindTool(root, "outline"))
	assert.Nil(t, FindTool(nil, ToolEditor))
}
