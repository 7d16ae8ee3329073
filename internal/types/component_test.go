package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/meow-stack/meow-studio/internal/errors"
)

func TestNewComponent(t *testing.T) {
	a := NewComponent("Normalize", "wf-1")
	b := NewComponent("Normalize", "wf-1")

	assert.NotEmpty(t, a.TemplateID)
	assert.NotEqual(t, a.TemplateID, b.TemplateID)
	assert.Nil(t, a.Context)
	assert.True(t, a.Directory.IsZero())
}

func TestComponent_Nodes(t *testing.T) {
	c := NewComponent("c", "wf")
	require.NoError(t, c.AddNode(&Node{ID: 3, Name: "c", Kind: "k"}))
	require.NoError(t, c.AddNode(&Node{ID: 1, Name: "a", Kind: "k"}))
	require.NoError(t, c.AddNode(&Node{ID: 2, Name: "b", Kind: "k"}))
	assert.Error(t, c.AddNode(&Node{ID: 2, Name: "dup", Kind: "k"}))

	c.Connections = []Connection{{Source: 1, Dest: 2}, {Source: 2, Dest: 3}}

	sorted := c.SortedNodes()
	assert.Equal(t, []int{1, 2, 3}, []int{sorted[0].ID, sorted[1].ID, sorted[2].ID})
	assert.Equal(t, 3, c.Nodes[0].ID, "SortedNodes does not reorder the component")

	assert.True(t, c.RemoveNode(3))
	assert.False(t, c.RemoveNode(3))
	assert.Nil(t, c.Node(3))
	assert.Equal(t, []Connection{{Source: 1, Dest: 2}}, c.Connections)
}

func TestComponent_Apply(t *testing.T) {
	from := &Context{Mount: "LOCAL", Path: "/a"}
	c := NewComponent("c", "wf")
	c.Context = from
	c.Directory = Directory{Root: "/ws/a"}

	r := &Relocation{
		From:     &Context{Mount: "LOCAL", Path: "a/"},
		To:       Context{Mount: "LOCAL", Path: "/b"},
		FromRoot: "/ws/a",
		ToRoot:   "/ws/b",
	}
	require.NoError(t, c.Apply(r))
	assert.Equal(t, &Context{Mount: "LOCAL", Path: "/b"}, c.Context)
	assert.Equal(t, "/ws/b", c.Directory.Root)

	// The relocation no longer starts where the component is.
	err := c.Apply(r)
	require.Error(t, err)
	assert.True(t, serrors.HasCode(err, serrors.CodeContractViolation))
	assert.Equal(t, "/ws/b", c.Directory.Root)
}

func TestComponent_ApplyFirstSave(t *testing.T) {
	c := NewComponent("c", "wf")
	require.NoError(t, c.Apply(&Relocation{
		To:     Context{Mount: "LOCAL", Path: "/new"},
		ToRoot: "/ws/new",
	}))
	assert.Equal(t, "LOCAL:/new", c.Context.String())
}

func TestComponent_ApplyNil(t *testing.T) {
	c := NewComponent("c", "wf")
	assert.NoError(t, c.Apply(nil))
	assert.Nil(t, c.Context)
}

func TestComponent_ApplyDoesNotAlias(t *testing.T) {
	c := NewComponent("c", "wf")
	r := &Relocation{To: Context{Mount: "LOCAL", Path: "/x"}, ToRoot: "/ws/x"}
	require.NoError(t, c.Apply(r))

	r.To.Path = "/changed"
	assert.Equal(t, "/x", c.Context.Path)
}
