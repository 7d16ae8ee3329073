package mount

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	serrors "github.com/meow-stack/meow-studio/internal/errors"
	"github.com/meow-stack/meow-studio/internal/types"
)

func TestTable_Resolve(t *testing.T) {
	table := NewTable(map[string]string{"LOCAL": "/srv/ws/"})

	dir, err := table.Resolve(types.Context{Mount: "LOCAL", Path: "components/Normalize"})
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/srv/ws/components/Normalize"), dir)

	// .. cannot climb out of the mount
	dir, err = table.Resolve(types.Context{Mount: "LOCAL", Path: "/../../etc"})
	require.NoError(t, err)
	assert.Equal(t, filepath.FromSlash("/srv/ws/etc"), dir)
}

func TestTable_ResolveUnknownMount(t *testing.T) {
	table := NewTable(map[string]string{"LOCAL": "/srv/ws"})

	_, err := table.Resolve(types.Context{Mount: "HUB", Path: "/x"})
	require.Error(t, err)
	assert.True(t, serrors.HasCode(err, serrors.CodeUnknownMount))
}

func TestTable_Reverse(t *testing.T) {
	table := NewTable(map[string]string{
		"LOCAL": "/srv/ws",
		"TEAM":  "/srv/ws/team",
	})

	c, ok := table.Reverse("/srv/ws/a/b")
	require.True(t, ok)
	assert.Equal(t, types.Context{Mount: "LOCAL", Path: "/a/b"}, c)

	c, ok = table.Reverse("/srv/ws/team/shared")
	require.True(t, ok)
	assert.Equal(t, "TEAM", c.Mount, "longest root wins")

	_, ok = table.Reverse("/srv/ws")
	assert.False(t, ok, "a mount root itself is not a save target")

	_, ok = table.Reverse("/elsewhere")
	assert.False(t, ok)
}

func TestTable_Names(t *testing.T) {
	table := NewTable(map[string]string{"b": "/b", "a": "/a"})
	assert.Equal(t, []string{"a", "b"}, table.Names())
}
