package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFolderName(t *testing.T) {
	tests := []struct {
		id   int
		name string
		want string
	}{
		{1, "CSV Reader", "CSV Reader (#1)"},
		{12, "a/b:c", "a_b_c (#12)"},
		{3, "  ..trailing.. ", "trailing (#3)"},
		{4, "", "Node (#4)"},
		{5, "tab\there", "tab_here (#5)"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, FolderName(tt.id, tt.name))
		})
	}
}

func TestFolderName_Truncates(t *testing.T) {
	got := FolderName(7, strings.Repeat("x", 300))
	assert.Equal(t, strings.Repeat("x", maxFolderNameRunes)+" (#7)", got)
}

func TestFolderNodeID(t *testing.T) {
	id, ok := folderNodeID("Writer (#42)")
	assert.True(t, ok)
	assert.Equal(t, 42, id)

	_, ok = folderNodeID("data")
	assert.False(t, ok)
	_, ok = folderNodeID("Writer (#x)")
	assert.False(t, ok)
}

func TestChooseFolder(t *testing.T) {
	tests := []struct {
		name       string
		prev       string
		desired    string
		wantFolder string
		wantRename bool
	}{
		{"first save", "", "A (#1)", "A (#1)", false},
		{"unchanged", "A (#1)", "A (#1)", "A (#1)", false},
		{"case only", "Reader (#1)", "reader (#1)", "Reader (#1)", false},
		{"renamed", "Reader (#1)", "Loader (#1)", "Loader (#1)", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			folder, rename := chooseFolder(tt.prev, tt.desired)
			assert.Equal(t, tt.wantFolder, folder)
			assert.Equal(t, tt.wantRename, rename)
		})
	}
}

func TestRemoveObsolete_LeavesForeignEntries(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"A (#1)", "B (#2)", "assets"} {
		require.NoError(t, os.Mkdir(filepath.Join(root, d), 0755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "C (#3)"), nil, 0644))

	removed, err := removeObsolete(root, map[string]bool{"A (#1)": true})
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.DirExists(t, filepath.Join(root, "A (#1)"))
	assert.NoDirExists(t, filepath.Join(root, "B (#2)"))
	assert.DirExists(t, filepath.Join(root, "assets"))
	assert.FileExists(t, filepath.Join(root, "C (#3)"))
}

func TestExcludePrefixes(t *testing.T) {
	f := ExcludePrefixes("data", "/cache/")

	assert.False(t, f("data"))
	assert.False(t, f("data/port0.table"))
	assert.False(t, f("cache/x"))
	assert.True(t, f("database.txt"))
	assert.True(t, f("notes.txt"))
}

func TestCopyNodeExtras(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(src, NodeFile), []byte("id: 1"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "notes.txt"), []byte("hello"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "assets", "img"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "assets", "img", "a.png"), []byte("png"), 0644))

	files, bytes, err := copyNodeExtras(src, dst, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, files)
	assert.Equal(t, int64(8), bytes)

	assert.NoFileExists(t, filepath.Join(dst, NodeFile))
	assert.FileExists(t, filepath.Join(dst, "notes.txt"))
	assert.FileExists(t, filepath.Join(dst, "assets", "img", "a.png"))
}

func TestCopyNodeExtras_MissingSource(t *testing.T) {
	files, _, err := copyNodeExtras(filepath.Join(t.TempDir(), "gone"), t.TempDir(), nil)
	require.NoError(t, err)
	assert.Zero(t, files)
}
