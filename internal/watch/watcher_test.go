package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meow-stack/meow-studio/internal/logging"
)

func newTestWatcher(t *testing.T) *Watcher {
	t.Helper()
	w, err := New(50*time.Millisecond, logging.NewForTest())
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

func templateDir(t *testing.T) string {
	t.Helper()
	root := filepath.Join(t.TempDir(), "Normalize")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "Reader (#1)"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "template.yaml"), []byte("name: x\n"), 0644))
	return root
}

func expectChange(t *testing.T, w *Watcher, want string) {
	t.Helper()
	select {
	case got := <-w.Changes():
		assert.Equal(t, want, got)
	case <-time.After(3 * time.Second):
		t.Fatalf("no change reported for %s", want)
	}
}

func expectNoChange(t *testing.T, w *Watcher, wait time.Duration) {
	t.Helper()
	select {
	case got := <-w.Changes():
		t.Fatalf("unexpected change reported for %s", got)
	case <-time.After(wait):
	}
}

func TestWatcher_ReportsTemplateDir(t *testing.T) {
	w := newTestWatcher(t)
	root := templateDir(t)
	require.NoError(t, w.Watch(root))
	assert.Equal(t, []string{root}, w.Watching())

	// A write inside a node folder is reported as a change of the template.
	require.NoError(t, os.WriteFile(filepath.Join(root, "Reader (#1)", "node.yaml"), []byte("id: 1\n"), 0644))
	expectChange(t, w, root)
}

func TestWatcher_Debounces(t *testing.T) {
	w := newTestWatcher(t)
	root := templateDir(t)
	require.NoError(t, w.Watch(root))

	for i := range 5 {
		require.NoError(t, os.WriteFile(filepath.Join(root, "template.yaml"), []byte{byte('a' + i)}, 0644))
	}
	expectChange(t, w, root)
	expectNoChange(t, w, 200*time.Millisecond)
}

func TestWatcher_Quiet(t *testing.T) {
	w := newTestWatcher(t)
	root := templateDir(t)
	require.NoError(t, w.Watch(root))

	w.Quiet(root, time.Hour)
	require.NoError(t, os.WriteFile(filepath.Join(root, "template.yaml"), []byte("own write\n"), 0644))
	expectNoChange(t, w, 200*time.Millisecond)
}

func TestWatcher_Unwatch(t *testing.T) {
	w := newTestWatcher(t)
	root := templateDir(t)
	require.NoError(t, w.Watch(root))

	w.Unwatch(root)
	assert.Empty(t, w.Watching())

	require.NoError(t, os.WriteFile(filepath.Join(root, "template.yaml"), []byte("later\n"), 0644))
	expectNoChange(t, w, 200*time.Millisecond)
}

func TestWatcher_MissingDir(t *testing.T) {
	w := newTestWatcher(t)
	assert.Error(t, w.Watch(filepath.Join(t.TempDir(), "gone")))
}

func TestWatcher_CloseTwice(t *testing.T) {
	w, err := New(0, nil)
	require.NoError(t, err)
	assert.NoError(t, w.Close())
	assert.NoError(t, w.Close())
}
