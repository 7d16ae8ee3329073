package drop

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meow-stack/meow-studio/internal/codec"
	serrors "github.com/meow-stack/meow-studio/internal/errors"
	"github.com/meow-stack/meow-studio/internal/logging"
	"github.com/meow-stack/meow-studio/internal/mount"
	"github.com/meow-stack/meow-studio/internal/store"
	"github.com/meow-stack/meow-studio/internal/types"
)

var defaultSchemes = []string{"file", "http", "https"}

func TestAcceptor_Parse(t *testing.T) {
	a := NewAcceptor(defaultSchemes, logging.NewForTest())

	tests := []struct {
		name    string
		payload string
		want    string
		wantErr bool
	}{
		{"https", "https://hub.example.com/components/normalize", "https://hub.example.com/components/normalize", false},
		{"first line wins", "file:///ws/a\nfile:///ws/b\n", "file:///ws/a", false},
		{"blank and comment lines skipped", "\n  \n# dragged from browser\r\nhttp://x.org/p\r\n", "http://x.org/p", false},
		{"scheme case folded", "HTTPS://x.org/", "https://x.org/", false},
		{"file localhost", "file://localhost/ws/a", "file://localhost/ws/a", false},
		{"empty", "", "", true},
		{"only whitespace", " \n\t\n", "", true},
		{"relative", "components/normalize", "", true},
		{"unaccepted scheme", "ftp://x.org/file", "", true},
		{"javascript", "javascript:alert(1)", "", true},
		{"no host", "https:///path", "", true},
		{"remote file host", "file://server/share/a", "", true},
		{"malformed", "http://[::1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := a.Parse(tt.payload)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, serrors.HasCode(err, serrors.CodeDropInvalidURL))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, u.String())
		})
	}
}

func TestAcceptor_AcceptLogsAndDrops(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	a := NewAcceptor([]string{"file"}, logger)

	u, ok := a.Accept("https://x.org/")
	assert.False(t, ok)
	assert.Nil(t, u)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "ignoring dropped payload")
}

func TestTarget_Drop(t *testing.T) {
	target := NewTarget(NewAcceptor(defaultSchemes, logging.NewForTest()), logging.NewForTest())

	var got []string
	target.Handle("https", ImporterFunc(func(ctx context.Context, u *url.URL) error {
		got = append(got, u.String())
		return nil
	}))
	boom := errors.New("hub unreachable")
	target.Handle("http", ImporterFunc(func(ctx context.Context, u *url.URL) error {
		return boom
	}))

	ok, err := target.Drop(context.Background(), "https://hub.example.com/c")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"https://hub.example.com/c"}, got)

	// Invalid payloads are dropped silently.
	ok, err = target.Drop(context.Background(), "not a url")
	assert.NoError(t, err)
	assert.False(t, ok)

	ok, err = target.Drop(context.Background(), "http://hub.example.com/c")
	assert.ErrorIs(t, err, boom)
	assert.False(t, ok)

	ok, err = target.Drop(context.Background(), "file:///tmp/x")
	assert.True(t, serrors.HasCode(err, serrors.CodeDropNoImporter))
	assert.False(t, ok)
}

func TestFileImporter(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "components", "normalize")

	st := store.New(codec.Default(), logging.NewForTest())
	comp := types.NewComponent("Normalize", "wf-1")
	comp.AddNode(&types.Node{ID: 1, Name: "Reader", Kind: "io.reader"})
	_, err := st.SaveAsTemplate(context.Background(), comp, dir, nil, nil)
	require.NoError(t, err)

	var imported []*types.Component
	imp := NewFileImporter(st, mount.NewTable(map[string]string{"LOCAL": root}), func(c *types.Component) {
		imported = append(imported, c)
	})

	target := NewTarget(NewAcceptor(defaultSchemes, logging.NewForTest()), logging.NewForTest())
	target.Handle("file", imp)

	// Directory URL, then manifest URL.
	for _, p := range []string{dir, filepath.Join(dir, store.ManifestFile)} {
		u := url.URL{Scheme: "file", Path: filepath.ToSlash(p)}
		ok, err := target.Drop(context.Background(), u.String()+"\n")
		require.NoError(t, err)
		assert.True(t, ok)
	}

	require.Len(t, imported, 2)
	for _, c := range imported {
		assert.Equal(t, comp.TemplateID, c.TemplateID)
		require.NotNil(t, c.Context)
		assert.Equal(t, "LOCAL:/components/normalize", c.Context.String())
	}
}

func TestFileImporter_Errors(t *testing.T) {
	st := store.New(codec.Default(), logging.NewForTest())
	imp := NewFileImporter(st, nil, nil)

	err := imp.Import(context.Background(), &url.URL{Scheme: "file", Path: "/definitely/not/here"})
	assert.True(t, serrors.HasCode(err, serrors.CodeIOFileNotFound))

	empty := t.TempDir()
	err = imp.Import(context.Background(), &url.URL{Scheme: "file", Path: filepath.ToSlash(empty)})
	assert.True(t, serrors.HasCode(err, serrors.CodeTemplateNotFound))
}
